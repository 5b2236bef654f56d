package errdata_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/faultline-labs/faultline/errdata"
)

var errBase = fmt.Errorf("something went sideways")

func rewrap(err error) error {
	return fmt.Errorf("while doing the thing: %w", err)
}

func TestAttachAndLookup(t *testing.T) {
	t.Parallel()

	type requestInfo struct {
		method string
		path   string
	}

	type timingInfo struct {
		started time.Time
		retries int
	}

	type neverAttached struct{}

	ri := requestInfo{method: "GET", path: "/reports"}
	ti := timingInfo{started: time.Now(), retries: 3}

	// attaching to nil stays nil
	if e := errdata.Attach(ri, nil); e != nil {
		t.Errorf("unexpected error: want: %v, got %v", nil, e)
	}

	// attaching preserves identity
	e1 := errdata.Attach(ri, errBase)
	if !errors.Is(e1, errBase) {
		t.Errorf("unmatched error: want: %v, got %v", errBase, e1)
	}

	// a second attachment of a different type preserves both identities
	e2 := errdata.Attach(ti, e1)
	if !errors.Is(e2, e1) {
		t.Errorf("unmatched error: want: %v, got %v", e1, e2)
	}
	if !errors.Is(e2, errBase) {
		t.Errorf("unmatched error: want: %v, got %v", errBase, e2)
	}

	// plain fmt wrapping on top changes nothing
	e3 := rewrap(rewrap(e2))
	if !errors.Is(e3, errBase) {
		t.Errorf("unmatched error: want: %v, got %v", errBase, e3)
	}

	// both attachments are reachable through the whole chain
	gotRI, ok := errdata.Lookup[requestInfo](e3)
	assert.True(t, ok)
	assert.Equal(t, ri, gotRI)

	gotTI, ok := errdata.Lookup[timingInfo](e3)
	assert.True(t, ok)
	assert.Equal(t, ti, gotTI)

	// a type that was never attached is not found
	_, ok = errdata.Lookup[neverAttached](e3)
	assert.False(t, ok)
}

func TestLookupOutermostWins(t *testing.T) {
	t.Parallel()

	type label struct {
		name string
	}

	inner := label{name: "inner"}
	outer := label{name: "outer"}

	e1 := errdata.Attach(inner, errBase)
	e2 := errdata.Attach(outer, e1)

	got, ok := errdata.Lookup[label](e2)
	assert.True(t, ok)
	assert.Equal(t, outer, got)

	// unwrapping one level exposes the earlier attachment again
	got, ok = errdata.Lookup[label](errors.Unwrap(e2))
	assert.True(t, ok)
	assert.Equal(t, inner, got)
}

type (
	severity int
	priority int
)

const (
	sevLow severity = iota
	sevHigh

	prioLow priority = iota
	prioHigh
)

func TestLookupDistinguishesDefinedTypes(t *testing.T) {
	t.Parallel()

	// severity and priority share an underlying int;
	// Lookup must still tell them apart.
	e1 := errdata.Attach(sevHigh, errBase)
	e2 := errdata.Attach(prioHigh, e1)

	s, ok := errdata.Lookup[severity](e2)
	assert.True(t, ok)
	assert.Equal(t, sevHigh, s)

	p, ok := errdata.Lookup[priority](e2)
	assert.True(t, ok)
	assert.Equal(t, prioHigh, p)

	_, ok = errdata.Lookup[priority](e1)
	assert.False(t, ok)

	// zero values must not alias across types either
	e3 := errdata.Attach(sevLow, errBase)
	_, ok = errdata.Lookup[priority](e3)
	assert.False(t, ok)
}

func TestUnjoin(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, errdata.Unjoin(nil))
	})

	t.Run("single error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("lonely")
		assert.Equal(t, []error{err}, errdata.Unjoin(err))
	})

	t.Run("joined errors", func(t *testing.T) {
		t.Parallel()
		err1 := errors.New("first")
		err2 := errors.New("second")
		assert.ElementsMatch(t, []error{err1, err2}, errdata.Unjoin(errors.Join(err1, err2)))
	})
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, errdata.Flatten(nil))
	})

	t.Run("nested joins", func(t *testing.T) {
		t.Parallel()
		err1 := errors.New("one")
		err2 := errors.New("two")
		err3 := errors.New("three")
		nested := errors.Join(errors.Join(err1, err2), err3)
		assert.ElementsMatch(t, []error{err1, err2, err3}, errdata.Flatten(nested))
	})

	t.Run("wrapper around a join", func(t *testing.T) {
		t.Parallel()
		err1 := errors.New("one")
		err2 := errors.New("two")
		wrapped := fmt.Errorf("context: %w", errors.Join(err1, err2))
		assert.ElementsMatch(t, []error{err1, err2}, errdata.Flatten(wrapped))
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("plain")
		assert.Equal(t, []error{err}, errdata.Flatten(err))
	})
}
