package errclass_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faultline-labs/faultline/errdata/errclass"
)

var (
	errAlpha = fmt.Errorf("alpha failed")
	errBeta  = fmt.Errorf("beta failed")
)

func TestMarkAndOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		testName string
		err      error
		class    errclass.Class
	}{
		{
			testName: "nil error",
			err:      nil,
			class:    errclass.Nil,
		},
		{
			testName: "unknown",
			err:      errAlpha,
			class:    errclass.Unknown,
		},
		{
			testName: "transient",
			err:      errAlpha,
			class:    errclass.Transient,
		},
		{
			testName: "persistent",
			err:      errAlpha,
			class:    errclass.Persistent,
		},
		{
			testName: "panic",
			err:      errAlpha,
			class:    errclass.Panic,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			t.Parallel()
			err := errclass.Mark(tc.err, tc.class)
			if got := errclass.Of(err); got != tc.class {
				t.Errorf("unexpected class: want: %s got %s", tc.class, got)
			}
		})
	}
}

func TestOfUnmarked(t *testing.T) {
	t.Parallel()

	if got := errclass.Of(errAlpha); got != errclass.Unknown {
		t.Errorf("unexpected class: want: %s got %s", errclass.Unknown, got)
	}
}

func TestOfJoined(t *testing.T) {
	t.Parallel()

	classes := []errclass.Class{
		errclass.Nil,
		errclass.Unknown,
		errclass.Transient,
		errclass.Persistent,
		errclass.Panic,
	}

	maxOf := func(a, b errclass.Class) errclass.Class {
		if a > b {
			return a
		}
		return b
	}

	// every pairing, joined in both orders, yields the higher class
	for _, classA := range classes {
		for _, classB := range classes {
			name := fmt.Sprintf("%s with %s", classA, classB)
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				errA := errclass.Mark(errAlpha, classA)
				if classA == errclass.Nil {
					errA = nil
				}
				errB := errclass.Mark(errBeta, classB)
				if classB == errclass.Nil {
					errB = nil
				}

				want := maxOf(classA, classB)
				if errA == nil && errB == nil {
					want = errclass.Nil
				}

				assert.Equal(t, want, errclass.Of(errors.Join(errA, errB)))
				assert.Equal(t, want, errclass.Of(errors.Join(errB, errA)))
			})
		}
	}
}

func TestOfNestedJoins(t *testing.T) {
	t.Parallel()

	errA := errclass.Mark(errors.New("connection reset"), errclass.Transient)
	errB := errclass.Mark(errors.New("worker blew up"), errclass.Panic)
	errC := errclass.Mark(errors.New("bad input"), errclass.Persistent)
	errD := errclass.Mark(errors.New("who knows"), errclass.Unknown)

	joinAB := errors.Join(errA, errB)
	joinCD := errors.Join(errC, errD)
	all := errors.Join(joinAB, joinCD)

	// the worst child anywhere in the tree wins
	assert.Equal(t, errclass.Panic, errclass.Of(all))

	// explicitly marking a join overrides its children
	downgraded := errclass.Mark(joinAB, errclass.Transient)
	assert.Equal(t, errclass.Transient, errclass.Of(downgraded))

	// but siblings still contribute at the level above
	assert.Equal(t, errclass.Persistent, errclass.Of(errors.Join(downgraded, joinCD)))

	// marking the whole tree overrides everything
	assert.Equal(t, errclass.Unknown, errclass.Of(errclass.Mark(all, errclass.Unknown)))
}

func TestOfEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, errclass.Nil, errclass.Of(nil))
	})

	t.Run("empty join", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, errclass.Nil, errclass.Of(errors.Join()))
	})

	t.Run("join of nils", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, errclass.Nil, errclass.Of(errors.Join(nil, nil)))
	})

	t.Run("join with nil siblings", func(t *testing.T) {
		t.Parallel()
		err := errclass.Mark(errors.New("boom"), errclass.Panic)
		assert.Equal(t, errclass.Panic, errclass.Of(errors.Join(nil, err, nil)))
	})

	t.Run("join of explicitly nil-classed children", func(t *testing.T) {
		t.Parallel()
		err1 := errclass.Mark(errors.New("one"), errclass.Nil)
		err2 := errclass.Mark(errors.New("two"), errclass.Nil)
		assert.Equal(t, errclass.Unknown, errclass.Of(errors.Join(err1, err2)))
	})

	t.Run("mark through fmt wrapping", func(t *testing.T) {
		t.Parallel()
		err := errclass.Mark(errors.New("base"), errclass.Transient)
		err = fmt.Errorf("level one: %w", err)
		err = fmt.Errorf("level two: %w", err)
		assert.Equal(t, errclass.Transient, errclass.Of(err))
	})

	t.Run("fmt wrapper around a join loses aggregation", func(t *testing.T) {
		t.Parallel()
		err1 := errclass.Mark(errors.New("err1"), errclass.Transient)
		err2 := errclass.Mark(errors.New("err2"), errclass.Persistent)
		wrapped := fmt.Errorf("context: %w", errors.Join(err1, err2))
		// the wrapper is not a join, so the first mark found wins;
		// use Mark on the join itself to control the aggregate class
		assert.Equal(t, errclass.Transient, errclass.Of(wrapped))
	})

	t.Run("mark nil error", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, errclass.Mark(nil, errclass.Panic))
	})
}

func TestClassString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		class    errclass.Class
		expected string
	}{
		{errclass.Nil, "nil"},
		{errclass.Unknown, "unknown"},
		{errclass.Transient, "transient"},
		{errclass.Persistent, "persistent"},
		{errclass.Panic, "panic"},
		{errclass.Class(12345), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, tc.class.String())
		})
	}
}

func TestClassLogValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	logger.Info("classified", slog.Any("class", errclass.Persistent))
	assert.Contains(t, buf.String(), "class=persistent")
}
