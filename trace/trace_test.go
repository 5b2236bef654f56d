package trace_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline-labs/faultline/trace"
)

var errSample = fmt.Errorf("sample failure")

func alpha() error {
	return trace.WrapError(beta())
}

func beta() error {
	return trace.WrapError(gamma())
}

func gamma() error {
	return trace.WrapError(errSample)
}

type gadget struct{}

func (g *gadget) snapshot() trace.Trace {
	return trace.Capture(2, true)
}

func TestCapture(t *testing.T) {
	t.Parallel()

	tr := trace.Capture(2, true)
	require.NotEmpty(t, tr)

	head := tr[0]
	assert.Equal(t, "trace_test.TestCapture", head.Function)
	assert.Empty(t, head.Owner)
	assert.True(t, strings.HasSuffix(head.File, "trace/trace_test.go"), "unexpected file: %s", head.File)
	assert.Positive(t, head.Line)
	assert.Nil(t, head.Args)
}

func TestCaptureMethodOwner(t *testing.T) {
	t.Parallel()

	g := &gadget{}
	tr := g.snapshot()
	require.NotEmpty(t, tr)

	head := tr[0]
	assert.Equal(t, "trace_test.(*gadget)", head.Owner)
	assert.Equal(t, "snapshot", head.Function)
}

func TestCaptureSkipValues(t *testing.T) {
	t.Parallel()

	stack1 := trace.Capture(1, true)
	stack2 := trace.Capture(2, true)
	assert.GreaterOrEqual(t, len(stack1), len(stack2))

	// a skip beyond the real depth yields nothing useful
	deep := trace.Capture(1000, true)
	assert.Less(t, len(deep), 5)
}

func TestCaptureKeepsRuntimeFrames(t *testing.T) {
	t.Parallel()

	full := trace.Capture(1, false)
	require.NotEmpty(t, full)

	found := false
	for _, frame := range full {
		if strings.HasPrefix(frame.Function, "testing.") {
			found = true
			break
		}
	}
	assert.True(t, found, "expected a testing frame when trimming is off")
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	// wrapping nil stays nil
	assert.NoError(t, trace.WrapError(nil))
	assert.Nil(t, trace.FromError(nil))

	err := alpha()
	require.Error(t, err)
	assert.ErrorIs(t, err, errSample)

	tr := trace.FromError(err)
	require.NotNil(t, tr)

	// the innermost wrap wins, so the head frame is gamma
	assert.Equal(t, "trace_test.gamma", tr[0].Function)

	// and an error that never saw WrapError has no trace
	assert.Nil(t, trace.FromError(errors.New("bare")))
}

func TestWrapErrorJoined(t *testing.T) {
	t.Parallel()

	errA := errors.New("first failure")
	errB := trace.WrapError(errors.New("second failure"))
	preWrapped := trace.FromError(errB)
	require.NotNil(t, preWrapped)

	joined := trace.WrapError(errors.Join(errA, errB))

	var multi interface{ Unwrap() []error }
	require.ErrorAs(t, joined, &multi)

	children := multi.Unwrap()
	require.Len(t, children, 2)
	for _, child := range children {
		assert.NotNil(t, trace.FromError(child))
	}

	// the pre-existing capture on errB is preserved, not replaced
	assert.Equal(t, preWrapped[0].Line, trace.FromError(children[1])[0].Line)
}

func TestWrapErrorDisabled(t *testing.T) { //nolint:paralleltest // test uses package-level variable
	trace.Disabled.Store(true)
	t.Cleanup(func() { trace.Disabled.Store(false) })

	err := alpha()
	require.Error(t, err)
	assert.Nil(t, trace.FromError(err))
}

func TestLogForm(t *testing.T) {
	t.Parallel()

	assert.Nil(t, trace.LogForm(errors.New("no trace here")))

	err := alpha()
	form, ok := trace.LogForm(err).([]map[string]string)
	require.True(t, ok)
	require.NotEmpty(t, form)

	head := form[0]
	assert.True(t, strings.HasSuffix(head["source"], "trace/trace_test.go"))
	assert.Equal(t, "trace_test.gamma", head["func"])
	assert.NotEmpty(t, head["line"])
	assert.NotContains(t, head, "owner")
}

func TestTraceLogValue(t *testing.T) {
	t.Parallel()

	err := alpha()
	tr := trace.FromError(err)
	require.NotNil(t, tr)
	assert.Equal(t, slog.KindAny, tr.LogValue().Kind())

	// and it logs without incident
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("captured", slog.Any("trace", tr))
	assert.NotZero(t, buf.Len())
}
