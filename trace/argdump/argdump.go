// Package argdump renders the recorded argument values of a trace frame as
// a deterministic, type-tagged text block for inclusion in a diagnostic
// report. Output is all-or-nothing: a dump that exceeds the configured byte
// limit is discarded entirely and replaced by a short notice, never
// truncated mid-value.
package argdump

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/faultline-labs/faultline/safe"
	"github.com/faultline-labs/faultline/trace"
)

// Mode selects which frames have their arguments rendered.
type Mode int

const (
	// ModeOff renders nothing.
	ModeOff Mode = iota
	// ModeAll renders arguments for every frame.
	ModeAll
	// ModeFirst renders arguments only for the first N frames of the trace.
	ModeFirst
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeAll:
		return "all"
	case ModeFirst:
		return "first"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return ModeOff, nil
	case "all":
		return ModeAll, nil
	case "first":
		return ModeFirst, nil
	default:
		return ModeOff, trace.WrapError(fmt.Errorf("%w: %q", ErrUnknownMode, s))
	}
}

var (
	ErrUnknownMode        = errors.New("unknown argument dump mode")
	ErrNegativeByteLimit  = errors.New("argument dump byte limit must not be negative")
	ErrNegativeFrameCount = errors.New("argument dump frame count must not be negative")
	ErrNegativeDepth      = errors.New("argument dump depth must not be negative")
)

// DefaultByteLimit is the dump size cap applied when none is configured.
const DefaultByteLimit = 1024

const (
	defaultMaxDepth = 8

	// continuation marker extending a trace line with its argument dump
	dumpMarker = "   | "

	// placeholder used when the argument values cannot be serialized at all
	unserializable = "(arguments unavailable)"
)

type options struct {
	mode     Mode
	frames   int
	limit    int
	maxDepth int
}

// Option alters the configuration of a Renderer.
type Option func(options *options)

// WithMode selects which frames are rendered. The default is ModeOff.
func WithMode(mode Mode) Option {
	return func(options *options) {
		options.mode = mode
	}
}

// WithFrameCount sets how many leading frames ModeFirst covers.
func WithFrameCount(n int) Option {
	return func(options *options) {
		options.frames = n
	}
}

// WithByteLimit caps the size of a rendered dump. Dumps larger than the
// limit are discarded whole. The default is 1024 bytes.
func WithByteLimit(n int) Option {
	return func(options *options) {
		options.limit = n
	}
}

// WithMaxDepth bounds how deep nested structures are serialized, guarding
// against huge intermediate buffers. Zero means unbounded.
func WithMaxDepth(n int) Option {
	return func(options *options) {
		options.maxDepth = n
	}
}

// Renderer turns frame arguments into report text.
type Renderer struct {
	mode   Mode
	frames int
	limit  int
	dump   *spew.ConfigState
}

// New creates a Renderer, validating the assembled configuration.
func New(opts ...Option) (*Renderer, error) {
	options := options{
		mode:     ModeOff,
		frames:   0,
		limit:    DefaultByteLimit,
		maxDepth: defaultMaxDepth,
	}

	for _, opt := range opts {
		opt(&options)
	}

	switch options.mode {
	case ModeOff, ModeAll, ModeFirst:
	default:
		return nil, trace.WrapError(fmt.Errorf("%w: %s", ErrUnknownMode, options.mode))
	}
	if options.limit < 0 {
		return nil, trace.WrapError(ErrNegativeByteLimit)
	}
	if options.frames < 0 {
		return nil, trace.WrapError(ErrNegativeFrameCount)
	}
	if options.maxDepth < 0 {
		return nil, trace.WrapError(ErrNegativeDepth)
	}

	return &Renderer{
		mode:   options.mode,
		frames: options.frames,
		limit:  options.limit,
		// sorted keys and suppressed addresses keep the output identical
		// across runs for identical values
		dump: &spew.ConfigState{
			Indent:                  " ",
			SortKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			MaxDepth:                options.maxDepth,
		},
	}, nil
}

// Render produces the argument dump for one frame. frameIndex is the
// 1-based position of the frame in the rendered trace. The result is either
// empty, a discard notice, or a newline-led block whose every line carries
// the continuation marker; it is appended verbatim to the frame's trace
// line. Render never fails: values that cannot be serialized degrade to a
// placeholder.
func (r *Renderer) Render(frame trace.Frame, frameIndex int) string {
	if r.mode == ModeOff {
		return ""
	}
	if r.mode == ModeFirst && frameIndex > r.frames {
		return ""
	}
	if len(frame.Args) == 0 {
		return ""
	}

	dump := r.materialize(frame.Args)
	if dump == "" {
		return ""
	}
	if len(dump) > r.limit {
		return fmt.Sprintf("Arguments dump length greater than %d Bytes. Discarded.", r.limit)
	}

	block := strings.TrimSuffix(dump, "\n")
	return "\n" + dumpMarker + strings.ReplaceAll(block, "\n", "\n"+dumpMarker)
}

// materialize serializes the full dump before any size decision is made;
// the depth bound in the spew config is the only guard while building it.
func (r *Renderer) materialize(args []any) (dump string) {
	if err := safe.Run(func() error {
		dump = r.dump.Sdump(args...)
		return nil
	}); err != nil {
		return unserializable + "\n"
	}
	return dump
}
