package report

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/faultline-labs/faultline/collections"
	"github.com/faultline-labs/faultline/execenv"
	"github.com/faultline-labs/faultline/trace/argdump"
)

var (
	// ErrNilOutput is returned when the output writer is explicitly set to nil.
	ErrNilOutput = errors.New("output writer must not be nil")

	// ErrNilProbe is returned when the execution probe is explicitly set to nil.
	ErrNilProbe = errors.New("execution probe must not be nil")

	// ErrInvalidDedup is returned for a negative dedup size or window.
	ErrInvalidDedup = errors.New("dedup size and window must not be negative")
)

type options struct {
	includeTrace  bool
	renderer      *argdump.Renderer
	rendererOpts  []argdump.Option
	restrictToCLI bool
	outputOnlyCLI bool
	loggerOnly    bool
	logger        *slog.Logger
	output        io.Writer
	probe         execenv.Probe
	ignoredKinds  collections.Set[string]
	dedupSize     int
	dedupWindow   time.Duration
	sinks         []Sink
	service       string
	version       string
	clock         clockwork.Clock
}

type Option func(options *options)

// WithTrace controls whether composed reports include the stack trace
// section. Enabled by default.
func WithTrace(enabled bool) Option {
	return func(options *options) {
		options.includeTrace = enabled
	}
}

// WithArgDumpMode sets the frame argument rendering mode.
func WithArgDumpMode(mode argdump.Mode) Option {
	return func(options *options) {
		options.rendererOpts = append(options.rendererOpts, argdump.WithMode(mode))
	}
}

// WithArgDumpFrames limits argument rendering to the first n frames
// when the mode is argdump.First.
func WithArgDumpFrames(n int) Option {
	return func(options *options) {
		options.rendererOpts = append(options.rendererOpts, argdump.WithFrameCount(n))
	}
}

// WithArgDumpByteLimit caps the serialized size of a single frame's
// argument dump.
func WithArgDumpByteLimit(n int) Option {
	return func(options *options) {
		options.rendererOpts = append(options.rendererOpts, argdump.WithByteLimit(n))
	}
}

// WithRenderer supplies a fully built argument renderer, overriding any
// WithArgDump options.
func WithRenderer(r *argdump.Renderer) Option {
	return func(options *options) {
		options.renderer = r
	}
}

// WithCommandLineOnly makes the reporter decline every fault raised
// outside a command line context.
func WithCommandLineOnly(v bool) Option {
	return func(options *options) {
		options.restrictToCLI = v
	}
}

// WithOutputOnlyInCommandLine suppresses the output stream outside a
// command line context. Logging and sinks are unaffected.
func WithOutputOnlyInCommandLine(v bool) Option {
	return func(options *options) {
		options.outputOnlyCLI = v
	}
}

// WithLoggerOnly suppresses the output stream entirely.
func WithLoggerOnly(v bool) Option {
	return func(options *options) {
		options.loggerOnly = v
	}
}

// WithLogger sets the structured logger reports are emitted to.
// Without one, reports are not logged.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithOutput redirects report text away from stdout.
func WithOutput(w io.Writer) Option {
	return func(options *options) {
		options.output = w
	}
}

// WithProbe replaces the execution-context probe. The default detects a
// command line by checking whether stdout and stderr are terminals.
func WithProbe(p execenv.Probe) Option {
	return func(options *options) {
		options.probe = p
	}
}

// WithIgnoredKinds adds fault kinds that are accepted but never routed.
func WithIgnoredKinds(kinds ...string) Option {
	return func(options *options) {
		options.ignoredKinds.Add(kinds...)
	}
}

// WithDedup suppresses repeat reports of the same fault site. A repeat is
// a fault with the same kind, file, and line seen within the window while
// it remains among the `size` most recent sites. Zero disables dedup.
func WithDedup(size int, window time.Duration) Option {
	return func(options *options) {
		options.dedupSize = size
		options.dedupWindow = window
	}
}

// WithSinks appends delivery sinks. Every handled report is shipped to
// each sink in order.
func WithSinks(sinks ...Sink) Option {
	return func(options *options) {
		options.sinks = append(options.sinks, sinks...)
	}
}

// WithServiceName overrides the service name stamped on reports.
func WithServiceName(name string) Option {
	return func(options *options) {
		options.service = name
	}
}

// WithVersion overrides the version stamped on reports.
func WithVersion(version string) Option {
	return func(options *options) {
		options.version = version
	}
}

// WithClock replaces the clock used for report timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(options *options) {
		options.clock = clock
	}
}
