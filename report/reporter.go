package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/faultline-labs/faultline/buildinfo"
	"github.com/faultline-labs/faultline/collections"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/execenv"
	"github.com/faultline-labs/faultline/log/identity"
	"github.com/faultline-labs/faultline/trace"
	"github.com/faultline-labs/faultline/trace/argdump"
)

// Reporter composes fault reports and routes them to a logger, an output
// stream, and any configured sinks. Configuration is fixed at construction;
// a Reporter is safe for concurrent use.
type Reporter struct {
	includeTrace  bool
	renderer      *argdump.Renderer
	restrictToCLI bool
	outputOnlyCLI bool
	loggerOnly    bool
	logger        *slog.Logger
	output        io.Writer
	probe         execenv.Probe
	ignored       collections.Set[string]
	seen          *expirable.LRU[string, struct{}]
	sinks         []Sink
	service       string
	version       string
	clock         clockwork.Clock
}

// New builds a Reporter. Without options it includes stack traces, renders
// no arguments, writes to stdout, and detects the command line from the
// process terminals.
func New(opts ...Option) (*Reporter, error) {
	serviceName, _ := identity.WhoAmI()
	options := options{
		includeTrace: true,
		output:       os.Stdout,
		probe:        execenv.Detect(),
		ignoredKinds: collections.NewSet[string](),
		service:      serviceName,
		version:      buildinfo.Info.Version,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.output == nil {
		return nil, trace.WrapError(ErrNilOutput)
	}
	if options.probe == nil {
		return nil, trace.WrapError(ErrNilProbe)
	}
	if options.dedupSize < 0 || options.dedupWindow < 0 {
		return nil, trace.WrapError(ErrInvalidDedup)
	}

	renderer := options.renderer
	if renderer == nil {
		var err error
		renderer, err = argdump.New(options.rendererOpts...)
		if err != nil {
			return nil, err
		}
	}

	var seen *expirable.LRU[string, struct{}]
	if options.dedupSize > 0 && options.dedupWindow > 0 {
		seen = expirable.NewLRU[string, struct{}](options.dedupSize, nil, options.dedupWindow)
	}

	return &Reporter{
		includeTrace:  options.includeTrace,
		renderer:      renderer,
		restrictToCLI: options.restrictToCLI,
		outputOnlyCLI: options.outputOnlyCLI,
		loggerOnly:    options.loggerOnly,
		logger:        options.logger,
		output:        options.output,
		probe:         options.probe,
		ignored:       options.ignoredKinds,
		seen:          seen,
		sinks:         options.sinks,
		service:       options.service,
		version:       options.version,
		clock:         options.clock,
	}, nil
}

// Handle reports a fault. The returned Disposition says what was done;
// the error carries output or sink delivery failures, joined, never
// retried here.
func (r *Reporter) Handle(ctx context.Context, fault Fault, frames trace.Trace) (Disposition, error) {
	return r.handle(ctx, fault, frames, errclass.Unknown)
}

func (r *Reporter) handle(ctx context.Context, fault Fault, frames trace.Trace, class errclass.Class) (Disposition, error) {
	// Outside a command line the reporter may be configured to stand down
	// entirely: no routing, no side effects.
	if r.restrictToCLI && !r.probe.CommandLine() {
		return Disposition{}, nil
	}

	if r.ignored.Contains(fault.Kind) {
		return Disposition{Handled: true}, nil
	}

	if r.seen != nil {
		if _, dup := r.seen.Get(fault.signature()); dup {
			return Disposition{Handled: true, Suppressed: true}, nil
		}
		r.seen.Add(fault.signature(), struct{}{})
	}

	rep := r.newReport(fault, frames, class)
	disposition := Disposition{Handled: true}

	if r.logger != nil {
		r.logger.ErrorContext(ctx, rep.Text, slog.Any("report", rep))
		disposition.Logged = true
	}

	var errs []error

	if !r.loggerOnly && (r.probe.CommandLine() || !r.outputOnlyCLI) {
		if _, err := fmt.Fprintln(r.output, rep.Text); err != nil {
			errs = append(errs, trace.WrapError(err))
		} else {
			disposition.Output = true
		}
	}

	for _, sink := range r.sinks {
		if err := sink.Ship(ctx, rep); err != nil {
			errs = append(errs, err)
		}
	}

	return disposition, errors.Join(errs...)
}

func (r *Reporter) newReport(fault Fault, frames trace.Trace, class errclass.Class) Report {
	return Report{
		ID:         xid.New().String(),
		Service:    r.service,
		Version:    r.version,
		Class:      class.String(),
		Fault:      fault,
		Text:       r.compose(fault, frames),
		OccurredAt: r.clock.Now().UTC(),
	}
}

// compose renders the report text: the fault header, and when enabled a
// stack trace with one line per frame in call order. The text carries no
// trailing newline; the output stream adds one on emission.
func (r *Reporter) compose(fault Fault, frames trace.Trace) string {
	var b strings.Builder
	b.WriteString(fault.Header())
	if !r.includeTrace {
		return b.String()
	}

	b.WriteString("\nStack trace:")
	for i, frame := range frames {
		fmt.Fprintf(&b, "\n%3d. ", i+1)
		if frame.Owner != "" {
			b.WriteString(frame.Owner)
			b.WriteString("->")
		}
		b.WriteString(frame.Function)
		b.WriteString("() ")
		b.WriteString(frame.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(frame.Line))
		b.WriteString(r.renderer.Render(frame, i+1))
	}
	return b.String()
}
