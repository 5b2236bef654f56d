// Package dispatch queues fault reports and delivers them to a set of
// sinks in the background, so report handling never waits on delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/log"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/safe"
	"github.com/faultline-labs/faultline/safe/errgroup"
	"github.com/faultline-labs/faultline/trace"
)

const (
	defaultQueueSize    = 256
	defaultWorkers      = 4
	defaultDrainTimeout = 5 * time.Second
)

var (
	ErrNoSinks       = errors.New("no sinks supplied")
	ErrQueueFull     = errors.New("report queue is full")
	ErrInvalidOption = errors.New("queue size, worker count, and drain timeout must be positive")
)

type options struct {
	logger       *slog.Logger
	queueSize    int
	workers      int
	drainTimeout time.Duration
}

// Option is an option func for New.
type Option func(options *options)

// WithLogger sets the logger that records delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithQueueSize sets how many reports may wait for delivery before Ship
// starts dropping them.
func WithQueueSize(n int) Option {
	return func(options *options) {
		options.queueSize = n
	}
}

// WithWorkers sets how many reports are delivered concurrently.
func WithWorkers(n int) Option {
	return func(options *options) {
		options.workers = n
	}
}

// WithDrainTimeout bounds how long deliveries may take once Run starts
// draining the queue on shutdown.
func WithDrainTimeout(d time.Duration) Option {
	return func(options *options) {
		options.drainTimeout = d
	}
}

// Dispatcher is a Sink that accepts reports instantly and fans each one
// out to the wrapped sinks from a pool of background workers.
type Dispatcher struct {
	sinks        []report.Sink
	queue        chan report.Report
	workers      int
	drainTimeout time.Duration
	logger       *slog.Logger
}

var _ report.Sink = (*Dispatcher)(nil)

// New creates a Dispatcher delivering to the given sinks. Nothing is
// delivered until Run is started.
func New(sinks []report.Sink, opts ...Option) (*Dispatcher, error) {
	options := options{
		logger:       log.NewNilLogger(),
		queueSize:    defaultQueueSize,
		workers:      defaultWorkers,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if len(sinks) == 0 {
		return nil, trace.WrapError(ErrNoSinks)
	}
	if options.queueSize < 1 || options.workers < 1 || options.drainTimeout <= 0 {
		return nil, trace.WrapError(ErrInvalidOption)
	}

	return &Dispatcher{
		sinks:        sinks,
		queue:        make(chan report.Report, options.queueSize),
		workers:      options.workers,
		drainTimeout: options.drainTimeout,
		logger:       options.logger,
	}, nil
}

// Name returns the name of this task for the purposes of logging.
func (d *Dispatcher) Name() string {
	return "report_dispatcher"
}

// Ship queues the report for delivery and returns immediately. When the
// queue is full the report is dropped and ErrQueueFull returned; Ship
// never blocks the caller.
func (d *Dispatcher) Ship(_ context.Context, rep report.Report) error {
	select {
	case d.queue <- rep:
		return nil
	default:
		err := errclass.Mark(trace.WrapError(ErrQueueFull), errclass.Transient)
		return errfields.Add(err, slog.String("report_id", rep.ID))
	}
}

// Run delivers queued reports until the context is done, then drains
// whatever is still queued before returning. Deliveries made while
// draining are bounded by the drain timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	group := errgroup.New()
	for range d.workers {
		group.Go(func() error {
			return d.work(ctx)
		})
	}
	return group.Wait()
}

func (d *Dispatcher) work(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return d.drain(context.WithoutCancel(ctx))
		}
		select {
		case rep := <-d.queue:
			d.deliver(ctx, rep)
		case <-ctx.Done():
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case rep := <-d.queue:
			d.deliver(ctx, rep)
		default:
			return nil
		}
	}
}

// deliver fans the report out to every sink. Failures are logged, never
// propagated; a panicking sink costs one delivery, not a worker.
func (d *Dispatcher) deliver(ctx context.Context, rep report.Report) {
	for _, sink := range d.sinks {
		err := safe.Run(func() error {
			return sink.Ship(ctx, rep)
		})
		if err != nil {
			d.logger.Error("report delivery failed",
				slog.String("sink", fmt.Sprintf("%T", sink)),
				slog.Any("report", rep),
				log.ErrAttr(err),
			)
		}
	}
}
