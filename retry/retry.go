// Package retry calls an operation repeatedly until it succeeds, its error
// class rules out another attempt, or the attempt budget is spent.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/faultline-labs/faultline/errdata"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/safe"
	"github.com/faultline-labs/faultline/trace"
)

// ErrInvalidDelay means a configured delay was negative or the initial delay
// exceeded the cap.
var ErrInvalidDelay = errors.New("invalid retry delay")

// FailureCause enumerates the reason a retry loop stopped.
type FailureCause int

const (
	Success FailureCause = iota
	MaxAttemptsReached
	PersistentErrorEncountered
	ContextDone
)

// String implements fmt.Stringer.
func (c FailureCause) String() string {
	switch c {
	case Success:
		return "success"
	case MaxAttemptsReached:
		return "max attempts reached"
	case PersistentErrorEncountered:
		return "persistent error"
	case ContextDone:
		return "context done"
	default:
		return "unknown"
	}
}

type options struct {
	maxAttempts    int
	initialDelay   time.Duration
	maxDelay       time.Duration
	constantDelay  time.Duration
	constantMode   bool
	treatUnknownAs errclass.Class
	clock          clockwork.Clock
}

type Option func(options *options)

// WithMaxAttempts caps how many times the function may be called.
// Zero or negative means no cap.
func WithMaxAttempts(maxAttempts int) Option {
	return func(options *options) {
		options.maxAttempts = maxAttempts
	}
}

// WithDelays bounds the jittered exponential backoff between attempts.
func WithDelays(initial, maxDelay time.Duration) Option {
	return func(options *options) {
		options.initialDelay = initial
		options.maxDelay = maxDelay
		options.constantMode = false
	}
}

// WithConstantDelay replaces the exponential backoff with the same fixed
// delay before every attempt. Zero removes the wait entirely, which keeps
// tests fast.
func WithConstantDelay(delay time.Duration) Option {
	return func(options *options) {
		options.constantDelay = delay
		options.constantMode = true
	}
}

// WithClock allows users to mock the internal clock used for time calculations for testing purposes.
func WithClock(clock clockwork.Clock) Option {
	return func(options *options) {
		options.clock = clock
	}
}

// WithUnknownErrorsAs decides how errors of `Unknown` class are handled.
// Use `errclass.Transient` if these cases should be retried (default); or
// Use `errclass.Persistent` if they should not be retried.
func WithUnknownErrorsAs(class errclass.Class) Option {
	return func(options *options) {
		options.treatUnknownAs = class
	}
}

// Retrier wraps many settings in order to provide a highly customized retry function.
type Retrier struct {
	opts options
}

// NewRetrier creates a new Retrier which provides identical functionality for each use.
func NewRetrier(opts ...Option) (*Retrier, error) {
	// Set up default options
	options := options{
		initialDelay:   time.Second * 5,
		maxDelay:       time.Minute,
		treatUnknownAs: errclass.Transient,
		clock:          clockwork.NewRealClock(),
	}

	// Apply provided options
	for _, opt := range opts {
		opt(&options)
	}

	switch {
	case options.constantMode && options.constantDelay < 0:
		return nil, trace.WrapError(ErrInvalidDelay)
	case !options.constantMode && (options.initialDelay <= 0 || options.maxDelay < options.initialDelay):
		return nil, trace.WrapError(ErrInvalidDelay)
	}

	return &Retrier{
		opts: options,
	}, nil
}

// Stats provides information on why and how a retry ultimately failed.
type Stats struct {
	AttemptNumber int
	Duration      time.Duration
	Cause         FailureCause
}

// Try will execute `f` until it returns nil, the context is done, or another
// optional condition is met. A non-nil result is the operation's final error
// carrying Stats and log fields describing the retry outcome.
func (r *Retrier) Try(ctx context.Context, f func() error) error {
	var err error
	var cause FailureCause
	attempt := 1
	calls := 0
	started := r.opts.clock.Now()

	// fresh backoff state on every use of `Try` so a Retrier can be shared
	delays := r.newBackoff()

retryLoop:
	for ; ; attempt++ {
		// stop if context is done
		if ctx.Err() != nil {
			// if the error isn't set yet, set to the context error
			if err == nil {
				err = trace.WrapError(ctx.Err())
			}
			cause = ContextDone
			break retryLoop
		}

		// stop if max attempts reached
		if err != nil && r.opts.maxAttempts > 0 && attempt > r.opts.maxAttempts {
			cause = MaxAttemptsReached
			break retryLoop
		}

		// execute func catching any panic as an error
		err = safe.Run(f)
		calls++

		// stop if successful or error is persistent
		class := errclass.Of(err)
		if class == errclass.Unknown {
			class = r.opts.treatUnknownAs
		}

		switch class {
		case errclass.Nil:
			cause = Success
			break retryLoop
		case errclass.Panic, errclass.Persistent:
			cause = PersistentErrorEncountered
			break retryLoop
		}

		// otherwise wait for the next calculated delay
		r.wait(ctx, delays.next())
	}

	if err == nil {
		return nil
	}

	err = errdata.Attach(Stats{
		AttemptNumber: attempt,
		Duration:      r.opts.clock.Since(started),
		Cause:         cause,
	}, err)
	return errfields.Add(err,
		slog.Int("retry_attempts", calls),
		slog.String("retry_outcome", cause.String()),
	)
}

// wait blocks for duration d or until the context is done.
func (r *Retrier) wait(ctx context.Context, d time.Duration) {
	delay := r.opts.clock.NewTimer(d)

	select {
	case <-delay.Chan():
	case <-ctx.Done():
		if !delay.Stop() {
			<-delay.Chan()
		}
	}
}
