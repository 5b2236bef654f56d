package retry

import (
	"math/rand/v2"
	"time"
)

// backoff produces the delay before each successive attempt. Implementations
// are stateful, so every Try call works from a fresh instance.
type backoff interface {
	next() time.Duration
}

func (r *Retrier) newBackoff() backoff {
	if r.opts.constantMode {
		return &constant{delay: r.opts.constantDelay}
	}
	return &exponential{initial: r.opts.initialDelay, max: r.opts.maxDelay}
}

// exponential doubles the delay envelope on each attempt up to a cap, and
// draws the actual delay uniformly from [0, envelope). Full jitter, per
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type exponential struct {
	initial  time.Duration
	max      time.Duration
	envelope time.Duration
}

func (b *exponential) next() time.Duration {
	if b.envelope == 0 {
		b.envelope = b.initial
	} else {
		b.envelope = min(b.envelope*2, b.max)
	}

	// Panic prevention
	if b.envelope <= 0 {
		return 0
	}
	return rand.N(b.envelope)
}

// constant waits the same delay before every attempt. Zero is allowed.
type constant struct {
	delay time.Duration
}

func (b *constant) next() time.Duration {
	return b.delay
}
