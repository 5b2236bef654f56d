package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialEnvelope(t *testing.T) {
	t.Parallel()

	b := &exponential{initial: time.Second, max: 8 * time.Second}

	// the envelope doubles each attempt until it hits the cap, and each
	// drawn delay stays strictly below it
	envelopes := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, want := range envelopes {
		d := b.next()
		assert.Equal(t, want, b.envelope, "attempt %d", i+1)
		assert.GreaterOrEqual(t, d, time.Duration(0), "attempt %d", i+1)
		assert.Less(t, d, want, "attempt %d", i+1)
	}
}

func TestConstantDelay(t *testing.T) {
	t.Parallel()

	b := &constant{delay: 3 * time.Second}
	for range 4 {
		assert.Equal(t, 3*time.Second, b.next())
	}

	zero := &constant{}
	assert.Equal(t, time.Duration(0), zero.next())
}
