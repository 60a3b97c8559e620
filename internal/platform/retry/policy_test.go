package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_GrowSaturatesAtMaxBackoff(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Minute}

	backoff := p.InitialBackoff
	for range 100 {
		backoff = p.grow(backoff)
		assert.Positive(t, backoff)
		assert.LessOrEqual(t, backoff, p.MaxBackoff)
	}
	assert.Equal(t, p.MaxBackoff, backoff)
}

func TestPolicy_GrowUncapped(t *testing.T) {
	p := Policy{}
	assert.Equal(t, 4*time.Second, p.grow(2*time.Second))
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{RateLimitBackoff: 30 * time.Second, MaxBackoff: time.Minute}

	assert.Equal(t, time.Second, p.delay(time.Second, Retry))
	assert.Equal(t, 30*time.Second, p.delay(time.Second, After))
	assert.Equal(t, time.Minute, p.delay(2*time.Minute, Retry))
}
