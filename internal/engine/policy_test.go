package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicySeededAverage(t *testing.T) {
	p := NewTimeoutPolicy(DefaultPolicy())
	assert.Equal(t, 20*time.Second, p.Average())
}

func TestPolicySlowWriteAboveAverage(t *testing.T) {
	p := NewTimeoutPolicy(DefaultPolicy())

	// 25s > 20s is slow, and at or above the ceiling so the average is untouched.
	assert.True(t, p.Observe(25*time.Second))
	assert.Equal(t, 20*time.Second, p.Average())
}

func TestPolicyDampedUpdate(t *testing.T) {
	p := NewTimeoutPolicy(DefaultPolicy())

	assert.False(t, p.Observe(10*time.Second))
	// (20 + 10) / 2 + 3
	assert.Equal(t, 18*time.Second, p.Average())

	assert.False(t, p.Observe(0))
	// (18 + 0) / 2 + 3
	assert.Equal(t, 12*time.Second, p.Average())

	// 14s is now slow, and still folded because it is under the ceiling.
	assert.True(t, p.Observe(14*time.Second))
	assert.Equal(t, 16*time.Second, p.Average())
}

func TestPolicyFastWritesLowerAverage(t *testing.T) {
	p := NewTimeoutPolicy(DefaultPolicy())
	prev := p.Average()
	for i := 0; i < 5; i++ {
		p.Observe(time.Second)
		assert.Less(t, p.Average(), prev)
		prev = p.Average()
	}
	// Converges towards dt + 2*headroom.
	assert.Greater(t, p.Average(), 7*time.Second)
}

func TestPolicyCustomUnit(t *testing.T) {
	p := NewTimeoutPolicy(PolicyConfig{Unit: time.Millisecond, InitialAverage: 20, FoldCeiling: 15, Headroom: 3})
	assert.True(t, p.Observe(21*time.Millisecond))
	assert.False(t, p.Observe(4*time.Millisecond))
	assert.Equal(t, 15*time.Millisecond, p.Average())
}
