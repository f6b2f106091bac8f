package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, Exponential(10*time.Millisecond, 0))
	assert.Equal(t, 40*time.Millisecond, Exponential(10*time.Millisecond, 2))
	assert.Equal(t, 10*time.Millisecond, Exponential(10*time.Millisecond, -3))
	assert.Equal(t, time.Duration(0), Exponential(0, 4))
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Hour, 100))
}

func TestExponentialWithJitterStaysInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := ExponentialWithJitter(5*time.Millisecond, 3)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 40*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), ExponentialWithJitter(0, 1))
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, Sleep(context.Background(), 0))
}
