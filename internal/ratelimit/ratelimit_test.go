package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJittered_FirstCallDoesNotWait(t *testing.T) {
	r := NewJittered(time.Hour, time.Hour)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestJittered_SpacesCalls(t *testing.T) {
	r := NewJittered(30*time.Millisecond, 40*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Wait(ctx))
	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestJittered_Cancelled(t *testing.T) {
	r := NewJittered(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestJittered_DelayRange(t *testing.T) {
	r := NewJittered(10*time.Millisecond, 20*time.Millisecond)
	for i := 0; i < 50; i++ {
		d := r.calculateDelay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}

	fixed := NewJittered(5*time.Millisecond, 0)
	assert.Equal(t, 5*time.Millisecond, fixed.calculateDelay())
}
