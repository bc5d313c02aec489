package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalLimiterFirstAttemptImmediate(t *testing.T) {
	l := NewIntervalLimiter(time.Hour)
	fired := 0
	l.after = func(d time.Duration) <-chan time.Time {
		fired++
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	require.NoError(t, l.Wait(context.Background()))
	assert.Zero(t, fired, "first attempt must not wait")

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 1, fired)

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, fired)
}

func TestIntervalLimiterCanceled(t *testing.T) {
	l := NewIntervalLimiter(time.Hour)
	l.after = func(d time.Duration) <-chan time.Time {
		return make(chan time.Time) // never fires
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx)) // first pass is free

	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestNoLimit(t *testing.T) {
	require.NoError(t, NoLimit{}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NoLimit{}.Wait(ctx), context.Canceled)
}
