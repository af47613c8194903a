package clock

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastClockAdvancesInstantly(t *testing.T) {
	c := NewFastClock(0)
	require.NoError(t, c.WaitUntil(context.Background(), 1440))
	assert.Equal(t, 1440.0, c.Now())

	// Waiting on the past never moves time backwards.
	require.NoError(t, c.WaitUntil(context.Background(), 10))
	assert.Equal(t, 1440.0, c.Now())
	assert.True(t, math.IsInf(c.SpeedFactor(), 1), "fast mode reports +Inf")
}

func TestFastClockCancelled(t *testing.T) {
	c := NewFastClock(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.WaitUntil(ctx, 100))
}

func TestRealTimeClockOverdueReturnsImmediately(t *testing.T) {
	c := NewRealTimeClock(500, 60)
	start := time.Now()
	require.NoError(t, c.WaitUntil(context.Background(), 10))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRealTimeClockPacesWait(t *testing.T) {
	// 6000 sim-minutes per wall-minute: one sim-minute is 10ms.
	c := NewRealTimeClock(0, 6000)
	start := time.Now()
	require.NoError(t, c.WaitUntil(context.Background(), 5))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRealTimeClockWaitInterruptible(t *testing.T) {
	c := NewRealTimeClock(0, 1) // real time: 60 sim-minutes would take an hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.WaitUntil(ctx, 60)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRealTimeClockNowAdvances(t *testing.T) {
	c := NewRealTimeClock(100, 6000)
	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, c.Now(), 100.0)
	assert.Equal(t, 6000.0, c.SpeedFactor())
}
