// Package clock maps simulation minutes to wall time. Two implementations
// satisfy one contract: FastClock never sleeps, RealTimeClock paces the loop
// against the wall clock scaled by a speed factor.
package clock

import (
	"context"
	"math"
	"time"
)

// Clock is the engine's view of time. WaitUntil must be interruptible via
// the context and must return immediately for overdue timestamps.
type Clock interface {
	// Now returns the current simulation time in minutes.
	Now() float64
	// WaitUntil suspends until the simulation reaches the given minute.
	WaitUntil(ctx context.Context, simMinute float64) error
	// SpeedFactor is the sim-minutes-per-real-minute multiplier, > 0.
	// A clock that never sleeps reports +Inf.
	SpeedFactor() float64
}

// FastClock advances instantly to whatever timestamp is waited on. Used for
// analysis runs and tests.
type FastClock struct {
	current float64
}

// NewFastClock creates a fast clock starting at the given sim-minute.
func NewFastClock(start float64) *FastClock {
	return &FastClock{current: start}
}

func (c *FastClock) Now() float64 { return c.current }

func (c *FastClock) WaitUntil(ctx context.Context, simMinute float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if simMinute > c.current {
		c.current = simMinute
	}
	return nil
}

func (c *FastClock) SpeedFactor() float64 { return math.Inf(1) }

// RealTimeClock paces simulation minutes against the wall clock. A speed
// factor of 1 runs in real time; 60 runs one sim-hour per wall-minute.
type RealTimeClock struct {
	startWall time.Time
	startSim  float64
	speed     float64
}

// NewRealTimeClock creates a real-time clock anchored at the current wall
// time. speed must be > 0.
func NewRealTimeClock(startSim, speed float64) *RealTimeClock {
	return &RealTimeClock{
		startWall: time.Now(),
		startSim:  startSim,
		speed:     speed,
	}
}

func (c *RealTimeClock) Now() float64 {
	elapsed := time.Since(c.startWall).Seconds()
	return c.startSim + elapsed*c.speed/60
}

// WaitUntil sleeps until the wall clock reaches the target sim-minute.
// Overdue targets return immediately; there is no catch-up sleep.
func (c *RealTimeClock) WaitUntil(ctx context.Context, simMinute float64) error {
	delta := simMinute - c.Now()
	if delta <= 0 {
		return ctx.Err()
	}
	d := time.Duration(delta * 60 / c.speed * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RealTimeClock) SpeedFactor() float64 { return c.speed }
