package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is read access to match time. Readers on other goroutines (API,
// visualization) depend on this rather than on the controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Elapsed returns the simulation time since the match started.
	Elapsed() time.Duration
}

// Stepper advances simulation time one tick per call. It is the stand-in for
// the host simulator's blocking step call.
type Stepper interface {
	SimClock
	Step(ctx context.Context) (time.Duration, error)
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime paces each step against the wall clock.
	RealTime Mode = iota
	// Accelerated steps as quickly as the caller asks, still by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	ticker      *time.Ticker

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns simulation time since StartTime. Implements SimClock.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// AddListener registers a callback invoked with the new simulation time after
// every step, on the stepping goroutine.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances simulation time by one Tick and returns the new elapsed match
// time. In RealTime mode it blocks until the next wall-clock tick or until ctx
// is done.
func (tc *TimeController) Step(ctx context.Context) (time.Duration, error) {
	if tc.Mode == RealTime {
		tc.mu.Lock()
		if tc.ticker == nil {
			tc.ticker = time.NewTicker(tc.Tick)
		}
		ticker := tc.ticker
		tc.mu.Unlock()

		select {
		case <-ctx.Done():
			return tc.Elapsed(), ctx.Err()
		case <-ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return tc.Elapsed(), err
	}

	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	simTime := tc.currentTime
	elapsed := simTime.Sub(tc.StartTime)
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(simTime)
	}
	return elapsed, nil
}

// Stop releases the wall-clock ticker used in RealTime mode.
func (tc *TimeController) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.ticker != nil {
		tc.ticker.Stop()
		tc.ticker = nil
	}
}
