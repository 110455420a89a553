package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/territory-controller/timectrl"
)

// Ticker is one controller cycle. TerritoryController, TowerController and
// TokenScorer implement it.
type Ticker interface {
	Tick(ctx context.Context, now time.Duration) error
}

// TickerFunc adapts a function to a Ticker.
type TickerFunc func(ctx context.Context, now time.Duration) error

// Tick calls f.
func (f TickerFunc) Tick(ctx context.Context, now time.Duration) error { return f(ctx, now) }

// Run steps clock and ticks until ctx is cancelled or a tick fails.
// Cancellation returns nil; a tick error is returned unchanged.
func Run(ctx context.Context, clock timectrl.Stepper, ticker Ticker) error {
	return RunFor(ctx, clock, ticker, 0)
}

// RunFor is Run bounded to matchLength of match time. A zero matchLength runs
// until cancellation.
func RunFor(ctx context.Context, clock timectrl.Stepper, ticker Ticker, matchLength time.Duration) error {
	if clock == nil || ticker == nil {
		return errors.New("clock and ticker are required")
	}
	for {
		if matchLength > 0 && clock.Elapsed() >= matchLength {
			return nil
		}
		now, err := clock.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("step clock: %w", err)
		}
		if err := ticker.Tick(ctx, now); err != nil {
			return err
		}
	}
}
