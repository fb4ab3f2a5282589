// Paced driver for live runs. Run computes a whole simulation at once; the
// Runner instead ticks it on a wall-clock interval so observers can watch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Tick calendar: one tick is one in-game hour.
const (
	TicksPerDay  = 24
	TicksPerWeek = 7 * TicksPerDay
)

// Runner drives a Simulation forward in real time.
type Runner struct {
	Sim      *Simulation
	Speed    float64       // Multiplier: 1.0 = one tick per Interval, 0 = paused
	Interval time.Duration // Base tick interval (default 1 second)

	// OnTick is called after every tick with the tick just processed.
	OnTick func(tick int)
}

// NewRunner creates a runner with default pacing.
func NewRunner(sim *Simulation) *Runner {
	return &Runner{
		Sim:      sim,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run ticks until the configured TotalTicks are reached or ctx is done.
// Blocks; returns ctx.Err() when cancelled early.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("runner started", "tick", r.Sim.CurrentTick(), "speed", r.Speed, "interval", r.Interval)
	defer func() {
		slog.Info("runner stopped", "tick", r.Sim.CurrentTick())
	}()

	for r.Sim.CurrentTick() < r.Sim.Config().TotalTicks {
		if r.Speed <= 0 {
			// Paused; check again shortly.
			if err := sleep(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		r.Sim.Tick()
		if r.OnTick != nil {
			r.OnTick(r.Sim.CurrentTick())
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(r.Interval) / r.Speed)
		if elapsed < target {
			if err := sleep(ctx, target-elapsed); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SimTime renders a tick as an in-game clock, e.g. "Day 2, 05:00".
func SimTime(tick int) string {
	if tick < 0 {
		tick = 0
	}
	day := tick/TicksPerDay + 1
	hour := tick % TicksPerDay
	return fmt.Sprintf("Day %d, %02d:00", day, hour)
}
