// Package events models time-windowed exogenous market shocks. An event's
// strength follows a half sine over its window: zero at both ends, peaking
// at the midpoint.
package events

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
)

// Type enumerates the kinds of market event.
type Type string

const (
	Shortage    Type = "shortage"
	Flood       Type = "flood"
	DemandSpike Type = "demand_spike"
	Crash       Type = "crash"
	Patch       Type = "patch"
	Seasonal    Type = "seasonal"
	BotWave     Type = "bot_wave"
	GuildDump   Type = "guild_dump"
)

// AllTypes lists every event type in the order random generation indexes them.
var AllTypes = []Type{Shortage, Flood, DemandSpike, Crash, Patch, Seasonal, BotWave, GuildDump}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	for _, k := range AllTypes {
		if k == t {
			return true
		}
	}
	return false
}

var (
	ErrUnknownType      = errors.New("unknown event type")
	ErrInvalidWindow    = errors.New("event window must start at tick >= 0 and last at least one tick")
	ErrInvalidMagnitude = errors.New("event magnitude must be within [0, 1]")
)

// Event is a market shock active over [StartTick, StartTick+DurationTicks].
// Targeting precedence: ItemID, then Category, then every item.
type Event struct {
	ID            string           `json:"id" db:"id"`
	Type          Type             `json:"type" db:"type"`
	ItemID        string           `json:"item_id,omitempty" db:"item_id"`
	Category      catalog.Category `json:"category,omitempty" db:"category"`
	Magnitude     float64          `json:"magnitude" db:"magnitude"` // 0.0–1.0
	StartTick     int              `json:"start_tick" db:"start_tick"`
	DurationTicks int              `json:"duration_ticks" db:"duration_ticks"`
	Description   string           `json:"description" db:"description"`
}

// Validate rejects malformed events before they reach an engine.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if e.StartTick < 0 || e.DurationTicks <= 0 {
		return fmt.Errorf("%w (start=%d duration=%d)", ErrInvalidWindow, e.StartTick, e.DurationTicks)
	}
	if e.Magnitude < 0 || e.Magnitude > 1 || math.IsNaN(e.Magnitude) {
		return fmt.Errorf("%w (got %v)", ErrInvalidMagnitude, e.Magnitude)
	}
	return nil
}

// EndTick is the last tick of the window.
func (e Event) EndTick() int {
	return e.StartTick + e.DurationTicks
}

// Active reports whether tick falls inside the window.
func (e Event) Active(tick int) bool {
	return e.DurationTicks > 0 && tick >= e.StartTick && tick <= e.EndTick()
}

// Effect returns the event's strength at tick: magnitude * sin(progress * π).
func (e Event) Effect(tick int) float64 {
	if !e.Active(tick) || tick == e.StartTick || tick == e.EndTick() {
		return 0
	}
	progress := float64(tick-e.StartTick) / float64(e.DurationTicks)
	return e.Magnitude * math.Sin(progress*math.Pi)
}

// Targets reports whether the event applies to it.
func (e Event) Targets(it *economy.Item) bool {
	switch {
	case e.ItemID != "":
		return it.ID == e.ItemID
	case e.Category != "":
		return it.Category == e.Category
	default:
		return true
	}
}

// Apply changes an item's supply, demand or volatility by a type-specific
// amount scaled by effect. Not idempotent: apply once per tick.
func Apply(t Type, it *economy.Item, effect float64) {
	if effect <= 0 {
		return
	}
	switch t {
	case Shortage:
		it.Supply *= 1 - effect*0.1
	case Flood:
		it.Supply *= 1 + effect*0.1
	case DemandSpike:
		it.Demand *= 1 + effect*0.1
	case Crash:
		it.Demand *= 1 - effect*0.1
		it.AdjustVolatility(effect * 0.05)
	case Patch:
		it.Demand *= 1 + effect*0.05
		it.AdjustVolatility(effect * 0.1)
	case Seasonal:
		it.Demand *= 1 + effect*0.05
	case BotWave:
		it.Supply *= 1 + effect*0.15
		it.AdjustVolatility(effect * 0.02)
	case GuildDump:
		it.Supply *= 1 + effect*0.2
		it.AdjustVolatility(effect * 0.05)
	}
	it.ClampLevels()
}

// Describe renders the default description for an event on a named target.
func Describe(t Type, target string) string {
	switch t {
	case Shortage:
		return fmt.Sprintf("Supply of %s dries up", target)
	case Flood:
		return fmt.Sprintf("The auction house is flooded with %s", target)
	case DemandSpike:
		return fmt.Sprintf("Demand for %s spikes", target)
	case Crash:
		return fmt.Sprintf("The market for %s crashes", target)
	case Patch:
		return fmt.Sprintf("A game patch shakes up %s", target)
	case Seasonal:
		return fmt.Sprintf("Seasonal interest in %s", target)
	case BotWave:
		return fmt.Sprintf("A wave of farming bots floods %s", target)
	case GuildDump:
		return fmt.Sprintf("A guild dumps its bank of %s", target)
	default:
		return fmt.Sprintf("Something happens to %s", target)
	}
}
