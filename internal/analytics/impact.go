package analytics

import (
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
)

// ImpactStartTick is when the event under study begins.
const ImpactStartTick = 24

// ImpactRequest describes an A/B comparison: the same seeded run with and
// without one event on one item.
type ImpactRequest struct {
	Type          events.Type `json:"type"`
	ItemID        string      `json:"item_id"`
	Magnitude     float64     `json:"magnitude"`
	DurationTicks int         `json:"duration_ticks"`
	Seed          int64       `json:"seed"`

	// Config defaults to engine.DefaultConfig when nil.
	Config *engine.Config `json:"config,omitempty"`
	// Catalog defaults to catalog.Default when empty.
	Catalog []catalog.ItemDefinition `json:"catalog,omitempty"`
	// Actors defaults to the default population when nil; an empty non-nil
	// slice runs without actors.
	Actors []agents.Spec `json:"actors,omitempty"`
}

// ImpactReport is the price and volume difference the event produced.
type ImpactReport struct {
	ItemID        string      `json:"item_id"`
	Type          events.Type `json:"type"`
	Magnitude     float64     `json:"magnitude"`
	DurationTicks int         `json:"duration_ticks"`
	StartTick     int         `json:"start_tick"`
	Seed          int64       `json:"seed"`

	BaselinePrice  float64 `json:"baseline_price"` // Final price without the event
	EventPrice     float64 `json:"event_price"`
	PriceDelta     float64 `json:"price_delta"`
	PriceDeltaPct  float64 `json:"price_delta_pct"` // Fraction of the baseline price
	BaselineVolume int     `json:"baseline_volume"`
	EventVolume    int     `json:"event_volume"`
	VolumeDelta    int     `json:"volume_delta"`
	PeakPriceDelta float64 `json:"peak_price_delta"` // Largest absolute per-tick difference, signed
	PeakTick       int     `json:"peak_tick"`
}

// SimulateMarketEvent runs two simulations from the same seed, one with the
// event injected at ImpactStartTick, and reports the difference.
func SimulateMarketEvent(req ImpactRequest) (*ImpactReport, error) {
	cfg := engine.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if cfg.TotalTicks <= ImpactStartTick {
		return nil, fmt.Errorf("run of %d ticks ends before the event starts at tick %d", cfg.TotalTicks, ImpactStartTick)
	}
	defs := req.Catalog
	if len(defs) == 0 {
		defs = catalog.Default()
	}
	specs := req.Actors
	if specs == nil {
		specs = agents.DefaultSpecs(req.Seed)
	}

	evt := events.Event{
		Type:          req.Type,
		ItemID:        req.ItemID,
		Magnitude:     req.Magnitude,
		StartTick:     ImpactStartTick,
		DurationTicks: req.DurationTicks,
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}

	baseline := engine.New(cfg, req.Seed)
	if err := baseline.Initialize(defs, specs); err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	if _, ok := baseline.Item(req.ItemID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, req.ItemID)
	}
	shocked := engine.New(cfg, req.Seed)
	if err := shocked.Initialize(defs, specs); err != nil {
		return nil, fmt.Errorf("event run: %w", err)
	}
	if _, err := shocked.InjectEvent(evt); err != nil {
		return nil, err
	}

	baseline.Run()
	shocked.Run()

	b, _ := baseline.Item(req.ItemID)
	e, _ := shocked.Item(req.ItemID)

	rep := &ImpactReport{
		ItemID:         req.ItemID,
		Type:           req.Type,
		Magnitude:      req.Magnitude,
		DurationTicks:  req.DurationTicks,
		StartTick:      ImpactStartTick,
		Seed:           req.Seed,
		BaselinePrice:  b.CurrentPrice,
		EventPrice:     e.CurrentPrice,
		PriceDelta:     e.CurrentPrice - b.CurrentPrice,
		BaselineVolume: b.TotalVolume,
		EventVolume:    e.TotalVolume,
		VolumeDelta:    e.TotalVolume - b.TotalVolume,
	}
	if b.CurrentPrice > 0 {
		rep.PriceDeltaPct = round((e.CurrentPrice-b.CurrentPrice)/b.CurrentPrice, 4)
	}

	// Both histories cover the same ticks; pair them from the end.
	bh, eh := b.PriceHistory, e.PriceHistory
	n := min(len(bh), len(eh))
	bh, eh = bh[len(bh)-n:], eh[len(eh)-n:]
	for i := range bh {
		delta := eh[i].Price - bh[i].Price
		if math.Abs(delta) > math.Abs(rep.PeakPriceDelta) {
			rep.PeakPriceDelta = delta
			rep.PeakTick = eh[i].Tick
		}
	}
	return rep, nil
}
