// Package economy provides per-item market state and the pricing model.
package economy

import (
	"math"

	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/entropy"
)

// MaxPriceHistory bounds each item's snapshot history.
const MaxPriceHistory = 500

// Volatility bounds.
const (
	MinVolatility = 0.01
	MaxVolatility = 1.0
)

// Drift noise as a fraction of the current level.
const (
	supplyNoiseScale = 0.02
	demandNoiseScale = 0.03
)

// Trend classifies the most recent price move.
type Trend string

const (
	TrendStable   Trend = "stable"
	TrendRising   Trend = "rising"
	TrendFalling  Trend = "falling"
	TrendVolatile Trend = "volatile"
	TrendSpiking  Trend = "spiking"
	TrendCrashed  Trend = "crashed"
)

// PriceSnapshot is one tick of an item's history.
type PriceSnapshot struct {
	Tick   int     `json:"tick" db:"tick"`
	Price  float64 `json:"price" db:"price"`
	Supply int     `json:"supply" db:"supply"`
	Demand int     `json:"demand" db:"demand"`
	Volume int     `json:"volume" db:"volume"` // Units traded during this tick
}

// Item is the mutable market state for one tradable item.
type Item struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Category catalog.Category `json:"category"`

	BasePrice  float64 `json:"base_price"` // Reference price, never changes
	BaseSupply float64 `json:"base_supply"`
	BaseDemand float64 `json:"base_demand"`

	CurrentPrice float64 `json:"current_price"`
	Supply       float64 `json:"supply"`
	Demand       float64 `json:"demand"`
	Volatility   float64 `json:"volatility"`
	Trend        Trend   `json:"trend"`

	PriceHistory   []PriceSnapshot `json:"price_history"`
	ActiveListings []*Listing      `json:"active_listings"`
	TotalVolume    int             `json:"total_volume"`
	LastTradePrice float64         `json:"last_trade_price"`
}

// NewItem creates market state from a catalog definition.
func NewItem(def catalog.ItemDefinition) *Item {
	name := def.Name
	if name == "" {
		name = def.ID
	}
	return &Item{
		ID:             def.ID,
		Name:           name,
		Category:       def.Category,
		BasePrice:      def.BasePrice,
		BaseSupply:     math.Max(1, def.BaseSupply),
		BaseDemand:     math.Max(1, def.BaseDemand),
		CurrentPrice:   math.Max(1, math.Round(def.BasePrice)),
		Supply:         math.Max(1, def.BaseSupply),
		Demand:         math.Max(1, def.BaseDemand),
		Volatility:     clamp(def.Volatility, MinVolatility, MaxVolatility),
		Trend:          TrendStable,
		LastTradePrice: def.BasePrice,
	}
}

// PricingParams carries the run configuration the price step needs.
type PricingParams struct {
	DemandElasticity float64
	InflationRate    float64
	VolatilityDecay  float64
}

// EquilibriumPrice is the price implied purely by the demand/supply ratio.
func (it *Item) EquilibriumPrice() float64 {
	return it.BasePrice * (it.Demand / math.Max(1, it.Supply))
}

// Drift applies background supply/demand noise. Both levels revert toward
// their base values at rate reversion; supply noise is 2% and demand noise 3%
// of the current level. Demand reverts at the same supply-elasticity rate.
// Draws two Gaussians, supply first.
func (it *Item) Drift(src *entropy.Source, reversion float64) {
	supplyShock := src.Gaussian()
	demandShock := src.Gaussian()

	it.Supply += (it.BaseSupply-it.Supply)*reversion + supplyShock*it.Supply*supplyNoiseScale
	it.Demand += (it.BaseDemand-it.Demand)*reversion + demandShock*it.Demand*demandNoiseScale
	it.ClampLevels()
}

// Reprice runs the once-per-tick price recalculation and returns the
// fractional price change. Volatility decays before the new price is drawn.
// Draws one Gaussian.
func (it *Item) Reprice(src *entropy.Source, p PricingParams) float64 {
	it.Volatility = clamp(it.Volatility*p.VolatilityDecay, MinVolatility, MaxVolatility)

	current := it.CurrentPrice
	adjustment := (it.EquilibriumPrice() - current) * p.DemandElasticity
	noise := src.Gaussian() * current * it.Volatility
	inflation := current * p.InflationRate

	next := math.Max(1, math.Round(current+adjustment+noise+inflation))
	change := (next - current) / current

	it.CurrentPrice = next
	it.Trend = ClassifyTrend(change, it.Trend)

	// Volatility self-reinforces with the size of the realized move.
	it.Volatility = clamp(it.Volatility+math.Abs(change)*0.1, MinVolatility, MaxVolatility)

	return change
}

// ClassifyTrend maps a fractional price change onto a trend, checking the
// thresholds in precedence order. Moves between 2% and 10% in either
// direction are caught by rising/falling; anything left keeps the previous
// trend unless it exceeds 5%.
func ClassifyTrend(change float64, previous Trend) Trend {
	abs := math.Abs(change)
	switch {
	case abs < 0.01:
		return TrendStable
	case change > 0.10:
		return TrendSpiking
	case change > 0.02:
		return TrendRising
	case change < -0.10:
		return TrendCrashed
	case change < -0.02:
		return TrendFalling
	case abs > 0.05:
		return TrendVolatile
	default:
		return previous
	}
}

// AdjustVolatility adds delta and clamps to [MinVolatility, MaxVolatility].
func (it *Item) AdjustVolatility(delta float64) {
	it.Volatility = clamp(it.Volatility+delta, MinVolatility, MaxVolatility)
}

// ClampLevels enforces supply >= 1 and demand >= 1.
func (it *Item) ClampLevels() {
	if it.Supply < 1 || math.IsNaN(it.Supply) {
		it.Supply = 1
	}
	if it.Demand < 1 || math.IsNaN(it.Demand) {
		it.Demand = 1
	}
}

// Record appends a snapshot for tick and trims history to MaxPriceHistory.
// A tick not after the last recorded one is ignored.
func (it *Item) Record(tick, volume int) {
	if n := len(it.PriceHistory); n > 0 && it.PriceHistory[n-1].Tick >= tick {
		return
	}
	it.PriceHistory = append(it.PriceHistory, PriceSnapshot{
		Tick:   tick,
		Price:  it.CurrentPrice,
		Supply: int(math.Round(it.Supply)),
		Demand: int(math.Round(it.Demand)),
		Volume: volume,
	})
	if len(it.PriceHistory) > MaxPriceHistory {
		trimmed := make([]PriceSnapshot, MaxPriceHistory)
		copy(trimmed, it.PriceHistory[len(it.PriceHistory)-MaxPriceHistory:])
		it.PriceHistory = trimmed
	}
}

// RecentPrices returns up to the last n recorded prices, oldest first.
func (it *Item) RecentPrices(n int) []float64 {
	hist := it.RecentHistory(n)
	prices := make([]float64, len(hist))
	for i, s := range hist {
		prices[i] = s.Price
	}
	return prices
}

// RecentHistory returns up to the last n snapshots, oldest first.
func (it *Item) RecentHistory(n int) []PriceSnapshot {
	if n <= 0 || len(it.PriceHistory) == 0 {
		return nil
	}
	start := len(it.PriceHistory) - n
	if start < 0 {
		start = 0
	}
	return it.PriceHistory[start:]
}

// PriceChange returns the fractional change from base price to current price.
func (it *Item) PriceChange() float64 {
	if it.BasePrice <= 0 {
		return 0
	}
	return (it.CurrentPrice - it.BasePrice) / it.BasePrice
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
