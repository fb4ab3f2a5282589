package analytics

import (
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/economy"
)

// dynamicsWindow is how many recent snapshots the indicators look at.
const dynamicsWindow = 48

// MarketDynamics summarizes an item's recent behavior.
type MarketDynamics struct {
	ItemID            string  `json:"item_id"`
	SupplyDemandRatio float64 `json:"supply_demand_ratio"`
	PriceElasticity   float64 `json:"price_elasticity"` // %Δprice / %Δsupply over the window
	VolatilityIndex   float64 `json:"volatility_index"` // Stdev of tick returns
	TrendStrength     float64 `json:"trend_strength"`   // |slope| / base price
	SupportLevel      float64 `json:"support_level"`    // p10 of recent prices
	ResistanceLevel   float64 `json:"resistance_level"` // p90 of recent prices
	AverageVolume     float64 `json:"average_volume"`
	MarketEfficiency  float64 `json:"market_efficiency"` // 1 = trading at equilibrium
}

// AnalyzeMarketDynamics computes indicators over the item's recent history.
func AnalyzeMarketDynamics(it *economy.Item) (*MarketDynamics, error) {
	if len(it.PriceHistory) < minForecastHistory {
		return nil, fmt.Errorf("%w: item %s has %d snapshots, need %d",
			ErrInsufficientHistory, it.ID, len(it.PriceHistory), minForecastHistory)
	}
	hist := it.RecentHistory(dynamicsWindow)
	prices := make([]float64, len(hist))
	volumes := make([]float64, len(hist))
	for i, s := range hist {
		prices[i] = s.Price
		volumes[i] = float64(s.Volume)
	}

	d := &MarketDynamics{
		ItemID:            it.ID,
		SupplyDemandRatio: round(it.Supply/math.Max(1, it.Demand), 4),
		VolatilityIndex:   round(stdDev(returns(prices)), 4),
		SupportLevel:      round(percentile(prices, 10), 2),
		ResistanceLevel:   round(percentile(prices, 90), 2),
		AverageVolume:     round(mean(volumes), 2),
	}

	first, last := hist[0], hist[len(hist)-1]
	if first.Supply > 0 && first.Price > 0 && last.Supply != first.Supply {
		dp := (last.Price - first.Price) / first.Price
		ds := float64(last.Supply-first.Supply) / float64(first.Supply)
		d.PriceElasticity = round(dp/ds, 4)
	}

	slope, _ := linearFit(prices)
	if it.BasePrice > 0 {
		d.TrendStrength = round(math.Abs(slope)/it.BasePrice, 4)
	}

	if theo := it.EquilibriumPrice(); theo > 0 {
		d.MarketEfficiency = round(clamp01(1-math.Abs(it.CurrentPrice-theo)/theo), 4)
	}
	return d, nil
}
