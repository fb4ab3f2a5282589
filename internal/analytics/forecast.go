// Package analytics derives forecasts, market-dynamics indicators and event
// impact comparisons from simulated price history.
package analytics

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
)

var (
	// ErrInsufficientHistory is returned when an item has too few snapshots.
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrUnknownItem is returned when a simulation has no item with the id.
	ErrUnknownItem = errors.New("unknown item")
)

const (
	minForecastHistory = 3
	// Regression window, in snapshots.
	forecastWindow = 48
	minConfidence  = 0.1
	// Projected change beyond which a forecast recommends a trade.
	recommendationThreshold = 0.10
)

// Recommendation is the trading advice derived from a forecast.
type Recommendation string

const (
	Buy  Recommendation = "buy"
	Sell Recommendation = "sell"
	Hold Recommendation = "hold"
)

// ForecastPoint is one projected tick.
type ForecastPoint struct {
	Offset     int     `json:"offset"` // Ticks past the last snapshot, from 1
	Tick       int     `json:"tick"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

// Forecast projects an item's price forward from its recent trend.
type Forecast struct {
	ItemID          string          `json:"item_id"`
	CurrentPrice    float64         `json:"current_price"`
	Slope           float64         `json:"slope"` // Gold per tick
	Points          []ForecastPoint `json:"points"`
	ProjectedChange float64         `json:"projected_change"` // Fraction, last point vs current
	Recommendation  Recommendation  `json:"recommendation"`
	Reason          string          `json:"reason"`
}

// ForecastPrice fits a least-squares line to the last 48 snapshots and
// projects futureTicks ticks ahead. Confidence decays linearly with the
// offset, faster for volatile items, and never drops below 0.1.
func ForecastPrice(it *economy.Item, futureTicks int) (*Forecast, error) {
	if futureTicks <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", futureTicks)
	}
	if len(it.PriceHistory) < minForecastHistory {
		return nil, fmt.Errorf("%w: item %s has %d snapshots, need %d",
			ErrInsufficientHistory, it.ID, len(it.PriceHistory), minForecastHistory)
	}

	hist := it.RecentHistory(forecastWindow)
	prices := make([]float64, len(hist))
	for i, s := range hist {
		prices[i] = s.Price
	}
	slope, intercept := linearFit(prices)
	last := hist[len(hist)-1]

	f := &Forecast{
		ItemID:       it.ID,
		CurrentPrice: it.CurrentPrice,
		Slope:        round(slope, 4),
		Points:       make([]ForecastPoint, 0, futureTicks),
	}
	n := float64(futureTicks)
	for i := 1; i <= futureTicks; i++ {
		x := float64(len(prices) - 1 + i)
		price := math.Max(1, intercept+slope*x)
		conf := math.Max(minConfidence, 1-(float64(i)/n)*it.Volatility*5)
		f.Points = append(f.Points, ForecastPoint{
			Offset:     i,
			Tick:       last.Tick + i,
			Price:      round(price, 2),
			Confidence: conf,
		})
	}

	final := f.Points[len(f.Points)-1].Price
	if it.CurrentPrice > 0 {
		f.ProjectedChange = round((final-it.CurrentPrice)/it.CurrentPrice, 4)
	}
	pct := f.ProjectedChange * 100
	switch {
	case f.ProjectedChange > recommendationThreshold:
		f.Recommendation = Buy
		f.Reason = fmt.Sprintf("%s is projected to rise %.1f%% over %d ticks; buy before the move", it.Name, pct, futureTicks)
	case f.ProjectedChange < -recommendationThreshold:
		f.Recommendation = Sell
		f.Reason = fmt.Sprintf("%s is projected to fall %.1f%% over %d ticks; sell while prices hold", it.Name, -pct, futureTicks)
	default:
		f.Recommendation = Hold
		f.Reason = fmt.Sprintf("%s is projected to move %+.1f%% over %d ticks; no clear edge", it.Name, pct, futureTicks)
	}
	return f, nil
}

// ForecastItem looks up itemID in sim and forecasts it.
func ForecastItem(sim *engine.Simulation, itemID string, futureTicks int) (*Forecast, error) {
	it, ok := sim.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	return ForecastPrice(it, futureTicks)
}
