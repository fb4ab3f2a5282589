package analytics

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
)

func widget() catalog.ItemDefinition {
	return catalog.ItemDefinition{
		ID: "widget", Name: "Widget", Category: catalog.CategoryTradeGood,
		BasePrice: 100, BaseSupply: 500, BaseDemand: 500, Volatility: 0.05,
	}
}

// itemWithPrices builds an item whose history is exactly prices.
func itemWithPrices(prices ...float64) *economy.Item {
	it := economy.NewItem(widget())
	it.PriceHistory = nil
	for i, p := range prices {
		it.CurrentPrice = p
		it.Record(i, i%3)
	}
	return it
}

func TestLinearFit_ExactLine(t *testing.T) {
	slope, intercept := linearFit([]float64{3, 5, 7, 9})
	if math.Abs(slope-2) > 1e-12 || math.Abs(intercept-3) > 1e-12 {
		t.Fatalf("slope=%v intercept=%v want 2,3", slope, intercept)
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{50, 10, 40, 20, 30}
	if got := percentile(xs, 0); got != 10 {
		t.Fatalf("p0=%v", got)
	}
	if got := percentile(xs, 50); got != 30 {
		t.Fatalf("p50=%v", got)
	}
	if got := percentile(xs, 100); got != 50 {
		t.Fatalf("p100=%v", got)
	}
	if xs[0] != 50 {
		t.Fatalf("input was sorted in place")
	}
}

func TestMeanAndStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := mean(xs); math.Abs(got-5) > 1e-12 {
		t.Fatalf("mean=%v want 5", got)
	}
	if got := stdDev(xs); math.Abs(got-2) > 1e-12 {
		t.Fatalf("population stdev=%v want 2", got)
	}
	if mean(nil) != 0 || stdDev([]float64{3}) != 0 {
		t.Fatalf("degenerate inputs should be 0")
	}
}

func TestForecast_InsufficientHistory(t *testing.T) {
	it := itemWithPrices(100, 101)
	if _, err := ForecastPrice(it, 5); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err=%v want ErrInsufficientHistory", err)
	}
	if _, err := AnalyzeMarketDynamics(it); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err=%v want ErrInsufficientHistory", err)
	}
}

func TestForecast_RisingTrendRecommendsBuy(t *testing.T) {
	it := itemWithPrices(100, 102, 104, 106, 108, 110)
	f, err := ForecastPrice(it, 10)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(f.Points) != 10 {
		t.Fatalf("points=%d", len(f.Points))
	}
	if math.Abs(f.Points[0].Price-112) > 1e-9 || math.Abs(f.Points[9].Price-130) > 1e-9 {
		t.Fatalf("projection %v..%v want 112..130", f.Points[0].Price, f.Points[9].Price)
	}
	if f.Points[0].Tick != 6 {
		t.Fatalf("first projected tick=%d want 6", f.Points[0].Tick)
	}
	if f.Recommendation != Buy {
		t.Fatalf("recommendation=%s want buy (change %v)", f.Recommendation, f.ProjectedChange)
	}
}

func TestForecast_FallingTrendRecommendsSell(t *testing.T) {
	it := itemWithPrices(110, 108, 106, 104, 102, 100)
	f, err := ForecastPrice(it, 10)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if f.Recommendation != Sell {
		t.Fatalf("recommendation=%s want sell", f.Recommendation)
	}
	flat := itemWithPrices(100, 100, 100, 100)
	f, err = ForecastPrice(flat, 10)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if f.Recommendation != Hold || f.Reason == "" {
		t.Fatalf("recommendation=%s reason=%q want hold", f.Recommendation, f.Reason)
	}
}

func TestForecast_ConfidenceStrictlyDecreases(t *testing.T) {
	it := itemWithPrices(100, 101, 99, 100, 102)
	it.Volatility = 0.1
	f, err := ForecastPrice(it, 12)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	for i := 1; i < len(f.Points); i++ {
		if f.Points[i].Confidence >= f.Points[i-1].Confidence {
			t.Fatalf("confidence not decreasing at %d: %v >= %v", i, f.Points[i].Confidence, f.Points[i-1].Confidence)
		}
	}

	// Calm items over a long horizon decay by tiny steps that must still register.
	calm := itemWithPrices(100, 100, 101, 100, 99, 100, 100, 101, 100, 100)
	calm.Volatility = 0.01
	f, err = ForecastPrice(calm, 600)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	for i := 1; i < len(f.Points); i++ {
		if f.Points[i].Confidence >= f.Points[i-1].Confidence {
			t.Fatalf("long horizon: offset %d conf=%v not below %v", f.Points[i].Offset, f.Points[i].Confidence, f.Points[i-1].Confidence)
		}
	}

	// Highly volatile items bottom out at the floor.
	it.Volatility = 1
	f, _ = ForecastPrice(it, 12)
	if got := f.Points[len(f.Points)-1].Confidence; got != 0.1 {
		t.Fatalf("floor=%v want 0.1", got)
	}
}

func TestForecastItem_UnknownItem(t *testing.T) {
	sim := engine.New(engine.DefaultConfig(), 1)
	if err := sim.Initialize([]catalog.ItemDefinition{widget()}, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := ForecastItem(sim, "nope", 5); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err=%v want ErrUnknownItem", err)
	}
}

func TestDynamics_Indicators(t *testing.T) {
	it := itemWithPrices(90, 95, 100, 105, 110, 100, 100, 100, 100, 100, 100)
	d, err := AnalyzeMarketDynamics(it)
	if err != nil {
		t.Fatalf("dynamics: %v", err)
	}
	if d.SupportLevel > d.ResistanceLevel {
		t.Fatalf("support %v above resistance %v", d.SupportLevel, d.ResistanceLevel)
	}
	if d.SupportLevel < 90 || d.ResistanceLevel > 110 {
		t.Fatalf("levels %v..%v outside observed prices", d.SupportLevel, d.ResistanceLevel)
	}
	if d.VolatilityIndex <= 0 {
		t.Fatalf("volatility index=%v want > 0", d.VolatilityIndex)
	}
	// Supply equals demand and price sits at base: fully efficient.
	if d.MarketEfficiency != 1 || d.SupplyDemandRatio != 1 {
		t.Fatalf("efficiency=%v ratio=%v", d.MarketEfficiency, d.SupplyDemandRatio)
	}
	if d.AverageVolume <= 0 {
		t.Fatalf("average volume=%v", d.AverageVolume)
	}
}

func TestDynamics_EfficiencyClamped(t *testing.T) {
	it := itemWithPrices(100, 100, 100)
	it.CurrentPrice = 1000 // far above equilibrium of 100
	d, err := AnalyzeMarketDynamics(it)
	if err != nil {
		t.Fatalf("dynamics: %v", err)
	}
	if d.MarketEfficiency != 0 {
		t.Fatalf("efficiency=%v want 0", d.MarketEfficiency)
	}
}

func TestSimulateMarketEvent_DemandSpike(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.TotalTicks = 48
	cfg.RandomEvents = false
	rep, err := SimulateMarketEvent(ImpactRequest{
		Type:          events.DemandSpike,
		ItemID:        "widget",
		Magnitude:     0.8,
		DurationTicks: 20,
		Seed:          42,
		Config:        &cfg,
		Catalog:       []catalog.ItemDefinition{widget()},
		Actors:        []agents.Spec{},
	})
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if rep.PeakPriceDelta <= 0 {
		t.Fatalf("peak delta=%v want positive", rep.PeakPriceDelta)
	}
	if rep.PeakTick <= ImpactStartTick {
		t.Fatalf("peak tick=%d before the event started", rep.PeakTick)
	}
}

func TestSimulateMarketEvent_Validation(t *testing.T) {
	if _, err := SimulateMarketEvent(ImpactRequest{Type: events.Flood, ItemID: "nope", Magnitude: 0.5, DurationTicks: 6, Seed: 1}); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err=%v want ErrUnknownItem", err)
	}
	if _, err := SimulateMarketEvent(ImpactRequest{Type: events.Flood, ItemID: "copper_ore", Magnitude: 2, DurationTicks: 6, Seed: 1}); !errors.Is(err, events.ErrInvalidMagnitude) {
		t.Fatalf("err=%v want ErrInvalidMagnitude", err)
	}
	short := engine.DefaultConfig()
	short.TotalTicks = 10
	if _, err := SimulateMarketEvent(ImpactRequest{Type: events.Flood, ItemID: "copper_ore", Magnitude: 0.5, DurationTicks: 6, Config: &short}); err == nil {
		t.Fatalf("run shorter than the event start accepted")
	}
}
