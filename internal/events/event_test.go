package events

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
)

func TestEffect_BellCurve(t *testing.T) {
	e := Event{Type: DemandSpike, Magnitude: 0.5, StartTick: 100, DurationTicks: 10}

	if got := e.Effect(100); got != 0 {
		t.Fatalf("effect at start=%v want 0", got)
	}
	if got := e.Effect(110); got != 0 {
		t.Fatalf("effect at end=%v want 0", got)
	}
	if got := e.Effect(105); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("effect at midpoint=%v want 0.5", got)
	}
	if got := e.Effect(99); got != 0 {
		t.Fatalf("effect before window=%v want 0", got)
	}
	if got := e.Effect(111); got != 0 {
		t.Fatalf("effect after window=%v want 0", got)
	}
}

func TestEffect_PropertyPeakAtMidpoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mag := rapid.Float64Range(0, 1).Draw(t, "magnitude")
		dur := rapid.IntRange(2, 200).Draw(t, "duration")
		start := rapid.IntRange(0, 1000).Draw(t, "start")
		e := Event{Type: Flood, Magnitude: mag, StartTick: start, DurationTicks: dur}

		peak := 0.0
		for tick := start - 2; tick <= start+dur+2; tick++ {
			eff := e.Effect(tick)
			if eff < 0 || eff > mag+1e-12 {
				t.Fatalf("effect %v at tick %d outside [0,%v]", eff, tick, mag)
			}
			if eff > peak {
				peak = eff
			}
		}
		if dur%2 == 0 {
			if got := e.Effect(start + dur/2); math.Abs(got-mag) > 1e-9 {
				t.Fatalf("midpoint effect=%v want %v", got, mag)
			}
		}
		if peak > mag+1e-12 {
			t.Fatalf("peak %v above magnitude %v", peak, mag)
		}
	})
}

func TestValidate(t *testing.T) {
	ok := Event{Type: Shortage, Magnitude: 0.4, StartTick: 0, DurationTicks: 6}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	bad := ok
	bad.DurationTicks = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err=%v want ErrInvalidWindow", err)
	}
	bad = ok
	bad.Magnitude = 1.5
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMagnitude) {
		t.Fatalf("err=%v want ErrInvalidMagnitude", err)
	}
	bad = ok
	bad.Type = "meteor"
	if err := bad.Validate(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err=%v want ErrUnknownType", err)
	}
}

func TestTargets_Precedence(t *testing.T) {
	herb := economy.NewItem(catalog.ItemDefinition{ID: "herb", Category: catalog.CategoryReagent, BasePrice: 1, BaseSupply: 1, BaseDemand: 1, Volatility: 0.1})
	ore := economy.NewItem(catalog.ItemDefinition{ID: "ore", Category: catalog.CategoryTradeGood, BasePrice: 1, BaseSupply: 1, BaseDemand: 1, Volatility: 0.1})

	byItem := Event{ItemID: "herb", Category: catalog.CategoryTradeGood}
	if !byItem.Targets(herb) || byItem.Targets(ore) {
		t.Fatalf("item id should take precedence over category")
	}
	byCat := Event{Category: catalog.CategoryTradeGood}
	if byCat.Targets(herb) || !byCat.Targets(ore) {
		t.Fatalf("category targeting wrong")
	}
	all := Event{}
	if !all.Targets(herb) || !all.Targets(ore) {
		t.Fatalf("untargeted event should hit everything")
	}
}

func TestApply_Directions(t *testing.T) {
	mk := func() *economy.Item {
		return economy.NewItem(catalog.ItemDefinition{ID: "x", Category: catalog.CategoryReagent, BasePrice: 100, BaseSupply: 100, BaseDemand: 100, Volatility: 0.05})
	}
	cases := []struct {
		typ        Type
		supplySign int
		demandSign int
	}{
		{Shortage, -1, 0},
		{Flood, 1, 0},
		{DemandSpike, 0, 1},
		{Crash, 0, -1},
		{BotWave, 1, 0},
		{GuildDump, 1, 0},
		{Seasonal, 0, 1},
		{Patch, 0, 1},
	}
	for _, c := range cases {
		it := mk()
		Apply(c.typ, it, 0.5)
		if sign(it.Supply-100) != c.supplySign || sign(it.Demand-100) != c.demandSign {
			t.Fatalf("%s: supply=%v demand=%v", c.typ, it.Supply, it.Demand)
		}
	}

	it := mk()
	Apply(Shortage, it, 0)
	if it.Supply != 100 {
		t.Fatalf("zero effect changed supply to %v", it.Supply)
	}
}

func TestApply_KeepsLevelsAboveOne(t *testing.T) {
	it := economy.NewItem(catalog.ItemDefinition{ID: "x", Category: catalog.CategoryReagent, BasePrice: 100, BaseSupply: 1, BaseDemand: 1, Volatility: 0.05})
	for i := 0; i < 100; i++ {
		Apply(Shortage, it, 1)
		Apply(Crash, it, 1)
	}
	if it.Supply < 1 || it.Demand < 1 {
		t.Fatalf("supply=%v demand=%v below 1", it.Supply, it.Demand)
	}
	if it.Volatility > economy.MaxVolatility {
		t.Fatalf("volatility=%v above max", it.Volatility)
	}
}

func sign(v float64) int {
	switch {
	case v > 1e-9:
		return 1
	case v < -1e-9:
		return -1
	}
	return 0
}
