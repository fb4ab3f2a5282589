// Actor spawning: builds the starting population with jittered behavior
// parameters per type.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/entropy"
)

// PopulationConfig controls how many actors of each type are created.
type PopulationConfig struct {
	Farmers      int     `yaml:"farmers" json:"farmers"`
	Crafters     int     `yaml:"crafters" json:"crafters"`
	Flippers     int     `yaml:"flippers" json:"flippers"`
	Consumers    int     `yaml:"consumers" json:"consumers"`
	Vendors      int     `yaml:"vendors" json:"vendors"`
	StartingGold float64 `yaml:"starting_gold" json:"starting_gold"`
}

// DefaultPopulation returns a small mixed market.
func DefaultPopulation() PopulationConfig {
	return PopulationConfig{
		Farmers:      8,
		Crafters:     5,
		Flippers:     3,
		Consumers:    12,
		Vendors:      0,
		StartingGold: 10000,
	}
}

// Total returns the number of actors the config describes.
func (p PopulationConfig) Total() int {
	return p.Farmers + p.Crafters + p.Flippers + p.Consumers + p.Vendors
}

// baseBehaviors are the per-type starting thresholds before jitter.
var baseBehaviors = map[ActorType]Behavior{
	TypeFarmer:   {BuyThreshold: 0, SellThreshold: 1.0, RiskTolerance: 0.3, FarmingRate: 1.0, CraftingEfficiency: 0, PriceMemoryTicks: 24},
	TypeCrafter:  {BuyThreshold: 0.95, SellThreshold: 1.05, RiskTolerance: 0.4, FarmingRate: 0, CraftingEfficiency: 1.0, PriceMemoryTicks: 24},
	TypeFlipper:  {BuyThreshold: 0.92, SellThreshold: 1.08, RiskTolerance: 0.7, FarmingRate: 0, CraftingEfficiency: 0, PriceMemoryTicks: 24},
	TypeConsumer: {BuyThreshold: 1.3, SellThreshold: 0, RiskTolerance: 0.2, FarmingRate: 0, CraftingEfficiency: 0, PriceMemoryTicks: 12},
	TypeVendor:   {BuyThreshold: 0, SellThreshold: 0, RiskTolerance: 0, FarmingRate: 0, CraftingEfficiency: 0, PriceMemoryTicks: 1},
}

// Spawner creates actor specs from a dedicated seeded source so population
// jitter never consumes the engine's stream.
type Spawner struct {
	src    *entropy.Source
	nextID int
}

// NewSpawner creates a spawner for the given run seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		src:    entropy.NewSource(seed + 300),
		nextID: 1,
	}
}

// Spawn builds specs for every actor in cfg, grouped by type in a fixed order.
func (s *Spawner) Spawn(cfg PopulationConfig) []Spec {
	gold := cfg.StartingGold
	if gold <= 0 {
		gold = DefaultPopulation().StartingGold
	}

	specs := make([]Spec, 0, cfg.Total())
	groups := []struct {
		t ActorType
		n int
	}{
		{TypeFarmer, cfg.Farmers},
		{TypeCrafter, cfg.Crafters},
		{TypeFlipper, cfg.Flippers},
		{TypeConsumer, cfg.Consumers},
		{TypeVendor, cfg.Vendors},
	}
	for _, g := range groups {
		for i := 0; i < g.n; i++ {
			specs = append(specs, s.spawnOne(g.t, gold))
		}
	}
	return specs
}

func (s *Spawner) spawnOne(t ActorType, gold float64) Spec {
	id := s.nextID
	s.nextID++

	b := baseBehaviors[t]
	// ±5% on thresholds, ±20% on rates.
	b.BuyThreshold = round3(b.BuyThreshold * s.src.InRange(0.95, 1.05))
	b.SellThreshold = round3(b.SellThreshold * s.src.InRange(0.95, 1.05))
	b.RiskTolerance = round3(math.Min(1, b.RiskTolerance*s.src.InRange(0.8, 1.2)))
	b.FarmingRate = round3(b.FarmingRate * s.src.InRange(0.8, 1.2))
	b.CraftingEfficiency = round3(b.CraftingEfficiency * s.src.InRange(0.8, 1.2))
	b.PriceMemoryTicks += s.src.IntBetween(-4, 4)
	if b.PriceMemoryTicks < 1 {
		b.PriceMemoryTicks = 1
	}

	return Spec{
		ID:       ActorID(fmt.Sprintf("%s-%03d", t, id)),
		Name:     fmt.Sprintf("%s %d", titleCase(string(t)), id),
		Type:     t,
		Gold:     gold,
		Behavior: b,
	}
}

// DefaultSpecs spawns the default population for seed.
func DefaultSpecs(seed int64) []Spec {
	return NewSpawner(seed).Spawn(DefaultPopulation())
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
