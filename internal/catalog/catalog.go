// Package catalog holds the static item definitions a simulation run is
// seeded from: the built-in catalog, YAML overrides, and procedurally
// generated catalogs.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category groups items by economic role. Actor behaviors pick targets by category.
type Category string

const (
	CategoryReagent    Category = "reagent"
	CategoryTradeGood  Category = "trade_good"
	CategoryConsumable Category = "consumable"
	CategoryEquipment  Category = "equipment"
	CategoryGem        Category = "gem"
)

// Categories lists every known category in a fixed order.
var Categories = []Category{
	CategoryReagent,
	CategoryTradeGood,
	CategoryConsumable,
	CategoryEquipment,
	CategoryGem,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ItemDefinition is the immutable starting point for one tradable item.
type ItemDefinition struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	Category   Category `yaml:"category" json:"category"`
	BasePrice  float64  `yaml:"base_price" json:"base_price"`   // Copper
	BaseSupply float64  `yaml:"base_supply" json:"base_supply"` // Units on the market
	BaseDemand float64  `yaml:"base_demand" json:"base_demand"` // Units wanted
	Volatility float64  `yaml:"volatility" json:"volatility"`   // 0.01–1.0
}

// Default returns the built-in catalog. The slice is freshly allocated.
func Default() []ItemDefinition {
	return []ItemDefinition{
		{ID: "peacebloom", Name: "Peacebloom", Category: CategoryReagent, BasePrice: 40, BaseSupply: 800, BaseDemand: 700, Volatility: 0.05},
		{ID: "silverleaf", Name: "Silverleaf", Category: CategoryReagent, BasePrice: 35, BaseSupply: 900, BaseDemand: 750, Volatility: 0.05},
		{ID: "mageroyal", Name: "Mageroyal", Category: CategoryReagent, BasePrice: 90, BaseSupply: 400, BaseDemand: 420, Volatility: 0.07},
		{ID: "kingsblood", Name: "Kingsblood", Category: CategoryReagent, BasePrice: 180, BaseSupply: 250, BaseDemand: 260, Volatility: 0.08},
		{ID: "copper_ore", Name: "Copper Ore", Category: CategoryTradeGood, BasePrice: 60, BaseSupply: 1000, BaseDemand: 900, Volatility: 0.04},
		{ID: "iron_ore", Name: "Iron Ore", Category: CategoryTradeGood, BasePrice: 150, BaseSupply: 500, BaseDemand: 520, Volatility: 0.06},
		{ID: "linen_cloth", Name: "Linen Cloth", Category: CategoryTradeGood, BasePrice: 25, BaseSupply: 1500, BaseDemand: 1200, Volatility: 0.04},
		{ID: "rugged_leather", Name: "Rugged Leather", Category: CategoryTradeGood, BasePrice: 220, BaseSupply: 300, BaseDemand: 340, Volatility: 0.09},
		{ID: "healing_potion", Name: "Healing Potion", Category: CategoryConsumable, BasePrice: 300, BaseSupply: 200, BaseDemand: 260, Volatility: 0.06},
		{ID: "mana_potion", Name: "Mana Potion", Category: CategoryConsumable, BasePrice: 350, BaseSupply: 180, BaseDemand: 230, Volatility: 0.06},
		{ID: "elixir_of_agility", Name: "Elixir of Agility", Category: CategoryConsumable, BasePrice: 800, BaseSupply: 90, BaseDemand: 110, Volatility: 0.1},
		{ID: "spiced_bread", Name: "Spiced Bread", Category: CategoryConsumable, BasePrice: 20, BaseSupply: 1200, BaseDemand: 1300, Volatility: 0.03},
		{ID: "iron_sword", Name: "Iron Sword", Category: CategoryEquipment, BasePrice: 2500, BaseSupply: 40, BaseDemand: 35, Volatility: 0.12},
		{ID: "runecloth_bag", Name: "Runecloth Bag", Category: CategoryEquipment, BasePrice: 9000, BaseSupply: 25, BaseDemand: 30, Volatility: 0.1},
		{ID: "black_pearl", Name: "Black Pearl", Category: CategoryGem, BasePrice: 4000, BaseSupply: 30, BaseDemand: 28, Volatility: 0.15},
		{ID: "star_ruby", Name: "Star Ruby", Category: CategoryGem, BasePrice: 12000, BaseSupply: 12, BaseDemand: 15, Volatility: 0.2},
	}
}

// Validate checks a catalog before it is handed to an engine.
func Validate(defs []ItemDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("item %d: missing id", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("item %q: duplicate id", d.ID)
		}
		seen[d.ID] = true
		if !d.Category.Valid() {
			return fmt.Errorf("item %q: unknown category %q", d.ID, d.Category)
		}
		if d.BasePrice < 1 {
			return fmt.Errorf("item %q: base price %v below 1", d.ID, d.BasePrice)
		}
		if d.BaseSupply < 1 || d.BaseDemand < 1 {
			return fmt.Errorf("item %q: base supply and demand must be at least 1", d.ID)
		}
		if d.Volatility < 0.01 || d.Volatility > 1 {
			return fmt.Errorf("item %q: volatility %v outside [0.01, 1]", d.ID, d.Volatility)
		}
	}
	return nil
}

// file is the on-disk layout of a catalog override.
type file struct {
	Items []ItemDefinition `yaml:"items"`
}

// Load reads a YAML catalog override. Names default to IDs.
func Load(path string) ([]ItemDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range f.Items {
		if f.Items[i].Name == "" {
			f.Items[i].Name = f.Items[i].ID
		}
	}
	if err := Validate(f.Items); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Items, nil
}
