// Package agents provides the economic actor model and the per-type
// behavior strategies actors run each tick.
package agents

// ActorID is a unique identifier for an actor. It doubles as the buyer or
// seller id on transactions.
type ActorID string

// ActorType fixes which behavior routine an actor runs.
type ActorType string

const (
	TypeFarmer   ActorType = "farmer"
	TypeCrafter  ActorType = "crafter"
	TypeFlipper  ActorType = "flipper"
	TypeConsumer ActorType = "consumer"
	TypeVendor   ActorType = "vendor"
)

// Valid reports whether t is a known actor type.
func (t ActorType) Valid() bool {
	switch t {
	case TypeFarmer, TypeCrafter, TypeFlipper, TypeConsumer, TypeVendor:
		return true
	}
	return false
}

// Behavior holds an actor's tunable decision thresholds.
type Behavior struct {
	BuyThreshold       float64 `yaml:"buy_threshold" json:"buy_threshold"`   // Buy at or below reference * this
	SellThreshold      float64 `yaml:"sell_threshold" json:"sell_threshold"` // Sell at or above reference * this
	RiskTolerance      float64 `yaml:"risk_tolerance" json:"risk_tolerance"` // 0.0–1.0
	FarmingRate        float64 `yaml:"farming_rate" json:"farming_rate"`
	CraftingEfficiency float64 `yaml:"crafting_efficiency" json:"crafting_efficiency"`
	PriceMemoryTicks   int     `yaml:"price_memory_ticks" json:"price_memory_ticks"`
}

// Spec describes an actor to create when a run is initialized.
type Spec struct {
	ID       ActorID   `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Type     ActorType `yaml:"type" json:"type"`
	Gold     float64   `yaml:"gold" json:"gold"`
	Behavior Behavior  `yaml:"behavior" json:"behavior"`
}

// Actor is a simulated market participant. Owned by one engine for a run.
type Actor struct {
	ID           ActorID        `json:"id"`
	Name         string         `json:"name"`
	Type         ActorType      `json:"type"`
	Gold         float64        `json:"gold"`
	StartingGold float64        `json:"starting_gold"`
	Inventory    map[string]int `json:"inventory"` // item id → units held
	Behavior     Behavior       `json:"behavior"`
}

// NewActor creates an actor from a spec with an empty inventory.
func NewActor(s Spec) *Actor {
	name := s.Name
	if name == "" {
		name = string(s.ID)
	}
	return &Actor{
		ID:           s.ID,
		Name:         name,
		Type:         s.Type,
		Gold:         s.Gold,
		StartingGold: s.Gold,
		Inventory:    make(map[string]int),
		Behavior:     s.Behavior,
	}
}

// Held returns the units of itemID the actor holds.
func (a *Actor) Held(itemID string) int {
	return a.Inventory[itemID]
}

// AddInventory adds qty units of itemID. Negative results are clamped to 0.
func (a *Actor) AddInventory(itemID string, qty int) {
	n := a.Inventory[itemID] + qty
	if n <= 0 {
		delete(a.Inventory, itemID)
		return
	}
	a.Inventory[itemID] = n
}

// CanAfford reports whether the actor could pay cost and keep gold >= 0.
func (a *Actor) CanAfford(cost float64) bool {
	return cost >= 0 && a.Gold >= cost
}
