// Actor behavior strategies. Every tick each actor runs exactly one routine,
// chosen by its fixed type.
package agents

import (
	"math"

	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/entropy"
)

// Market is what a strategy can see and do. The engine implements it; items
// come back in a stable order so random picks stay reproducible.
type Market interface {
	Items() []*economy.Item
	Rand() *entropy.Source
	// Buy purchases qty units from the market at the current price.
	// Returns false when the trade was skipped.
	Buy(a *Actor, it *economy.Item, qty int) bool
	// List escrows qty units from the actor's inventory onto the auction house.
	// Returns false when nothing was listed.
	List(a *Actor, it *economy.Item, qty int) bool
}

// Strategy is one actor type's per-tick routine.
type Strategy interface {
	Act(a *Actor, m Market)
}

// Consumer purchase probability per tick.
const consumerBuyChance = 0.3

// Gold floors, as multiples of the unit price, an actor must hold before buying.
const (
	crafterGoldFloor = 5
	flipperGoldFloor = 3
)

var strategies = map[ActorType]Strategy{
	TypeFarmer:   farmer{},
	TypeCrafter:  crafter{},
	TypeFlipper:  flipper{},
	TypeConsumer: consumer{},
	TypeVendor:   idle{},
}

// StrategyFor returns the routine for t. Unknown types idle.
func StrategyFor(t ActorType) Strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return idle{}
}

// Act runs a's routine against m.
func Act(a *Actor, m Market) {
	StrategyFor(a.Type).Act(a, m)
}

// farmer gathers reagents and trade goods and sells when prices are good.
type farmer struct{}

func (farmer) Act(a *Actor, m Market) {
	farmable := itemsIn(m.Items(), catalog.CategoryReagent, catalog.CategoryTradeGood)
	if len(farmable) == 0 {
		return
	}
	src := m.Rand()
	it := farmable[src.Intn(len(farmable))]

	qty := scaledQuantity(src.IntBetween(1, 5), a.Behavior.FarmingRate)
	a.AddInventory(it.ID, qty)
	it.Supply += float64(qty)

	if it.CurrentPrice >= it.BasePrice*a.Behavior.SellThreshold {
		m.List(a, it, a.Held(it.ID))
	}
}

// crafter buys cheap reagents and turns out consumables.
type crafter struct{}

func (crafter) Act(a *Actor, m Market) {
	src := m.Rand()
	items := m.Items()

	for _, it := range itemsIn(items, catalog.CategoryReagent) {
		if it.CurrentPrice > it.BasePrice*a.Behavior.BuyThreshold {
			continue
		}
		if a.Gold < it.CurrentPrice*crafterGoldFloor {
			continue
		}
		m.Buy(a, it, src.IntBetween(1, 3))
	}

	consumables := itemsIn(items, catalog.CategoryConsumable)
	if len(consumables) == 0 {
		return
	}
	it := consumables[src.Intn(len(consumables))]
	qty := scaledQuantity(src.IntBetween(1, 3), a.Behavior.CraftingEfficiency)
	a.AddInventory(it.ID, qty)
	it.Supply += float64(qty)

	if it.CurrentPrice >= it.BasePrice*a.Behavior.SellThreshold {
		m.List(a, it, a.Held(it.ID))
	}
}

// flipper trades every item against its own recent price memory.
type flipper struct{}

func (flipper) Act(a *Actor, m Market) {
	src := m.Rand()
	memory := a.Behavior.PriceMemoryTicks
	if memory < 1 {
		memory = 1
	}

	for _, it := range m.Items() {
		mean := meanPrice(it.RecentPrices(memory), it.CurrentPrice)

		if it.CurrentPrice < mean*a.Behavior.BuyThreshold && a.Gold >= it.CurrentPrice*flipperGoldFloor {
			m.Buy(a, it, src.IntBetween(1, 3))
			continue
		}
		if it.CurrentPrice > mean*a.Behavior.SellThreshold && a.Held(it.ID) > 0 {
			m.List(a, it, a.Held(it.ID))
		}
	}
}

// consumer occasionally buys a consumable it considers fairly priced.
type consumer struct{}

func (consumer) Act(a *Actor, m Market) {
	src := m.Rand()
	if src.Next() >= consumerBuyChance {
		return
	}
	consumables := itemsIn(m.Items(), catalog.CategoryConsumable)
	if len(consumables) == 0 {
		return
	}
	it := consumables[src.Intn(len(consumables))]
	qty := src.IntBetween(1, 3)

	if it.CurrentPrice > it.BasePrice*a.Behavior.BuyThreshold {
		return
	}
	m.Buy(a, it, qty)
}

// idle does nothing; vendors are a counterparty kind, not a trader.
type idle struct{}

func (idle) Act(*Actor, Market) {}

// itemsIn filters items to the given categories, keeping order.
func itemsIn(items []*economy.Item, cats ...catalog.Category) []*economy.Item {
	var out []*economy.Item
	for _, it := range items {
		for _, c := range cats {
			if it.Category == c {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// scaledQuantity applies a rate multiplier, never returning less than 1.
func scaledQuantity(base int, rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	q := int(math.Round(float64(base) * rate))
	if q < 1 {
		q = 1
	}
	return q
}

func meanPrice(prices []float64, fallback float64) float64 {
	if len(prices) == 0 {
		return fallback
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}
