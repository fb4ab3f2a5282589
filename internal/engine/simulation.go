// Simulation ties the market systems together and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/entropy"
	"github.com/talgya/mini-market/internal/events"
)

// Simulation owns the complete state of one run. It is not safe for
// concurrent use; a second run needs a new Simulation or Initialize.
type Simulation struct {
	cfg  Config
	seed int64
	rng  *entropy.Source

	tick int

	items     []*economy.Item
	itemIndex map[string]*economy.Item

	actors     []*agents.Actor // Insertion order is the per-tick action order
	actorIndex map[agents.ActorID]*agents.Actor

	transactions []economy.Transaction
	events       []events.Event

	nextTxID      int
	nextListingID int
	nextEventID   int
}

// New creates an empty simulation. Call Initialize before ticking.
func New(cfg Config, seed int64) *Simulation {
	return &Simulation{
		cfg:        cfg,
		seed:       seed,
		rng:        entropy.NewSource(seed),
		itemIndex:  make(map[string]*economy.Item),
		actorIndex: make(map[agents.ActorID]*agents.Actor),
	}
}

// Initialize resets all state, including the random source, loads the item
// catalog and actors, and records the tick-0 snapshot for every item.
func (s *Simulation) Initialize(defs []catalog.ItemDefinition, specs []agents.Spec) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := catalog.Validate(defs); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	s.rng = entropy.NewSource(s.seed)
	s.tick = 0
	s.items = make([]*economy.Item, 0, len(defs))
	s.itemIndex = make(map[string]*economy.Item, len(defs))
	s.actors = make([]*agents.Actor, 0, len(specs))
	s.actorIndex = make(map[agents.ActorID]*agents.Actor, len(specs))
	s.transactions = nil
	s.events = nil
	s.nextTxID, s.nextListingID, s.nextEventID = 1, 1, 1

	for _, d := range defs {
		it := economy.NewItem(d)
		s.items = append(s.items, it)
		s.itemIndex[it.ID] = it
	}
	for _, sp := range specs {
		if sp.ID == "" {
			return fmt.Errorf("actor with empty id")
		}
		if _, dup := s.actorIndex[sp.ID]; dup {
			return fmt.Errorf("duplicate actor id %q", sp.ID)
		}
		if !sp.Type.Valid() {
			return fmt.Errorf("actor %q: unknown type %q", sp.ID, sp.Type)
		}
		if sp.Gold < 0 {
			return fmt.Errorf("actor %q: negative starting gold", sp.ID)
		}
		a := agents.NewActor(sp)
		s.actors = append(s.actors, a)
		s.actorIndex[a.ID] = a
	}

	for _, it := range s.items {
		it.Record(0, 0)
	}
	return nil
}

// Tick advances the simulation by one tick. The order of the steps is fixed;
// reordering them changes how the random stream is consumed.
func (s *Simulation) Tick() {
	s.tick++
	tick := s.tick

	// 1. Maybe generate a random event.
	if s.cfg.RandomEvents {
		s.maybeGenerateEvent(tick)
	}

	// 2. Apply every active event exactly once.
	s.applyEvents(tick)

	// 3. Background supply/demand drift.
	for _, it := range s.items {
		it.Drift(s.rng, s.cfg.SupplyElasticity)
	}

	// 4. Actors, in insertion order.
	for _, a := range s.actors {
		agents.Act(a, s)
	}

	// 5. Return unsold goods.
	s.expireListings(tick)

	// 6. Reprice.
	params := economy.PricingParams{
		DemandElasticity: s.cfg.DemandElasticity,
		InflationRate:    s.cfg.BaseInflationRate,
		VolatilityDecay:  s.cfg.VolatilityDecay,
	}
	for _, it := range s.items {
		it.Reprice(s.rng, params)
	}

	// 7. Snapshot with this tick's traded volume.
	volume := s.tickVolume(tick)
	for _, it := range s.items {
		it.Record(tick, volume[it.ID])
	}
}

// Run executes TotalTicks ticks synchronously and returns the result.
func (s *Simulation) Run() *Result {
	slog.Info("simulation run started",
		"seed", s.seed,
		"ticks", s.cfg.TotalTicks,
		"items", len(s.items),
		"actors", len(s.actors),
	)
	for i := 0; i < s.cfg.TotalTicks; i++ {
		s.Tick()
	}
	res := s.Result()
	slog.Info("simulation run finished",
		"seed", s.seed,
		"tick", s.tick,
		"transactions", len(s.transactions),
		"events", len(s.events),
		"health", res.Analytics.MarketHealth,
	)
	return res
}

// tickVolume sums units traded during tick, per item. Transactions are
// appended in tick order so the scan stops at the first older one.
func (s *Simulation) tickVolume(tick int) map[string]int {
	vol := make(map[string]int)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.Tick != tick {
			break
		}
		vol[tx.ItemID] += tx.Quantity
	}
	return vol
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() int { return s.tick }

// Seed returns the seed the run was created with.
func (s *Simulation) Seed() int64 { return s.seed }

// Config returns the run configuration.
func (s *Simulation) Config() Config { return s.cfg }

// Items returns items in catalog order. Part of agents.Market.
func (s *Simulation) Items() []*economy.Item { return s.items }

// Rand returns the run's random source. Part of agents.Market.
func (s *Simulation) Rand() *entropy.Source { return s.rng }

// Item looks up an item by id.
func (s *Simulation) Item(id string) (*economy.Item, bool) {
	it, ok := s.itemIndex[id]
	return it, ok
}

// Actors returns actors in insertion order.
func (s *Simulation) Actors() []*agents.Actor { return s.actors }

// Actor looks up an actor by id.
func (s *Simulation) Actor(id agents.ActorID) (*agents.Actor, bool) {
	a, ok := s.actorIndex[id]
	return a, ok
}

// Transactions returns the full transaction log, oldest first.
func (s *Simulation) Transactions() []economy.Transaction { return s.transactions }

// Events returns every event of the run, injected or generated.
func (s *Simulation) Events() []events.Event { return s.events }

// CheckInvariants reports the first violated state invariant, or nil.
func (s *Simulation) CheckInvariants() error {
	for _, it := range s.items {
		switch {
		case it.Supply < 1:
			return fmt.Errorf("item %s: supply %v < 1 at tick %d", it.ID, it.Supply, s.tick)
		case it.Demand < 1:
			return fmt.Errorf("item %s: demand %v < 1 at tick %d", it.ID, it.Demand, s.tick)
		case it.CurrentPrice < 1:
			return fmt.Errorf("item %s: price %v < 1 at tick %d", it.ID, it.CurrentPrice, s.tick)
		case it.Volatility < economy.MinVolatility || it.Volatility > economy.MaxVolatility:
			return fmt.Errorf("item %s: volatility %v out of range at tick %d", it.ID, it.Volatility, s.tick)
		}
		for _, l := range it.ActiveListings {
			if l.Quantity <= 0 {
				return fmt.Errorf("listing %s: quantity %d", l.ID, l.Quantity)
			}
		}
	}
	for _, a := range s.actors {
		if a.Gold < 0 {
			return fmt.Errorf("actor %s: negative gold %v", a.ID, a.Gold)
		}
		for id, n := range a.Inventory {
			if n < 0 {
				return fmt.Errorf("actor %s: negative inventory of %s", a.ID, id)
			}
		}
	}
	return nil
}
