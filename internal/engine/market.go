// Auction house settlement: direct buys from the market, listings with an
// instant-sale check, and expiry of unsold listings.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/economy"
)

const (
	// Buyout jitter as a fraction of the current price, one Gaussian draw.
	buyoutSpread = 0.05
	// Bid as a fraction of buyout.
	bidFraction = 0.8
	// Upper bound on the instant-sale probability.
	maxInstantSaleChance = 0.8
	// Demand removed per unit sold through the auction house.
	demandPerSale = 0.1
)

// Buy purchases qty units at the current price directly from the market.
// Skipped when the actor cannot pay. Part of agents.Market.
func (s *Simulation) Buy(a *agents.Actor, it *economy.Item, qty int) bool {
	if qty <= 0 {
		return false
	}
	price := it.CurrentPrice
	cost := price * float64(qty)
	if !a.CanAfford(cost) {
		return false
	}

	a.Gold -= cost
	a.AddInventory(it.ID, qty)
	it.Supply = math.Max(1, it.Supply-float64(qty))
	it.TotalVolume += qty
	it.LastTradePrice = price

	s.record(economy.Transaction{
		ItemID:   it.ID,
		Quantity: qty,
		Price:    price,
		BuyerID:  string(a.ID),
		SellerID: economy.MarketCounterparty,
		Type:     economy.TxTrade,
	})
	return true
}

// List escrows qty units from the actor onto the auction house, then runs the
// instant-sale check. This check stands in for order matching: a listing
// either sells immediately or waits to expire. Part of agents.Market.
func (s *Simulation) List(a *agents.Actor, it *economy.Item, qty int) bool {
	if qty <= 0 || a.Held(it.ID) < qty {
		return false
	}

	buyout := math.Max(1, math.Round(it.CurrentPrice*(1+buyoutSpread*s.rng.Gaussian())))
	l := &economy.Listing{
		ID:          fmt.Sprintf("L-%d", s.nextListingID),
		ItemID:      it.ID,
		Quantity:    qty,
		BidPrice:    math.Round(buyout * bidFraction),
		BuyoutPrice: buyout,
		SellerID:    string(a.ID),
		CreatedAt:   s.tick,
		ExpiresAt:   s.tick + s.cfg.ListingDuration,
	}
	s.nextListingID++

	a.AddInventory(it.ID, -qty)
	it.AddListing(l)

	chance := math.Min(maxInstantSaleChance, it.Demand/(it.Supply+it.Demand))
	if s.rng.Next() < chance {
		s.settle(it, l)
	}
	return true
}

// settle sells an open listing to the market at its buyout price. The house
// keeps AuctionHouseCut of the proceeds.
func (s *Simulation) settle(it *economy.Item, l *economy.Listing) {
	if it.RemoveListing(l.ID) == nil {
		return
	}
	if seller, ok := s.actorIndex[agents.ActorID(l.SellerID)]; ok {
		seller.Gold += l.BuyoutPrice * float64(l.Quantity) * (1 - s.cfg.AuctionHouseCut)
	}
	it.Demand = math.Max(1, it.Demand-float64(l.Quantity)*demandPerSale)
	it.TotalVolume += l.Quantity
	it.LastTradePrice = l.BuyoutPrice

	s.record(economy.Transaction{
		ItemID:   it.ID,
		Quantity: l.Quantity,
		Price:    l.BuyoutPrice,
		BuyerID:  economy.MarketCounterparty,
		SellerID: l.SellerID,
		Type:     economy.TxAuction,
	})
}

// expireListings returns the escrowed goods of every expired listing to its
// seller. No transaction is recorded.
func (s *Simulation) expireListings(tick int) {
	for _, it := range s.items {
		for _, l := range it.TakeExpired(tick) {
			if seller, ok := s.actorIndex[agents.ActorID(l.SellerID)]; ok {
				seller.AddInventory(l.ItemID, l.Quantity)
			}
		}
	}
}

// record stamps tx with the next id and current tick and appends it.
func (s *Simulation) record(tx economy.Transaction) {
	tx.ID = fmt.Sprintf("tx-%d", s.nextTxID)
	tx.Tick = s.tick
	s.nextTxID++
	s.transactions = append(s.transactions, tx)
}
