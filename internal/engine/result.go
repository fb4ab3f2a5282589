package engine

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/events"
)

// Export limits.
const (
	ResultHistoryLimit     = 100
	ResultTransactionLimit = 200
)

// Result is the exported outcome of a run.
type Result struct {
	RunID          string                `json:"run_id,omitempty"`
	Seed           int64                 `json:"seed"`
	Config         Config                `json:"config"`
	TicksSimulated int                   `json:"ticks_simulated"`
	TotalTicks     int                   `json:"total_ticks"`
	Items          []economy.Item        `json:"items"`        // History trimmed to ResultHistoryLimit
	Transactions   []economy.Transaction `json:"transactions"` // Most recent ResultTransactionLimit
	Events         []events.Event        `json:"events"`
	Actors         []ActorSummary        `json:"actors"`
	Analytics      Analytics             `json:"analytics"`
}

// ActorSummary is an actor's profit and loss at the end of a run. Gold
// amounts are rounded to two decimal places.
type ActorSummary struct {
	ID             agents.ActorID   `json:"id"`
	Name           string           `json:"name"`
	Type           agents.ActorType `json:"type"`
	StartingGold   float64          `json:"starting_gold"`
	FinalGold      float64          `json:"final_gold"`
	InventoryValue float64          `json:"inventory_value"` // Held units at current prices
	NetWorth       float64          `json:"net_worth"`
	ProfitLoss     float64          `json:"profit_loss"`
	ROI            float64          `json:"roi"` // ProfitLoss / StartingGold
}

// Analytics aggregates market-wide statistics for a run.
type Analytics struct {
	TotalTransactions int     `json:"total_transactions"`
	TotalVolume       int     `json:"total_volume"`
	TotalGoldTraded   float64 `json:"total_gold_traded"`
	MostVolatileItem  string  `json:"most_volatile_item"`
	MostTradedItem    string  `json:"most_traded_item"`
	BiggestGainer     string  `json:"biggest_gainer"`
	BiggestGainerPct  float64 `json:"biggest_gainer_pct"`
	BiggestLoser      string  `json:"biggest_loser"`
	BiggestLoserPct   float64 `json:"biggest_loser_pct"`
	MarketHealth      int     `json:"market_health"`  // 0–100
	InflationRate     float64 `json:"inflation_rate"` // Mean fractional change from base price
	EventCount        int     `json:"event_count"`
}

// Result snapshots the current state. It may be called mid-run.
func (s *Simulation) Result() *Result {
	items := make([]economy.Item, len(s.items))
	for i, it := range s.items {
		c := *it
		c.PriceHistory = append([]economy.PriceSnapshot(nil), it.RecentHistory(ResultHistoryLimit)...)
		c.ActiveListings = make([]*economy.Listing, len(it.ActiveListings))
		for j, l := range it.ActiveListings {
			lc := *l
			c.ActiveListings[j] = &lc
		}
		items[i] = c
	}

	txs := s.transactions
	if len(txs) > ResultTransactionLimit {
		txs = txs[len(txs)-ResultTransactionLimit:]
	}

	return &Result{
		Seed:           s.seed,
		Config:         s.cfg,
		TicksSimulated: s.tick,
		TotalTicks:     s.cfg.TotalTicks,
		Items:          items,
		Transactions:   append([]economy.Transaction(nil), txs...),
		Events:         append([]events.Event(nil), s.events...),
		Actors:         s.actorSummaries(),
		Analytics:      s.analytics(),
	}
}

func (s *Simulation) actorSummaries() []ActorSummary {
	out := make([]ActorSummary, 0, len(s.actors))
	for _, a := range s.actors {
		held := decimal.Zero
		for id, n := range a.Inventory {
			if it, ok := s.itemIndex[id]; ok {
				held = held.Add(decimal.NewFromFloat(it.CurrentPrice).Mul(decimal.NewFromInt(int64(n))))
			}
		}
		start := decimal.NewFromFloat(a.StartingGold)
		gold := decimal.NewFromFloat(a.Gold)
		net := gold.Add(held)
		pl := net.Sub(start)

		roi := decimal.Zero
		if start.IsPositive() {
			roi = pl.Div(start).Round(4)
		}
		out = append(out, ActorSummary{
			ID:             a.ID,
			Name:           a.Name,
			Type:           a.Type,
			StartingGold:   start.Round(2).InexactFloat64(),
			FinalGold:      gold.Round(2).InexactFloat64(),
			InventoryValue: held.Round(2).InexactFloat64(),
			NetWorth:       net.Round(2).InexactFloat64(),
			ProfitLoss:     pl.Round(2).InexactFloat64(),
			ROI:            roi.InexactFloat64(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProfitLoss > out[j].ProfitLoss })
	return out
}

func (s *Simulation) analytics() Analytics {
	an := Analytics{
		TotalTransactions: len(s.transactions),
		EventCount:        len(s.events),
	}
	for _, tx := range s.transactions {
		an.TotalVolume += tx.Quantity
		an.TotalGoldTraded += tx.Value()
	}
	an.TotalGoldTraded = math.Round(an.TotalGoldTraded*100) / 100
	if len(s.items) == 0 {
		return an
	}

	maxVol, maxTraded := -1.0, -1
	maxGain, maxLoss := math.Inf(-1), math.Inf(1)
	var sumVol, sumImb, sumChg float64
	for _, it := range s.items {
		if it.Volatility > maxVol {
			maxVol, an.MostVolatileItem = it.Volatility, it.ID
		}
		if it.TotalVolume > maxTraded {
			maxTraded, an.MostTradedItem = it.TotalVolume, it.ID
		}
		chg := it.PriceChange()
		if chg > maxGain {
			maxGain, an.BiggestGainer = chg, it.ID
		}
		if chg < maxLoss {
			maxLoss, an.BiggestLoser = chg, it.ID
		}
		sumVol += it.Volatility
		sumImb += math.Abs(it.Supply-it.Demand) / (it.Supply + it.Demand)
		sumChg += chg
	}
	n := float64(len(s.items))
	an.BiggestGainerPct = round4(maxGain)
	an.BiggestLoserPct = round4(maxLoss)
	an.InflationRate = round4(sumChg / n)
	an.MarketHealth = marketHealth(sumVol/n, sumImb/n)
	return an
}

// marketHealth scores a market 0–100 from its mean volatility and mean
// supply/demand imbalance. Volatility at or above 0.5 scores zero on its half.
func marketHealth(avgVolatility, avgImbalance float64) int {
	volScore := 1 - math.Min(1, avgVolatility/0.5)
	balScore := 1 - math.Min(1, avgImbalance)
	h := int(math.Round(100 * (volScore + balScore) / 2))
	return max(0, min(100, h))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
