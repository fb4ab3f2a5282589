// Package report renders simulation results as Markdown.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
)

// topActors is how many actors the P&L table shows from each end.
const topActors = 5

// Markdown renders res as a human-readable report.
func Markdown(res *engine.Result) string {
	var b strings.Builder

	b.WriteString("# Auction House Simulation Report\n\n")
	if res.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`  \n", res.RunID)
	}
	fmt.Fprintf(&b, "Seed %d, %s of %s ticks simulated (ends %s)\n\n",
		res.Seed, humanize.Comma(int64(res.TicksSimulated)), humanize.Comma(int64(res.TotalTicks)),
		engine.SimTime(res.TicksSimulated))

	writeSummary(&b, res.Analytics)
	writeItems(&b, res.Items)
	writeEvents(&b, res)
	writeActors(&b, res.Actors)
	return b.String()
}

func writeSummary(b *strings.Builder, a engine.Analytics) {
	b.WriteString("## Market summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Market health | %d / 100 |\n", a.MarketHealth)
	fmt.Fprintf(b, "| Transactions | %s |\n", humanize.Comma(int64(a.TotalTransactions)))
	fmt.Fprintf(b, "| Units traded | %s |\n", humanize.Comma(int64(a.TotalVolume)))
	fmt.Fprintf(b, "| Gold traded | %s |\n", gold(a.TotalGoldTraded))
	fmt.Fprintf(b, "| Inflation | %s |\n", pct(a.InflationRate))
	fmt.Fprintf(b, "| Most volatile | %s |\n", orDash(a.MostVolatileItem))
	fmt.Fprintf(b, "| Most traded | %s |\n", orDash(a.MostTradedItem))
	fmt.Fprintf(b, "| Biggest gainer | %s (%s) |\n", orDash(a.BiggestGainer), pct(a.BiggestGainerPct))
	fmt.Fprintf(b, "| Biggest loser | %s (%s) |\n", orDash(a.BiggestLoser), pct(a.BiggestLoserPct))
	fmt.Fprintf(b, "| Events | %d |\n\n", a.EventCount)
}

func writeItems(b *strings.Builder, items []economy.Item) {
	b.WriteString("## Items\n\n")
	b.WriteString("| Item | Category | Base | Price | Change | Trend | Supply | Demand | Volatility | Volume |\n")
	b.WriteString("|---|---|---:|---:|---:|---|---:|---:|---:|---:|\n")
	for _, it := range items {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s | %.3f | %s |\n",
			it.Name, it.Category, gold(it.BasePrice), gold(it.CurrentPrice), pct(it.PriceChange()),
			it.Trend, humanize.Comma(int64(it.Supply)), humanize.Comma(int64(it.Demand)),
			it.Volatility, humanize.Comma(int64(it.TotalVolume)))
	}
	b.WriteString("\n")
}

func writeEvents(b *strings.Builder, res *engine.Result) {
	if len(res.Events) == 0 {
		return
	}
	b.WriteString("## Events\n\n")
	b.WriteString("| ID | Type | Target | Magnitude | Window | Description |\n|---|---|---|---:|---|---|\n")
	evts := append(res.Events[:0:0], res.Events...)
	sort.SliceStable(evts, func(i, j int) bool { return evts[i].StartTick < evts[j].StartTick })
	for _, e := range evts {
		target := e.ItemID
		if target == "" {
			target = string(e.Category)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %.2f | %d–%d | %s |\n",
			e.ID, e.Type, orDash(target), e.Magnitude, e.StartTick, e.EndTick(), e.Description)
	}
	b.WriteString("\n")
}

func writeActors(b *strings.Builder, actors []engine.ActorSummary) {
	if len(actors) == 0 {
		return
	}
	b.WriteString("## Actors\n\n")
	b.WriteString("| Actor | Type | Gold | Inventory | Net worth | P&L | ROI |\n|---|---|---:|---:|---:|---:|---:|\n")

	shown := actors
	if len(actors) > 2*topActors {
		shown = append(append([]engine.ActorSummary(nil), actors[:topActors]...), actors[len(actors)-topActors:]...)
	}
	for i, a := range shown {
		if len(shown) < len(actors) && i == topActors {
			fmt.Fprintf(b, "| … %d more | | | | | | |\n", len(actors)-len(shown))
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			a.Name, a.Type, gold(a.FinalGold), gold(a.InventoryValue), gold(a.NetWorth),
			signedGold(a.ProfitLoss), pct(a.ROI))
	}
	b.WriteString("\n")
}

func gold(v float64) string {
	return humanize.FormatFloat("#,###.##", v) + "g"
}

func signedGold(v float64) string {
	if v > 0 {
		return "+" + gold(v)
	}
	return gold(v)
}

func pct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v*100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
