// Command marketsim runs one auction house simulation and prints a report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/talgya/mini-market/internal/analytics"
	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/config"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
	"github.com/talgya/mini-market/internal/persistence"
	"github.com/talgya/mini-market/internal/report"
)

type options struct {
	configPath string
	seed       int64
	ticks      int
	items      int
	forecast   string
	horizon    int
	dynamics   string
	impact     string
	impactItem string
	magnitude  float64
	duration   int
	dbPath     string
	asJSON     bool
	verbose    bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML run file")
	flag.Int64Var(&o.seed, "seed", 0, "random seed (default: from config, else random)")
	flag.IntVar(&o.ticks, "ticks", 0, "ticks to simulate (overrides config)")
	flag.IntVar(&o.items, "items", 0, "generate a procedural catalog of N items")
	flag.StringVar(&o.forecast, "forecast", "", "print a price forecast for this item")
	flag.IntVar(&o.horizon, "horizon", 24, "forecast horizon in ticks")
	flag.StringVar(&o.dynamics, "dynamics", "", "print market dynamics for this item")
	flag.StringVar(&o.impact, "impact", "", "compare a run with and without this event type")
	flag.StringVar(&o.impactItem, "impact-item", "", "item targeted by -impact")
	flag.Float64Var(&o.magnitude, "magnitude", 0.5, "event magnitude for -impact")
	flag.IntVar(&o.duration, "duration", 24, "event duration in ticks for -impact")
	flag.StringVar(&o.dbPath, "db", "", "archive the run to this SQLite file")
	flag.BoolVar(&o.asJSON, "json", false, "print the full result as JSON instead of markdown")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	if err := run(o, seedSet); err != nil {
		fmt.Fprintln(os.Stderr, "marketsim:", err)
		os.Exit(1)
	}
}

func run(o options, seedSet bool) error {
	f := config.Default()
	if o.configPath != "" {
		var err error
		if f, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	if seedSet {
		f.Seed = &o.seed
	}
	if o.ticks > 0 {
		f.Simulation.TotalTicks = o.ticks
	}
	if o.items > 0 {
		f.CatalogPath = ""
		f.GenerateItems = o.items
	}
	if err := f.Validate(); err != nil {
		return err
	}

	seed := f.ResolveSeed()
	defs, err := f.ResolveCatalog(seed)
	if err != nil {
		return err
	}

	if o.impact != "" {
		return runImpact(o, f, seed, defs)
	}

	sim := engine.New(f.Simulation, seed)
	if err := sim.Initialize(defs, f.Actors(seed)); err != nil {
		return err
	}
	res := sim.Run()
	res.RunID = persistence.NewRunID()

	if o.dbPath != "" {
		db, err := persistence.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.SaveRun(res); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		fmt.Fprintf(os.Stderr, "archived run %s to %s\n", res.RunID, o.dbPath)
	}

	if o.asJSON {
		return printJSON(res)
	}
	fmt.Print(report.Markdown(res))

	if o.forecast != "" {
		fc, err := analytics.ForecastItem(sim, o.forecast, o.horizon)
		if err != nil {
			return err
		}
		printForecast(fc)
	}
	if o.dynamics != "" {
		it, ok := sim.Item(o.dynamics)
		if !ok {
			return fmt.Errorf("%w: %q", analytics.ErrUnknownItem, o.dynamics)
		}
		d, err := analytics.AnalyzeMarketDynamics(it)
		if err != nil {
			return err
		}
		printDynamics(d)
	}
	return nil
}

func runImpact(o options, f config.File, seed int64, defs []catalog.ItemDefinition) error {
	cfg := f.Simulation
	rep, err := analytics.SimulateMarketEvent(analytics.ImpactRequest{
		Type:          events.Type(o.impact),
		ItemID:        o.impactItem,
		Magnitude:     o.magnitude,
		DurationTicks: o.duration,
		Seed:          seed,
		Config:        &cfg,
		Catalog:       defs,
		Actors:        f.Actors(seed),
	})
	if err != nil {
		return err
	}
	if o.asJSON {
		return printJSON(rep)
	}
	fmt.Printf("## Impact of %s on %s (magnitude %.2f, %d ticks from tick %d, seed %d)\n\n",
		rep.Type, rep.ItemID, rep.Magnitude, rep.DurationTicks, rep.StartTick, rep.Seed)
	fmt.Printf("| | Baseline | With event | Delta |\n|---|---:|---:|---:|\n")
	fmt.Printf("| Final price | %.2f | %.2f | %+.2f (%+.1f%%) |\n",
		rep.BaselinePrice, rep.EventPrice, rep.PriceDelta, rep.PriceDeltaPct*100)
	fmt.Printf("| Volume | %d | %d | %+d |\n\n", rep.BaselineVolume, rep.EventVolume, rep.VolumeDelta)
	fmt.Printf("Peak divergence %+.2f at tick %d (%s)\n", rep.PeakPriceDelta, rep.PeakTick, engine.SimTime(rep.PeakTick))
	return nil
}

func printForecast(fc *analytics.Forecast) {
	fmt.Printf("\n## Forecast: %s\n\n", fc.ItemID)
	fmt.Printf("Current %.2f, slope %+.4f/tick, projected %+.1f%% → **%s** (%s)\n\n",
		fc.CurrentPrice, fc.Slope, fc.ProjectedChange*100, fc.Recommendation, fc.Reason)
	fmt.Println("| Tick | Price | Confidence |\n|---:|---:|---:|")
	for _, p := range fc.Points {
		fmt.Printf("| %d | %.2f | %.0f%% |\n", p.Tick, p.Price, p.Confidence*100)
	}
}

func printDynamics(d *analytics.MarketDynamics) {
	out, _ := json.MarshalIndent(d, "", "  ")
	fmt.Printf("\n## Dynamics\n\n```json\n%s\n```\n", out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
