package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/mini-market/internal/catalog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_KeepsDefaultsForOmittedFields(t *testing.T) {
	p := writeFile(t, "run.yaml", `
seed: 42
simulation:
  total_ticks: 336
  random_events: false
population:
  farmers: 2
`)
	f, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Seed == nil || *f.Seed != 42 || f.ResolveSeed() != 42 {
		t.Fatalf("seed=%v", f.Seed)
	}
	if f.Simulation.TotalTicks != 336 || f.Simulation.RandomEvents {
		t.Fatalf("overrides not applied: %+v", f.Simulation)
	}
	if f.Simulation.AuctionHouseCut != 0.05 || f.Simulation.ListingDuration != 48 {
		t.Fatalf("defaults lost: %+v", f.Simulation)
	}
	if f.Population.Farmers != 2 || f.Population.Consumers != 12 {
		t.Fatalf("population=%+v", f.Population)
	}
	if got := len(f.Actors(42)); got != f.Population.Total() {
		t.Fatalf("actors=%d want %d", got, f.Population.Total())
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	bad := writeFile(t, "bad.yaml", "simulation:\n  auction_house_cut: 1.5\n")
	if _, err := Load(bad); err == nil {
		t.Fatalf("cut of 1.5 accepted")
	}
	both := writeFile(t, "both.yaml", "catalog: items.yaml\ngenerate_items: 4\n")
	if _, err := Load(both); err == nil {
		t.Fatalf("catalog with generate_items accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestResolveCatalog(t *testing.T) {
	f := Default()
	defs, err := f.ResolveCatalog(1)
	if err != nil || len(defs) != len(catalog.Default()) {
		t.Fatalf("default catalog: n=%d err=%v", len(defs), err)
	}

	f.GenerateItems = 7
	defs, err = f.ResolveCatalog(1)
	if err != nil || len(defs) != 7 {
		t.Fatalf("generated catalog: n=%d err=%v", len(defs), err)
	}

	f.GenerateItems = 0
	f.CatalogPath = writeFile(t, "items.yaml", `
items:
  - id: herb
    category: reagent
    base_price: 10
    base_supply: 100
    base_demand: 100
    volatility: 0.05
`)
	defs, err = f.ResolveCatalog(1)
	if err != nil || len(defs) != 1 || defs[0].ID != "herb" {
		t.Fatalf("loaded catalog: %+v err=%v", defs, err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("MARKETSIM_TEST_PORT", "9090")
	t.Setenv("MARKETSIM_TEST_BAD", "nine")
	if got := EnvIntOrDefault("MARKETSIM_TEST_PORT", 1); got != 9090 {
		t.Fatalf("port=%d", got)
	}
	if got := EnvIntOrDefault("MARKETSIM_TEST_BAD", 1); got != 1 {
		t.Fatalf("bad int=%d want default", got)
	}
	if got := EnvOrDefault("MARKETSIM_TEST_UNSET", "x"); got != "x" {
		t.Fatalf("unset=%q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	p := writeFile(t, ".env", "MARKETSIM_TEST_FROM_FILE=hello\n")
	t.Setenv("MARKETSIM_TEST_FROM_FILE", "")
	os.Unsetenv("MARKETSIM_TEST_FROM_FILE")
	if err := LoadEnv(p, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("MARKETSIM_TEST_FROM_FILE"); got != "hello" {
		t.Fatalf("value=%q", got)
	}
}
