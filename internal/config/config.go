// Package config loads run files and server environment settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/entropy"
)

// File is the YAML run file. Every section is optional.
//
//	seed: 42
//	simulation:
//	  total_ticks: 336
//	  random_events: false
//	catalog: items.yaml     # or generate_items: 24
//	population:
//	  farmers: 10
type File struct {
	Seed          *int64                  `yaml:"seed"`
	Simulation    engine.Config           `yaml:"simulation"`
	CatalogPath   string                  `yaml:"catalog"`
	GenerateItems int                     `yaml:"generate_items"`
	Population    agents.PopulationConfig `yaml:"population"`
}

// Default returns a run file with every documented default filled in.
func Default() File {
	return File{
		Simulation: engine.DefaultConfig(),
		Population: agents.DefaultPopulation(),
	}
}

// Load reads a run file on top of the defaults, so omitted fields keep
// their default values.
func Load(path string) (File, error) {
	f := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the settings that do not depend on other files.
func (f File) Validate() error {
	if err := f.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if f.CatalogPath != "" && f.GenerateItems > 0 {
		return errors.New("catalog and generate_items are mutually exclusive")
	}
	if f.GenerateItems < 0 {
		return fmt.Errorf("generate_items must be >= 0, got %d", f.GenerateItems)
	}
	p := f.Population
	if p.Farmers < 0 || p.Crafters < 0 || p.Flippers < 0 || p.Consumers < 0 || p.Vendors < 0 {
		return errors.New("population counts must be >= 0")
	}
	return nil
}

// ResolveSeed returns the configured seed, or a random one.
func (f File) ResolveSeed() int64 {
	if f.Seed != nil {
		return *f.Seed
	}
	return entropy.CryptoSeed()
}

// ResolveCatalog returns the item definitions the run should use: a loaded
// override, a procedurally generated catalog, or the built-in default.
func (f File) ResolveCatalog(seed int64) ([]catalog.ItemDefinition, error) {
	switch {
	case f.CatalogPath != "":
		return catalog.Load(f.CatalogPath)
	case f.GenerateItems > 0:
		return catalog.Generate(seed, f.GenerateItems), nil
	default:
		return catalog.Default(), nil
	}
}

// Actors spawns the configured population for seed.
func (f File) Actors(seed int64) []agents.Spec {
	return agents.NewSpawner(seed).Spawn(f.Population)
}

// LoadEnv loads a .env file into the process environment if one exists.
// Variables already set take precedence.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvOrDefault returns the environment value of key, or def when unset.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvIntOrDefault returns key parsed as an int, or def when unset or invalid.
func EnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
