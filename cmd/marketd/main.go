// Command marketd serves auction house simulations over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/mini-market/internal/api"
	"github.com/talgya/mini-market/internal/config"
	"github.com/talgya/mini-market/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := config.LoadEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	port := config.EnvIntOrDefault("MARKETSIM_PORT", 8080)
	dbPath := config.EnvOrDefault("MARKETSIM_DB", "data/market.db")
	cfgPath := os.Getenv("MARKETSIM_CONFIG")
	adminKey := os.Getenv("MARKETSIM_ADMIN_KEY")

	slog.Info("mini-market auction house simulator")

	// ── Run defaults ─────────────────────────────────────────────────
	defaults := config.Default()
	if cfgPath != "" {
		f, err := config.Load(cfgPath)
		if err != nil {
			slog.Error("failed to load run config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
		defaults = f
		slog.Info("run config loaded", "path", cfgPath)
	}
	slog.Info("run defaults",
		"total_ticks", defaults.Simulation.TotalTicks,
		"ah_cut", defaults.Simulation.AuctionHouseCut,
		"random_events", defaults.Simulation.RandomEvents,
		"actors", defaults.Population.Total(),
	)

	// ── Archive ──────────────────────────────────────────────────────
	var db *persistence.DB
	if dbPath != "" && dbPath != "none" {
		var err error
		db, err = openArchive(dbPath)
		if err != nil {
			slog.Error("failed to open database", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", dbPath)
	} else {
		slog.Warn("MARKETSIM_DB=none, runs are kept in memory only")
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	if adminKey == "" {
		slog.Warn("MARKETSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	server := api.NewServer(defaults, db, port, adminKey)
	server.Start()

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	fmt.Println("Serving... (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}

// openArchive creates the database directory if needed and opens the archive.
func openArchive(path string) (*persistence.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return persistence.Open(path)
}
