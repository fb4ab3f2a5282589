// Package api provides the HTTP API for running and inspecting simulations.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/analytics"
	"github.com/talgya/mini-market/internal/config"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
	"github.com/talgya/mini-market/internal/persistence"
	"github.com/talgya/mini-market/internal/report"
)

const (
	// Recent results kept in memory for lookups without the archive.
	maxCachedRuns = 16
	// Upper bounds on client-requested work.
	maxRunTicks      = 24 * 7 * 52
	maxForecastTicks = 168
	maxStreamConns   = 2
)

// Server serves simulation runs over HTTP.
type Server struct {
	DB       *persistence.DB // Optional run archive. Nil = in-memory only.
	Port     int
	AdminKey string      // Bearer token for POST endpoints. Empty = POST disabled.
	Defaults config.File // Base settings for runs requested over the API.

	startedAt   time.Time
	streamConns int32 // Active websocket streams (atomic).
	runsServed  atomic.Int64

	mu       sync.Mutex
	cache    map[string]*engine.Result
	cacheIDs []string // Oldest first
}

// NewServer creates a server with the given defaults.
func NewServer(defaults config.File, db *persistence.DB, port int, adminKey string) *Server {
	return &Server{
		DB:        db,
		Port:      port,
		AdminKey:  adminKey,
		Defaults:  defaults,
		startedAt: time.Now(),
		cache:     make(map[string]*engine.Result),
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	// Impact comparisons run two full simulations per call.
	impactLimiter := NewRateLimiter(30, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("/api/v1/run/", s.handleRunRoutes)

	// Live tick stream over websocket.
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// GET lists, POST (admin) starts a run.
	mux.HandleFunc("/api/v1/runs", s.adminOnly(s.handleRuns))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/impact", s.adminOnly(RateLimitMiddleware(impactLimiter, s.handleImpact)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no MARKETSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cached := len(s.cacheIDs)
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"name":           "mini-market",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"runs_served":    s.runsServed.Load(),
		"cached_runs":    cached,
		"archive":        s.DB != nil,
		"streams":        atomic.LoadInt32(&s.streamConns),
		"defaults":       s.Defaults.Simulation,
	})
}

// handleCatalog returns the default catalog, or a generated preview with
// ?generate=N&seed=S.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	f := s.Defaults
	if n := queryInt(r, "generate", 0); n > 0 {
		f.CatalogPath = ""
		f.GenerateItems = min(n, 256)
	}
	defs, err := f.ResolveCatalog(int64(queryInt(r, "seed", 0)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, defs)
}

// RunRequest is the body of POST /api/v1/runs. Omitted fields fall back to
// the server defaults.
type RunRequest struct {
	Seed          *int64                   `json:"seed,omitempty"`
	Simulation    *engine.Config           `json:"simulation,omitempty"`
	GenerateItems int                      `json:"generate_items,omitempty"`
	Population    *agents.PopulationConfig `json:"population,omitempty"`
	Events        []events.Event           `json:"events,omitempty"`
}

// RunResponse is returned after a run completes.
type RunResponse struct {
	RunID     string           `json:"run_id"`
	Seed      int64            `json:"seed"`
	Ticks     int              `json:"ticks"`
	Archived  bool             `json:"archived"`
	Analytics engine.Analytics `json:"analytics"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRuns(w, r)
	case http.MethodPost:
		s.createRun(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if s.DB != nil {
		runs, err := s.DB.ListRuns(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, runs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]persistence.RunSummary, 0, len(s.cacheIDs))
	for i := len(s.cacheIDs) - 1; i >= 0 && len(out) < limit; i-- {
		res := s.cache[s.cacheIDs[i]]
		out = append(out, persistence.RunSummary{
			ID:               res.RunID,
			Seed:             res.Seed,
			TotalTicks:       res.TotalTicks,
			TicksSimulated:   res.TicksSimulated,
			ItemCount:        len(res.Items),
			ActorCount:       len(res.Actors),
			TransactionCount: res.Analytics.TotalTransactions,
			EventCount:       res.Analytics.EventCount,
			MarketHealth:     res.Analytics.MarketHealth,
			InflationRate:    res.Analytics.InflationRate,
		})
	}
	writeJSON(w, out)
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	f := s.Defaults
	if req.Seed != nil {
		f.Seed = req.Seed
	}
	if req.Simulation != nil {
		f.Simulation = *req.Simulation
	}
	if req.GenerateItems > 0 {
		f.CatalogPath = ""
		f.GenerateItems = req.GenerateItems
	}
	if req.Population != nil {
		f.Population = *req.Population
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if f.Simulation.TotalTicks > maxRunTicks {
		writeError(w, http.StatusBadRequest, fmt.Errorf("total_ticks above limit of %d", maxRunTicks))
		return
	}

	seed := f.ResolveSeed()
	defs, err := f.ResolveCatalog(seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sim := engine.New(f.Simulation, seed)
	if err := sim.Initialize(defs, f.Actors(seed)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, e := range req.Events {
		if _, err := sim.InjectEvent(e); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("event %s: %w", e.Type, err))
			return
		}
	}

	res := sim.Run()
	res.RunID = persistence.NewRunID()
	archived := false
	if s.DB != nil {
		if _, err := s.DB.SaveRun(res); err != nil {
			slog.Error("archive run", "run", res.RunID, "error", err)
		} else {
			archived = true
		}
	}
	s.remember(res)
	s.runsServed.Add(1)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, RunResponse{
		RunID:     res.RunID,
		Seed:      res.Seed,
		Ticks:     res.TicksSimulated,
		Archived:  archived,
		Analytics: res.Analytics,
	})
}

// handleRunRoutes dispatches GET /api/v1/run/:id[/report|/forecast|/dynamics|/transactions].
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/run/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		res, err := s.lookup(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, res)
	case "report":
		res, err := s.lookup(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, report.Markdown(res))
	case "forecast":
		it, err := s.lookupItem(id, r.URL.Query().Get("item"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		ticks := min(max(queryInt(r, "ticks", 24), 1), maxForecastTicks)
		f, err := analytics.ForecastPrice(it, ticks)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, f)
	case "dynamics":
		it, err := s.lookupItem(id, r.URL.Query().Get("item"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		d, err := analytics.AnalyzeMarketDynamics(it)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, d)
	case "transactions":
		s.handleRunTransactions(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRunTransactions(w http.ResponseWriter, r *http.Request, id string) {
	itemID := r.URL.Query().Get("item")
	if res := s.cached(id); res != nil {
		out := []economy.Transaction{}
		for _, tx := range res.Transactions {
			if itemID == "" || tx.ItemID == itemID {
				out = append(out, tx)
			}
		}
		writeJSON(w, out)
		return
	}
	if s.DB == nil {
		writeLookupError(w, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id))
		return
	}
	txs, err := s.DB.Transactions(id, itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, txs)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req analytics.ImpactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.Config == nil {
		cfg := s.Defaults.Simulation
		req.Config = &cfg
	}
	if req.Config.TotalTicks > maxRunTicks {
		writeError(w, http.StatusBadRequest, fmt.Errorf("total_ticks above limit of %d", maxRunTicks))
		return
	}
	rep, err := analytics.SimulateMarketEvent(req)
	if err != nil {
		// Anything not mapped is a bad request shape, not a server fault.
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	s.runsServed.Add(2)
	writeJSON(w, rep)
}

// remember caches res, evicting the oldest entry beyond maxCachedRuns.
func (s *Server) remember(res *engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[res.RunID]; !ok {
		s.cacheIDs = append(s.cacheIDs, res.RunID)
	}
	s.cache[res.RunID] = res
	for len(s.cacheIDs) > maxCachedRuns {
		delete(s.cache, s.cacheIDs[0])
		s.cacheIDs = s.cacheIDs[1:]
	}
}

func (s *Server) cached(id string) *engine.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[id]
}

// lookup finds a run in the cache, then the archive.
func (s *Server) lookup(id string) (*engine.Result, error) {
	if res := s.cached(id); res != nil {
		return res, nil
	}
	if s.DB == nil {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id)
	}
	return s.DB.LoadResult(id)
}

// lookupItem finds an item's final state and history for a run.
func (s *Server) lookupItem(runID, itemID string) (*economy.Item, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: missing ?item=", analytics.ErrUnknownItem)
	}
	if res := s.cached(runID); res != nil {
		for i := range res.Items {
			if res.Items[i].ID == itemID {
				it := res.Items[i]
				return &it, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", analytics.ErrUnknownItem, itemID)
	}
	if s.DB == nil {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, runID)
	}
	return s.DB.LoadItem(runID, itemID)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeLookupError writes err with the status its sentinel maps to.
func writeLookupError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err, http.StatusInternalServerError), err)
}

// statusFor maps domain errors onto HTTP statuses, or fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, persistence.ErrRunNotFound), errors.Is(err, analytics.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, events.ErrUnknownType), errors.Is(err, events.ErrInvalidWindow), errors.Is(err, events.ErrInvalidMagnitude):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
