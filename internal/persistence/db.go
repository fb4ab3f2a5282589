// Package persistence archives simulation runs in SQLite. Each run keeps its
// queryable tables (items, history, transactions, events) plus the full
// result as a zstd-compressed JSON blob.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-market/internal/catalog"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// createdAtLayout is fixed-width so created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; SQLite serializes anyway.
	conn.SetMaxOpenConns(1)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.dec.Close()
	db.enc.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		total_ticks INTEGER NOT NULL,
		ticks_simulated INTEGER NOT NULL,
		item_count INTEGER NOT NULL,
		actor_count INTEGER NOT NULL,
		transaction_count INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		market_health INTEGER NOT NULL,
		inflation_rate REAL NOT NULL,
		config_json TEXT NOT NULL,
		result_zst BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		run_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		base_price REAL NOT NULL,
		base_supply REAL NOT NULL,
		base_demand REAL NOT NULL,
		current_price REAL NOT NULL,
		supply REAL NOT NULL,
		demand REAL NOT NULL,
		volatility REAL NOT NULL,
		trend TEXT NOT NULL,
		total_volume INTEGER NOT NULL,
		last_trade_price REAL NOT NULL,
		PRIMARY KEY (run_id, item_id)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		run_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		price REAL NOT NULL,
		supply INTEGER NOT NULL,
		demand INTEGER NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (run_id, item_id, tick)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		run_id TEXT NOT NULL,
		id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		category TEXT NOT NULL,
		magnitude REAL NOT NULL,
		start_tick INTEGER NOT NULL,
		duration_ticks INTEGER NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(run_id, item_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunSummary is one row of the run index.
type RunSummary struct {
	ID               string  `json:"id" db:"id"`
	CreatedAt        string  `json:"created_at" db:"created_at"`
	Seed             int64   `json:"seed" db:"seed"`
	TotalTicks       int     `json:"total_ticks" db:"total_ticks"`
	TicksSimulated   int     `json:"ticks_simulated" db:"ticks_simulated"`
	ItemCount        int     `json:"item_count" db:"item_count"`
	ActorCount       int     `json:"actor_count" db:"actor_count"`
	TransactionCount int     `json:"transaction_count" db:"transaction_count"`
	EventCount       int     `json:"event_count" db:"event_count"`
	MarketHealth     int     `json:"market_health" db:"market_health"`
	InflationRate    float64 `json:"inflation_rate" db:"inflation_rate"`
}

type itemRow struct {
	RunID          string  `db:"run_id"`
	ItemID         string  `db:"item_id"`
	Name           string  `db:"name"`
	Category       string  `db:"category"`
	BasePrice      float64 `db:"base_price"`
	BaseSupply     float64 `db:"base_supply"`
	BaseDemand     float64 `db:"base_demand"`
	CurrentPrice   float64 `db:"current_price"`
	Supply         float64 `db:"supply"`
	Demand         float64 `db:"demand"`
	Volatility     float64 `db:"volatility"`
	Trend          string  `db:"trend"`
	TotalVolume    int     `db:"total_volume"`
	LastTradePrice float64 `db:"last_trade_price"`
}

type historyRow struct {
	RunID  string `db:"run_id"`
	ItemID string `db:"item_id"`
	economy.PriceSnapshot
}

type transactionRow struct {
	RunID string `db:"run_id"`
	economy.Transaction
}

type eventRow struct {
	RunID string `db:"run_id"`
	events.Event
}

// SaveRun archives res in a single transaction and returns its run id. A
// result without a RunID is assigned a new one.
func (db *DB) SaveRun(res *engine.Result) (string, error) {
	if res.RunID == "" {
		res.RunID = NewRunID()
	}
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	blob := db.enc.EncodeAll(raw, nil)

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	summary := RunSummary{
		ID:               res.RunID,
		CreatedAt:        time.Now().UTC().Format(createdAtLayout),
		Seed:             res.Seed,
		TotalTicks:       res.TotalTicks,
		TicksSimulated:   res.TicksSimulated,
		ItemCount:        len(res.Items),
		ActorCount:       len(res.Actors),
		TransactionCount: res.Analytics.TotalTransactions,
		EventCount:       res.Analytics.EventCount,
		MarketHealth:     res.Analytics.MarketHealth,
		InflationRate:    res.Analytics.InflationRate,
	}
	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, seed, total_ticks, ticks_simulated, item_count, actor_count,
		 transaction_count, event_count, market_health, inflation_rate, config_json, result_zst)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.CreatedAt, summary.Seed, summary.TotalTicks, summary.TicksSimulated,
		summary.ItemCount, summary.ActorCount, summary.TransactionCount, summary.EventCount,
		summary.MarketHealth, summary.InflationRate, string(cfgJSON), blob,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, it := range res.Items {
		row := itemRow{
			RunID: res.RunID, ItemID: it.ID, Name: it.Name, Category: string(it.Category),
			BasePrice: it.BasePrice, BaseSupply: it.BaseSupply, BaseDemand: it.BaseDemand,
			CurrentPrice: it.CurrentPrice, Supply: it.Supply, Demand: it.Demand,
			Volatility: it.Volatility, Trend: string(it.Trend),
			TotalVolume: it.TotalVolume, LastTradePrice: it.LastTradePrice,
		}
		if _, err := tx.NamedExec(`INSERT INTO items
			(run_id, item_id, name, category, base_price, base_supply, base_demand, current_price,
			 supply, demand, volatility, trend, total_volume, last_trade_price)
			VALUES (:run_id, :item_id, :name, :category, :base_price, :base_supply, :base_demand,
			 :current_price, :supply, :demand, :volatility, :trend, :total_volume, :last_trade_price)`, row); err != nil {
			return "", fmt.Errorf("insert item %s: %w", it.ID, err)
		}
		for _, snap := range it.PriceHistory {
			if _, err := tx.NamedExec(`INSERT INTO price_history
				(run_id, item_id, tick, price, supply, demand, volume)
				VALUES (:run_id, :item_id, :tick, :price, :supply, :demand, :volume)`,
				historyRow{RunID: res.RunID, ItemID: it.ID, PriceSnapshot: snap}); err != nil {
				return "", fmt.Errorf("insert history %s@%d: %w", it.ID, snap.Tick, err)
			}
		}
	}

	for _, t := range res.Transactions {
		if _, err := tx.NamedExec(`INSERT INTO transactions
			(run_id, id, item_id, quantity, price, buyer_id, seller_id, tick, type)
			VALUES (:run_id, :id, :item_id, :quantity, :price, :buyer_id, :seller_id, :tick, :type)`,
			transactionRow{RunID: res.RunID, Transaction: t}); err != nil {
			return "", fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for _, e := range res.Events {
		if _, err := tx.NamedExec(`INSERT INTO events
			(run_id, id, type, item_id, category, magnitude, start_tick, duration_ticks, description)
			VALUES (:run_id, :id, :type, :item_id, :category, :magnitude, :start_tick, :duration_ticks, :description)`,
			eventRow{RunID: res.RunID, Event: e}); err != nil {
			return "", fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run saved", "run", res.RunID, "items", len(res.Items), "transactions", len(res.Transactions), "bytes", len(blob))
	return res.RunID, nil
}

// LoadResult restores the full archived result of a run.
func (db *DB) LoadResult(runID string) (*engine.Result, error) {
	var blob []byte
	err := db.conn.Get(&blob, "SELECT result_zst FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	raw, err := db.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress run %s: %w", runID, err)
	}
	var res engine.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &res, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	runs := []RunSummary{}
	err := db.conn.Select(&runs, `SELECT id, created_at, seed, total_ticks, ticks_simulated,
		item_count, actor_count, transaction_count, event_count, market_health, inflation_rate
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	return runs, err
}

// LoadItem rebuilds an item's archived final state and price history from
// the queryable tables.
func (db *DB) LoadItem(runID, itemID string) (*economy.Item, error) {
	var row itemRow
	err := db.conn.Get(&row, "SELECT * FROM items WHERE run_id = ? AND item_id = ?", runID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s in run %s", ErrRunNotFound, itemID, runID)
	}
	if err != nil {
		return nil, err
	}

	var hist []economy.PriceSnapshot
	if err := db.conn.Select(&hist, `SELECT tick, price, supply, demand, volume
		FROM price_history WHERE run_id = ? AND item_id = ? ORDER BY tick`, runID, itemID); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return &economy.Item{
		ID:             row.ItemID,
		Name:           row.Name,
		Category:       catalog.Category(row.Category),
		BasePrice:      row.BasePrice,
		BaseSupply:     row.BaseSupply,
		BaseDemand:     row.BaseDemand,
		CurrentPrice:   row.CurrentPrice,
		Supply:         row.Supply,
		Demand:         row.Demand,
		Volatility:     row.Volatility,
		Trend:          economy.Trend(row.Trend),
		PriceHistory:   hist,
		TotalVolume:    row.TotalVolume,
		LastTradePrice: row.LastTradePrice,
	}, nil
}

// Transactions returns archived transactions of a run for one item, oldest
// first. An empty itemID returns all of them.
func (db *DB) Transactions(runID, itemID string) ([]economy.Transaction, error) {
	txs := []economy.Transaction{}
	q := `SELECT id, item_id, quantity, price, buyer_id, seller_id, tick, type
		FROM transactions WHERE run_id = ?`
	args := []any{runID}
	if itemID != "" {
		q += " AND item_id = ?"
		args = append(args, itemID)
	}
	q += " ORDER BY tick, rowid"
	err := db.conn.Select(&txs, q, args...)
	return txs, err
}
