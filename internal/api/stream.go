// Live tick stream. Each websocket connection drives its own paced run and
// receives one frame per tick.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/events"
)

const (
	defaultStreamInterval = 250 * time.Millisecond
	minStreamInterval     = 10 * time.Millisecond
	streamWriteTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamFrame is one message on the tick stream.
type StreamFrame struct {
	Type      string            `json:"type"` // "start", "tick" or "done"
	Tick      int               `json:"tick"`
	SimTime   string            `json:"sim_time"`
	Seed      int64             `json:"seed,omitempty"`
	Items     []ItemTick        `json:"items,omitempty"`
	Events    []events.Event    `json:"events,omitempty"` // Events that started this tick
	Analytics *engine.Analytics `json:"analytics,omitempty"`
}

// ItemTick is an item's state after a tick.
type ItemTick struct {
	ID     string        `json:"id"`
	Price  float64       `json:"price"`
	Supply int           `json:"supply"`
	Demand int           `json:"demand"`
	Volume int           `json:"volume"`
	Trend  economy.Trend `json:"trend"`
}

// handleStream upgrades to a websocket and streams a fresh run. Query
// parameters: seed, ticks, interval_ms.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	f := s.Defaults
	if v := r.URL.Query().Get("seed"); v != "" {
		seed := int64(queryInt(r, "seed", 0))
		f.Seed = &seed
	}
	if n := queryInt(r, "ticks", 0); n > 0 {
		f.Simulation.TotalTicks = min(n, maxRunTicks)
	}
	interval := time.Duration(queryInt(r, "interval_ms", int(defaultStreamInterval/time.Millisecond))) * time.Millisecond
	interval = max(interval, minStreamInterval)

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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the client sends nothing we use; a read error means it left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(frame StreamFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			cancel()
			return false
		}
		return true
	}

	slog.Info("stream client connected", "seed", seed, "ticks", f.Simulation.TotalTicks, "interval", interval)
	if !send(StreamFrame{Type: "start", Seed: seed, SimTime: engine.SimTime(0), Items: itemTicks(sim.Items(), 0)}) {
		return
	}

	runner := engine.NewRunner(sim)
	runner.Interval = interval
	seenEvents := 0
	runner.OnTick = func(tick int) {
		evts := sim.Events()
		frame := StreamFrame{
			Type:    "tick",
			Tick:    tick,
			SimTime: engine.SimTime(tick),
			Items:   itemTicks(sim.Items(), tick),
		}
		if len(evts) > seenEvents {
			frame.Events = append([]events.Event(nil), evts[seenEvents:]...)
			seenEvents = len(evts)
		}
		send(frame)
	}
	if err := runner.Run(ctx); err != nil {
		slog.Info("stream client disconnected", "seed", seed, "tick", sim.CurrentTick())
		return
	}

	res := sim.Result()
	send(StreamFrame{Type: "done", Tick: sim.CurrentTick(), SimTime: engine.SimTime(sim.CurrentTick()), Seed: seed, Analytics: &res.Analytics})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"),
		time.Now().Add(time.Second))
}

func itemTicks(items []*economy.Item, tick int) []ItemTick {
	out := make([]ItemTick, 0, len(items))
	for _, it := range items {
		vol := 0
		if n := len(it.PriceHistory); n > 0 && it.PriceHistory[n-1].Tick == tick {
			vol = it.PriceHistory[n-1].Volume
		}
		out = append(out, ItemTick{
			ID:     it.ID,
			Price:  it.CurrentPrice,
			Supply: int(it.Supply + 0.5),
			Demand: int(it.Demand + 0.5),
			Volume: vol,
			Trend:  it.Trend,
		})
	}
	return out
}
