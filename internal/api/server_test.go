package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-market/internal/analytics"
	"github.com/talgya/mini-market/internal/config"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/persistence"
)

const testKey = "secret"

func testDefaults() config.File {
	f := config.Default()
	f.Simulation.TotalTicks = 48
	return f
}

func newTestServer(t *testing.T, db *persistence.DB) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testDefaults(), db, 0, testKey)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url, key string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func createRun(t *testing.T, base string, body RunRequest) RunResponse {
	t.Helper()
	resp := post(t, base+"/api/v1/runs", testKey, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("create run: status=%d body=%s", resp.StatusCode, msg)
	}
	var out RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestStatusAndCatalog(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var status map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status code=%d", code)
	}
	if status["name"] != "mini-market" {
		t.Fatalf("status=%v", status)
	}

	var defs []map[string]any
	getJSON(t, ts.URL+"/api/v1/catalog", &defs)
	if len(defs) != 16 {
		t.Fatalf("catalog=%d items want 16", len(defs))
	}
	getJSON(t, ts.URL+"/api/v1/catalog?generate=5&seed=3", &defs)
	if len(defs) != 5 {
		t.Fatalf("generated catalog=%d items want 5", len(defs))
	}
}

func TestCreateRun_RequiresAdminKey(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp := post(t, ts.URL+"/api/v1/runs", "", RunRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status=%d want 401", resp.StatusCode)
	}

	open := NewServer(testDefaults(), nil, 0, "")
	ts2 := httptest.NewServer(open.Handler())
	defer ts2.Close()
	resp = post(t, ts2.URL+"/api/v1/runs", "anything", RunRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin disabled: status=%d want 403", resp.StatusCode)
	}
}

func TestRunLifecycle_InMemory(t *testing.T) {
	_, ts := newTestServer(t, nil)
	seed := int64(42)
	run := createRun(t, ts.URL, RunRequest{Seed: &seed})
	if run.RunID == "" || run.Seed != 42 || run.Ticks != 48 || run.Archived {
		t.Fatalf("run=%+v", run)
	}

	var res engine.Result
	if code := getJSON(t, ts.URL+"/api/v1/run/"+run.RunID, &res); code != http.StatusOK {
		t.Fatalf("get run code=%d", code)
	}
	if res.RunID != run.RunID || len(res.Items) != 16 {
		t.Fatalf("result id=%s items=%d", res.RunID, len(res.Items))
	}

	resp, err := http.Get(ts.URL + "/api/v1/run/" + run.RunID + "/report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "# Auction House Simulation Report") {
		t.Fatalf("report body: %.80s", body)
	}

	var f analytics.Forecast
	if code := getJSON(t, ts.URL+"/api/v1/run/"+run.RunID+"/forecast?item=copper_ore&ticks=12", &f); code != http.StatusOK {
		t.Fatalf("forecast code=%d", code)
	}
	if len(f.Points) != 12 || f.ItemID != "copper_ore" {
		t.Fatalf("forecast=%+v", f)
	}

	var d analytics.MarketDynamics
	if code := getJSON(t, ts.URL+"/api/v1/run/"+run.RunID+"/dynamics?item=copper_ore", &d); code != http.StatusOK {
		t.Fatalf("dynamics code=%d", code)
	}

	if code := getJSON(t, ts.URL+"/api/v1/run/"+run.RunID+"/forecast?item=nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown item code=%d want 404", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/run/missing", nil); code != http.StatusNotFound {
		t.Fatalf("unknown run code=%d want 404", code)
	}

	var runs []persistence.RunSummary
	getJSON(t, ts.URL+"/api/v1/runs", &runs)
	if len(runs) != 1 || runs[0].ID != run.RunID {
		t.Fatalf("runs=%+v", runs)
	}
}

func TestRunLifecycle_Archived(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, ts := newTestServer(t, db)
	run := createRun(t, ts.URL, RunRequest{})
	if !run.Archived {
		t.Fatalf("run not archived")
	}

	// A fresh server has an empty cache and must read the archive.
	_, fresh := newTestServer(t, db)
	var res engine.Result
	if code := getJSON(t, fresh.URL+"/api/v1/run/"+run.RunID, &res); code != http.StatusOK {
		t.Fatalf("archived run code=%d", code)
	}
	var f analytics.Forecast
	if code := getJSON(t, fresh.URL+"/api/v1/run/"+run.RunID+"/forecast?item=peacebloom", &f); code != http.StatusOK {
		t.Fatalf("archived forecast code=%d", code)
	}
	var txs []map[string]any
	if code := getJSON(t, fresh.URL+"/api/v1/run/"+run.RunID+"/transactions", &txs); code != http.StatusOK {
		t.Fatalf("archived transactions code=%d", code)
	}
	var runs []persistence.RunSummary
	getJSON(t, fresh.URL+"/api/v1/runs", &runs)
	if len(runs) != 1 {
		t.Fatalf("runs=%d want 1", len(runs))
	}
}

func TestCreateRun_RejectsBadEvent(t *testing.T) {
	_, ts := newTestServer(t, nil)
	body := map[string]any{
		"events": []map[string]any{{"type": "meteor", "magnitude": 0.5, "start_tick": 1, "duration_ticks": 5}},
	}
	resp := post(t, ts.URL+"/api/v1/runs", testKey, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
}

func TestImpact(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp := post(t, ts.URL+"/api/v1/impact", testKey, analytics.ImpactRequest{
		Type: "demand_spike", ItemID: "copper_ore", Magnitude: 0.8, DurationTicks: 12, Seed: 7,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, msg)
	}
	var rep analytics.ImpactReport
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.ItemID != "copper_ore" || rep.StartTick != analytics.ImpactStartTick {
		t.Fatalf("report=%+v", rep)
	}

	bad := post(t, ts.URL+"/api/v1/impact", testKey, analytics.ImpactRequest{
		Type: "demand_spike", ItemID: "nope", Magnitude: 0.8, DurationTicks: 12,
	})
	bad.Body.Close()
	if bad.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown item status=%d want 404", bad.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("other clients are independent")
	}
	if got := rl.RetryAfter("a"); got != 3601 {
		t.Fatalf("retry after=%d", got)
	}
	now = now.Add(time.Hour)
	if !rl.Allow("a") {
		t.Fatalf("window should reset")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("ip=%q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("forwarded ip=%q", got)
	}
}

func TestStream_SendsEveryTick(t *testing.T) {
	_, ts := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream?seed=5&ticks=3&interval_ms=10"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var frames []StreamFrame
	for {
		var f StreamFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f.Type == "done" {
			break
		}
	}
	if len(frames) != 5 {
		t.Fatalf("frames=%d want start + 3 ticks + done", len(frames))
	}
	if frames[0].Type != "start" || frames[0].Seed != 5 || len(frames[0].Items) != 16 {
		t.Fatalf("start frame=%+v", frames[0])
	}
	for i, f := range frames[1:4] {
		if f.Type != "tick" || f.Tick != i+1 {
			t.Fatalf("frame %d=%s@%d", i+1, f.Type, f.Tick)
		}
	}
	if frames[4].Analytics == nil {
		t.Fatalf("done frame missing analytics")
	}
}
