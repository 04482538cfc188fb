package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/job"
	"backtest-lab/internal/progress"
	"backtest-lab/internal/server/handler"
	"backtest-lab/internal/server/ws"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func minuteBars(closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		}
	}
	return bars
}

type testEnv struct {
	srv      *httptest.Server
	registry *job.Registry
	archive  *memory.ResultStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	bars := memory.NewPriceBarStore()
	require.NoError(t, bars.InsertBulk(ctx, "BTCUSDT", minuteBars(100, 101, 102, 103)))

	archive := memory.NewResultStore()
	bus := progress.NewBroadcaster()
	registry := job.NewRegistry(job.RegistryOptions{
		Publisher: bus,
		Sinks:     map[string]job.ResultSink{"memory": archive},
	})
	svc := backtest.NewService(backtest.ServiceOptions{Registry: registry, Bars: bars})

	h := NewHandler(Config{}, Handlers{
		Backtest: handler.NewBacktestHandler(svc, registry, archive, zap.NewNop()),
		Data:     handler.NewDataHandler(svc, zap.NewNop()),
		Progress: ws.NewProgressStream(registry, bus, nil, zap.NewNop()),
	}, zap.NewNop())

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		_ = registry.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, registry: registry, archive: archive}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (e *testEnv) submit(t *testing.T, quantity float64) string {
	t.Helper()
	body := `{"symbol":"BTCUSDT","start_date":"2024-03-01T00:00:00Z","end_date":"2024-03-01T01:00:00Z",` +
		`"quantity":` + strconv.FormatFloat(quantity, 'f', -1, 64) + `,` +
		`"strategy":{"type":"TIME_EXIT","hold_bars":2}}`
	resp, data := e.do(t, http.MethodPost, "/api/backtest/run", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, data)

	var out struct {
		BacktestID string `json:"backtest_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &out))
	require.NotEmpty(t, out.BacktestID)
	return out.BacktestID
}

func (e *testEnv) wait(t *testing.T, id string) domain.BacktestStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := e.registry.Wait(ctx, id)
	require.NoError(t, err)
	return status
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestCompletedJobEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, 1)
	env.wait(t, id)

	resp, body := env.do(t, http.MethodGet, "/api/backtest/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status, err := domain.DecodeStatus([]byte(body))
	require.NoError(t, err)
	completed, ok := status.(domain.Completed)
	require.True(t, ok, body)
	require.Len(t, completed.Trades, 1)
	assert.Equal(t, domain.ExitReasonTimeExit, completed.Trades[0].ExitReason)

	resp, body = env.do(t, http.MethodGet, "/api/backtest/status/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"`+id+`","progress":1,"status":"completed"}`, body)

	resp, body = env.do(t, http.MethodGet, "/api/backtest/result/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trades []domain.Trade
	require.NoError(t, json.Unmarshal([]byte(body), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, 100.0, trades[0].EntryPrice)
	assert.Equal(t, 102.0, trades[0].ExitPrice)

	resp, _ = env.do(t, http.MethodGet, "/api/backtest/error/"+id, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/backtest/summary/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary domain.TradeSummary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 1, summary.Wins)
	assert.InDelta(t, 2.0, summary.ProfitAbsTotal, 1e-9)

	resp, body = env.do(t, http.MethodGet, "/api/backtest/report/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.True(t, strings.HasPrefix(body, "# Backtest "+id))

	resp, body = env.do(t, http.MethodGet, "/api/backtest/report/"+id+"?format=csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(body, "seq,symbol,side,"))

	resp, _ = env.do(t, http.MethodGet, "/api/backtest/report/"+id+"?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/backtest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"backtests":[{"id":"`+id+`"`)
}

func TestFailedJobEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, 0)
	assert.Equal(t, domain.Failed{Error: "invalid quantity"}, env.wait(t, id))

	resp, body := env.do(t, http.MethodGet, "/api/backtest/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"Failed":"invalid quantity"}`, body)

	resp, body = env.do(t, http.MethodGet, "/api/backtest/error/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"error":"invalid quantity"}`, body)

	for _, path := range []string{"/api/backtest/result/", "/api/backtest/summary/", "/api/backtest/report/"} {
		resp, body = env.do(t, http.MethodGet, path+id, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
		assert.Contains(t, body, "job not completed", path)
	}
}

func TestRunRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/api/backtest/run", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"error"`)
}

func TestUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/backtest/nope"},
		{http.MethodGet, "/api/backtest/status/nope"},
		{http.MethodGet, "/api/backtest/result/nope"},
		{http.MethodGet, "/api/backtest/error/nope"},
		{http.MethodGet, "/api/backtest/summary/nope"},
		{http.MethodGet, "/api/backtest/report/nope"},
		{http.MethodGet, "/api/backtest/progress/nope"},
		{http.MethodPost, "/api/backtest/nope/cancel"},
		{http.MethodDelete, "/api/backtest/nope"},
	} {
		resp, body := env.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.path)
		assert.Contains(t, body, `"error"`, tc.path)
	}
}

// gatedSource blocks Load until release is closed or the job is cancelled.
type gatedSource struct {
	release chan struct{}
	series  *domain.PriceSeries
}

func (g gatedSource) Load(ctx context.Context) (*domain.PriceSeries, error) {
	select {
	case <-g.release:
		return g.series, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func gatedSpec(release chan struct{}) job.Spec {
	return job.Spec{
		Symbol:     "BTCUSDT",
		StrategyID: "TIME_EXIT",
		Source:     gatedSource{release: release, series: &domain.PriceSeries{Symbol: "BTCUSDT", Bars: minuteBars(100, 101, 102, 103)}},
		Strategy: func() (strategy.Strategy, error) {
			return strategy.NewTimeExitStrategy(domain.SideLong, 2), nil
		},
		Config: simulation.Config{Quantity: 1},
	}
}

func TestCancelAndDelete(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.registry.Create(gatedSpec(make(chan struct{})))
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodDelete, "/api/backtest/"+id, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "running jobs cannot be deleted")

	resp, _ = env.do(t, http.MethodPost, "/api/backtest/"+id+"/cancel", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, domain.Failed{Error: "cancelled"}, env.wait(t, id))

	resp, _ = env.do(t, http.MethodPost, "/api/backtest/"+id+"/cancel", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/backtest/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/backtest/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSummaryFallsBackToArchive(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, 2)
	env.wait(t, id)

	resp, _ := env.do(t, http.MethodDelete, "/api/backtest/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/backtest/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/backtest/summary/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var summary domain.TradeSummary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.InDelta(t, 4.0, summary.ProfitAbsTotal, 1e-9)
}

func TestListSymbols(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/data/symbols", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["BTCUSDT"]`, body)
}

func TestProgressWebsocket(t *testing.T) {
	env := newTestEnv(t)
	release := make(chan struct{})
	id, err := env.registry.Create(gatedSpec(release))
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/backtest/progress/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first domain.ProgressUpdate
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, domain.ProgressUpdate{ID: id, Progress: 0, Status: domain.StatusLabelRunning}, first)

	close(release)

	var updates []domain.ProgressUpdate
	for {
		var u domain.ProgressUpdate
		if err := conn.ReadJSON(&u); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		updates = append(updates, u)
	}

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, domain.StatusLabelCompleted, last.Status)
	assert.Equal(t, 1.0, last.Progress)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Progress, updates[i-1].Progress)
	}
}

func TestProgressWebsocket_TerminalJobSendsOnceAndCloses(t *testing.T) {
	env := newTestEnv(t)
	id := env.submit(t, 1)
	env.wait(t, id)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/backtest/progress/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var u domain.ProgressUpdate
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, domain.StatusLabelCompleted, u.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestCORSPreflight(t *testing.T) {
	bars := memory.NewPriceBarStore()
	registry := job.NewRegistry(job.RegistryOptions{})
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })
	svc := backtest.NewService(backtest.ServiceOptions{Registry: registry, Bars: bars})
	h := NewHandler(Config{CORSOrigins: []string{"http://localhost:3000"}}, Handlers{
		Backtest: handler.NewBacktestHandler(svc, registry, nil, zap.NewNop()),
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/backtest/run", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
