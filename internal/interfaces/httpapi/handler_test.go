package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricebot/internal/application/retry"
	"pricebot/internal/application/service"
	"pricebot/internal/application/usecase/command"
	"pricebot/internal/application/usecase/tracker"
	"pricebot/internal/domain"
	"pricebot/internal/infrastructure/storage"
	"pricebot/internal/interfaces/console"
)

type stubMarket struct {
	prices map[string]decimal.Decimal
}

func (m *stubMarket) LatestPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, p := range pairs {
		if px, ok := m.prices[p]; ok {
			out[p] = px
		}
	}
	return out, nil
}

func (m *stubMarket) Klines(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	px, ok := m.prices[pair]
	if !ok {
		return nil, nil
	}
	return []domain.Candle{{OpenTime: time.UnixMilli(1000), Close: px}}, nil
}

type stubFeed struct{}

func (stubFeed) Name() string   { return "binance" }
func (stubFeed) Status() string { return "connected" }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	market := &stubMarket{prices: map[string]decimal.Decimal{
		"BTCUSDC": decimal.NewFromInt(40000),
		"ETHUSDC": decimal.NewFromInt(2000),
		"ZEROUSDC": decimal.Zero,
	}}
	cache := domain.NewCache()
	prices := service.NewPriceService(cache, market, service.PriceServiceConfig{Quote: "USDC", FallbackQuote: "USDT"})
	watchlist := service.NewWatchlistService(storage.NewInMemoryRepo(), cache)
	sched := tracker.NewScheduler(tracker.Config{Interval: time.Hour, Quote: "USDC", Retry: retry.Policy{MaxAttempts: 1}},
		tracker.Deps{Prices: prices, Watchlist: watchlist, Publisher: console.NewSinkTo(&strings.Builder{})})
	t.Cleanup(sched.Shutdown)

	cmds := command.New(command.Deps{
		Watchlist: watchlist,
		Prices:    prices,
		Convert:   service.NewConvertService(prices),
		Chart:     service.NewChartService(market, "USDC"),
		Scheduler: sched,
		Defaults:  []string{"BTC", "ETH"},
	})
	return NewRouter(NewHandler(cmds, stubFeed{}))
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"state":"connected"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/sessions/42/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/sessions/42", "")
	var st command.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Active || len(st.Symbols) != 2 {
		t.Errorf("unexpected status %+v", st)
	}

	if w := do(r, http.MethodPost, "/api/v1/sessions/42/stop", ""); w.Code != http.StatusNoContent {
		t.Errorf("stop: expected 204, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/42/stop", ""); w.Code != http.StatusNotFound {
		t.Errorf("second stop: expected 404, got %d", w.Code)
	}
}

func TestSymbols(t *testing.T) {
	r := newTestRouter(t)

	if w := do(r, http.MethodPost, "/api/v1/sessions/1/symbols", `{"symbol":"btc"}`); w.Code != http.StatusCreated {
		t.Errorf("add: expected 201, got %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/1/symbols", `{"symbol":"BTC"}`); w.Code != http.StatusOK {
		t.Errorf("re-add: expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/1/symbols", `{"symbol":"nope"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown: expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/1/symbols", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: expected 400, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/sessions/1/symbols/btc", ""); w.Code != http.StatusNoContent {
		t.Errorf("remove: expected 204, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/sessions/1/symbols/btc", ""); w.Code != http.StatusNotFound {
		t.Errorf("second remove: expected 404, got %d", w.Code)
	}
}

func TestPrices(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/prices?symbols=btc,nope", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Prices map[string]*string `json:"prices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Prices["BTC"] == nil || *body.Prices["BTC"] != "40000" {
		t.Errorf("unexpected BTC %v", body.Prices["BTC"])
	}
	if p, ok := body.Prices["NOPE"]; !ok || p != nil {
		t.Errorf("NOPE should be present and null")
	}

	if w := do(r, http.MethodGet, "/api/v1/prices", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without symbols, got %d", w.Code)
	}
}

func TestConvert(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/convert?amount=2&from=btc&to=eth", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"result":"40"`) {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/convert?amount=x&from=btc&to=eth", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad amount, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/convert?amount=1&from=btc&to=zero", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for zero target, got %d", w.Code)
	}
}

func TestChart(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/chart/eth?period=30d", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"close":"2000"`) {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/chart/eth?period=bad", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad period, got %d", w.Code)
	}
}

func TestMessageDeletedStopsSession(t *testing.T) {
	r := newTestRouter(t)
	do(r, http.MethodPost, "/api/v1/sessions/7/start", "")

	var st command.Status
	deadline := time.Now().Add(2 * time.Second)
	for st.MessageID == "" {
		if time.Now().After(deadline) {
			t.Fatalf("board message was never sent")
		}
		time.Sleep(10 * time.Millisecond)
		w := do(r, http.MethodGet, "/api/v1/sessions/7", "")
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
	}

	if w := do(r, http.MethodDelete, "/api/v1/sessions/7/messages/other", ""); !strings.Contains(w.Body.String(), `"stopped":false`) {
		t.Errorf("unrelated message must not stop the session: %s", w.Body.String())
	}
	w := do(r, http.MethodDelete, "/api/v1/sessions/7/messages/"+st.MessageID, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"stopped":true`) {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}
