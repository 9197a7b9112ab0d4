package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pricebot/internal/domain"
)

func TestLatestPricesFiltersPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"symbol":"BTCUSDC","price":"42000.10"},{"symbol":"ETHUSDT","price":"2000"},{"symbol":"XRPUSDC","price":"0.5"}]`))
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL, time.Second)
	got, err := c.LatestPrices(context.Background(), []string{"BTCUSDC", "BTCUSDT", "ethusdt"})
	if err != nil {
		t.Fatalf("LatestPrices failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs, got %v", got)
	}
	if got["BTCUSDC"].String() != "42000.1" || got["ETHUSDT"].String() != "2000" {
		t.Errorf("unexpected prices %v", got)
	}
}

func TestLatestPricesStatusIsBatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	}))
	defer srv.Close()

	_, err := NewMarketClient(srv.URL, time.Second).LatestPrices(context.Background(), []string{"BTCUSDC"})
	if !errors.Is(err, domain.ErrBatchFetch) {
		t.Errorf("expected ErrBatchFetch, got %v", err)
	}
}

func TestLatestPricesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oops"`))
	}))
	defer srv.Close()

	_, err := NewMarketClient(srv.URL, time.Second).LatestPrices(context.Background(), []string{"BTCUSDC"})
	if !errors.Is(err, domain.ErrBatchFetch) {
		t.Errorf("expected ErrBatchFetch, got %v", err)
	}
}

func TestLatestPricesTransportIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewMarketClient(url, time.Second).LatestPrices(context.Background(), []string{"BTCUSDC"})
	if !errors.Is(err, domain.ErrTransientNetwork) {
		t.Errorf("expected ErrTransientNetwork, got %v", err)
	}
}

func TestKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v3/klines" || q.Get("symbol") != "BTCUSDC" || q.Get("interval") != "1h" || q.Get("limit") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[[1700000000000,"1","2","0.5","1.5","10",1700003599999,"15",3,"5","7","0"],
			[1700003600000,"1.5","2","1","1.75","10",1700007199999,"15",3,"5","7","0"]]`))
	}))
	defer srv.Close()

	candles, err := NewMarketClient(srv.URL, time.Second).Klines(context.Background(), "btcusdc", "1h", 2)
	if err != nil {
		t.Fatalf("Klines failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[1].Close.String() != "1.75" || candles[0].OpenTime.UnixMilli() != 1700000000000 {
		t.Errorf("unexpected candles %+v", candles)
	}
}
