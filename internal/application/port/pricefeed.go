package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pricebot/internal/domain"
)

// PriceStore is the shared cache + subscription set as seen by the feed and the resolver.
type PriceStore interface {
	Subscribe(symbol string) bool
	Unsubscribe(symbol string) bool
	UnsubscribeUntracked(symbol string) bool
	Subscribed(symbol string) bool
	Sessions(symbol string) int
	Symbols() []string
	Changes() <-chan struct{}
	Read(symbol string, maxAge time.Duration) (domain.Observation, bool)
	WriteIfSubscribed(symbol string, price decimal.Decimal, ts time.Time) bool
}

// Tracker keeps per-session references on subscribed symbols.
type Tracker interface {
	Track(session, symbol string) bool
	Release(session, symbol string) bool
}

// SnapshotSource fetches latest prices for a batch of pairs (e.g. "BTCUSDC")
// in one request. Pairs missing upstream are absent from the result.
// Transport failures wrap domain.ErrTransientNetwork, bad status or body
// wraps domain.ErrBatchFetch.
type SnapshotSource interface {
	LatestPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error)
}

// CandleSource serves historical bars for charting.
type CandleSource interface {
	Klines(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error)
}
