package port

import "context"

// WatchlistRepository persists the (session, symbol) pairs each session tracks.
type WatchlistRepository interface {
	// AddSymbol is idempotent.
	AddSymbol(ctx context.Context, session, symbol string) error
	// RemoveSymbol reports whether a row existed.
	RemoveSymbol(ctx context.Context, session, symbol string) (bool, error)
	// ListSymbols returns the session's symbols in insertion order.
	ListSymbols(ctx context.Context, session string) ([]string, error)
	ListSessions(ctx context.Context) ([]string, error)

	Close() error
}

// SnapshotRepository stores periodic serialized cache snapshots.
type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, ts int64, payload string) error
}
