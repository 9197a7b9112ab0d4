package storage

import (
	"context"
	"sort"
	"sync"

	"pricebot/internal/application/port"
)

// InMemoryRepo keeps watchlists and snapshots in process memory. Used when
// no database is configured; state is lost on restart.
type InMemoryRepo struct {
	mu        sync.Mutex
	symbols   map[string][]string
	snapshots []Snapshot
	keep      int
}

// Snapshot is one stored cache snapshot.
type Snapshot struct {
	Ts      int64
	Payload string
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{symbols: make(map[string][]string), keep: 100}
}

func (r *InMemoryRepo) AddSymbol(ctx context.Context, session, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.symbols[session] {
		if s == symbol {
			return nil
		}
	}
	r.symbols[session] = append(r.symbols[session], symbol)
	return nil
}

func (r *InMemoryRepo) RemoveSymbol(ctx context.Context, session, symbol string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.symbols[session]
	for i, s := range list {
		if s != symbol {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(r.symbols, session)
		} else {
			r.symbols[session] = list
		}
		return true, nil
	}
	return false, nil
}

func (r *InMemoryRepo) ListSymbols(ctx context.Context, session string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.symbols[session]...), nil
}

func (r *InMemoryRepo) ListSessions(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// InsertSnapshot keeps the most recent snapshots only.
func (r *InMemoryRepo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, Snapshot{Ts: ts, Payload: payload})
	if len(r.snapshots) > r.keep {
		r.snapshots = append([]Snapshot(nil), r.snapshots[len(r.snapshots)-r.keep:]...)
	}
	return nil
}

func (r *InMemoryRepo) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snapshots...)
}

func (r *InMemoryRepo) Close() error { return nil }

var (
	_ port.WatchlistRepository = (*InMemoryRepo)(nil)
	_ port.SnapshotRepository  = (*InMemoryRepo)(nil)
)
