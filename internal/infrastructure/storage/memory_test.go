package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestInMemoryRepoWatchlist(t *testing.T) {
	r := NewInMemoryRepo()
	ctx := context.Background()

	r.AddSymbol(ctx, "b", "BTC")
	r.AddSymbol(ctx, "a", "ETH")
	r.AddSymbol(ctx, "a", "ETH")

	if got, _ := r.ListSymbols(ctx, "a"); len(got) != 1 {
		t.Errorf("add should be idempotent, got %v", got)
	}
	if got, _ := r.ListSessions(ctx); len(got) != 2 || got[0] != "a" {
		t.Errorf("unexpected sessions %v", got)
	}
	if ok, _ := r.RemoveSymbol(ctx, "a", "ETH"); !ok {
		t.Errorf("expected ETH removed")
	}
	if got, _ := r.ListSessions(ctx); len(got) != 1 {
		t.Errorf("empty session should disappear, got %v", got)
	}
}

func TestInMemoryRepoSnapshotsAreCapped(t *testing.T) {
	r := NewInMemoryRepo()
	for i := 0; i < 150; i++ {
		r.InsertSnapshot(context.Background(), int64(i), fmt.Sprint(i))
	}
	snaps := r.Snapshots()
	if len(snaps) != 100 || snaps[0].Ts != 50 {
		t.Errorf("expected the last 100 snapshots, got %d starting at %d", len(snaps), snaps[0].Ts)
	}
}
