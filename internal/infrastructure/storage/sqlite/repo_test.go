package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "data", "bot.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepoWatchlist(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, sym := range []string{"SOL", "ETH", "BTC", "ETH"} {
		if err := repo.AddSymbol(ctx, "chat-1", sym); err != nil {
			t.Fatalf("AddSymbol failed: %v", err)
		}
	}
	repo.AddSymbol(ctx, "chat-2", "BTC")

	got, err := repo.ListSymbols(ctx, "chat-1")
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	if len(got) != 3 || got[0] != "SOL" || got[1] != "ETH" || got[2] != "BTC" {
		t.Errorf("expected [SOL ETH BTC] in insertion order, got %v", got)
	}

	removed, err := repo.RemoveSymbol(ctx, "chat-1", "ETH")
	if err != nil || !removed {
		t.Fatalf("expected ETH to be removed, got %v %v", removed, err)
	}
	removed, _ = repo.RemoveSymbol(ctx, "chat-1", "ETH")
	if removed {
		t.Errorf("second remove should report no row")
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "chat-1" || sessions[1] != "chat-2" {
		t.Errorf("unexpected sessions %v", sessions)
	}
}

func TestSQLiteRepoSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := repo.LatestSnapshot(ctx); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows, got %v", err)
	}
	repo.InsertSnapshot(ctx, 1000, `{"BTC":{"price":"1"}}`)
	repo.InsertSnapshot(ctx, 2000, `{"BTC":{"price":"2"}}`)

	ts, payload, err := repo.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if ts != 2000 || payload != `{"BTC":{"price":"2"}}` {
		t.Errorf("unexpected snapshot %d %s", ts, payload)
	}
}
