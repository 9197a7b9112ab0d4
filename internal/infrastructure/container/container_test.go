package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"pricebot/internal/infrastructure/config"
	"pricebot/internal/infrastructure/storage"
	sqliterepo "pricebot/internal/infrastructure/storage/sqlite"
)

func mustParse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(doc)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestContainerMemoryFallback(t *testing.T) {
	c, err := New(mustParse(t, ""))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.Watchlist().(*storage.InMemoryRepo); !ok {
		t.Errorf("expected the in-memory watchlist, got %T", c.Watchlist())
	}
	if c.Snapshots().Len() != 1 {
		t.Errorf("expected one snapshot sink")
	}
	if c.Publisher() != nil {
		t.Errorf("publisher needs redis")
	}
}

func TestContainerSQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := mustParse(t, "")
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "bot.db")
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = mr.Addr()
	cfg.Storage.Redis.Publisher = true

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := c.Watchlist().(*sqliterepo.Repo); !ok {
		t.Errorf("expected the sqlite watchlist, got %T", c.Watchlist())
	}
	if c.Snapshots().Len() != 2 {
		t.Errorf("expected sqlite and redis snapshot sinks, got %d", c.Snapshots().Len())
	}
	if err := c.Snapshots().InsertSnapshot(context.Background(), 1, "{}"); err != nil {
		t.Errorf("InsertSnapshot failed: %v", err)
	}
	if c.Publisher() == nil {
		t.Errorf("expected a redis publisher")
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestContainerRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := mustParse(t, "")
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = addr

	if _, err := New(cfg); err == nil {
		t.Fatalf("expected redis init to fail")
	}
}
