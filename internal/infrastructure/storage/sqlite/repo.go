package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pricebot/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tickers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  chat_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE(chat_id, ticker)
);
CREATE INDEX IF NOT EXISTS idx_tickers_chat ON tickers(chat_id);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) AddSymbol(ctx context.Context, session, symbol string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tickers(chat_id, ticker, created_at)
		VALUES(?, ?, ?)
	`, session, symbol, time.Now().UnixMilli())
	return err
}

func (r *Repo) RemoveSymbol(ctx context.Context, session, symbol string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickers WHERE chat_id=? AND ticker=?`, session, symbol)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) ListSymbols(ctx context.Context, session string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker FROM tickers WHERE chat_id=? ORDER BY id`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *Repo) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT chat_id FROM tickers ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(ts_ms, payload, created_at) VALUES(?, ?, ?)
	`, ts, payload, time.Now().UnixMilli())
	return err
}

// LatestSnapshot returns the newest snapshot, sql.ErrNoRows if there is none.
func (r *Repo) LatestSnapshot(ctx context.Context) (ts int64, payload string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT ts_ms, payload FROM snapshots ORDER BY ts_ms DESC, id DESC LIMIT 1`).
		Scan(&ts, &payload)
	return
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var (
	_ port.WatchlistRepository = (*Repo)(nil)
	_ port.SnapshotRepository  = (*Repo)(nil)
)
