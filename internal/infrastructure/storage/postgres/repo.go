package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pricebot/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  chat_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE(chat_id, ticker)
);
CREATE INDEX IF NOT EXISTS idx_tickers_chat ON tickers(chat_id);

CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) AddSymbol(ctx context.Context, session, symbol string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tickers(chat_id, ticker) VALUES($1, $2) ON CONFLICT (chat_id, ticker) DO NOTHING`,
		session, symbol)
	return err
}

func (r *Repo) RemoveSymbol(ctx context.Context, session, symbol string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickers WHERE chat_id=$1 AND ticker=$2`, session, symbol)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repo) ListSymbols(ctx context.Context, session string) ([]string, error) {
	return r.queryStrings(ctx, `SELECT ticker FROM tickers WHERE chat_id=$1 ORDER BY id`, session)
}

func (r *Repo) ListSessions(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT chat_id FROM tickers ORDER BY chat_id`)
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload) VALUES($1, $2)`, ts, payload)
	return err
}

func (r *Repo) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
