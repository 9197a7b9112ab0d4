package composite

import (
	"context"

	"pricebot/internal/application/port"
)

// Repo fans snapshot writes out to every configured sink.
type Repo struct {
	repos []port.SnapshotRepository
}

func New(repos ...port.SnapshotRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.SnapshotRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

// InsertSnapshot writes to all sinks and returns the first error.
func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertSnapshot(ctx, ts, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
