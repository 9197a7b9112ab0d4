package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"pricebot/internal/application/port"
	"pricebot/internal/domain"
)

// CacheSnapshotter exposes a copy of the cache contents.
type CacheSnapshotter interface {
	Snapshot() map[string]domain.Observation
}

type snapshotEntry struct {
	Price      *string `json:"price"`
	ObservedAt *int64  `json:"observed_at_ms"`
}

// SnapshotService periodically persists the cache contents.
type SnapshotService struct {
	repo  port.SnapshotRepository
	cache CacheSnapshotter
	every time.Duration
	cron  *gocron.Scheduler
}

func NewSnapshotService(repo port.SnapshotRepository, cache CacheSnapshotter, every time.Duration) *SnapshotService {
	if every <= 0 {
		every = 5 * time.Minute
	}
	return &SnapshotService{
		repo:  repo,
		cache: cache,
		every: every,
		cron:  gocron.NewScheduler(time.UTC),
	}
}

// Payload serializes the cache as {symbol: {price, observed_at_ms}}; a
// subscribed symbol without a price has null fields.
func (s *SnapshotService) Payload() (string, error) {
	snap := s.cache.Snapshot()
	out := make(map[string]snapshotEntry, len(snap))
	for sym, obs := range snap {
		var e snapshotEntry
		if obs.Observed() {
			px := obs.Price.String()
			ts := obs.ObservedAt.UnixMilli()
			e.Price, e.ObservedAt = &px, &ts
		}
		out[sym] = e
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SnapshotService) SaveSnapshot(ctx context.Context, ts int64) error {
	payload, err := s.Payload()
	if err != nil {
		return err
	}
	return s.repo.InsertSnapshot(ctx, ts, payload)
}

// Run schedules SaveSnapshot every interval until ctx is done.
func (s *SnapshotService) Run(ctx context.Context) error {
	_, err := s.cron.Every(s.every).WaitForSchedule().Do(func() {
		now := time.Now()
		if err := s.SaveSnapshot(ctx, now.UnixMilli()); err != nil {
			log.Error().Err(err).Msg("save cache snapshot failed")
			return
		}
		log.Debug().Int64("ts_ms", now.UnixMilli()).Msg("cache snapshot saved")
	})
	if err != nil {
		return err
	}
	s.cron.SingletonModeAll()
	s.cron.StartAsync()
	log.Info().Dur("every", s.every).Msg("snapshot job started")

	<-ctx.Done()
	s.cron.Stop()
	return nil
}
