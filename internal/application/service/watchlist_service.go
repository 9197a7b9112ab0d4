package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pricebot/internal/application/port"
	"pricebot/internal/domain"
)

// Validator decides whether a symbol is tradable.
type Validator interface {
	Valid(ctx context.Context, symbol string) bool
}

// WatchlistService keeps the persisted per-session symbol lists and the
// shared subscription references in step.
type WatchlistService struct {
	repo    port.WatchlistRepository
	tracker port.Tracker
}

func NewWatchlistService(repo port.WatchlistRepository, tracker port.Tracker) *WatchlistService {
	return &WatchlistService{repo: repo, tracker: tracker}
}

// Add tracks symbol for session. Returns false if it was already tracked.
func (s *WatchlistService) Add(ctx context.Context, session, symbol string) (bool, error) {
	symbol = domain.NormalizeSymbol(symbol)
	current, err := s.repo.ListSymbols(ctx, session)
	if err != nil {
		return false, err
	}
	for _, sym := range current {
		if sym == symbol {
			return false, nil
		}
	}
	if err := s.repo.AddSymbol(ctx, session, symbol); err != nil {
		return false, fmt.Errorf("add %s: %w", symbol, err)
	}
	s.tracker.Track(session, symbol)
	return true, nil
}

// Remove stops tracking symbol for session and reports whether it was tracked.
func (s *WatchlistService) Remove(ctx context.Context, session, symbol string) (bool, error) {
	symbol = domain.NormalizeSymbol(symbol)
	removed, err := s.repo.RemoveSymbol(ctx, session, symbol)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", symbol, err)
	}
	if removed {
		s.tracker.Release(session, symbol)
	}
	return removed, nil
}

// List returns the symbols session tracks.
func (s *WatchlistService) List(ctx context.Context, session string) ([]string, error) {
	return s.repo.ListSymbols(ctx, session)
}

// SeedDefaults adds every default that validates, when the session tracks
// nothing yet. Returns the symbols added.
func (s *WatchlistService) SeedDefaults(ctx context.Context, session string, defaults []string, v Validator) ([]string, error) {
	current, err := s.repo.ListSymbols(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		return nil, nil
	}

	var added []string
	for _, sym := range domain.NormalizeSymbols(defaults) {
		if v != nil && !v.Valid(ctx, sym) {
			log.Warn().Str("session", session).Str("symbol", sym).Msg("default symbol not available, skipped")
			continue
		}
		ok, err := s.Add(ctx, session, sym)
		if err != nil {
			return added, err
		}
		if ok {
			added = append(added, sym)
		}
	}
	return added, nil
}

// Restore re-registers every persisted (session, symbol) pair with the
// tracker, so the stream resubscribes after a restart.
func (s *WatchlistService) Restore(ctx context.Context) (int, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, session := range sessions {
		symbols, err := s.repo.ListSymbols(ctx, session)
		if err != nil {
			return n, err
		}
		for _, sym := range symbols {
			s.tracker.Track(session, sym)
			n++
		}
	}
	return n, nil
}
