package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"pricebot/internal/application/port"
	"pricebot/internal/application/retry"
	"pricebot/internal/domain"
)

// PriceServiceConfig tunes the resolver.
type PriceServiceConfig struct {
	Quote         string        // default quote currency, e.g. USDC
	FallbackQuote string        // tried when the primary pair is missing, e.g. USDT
	Freshness     time.Duration // cache window for non-forced reads
	Retry         retry.Policy  // applied to transient transport errors only
}

// sharedFetchTimeout bounds a batch fetch, retries included, once no caller
// can cancel it.
const sharedFetchTimeout = 30 * time.Second

// PriceService resolves symbols to prices, serving fresh cache hits and
// fetching the rest in one batch from the snapshot endpoint.
type PriceService struct {
	store  port.PriceStore
	source port.SnapshotSource
	cfg    PriceServiceConfig
	now    func() time.Time
	group  singleflight.Group
}

func NewPriceService(store port.PriceStore, source port.SnapshotSource, cfg PriceServiceConfig) *PriceService {
	cfg.Quote = domain.NormalizeSymbol(cfg.Quote)
	if cfg.Quote == "" {
		cfg.Quote = "USDC"
	}
	cfg.FallbackQuote = domain.NormalizeSymbol(cfg.FallbackQuote)
	if cfg.Freshness <= 0 {
		cfg.Freshness = domain.DefaultFreshness
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Policy{Name: "snapshot", MaxAttempts: 1}
	}
	return &PriceService{
		store:  store,
		source: source,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Quote returns the default quote currency.
func (s *PriceService) Quote() string { return s.cfg.Quote }

// NormalizeTicker uppercases user input and maps the alternate stable coin
// onto the default quote (USDT -> USDC).
func (s *PriceService) NormalizeTicker(ticker string) string {
	t := domain.NormalizeSymbol(ticker)
	if t != "" && t == s.cfg.FallbackQuote {
		return s.cfg.Quote
	}
	return t
}

// Resolve returns one entry per normalized symbol.
//
// A transport or status failure of the batch fetch fails the whole call:
// every requested symbol, including fresh cache hits, comes back null and
// the error is returned. Symbols unknown on both quote pairings come back
// null without an error.
func (s *PriceService) Resolve(ctx context.Context, symbols []string, quote string, forceRefresh bool) (domain.Prices, error) {
	quote = domain.NormalizeSymbol(quote)
	if quote == "" {
		quote = s.cfg.Quote
	}

	syms := domain.NormalizeSymbols(symbols)
	for _, sym := range syms {
		s.store.Subscribe(sym)
	}
	defer s.releaseUntracked(syms)

	result := make(domain.Prices, len(syms))
	var missing []string
	for _, sym := range syms {
		if !forceRefresh {
			if obs, ok := s.store.Read(sym, s.cfg.Freshness); ok {
				result[sym] = decimal.NewNullDecimal(obs.Price)
				continue
			}
		}
		missing = append(missing, sym)
	}
	if len(missing) == 0 {
		return result, nil
	}

	fallback := s.cfg.FallbackQuote
	if fallback == quote {
		fallback = ""
	}

	pairs := make([]string, 0, len(missing)*2)
	for _, sym := range missing {
		pairs = append(pairs, sym+quote)
		if fallback != "" {
			pairs = append(pairs, sym+fallback)
		}
	}

	fetched, err := s.fetch(ctx, pairs)
	if err != nil {
		log.Warn().Err(err).Strs("symbols", missing).Msg("batch price fetch failed")
		return nullPrices(syms), fmt.Errorf("error fetching prices: %w", err)
	}

	ts := s.now()
	for _, sym := range missing {
		px, ok := fetched[sym+quote]
		if !ok && fallback != "" {
			px, ok = fetched[sym+fallback]
		}
		if !ok {
			result[sym] = decimal.NullDecimal{}
			continue
		}
		result[sym] = decimal.NewNullDecimal(px)
		s.store.WriteIfSubscribed(sym, px, ts)
	}
	return result, nil
}

// releaseUntracked drops the subscriptions of symbols no session tracks.
// A one-off lookup holds its symbols only for the duration of the call.
func (s *PriceService) releaseUntracked(syms []string) {
	for _, sym := range syms {
		s.store.UnsubscribeUntracked(sym)
	}
}

// fetch issues one batch request, sharing it with identical concurrent
// requests from other sessions. The shared request runs detached from any
// single caller; a caller whose ctx ends stops waiting without failing the
// others.
func (s *PriceService) fetch(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	key := append([]string(nil), pairs...)
	sort.Strings(key)

	ch := s.group.DoChan(strings.Join(key, ","), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		var out map[string]decimal.Decimal
		err := s.cfg.Retry.Do(fctx, isTransient, func(ctx context.Context, attempt int) error {
			m, err := s.source.LatestPrices(ctx, pairs)
			if err != nil {
				return err
			}
			out = m
			return nil
		})
		return out, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(map[string]decimal.Decimal), nil
	}
}

// Price resolves a single symbol against the default quote.
func (s *PriceService) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = domain.NormalizeSymbol(symbol)
	prices, err := s.Resolve(ctx, []string{symbol}, s.cfg.Quote, false)
	if err != nil {
		return decimal.Decimal{}, err
	}
	px, ok := prices.Get(symbol)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", symbol, domain.ErrDataUnavailable)
	}
	return px, nil
}

// Valid reports whether symbol resolves to a price on the exchange.
func (s *PriceService) Valid(ctx context.Context, symbol string) bool {
	_, err := s.Price(ctx, symbol)
	return err == nil
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransientNetwork)
}

func nullPrices(symbols []string) domain.Prices {
	out := make(domain.Prices, len(symbols))
	for _, sym := range symbols {
		out[sym] = decimal.NullDecimal{}
	}
	return out
}
