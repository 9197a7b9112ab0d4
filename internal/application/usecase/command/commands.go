package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"pricebot/internal/application/service"
	"pricebot/internal/application/usecase/tracker"
	"pricebot/internal/domain"
)

// ErrUnknownSymbol is returned when a ticker has no price on any quote pairing.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Commands are the chat-facing operations of the bot.
type Commands struct {
	watchlist *service.WatchlistService
	prices    *service.PriceService
	convert   *service.ConvertService
	chart     *service.ChartService
	scheduler *tracker.Scheduler
	defaults  []string
}

type Deps struct {
	Watchlist *service.WatchlistService
	Prices    *service.PriceService
	Convert   *service.ConvertService
	Chart     *service.ChartService
	Scheduler *tracker.Scheduler
	Defaults  []string // seeded into empty watchlists on start
}

func New(d Deps) *Commands {
	return &Commands{
		watchlist: d.Watchlist,
		prices:    d.Prices,
		convert:   d.Convert,
		chart:     d.Chart,
		scheduler: d.Scheduler,
		defaults:  d.Defaults,
	}
}

// Start seeds the default watchlist when empty and (re)starts the
// session's loop. target is the message to keep editing, empty for a new one.
func (c *Commands) Start(ctx context.Context, session, target string) ([]string, error) {
	seeded, err := c.watchlist.SeedDefaults(ctx, session, c.defaults, c.prices)
	if err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	if len(seeded) > 0 {
		log.Info().Str("session", session).Strs("symbols", seeded).Msg("default watchlist seeded")
	}
	if err := c.scheduler.Start(session, target); err != nil {
		return seeded, err
	}
	return seeded, nil
}

func (c *Commands) Stop(session string) error {
	return c.scheduler.Stop(session)
}

// Add validates and tracks ticker. added is false when it was already tracked.
func (c *Commands) Add(ctx context.Context, session, ticker string) (symbol string, added bool, err error) {
	symbol = c.prices.NormalizeTicker(ticker)
	if symbol == "" {
		return "", false, fmt.Errorf("%w: empty ticker", ErrUnknownSymbol)
	}
	if !c.prices.Valid(ctx, symbol) {
		return symbol, false, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	added, err = c.watchlist.Add(ctx, session, symbol)
	if err != nil {
		return symbol, false, err
	}
	if added {
		c.scheduler.Refresh(session)
	}
	return symbol, added, nil
}

func (c *Commands) Remove(ctx context.Context, session, ticker string) (symbol string, removed bool, err error) {
	symbol = c.prices.NormalizeTicker(ticker)
	removed, err = c.watchlist.Remove(ctx, session, symbol)
	if err != nil {
		return symbol, false, err
	}
	if removed {
		c.scheduler.Refresh(session)
	}
	return symbol, removed, nil
}

// Status of one session.
type Status struct {
	Session   string   `json:"session"`
	Active    bool     `json:"active"`
	MessageID string   `json:"message_id,omitempty"`
	Symbols   []string `json:"symbols"`
}

func (c *Commands) Status(ctx context.Context, session string) (*Status, error) {
	symbols, err := c.watchlist.List(ctx, session)
	if err != nil {
		return nil, err
	}
	if symbols == nil {
		symbols = []string{}
	}
	st := &Status{Session: session, Symbols: symbols}
	st.MessageID, st.Active = c.scheduler.MessageID(session)
	return st, nil
}

// MessageDeleted stops the session when the deleted message was its board.
func (c *Commands) MessageDeleted(session, messageID string) bool {
	return c.scheduler.MessageDeleted(session, messageID)
}

func (c *Commands) Sessions() []string {
	return c.scheduler.Sessions()
}

func (c *Commands) Prices(ctx context.Context, tickers []string, quote string, force bool) (domain.Prices, error) {
	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if s := c.prices.NormalizeTicker(t); s != "" {
			symbols = append(symbols, s)
		}
	}
	return c.prices.Resolve(ctx, symbols, quote, force)
}

func (c *Commands) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*service.Conversion, error) {
	return c.convert.Convert(ctx, amount, from, to)
}

func (c *Commands) Chart(ctx context.Context, ticker, period string) ([]domain.Candle, error) {
	if _, _, err := service.ParsePeriod(period); err != nil {
		return nil, err
	}
	symbol := c.prices.NormalizeTicker(ticker)
	if !c.prices.Valid(ctx, symbol) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return c.chart.Series(ctx, symbol, period)
}
