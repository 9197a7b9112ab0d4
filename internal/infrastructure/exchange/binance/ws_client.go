package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"pricebot/internal/application/port"
	"pricebot/internal/application/retry"
	"pricebot/internal/domain"
	"pricebot/internal/infrastructure/exchange"
)

const feedName = "binance"

// State of the stream connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type StreamConfig struct {
	URL            string        // e.g. wss://stream.binance.com:9443/ws
	Quotes         []string      // first one is subscribed, all are stripped from pushes
	ReconnectDelay time.Duration // fixed, no growth
	DialTimeout    time.Duration
}

// StreamConsumer keeps one ticker stream open and writes pushes for
// subscribed symbols into the store. Symbols added or removed while
// connected are subscribed or unsubscribed on the live connection.
type StreamConsumer struct {
	ws             exchange.WSHelper
	store          port.PriceStore
	conv           exchange.SymbolConverter
	reconnectDelay time.Duration
	now            func() time.Time

	state  atomic.Int32
	nextID atomic.Int64
}

func NewStreamConsumer(cfg StreamConfig, store port.PriceStore) *StreamConsumer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if len(cfg.Quotes) == 0 {
		cfg.Quotes = []string{"USDC"}
	}
	return &StreamConsumer{
		ws:             exchange.WSHelper{URL: strings.TrimSpace(cfg.URL), DialTimeout: cfg.DialTimeout},
		store:          store,
		conv:           exchange.NewQuoteSymbolConverter(cfg.Quotes...),
		reconnectDelay: cfg.ReconnectDelay,
		now:            time.Now,
	}
}

func (c *StreamConsumer) Name() string { return feedName }

func (c *StreamConsumer) State() State { return State(c.state.Load()) }

// Status is the connection state as text, for health checks.
func (c *StreamConsumer) Status() string { return c.State().String() }

func (c *StreamConsumer) setState(s State) { c.state.Store(int32(s)) }

// Run connects and reconnects until ctx is done. Connection, protocol and
// decode errors are logged and followed by a fixed delay; they never end Run.
func (c *StreamConsumer) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.connectOnce(ctx)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}

		log.Warn().Str("feed", c.Name()).Err(err).
			Int64("delay_ms", c.reconnectDelay.Milliseconds()).
			Msg("ws disconnected, reconnecting")
		if retry.Sleep(ctx, c.reconnectDelay) != nil {
			return nil
		}
	}
}

func (c *StreamConsumer) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting)
	log.Debug().Str("feed", c.Name()).Str("url", c.ws.URL).Msg("ws connecting")

	conn, err := c.ws.DialWS(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrTransientNetwork, err)
	}
	defer conn.Close()

	c.setState(StateConnected)
	log.Info().Str("feed", c.Name()).Msg("ws connected")

	// streams live on this connection; reset on every reconnect
	active := make(map[string]struct{})
	if err := c.sync(conn, active); err != nil {
		return err
	}

	err = c.ws.ReadWithPing(ctx, conn, exchange.ReadLoop{
		OnMessage: c.handleMessage,
		Signals:   c.store.Changes(),
		OnSignal:  func() error { return c.sync(conn, active) },
	})
	return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
}

// sync brings the connection's streams in line with the subscription set.
func (c *StreamConsumer) sync(conn *websocket.Conn, active map[string]struct{}) error {
	want := make(map[string]struct{})
	for _, sym := range c.store.Symbols() {
		want[c.streamName(sym)] = struct{}{}
	}

	var add, drop []string
	for s := range want {
		if _, ok := active[s]; !ok {
			add = append(add, s)
		}
	}
	for s := range active {
		if _, ok := want[s]; !ok {
			drop = append(drop, s)
		}
	}

	if len(add) > 0 {
		if err := c.send(conn, "SUBSCRIBE", add); err != nil {
			return err
		}
		for _, s := range add {
			active[s] = struct{}{}
		}
	}
	if len(drop) > 0 {
		if err := c.send(conn, "UNSUBSCRIBE", drop); err != nil {
			return err
		}
		for _, s := range drop {
			delete(active, s)
		}
	}
	return nil
}

type controlFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func (c *StreamConsumer) send(conn *websocket.Conn, method string, streams []string) error {
	sort.Strings(streams)
	frame := controlFrame{Method: method, Params: streams, ID: c.nextID.Add(1)}
	if err := exchange.WriteJSON(conn, frame); err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(method), err)
	}
	log.Debug().Str("feed", c.Name()).Str("method", method).Strs("streams", streams).Msg("ws control sent")
	return nil
}

func (c *StreamConsumer) streamName(symbol string) string {
	return strings.ToLower(c.conv.Coin2Symbol(symbol)) + "@ticker"
}

type tickerMsg struct {
	Symbol    string `json:"s"`
	Last      string `json:"c"`
	CloseTime int64  `json:"C"`
}

type streamError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// streamFrame covers raw ticker pushes, combined-stream envelopes and
// control replies.
type streamFrame struct {
	tickerMsg
	Data  *tickerMsg   `json:"data"`
	Error *streamError `json:"error"`
}

func (c *StreamConsumer) handleMessage(b []byte) error {
	var f streamFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if f.Error != nil {
		// a rejected control frame leaves the connection usable
		log.Warn().Str("feed", c.Name()).Int("code", f.Error.Code).Str("msg", f.Error.Msg).Msg("ws control rejected")
		return nil
	}

	msg := f.tickerMsg
	if f.Data != nil {
		msg = *f.Data
	}
	if msg.Symbol == "" || msg.Last == "" {
		return nil
	}

	px, err := decimal.NewFromString(strings.TrimSpace(msg.Last))
	if err != nil {
		return fmt.Errorf("decode price %q: %w", msg.Last, err)
	}
	sym := c.conv.Symbol2Coin(msg.Symbol)
	if !c.store.WriteIfSubscribed(sym, px, c.now()) {
		log.Debug().Str("feed", c.Name()).Str("symbol", sym).Msg("push for unsubscribed symbol dropped")
	}
	return nil
}
