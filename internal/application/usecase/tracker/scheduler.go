package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"pricebot/internal/application/port"
	"pricebot/internal/application/retry"
	"pricebot/internal/domain"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrClosed    = errors.New("scheduler closed")
)

// Resolver is the price lookup used by session loops.
type Resolver interface {
	Resolve(ctx context.Context, symbols []string, quote string, forceRefresh bool) (domain.Prices, error)
}

// Watchlist is the per-session symbol list.
type Watchlist interface {
	List(ctx context.Context, session string) ([]string, error)
	Remove(ctx context.Context, session, symbol string) (bool, error)
}

type Config struct {
	Interval time.Duration // cadence measured from cycle start
	Quote    string
	Retry    retry.Policy // whole-cycle retries
}

type Deps struct {
	Prices    Resolver
	Watchlist Watchlist
	Publisher port.Publisher
	Formatter *Formatter
}

// Scheduler owns at most one refresh loop per session.
type Scheduler struct {
	cfg  Config
	deps Deps

	base   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*task
	locks map[string]*sync.Mutex // serializes start/stop per session
	wg    sync.WaitGroup
}

func NewScheduler(cfg Config, deps Deps) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Default
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "session"
	}
	if deps.Formatter == nil {
		deps.Formatter = NewFormatter()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:    cfg,
		deps:   deps,
		base:   base,
		cancel: cancel,
		tasks:  make(map[string]*task),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Scheduler) sessionLock(session string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[session]
	if !ok {
		l = &sync.Mutex{}
		s.locks[session] = l
	}
	return l
}

// Start launches the refresh loop of session, rendering into target (a
// message id, empty to send a new one). A running loop for the session is
// cancelled and awaited first; when target is empty the new loop keeps
// editing the old loop's message.
func (s *Scheduler) Start(session, target string) error {
	l := s.sessionLock(session)
	l.Lock()
	defer l.Unlock()

	if s.base.Err() != nil {
		return ErrClosed
	}

	if old := s.get(session); old != nil {
		old.stop()
		if target == "" {
			target = old.MessageID()
		}
		log.Info().Str("session", session).Str("run", old.run).Msg("session loop superseded")
	}

	ctx, cancel := context.WithCancel(s.base)
	t := newTask(session, target, cancel)

	// closed check and wg.Add share mu with Shutdown's cancel
	s.mu.Lock()
	if s.base.Err() != nil {
		s.mu.Unlock()
		cancel()
		return ErrClosed
	}
	s.tasks[session] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.loop(ctx, t)
	}()

	log.Info().Str("session", session).Str("run", t.run).Str("target", target).Msg("session loop started")
	return nil
}

// Stop cancels the loop of session and waits for it to exit.
func (s *Scheduler) Stop(session string) error {
	l := s.sessionLock(session)
	l.Lock()
	defer l.Unlock()

	t := s.get(session)
	if t == nil {
		return ErrNoSession
	}
	t.stop()
	log.Info().Str("session", session).Str("run", t.run).Msg("session loop stopped")
	return nil
}

// MessageDeleted stops the session when messageID is its render target,
// current or one already replaced after an edit found it gone.
func (s *Scheduler) MessageDeleted(session, messageID string) bool {
	l := s.sessionLock(session)
	l.Lock()
	defer l.Unlock()

	t := s.get(session)
	if t == nil || messageID == "" || !t.renders(messageID) {
		return false
	}
	t.stop()
	log.Info().Str("session", session).Str("run", t.run).Msg("render target deleted, session loop stopped")
	return true
}

// Refresh wakes the session loop for an out-of-cycle render. Cycles stay
// sequential: a wake-up during a running cycle takes effect after it.
func (s *Scheduler) Refresh(session string) bool {
	t := s.get(session)
	if t == nil {
		return false
	}
	select {
	case t.kick <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) Active(session string) bool {
	return s.get(session) != nil
}

// MessageID returns the render target of an active session.
func (s *Scheduler) MessageID(session string) (string, bool) {
	t := s.get(session)
	if t == nil {
		return "", false
	}
	return t.MessageID(), true
}

// Sessions lists active sessions in order.
func (s *Scheduler) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Run blocks until ctx is done, then shuts every loop down.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Shutdown()
	return nil
}

// Shutdown cancels all loops and waits for them. Later starts fail with ErrClosed.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) get(session string) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[session]
}

// remove drops t from the registry unless a newer task replaced it.
func (s *Scheduler) remove(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.session] == t {
		delete(s.tasks, t.session)
	}
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer close(t.done)
	defer s.remove(t)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", domain.ErrSessionLoop, r)
			log.Error().Str("session", t.session).Str("run", t.run).Err(err).Msg("session loop panicked")
			s.report(ctx, t, s.deps.Formatter.Crashed(err))
		}
	}()

	for {
		start := time.Now()
		err := s.cfg.Retry.Do(ctx, nil, func(ctx context.Context, attempt int) error {
			return s.cycle(ctx, t)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Str("session", t.session).Str("run", t.run).
				Err(fmt.Errorf("%w: %w", domain.ErrSessionLoop, err)).
				Msg("session loop gave up")
			s.report(ctx, t, s.deps.Formatter.Failed(s.cfg.Retry.MaxAttempts, err))
			return
		}

		wait := s.cfg.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// cycle renders and publishes the session's board once.
func (s *Scheduler) cycle(ctx context.Context, t *task) error {
	symbols, err := s.deps.Watchlist.List(ctx, t.session)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		if err := s.publish(ctx, t, s.deps.Formatter.Empty()); err != nil {
			return err
		}
		t.prices = make(map[string]decimal.Decimal)
		return nil
	}

	prices, err := s.deps.Prices.Resolve(ctx, symbols, s.cfg.Quote, true)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var lines []Line
	next := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range domain.NormalizeSymbols(symbols) {
		px, ok := prices.Get(sym)
		if !ok {
			if _, err := s.deps.Watchlist.Remove(ctx, t.session, sym); err != nil {
				log.Warn().Str("session", t.session).Str("symbol", sym).Err(err).Msg("drop invalid symbol failed")
			} else {
				log.Info().Str("session", t.session).Str("symbol", sym).Msg("symbol has no price, dropped")
			}
			continue
		}
		line := Line{Symbol: sym, Price: px}
		if prev, ok := t.prices[sym]; ok {
			line.HasPrev = true
			line.Direction = domain.Compare(prev, px)
		}
		lines = append(lines, line)
		next[sym] = px
	}

	if err := s.publish(ctx, t, s.deps.Formatter.Render(lines)); err != nil {
		return err
	}
	t.prices = next
	return nil
}

// publish edits the render target, falling back to a new message when the
// target is gone or was never set.
func (s *Scheduler) publish(ctx context.Context, t *task, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id := t.MessageID(); id != "" {
		err := s.deps.Publisher.Edit(ctx, t.session, id, text)
		if err == nil {
			return nil
		}
		if !errors.Is(err, port.ErrMessageGone) {
			return fmt.Errorf("edit message %s: %w", id, err)
		}
		log.Info().Str("session", t.session).Str("message", id).Msg("render target gone, sending a new one")
	}

	id, err := s.deps.Publisher.Send(ctx, t.session, text)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	t.setMessageID(id)
	return nil
}

// report sends a one-off message outside the render target.
func (s *Scheduler) report(ctx context.Context, t *task, text string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.deps.Publisher.Send(ctx, t.session, text); err != nil {
		log.Error().Str("session", t.session).Err(err).Msg("report session failure")
	}
}
