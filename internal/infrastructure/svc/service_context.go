package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pricebot/internal/application/port"
	"pricebot/internal/application/retry"
	"pricebot/internal/application/service"
	"pricebot/internal/application/usecase/command"
	"pricebot/internal/application/usecase/tracker"
	"pricebot/internal/domain"
	"pricebot/internal/infrastructure/config"
	"pricebot/internal/infrastructure/container"
	"pricebot/internal/infrastructure/exchange/binance"
	"pricebot/internal/interfaces/console"
	"pricebot/internal/interfaces/httpapi"
)

// ServiceContext 持有进程内所有已装配的组件
type ServiceContext struct {
	Config *config.Config

	// 基础设施层
	container *container.Container
	market    *binance.MarketClient
	stream    *binance.StreamConsumer

	// 输出端口
	Publisher port.Publisher

	// 应用层
	Cache     *domain.Cache
	Prices    *service.PriceService
	Watchlist *service.WatchlistService
	Snapshots *service.SnapshotService
	Scheduler *tracker.Scheduler
	Commands  *command.Commands

	http *httpapi.Server
}

// New 按依赖顺序装配所有组件
func New(cfg *config.Config) (*ServiceContext, error) {
	if cfg.App.Quote == "" {
		return nil, ErrNoQuotes
	}
	quotes := []string{cfg.App.Quote, cfg.App.FallbackQuote}

	c, err := container.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	sc := &ServiceContext{
		Config:    cfg,
		container: c,
		Cache:     domain.NewCache(),
		market:    binance.NewMarketClient(cfg.Exchange.Binance.RestURL, cfg.HTTPTimeout()),
		Publisher: c.Publisher(),
	}
	if sc.Publisher == nil {
		sc.Publisher = console.NewSink()
	}

	sc.stream = binance.NewStreamConsumer(binance.StreamConfig{
		URL:            cfg.Exchange.Binance.WsURL,
		Quotes:         quotes,
		ReconnectDelay: cfg.ReconnectDelay(),
	}, sc.Cache)

	sc.Prices = service.NewPriceService(sc.Cache, sc.market, service.PriceServiceConfig{
		Quote:         cfg.App.Quote,
		FallbackQuote: cfg.App.FallbackQuote,
		Freshness:     cfg.Freshness(),
		Retry: retry.Policy{
			Name:        "snapshot",
			MaxAttempts: cfg.Exchange.Binance.FetchRetries,
			BaseDelay:   time.Second,
			Factor:      2,
		},
	})
	sc.Watchlist = service.NewWatchlistService(c.Watchlist(), sc.Cache)
	sc.Snapshots = service.NewSnapshotService(c.Snapshots(), sc.Cache, cfg.SnapshotEvery())

	sc.Scheduler = tracker.NewScheduler(tracker.Config{
		Interval: cfg.RefreshInterval(),
		Quote:    cfg.App.Quote,
		Retry: retry.Policy{
			Name:        "session",
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			Factor:      cfg.Retry.Factor,
			MaxDelay:    cfg.RetryMaxDelay(),
		},
	}, tracker.Deps{
		Prices:    sc.Prices,
		Watchlist: sc.Watchlist,
		Publisher: sc.Publisher,
	})

	sc.Commands = command.New(command.Deps{
		Watchlist: sc.Watchlist,
		Prices:    sc.Prices,
		Convert:   service.NewConvertService(sc.Prices),
		Chart:     service.NewChartService(sc.market, cfg.App.Quote),
		Scheduler: sc.Scheduler,
		Defaults:  cfg.App.DefaultSymbols,
	})

	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := httpapi.NewRouter(httpapi.NewHandler(sc.Commands, sc.stream))
		sc.http = httpapi.NewServer(cfg.HTTP.Addr, router)
	}

	log.Info().
		Str("quote", cfg.App.Quote).
		Str("fallback_quote", cfg.App.FallbackQuote).
		Bool("http", cfg.HTTP.Enabled).
		Msg("✓ All components initialized")
	return sc, nil
}

// Run 恢复已持久化的订阅后启动所有后台任务，直到 ctx 结束
func (sc *ServiceContext) Run(ctx context.Context) error {
	n, err := sc.Watchlist.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore watchlists: %w", err)
	}
	log.Info().Int("pairs", n).Int("symbols", len(sc.Cache.Symbols())).Msg("watchlists restored")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sc.stream.Run(ctx) })
	g.Go(func() error { return sc.Scheduler.Run(ctx) })
	g.Go(func() error { return sc.Snapshots.Run(ctx) })
	if sc.http != nil {
		g.Go(func() error { return sc.http.Run(ctx) })
	}
	return g.Wait()
}

// Close 关闭所有资源
func (sc *ServiceContext) Close() error {
	sc.Scheduler.Shutdown()
	return sc.container.Close()
}
