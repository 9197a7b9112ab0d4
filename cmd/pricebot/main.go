package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"pricebot/internal/infrastructure/config"
	"pricebot/internal/infrastructure/logger"
	"pricebot/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	logger.Setup("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service initialization failed")
	}
	defer sc.Close()

	log.Info().
		Str("config", *configPath).
		Strs("default_symbols", cfg.App.DefaultSymbols).
		Int("refresh_interval_sec", cfg.App.RefreshIntervalSec).
		Msg("pricebot started")

	if err := sc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("pricebot exited")
	}
}
