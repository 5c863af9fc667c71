package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/macroflow/macrorisk/internal/backtest"
	"github.com/macroflow/macrorisk/internal/config"
	httpapi "github.com/macroflow/macrorisk/internal/interfaces/http"
	"github.com/macroflow/macrorisk/internal/prices"
)

func runServe(_ *cobra.Command, _ []string) error {
	cfg, env, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	loader, engine, _, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	client := buildPriceClient(cfg, env)
	runner := backtest.NewRunner(client)

	handlers := httpapi.NewHandlers(engine, loader, buildClassifier(cfg), runner, cfg, client.BreakerState)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("data_dir", cfg.DataDir).Str("mode", cfg.Scoring.Mode).Msg("starting dashboard API")
	return server.Start(ctx)
}

// buildPriceClient wires the memoized price-history client, backed by Redis
// when REDIS_ADDR is set and the in-process cache otherwise.
func buildPriceClient(cfg config.Config, env config.Env) *prices.Client {
	var cache prices.Cache
	if env.RedisAddr != "" {
		log.Info().Str("addr", env.RedisAddr).Msg("using redis price cache")
		cache = prices.NewRedisCache(env.RedisAddr)
	}
	return prices.NewClient(prices.ClientOptions{
		BaseURL:    cfg.Prices.BaseURL,
		Timeout:    cfg.Prices.Timeout(),
		RatePerSec: cfg.Prices.RatePerSec,
		CacheTTL:   cfg.Prices.CacheTTL(),
		Cache:      cache,
	})
}
