// Command edge-gateway runs the LLM request gateway: a rate-limited
// chat-completion proxy and a gated feedback intake backed by a shared
// key-value store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/config"
	"github.com/aiworkshop/edge-gateway/internal/gateway"
	"github.com/aiworkshop/edge-gateway/internal/store"
)

func main() {
	// .env is optional, for local development only.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	setupLogging(cfg.Monitoring)

	var s store.Store
	if cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(cfg.RedisURL)
		if err != nil {
			// The proxy fails open without a store; feedback intake will
			// report store errors until the store comes back.
			log.Warn().Err(err).Msg("store unreachable, rate limiting disabled")
		} else {
			s = rs
			defer func() { _ = rs.Close() }()
		}
	}

	g, err := gateway.New(cfg, s)
	if err != nil {
		log.Fatal().Err(err).Msg("init gateway")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- g.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("gateway stopped")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}

func setupLogging(mc config.MonitoringConfig) {
	level, err := zerolog.ParseLevel(mc.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if mc.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
