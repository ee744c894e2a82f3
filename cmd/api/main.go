package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/app"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/clock"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/config"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/notify"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/storage/cache"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/storage/postgres"
	transporthttp "github.com/hubert-samek05/rezerwacja24-sub006/internal/transport/http"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/worker"
	"github.com/hubert-samek05/rezerwacja24-sub006/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogger(cfg)

	log.Info().Int("port", cfg.Port).Dur("sweep_interval", cfg.SweepInterval).Msg("starting deposit engine")

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	redisClient, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to redis")
	}
	defer cache.CloseRedis(redisClient)

	clk := clock.NewSystem()

	policyRepo := postgres.NewPolicyRepository(pool)
	policyCache := cache.NewPolicyCache(redisClient, cfg.PolicyCacheTTL)
	policySvc := app.NewPolicyService(policyRepo, policyCache, clk)

	var canceller notify.BookingCanceller = notify.LogOnly{}
	if cfg.CancelWebhookURL != "" {
		canceller = notify.NewWebhook(cfg.CancelWebhookURL)
	}

	depositRepo := postgres.NewDepositRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	depositSvc := app.NewDepositService(depositRepo, policySvc, historyRepo, canceller, clk)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	sweeper := worker.NewSweeper(depositSvc, clk, cfg.SweepInterval)
	go sweeper.Run(sweeperCtx)

	handler := transporthttp.NewRouter(depositSvc, policySvc, cfg.CORSOrigins, log.Logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	log.Info().Msgf("api listening on :%d", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		log.Info().Msg("shutdown signal received, stopping server")
	}

	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
