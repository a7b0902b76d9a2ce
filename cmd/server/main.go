// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/roombook/internal/booking"
	"github.com/codr1/roombook/internal/config"
	"github.com/codr1/roombook/internal/db"
	"github.com/codr1/roombook/internal/notify"
	"github.com/codr1/roombook/internal/ratelimit"
	"github.com/codr1/roombook/internal/scheduler"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)
	if cfg.Features.EnableDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up notifications")
	}
	defer closePublisher()

	tokenLimiter, err := newTokenLimiter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up rate limiter")
	}
	defer tokenLimiter.Close()

	service := booking.NewService(database, booking.WithPublisher(publisher))

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	sched, err := scheduler.ServiceInstance()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scheduler")
	}
	cleanup := scheduler.HistoryCleanup{Purger: service, RetentionDays: cfg.Reservations.RetentionDays}
	if err := sched.RegisterHistoryCleanupJob(cleanup, cfg.Reservations.CleanupCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history cleanup job")
	}
	sched.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	server := newServer(cfg, database, service, tokenLimiter)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func newPublisher(cfg *config.Config) (notify.Publisher, func(), error) {
	if cfg.Notifications.Driver != "amqp" {
		return notify.LogPublisher{}, func() {}, nil
	}
	publisher, err := notify.NewAMQPPublisher(cfg.Notifications.URL, cfg.Notifications.Queue)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("queue", cfg.Notifications.Queue).Msg("Publishing override events to AMQP")
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close AMQP publisher")
		}
	}, nil
}

func newTokenLimiter(ctx context.Context, cfg *config.Config) (ratelimit.TokenLimiter, error) {
	limits := &ratelimit.Config{
		MaxPerIPPerHour:   cfg.Auth.RateLimit.MaxPerIPPerHour,
		MaxPerUserPerHour: cfg.Auth.RateLimit.MaxPerUserPerHour,
	}
	if !cfg.Redis.Enabled {
		return ratelimit.New(limits), nil
	}
	limiter, err := ratelimit.NewRedisLimiter(ctx, ratelimit.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, limits)
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis rate limiter")
	return limiter, nil
}
