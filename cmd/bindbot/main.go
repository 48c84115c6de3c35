// Command bindbot runs the account-binding helpdesk bot: a Telegram long-poll
// loop plus an optional read-only ops HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/bindbot/internal/bot"
	"github.com/tbourn/bindbot/internal/config"
	httpapi "github.com/tbourn/bindbot/internal/http"
	"github.com/tbourn/bindbot/internal/observability"
	"github.com/tbourn/bindbot/internal/poller"
	"github.com/tbourn/bindbot/internal/repo"
	"github.com/tbourn/bindbot/internal/services"
	"github.com/tbourn/bindbot/internal/sysutil"
	"github.com/tbourn/bindbot/internal/telegram"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	closeLog, err := sysutil.SetupLogger(sysutil.LogOptions{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Error().Err(err).Msg("logger setup failed")
		return 1
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Error().Err(err).Msg("otel setup failed")
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("open database")
		return 1
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Error().Err(err).Msg("migrate database")
		return 1
	}
	store := services.NewStore(db)

	client, err := telegram.New(ctx, telegram.Options{
		Token:       cfg.Telegram.Token,
		Endpoint:    cfg.Telegram.APIEndpoint,
		PollTimeout: cfg.Telegram.PollTimeout,
		SendRPS:     cfg.Telegram.SendRPS,
		SendBurst:   cfg.Telegram.SendBurst,
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram client")
		return 1
	}

	controller := bot.New(bot.Options{
		AdminID:    cfg.AdminID,
		ChannelURL: cfg.ChannelURL,
		Servers:    cfg.Servers,
	}, store, client)

	loop := poller.New(poller.Config{
		MaxRestarts:       cfg.Retry.MaxRestarts,
		NetworkRetryDelay: cfg.Retry.NetworkRetryDelay,
		ErrorRetryDelay:   cfg.Retry.ErrorRetryDelay,
		PollTimeout:       cfg.Telegram.PollTimeout,
	}, client, controller, client, store, poller.WithDeduper(store))

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = httpapi.NewServer(cfg, store)
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("ops server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server failed")
			}
		}()
	}

	log.Info().
		Str("version", ver).
		Str("bot", client.Username()).
		Int("servers", len(cfg.Servers)).
		Strs("routes", controller.Routes()).
		Msg("bindbot ready")

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, poller.ErrMaxRestarts):
		log.Error().Msg("receive loop gave up")
	case errors.Is(err, context.Canceled):
		log.Info().Msg("shutdown requested")
	case err != nil:
		log.Error().Err(err).Msg("receive loop stopped")
	}

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("ops server shutdown")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bindbot stopped")
	return 0
}
