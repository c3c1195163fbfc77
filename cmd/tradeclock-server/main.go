package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tradeclock/internal/config"
	"tradeclock/internal/holidays"
	"tradeclock/internal/httpapi"
	"tradeclock/internal/session"
	"tradeclock/internal/store"
	"tradeclock/internal/timebase"
	"tradeclock/internal/util"
)

func main() {
	cfgPath := "config/tradeclock.yaml"
	if p := os.Getenv("TRADECLOCK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	es, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening event store: %v", err)
	}
	defer es.Close()
	archive := store.NewParquetArchive(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trading := holidays.New(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
	if trading.Enabled() {
		go func() {
			now := time.Now()
			if err := trading.Refresh(ctx, now.AddDate(0, 0, -30), now.AddDate(1, 0, 0)); err != nil {
				logger.Warn("trading calendar refresh failed", "error", err)
			}
		}()
	}

	registry := timebase.NewRegistry(logger)
	sessions := cfg.Clock.DomainSessions()
	resolver := session.NewResolver(sessions, cfg.Clock.Timezone, logger)

	srv := httpapi.NewClockServer(
		registry,
		resolver,
		sessions,
		es,
		trading,
		cfg.Clock.Timezone,
		time.Duration(cfg.Clock.NowWindowMinutes)*time.Minute,
		logger,
	)
	go srv.Run(ctx)

	// Daily archive job: move past events into the yearly parquet files and
	// prune the hot store.
	jobs := cron.New(cron.WithLocation(resolver.Location()))
	_, err = jobs.AddFunc(cfg.Archive.CronSpec, func() {
		cutoff := time.Now().AddDate(0, 0, -cfg.Archive.KeepDays)
		if err := store.RunArchive(ctx, es, archive, cutoff, logger); err != nil {
			logger.Error("event archive job failed", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("scheduling archive job (%q): %v", cfg.Archive.CronSpec, err)
	}
	jobs.Start()
	defer jobs.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("tradeclock server listening",
			"addr", httpServer.Addr, "tz", cfg.Clock.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down tradeclock server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
