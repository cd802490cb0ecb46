package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/benardelia/fcm-notification-server/internal/config"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	"github.com/benardelia/fcm-notification-server/internal/httpapi"
	"github.com/benardelia/fcm-notification-server/internal/logging"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/scheduler"
	"github.com/benardelia/fcm-notification-server/internal/service"
	"github.com/benardelia/fcm-notification-server/internal/store/pg"
	"github.com/benardelia/fcm-notification-server/internal/webhook"
)

func main() {
	cfg := config.LoadSweeper()
	logging.Init("sweeper", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("sweeper db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	st := pg.New(db)

	observability.Register(prometheus.DefaultRegisterer)

	pool := fcm.NewClientPool(st)
	pool.FallbackCredentialsFile = cfg.FirebaseCredentialsFile
	events := webhook.NewDispatcher(st)
	dispatcher := service.NewDispatcher(st, pool, events)

	sweeper := scheduler.NewSweeper(st, dispatcher, events)
	sweeper.StaleAfter = time.Duration(cfg.StaleTokenDays) * 24 * time.Hour

	metricsRouter := httpapi.New().Router
	metricsRouter.HandleFunc("/healthz", httpapi.Healthz())
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsRouter,
	}
	go func() {
		slog.Info("sweeper metrics listening", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("sweeper metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("sweeper shutdown", "signal", sig.String())
		cancel()
	}()

	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	slog.Info("sweeper running", "interval", interval)
	sweeper.Run(ctx, interval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
