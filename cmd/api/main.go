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

	"github.com/benardelia/fcm-notification-server/internal/awsutil"
	"github.com/benardelia/fcm-notification-server/internal/config"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	"github.com/benardelia/fcm-notification-server/internal/httpapi"
	"github.com/benardelia/fcm-notification-server/internal/logging"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"
	"github.com/benardelia/fcm-notification-server/internal/service"
	"github.com/benardelia/fcm-notification-server/internal/store/pg"
	"github.com/benardelia/fcm-notification-server/internal/webhook"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

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
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	st := pg.New(db)
	pool := fcm.NewClientPool(st)
	pool.FallbackCredentialsFile = cfg.FirebaseCredentialsFile
	events := webhook.NewDispatcher(st)
	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL}

	svc := &service.AsyncDispatcher{
		Dispatcher: service.NewDispatcher(st, pool, events),
		Queue:      producer,
	}

	s := httpapi.New()
	api := &httpapi.API{Svc: svc, DB: st, Pool: pool}
	api.Register(s.Router)

	s.Router.HandleFunc("/healthz", httpapi.Healthz())
	s.Router.HandleFunc("/readyz", httpapi.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(s.Router),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}
