package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tinysubs/internal/config"
	"tinysubs/internal/events"
	"tinysubs/internal/ledger/repository"
	"tinysubs/internal/ledger/service"
	ledgerhttp "tinysubs/internal/ledger/transport/http"
	"tinysubs/internal/logger"
	"tinysubs/internal/metrics"
	"tinysubs/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDevelopment().Fatal("config", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if !cfg.EnvFileLoaded {
		log.Warn(".env file not found, using process environment")
	}

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()
	log.Info("database connected", zap.String("driver", cfg.DatabaseDriver))

	store := repository.NewStore(database)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	hub := events.NewHub(store, log.Named("events"))
	ledgerService, err := service.NewService(ctx, store,
		service.Genesis{Owner: cfg.Owner, FeeBasisPoints: cfg.PlatformFeeBPS},
		service.WithPublisher(hub),
		service.WithLogger(log.Named("ledger")),
	)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	ledgerHandler := ledgerhttp.NewHandler(ledgerService, log.Named("http"))

	r := newRouter(cfg, ledgerHandler, hub, log)
	if cfg.MetricsPasswordHash == "" {
		log.Warn("METRICS_PASSWORD_HASH not set, /metrics disabled")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.Uint64("last_event_seq", ledgerService.LastEventSeq()))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server", zap.Error(err))
	}
	log.Info("server stopped")
}
