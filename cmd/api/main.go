package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradelearn/payments-backend/internal/api"
	"github.com/tradelearn/payments-backend/internal/auth"
	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/db"
	"github.com/tradelearn/payments-backend/internal/logger"
	"github.com/tradelearn/payments-backend/internal/metrics"
	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/notify"
	"github.com/tradelearn/payments-backend/internal/providers"
	"github.com/tradelearn/payments-backend/internal/services"
	"github.com/tradelearn/payments-backend/internal/store"
	filestore "github.com/tradelearn/payments-backend/internal/store/file"
	pgstore "github.com/tradelearn/payments-backend/internal/store/postgres"
	"github.com/tradelearn/payments-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init", "err", err)
		os.Exit(1)
	}
	defer ds.Close()

	paddle, err := providers.NewPaddle(cfg.Paddle)
	if err != nil {
		log.Error("paddle init", "err", err)
		os.Exit(1)
	}
	registry := providers.Registry{
		models.ProviderMpesa:    providers.NewMpesa(cfg.Mpesa),
		models.ProviderPaystack: providers.NewPaystack(cfg.Paystack),
		models.ProviderBinance:  providers.NewBinancePay(cfg.Binance),
		models.ProviderCoinbase: providers.NewCoinbaseCommerce(cfg.Coinbase),
		models.ProviderPaddle:   paddle,
	}

	metrics.Init()

	wp := worker.NewPool(4)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	paymentSvc := services.NewPaymentService(ds, registry, notify.New(cfg.SMTP), wp, log)
	reportingSvc := services.NewReportingService(ds)

	r := api.NewRouter(api.RouterDeps{
		Cfg:          cfg,
		TokenManager: tm,
		PaymentSvc:   paymentSvc,
		ReportingSvc: reportingSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openStore selects the database-backed store when DATABASE_URL is set and
// falls back to the local JSON file otherwise. Never mixed.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Datastore, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL, using local file store", "path", cfg.FileStorePath)
		return filestore.New(cfg.FileStorePath)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pgstore.New(pool), nil
}
