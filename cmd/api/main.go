package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/mpesa-backend/internal/api"
	"github.com/baharkarakas/mpesa-backend/internal/api/handlers"
	"github.com/baharkarakas/mpesa-backend/internal/auth"
	"github.com/baharkarakas/mpesa-backend/internal/config"
	"github.com/baharkarakas/mpesa-backend/internal/daraja"
	"github.com/baharkarakas/mpesa-backend/internal/db"
	"github.com/baharkarakas/mpesa-backend/internal/ledger"
	"github.com/baharkarakas/mpesa-backend/internal/logger"
	"github.com/baharkarakas/mpesa-backend/internal/metrics"
	"github.com/baharkarakas/mpesa-backend/internal/middleware"
	"github.com/baharkarakas/mpesa-backend/internal/repository/postgres"
	"github.com/baharkarakas/mpesa-backend/internal/services"
	"github.com/baharkarakas/mpesa-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	gw := daraja.NewClient(daraja.Config{
		BaseURL:        cfg.DarajaBaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		ShortCode:      cfg.ShortCode,
		PassKey:        cfg.PassKey,
		CallbackURL:    cfg.CallbackURL,
		Timeout:        cfg.GatewayTimeout,
	})

	led := ledger.NewMemory()
	paySvc := services.NewPaymentService(gw, led, repos.Records, repos.AuditLogs, wp)
	clientSvc := services.NewClientService(repos.Clients)

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
	am := middleware.NewAuthMiddleware(tm, cfg.Env)

	metrics.Init()
	r := api.NewRouter(cfg, handlers.NewPaymentsHandler(paySvc), handlers.NewAuthHandler(tm, clientSvc), am)

	go ledger.Sweep(ctx, led, cfg.SweepInterval, cfg.PendingTTL, func(n int) {
		metrics.ExpiredPending.Add(float64(n))
		metrics.LedgerDepth.Set(float64(led.Len()))
		log.Info("expired pending payments", "count", n)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "shortcode", cfg.ShortCode)
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
