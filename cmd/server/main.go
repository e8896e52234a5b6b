// Package main is the entry point for the billing API.
// It wires configuration, storage, gateways and background workers,
// then serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ocru/internal/config"
	"ocru/internal/handlers"
	applog "ocru/internal/logger"
	"ocru/internal/metrics"
	"ocru/internal/middleware"
	"ocru/internal/repositories"
	"ocru/internal/repositories/cache"
	"ocru/internal/routes"
	"ocru/internal/services/currency"
	"ocru/internal/services/gateway"
	"ocru/internal/services/ledger"
	"ocru/internal/services/usage"
	"ocru/internal/services/webhook"
	"ocru/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// dbPinger adapts *sql.DB to the health check.
type dbPinger struct{ db *sql.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	config.LoadEnv()
	cfg := config.Load()

	log := applog.Must(config.IsProduction())
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get database instance", zap.Error(err))
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}()
	log.Info("connected to database", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))

	// Redis is optional: rates and wallets fall back to an in-process cache.
	var appCache cache.Cache
	redisClient := cache.NewRedisClient(cfg.Redis)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		_ = redisClient.Close()
		appCache = cache.NewMemoryCache()
	} else {
		redisCache := cache.NewCacheService(redisClient)
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		}()
		appCache = redisCache
	}
	cancelPing()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(reg)

	httpClient := gateway.NewHTTPClient(cfg.ProviderHTTPTimeout)
	gateways := gateway.NewRegistry(
		gateway.NewPayOS(cfg.PayOS, httpClient, collector, log),
		gateway.NewSePay(cfg.SePay, log),
		gateway.NewLemonSqueezy(cfg.LemonSqueezy, httpClient, collector, log),
		gateway.NewStripe(cfg.Stripe, httpClient, "", collector, log),
	)

	ledgerRepo := repositories.NewLedgerRepository(db)
	rateRepo := repositories.NewRateRepository(db)
	usageRepo := repositories.NewUsageRepository(db)
	webhookLogs := repositories.NewWebhookLogRepository(db)

	rates := currency.NewService(rateRepo, httpClient, appCache, collector, log, currency.Config{
		APIKey:  cfg.Currency.APIKey,
		BaseURL: cfg.Currency.BaseURL,
		RateTTL: cfg.Redis.RateTTL,
	})
	ledgerSvc := ledger.NewService(ledgerRepo, gateways, rates, appCache, collector, log, ledger.Config{})
	usageSvc := usage.NewService(usageRepo, appCache, collector, log)
	webhookSvc := webhook.NewService(gateways, ledgerSvc, webhookLogs, collector, log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	jobs := []*worker.Periodic{
		worker.NewPeriodic(worker.NewExpiryScanner(ledgerRepo, cfg.Scheduler.PendingTTL, collector, log),
			cfg.Scheduler.ExpireScanInterval, true, log),
		worker.NewPeriodic(worker.NewRateSync(rates), cfg.Scheduler.RateSyncInterval, true, log),
	}
	for _, job := range jobs {
		go job.Start(workerCtx)
	}

	providers := gateways.Providers()
	app := fiber.New(fiber.Config{
		AppName:      "ocru-billing",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: !strings.Contains(cfg.AllowedOrigins, "*"),
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Payment: handlers.NewPaymentHandler(ledgerSvc, webhookSvc, providers, log),
		Billing: handlers.NewBillingHandler(ledgerSvc, usageSvc, rates, providers, log),
		Rates:   handlers.NewRateHandler(rates, log),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": dbPinger{db: sqlDB},
			"cache":    appCache,
		}),
		Auth:       middleware.NewAuthMiddleware(cfg.JWTSecret, log),
		CronSecret: cfg.Currency.CronSecret,
		Metrics:    adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	})

	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.Strings("providers", providers))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	stopWorkers()
	for _, job := range jobs {
		job.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
