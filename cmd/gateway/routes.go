package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"caisse-system/config"
	"caisse-system/internal/database"
	"caisse-system/internal/events"
	"caisse-system/internal/gateway"
	"caisse-system/internal/gateway/clients"
	customer "caisse-system/internal/services/customer/handler"
	inventory "caisse-system/internal/services/inventory/handler"
	pos "caisse-system/internal/services/pos/handler"
	reports "caisse-system/internal/services/reports/handler"
	settings "caisse-system/internal/services/settings/handler"
	user "caisse-system/internal/services/user/handler"
	"caisse-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.App)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := database.DefaultOptions()
	opts.MaxOpenConns = cfg.DB.MaxOpenConns
	opts.MaxIdleConns = cfg.DB.MaxIdleConns
	opts.ConnMaxLifetime = cfg.DB.ConnMaxLifetime
	db, err := database.Open(cfg.DB.Driver, cfg.DB.DSN, opts)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	var redisClient *redis.Client
	var publisher events.Publisher = events.Nop{}
	if cfg.Redis.Enabled {
		redisClient, err = config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and events", zap.Error(err))
		} else {
			defer redisClient.Close()
			publisher = events.NewRedisPublisher(redisClient)
		}
	}

	users := user.NewUserHandler(db, logger)
	if cfg.Auth.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("initial administrator created", zap.String("username", cfg.Auth.AdminUsername))
		}
	}

	reportsHandler := reports.NewReportsHandler(db, redisClient, logger)
	publisher = events.Fanout{publisher, reportsHandler}

	settingsHandler := settings.NewSettingsHandler(db, logger)
	fallbackTax := cfg.Ledger.DefaultTaxPercent
	posHandler := pos.NewPOSHandler(db,
		pos.WithLogger(logger),
		pos.WithPublisher(publisher),
		pos.WithDefaultTax(func(ctx context.Context) decimal.Decimal {
			general, err := settingsHandler.GetGeneralSettings(ctx)
			if err != nil {
				logger.Warn("settings unavailable, using configured tax rate", zap.Error(err))
				return fallbackTax
			}
			return general.DefaultTaxPercent
		}),
	)
	inventoryHandler := inventory.NewInventoryHandler(db,
		inventory.WithLogger(logger),
		inventory.WithPublisher(publisher),
	)

	ledgerHealth, err := clients.NewHealthClient(cfg.Gateway.GRPCAddr)
	if err != nil {
		logger.Warn("ledger health client unavailable", zap.Error(err))
	}
	defer ledgerHealth.Close()

	router, err := gateway.NewRouter(gateway.Services{
		POS:         posHandler,
		Inventory:   inventoryHandler,
		Customers:   customer.NewCustomerHandler(db, logger),
		Users:       users,
		Settings:    settingsHandler,
		Reports:     reportsHandler,
		Tokens:      utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Health:      &gateway.HealthChecker{DB: db, Redis: redisClient, Ledger: ledgerHealth},
		Log:         logger,
		RateLimit:   cfg.Gateway.RateLimit,
		CORSOrigins: cfg.Gateway.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Ledger.LowStockSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := inventoryHandler.PublishLowStockAlerts(jobCtx)
		if err != nil {
			logger.Warn("low stock check failed", zap.Error(err))
			return
		}
		logger.Info("low stock check done", zap.Int("alerts", n))
	})
	if err != nil {
		logger.Fatal("invalid low stock schedule", zap.String("schedule", cfg.Ledger.LowStockSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Gateway.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
