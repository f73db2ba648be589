// Command ledger serves only the gRPC health service for the ledger's
// dependencies (database and Redis). Ledger operations run in the gateway.
package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"caisse-system/config"
	"caisse-system/internal/database"
	"caisse-system/internal/grpcserver"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.App)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

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

	probes := map[string]grpcserver.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cfg.Redis.Enabled {
		redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable at startup", zap.Error(err))
		} else {
			defer redisClient.Close()
			probes["redis"] = func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}
		}
	}

	server := grpcserver.New(logger, probes)
	server.Refresh(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 30s", func() { server.Refresh(ctx) }); err != nil {
		logger.Fatal("failed to schedule health refresh", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	lis, err := net.Listen("tcp", cfg.Ledger.ListenAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("ledger service listening", zap.String("addr", cfg.Ledger.ListenAddr))
	if err := server.GRPC.Serve(lis); err != nil {
		logger.Fatal("failed to serve", zap.Error(err))
	}
}
