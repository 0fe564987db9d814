package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	deliverysvc "github.com/sokoplace/sokoplace-backend/internal/deliveries"
	escrowsvc "github.com/sokoplace/sokoplace-backend/internal/escrow"
	ordersvc "github.com/sokoplace/sokoplace-backend/internal/orders"
	walletsvc "github.com/sokoplace/sokoplace-backend/internal/wallets"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db"
	"github.com/sokoplace/sokoplace-backend/pkg/instance"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/migrate"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap paystack client", err)
		os.Exit(1)
	}

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	ordersRepo := ordersvc.NewRepository(dbClient.DB())
	escrowRepo := escrowsvc.NewRepository(dbClient.DB())
	walletsRepo := walletsvc.NewRepository(dbClient.DB())
	deliveriesRepo := deliverysvc.NewRepository(dbClient.DB())

	escrowService, err := escrowsvc.NewService(escrowRepo, walletsRepo, ordersRepo, dbClient, cfg.Settlement.PlatformFeeBps, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create escrow service", err)
		os.Exit(1)
	}
	ordersService, err := ordersvc.NewService(ordersRepo, escrowService, paystackClient, dbClient, logg, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	deliveriesService, err := deliverysvc.NewService(deliveriesRepo, ordersService, escrowService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	svc, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Releaser: deliveriesService,
		Instance: instance.GetID(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Settlement.AutoReleaseInterval.String(),
		"window":   cfg.Settlement.AutoReleaseWindow.String(),
	})
	logg.Info(ctx, "starting auto-release worker")

	svc.Run(ctx)

	logg.Info(ctx, "auto-release worker stopped")
}
