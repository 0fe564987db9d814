package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sokoplace/sokoplace-backend/api/routes"
	checkoutsvc "github.com/sokoplace/sokoplace-backend/internal/checkout"
	deliverysvc "github.com/sokoplace/sokoplace-backend/internal/deliveries"
	disputesvc "github.com/sokoplace/sokoplace-backend/internal/disputes"
	escrowsvc "github.com/sokoplace/sokoplace-backend/internal/escrow"
	ordersvc "github.com/sokoplace/sokoplace-backend/internal/orders"
	referralsvc "github.com/sokoplace/sokoplace-backend/internal/referrals"
	walletsvc "github.com/sokoplace/sokoplace-backend/internal/wallets"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/migrate"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	disputesRepo := disputesvc.NewRepository(dbClient.DB())
	referralsRepo := referralsvc.NewRepository(dbClient.DB())

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
	checkoutService, err := checkoutsvc.NewService(ordersRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	deliveriesService, err := deliverysvc.NewService(deliveriesRepo, ordersService, escrowService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}
	disputesService, err := disputesvc.NewService(disputesRepo, ordersService, escrowService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
		os.Exit(1)
	}
	walletsService, err := walletsvc.NewService(walletsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallets service", err)
		os.Exit(1)
	}
	referralsService, err := referralsvc.NewService(referralsRepo, dbClient, logg, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create referrals service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, paystackClient, routes.Services{
			Checkout:   checkoutService,
			Orders:     ordersService,
			Escrows:    escrowService,
			Deliveries: deliveriesService,
			Disputes:   disputesService,
			Wallets:    walletsService,
			Referrals:  referralsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
