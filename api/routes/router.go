package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sokoplace/sokoplace-backend/api/controllers"
	webhookcontrollers "github.com/sokoplace/sokoplace-backend/api/controllers/webhooks"
	"github.com/sokoplace/sokoplace-backend/api/middleware"
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
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Checkout   checkoutsvc.Service
	Orders     ordersvc.Service
	Escrows    escrowsvc.Service
	Deliveries deliverysvc.Service
	Disputes   disputesvc.Service
	Wallets    walletsvc.Service
	Referrals  referralsvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database *db.Client,
	redisClient *redis.Client,
	paystackClient *paystack.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, redisClient))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(svcs.Orders, paystackClient, redisClient, cfg.Settlement.WebhookIdempotencyTTL, logg))
		r.Post("/delivery", webhookcontrollers.DeliveryWebhook(svcs.Deliveries, cfg.Delivery.WebhookToken, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(svcs.Orders, logg))
			r.Post("/{orderId}/pay", controllers.PayOrder(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))
			r.Post("/{orderId}/status", controllers.UpdateOrderStatus(svcs.Orders, logg))
			r.Get("/{orderId}/delivery", controllers.OrderDelivery(svcs.Deliveries, logg))
			r.Post("/{orderId}/confirm-delivery", controllers.ConfirmDelivery(svcs.Deliveries, logg))
			r.Get("/{orderId}/disputes", controllers.OrderDisputes(svcs.Disputes, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", controllers.FileDispute(svcs.Disputes, logg))
			r.Get("/{disputeId}", controllers.GetDispute(svcs.Disputes, logg))
		})

		r.Route("/vendor/wallet", func(r chi.Router) {
			r.Use(middleware.RequireRole("vendor", logg))
			r.Get("/", controllers.VendorWallet(svcs.Wallets, logg))
			r.Get("/transactions", controllers.VendorWalletTransactions(svcs.Wallets, logg))
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Get("/code/{code}", controllers.ValidateReferralCode(svcs.Referrals, logg))
			r.Post("/", controllers.RecordReferral(svcs.Referrals, logg))
			r.Get("/pending", controllers.PendingCommission(svcs.Referrals, logg))
			r.Get("/payments", controllers.ReferralPayments(svcs.Referrals, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Route("/disputes", func(r chi.Router) {
				r.Get("/", controllers.AdminListDisputes(svcs.Disputes, logg))
				r.Post("/{disputeId}/review", controllers.AdminReviewDispute(svcs.Disputes, logg))
				r.Post("/{disputeId}/resolve", controllers.AdminResolveDispute(svcs.Disputes, logg))
			})

			r.Route("/escrows", func(r chi.Router) {
				r.Get("/order/{orderId}", controllers.AdminOrderEscrow(svcs.Escrows, logg))
				r.Post("/{escrowId}/release", controllers.AdminReleaseEscrow(svcs.Escrows, logg))
				r.Post("/{escrowId}/refund", controllers.AdminRefundEscrow(svcs.Escrows, logg))
			})

			r.Route("/wallets/{vendorId}", func(r chi.Router) {
				r.Get("/", controllers.AdminWallet(svcs.Wallets, logg))
				r.Get("/transactions", controllers.AdminWalletTransactions(svcs.Wallets, logg))
				r.Get("/reconcile", controllers.AdminWalletReconcile(svcs.Wallets, logg))
			})

			r.Route("/commissions", func(r chi.Router) {
				r.Get("/pending", controllers.AdminPendingCommission(svcs.Referrals, logg))
				r.Post("/pay", controllers.AdminPayCommission(svcs.Referrals, logg))
				r.Get("/payments", controllers.AdminCommissionPayments(svcs.Referrals, logg))
			})

			r.Post("/referrals/{referralId}/reject", controllers.AdminRejectReferral(svcs.Referrals, logg))

			r.Route("/settings/commissions/{referrerType}", func(r chi.Router) {
				r.Get("/", controllers.AdminGetCommissionSetting(svcs.Referrals, logg))
				r.Put("/", controllers.AdminUpdateCommissionSetting(svcs.Referrals, logg))
			})
		})
	})

	return r
}
