package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/api/handler"
	"github.com/montero-exchange/ledger/internal/api/middleware"
	"github.com/montero-exchange/ledger/internal/api/spec"
	"github.com/montero-exchange/ledger/internal/config"
	"github.com/montero-exchange/ledger/internal/idempotency"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/service"
)

// Services bundles the wired service layer for the router.
type Services struct {
	Portfolios    *service.PortfolioService
	Deposits      *service.DepositService
	Withdrawals   *service.WithdrawalService
	Swaps         *service.SwapService
	Notifications *service.NotificationService
	Prices        *oracle.StaticOracle
	PriceCache    *oracle.CachedOracle
}

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *pgxpool.Pool
	redis  redis.Cmdable
	idem   *idempotency.Store
	svcs   Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redis redis.Cmdable, idem *idempotency.Store, svcs Services) *Router {
	return &Router{cfg: cfg, logger: logger, db: db, redis: redis, idem: idem, svcs: svcs}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	idem := middleware.IdempotencyMiddleware(api.idem, api.logger)

	authHandler := handler.NewAuthHandler(api.svcs.Portfolios)
	portfolioHandler := handler.NewPortfolioHandler(api.svcs.Portfolios)
	depositHandler := handler.NewDepositHandler(api.svcs.Deposits)
	withdrawalHandler := handler.NewWithdrawalHandler(api.svcs.Withdrawals)
	swapHandler := handler.NewSwapHandler(api.svcs.Swaps)
	notificationHandler := handler.NewNotificationHandler(api.svcs.Notifications)
	adminHandler := handler.NewAdminHandler(api.svcs.Portfolios, api.svcs.Prices, api.svcs.PriceCache)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	// Public
	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.With(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS)).
		Post("/v1/auth/login", authHandler.Login)

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/portfolios", portfolioHandler.Create)
		r.Get("/v1/portfolio", portfolioHandler.Get)

		r.With(idem).Post("/v1/deposits", depositHandler.Create)
		r.Get("/v1/deposits", depositHandler.List)
		r.Get("/v1/deposits/{id}", depositHandler.Get)
		r.With(idem).Post("/v1/deposits/{id}/approve", depositHandler.Approve)
		r.With(idem).Post("/v1/deposits/{id}/reject", depositHandler.Reject)

		r.With(idem).Post("/v1/transfers", withdrawalHandler.Transfer)

		r.With(idem).Post("/v1/withdrawals", withdrawalHandler.Create)
		r.Get("/v1/withdrawals", withdrawalHandler.List)
		r.Get("/v1/withdrawals/{id}", withdrawalHandler.Get)
		r.With(idem).Post("/v1/withdrawals/{id}/confirm", withdrawalHandler.Confirm)
		r.With(idem).Post("/v1/withdrawals/{id}/decline", withdrawalHandler.Decline)

		r.With(idem).Post("/v1/swaps", swapHandler.Create)
		r.Get("/v1/swaps", swapHandler.List)
		r.Get("/v1/swaps/{id}", swapHandler.Get)
		r.Get("/v1/swaps/{id}/trades", swapHandler.Trades)
		r.With(idem).Post("/v1/swaps/{id}/cancel", swapHandler.Cancel)

		r.Get("/v1/notifications", notificationHandler.List)
		r.Post("/v1/notifications/{id}/read", notificationHandler.MarkRead)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))

			r.With(idem).Post("/v1/admin/withdrawals/{id}/approve", withdrawalHandler.Approve)
			r.With(idem).Post("/v1/admin/withdrawals/{id}/reject", withdrawalHandler.Reject)
			r.With(idem).Post("/v1/admin/withdrawals/{id}/force-complete", withdrawalHandler.ForceComplete)

			r.With(idem).Post("/v1/admin/swaps/{id}/approve", swapHandler.Approve)
			r.With(idem).Post("/v1/admin/swaps/{id}/settle", swapHandler.Settle)

			r.Post("/v1/admin/portfolios/{id}/freeze", adminHandler.Freeze)
			r.Post("/v1/admin/portfolios/{id}/unfreeze", adminHandler.Unfreeze)
			r.Post("/v1/admin/portfolios/{id}/merchant", adminHandler.SetMerchant)

			r.Post("/v1/admin/prices", adminHandler.SetPrice)
		})
	})

	return r
}
