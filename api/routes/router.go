package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/arena-backend/api/controllers"
	"github.com/angelmondragon/arena-backend/api/middleware"
	"github.com/angelmondragon/arena-backend/internal/bootstrap"
	"github.com/angelmondragon/arena-backend/pkg/config"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

// RedisStore is the slice of the redis client the HTTP surface needs.
type RedisStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Core     *bootstrap.Core
	DB       controllers.Pinger
	Redis    RedisStore
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg, core := deps.Config, deps.Logger, deps.Core

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	ready := map[string]controllers.Pinger{"database": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	paymentPolicy := middleware.NewRateLimitPolicy("payments", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, cfg.Idempotency.TTL, logg))

		r.Post("/venue-bookings", controllers.VenueBookingCreate(core.VenueBookings, logg))
		r.Post("/event-bookings", controllers.EventBookingCreate(core.EventBookings, logg))
		r.Post("/shop-orders", controllers.ShopOrderCreate(core.ShopOrders, logg))

		r.Route("/reservations/{id}", func(r chi.Router) {
			r.Get("/", controllers.ReservationGet(core.Payments, logg))
			r.Post("/cancel", controllers.ReservationCancel(core.Payments, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(paymentPolicy, deps.Redis, logg))
				r.Post("/order", controllers.ReservationCreateOrder(core.Payments, logg))
				r.Post("/verify", controllers.ReservationVerify(core.Payments, logg))
			})
		})

		r.Get("/me/wallet", controllers.MyWallet(core.TopUps, logg))
		r.Get("/me/reservations", controllers.MyReservations(core.Payments, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/reservations/release-stale", controllers.AdminReleaseStale(core.Payments, logg))
			r.Post("/users/{id}/wallet/credit", controllers.AdminWalletCredit(core.TopUps, logg))
		})
	})

	return r
}
