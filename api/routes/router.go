package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patternseek/ecommerce/api/controllers"
	basketcontrollers "github.com/patternseek/ecommerce/api/controllers/baskets"
	"github.com/patternseek/ecommerce/api/middleware"
	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/transactions"
	"github.com/patternseek/ecommerce/internal/vatrates"
	"github.com/patternseek/ecommerce/pkg/config"
	"github.com/patternseek/ecommerce/pkg/db"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	rates *vatrates.Table,
	basketService basket.Service,
	chargeGate basketcontrollers.Charger,
	transactionService transactions.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.ClientIP(),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// Typed nils would defeat the nil checks in the middleware and readiness check.
	var (
		redisPinger controllers.Pinger
		idemStore   redis.IdempotencyStore
		limiter     *redis.Client
	)
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
		limiter = redisClient
	}

	basketPolicy := middleware.NewRateLimitPolicy("baskets", cfg.RateLimit.BasketWindow, cfg.RateLimit.BasketIPLimit)
	chargePolicy := middleware.NewRateLimitPolicy("charge", cfg.RateLimit.ChargeWindow, cfg.RateLimit.ChargeIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/vat/countries", controllers.VatCountries(rates, logg))

		r.Route("/baskets", func(r chi.Router) {
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Use(rateLimit(basketPolicy, limiter, logg))

			r.Post("/", basketcontrollers.BasketCreate(basketService, logg))
			r.Route("/{basketID}", func(r chi.Router) {
				r.Get("/", basketcontrollers.BasketFetch(basketService, logg))
				r.Post("/items", basketcontrollers.BasketAddItems(basketService, logg))
				r.Put("/address", basketcontrollers.BasketSetAddress(basketService, logg))
				r.Post("/vat-number", basketcontrollers.BasketCheckVatNumber(basketService, logg))
				r.With(rateLimit(chargePolicy, limiter, logg)).Post("/charge", basketcontrollers.BasketCharge(basketService, chargeGate, logg))
				r.Get("/transaction", basketcontrollers.BasketTransaction(transactionService, logg))
			})
		})

		review := controllers.TransactionsPendingReview(transactionService, logg)
		switch {
		case cfg.AdminAuth.Enabled():
			r.With(middleware.AdminAuth(cfg.AdminAuth, logg, enums.AdminRoleReviewer, enums.AdminRoleAdmin)).
				Get("/transactions/review", review)
		case !cfg.App.IsProd():
			// Unauthenticated, for local tooling only.
			r.Get("/transactions/review", review)
		}
	})

	return r
}

func rateLimit(policy middleware.RateLimitPolicy, limiter *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(policy, limiter, logg)
}
