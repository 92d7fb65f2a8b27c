package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/patternseek/ecommerce/api/routes"
	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/charge"
	"github.com/patternseek/ecommerce/internal/geoip"
	"github.com/patternseek/ecommerce/internal/payments"
	"github.com/patternseek/ecommerce/internal/transactions"
	"github.com/patternseek/ecommerce/internal/vatnumber"
	"github.com/patternseek/ecommerce/internal/vatrates"
	"github.com/patternseek/ecommerce/pkg/config"
	"github.com/patternseek/ecommerce/pkg/db"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/metrics"
	"github.com/patternseek/ecommerce/pkg/migrate"
	"github.com/patternseek/ecommerce/pkg/outbox"
	"github.com/patternseek/ecommerce/pkg/redis"
	"github.com/patternseek/ecommerce/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	vendorRate, err := cfg.Vendor.Rate()
	if err != nil {
		return err
	}
	rates, err := vatrates.Load(cfg.Vendor.RatesFile)
	if err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency, rate limits and charge locks disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	var locator basket.IPLocator
	if cfg.GeoIP.DatabasePath != "" {
		geo, err := geoip.Open(cfg.GeoIP.DatabasePath, logg)
		if err != nil {
			return err
		}
		defer geo.Close()
		locator = geo
	} else {
		logg.Warn(ctx, "geoip database not configured; baskets will carry no ip evidence")
	}

	registryOpts := []vatnumber.Option{vatnumber.WithTimeout(cfg.VatRegistry.Timeout)}
	var vatCache vatnumber.Cache
	if redisClient != nil {
		vatCache = redisClient
	}
	vatNumbers, err := vatnumber.NewValidator(
		vatnumber.NewHMRC(append(registryOpts, vatnumber.WithBaseURL(cfg.VatRegistry.HMRCBaseURL))...),
		vatnumber.NewVIES(append(registryOpts, vatnumber.WithBaseURL(cfg.VatRegistry.VIESBaseURL))...),
		vatnumber.Settings{
			CacheTTL:        cfg.VatRegistry.CacheTTL,
			OutageCacheTTL:  cfg.VatRegistry.OutageCacheTTL,
			BreakerFailures: cfg.VatRegistry.BreakerFailures,
			BreakerOpenFor:  cfg.VatRegistry.BreakerOpenFor,
		},
		vatCache,
		checkoutMetrics,
		logg,
	)
	if err != nil {
		return err
	}

	var limiter basket.RateLimiter
	var chargeLocker charge.Locker
	if redisClient != nil {
		limiter = redisClient
		chargeLocker = redisClient
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := payments.NewGateway(payments.NewStripeClient(stripeClient), logg)
	if err != nil {
		return err
	}

	basketRegistry := basket.NewRegistry()
	go basketRegistry.RunEviction(ctx, basket.EvictionPolicy{
		IdleTTL:     cfg.Basket.IdleTTL,
		CompleteTTL: cfg.Basket.CompleteTTL,
		Interval:    cfg.Basket.SweepInterval,
	}, logg)

	basketService, err := basket.NewService(basket.ServiceParams{
		Config: basket.Config{
			VendorCountry: cfg.Vendor.CountryCode,
			VendorVatRate: vendorRate,
			Rates:         rates,
		},
		Registry:       basketRegistry,
		Locator:        locator,
		Charges:        gateway,
		VatNumbers:     vatNumbers,
		Limiter:        limiter,
		VatCheckLimit:  cfg.RateLimit.VatCheckLimit,
		VatCheckWindow: cfg.RateLimit.VatCheckWindow,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	var txnOpts []transactions.Option
	if cfg.Outbox.Enabled {
		txnOpts = append(txnOpts, transactions.WithOutbox(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)))
	}
	transactionService, err := transactions.NewService(transactions.NewRepository(dbClient.DB()), logg, txnOpts...)
	if err != nil {
		return err
	}

	gate, err := charge.NewGate(charge.GateParams{
		Authorizer:  gateway,
		Instruments: gateway,
		Recorder:    transactionService,
		Locker:      chargeLocker,
		LockTTL:     cfg.Charge.LockTTL,
		Currency:    cfg.Vendor.CurrencyCode,
		Description: cfg.Vendor.BriefDescription,
		TestMode:    cfg.Vendor.TestMode,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, reg, rates, basketService, gate, transactionService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"vendor_country": cfg.Vendor.CountryCode,
		"currency":       cfg.Vendor.CurrencyCode,
		"stripe_env":     stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
