package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Vendor       VendorConfig
	DB           DBConfig
	Redis        RedisConfig
	VatRegistry  VatRegistryConfig
	GeoIP        GeoIPConfig
	Stripe       StripeConfig
	Charge       ChargeConfig
	Basket       BasketConfig
	RateLimit    RateLimitConfig
	PubSub       PubSubConfig
	AdminAuth    AdminAuthConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Vendor.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ECOMMERCE_APP_ENV" required:"true"`
	Port         string   `envconfig:"ECOMMERCE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"ECOMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ECOMMERCE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists storefront origins allowed to call the basket API.
	CORSOrigins  []string `envconfig:"ECOMMERCE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// VendorConfig describes the seller. It is fixed for the lifetime of every basket.
type VendorConfig struct {
	CountryCode      string `envconfig:"ECOMMERCE_VENDOR_COUNTRY" required:"true"`
	VatRate          string `envconfig:"ECOMMERCE_VENDOR_VAT_RATE" required:"true"`
	CurrencyCode     string `envconfig:"ECOMMERCE_CURRENCY" default:"GBP"`
	BriefDescription string `envconfig:"ECOMMERCE_BRIEF_DESCRIPTION" default:"Online order"`
	RatesFile        string `envconfig:"ECOMMERCE_VAT_RATES_FILE"`
	TestMode         bool   `envconfig:"ECOMMERCE_TEST_MODE" default:"true"`
}

// Rate parses the configured vendor VAT rate as a fraction.
func (v VendorConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(v.VatRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvVendorVatRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 1, got %s", EnvVendorVatRate, rate)
	}
	return rate, nil
}

func (v *VendorConfig) validate() error {
	v.CountryCode = strings.ToUpper(strings.TrimSpace(v.CountryCode))
	if len(v.CountryCode) != 2 {
		return fmt.Errorf("%s must be a two letter country code", EnvVendorCountry)
	}
	v.CurrencyCode = strings.ToUpper(strings.TrimSpace(v.CurrencyCode))
	if len(v.CurrencyCode) != 3 {
		return fmt.Errorf("%s must be a three letter currency code", EnvCurrency)
	}
	_, err := v.Rate()
	return err
}

type DBConfig struct {
	DSN    string `envconfig:"ECOMMERCE_DB_DSN"`
	Driver string `envconfig:"ECOMMERCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ECOMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"ECOMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ECOMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"ECOMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ECOMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ECOMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ECOMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ECOMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ECOMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ECOMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ECOMMERCE_REDIS_URL"`
	Address      string        `envconfig:"ECOMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"ECOMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ECOMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ECOMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ECOMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ECOMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ECOMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ECOMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type VatRegistryConfig struct {
	HMRCBaseURL      string        `envconfig:"ECOMMERCE_HMRC_VAT_URL" default:"https://api.service.hmrc.gov.uk/organisations/vat/check-vat-number/lookup/"`
	VIESBaseURL      string        `envconfig:"ECOMMERCE_VIES_URL" default:"https://ec.europa.eu/taxation_customs/vies/rest-api/ms/"`
	Timeout          time.Duration `envconfig:"ECOMMERCE_VAT_REGISTRY_TIMEOUT" default:"8s"`
	BreakerFailures  uint32        `envconfig:"ECOMMERCE_VAT_REGISTRY_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor   time.Duration `envconfig:"ECOMMERCE_VAT_REGISTRY_BREAKER_OPEN_FOR" default:"30s"`
	CacheTTL         time.Duration `envconfig:"ECOMMERCE_VAT_REGISTRY_CACHE_TTL" default:"24h"`
	OutageCacheTTL   time.Duration `envconfig:"ECOMMERCE_VAT_REGISTRY_OUTAGE_CACHE_TTL" default:"0s"`
}

type GeoIPConfig struct {
	DatabasePath string `envconfig:"ECOMMERCE_GEOIP_DB_PATH"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ECOMMERCE_STRIPE_API_KEY"`
	Env    string `envconfig:"ECOMMERCE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// BasketConfig bounds how long baskets are kept in memory.
type BasketConfig struct {
	IdleTTL       time.Duration `envconfig:"ECOMMERCE_BASKET_IDLE_TTL" default:"24h"`
	CompleteTTL   time.Duration `envconfig:"ECOMMERCE_BASKET_COMPLETE_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"ECOMMERCE_BASKET_SWEEP_INTERVAL" default:"5m"`
}

type ChargeConfig struct {
	LockTTL time.Duration `envconfig:"ECOMMERCE_CHARGE_LOCK_TTL" default:"2m"`
}

// RateLimitConfig throttles the public basket surface per client IP. A zero
// limit disables the policy.
type RateLimitConfig struct {
	BasketWindow   time.Duration `envconfig:"ECOMMERCE_RATE_LIMIT_BASKET_WINDOW" default:"1m"`
	BasketIPLimit  int64         `envconfig:"ECOMMERCE_RATE_LIMIT_BASKET_IP_LIMIT" default:"120"`
	ChargeWindow   time.Duration `envconfig:"ECOMMERCE_RATE_LIMIT_CHARGE_WINDOW" default:"10m"`
	ChargeIPLimit  int64         `envconfig:"ECOMMERCE_RATE_LIMIT_CHARGE_IP_LIMIT" default:"10"`
	VatCheckWindow time.Duration `envconfig:"ECOMMERCE_RATE_LIMIT_VAT_CHECK_WINDOW" default:"1h"`
	VatCheckLimit  int64         `envconfig:"ECOMMERCE_RATE_LIMIT_VAT_CHECK_LIMIT" default:"10"`
}

// AdminAuthConfig signs the bearer tokens that back-office tools present.
// Without a secret the admin surface is only mounted outside prod.
type AdminAuthConfig struct {
	JWTSecret string        `envconfig:"ECOMMERCE_ADMIN_JWT_SECRET"`
	Issuer    string        `envconfig:"ECOMMERCE_ADMIN_JWT_ISSUER" default:"ecommerce"`
	TokenTTL  time.Duration `envconfig:"ECOMMERCE_ADMIN_TOKEN_TTL" default:"1h"`
}

// LoadAdminAuth reads only the admin token settings, for tools that mint
// tokens without the rest of the service configuration.
func LoadAdminAuth() (AdminAuthConfig, error) {
	var cfg AdminAuthConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing admin auth config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether admin tokens can be verified.
func (a AdminAuthConfig) Enabled() bool {
	return strings.TrimSpace(a.JWTSecret) != ""
}

// PubSubConfig is only needed by the outbox publisher.
type PubSubConfig struct {
	ProjectID         string `envconfig:"ECOMMERCE_GCP_PROJECT_ID"`
	TransactionsTopic string `envconfig:"ECOMMERCE_PUBSUB_TRANSACTIONS_TOPIC" default:"ecommerce-transactions"`
}

type OutboxConfig struct {
	// Enabled makes the API queue a transaction_recorded event with every
	// recorded transaction.
	Enabled        bool `envconfig:"ECOMMERCE_OUTBOX_ENABLED" default:"false"`
	BatchSize      int  `envconfig:"ECOMMERCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int  `envconfig:"ECOMMERCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int  `envconfig:"ECOMMERCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ECOMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ECOMMERCE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
