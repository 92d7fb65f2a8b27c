package config

const (
	EnvPrefix = "ECOMMERCE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "ECOMMERCE_APP_ENV"
	EnvPort          = "ECOMMERCE_APP_PORT"
	EnvVendorCountry = "ECOMMERCE_VENDOR_COUNTRY"
	EnvVendorVatRate = "ECOMMERCE_VENDOR_VAT_RATE"
	EnvCurrency      = "ECOMMERCE_CURRENCY"
	EnvDBDSN         = "ECOMMERCE_DB_DSN"
	EnvDBHost        = "ECOMMERCE_DB_HOST"
	EnvDBUser        = "ECOMMERCE_DB_USER"
	EnvDBName        = "ECOMMERCE_DB_NAME"
	EnvUseSQLite     = "ECOMMERCE_USE_SQLITE"
	EnvRedisURL      = "ECOMMERCE_REDIS_URL"

	defaultSQLiteDSN = "file:ecommerce.db?cache=shared"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
