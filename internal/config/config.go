package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	// AuthSecret signs the bearer tokens issued to freelancers.
	AuthSecret string

	// VaultSecret derives the key for encrypting delegated merchant
	// credentials at rest. Startup fails when it is empty.
	VaultSecret string

	PublicBaseURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	Stripe      StripeConfig
	MercadoPago MercadoPagoConfig
}

// StripeConfig configures the platform-merchant provider. Proposal
// subscriptions and legacy checkout settle into the platform account.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	// PlanPrices maps a provider price id to an internal plan tier,
	// e.g. "price_123:pro,price_456:studio". Unmapped ids resolve to
	// the lowest tier.
	PlanPrices string
}

// MercadoPagoConfig configures the delegated-merchant provider. Checkout
// requests are signed with the freelancer's own token, never the
// platform's.
type MercadoPagoConfig struct {
	WebhookSecret     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "dealdesk"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		AuthSecret:    strings.TrimSpace(getenv("AUTH_SECRET", "")),
		VaultSecret:   strings.TrimSpace(getenv("VAULT_SECRET", "")),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "dealdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PlanPrices:    strings.TrimSpace(getenv("STRIPE_PLAN_PRICES", "")),
		},
		MercadoPago: MercadoPagoConfig{
			WebhookSecret:     strings.TrimSpace(getenv("MERCADOPAGO_WEBHOOK_SECRET", "")),
			OAuthClientID:     strings.TrimSpace(getenv("MERCADOPAGO_CLIENT_ID", "")),
			OAuthClientSecret: strings.TrimSpace(getenv("MERCADOPAGO_CLIENT_SECRET", "")),
			OAuthRedirectURL:  strings.TrimSpace(getenv("MERCADOPAGO_REDIRECT_URL", "")),
		},
	}
}

// PlanPriceMap parses PlanPrices into a plan-tier to price-id map.
// Plan keys are lowercased; malformed pairs are skipped.
func (c StripeConfig) PlanPriceMap() map[string]string {
	prices := map[string]string{}
	for _, pair := range strings.Split(c.PlanPrices, ",") {
		price, plan, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		price = strings.TrimSpace(price)
		plan = strings.ToLower(strings.TrimSpace(plan))
		if price == "" || plan == "" {
			continue
		}
		prices[plan] = price
	}
	return prices
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Module provides the application Config.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
