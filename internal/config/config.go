package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendFirebase = "firebase"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"

	GatewayMercadoPago = "mercadopago"
	GatewayMidtrans    = "midtrans"
)

// Config is built once at process start and passed to every component that
// talks to the gateway or to storage.
type Config struct {
	Env    string `envconfig:"APP_ENV" default:"development"`
	Port   string `envconfig:"PORT" default:"8080"`
	AppURL string `envconfig:"APP_URL" default:"http://localhost:8080"`

	StoreBackend            string `envconfig:"STORE_BACKEND" default:"postgres"`
	DatabaseURL             string `envconfig:"DATABASE_URL"`
	RedisURL                string `envconfig:"REDIS_URL"`
	FirebaseCredentialsPath string `envconfig:"FIREBASE_CREDENTIALS_PATH" default:"./firebase-service-account.json"`
	FirebaseDatabaseURL     string `envconfig:"FIREBASE_DATABASE_URL"`

	GatewayProvider      string        `envconfig:"GATEWAY_PROVIDER" default:"mercadopago"`
	GatewayTimeout       time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	MPAccessToken        string        `envconfig:"MP_ACCESS_TOKEN"`
	MPBaseURL            string        `envconfig:"MP_BASE_URL" default:"https://api.mercadopago.com"`
	MPWebhookSecret      string        `envconfig:"MP_WEBHOOK_SECRET"`
	MidtransServerKey    string        `envconfig:"MIDTRANS_SERVER_KEY"`
	MidtransIsProduction bool          `envconfig:"MIDTRANS_IS_PRODUCTION" default:"false"`
	CheckoutCurrency     string        `envconfig:"CHECKOUT_CURRENCY" default:"MXN"`

	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	IntentRetention time.Duration `envconfig:"INTENT_RETENTION" default:"72h"`
	WorkerInterval  time.Duration `envconfig:"WORKER_INTERVAL" default:"5m"`
	AdminClaim      string        `envconfig:"ADMIN_CLAIM" default:"admin"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend and gateway have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store backend %q", c.StoreBackend)
		}
	case StoreBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for store backend %q", c.StoreBackend)
		}
	case StoreBackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required for store backend %q", c.StoreBackend)
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.GatewayProvider {
	case GatewayMercadoPago:
		if c.MPAccessToken == "" {
			return fmt.Errorf("MP_ACCESS_TOKEN is required for gateway %q", c.GatewayProvider)
		}
	case GatewayMidtrans:
		if c.MidtransServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY is required for gateway %q", c.GatewayProvider)
		}
	default:
		return fmt.Errorf("unknown gateway provider %q", c.GatewayProvider)
	}

	if c.IntentRetention <= 0 {
		return fmt.Errorf("INTENT_RETENTION must be positive")
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
