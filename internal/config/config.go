package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries all environment-driven settings. Loaded once in main and passed
// down explicitly so packages never reach for os.Getenv on a request path.
type Config struct {
	AppBaseURL string
	Port       string
	GinMode    string

	DatabaseURL string

	SessionSecret string

	PaymentProvider     string // "stripe" or "payfast"
	StripeSecretKey     string
	StripeWebhookSecret string
	PayfastMerchantID   string
	PayfastMerchantKey  string
	PayfastPassphrase   string
	PayfastSandbox      bool

	MailHost string
	MailPort int
	MailUser string
	MailPass string
	MailFrom string

	KafkaBrokers string

	ConsulAddress string
	ServiceName   string
	ServiceHost   string
}

// Load reads the configuration from the environment. Keys that the service cannot
// run without are errors; optional integrations degrade to disabled.
func Load() (*Config, error) {
	cfg := &Config{
		AppBaseURL:          os.Getenv("APP_BASE_URL"),
		Port:                getOrDefault("PORT", "8080"),
		GinMode:             os.Getenv("GIN_MODE"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		PaymentProvider:     getOrDefault("PAYMENT_PROVIDER", "stripe"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PayfastMerchantID:   os.Getenv("PAYFAST_MERCHANT_ID"),
		PayfastMerchantKey:  os.Getenv("PAYFAST_MERCHANT_KEY"),
		PayfastPassphrase:   os.Getenv("PAYFAST_PASSPHRASE"),
		PayfastSandbox:      os.Getenv("PAYFAST_SANDBOX") == "true",
		MailHost:            os.Getenv("MAIL_HOST"),
		MailUser:            os.Getenv("MAIL_USER"),
		MailPass:            os.Getenv("MAIL_PASS"),
		MailFrom:            getOrDefault("MAIL_FROM", "no-reply@storefront.local"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		ConsulAddress:       os.Getenv("CONSUL_ADDRESS"),
		ServiceName:         getOrDefault("SERVICE_NAME", "storefront"),
		ServiceHost:         getOrDefault("SERVICE_HOST", "localhost"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is not set")
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:" + cfg.Port
	}

	if port := os.Getenv("MAIL_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid MAIL_PORT %q: %w", port, err)
		}
		cfg.MailPort = p
	} else {
		cfg.MailPort = 587
	}

	switch cfg.PaymentProvider {
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is not set")
		}
	case "payfast":
		if cfg.PayfastMerchantID == "" || cfg.PayfastMerchantKey == "" {
			return nil, fmt.Errorf("payfast merchant credentials are not set")
		}
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}

	return cfg, nil
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
