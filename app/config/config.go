package config

import (
	"fmt"
	"os"
	"strings"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DB     PostgresConfig
	Stripe StripeConfig
	Avatar AvatarConfig
	// AppBaseURL is the public origin of the web app; return URLs from
	// clients must match its origin or they are replaced with a default.
	AppBaseURL string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PricePremium      string
	PriceProfessional string
}

// AvatarConfig drives the optional avatar-generation endpoint. When either
// value is empty the endpoint answers 503 instead of failing at startup.
type AvatarConfig struct {
	OpenAIKey string
	S3Bucket  string
}

// LoadConfig reads configuration from the environment. Missing billing or app
// settings make it return an error; main treats that as fatal before serving
// traffic.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
		},
		Stripe: StripeConfig{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PricePremium:      os.Getenv("STRIPE_PRICE_PREMIUM"),
			PriceProfessional: os.Getenv("STRIPE_PRICE_PROFESSIONAL"),
		},
		Avatar: AvatarConfig{
			OpenAIKey: os.Getenv("OPENAI_API_KEY"),
			S3Bucket:  os.Getenv("AVATAR_BUCKET"),
		},
		AppBaseURL: strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
	}

	var missing []string
	if cfg.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.Stripe.PricePremium == "" {
		missing = append(missing, "STRIPE_PRICE_PREMIUM")
	}
	if cfg.Stripe.PriceProfessional == "" {
		missing = append(missing, "STRIPE_PRICE_PROFESSIONAL")
	}
	if cfg.AppBaseURL == "" {
		missing = append(missing, "APP_BASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
