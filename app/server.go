// Package app wires the Soulware API: subscription entitlements, billing and
// AI-test quota enforcement.
package app

import (
	"database/sql"
	"fmt"

	"github.com/Jointkeeper/Soulware-web/app/config"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stripe/stripe-go/v79/client"
)

// Server holds the process-wide clients. Everything is constructed once in
// main and injected here; handlers are methods so there are no package-level
// singletons.
type Server struct {
	cfg     *config.Config
	db      *sql.DB
	stripe  *client.API
	images  *imageClient
	storage *s3.Client
}

// NewServer builds a Server from already-initialized clients. storage may be
// nil when avatar generation is not configured.
func NewServer(cfg *config.Config, db *sql.DB, stripeAPI *client.API, storage *s3.Client) *Server {
	return &Server{
		cfg:     cfg,
		db:      db,
		stripe:  stripeAPI,
		images:  newImageClient(cfg.Avatar.OpenAIKey),
		storage: storage,
	}
}

// NewStripeClient builds the injected Stripe API client.
func NewStripeClient(cfg *config.Config) *client.API {
	return client.New(cfg.Stripe.SecretKey, nil)
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.URL,
		cfg.DB.Port,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}
