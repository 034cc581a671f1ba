// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
// The Stripe webhook stays outside the auth group: Stripe signs its requests
// instead of carrying a bearer token.
func (s *Server) NewRouter() (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{s.cfg.AppBaseURL},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.Health)
	router.POST("/webhooks/payment", s.StripeWebhook)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *auth.Claims) error {
			return s.ensureSubscription(c.Request.Context(), claims.Subject)
		},
	}))
	protected.GET("/api/subscription", s.GetSubscription)
	protected.GET("/api/ai-tests/availability", s.GetAiTestAvailability)
	protected.POST("/api/results", s.SaveTestResult)
	protected.GET("/api/results", s.ListTestResults)
	protected.POST("/api/avatars", s.GenerateAvatar)
	protected.POST("/api/billing/create-checkout-session", s.CreateCheckoutSession)
	protected.POST("/api/billing/portal-session", s.CreatePortalSession)

	return router, nil
}
