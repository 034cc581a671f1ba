package app

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Jointkeeper/Soulware-web/app/models"
	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CreateCheckoutSession starts a Stripe Checkout Session for the
// authenticated user. It never changes the tier itself: the webhook is the
// only writer, once Stripe reports the subscription.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req models.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// No payable price exists for the free tier; reject unknown prices before
	// any Stripe call.
	tier, known := s.tierForPrice(req.PriceID)
	if !known || tier == models.TierFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or unpayable price"})
		return
	}

	returnURL := validateReturnURL(req.ReturnURL, s.cfg.AppBaseURL)

	customerID, err := s.ensureStripeCustomer(c.Request.Context(), claims.Subject, claims.Email)
	if err != nil {
		log.Printf("ensureStripeCustomer failed for user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: c.Request.Context()},
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(returnURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(returnURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"userId": claims.Subject,
			},
		},
	}

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed for user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID})
}

// CreatePortalSession opens the Stripe billing portal for an existing
// customer. Unlike checkout it never creates a mapping: a user who has never
// subscribed has nothing to manage.
func (s *Server) CreatePortalSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req models.PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	customerID, err := s.getStripeCustomerID(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("portal lookup failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}
	if customerID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no billing account for this user, subscribe first"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: c.Request.Context()},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(validateReturnURL(req.ReturnURL, s.cfg.AppBaseURL)),
	}

	sess, err := s.stripe.BillingPortalSessions.New(params)
	if err != nil {
		log.Printf("stripe portal session failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// StripeWebhook applies subscription lifecycle events to the local
// subscription row. Stripe delivers at least once, so every write here is an
// idempotent upsert; unprocessable events are acknowledged with 200 to stop
// retries.
func (s *Server) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		s.cfg.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, ok := parseSubscriptionEvent(c, event)
		if !ok {
			return
		}
		userID := sub.Metadata["userId"]
		if userID == "" {
			// Unrecoverable: retrying will never grow a userId. Acknowledge
			// and move on.
			log.Printf("stripe webhook %s missing userId metadata, skipping sub=%s", event.Type, sub.ID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		priceID := ""
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			priceID = sub.Items.Data[0].Price.ID
		}
		tier, known := s.tierForPrice(priceID)
		if !known {
			// Deliberate fail-safe: an unknown price downgrades to free
			// instead of rejecting the event. Loud on purpose, since a stale
			// price id in config would silently downgrade paying customers.
			log.Printf("ALERT stripe webhook unknown price id %q for user=%s, falling back to free tier", priceID, userID)
		}

		validUntil := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		if err := s.upsertSubscriptionTier(c.Request.Context(), userID, tier, &validUntil); err != nil {
			log.Printf("stripe webhook tier upsert failed user=%s tier=%s err=%v", userID, tier, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
			return
		}

	case "customer.subscription.deleted":
		sub, ok := parseSubscriptionEvent(c, event)
		if !ok {
			return
		}
		userID := sub.Metadata["userId"]
		if userID == "" {
			log.Printf("stripe webhook %s missing userId metadata, skipping sub=%s", event.Type, sub.ID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		if err := s.upsertSubscriptionTier(c.Request.Context(), userID, models.TierFree, nil); err != nil {
			log.Printf("stripe webhook downgrade failed user=%s err=%v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
			return
		}

	default:
		// Intentionally ignore unhandled events.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func parseSubscriptionEvent(c *gin.Context, event stripe.Event) (*stripe.Subscription, bool) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("stripe subscription unmarshal failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription payload"})
		return nil, false
	}
	return &sub, true
}
