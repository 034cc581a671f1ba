// Package app maps Stripe prices to tiers and manages customer mappings.
package app

import (
	"context"
	"errors"
	"log"
	"net/url"

	"github.com/Jointkeeper/Soulware-web/app/models"

	"github.com/stripe/stripe-go/v79"
)

// tierForPrice resolves a configured Stripe price id to a tier. Unknown price
// ids resolve to free: the webhook must never leave a user in an undefined
// tier, and checkout validation rejects unknown prices before Stripe is
// called.
func (s *Server) tierForPrice(priceID string) (models.SubscriptionTier, bool) {
	switch priceID {
	case s.cfg.Stripe.PricePremium:
		return models.TierPremium, true
	case s.cfg.Stripe.PriceProfessional:
		return models.TierProfessional, true
	default:
		return models.TierFree, false
	}
}

// validateReturnURL keeps redirect targets on our own origin. A mismatched or
// unparseable URL degrades to <base>/profile instead of failing the request: a
// cosmetic redirect problem should not block checkout.
func validateReturnURL(rawReturnURL, appBaseURL string) string {
	fallback := appBaseURL + "/profile"
	parsed, err := url.Parse(rawReturnURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fallback
	}
	base, err := url.Parse(appBaseURL)
	if err != nil {
		return fallback
	}
	if parsed.Scheme != base.Scheme || parsed.Host != base.Host {
		return fallback
	}
	return rawReturnURL
}

// ensureStripeCustomer finds or creates the Stripe customer for a user.
// Lookup-then-create is not atomic; the unique constraint on user_id is the
// backstop, and a violation means another request won the race, so we re-read
// the winner's mapping.
func (s *Server) ensureStripeCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}

	customerID, err := s.getStripeCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Metadata: map[string]string{
			"userId": userID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := s.stripe.Customers.New(params)
	if err != nil {
		return "", err
	}

	if err := s.insertStripeCustomer(ctx, userID, cust.ID); err != nil {
		if isUniqueViolation(err) {
			// A concurrent checkout created the mapping first; ours is an
			// orphan customer on the Stripe side, theirs is authoritative.
			log.Printf("stripe customer mapping raced for user=%s, re-reading", userID)
			return s.getStripeCustomerID(ctx, userID)
		}
		return "", err
	}

	return cust.ID, nil
}
