// Package models defines subscription tiers, entitlements and usage tracking fields.
package models

import "time"

type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierPremium      SubscriptionTier = "premium"
	TierProfessional SubscriptionTier = "professional"
)

// UnlimitedAiTests is the aiTestsPerDay sentinel for tiers without a daily cap.
const UnlimitedAiTests = -1

// SubscriptionFeatures is the entitlement set derived from a tier. It is never
// persisted per user; callers recompute it from the catalog whenever the tier
// is read.
type SubscriptionFeatures struct {
	AiTestsPerDay     int    `json:"aiTestsPerDay"`
	StaticTestsAccess string `json:"staticTestsAccess"` // "limited" or "full"
	Analytics         string `json:"analytics"`         // "basic" or "advanced"
	Advertising       bool   `json:"advertising"`
	Support           string `json:"support"` // "basic" or "priority"
	ApiAccess         bool   `json:"apiAccess"`
	CustomBranding    bool   `json:"customBranding"`
	DataExport        bool   `json:"dataExport"`
}

// subscriptionTiers is the deploy-time entitlement catalog. Changing a tier's
// entitlements is a code change, not a data migration.
var subscriptionTiers = map[SubscriptionTier]SubscriptionFeatures{
	TierFree: {
		AiTestsPerDay:     1,
		StaticTestsAccess: "limited",
		Analytics:         "basic",
		Advertising:       true,
		Support:           "basic",
	},
	TierPremium: {
		AiTestsPerDay:     5,
		StaticTestsAccess: "full",
		Analytics:         "advanced",
		Support:           "priority",
		DataExport:        true,
	},
	TierProfessional: {
		AiTestsPerDay:     UnlimitedAiTests,
		StaticTestsAccess: "full",
		Analytics:         "advanced",
		Support:           "priority",
		ApiAccess:         true,
		CustomBranding:    true,
		DataExport:        true,
	},
}

// FeaturesOf returns the entitlements for a tier. It is total: an unknown tier
// gets the free feature set rather than an error.
func FeaturesOf(tier SubscriptionTier) SubscriptionFeatures {
	if features, ok := subscriptionTiers[tier]; ok {
		return features
	}
	return subscriptionTiers[TierFree]
}

// ValidTier reports whether tier is one of the catalog tiers.
func ValidTier(tier SubscriptionTier) bool {
	_, ok := subscriptionTiers[tier]
	return ok
}

// Subscription is the per-user subscription row. Tier and ValidUntil are
// written only by the Stripe webhook handler (or the free default at first
// read); usage counters are written by the quota path.
type Subscription struct {
	UserID           string           `db:"user_id"`
	Tier             SubscriptionTier `db:"tier"`
	ValidUntil       *time.Time       `db:"valid_until"` // nil for free/unbounded
	AutoRenew        bool             `db:"auto_renew"`
	LastAiTestDate   *time.Time       `db:"last_ai_test_date"`
	AiTestsUsedToday int              `db:"ai_tests_used_today"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
}

// Features recomputes the entitlements for the row's tier.
func (s *Subscription) Features() SubscriptionFeatures {
	return FeaturesOf(s.Tier)
}
