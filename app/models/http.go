package models

// CheckoutSessionRequest is the body for POST /api/billing/create-checkout-session.
type CheckoutSessionRequest struct {
	PriceID   string `json:"priceId"`
	ReturnURL string `json:"returnUrl"`
}

// PortalSessionRequest is the body for POST /api/billing/portal-session.
type PortalSessionRequest struct {
	ReturnURL string `json:"returnUrl"`
}

// AvatarRequest is the body for POST /api/avatars.
type AvatarRequest struct {
	Prompt string            `json:"prompt"`
	Traits map[string]string `json:"traits"`
}
