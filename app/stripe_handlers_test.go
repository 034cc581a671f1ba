package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-gonic/gin"
)

// withTestClaims injects verified claims the way the auth middleware would.
func withTestClaims(subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &auth.Claims{Subject: subject, Email: subject + "@example.test"}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func newBillingTestRouter(s *Server, subject string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/")
	if subject != "" {
		group.Use(withTestClaims(subject))
	}
	group.POST("/api/billing/create-checkout-session", s.CreateCheckoutSession)
	group.POST("/api/billing/portal-session", s.CreatePortalSession)
	router.POST("/webhooks/payment", s.StripeWebhook)
	return router
}

// stripeSignature produces a valid Stripe-Signature header for a payload.
func stripeSignature(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCreateCheckoutSessionRequiresAuth(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "")

	req := httptest.NewRequest(http.MethodPost, "/api/billing/create-checkout-session",
		strings.NewReader(`{"priceId":"price_premium","returnUrl":"https://soulware.example/profile"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCreateCheckoutSessionRejectsFreeTier(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "user-1")

	// The free tier has no payable price; an unknown price id must be
	// rejected before any Stripe call is made.
	for _, priceID := range []string{"", "price_unknown"} {
		body := fmt.Sprintf(`{"priceId":%q,"returnUrl":"https://soulware.example/profile"}`, priceID)
		req := httptest.NewRequest(http.MethodPost, "/api/billing/create-checkout-session", strings.NewReader(body))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("priceId=%q: expected 400, got %d", priceID, resp.Code)
		}
	}
}

func TestCreateCheckoutSessionRejectsMalformedBody(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/billing/create-checkout-session", strings.NewReader(`{`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreatePortalSessionRequiresAuth(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "")

	req := httptest.NewRequest(http.MethodPost, "/api/billing/portal-session",
		strings.NewReader(`{"returnUrl":"https://soulware.example/profile"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "")

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.created","data":{"object":{}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	s := &Server{cfg: testConfig()}
	router := newBillingTestRouter(s, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStripeWebhookSkipsEventWithoutUserID(t *testing.T) {
	cfg := testConfig()
	s := &Server{cfg: cfg} // no db: a skipped event must not touch the store
	router := newBillingTestRouter(s, "")

	payload := []byte(`{
		"id": "evt_no_user",
		"type": "customer.subscription.created",
		"data": {"object": {
			"id": "sub_123",
			"metadata": {},
			"items": {"data": [{"price": {"id": "price_premium"}}]},
			"current_period_end": 1767225600
		}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", stripeSignature(cfg.Stripe.WebhookSecret, payload))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for skipped event, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Received bool `json:"received"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil || !body.Received {
		t.Fatalf("expected {received:true}, got %s", resp.Body.String())
	}
}

func TestStripeWebhookDeletedWithoutUserIDIsSkipped(t *testing.T) {
	cfg := testConfig()
	s := &Server{cfg: cfg}
	router := newBillingTestRouter(s, "")

	payload := []byte(`{
		"id": "evt_del_no_user",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_456", "metadata": {}}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", stripeSignature(cfg.Stripe.WebhookSecret, payload))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for skipped event, got %d", resp.Code)
	}
}

func TestStripeWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	cfg := testConfig()
	s := &Server{cfg: cfg}
	router := newBillingTestRouter(s, "")

	payload := []byte(`{"id":"evt_other","type":"invoice.paid","data":{"object":{}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", stripeSignature(cfg.Stripe.WebhookSecret, payload))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for unhandled event type, got %d", resp.Code)
	}
}
