package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/payment/domain"
)

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	header := buildSignatureHeader(secret, payload, timestamp)
	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", header)

	adapter := &Adapter{webhookSecret: secret}
	if err := adapter.VerifyWebhook(reqHeader, nil, payload); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildSignatureHeader("wrong", payload, timestamp))
	if err := adapter.VerifyWebhook(reqHeader, nil, payload); err == nil {
		t.Fatalf("expected invalid signature error")
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.VerifyWebhook(reqHeader, nil, payload); err == nil {
		t.Fatalf("expected error on missing signature header")
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	event := map[string]any{
		"id":   "evt_session",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_1",
				"mode":                "payment",
				"client_reference_id": "10:20:abcd1234",
				"payment_intent":      "pi_1",
				"amount_total":        250000,
				"currency":            "brl",
				"customer":            "cus_1",
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	parsed, err := adapter.ParseEvent(nil, nil, payload)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if parsed.Kind != domain.EventPaymentConfirmed {
		t.Fatalf("expected payment.confirmed, got %s", parsed.Kind)
	}
	if parsed.RequestID != "evt_session" {
		t.Fatalf("expected request id evt_session, got %s", parsed.RequestID)
	}
	if parsed.SessionID != "cs_1" || parsed.ExternalPaymentID != "pi_1" {
		t.Fatalf("unexpected ids: %s / %s", parsed.SessionID, parsed.ExternalPaymentID)
	}
	if parsed.Reference != "10:20:abcd1234" {
		t.Fatalf("unexpected reference %s", parsed.Reference)
	}
	if parsed.AmountCents != 250000 || parsed.Currency != "BRL" {
		t.Fatalf("unexpected amount %d %s", parsed.AmountCents, parsed.Currency)
	}
}

func TestParseSubscriptionChange(t *testing.T) {
	event := map[string]any{
		"id":   "evt_sub",
		"type": "customer.subscription.updated",
		"data": map[string]any{
			"object": map[string]any{
				"id":                 "sub_1",
				"status":             "active",
				"customer":           "cus_1",
				"current_period_end": 1767225600,
				"items": map[string]any{
					"data": []any{
						map[string]any{"price": map[string]any{"id": "price_pro"}},
					},
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	parsed, err := adapter.ParseEvent(nil, nil, payload)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if parsed.Kind != domain.EventSubscriptionChange {
		t.Fatalf("expected subscription.change, got %s", parsed.Kind)
	}
	if parsed.SubscriptionID != "sub_1" || parsed.SubscriptionStatus != "active" {
		t.Fatalf("unexpected subscription fields: %s / %s", parsed.SubscriptionID, parsed.SubscriptionStatus)
	}
	if parsed.PriceID != "price_pro" {
		t.Fatalf("unexpected price id %s", parsed.PriceID)
	}
}

func TestParseIgnoredEvent(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}
	_, err := adapter.ParseEvent(nil, nil, []byte(`{"id":"evt_x","type":"invoice.created","data":{"object":{}}}`))
	if err != domain.ErrEventIgnored {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestPlanPricesParsedFromConfig(t *testing.T) {
	adapter, err := New(config.StripeConfig{
		APIKey:        "sk_test",
		WebhookSecret: "whsec_test",
		PlanPrices:    "price_123:Pro, price_456:studio, malformed",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	price, ok := adapter.PriceForPlan("pro")
	if !ok || price != "price_123" {
		t.Fatalf("expected price_123 for pro, got %q (%v)", price, ok)
	}
	if plan := adapter.PlanForPrice("price_456"); plan != "studio" {
		t.Fatalf("expected studio for price_456, got %s", plan)
	}
	if _, ok := adapter.PriceForPlan("malformed"); ok {
		t.Fatalf("malformed pair should be skipped")
	}
}

func TestPlanForPriceFallsBackToLowestTier(t *testing.T) {
	adapter := &Adapter{planPrices: map[string]string{
		"basic": "price_basic",
		"pro":   "price_pro",
	}}
	if plan := adapter.PlanForPrice("price_pro"); plan != "pro" {
		t.Fatalf("expected pro, got %s", plan)
	}
	if plan := adapter.PlanForPrice("price_unknown"); plan != "basic" {
		t.Fatalf("expected fallback to basic, got %s", plan)
	}
}

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
