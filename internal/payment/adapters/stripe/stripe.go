package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/payment/domain"
)

const defaultBaseURL = "https://api.stripe.com"

// Adapter is the platform-merchant provider. Every charge lands on
// the platform's own account; no delegated credential is involved.
type Adapter struct {
	apiKey        string
	webhookSecret string
	planPrices    map[string]string
	baseURL       string
	httpClient    *http.Client
}

func New(cfg config.StripeConfig) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if apiKey == "" || secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		apiKey:        apiKey,
		webhookSecret: secret,
		planPrices:    cfg.PlanPriceMap(),
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "stripe" }

// PriceForPlan maps a plan name to its configured price id.
func (a *Adapter) PriceForPlan(plan string) (string, bool) {
	price, ok := a.planPrices[strings.ToLower(strings.TrimSpace(plan))]
	return price, ok && price != ""
}

// PlanForPrice is the inverse mapping, used when a subscription
// webhook only carries the price id. Unknown prices resolve to the
// lowest configured tier rather than failing the event.
func (a *Adapter) PlanForPrice(priceID string) string {
	lowest := ""
	for plan, price := range a.planPrices {
		if price == priceID {
			return plan
		}
		if lowest == "" || plan < lowest {
			lowest = plan
		}
	}
	return lowest
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.Checkout, error) {
	form := url.Values{}
	form.Set("mode", string(req.Mode))
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.Reference)
	if req.PayerEmail != "" {
		form.Set("customer_email", req.PayerEmail)
	}

	switch req.Mode {
	case domain.SessionModeSubscription:
		if req.PriceID == "" {
			return nil, domain.ErrInvalidConfig
		}
		form.Set("line_items[0][price]", req.PriceID)
		form.Set("line_items[0][quantity]", "1")
	default:
		form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
		form.Set("line_items[0][price_data][product_data][name]", req.Title)
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
		form.Set("line_items[0][quantity]", "1")
	}
	for key, value := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	session, err := a.postForm(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}
	return &domain.Checkout{SessionID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) VerifyWebhook(headers http.Header, _ url.Values, body []byte) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func (a *Adapter) ParseEvent(_ http.Header, _ url.Values, body []byte) (*domain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseSession(event, domain.EventPaymentConfirmed)
	case "checkout.session.expired":
		return a.parseSession(event, domain.EventSessionExpired)
	case "payment_intent.payment_failed":
		return a.parseIntentFailed(event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		return a.parseSubscription(event)
	default:
		return nil, domain.ErrEventIgnored
	}
}

// FetchPaymentStatus is unused for stripe; completed-session events
// already carry the settled amount.
func (a *Adapter) FetchPaymentStatus(context.Context, string, string) (*domain.FetchedPayment, error) {
	return nil, domain.ErrEventIgnored
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Mode              string `json:"mode"`
	ClientReferenceID string `json:"client_reference_id"`
	PaymentIntent     string `json:"payment_intent"`
	Subscription      string `json:"subscription"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	Customer          string `json:"customer"`
}

type subscriptionObject struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Customer         string `json:"customer"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (a *Adapter) parseSession(event stripeEvent, kind domain.EventKind) (*domain.WebhookEvent, error) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	return &domain.WebhookEvent{
		Provider:          "stripe",
		RequestID:         event.ID,
		Kind:              kind,
		SessionID:         session.ID,
		ExternalPaymentID: session.PaymentIntent,
		SubscriptionID:    session.Subscription,
		Reference:         session.ClientReferenceID,
		AmountCents:       session.AmountTotal,
		Currency:          strings.ToUpper(strings.TrimSpace(session.Currency)),
		CustomerID:        session.Customer,
	}, nil
}

func (a *Adapter) parseIntentFailed(event stripeEvent) (*domain.WebhookEvent, error) {
	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	return &domain.WebhookEvent{
		Provider:          "stripe",
		RequestID:         event.ID,
		Kind:              domain.EventPaymentFailed,
		ExternalPaymentID: intent.ID,
	}, nil
}

func (a *Adapter) parseSubscription(event stripeEvent) (*domain.WebhookEvent, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	priceID := ""
	if len(sub.Items.Data) > 0 {
		priceID = sub.Items.Data[0].Price.ID
	}
	return &domain.WebhookEvent{
		Provider:           "stripe",
		RequestID:          event.ID,
		Kind:               domain.EventSubscriptionChange,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: strings.TrimSpace(sub.Status),
		PriceID:            priceID,
		CustomerID:         sub.Customer,
		PeriodEnd:          sub.CurrentPeriodEnd,
	}, nil
}

func (a *Adapter) postForm(ctx context.Context, path string, form url.Values) (*checkoutSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var session checkoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: incomplete session response", domain.ErrUpstream)
	}
	return &session, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}
