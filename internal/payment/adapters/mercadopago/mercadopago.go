package mercadopago

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/payment/domain"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Adapter is the delegated-merchant provider. Checkout preferences
// and payment fetches run under the freelancer's own credential, so
// funds settle on their account, not the platform's.
type Adapter struct {
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

func New(cfg config.MercadoPagoConfig) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		webhookSecret: secret,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "mercadopago" }

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	BackURLs          preferenceBack   `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferencePayer struct {
	Email string `json:"email"`
}

type preferenceBack struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.Checkout, error) {
	if strings.TrimSpace(req.OwnerToken) == "" {
		return nil, domain.ErrInvalidConfig
	}

	pref := preferenceRequest{
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  float64(req.AmountCents) / 100,
			CurrencyID: strings.ToUpper(req.Currency),
		}},
		ExternalReference: req.Reference,
		BackURLs: preferenceBack{
			Success: req.SuccessURL,
			Failure: req.CancelURL,
			Pending: req.SuccessURL,
		},
		AutoReturn:      "approved",
		NotificationURL: req.NotifyURL,
	}
	if req.PayerEmail != "" {
		pref.Payer = &preferencePayer{Email: req.PayerEmail}
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.OwnerToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
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

	var preference preferenceResponse
	if err := json.Unmarshal(payload, &preference); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if preference.ID == "" || preference.InitPoint == "" {
		return nil, fmt.Errorf("%w: incomplete preference response", domain.ErrUpstream)
	}
	return &domain.Checkout{PreferenceID: preference.ID, URL: preference.InitPoint}, nil
}

// VerifyWebhook checks the x-signature header. The signed manifest is
// id:<dataId>;request-id:<requestId>;ts:<ts>; where dataId comes from
// the data.id query parameter and requestId from the x-request-id
// header. Segments whose value is absent are dropped from the
// manifest, matching how the provider builds it.
func (a *Adapter) VerifyWebhook(headers http.Header, query url.Values, _ []byte) error {
	sigHeader := strings.TrimSpace(headers.Get("x-signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	ts, v1 := parseSignatureHeader(sigHeader)
	if ts == "" || v1 == "" {
		return domain.ErrInvalidSignature
	}

	manifest := buildManifest(query.Get("data.id"), headers.Get("x-request-id"), ts)
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type notification struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// ParseEvent normalizes a notification. Deliveries carry only the
// payment id; the settled status and amount must be fetched.
func (a *Adapter) ParseEvent(headers http.Header, query url.Values, body []byte) (*domain.WebhookEvent, error) {
	var note notification
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	paymentID := note.Data.ID.String()
	if paymentID == "" {
		paymentID = strings.TrimSpace(query.Get("data.id"))
	}
	if paymentID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if note.Type != "" && note.Type != "payment" {
		return nil, domain.ErrEventIgnored
	}

	requestID := strings.TrimSpace(headers.Get("x-request-id"))
	if requestID == "" {
		requestID = paymentID
	}
	ownerHint, _ := snowflake.ParseString(strings.TrimSpace(query.Get("owner_id")))
	return &domain.WebhookEvent{
		Provider:          "mercadopago",
		RequestID:         requestID,
		Kind:              domain.EventPaymentConfirmed,
		ExternalPaymentID: paymentID,
		NeedsFetch:        true,
		OwnerHint:         ownerHint,
	}, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
}

func (a *Adapter) FetchPaymentStatus(ctx context.Context, externalPaymentID, ownerToken string) (*domain.FetchedPayment, error) {
	if strings.TrimSpace(ownerToken) == "" {
		return nil, domain.ErrInvalidConfig
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/payments/"+url.PathEscape(externalPaymentID), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+ownerToken)

	resp, err := a.httpClient.Do(httpReq)
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

	var payment paymentResponse
	if err := json.Unmarshal(payload, &payment); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	return &domain.FetchedPayment{
		ExternalPaymentID: payment.ID.String(),
		Status:            mapStatus(payment.Status),
		Reference:         payment.ExternalReference,
		AmountCents:       int64(payment.TransactionAmount*100 + 0.5),
		Currency:          strings.ToUpper(strings.TrimSpace(payment.CurrencyID)),
	}, nil
}

func mapStatus(status string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return domain.PaymentConfirmed
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

func buildManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID = strings.TrimSpace(dataID); dataID != "" {
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(dataID))
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	if ts = strings.TrimSpace(ts); ts != "" {
		fmt.Fprintf(&b, "ts:%s;", ts)
	}
	return b.String()
}

func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		switch strings.TrimSpace(keyValue[0]) {
		case "ts":
			ts = strings.TrimSpace(keyValue[1])
		case "v1":
			v1 = strings.TrimSpace(keyValue[1])
		}
	}
	return ts, v1
}
