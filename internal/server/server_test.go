package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/soloware/dealdesk/internal/auth"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/observability/metrics"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeProposalService struct {
	created   *proposaldomain.CreateRequest
	createErr error
	getErr    error
	signErr   error
}

func (f *fakeProposalService) Create(ctx context.Context, req proposaldomain.CreateRequest) (*proposaldomain.Proposal, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &req
	return &proposaldomain.Proposal{ID: snowflake.ID(7), OwnerID: req.OwnerID, Title: req.Title}, nil
}

func (f *fakeProposalService) List(ctx context.Context, ownerID snowflake.ID) ([]proposaldomain.Proposal, error) {
	return nil, nil
}

func (f *fakeProposalService) Get(ctx context.Context, ownerID, id snowflake.ID) (*proposaldomain.Proposal, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &proposaldomain.Proposal{ID: id, OwnerID: ownerID}, nil
}

func (f *fakeProposalService) UpdateStatus(ctx context.Context, ownerID, id snowflake.ID, status proposaldomain.DisplayStatus) (*proposaldomain.Proposal, error) {
	return &proposaldomain.Proposal{ID: id, OwnerID: ownerID}, nil
}

func (f *fakeProposalService) IssueShareLink(ctx context.Context, ownerID, id snowflake.ID, ttlHours int) (*proposaldomain.ShareLink, error) {
	return &proposaldomain.ShareLink{ProposalID: id, Token: "tok"}, nil
}

func (f *fakeProposalService) ViewByShareToken(ctx context.Context, rawToken string) (*proposaldomain.PublicContract, error) {
	return nil, proposaldomain.ErrShareTokenInvalid
}

func (f *fakeProposalService) SignContract(ctx context.Context, req proposaldomain.SignRequest) (*proposaldomain.PublicContract, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	return &proposaldomain.PublicContract{Signed: true}, nil
}

func (f *fakeProposalService) MarkPaidManually(ctx context.Context, ownerID, id snowflake.ID, note string) (*proposaldomain.Proposal, error) {
	return &proposaldomain.Proposal{ID: id, OwnerID: ownerID}, nil
}

type fakeReconcileService struct {
	result *paymentdomain.WebhookResult
	err    error
}

func (f *fakeReconcileService) IngestWebhook(ctx context.Context, provider string, headers http.Header, query url.Values, body []byte) (*paymentdomain.WebhookResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type serverFixture struct {
	server    *Server
	authn     auth.Authenticator
	proposals *fakeProposalService
	webhooks  *fakeReconcileService
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{AuthSecret: "test-secret", Environment: "test"}
	authn, err := auth.New(cfg, fake)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	proposals := &fakeProposalService{}
	webhooks := &fakeReconcileService{result: &paymentdomain.WebhookResult{Handled: true}}

	srv := NewServer(ServerParams{
		Gin:         NewEngine(cfg, metrics.New()),
		Cfg:         cfg,
		Log:         zap.NewNop(),
		Authn:       authn,
		Limiter:     ratelimit.NewMemoryBucket(fake),
		Metrics:     metrics.New(),
		ProposalSvc: proposals,
		WebhookSvc:  webhooks,
	})
	return &serverFixture{server: srv, authn: authn, proposals: proposals, webhooks: webhooks}
}

func (f *serverFixture) bearer(t *testing.T, userID snowflake.ID) string {
	t.Helper()
	token, err := f.authn.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestAPIRoutesRequireBearerToken(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/proposals", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.authn.Issue(snowflake.ID(42), time.Nanosecond)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateProposalUsesTokenIdentity(t *testing.T) {
	f := newServerFixture(t)
	body, _ := json.Marshal(map[string]string{
		"title":       "Site institucional",
		"client_name": "Padaria Silva",
		"value":       "2.500,00",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/proposals", bytes.NewReader(body))
	req.Header.Set("Authorization", f.bearer(t, snowflake.ID(42)))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	if assert.NotNil(t, f.proposals.created) {
		assert.Equal(t, snowflake.ID(42), f.proposals.created.OwnerID)
	}
}

func TestValidationErrorMapsToBadRequest(t *testing.T) {
	f := newServerFixture(t)
	f.proposals.createErr = proposaldomain.ErrInvalidValue

	body, _ := json.Marshal(map[string]string{"title": "x", "client_name": "y", "value": "abc"})
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", bytes.NewReader(body))
	req.Header.Set("Authorization", f.bearer(t, snowflake.ID(42)))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payload errorPayload
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "validation_error", payload.Type)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "value", payload.Errors[0].Field)
	}
}

func TestShareTokenMissMapsToNotFound(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/public/contracts/unknown-token", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFirstSignatureReturnsCreated(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]string{"signer_name": "Ana", "signer_document": "123.456.789-00"})
	req := httptest.NewRequest(http.MethodPost, "/public/contracts/tok/sign", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var contract proposaldomain.PublicContract
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contract))
	assert.True(t, contract.Signed)
}

func TestSecondSignatureMapsToConflict(t *testing.T) {
	f := newServerFixture(t)
	f.proposals.signErr = proposaldomain.ErrAlreadySigned

	body, _ := json.Marshal(map[string]string{"signer_name": "Ana"})
	req := httptest.NewRequest(http.MethodPost, "/public/contracts/tok/sign", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var payload errorPayload
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "contract_already_signed", payload.Message)
}

func TestWebhookSignatureFailureReturnsUnauthorized(t *testing.T) {
	f := newServerFixture(t)
	f.webhooks.err = paymentdomain.ErrInvalidSignature

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/mercadopago", bytes.NewReader([]byte(`{}`)))
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookProcessingErrorIsAcked(t *testing.T) {
	f := newServerFixture(t)
	f.webhooks.err = context.DeadlineExceeded

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewReader([]byte(`{}`)))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result paymentdomain.WebhookResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Ignored)
	assert.Equal(t, "processing_error", result.Reason)
}

func TestWebhookDuplicateIsAcked(t *testing.T) {
	f := newServerFixture(t)
	f.webhooks.result = &paymentdomain.WebhookResult{Handled: true, Duplicate: true}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewReader([]byte(`{}`)))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result paymentdomain.WebhookResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Duplicate)
}
