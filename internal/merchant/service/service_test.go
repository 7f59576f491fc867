package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/merchant/domain"
	"github.com/soloware/dealdesk/internal/merchant/repository"
	"github.com/soloware/dealdesk/internal/vault"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, fake *clock.FakeClock) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.MerchantAccount{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	v, err := vault.New("merchant-test-secret")
	assert.NoError(t, err)

	return &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: fake,
		repo:  repository.Provide(),
		vault: v,
		oauth: newOAuthClient("client-id", "client-secret", "https://app.test/callback"),
	}, db
}

func TestRegisterAPIKeyRoundTrip(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fake)
	ctx := context.Background()
	userID := svc.genID.Generate()

	status, err := svc.RegisterAPIKey(ctx, userID, "APP_USR-api-key")
	assert.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, domain.AuthMethodAPIKey, status.AuthMethod)

	// token material never hits the table in plaintext
	var stored domain.MerchantAccount
	assert.NoError(t, db.Take(&stored).Error)
	assert.NotContains(t, stored.AccessTokenEnc, "APP_USR")
	assert.Equal(t, stored.AccessTokenEnc[:1], "{")

	// api-key accounts never refresh, even decades later
	fake.Advance(10 * 365 * 24 * time.Hour)
	token, err := svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "APP_USR-api-key", token)
}

func TestAccessTokenRefreshesNearExpiry(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, fake)
	ctx := context.Background()
	userID := svc.genID.Generate()

	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		grant := r.PostForm.Get("grant_type")
		if grant == "refresh_token" {
			refreshCalls++
			assert.Equal(t, "refresh-old", r.PostForm.Get("refresh_token"))
		}
		_ = json.NewEncoder(w).Encode(tokenPair{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresIn:    21600,
			UserID:       42,
		})
	}))
	defer server.Close()
	svc.oauth.endpoint = server.URL

	account, err := svc.sealAccount(userID, domain.AuthMethodOAuth, "access-old", "refresh-old", fake.Now().Add(2*time.Minute))
	assert.NoError(t, err)
	assert.NoError(t, svc.repo.Upsert(ctx, svc.db, account))

	// inside the 5-minute margin: refresh happens before use
	token, err := svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "access-new", token)
	assert.Equal(t, 1, refreshCalls)

	// fresh pair is outside the margin: no second refresh
	token, err = svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "access-new", token)
	assert.Equal(t, 1, refreshCalls)
}

func TestRefreshNowRotatesFarFromExpiry(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, fake)
	ctx := context.Background()
	userID := svc.genID.Generate()

	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") == "refresh_token" {
			refreshCalls++
		}
		_ = json.NewEncoder(w).Encode(tokenPair{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresIn:    21600,
			UserID:       42,
		})
	}))
	defer server.Close()
	svc.oauth.endpoint = server.URL

	// 2 hours out: well outside the transparent refresh margin.
	account, err := svc.sealAccount(userID, domain.AuthMethodOAuth, "access-old", "refresh-old", fake.Now().Add(2*time.Hour))
	assert.NoError(t, err)
	assert.NoError(t, svc.repo.Upsert(ctx, svc.db, account))

	token, err := svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "access-old", token)
	assert.Equal(t, 0, refreshCalls)

	assert.NoError(t, svc.RefreshNow(ctx, userID))
	assert.Equal(t, 1, refreshCalls)

	token, err = svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "access-new", token)
}

func TestRefreshNowSkipsAPIKeyAccounts(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, fake)
	ctx := context.Background()
	userID := svc.genID.Generate()

	_, err := svc.RegisterAPIKey(ctx, userID, "APP_USR-api-key")
	assert.NoError(t, err)

	assert.NoError(t, svc.RefreshNow(ctx, userID))
	token, err := svc.AccessToken(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "APP_USR-api-key", token)
}

func TestAccessTokenNotConnected(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, fake)

	_, err := svc.AccessToken(context.Background(), svc.genID.Generate())
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}
