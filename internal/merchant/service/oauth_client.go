package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soloware/dealdesk/internal/merchant/domain"
)

const defaultTokenEndpoint = "https://api.mercadopago.com/oauth/token"

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       int64  `json:"user_id"`
}

// oauthClient talks to the provider's OAuth token endpoint for both the
// initial code exchange and refreshes.
type oauthClient struct {
	clientID     string
	clientSecret string
	redirectURL  string
	endpoint     string
	client       *http.Client
}

func newOAuthClient(clientID, clientSecret, redirectURL string) *oauthClient {
	return &oauthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		endpoint:     defaultTokenEndpoint,
		client:       &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *oauthClient) exchangeCode(ctx context.Context, code string) (*tokenPair, error) {
	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)
	values.Set("redirect_uri", c.redirectURL)
	return c.requestToken(ctx, values)
}

func (c *oauthClient) refresh(ctx context.Context, refreshToken string) (*tokenPair, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, values)
}

func (c *oauthClient) requestToken(ctx context.Context, values url.Values) (*tokenPair, error) {
	if strings.TrimSpace(c.clientID) == "" || strings.TrimSpace(c.clientSecret) == "" {
		return nil, domain.ErrNotConfigured
	}
	values.Set("client_id", c.clientID)
	values.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.ErrOAuthFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.ErrOAuthFailed
	}

	var pair tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, domain.ErrOAuthFailed
	}
	if strings.TrimSpace(pair.AccessToken) == "" {
		return nil, domain.ErrOAuthFailed
	}
	return &pair, nil
}
