// Package auth resolves the calling freelancer's identity from a
// bearer token. Tokens are stateless HMAC-signed claims; there is no
// session store.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	"go.uber.org/fx"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrNoIdentity   = errors.New("auth: no identity")
)

const defaultTokenTTL = 30 * 24 * time.Hour

// Authenticator issues and verifies bearer tokens carrying a user id.
type Authenticator interface {
	Issue(userID snowflake.ID, ttl time.Duration) (string, error)
	Verify(token string) (snowflake.ID, error)
}

type hmacAuthenticator struct {
	secret []byte
	clock  clock.Clock
}

func New(cfg config.Config, c clock.Clock) (Authenticator, error) {
	secret := strings.TrimSpace(cfg.AuthSecret)
	if secret == "" {
		return nil, errors.New("auth: AUTH_SECRET is required")
	}
	return &hmacAuthenticator{secret: []byte(secret), clock: c}, nil
}

var Module = fx.Module("auth",
	fx.Provide(New),
)

// Token layout: base64url(<userID>.<expiresUnix>).<hex hmac>.
func (a *hmacAuthenticator) Issue(userID snowflake.ID, ttl time.Duration) (string, error) {
	if userID == 0 {
		return "", ErrNoIdentity
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	claims := fmt.Sprintf("%d.%d", userID, a.clock.Now().Add(ttl).Unix())
	encoded := base64.RawURLEncoding.EncodeToString([]byte(claims))
	return encoded + "." + a.sign(encoded), nil
}

func (a *hmacAuthenticator) Verify(token string) (snowflake.ID, error) {
	token = strings.TrimSpace(token)
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, ErrInvalidToken
	}
	if !hmac.Equal([]byte(a.sign(parts[0])), []byte(parts[1])) {
		return 0, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, ErrInvalidToken
	}
	fields := strings.SplitN(string(raw), ".", 2)
	if len(fields) != 2 {
		return 0, ErrInvalidToken
	}
	userID, err := snowflake.ParseString(fields[0])
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	expires, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if a.clock.Now().Unix() >= expires {
		return 0, ErrTokenExpired
	}
	return userID, nil
}

func (a *hmacAuthenticator) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	_, _ = mac.Write([]byte(payload))
	return fmt.Sprintf("%x", mac.Sum(nil))
}
