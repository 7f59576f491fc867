package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/merchant/domain"
	"github.com/soloware/dealdesk/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// refreshMargin is the safety window before expiry inside which an
// OAuth token is refreshed before use.
const refreshMargin = 5 * time.Minute

// apiKeyLifetime keeps api-key accounts permanently outside the
// refresh margin.
const apiKeyLifetime = 20 * 365 * 24 * time.Hour

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Vault *vault.Vault
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	vault *vault.Vault
	oauth *oauthClient
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("merchant.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		vault: p.Vault,
		oauth: newOAuthClient(
			p.Cfg.MercadoPago.OAuthClientID,
			p.Cfg.MercadoPago.OAuthClientSecret,
			p.Cfg.MercadoPago.OAuthRedirectURL,
		),
	}
}

func (s *Service) ConnectOAuth(ctx context.Context, userID snowflake.ID, code string) (*domain.Status, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	pair, err := s.oauth.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	account, err := s.sealAccount(userID, domain.AuthMethodOAuth, pair.AccessToken, pair.RefreshToken, s.expiryFrom(pair.ExpiresIn))
	if err != nil {
		return nil, err
	}
	account.ProviderUserID = strconv.FormatInt(pair.UserID, 10)

	if err := s.repo.Upsert(ctx, s.db, account); err != nil {
		return nil, err
	}
	return statusOf(account), nil
}

func (s *Service) RegisterAPIKey(ctx context.Context, userID snowflake.ID, apiKey string) (*domain.Status, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.ErrInvalidAPIKey
	}

	// api-key accounts have no refresh flow: the refresh slot mirrors
	// the access token and expiry sits far out.
	account, err := s.sealAccount(userID, domain.AuthMethodAPIKey, apiKey, apiKey, s.clock.Now().Add(apiKeyLifetime))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, s.db, account); err != nil {
		return nil, err
	}
	return statusOf(account), nil
}

func (s *Service) AccessToken(ctx context.Context, userID snowflake.ID) (string, error) {
	account, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", domain.ErrNotConnected
	}

	if account.AuthMethod == domain.AuthMethodOAuth && s.clock.Now().Add(refreshMargin).After(account.ExpiresAt) {
		refreshed, err := s.refreshAccount(ctx, account)
		if err != nil {
			return "", err
		}
		account = refreshed
	}

	token, err := s.vault.DecryptString(account.AccessTokenEnc)
	if err != nil {
		return "", domain.ErrInvalidToken
	}
	return token, nil
}

func (s *Service) RefreshNow(ctx context.Context, userID snowflake.ID) error {
	account, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrNotConnected
	}
	if account.AuthMethod != domain.AuthMethodOAuth {
		return nil
	}
	_, err = s.refreshAccount(ctx, account)
	return err
}

func (s *Service) Disconnect(ctx context.Context, userID snowflake.ID) error {
	return s.repo.Delete(ctx, s.db, userID)
}

func (s *Service) GetStatus(ctx context.Context, userID snowflake.ID) (*domain.Status, error) {
	account, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &domain.Status{Connected: false}, nil
	}
	return statusOf(account), nil
}

// refreshAccount exchanges the refresh token for a new pair. Concurrent
// refreshes for the same account are not serialized; the most recently
// written pair wins and the cost is a wasted provider call.
func (s *Service) refreshAccount(ctx context.Context, account *domain.MerchantAccount) (*domain.MerchantAccount, error) {
	refreshToken, err := s.vault.DecryptString(account.RefreshTokenEnc)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	pair, err := s.oauth.refresh(ctx, refreshToken)
	if err != nil {
		s.log.Warn("merchant token refresh failed",
			zap.String("user_id", account.UserID.String()),
			zap.Error(err),
		)
		return nil, domain.ErrRefreshFailed
	}

	updated, err := s.sealAccount(account.UserID, domain.AuthMethodOAuth, pair.AccessToken, pair.RefreshToken, s.expiryFrom(pair.ExpiresIn))
	if err != nil {
		return nil, err
	}
	updated.ProviderUserID = account.ProviderUserID
	updated.ID = account.ID
	updated.CreatedAt = account.CreatedAt

	if err := s.repo.Upsert(ctx, s.db, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) sealAccount(userID snowflake.ID, method domain.AuthMethod, accessToken, refreshToken string, expiresAt time.Time) (*domain.MerchantAccount, error) {
	accessEnc, err := s.vault.EncryptString(accessToken)
	if err != nil {
		return nil, err
	}
	refreshEnc, err := s.vault.EncryptString(refreshToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &domain.MerchantAccount{
		ID:              s.genID.Generate(),
		UserID:          userID,
		AuthMethod:      method,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Service) expiryFrom(expiresIn int64) time.Time {
	if expiresIn <= 0 {
		expiresIn = 6 * 60 * 60
	}
	return s.clock.Now().Add(time.Duration(expiresIn) * time.Second)
}

func statusOf(account *domain.MerchantAccount) *domain.Status {
	expires := account.ExpiresAt
	return &domain.Status{
		Connected:  true,
		AuthMethod: account.AuthMethod,
		ExpiresAt:  &expires,
	}
}
