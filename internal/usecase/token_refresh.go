package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/internal/domain/repository"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

// DefaultExpirySkew is how close to expiry a token is refreshed before use
const DefaultExpirySkew = time.Minute

// RefreshPolicy runs provider calls with an account credential and refreshes it
// at most once per call: before the call when it is about to expire, or after
// the provider rejected it.
type RefreshPolicy struct {
	refresher provider.TokenRefresher
	accounts  repository.AccountRepository
	metrics   *metrics.Metrics
	logger    logger.Logger
	skew      time.Duration
	now       func() time.Time
}

// NewRefreshPolicy creates a refresh policy
func NewRefreshPolicy(refresher provider.TokenRefresher, accounts repository.AccountRepository, m *metrics.Metrics, logger logger.Logger) *RefreshPolicy {
	return &RefreshPolicy{
		refresher: refresher,
		accounts:  accounts,
		metrics:   m,
		logger:    logger,
		skew:      DefaultExpirySkew,
		now:       time.Now,
	}
}

// Do invokes call with the account's current credential. A second AuthExpired
// after a refresh is returned unchanged.
func (p *RefreshPolicy) Do(ctx context.Context, account *entity.Account, call func(ctx context.Context) error) error {
	refreshed := false
	if account.TokenExpired(p.now(), p.skew) {
		if err := p.refresh(ctx, account); err != nil {
			return err
		}
		refreshed = true
	}

	err := call(ctx)
	if err == nil || refreshed || !errors.Is(err, apperrors.ErrAuthExpired) {
		return err
	}

	p.logger.Info("Access token rejected, refreshing", "accountID", account.ID, "provider", account.Kind)
	if err := p.refresh(ctx, account); err != nil {
		return err
	}
	return call(ctx)
}

func (p *RefreshPolicy) refresh(ctx context.Context, account *entity.Account) error {
	kind := string(account.Kind)

	token, err := p.refresher.Refresh(ctx, account)
	if err != nil {
		if errors.Is(err, apperrors.ErrCredentialRevoked) {
			p.metrics.ObserveTokenRefresh(kind, "revoked")
			p.deactivate(ctx, account, err)
			return err
		}
		p.metrics.ObserveTokenRefresh(kind, "failed")
		p.logger.Warn("Token refresh failed", "accountID", account.ID, "provider", kind, "error", err)
		return err
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		expiresAt = &expiry
	}
	if err := p.accounts.UpdateTokens(ctx, account.ID, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		p.metrics.ObserveTokenRefresh(kind, "failed")
		return fmt.Errorf("failed to persist refreshed token for account %d: %w", account.ID, err)
	}

	account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	account.ExpiresAt = expiresAt

	p.metrics.ObserveTokenRefresh(kind, "success")
	p.logger.Info("Token refreshed", "accountID", account.ID, "provider", kind)
	return nil
}

func (p *RefreshPolicy) deactivate(ctx context.Context, account *entity.Account, cause error) {
	reason := cause.Error()
	if err := p.accounts.Deactivate(ctx, account.ID, reason); err != nil {
		p.logger.Error("Failed to deactivate account", "accountID", account.ID, "error", err)
		return
	}
	account.Active = false
	account.DeactivatedReason = reason
	p.logger.Warn("Account deactivated, refresh token rejected", "accountID", account.ID, "provider", account.Kind, "error", cause)
}
