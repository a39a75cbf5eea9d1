package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/pkg/logger"
)

// Refresher exchanges refresh tokens at each provider's token endpoint
type Refresher struct {
	apps       Apps
	endpoints  map[entity.ProviderKind]oauth2.Endpoint
	httpClient *http.Client
	logger     logger.Logger
}

// Option customizes a Refresher
type Option func(*Refresher)

// WithEndpoint overrides the token endpoint of a provider kind
func WithEndpoint(kind entity.ProviderKind, endpoint oauth2.Endpoint) Option {
	return func(r *Refresher) {
		r.endpoints[kind] = endpoint
	}
}

// NewRefresher creates a token refresher. The http client's timeout bounds every exchange.
func NewRefresher(apps Apps, httpClient *http.Client, logger logger.Logger, opts ...Option) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Refresher{
		apps:       apps,
		endpoints:  make(map[entity.ProviderKind]oauth2.Endpoint),
		httpClient: httpClient,
		logger:     logger,
	}
	for _, kind := range []entity.ProviderKind{entity.ProviderGmail, entity.ProviderOutlook, entity.ProviderFoursquare} {
		r.endpoints[kind], _ = DefaultEndpoint(kind)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ provider.TokenRefresher = (*Refresher)(nil)

// Refresh exchanges the account's refresh token for a new access token.
//
// A rejected exchange (invalid_grant, 400 or 401 from the token endpoint) or a
// missing refresh token yields CredentialRevoked. Network failures and 5xx
// yield Transient and leave the account untouched.
func (r *Refresher) Refresh(ctx context.Context, account *entity.Account) (*provider.Token, error) {
	kind := string(account.Kind)

	if account.RefreshToken == "" {
		return nil, apperrors.NewCredentialRevoked(kind, errors.New("no refresh token stored"))
	}

	endpoint, ok := r.endpoints[account.Kind]
	if !ok {
		return nil, apperrors.NewConfigurationMissing(kind, "token endpoint")
	}

	config, err := NewConfig(account.Kind, r.apps.Credentials(account.Kind, account.Settings), endpoint, "")
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	token, err := config.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(kind, err)
	}

	r.logger.Debug("Token refreshed", "provider", kind, "accountId", account.ID, "expiry", token.Expiry)

	return &provider.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

func classifyRefreshError(kind string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return apperrors.NewTransient(kind, err)
	}

	if re.ErrorCode == "invalid_grant" || re.ErrorCode == "unauthorized_client" {
		return apperrors.NewCredentialRevoked(kind, err)
	}
	if re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return apperrors.NewCredentialRevoked(kind, err)
		}
		e := apperrors.NewTransient(kind, err)
		e.StatusCode = re.Response.StatusCode
		return e
	}
	return apperrors.NewTransient(kind, err)
}
