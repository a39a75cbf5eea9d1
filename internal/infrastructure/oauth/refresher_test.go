package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/pkg/logger"
)

func tokenServer(t *testing.T, status int, body map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestRefresher(srv *httptest.Server) *Refresher {
	apps := Apps{entity.ProviderGmail: {ClientID: "app-id", ClientSecret: "app-secret"}}
	return NewRefresher(apps, srv.Client(), logger.NewNopLogger(),
		WithEndpoint(entity.ProviderGmail, oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}))
}

func gmailAccount() *entity.Account {
	return &entity.Account{ID: 7, Kind: entity.ProviderGmail, RefreshToken: "rt-1", Active: true}
}

func TestRefresh_Success(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})

	token, err := newTestRefresher(srv).Refresh(context.Background(), gmailAccount())
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken, "an unrotated refresh token is carried over")
	assert.False(t, token.Expiry.IsZero())
	assert.EqualValues(t, 1, calls.Load())
}

func TestRefresh_InvalidGrantIsRevoked(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})

	_, err := newTestRefresher(srv).Refresh(context.Background(), gmailAccount())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCredentialRevoked)
}

func TestRefresh_ServerErrorIsTransient(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadGateway, map[string]any{"error": "upstream"})

	_, err := newTestRefresher(srv).Refresh(context.Background(), gmailAccount())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransient)
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, nil)
	account := gmailAccount()
	account.RefreshToken = ""

	_, err := newTestRefresher(srv).Refresh(context.Background(), account)
	assert.ErrorIs(t, err, apperrors.ErrCredentialRevoked)
	assert.EqualValues(t, 0, calls.Load())
}

func TestRefresh_MissingAppCredentials(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, nil)
	account := gmailAccount()
	account.Kind = entity.ProviderOutlook

	_, err := newTestRefresher(srv).Refresh(context.Background(), account)
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
}

func TestApps_UserCredentialsOverride(t *testing.T) {
	apps := Apps{entity.ProviderGmail: {ClientID: "app", ClientSecret: "s"}}

	assert.Equal(t, "app", apps.Credentials(entity.ProviderGmail, entity.UserSettings{}).ClientID)

	settings := entity.UserSettings{GoogleClientID: "mine", GoogleClientSecret: "mine-secret"}
	assert.Equal(t, "mine", apps.Credentials(entity.ProviderGmail, settings).ClientID)

	partial := entity.UserSettings{GoogleClientID: "mine"}
	assert.Equal(t, "app", apps.Credentials(entity.ProviderGmail, partial).ClientID)
}
