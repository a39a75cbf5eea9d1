package oauth

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/gmail/v1"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
)

// FoursquareEndpoint is Foursquare's OAuth2 endpoint. It expects client credentials in the form body.
var FoursquareEndpoint = oauth2.Endpoint{
	AuthURL:   "https://foursquare.com/oauth2/authenticate",
	TokenURL:  "https://foursquare.com/oauth2/access_token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Outlook scopes requested at link time
var outlookScopes = []string{"offline_access", "https://graph.microsoft.com/Mail.Read"}

// ClientCredentials is an OAuth application registration
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ClientCredentials) empty() bool {
	return c.ClientID == "" || c.ClientSecret == ""
}

// Apps holds the application-level OAuth credentials per provider
type Apps map[entity.ProviderKind]ClientCredentials

// Credentials returns the credentials for kind, preferring the user's own app registration
func (a Apps) Credentials(kind entity.ProviderKind, settings entity.UserSettings) ClientCredentials {
	var user ClientCredentials
	switch kind {
	case entity.ProviderGmail:
		user = ClientCredentials{ClientID: settings.GoogleClientID, ClientSecret: settings.GoogleClientSecret}
	case entity.ProviderOutlook:
		user = ClientCredentials{ClientID: settings.MicrosoftClientID, ClientSecret: settings.MicrosoftClientSecret}
	}
	if !user.empty() {
		return user
	}
	return a[kind]
}

// DefaultEndpoint returns the token endpoint of a provider kind
func DefaultEndpoint(kind entity.ProviderKind) (oauth2.Endpoint, bool) {
	switch kind {
	case entity.ProviderGmail:
		return google.Endpoint, true
	case entity.ProviderOutlook:
		return microsoft.AzureADEndpoint("common"), true
	case entity.ProviderFoursquare:
		return FoursquareEndpoint, true
	}
	return oauth2.Endpoint{}, false
}

func scopesFor(kind entity.ProviderKind) []string {
	switch kind {
	case entity.ProviderGmail:
		return []string{gmail.GmailReadonlyScope}
	case entity.ProviderOutlook:
		return outlookScopes
	}
	return nil
}

// NewConfig builds the oauth2 config for a provider kind
func NewConfig(kind entity.ProviderKind, creds ClientCredentials, endpoint oauth2.Endpoint, redirectURL string) (*oauth2.Config, error) {
	if creds.empty() {
		return nil, apperrors.NewConfigurationMissing(string(kind), "oauth client credentials")
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopesFor(kind),
	}, nil
}

// GenerateAuthURL generates a URL for the user to authorize the application
func GenerateAuthURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for a token
func ExchangeCode(ctx context.Context, config *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// TokenToJSON converts a token to JSON
func TokenToJSON(token *oauth2.Token) (string, error) {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
