// Package errors defines the failure taxonomy shared by provider clients, the
// token refresh policy, materialization and the scheduler.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how the caller should react to it
type Kind string

const (
	// KindAuthExpired means the access credential was rejected; recoverable once via refresh
	KindAuthExpired Kind = "auth_expired"
	// KindRateLimited means the provider throttled us; retried on the next firing
	KindRateLimited Kind = "rate_limited"
	// KindTransient covers network failures, timeouts and 5xx responses
	KindTransient Kind = "transient"
	// KindMalformedItem means a single provider item could not be used
	KindMalformedItem Kind = "malformed_item"
	// KindDuplicate means the record already exists; an idempotent no-op
	KindDuplicate Kind = "duplicate_candidate"
	// KindConfigurationMissing means the provider is not configured for the account
	KindConfigurationMissing Kind = "configuration_missing"
	// KindCredentialRevoked means the refresh exchange itself was rejected
	KindCredentialRevoked Kind = "credential_revoked"
)

// Sentinels for errors.Is matching. Any *ProviderError with the same kind matches.
var (
	ErrAuthExpired          = &ProviderError{Kind: KindAuthExpired, Message: "authorization expired"}
	ErrRateLimited          = &ProviderError{Kind: KindRateLimited, Message: "rate limited"}
	ErrTransient            = &ProviderError{Kind: KindTransient, Message: "transient failure"}
	ErrMalformedItem        = &ProviderError{Kind: KindMalformedItem, Message: "malformed item"}
	ErrDuplicate            = &ProviderError{Kind: KindDuplicate, Message: "duplicate candidate"}
	ErrConfigurationMissing = &ProviderError{Kind: KindConfigurationMissing, Message: "integration not configured"}
	ErrCredentialRevoked    = &ProviderError{Kind: KindCredentialRevoked, Message: "credential revoked"}
)

// ProviderError carries a failure kind together with the provider that produced it
type ProviderError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	prefix := string(e.Kind)
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ProviderError of the same kind
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a ProviderError of the given kind
func New(kind Kind, provider, message string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     kind,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// NewAuthExpired creates an authorization-rejected error
func NewAuthExpired(provider string, cause error) *ProviderError {
	return &ProviderError{
		Kind:       KindAuthExpired,
		Provider:   provider,
		StatusCode: http.StatusUnauthorized,
		Message:    "access token rejected",
		Cause:      cause,
	}
}

// NewTransient creates a network or upstream failure error
func NewTransient(provider string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindTransient,
		Provider: provider,
		Message:  "provider call failed",
		Cause:    cause,
	}
}

// NewMalformedItem creates an item-level error
func NewMalformedItem(provider, itemID string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindMalformedItem,
		Provider: provider,
		Message:  fmt.Sprintf("item %s could not be read", itemID),
		Cause:    cause,
	}
}

// NewConfigurationMissing creates an error for a provider with no usable configuration
func NewConfigurationMissing(provider, what string) *ProviderError {
	return &ProviderError{
		Kind:     KindConfigurationMissing,
		Provider: provider,
		Message:  what + " not configured",
	}
}

// NewCredentialRevoked creates an error for a refresh exchange that was rejected
func NewCredentialRevoked(provider string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindCredentialRevoked,
		Provider: provider,
		Message:  "refresh token rejected",
		Cause:    cause,
	}
}

// FromStatus maps a non-2xx HTTP status to a ProviderError
func FromStatus(provider string, status int, cause error) *ProviderError {
	e := &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Cause:      cause,
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthExpired
		e.Message = "access token rejected"
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = "rate limited"
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		e.Kind = KindMalformedItem
		e.Message = fmt.Sprintf("unexpected status %d", status)
	default:
		e.Kind = KindTransient
		e.Message = fmt.Sprintf("unexpected status %d", status)
	}
	return e
}

// KindOf returns the kind of the first ProviderError in err's chain, or "" if none
func KindOf(err error) Kind {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// User-facing messages. Raw provider bodies never leave the logs.
const (
	MessageNoNewItems    = "no new items found"
	MessageNotConfigured = "integration not configured"
	MessageTemporary     = "the provider could not be reached, please try again later"
)

// UserMessage maps an error to one of the three messages shown to end users
func UserMessage(err error) string {
	switch {
	case err == nil:
		return MessageNoNewItems
	case KindOf(err) == KindConfigurationMissing:
		return MessageNotConfigured
	default:
		return MessageTemporary
	}
}
