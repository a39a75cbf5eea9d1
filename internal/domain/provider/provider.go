// Package provider defines the capability contracts implemented by every
// external mailbox, check-in and flight-status integration.
package provider

import (
	"context"
	"time"

	"travelsync-service/internal/domain/entity"
)

// Item is a provider-native record returned by FetchSince. Payload is owned by
// the provider that produced it and only that provider's Translate reads it.
type Item struct {
	NativeID   string
	ReceivedAt time.Time
	Payload    any
	// Err is set when the item was listed but could not be read. Translate turns it into a skip.
	Err error
}

// Translation is the result of translating one item. Exactly one of Flight,
// Checkin or SkipReason is set.
type Translation struct {
	Flight     *entity.FlightCandidate
	Checkin    *entity.CheckinCandidate
	SkipReason string
	Message    *entity.MailMessage
}

// Skipped reports whether the item produced no candidate
func (t Translation) Skipped() bool {
	return t.SkipReason != ""
}

// Skip builds a skipped translation
func Skip(reason string) Translation {
	return Translation{SkipReason: reason}
}

// Client is the contract of an account-scoped provider (mailbox or check-in).
//
// FetchSince must return an error matching errors.ErrAuthExpired when the access
// token is rejected, so the caller can refresh and retry exactly once. It must not
// fail the batch because of a single bad item.
type Client interface {
	Kind() entity.ProviderKind
	FetchSince(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]Item, entity.Checkpoint, error)
	Translate(item Item) Translation
}

// StatusClient answers flight-status queries for one airline
type StatusClient interface {
	Airline() string
	GetStatus(ctx context.Context, flightNumber string, date time.Time) (*entity.FlightStatus, error)
}

// TokenRefresher exchanges a refresh token for a new access token
type TokenRefresher interface {
	Refresh(ctx context.Context, account *entity.Account) (*Token, error)
}

// Token is the result of a refresh exchange
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
