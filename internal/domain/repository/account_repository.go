package repository

import (
	"context"
	"errors"
	"time"

	"travelsync-service/internal/domain/entity"
)

// ErrNotFound is returned by lookups that match nothing
var ErrNotFound = errors.New("record not found")

// AccountRepository is the credential store accessor
type AccountRepository interface {
	// ListActive returns active accounts of the given kinds with their owner settings loaded
	ListActive(ctx context.Context, kinds ...entity.ProviderKind) ([]*entity.Account, error)
	// UpdateTokens persists a refreshed credential. An empty refresh token keeps the stored one.
	UpdateTokens(ctx context.Context, accountID uint, accessToken, refreshToken string, expiresAt *time.Time) error
	// Deactivate flags the credential inactive after an irrecoverable auth failure
	Deactivate(ctx context.Context, accountID uint, reason string) error
	// AdvanceCheckpoint moves last_scan forward; it never moves it backwards
	AdvanceCheckpoint(ctx context.Context, accountID uint, checkpoint entity.Checkpoint) error
}
