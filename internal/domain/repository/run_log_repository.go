package repository

import (
	"context"

	"travelsync-service/internal/domain/entity"
)

// RunLogRepository is the append-only job execution history
type RunLogRepository interface {
	Append(ctx context.Context, entry *entity.RunLogEntry) error
	Recent(ctx context.Context, jobName string, limit int) ([]*entity.RunLogEntry, error)
}

// MessageLogRepository tracks which mailbox messages were already scanned
type MessageLogRepository interface {
	Record(ctx context.Context, msg *entity.ScannedMessage) error
	// FindScanned returns the subset of messageIDs already recorded for the account
	FindScanned(ctx context.Context, accountID uint, messageIDs []string) (map[string]bool, error)
}
