package usecase

import (
	"context"
	"fmt"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/pkg/logger"
)

// ShareCleanupJob deletes trip shares whose expiry has passed
type ShareCleanupJob struct {
	shares repository.ShareRepository
	logger logger.Logger
	now    func() time.Time
}

// NewShareCleanupJob creates the job
func NewShareCleanupJob(shares repository.ShareRepository, logger logger.Logger) *ShareCleanupJob {
	return &ShareCleanupJob{shares: shares, logger: logger, now: time.Now}
}

// Run deletes expired shares. Shares without an expiry are kept.
func (j *ShareCleanupJob) Run(ctx context.Context) (entity.JobSummary, error) {
	deleted, err := j.shares.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return entity.JobSummary{}, fmt.Errorf("failed to delete expired shares: %w", err)
	}
	j.logger.Info("Expired shares deleted", "count", deleted)
	return entity.JobSummary{Processed: deleted, Updated: deleted}, nil
}
