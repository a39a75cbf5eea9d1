package usecase

import (
	"context"
	"fmt"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/internal/domain/repository"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

// IngestDeps are the collaborators shared by the account-based jobs
type IngestDeps struct {
	Accounts     repository.AccountRepository
	Clients      ClientLookup
	Policy       *RefreshPolicy
	Materializer *Materializer
	Messages     repository.MessageLogRepository
	RunLog       repository.RunLogRepository
	Metrics      *metrics.Metrics
	Logger       logger.Logger
	Concurrency  int
}

// IngestJob pulls new items from every eligible account, translates them and
// materializes the results. Email scan and check-in sync are both IngestJobs.
type IngestJob struct {
	IngestDeps
	name     string
	kinds    []entity.ProviderKind
	eligible func(*entity.Account) bool
	now      func() time.Time
}

// NewEmailScanJob scans the mailbox accounts of users with automatic scanning enabled
func NewEmailScanJob(name string, deps IngestDeps) *IngestJob {
	return &IngestJob{
		IngestDeps: deps,
		name:       name,
		kinds:      []entity.ProviderKind{entity.ProviderGmail, entity.ProviderOutlook},
		eligible: func(a *entity.Account) bool {
			return a.Settings.MailboxScanEnabled()
		},
		now: time.Now,
	}
}

// NewCheckinSyncJob imports check-ins of users with the check-in integration enabled
func NewCheckinSyncJob(name string, deps IngestDeps) *IngestJob {
	deps.Messages = nil
	return &IngestJob{
		IngestDeps: deps,
		name:       name,
		kinds:      []entity.ProviderKind{entity.ProviderFoursquare},
		eligible: func(a *entity.Account) bool {
			return a.Settings.CheckinIntegrationEnabled
		},
		now: time.Now,
	}
}

// Name returns the job name
func (j *IngestJob) Name() string {
	return j.name
}

// Run processes all eligible accounts. Account failures are recorded in the
// run log and the summary; only a failure to list accounts fails the job.
func (j *IngestJob) Run(ctx context.Context) (entity.JobSummary, error) {
	accounts, err := j.Accounts.ListActive(ctx, j.kinds...)
	if err != nil {
		return entity.JobSummary{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	eligible := accounts[:0]
	for _, a := range accounts {
		if j.eligible(a) {
			eligible = append(eligible, a)
		}
	}
	j.Logger.Info("Starting job", "job", j.name, "accounts", len(eligible))

	summary := forEachAccount(ctx, eligible, j.Concurrency, j.runAccount)
	j.Metrics.ObserveItems(j.name, summary.Processed, summary.Created)

	j.Logger.Info("Job finished",
		"job", j.name,
		"accounts", summary.Accounts,
		"failed", summary.AccountsFailed,
		"processed", summary.Processed,
		"created", summary.Created,
		"skipped", summary.Skipped,
		"errored", summary.Errored)
	return summary, nil
}

func (j *IngestJob) runAccount(ctx context.Context, account *entity.Account) entity.JobSummary {
	started := j.now()
	log := j.Logger.With("job", j.name, "accountID", account.ID, "provider", account.Kind)

	summary, err := j.scanAccount(ctx, account, log)
	summary.Accounts = 1
	if err != nil {
		summary.AccountsFailed = 1
		j.Metrics.ObserveProviderError(string(account.Kind), errorKind(err))
		log.Warn("Account scan failed", "error", err, "userMessage", apperrors.UserMessage(err))
	} else if summary.Processed == 0 {
		log.Debug(apperrors.MessageNoNewItems)
	}

	accountID := account.ID
	entry := entity.NewRunLogEntry(j.name, &accountID, started, j.now(), summary, err)
	if appendErr := j.RunLog.Append(ctx, entry); appendErr != nil {
		log.Error("Failed to write run log", "error", appendErr)
	}
	return summary
}

func (j *IngestJob) scanAccount(ctx context.Context, account *entity.Account, log logger.Logger) (entity.JobSummary, error) {
	var summary entity.JobSummary

	client, ok := j.Clients.Client(account.Kind)
	if !ok {
		return summary, apperrors.NewConfigurationMissing(string(account.Kind), "provider client")
	}

	checkpoint := account.Checkpoint()
	var (
		items []provider.Item
		next  entity.Checkpoint
	)
	err := j.Policy.Do(ctx, account, func(ctx context.Context) error {
		var err error
		items, next, err = client.FetchSince(ctx, account, checkpoint)
		return err
	})
	if err != nil {
		return summary, err
	}

	next = checkpoint.Max(next)
	scanned := j.alreadyScanned(ctx, account, items, log)
	for _, item := range items {
		summary.Processed++
		if scanned[item.NativeID] {
			summary.Skipped++
			continue
		}
		if retry := j.handleItem(ctx, client, account, item, &summary, log); retry {
			next = holdBefore(checkpoint, next, item)
		}
	}

	if err := j.Accounts.AdvanceCheckpoint(ctx, account.ID, next); err != nil {
		return summary, fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return summary, nil
}

// handleItem translates and materializes one item. Nothing it does fails the
// account. It reports whether the item must be read again on a later firing;
// such items are left out of the message log.
func (j *IngestJob) handleItem(ctx context.Context, client provider.Client, account *entity.Account, item provider.Item, summary *entity.JobSummary, log logger.Logger) bool {
	if retryable(item.Err) {
		summary.Errored++
		log.Warn("Item unreadable, retrying next firing", "item", item.NativeID, "error", item.Err)
		return true
	}

	tr := client.Translate(item)

	var (
		res Result
		err error
	)
	switch {
	case tr.Skipped():
		outcome := entity.OutcomeSkipped
		if item.Err != nil {
			outcome = entity.OutcomeFailed
			summary.Errored++
		} else {
			summary.Skipped++
		}
		log.Debug("Item skipped", "item", item.NativeID, "reason", tr.SkipReason)
		j.record(ctx, account, item, tr, outcome, tr.SkipReason, log)
		return false
	case tr.Flight != nil:
		res, err = j.Materializer.MaterializeFlight(ctx, tr.Flight, account)
	case tr.Checkin != nil:
		res, err = j.Materializer.MaterializeCheckin(ctx, tr.Checkin, account)
	default:
		summary.Skipped++
		return false
	}

	if err != nil {
		summary.Errored++
		log.Error("Failed to materialize item", "item", item.NativeID, "error", err)
		return true
	}

	switch res.Outcome {
	case OutcomeCreated:
		summary.Created++
		j.record(ctx, account, item, tr, entity.OutcomeCreated, "", log)
	case OutcomeDuplicateSkipped:
		summary.Skipped++
		j.record(ctx, account, item, tr, entity.OutcomeDuplicate, "", log)
	default:
		summary.Skipped++
		log.Debug("Item rejected", "item", item.NativeID, "reason", res.Reason)
		j.record(ctx, account, item, tr, entity.OutcomeSkipped, res.Reason, log)
	}
	return false
}

// retryable reports whether an item error is worth another attempt
func retryable(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindTransient, apperrors.KindRateLimited:
		return true
	}
	return false
}

// holdBefore keeps next below an item that has to be read again. Items without
// a timestamp hold the checkpoint where it was.
func holdBefore(checkpoint, next entity.Checkpoint, item provider.Item) entity.Checkpoint {
	if item.ReceivedAt.IsZero() {
		return checkpoint
	}
	if at := item.ReceivedAt.Add(-time.Nanosecond); at.Before(next.At) {
		next = entity.Checkpoint{At: at}
	}
	return checkpoint.Max(next)
}

func (j *IngestJob) alreadyScanned(ctx context.Context, account *entity.Account, items []provider.Item, log logger.Logger) map[string]bool {
	if j.Messages == nil || len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.NativeID)
	}
	scanned, err := j.Messages.FindScanned(ctx, account.ID, ids)
	if err != nil {
		log.Warn("Failed to read message log, processing all items", "error", err)
		return nil
	}
	return scanned
}

func (j *IngestJob) record(ctx context.Context, account *entity.Account, item provider.Item, tr provider.Translation, outcome, reason string, log logger.Logger) {
	if j.Messages == nil {
		return
	}
	msg := &entity.ScannedMessage{
		AccountID:  account.ID,
		MessageID:  item.NativeID,
		ReceivedAt: item.ReceivedAt,
		ScannedAt:  j.now().UTC(),
		Outcome:    outcome,
		Reason:     reason,
	}
	if tr.Message != nil {
		msg.Subject = tr.Message.Subject
		msg.From = tr.Message.From
	}
	if tr.Flight != nil {
		msg.FlightCode = tr.Flight.ConfirmationCode
	}
	if err := j.Messages.Record(ctx, msg); err != nil {
		log.Warn("Failed to record scanned message", "item", item.NativeID, "error", err)
	}
}
