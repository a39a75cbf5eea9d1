package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
)

// ClientLookup resolves the account-scoped client of a provider kind
type ClientLookup interface {
	Client(kind entity.ProviderKind) (provider.Client, bool)
}

// StatusLookup resolves the flight-status client of an airline key
type StatusLookup interface {
	Status(airline string) (provider.StatusClient, bool)
}

// forEachAccount runs fn for every account with at most limit running at once.
// fn reports failures through its summary; one account never stops another.
func forEachAccount(ctx context.Context, accounts []*entity.Account, limit int, fn func(context.Context, *entity.Account) entity.JobSummary) entity.JobSummary {
	if limit < 1 {
		limit = 1
	}

	var (
		mu    sync.Mutex
		total entity.JobSummary
		g     errgroup.Group
	)
	g.SetLimit(limit)

	for _, account := range accounts {
		account := account
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s := fn(ctx, account)
			mu.Lock()
			total.Add(s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return total
}

// errorKind labels an error for metrics
func errorKind(err error) string {
	if kind := apperrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
