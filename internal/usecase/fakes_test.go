package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/internal/interface/mailbox"
	memrepo "travelsync-service/internal/interface/repository"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

type fetchFunc func(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error)

// fakeMailbox serves canned items and translates them with the real mailbox translator
type fakeMailbox struct {
	mailbox.Translator
	kind entity.ProviderKind

	mu      sync.Mutex
	fetch   fetchFunc
	calls   int
	tokens  []string
	perAcct map[uint]int
}

func newFakeMailbox(kind entity.ProviderKind, fetch fetchFunc) *fakeMailbox {
	return &fakeMailbox{kind: kind, fetch: fetch, perAcct: make(map[uint]int)}
}

func (f *fakeMailbox) Kind() entity.ProviderKind { return f.kind }

func (f *fakeMailbox) FetchSince(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error) {
	f.mu.Lock()
	f.calls++
	f.perAcct[account.ID]++
	f.tokens = append(f.tokens, account.AccessToken)
	f.mu.Unlock()
	return f.fetch(ctx, account, checkpoint)
}

func (f *fakeMailbox) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCheckins returns check-in candidates as payloads
type fakeCheckins struct {
	items []provider.Item
	next  entity.Checkpoint
}

func (f *fakeCheckins) Kind() entity.ProviderKind { return entity.ProviderFoursquare }

func (f *fakeCheckins) FetchSince(context.Context, *entity.Account, entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error) {
	return f.items, f.next, nil
}

func (f *fakeCheckins) Translate(item provider.Item) provider.Translation {
	c, ok := item.Payload.(*entity.CheckinCandidate)
	if !ok {
		return provider.Skip("unexpected payload")
	}
	return provider.Translation{Checkin: c}
}

type fakeRefresher struct {
	mu    sync.Mutex
	token *provider.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(context.Context, *entity.Account) (*provider.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStatus struct {
	airline string
	status  *entity.FlightStatus
	err     error
	asked   []string
}

func (f *fakeStatus) Airline() string { return f.airline }

func (f *fakeStatus) GetStatus(_ context.Context, flightNumber string, _ time.Time) (*entity.FlightStatus, error) {
	f.asked = append(f.asked, flightNumber)
	if f.err != nil {
		return nil, f.err
	}
	s := *f.status
	return &s, nil
}

type clientMap map[entity.ProviderKind]provider.Client

func (m clientMap) Client(kind entity.ProviderKind) (provider.Client, bool) {
	c, ok := m[kind]
	return c, ok
}

type statusMap map[string]provider.StatusClient

func (m statusMap) Status(airline string) (provider.StatusClient, bool) {
	c, ok := m[airline]
	return c, ok
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

func newTestPolicy(store *memrepo.MemoryStore, refresher *fakeRefresher) *RefreshPolicy {
	return NewRefreshPolicy(refresher, store, testMetrics(), logger.NewNopLogger())
}

func newTestMaterializer(store *memrepo.MemoryStore, now time.Time) *Materializer {
	m := NewMaterializer(store, store, store, store, logger.NewNopLogger())
	m.now = func() time.Time { return now }
	return m
}

func mailAccount(userID uint, kind entity.ProviderKind) *entity.Account {
	return &entity.Account{
		UserID:       userID,
		Kind:         kind,
		Address:      "traveller@example.com",
		AccessToken:  "access-old",
		RefreshToken: "refresh-1",
		Active:       true,
		Settings: entity.UserSettings{
			UserID:                  userID,
			EmailIntegrationEnabled: true,
			AutoScanEmails:          true,
			DefaultTripVisibility:   entity.VisibilityFriends,
		},
	}
}

func mailItem(id, from, subject, body string, received time.Time) provider.Item {
	return provider.Item{
		NativeID:   id,
		ReceivedAt: received,
		Payload: &entity.MailMessage{
			MessageID:  id,
			From:       from,
			Subject:    subject,
			Body:       body,
			ReceivedAt: received,
		},
	}
}

const unitedBody = "Thanks for flying with us.\nFlight UA1234\nConfirmation: AB12CD\n" +
	"Depart SFO 3/15/2025 8:05 AM\nArrive JFK 3/15/2025 4:40 PM"

func ptrTime(t time.Time) *time.Time { return &t }
