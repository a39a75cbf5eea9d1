package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// MemoryStore is an in-process implementation of every repository, used when
// no database is configured and by tests. It enforces the same uniqueness rules
// as the Postgres schema and the Mongo indexes.
type MemoryStore struct {
	mu sync.RWMutex

	accounts  map[uint]*entity.Account
	trips     map[uint]*entity.Trip
	flights   map[uint]*entity.Flight
	checkins  map[uint]*entity.Checkin
	shares    map[uint]*entity.TripShare
	airlines  map[string]*entity.Airline
	timezones map[string]*entity.Timezone
	runLogs   []*entity.RunLogEntry
	scanned   map[scannedKey]*entity.ScannedMessage

	nextID uint
}

type scannedKey struct {
	accountID uint
	messageID string
}

var (
	_ repository.AccountRepository    = (*MemoryStore)(nil)
	_ repository.TripRepository       = (*MemoryStore)(nil)
	_ repository.CheckinRepository    = (*MemoryStore)(nil)
	_ repository.ShareRepository      = (*MemoryStore)(nil)
	_ repository.AirlineRepository    = (*MemoryStore)(nil)
	_ repository.TimezoneRepository   = (*MemoryStore)(nil)
	_ repository.RunLogRepository     = (*MemoryStore)(nil)
	_ repository.MessageLogRepository = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[uint]*entity.Account),
		trips:     make(map[uint]*entity.Trip),
		flights:   make(map[uint]*entity.Flight),
		checkins:  make(map[uint]*entity.Checkin),
		shares:    make(map[uint]*entity.TripShare),
		airlines:  make(map[string]*entity.Airline),
		timezones: make(map[string]*entity.Timezone),
		scanned:   make(map[scannedKey]*entity.ScannedMessage),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// AddAccount stores an account, assigning an id when unset
func (s *MemoryStore) AddAccount(a *entity.Account) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return a
}

// Account returns a copy of the stored account
func (s *MemoryStore) Account(id uint) (*entity.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// AddTrip stores a trip, assigning an id when unset
func (s *MemoryStore) AddTrip(t *entity.Trip) *entity.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	cp := *t
	s.trips[t.ID] = &cp
	return t
}

// AddFlight stores a flight, assigning an id when unset
func (s *MemoryStore) AddFlight(f *entity.Flight) *entity.Flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.id()
	}
	cp := *f
	s.flights[f.ID] = &cp
	return f
}

// AddShare stores a trip share
func (s *MemoryStore) AddShare(sh *entity.TripShare) *entity.TripShare {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.ID == 0 {
		sh.ID = s.id()
	}
	cp := *sh
	s.shares[sh.ID] = &cp
	return sh
}

// AddAirline stores an airline reference row
func (s *MemoryStore) AddAirline(a *entity.Airline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airlines[strings.ToUpper(a.Code)] = a
}

// AddTimezone stores an airport time zone reference row
func (s *MemoryStore) AddTimezone(tz *entity.Timezone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezones[strings.ToUpper(tz.AirportCode)] = tz
}

// Trips returns copies of all trips ordered by id
func (s *MemoryStore) Trips() []*entity.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Trip, 0, len(s.trips))
	for _, t := range s.trips {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flights returns copies of all flights ordered by id
func (s *MemoryStore) Flights() []*entity.Flight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Flight, 0, len(s.flights))
	for _, f := range s.flights {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Checkins returns copies of all check-ins ordered by id
func (s *MemoryStore) Checkins() []*entity.Checkin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Checkin, 0, len(s.checkins))
	for _, c := range s.checkins {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shares returns the number of stored shares
func (s *MemoryStore) Shares() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shares)
}

// RunLogs returns all run log entries in insertion order
func (s *MemoryStore) RunLogs() []*entity.RunLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.RunLogEntry, len(s.runLogs))
	copy(out, s.runLogs)
	return out
}

// ScannedMessages returns the recorded outcomes of an account
func (s *MemoryStore) ScannedMessages(accountID uint) []*entity.ScannedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.ScannedMessage
	for k, m := range s.scanned {
		if k.accountID == accountID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// ListActive implements repository.AccountRepository
func (s *MemoryStore) ListActive(_ context.Context, kinds ...entity.ProviderKind) ([]*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Account
	for _, a := range s.accounts {
		if !a.Active {
			continue
		}
		if len(kinds) > 0 && !containsKind(kinds, a.Kind) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsKind(kinds []entity.ProviderKind, k entity.ProviderKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// UpdateTokens implements repository.AccountRepository
func (s *MemoryStore) UpdateTokens(_ context.Context, accountID uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.AccessToken = accessToken
	if refreshToken != "" {
		a.RefreshToken = refreshToken
	}
	a.ExpiresAt = expiresAt
	return nil
}

// Deactivate implements repository.AccountRepository
func (s *MemoryStore) Deactivate(_ context.Context, accountID uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Active = false
	a.DeactivatedReason = reason
	return nil
}

// AdvanceCheckpoint implements repository.AccountRepository
func (s *MemoryStore) AdvanceCheckpoint(_ context.Context, accountID uint, checkpoint entity.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	if checkpoint.IsZero() {
		return nil
	}
	if a.LastScan == nil || a.LastScan.Before(checkpoint.At) {
		at := checkpoint.At
		a.LastScan = &at
	}
	return nil
}

// FindFlightByConfirmation implements repository.TripRepository
func (s *MemoryStore) FindFlightByConfirmation(_ context.Context, confirmation string) (*entity.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.flightByConfirmation(confirmation); f != nil {
		cp := *f
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *MemoryStore) flightByConfirmation(confirmation string) *entity.Flight {
	if confirmation == "" {
		return nil
	}
	for _, f := range s.flights {
		if f.ConfirmationNumber == confirmation {
			return f
		}
	}
	return nil
}

// CreateTripWithFlight implements repository.TripRepository
func (s *MemoryStore) CreateTripWithFlight(_ context.Context, trip *entity.Trip, flight *entity.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flightByConfirmation(flight.ConfirmationNumber) != nil {
		return repository.ErrDuplicate
	}

	now := time.Now().UTC()
	trip.ID, trip.CreatedAt, trip.UpdatedAt = s.id(), now, now
	flight.ID, flight.TripID, flight.CreatedAt, flight.UpdatedAt = s.id(), trip.ID, now, now

	t, f := *trip, *flight
	s.trips[t.ID] = &t
	s.flights[f.ID] = &f
	return nil
}

// UpcomingFlights implements repository.TripRepository
func (s *MemoryStore) UpcomingFlights(_ context.Context, from, to time.Time) ([]*entity.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Flight
	for _, f := range s.flights {
		if f.DepartureTime == nil || f.DepartureTime.Before(from) || f.DepartureTime.After(to) {
			continue
		}
		if f.Status == entity.FlightStatusCancelled {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureTime.Equal(*out[j].DepartureTime) {
			return out[i].DepartureTime.Before(*out[j].DepartureTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateFlightStatus implements repository.TripRepository
func (s *MemoryStore) UpdateFlightStatus(_ context.Context, flight *entity.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[flight.ID]
	if !ok {
		return repository.ErrNotFound
	}
	f.Status = flight.Status
	f.DepartureGate = flight.DepartureGate
	f.DepartureTerminal = flight.DepartureTerminal
	f.LastAPIUpdate = flight.LastAPIUpdate
	return nil
}

// FindTripCovering implements repository.TripRepository
func (s *MemoryStore) FindTripCovering(_ context.Context, userID uint, at time.Time) (*entity.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *entity.Trip
	for _, t := range s.trips {
		if t.UserID != userID || !t.Covers(at) {
			continue
		}
		if best == nil || t.StartDate.Before(best.StartDate) || (t.StartDate.Equal(best.StartDate) && t.ID < best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// ExistsByNativeID implements repository.CheckinRepository
func (s *MemoryStore) ExistsByNativeID(_ context.Context, nativeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkinByNativeID(nativeID) != nil, nil
}

func (s *MemoryStore) checkinByNativeID(nativeID string) *entity.Checkin {
	for _, c := range s.checkins {
		if c.NativeID == nativeID {
			return c
		}
	}
	return nil
}

// Create implements repository.CheckinRepository
func (s *MemoryStore) Create(_ context.Context, checkin *entity.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkinByNativeID(checkin.NativeID) != nil {
		return repository.ErrDuplicate
	}
	checkin.ID, checkin.CreatedAt = s.id(), time.Now().UTC()
	cp := *checkin
	s.checkins[cp.ID] = &cp
	return nil
}

// DeleteExpired implements repository.ShareRepository
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, sh := range s.shares {
		if sh.ExpiresAt != nil && sh.ExpiresAt.Before(now) {
			delete(s.shares, id)
			deleted++
		}
	}
	return deleted, nil
}

// GetByCode implements repository.AirlineRepository
func (s *MemoryStore) GetByCode(_ context.Context, code string) (*entity.Airline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.airlines[strings.ToUpper(code)]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

// GetByAirportCode implements repository.TimezoneRepository
func (s *MemoryStore) GetByAirportCode(_ context.Context, code string) (*entity.Timezone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tz, ok := s.timezones[strings.ToUpper(code)]; ok {
		return tz, nil
	}
	return nil, repository.ErrNotFound
}

// Append implements repository.RunLogRepository
func (s *MemoryStore) Append(_ context.Context, entry *entity.RunLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	cp := *entry
	s.runLogs = append(s.runLogs, &cp)
	return nil
}

// Recent implements repository.RunLogRepository
func (s *MemoryStore) Recent(_ context.Context, jobName string, limit int) ([]*entity.RunLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.RunLogEntry
	for i := len(s.runLogs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if jobName == "" || s.runLogs[i].JobName == jobName {
			cp := *s.runLogs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Record implements repository.MessageLogRepository
func (s *MemoryStore) Record(_ context.Context, msg *entity.ScannedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scannedKey{accountID: msg.AccountID, messageID: msg.MessageID}
	if _, exists := s.scanned[key]; exists {
		return nil
	}
	if msg.ScannedAt.IsZero() {
		msg.ScannedAt = time.Now().UTC()
	}
	cp := *msg
	s.scanned[key] = &cp
	return nil
}

// FindScanned implements repository.MessageLogRepository
func (s *MemoryStore) FindScanned(_ context.Context, accountID uint, messageIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]bool)
	for _, id := range messageIDs {
		if _, ok := s.scanned[scannedKey{accountID: accountID, messageID: id}]; ok {
			result[id] = true
		}
	}
	return result, nil
}
