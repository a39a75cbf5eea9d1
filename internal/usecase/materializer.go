package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/parser"
)

// Outcome of materializing one candidate
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeDuplicateSkipped Outcome = "duplicate_skipped"
	OutcomeRejected         Outcome = "rejected"
)

// ReasonNoCoveringTrip is reported when a check-in falls outside every trip of its owner
const ReasonNoCoveringTrip = "no trip covers check-in time"

// Result describes what MaterializeFlight or MaterializeCheckin did
type Result struct {
	Outcome  Outcome
	Reason   string
	TripID   uint
	RecordID uint
}

// Materializer turns candidates into trips, flights and check-ins. Writing the
// same candidate twice leaves the store as after the first write.
type Materializer struct {
	trips        repository.TripRepository
	checkins     repository.CheckinRepository
	airlineRepo  repository.AirlineRepository
	timezoneRepo repository.TimezoneRepository
	logger       logger.Logger
	now          func() time.Time
}

// NewMaterializer creates a materializer. airlineRepo and timezoneRepo may be nil.
func NewMaterializer(
	trips repository.TripRepository,
	checkins repository.CheckinRepository,
	airlineRepo repository.AirlineRepository,
	timezoneRepo repository.TimezoneRepository,
	logger logger.Logger,
) *Materializer {
	return &Materializer{
		trips:        trips,
		checkins:     checkins,
		airlineRepo:  airlineRepo,
		timezoneRepo: timezoneRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// MaterializeFlight creates a trip and its flight for the account owner unless
// a flight with the same confirmation number already exists.
func (m *Materializer) MaterializeFlight(ctx context.Context, c *entity.FlightCandidate, account *entity.Account) (Result, error) {
	if missing := c.Missing(); missing != "" {
		return Result{Outcome: OutcomeRejected, Reason: "missing " + missing}, nil
	}

	if c.ConfirmationCode != "" {
		existing, err := m.trips.FindFlightByConfirmation(ctx, c.ConfirmationCode)
		switch {
		case err == nil:
			return Result{Outcome: OutcomeDuplicateSkipped, TripID: existing.TripID, RecordID: existing.ID}, nil
		case !errors.Is(err, repository.ErrNotFound):
			return Result{}, fmt.Errorf("failed to look up confirmation %s: %w", c.ConfirmationCode, err)
		}
	}

	departure := m.localize(ctx, c.DepartureTime, c.DepartureAirport)
	arrival := m.localize(ctx, c.ArrivalTime, c.ArrivalAirport)

	start := m.now().UTC()
	if departure != nil {
		start = *departure
	}
	end := start.Add(24 * time.Hour)
	if arrival != nil && !arrival.Before(start) {
		end = *arrival
	}

	trip := &entity.Trip{
		UserID:             account.UserID,
		Title:              entity.TripTitle(c.DepartureAirport, c.ArrivalAirport),
		Destination:        c.ArrivalAirport,
		StartDate:          start,
		EndDate:            end,
		Visibility:         account.Settings.Visibility(),
		ConfirmationNumber: c.ConfirmationCode,
		AutoDetected:       true,
		EmailSource:        c.SourceID,
	}
	flight := &entity.Flight{
		Airline:            m.airlineName(ctx, c),
		FlightNumber:       c.FlightNumber,
		ConfirmationNumber: c.ConfirmationCode,
		DepartureAirport:   c.DepartureAirport,
		ArrivalAirport:     c.ArrivalAirport,
		DepartureTime:      departure,
		ArrivalTime:        arrival,
		Status:             entity.FlightStatusScheduled,
	}

	if err := m.trips.CreateTripWithFlight(ctx, trip, flight); err != nil {
		if repository.IsDuplicate(err) {
			return Result{Outcome: OutcomeDuplicateSkipped}, nil
		}
		return Result{}, fmt.Errorf("failed to create trip for %s: %w", c.FlightNumber, err)
	}

	m.logger.Info("Trip created from flight",
		"tripID", trip.ID,
		"flight", flight.FlightNumber,
		"confirmation", flight.ConfirmationNumber,
		"userID", account.UserID)
	return Result{Outcome: OutcomeCreated, TripID: trip.ID, RecordID: flight.ID}, nil
}

// MaterializeCheckin attaches a check-in to the owner's trip covering its time
func (m *Materializer) MaterializeCheckin(ctx context.Context, c *entity.CheckinCandidate, account *entity.Account) (Result, error) {
	exists, err := m.checkins.ExistsByNativeID(ctx, c.NativeID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up check-in %s: %w", c.NativeID, err)
	}
	if exists {
		return Result{Outcome: OutcomeDuplicateSkipped}, nil
	}

	trip, err := m.trips.FindTripCovering(ctx, account.UserID, c.CheckinTime)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{Outcome: OutcomeRejected, Reason: ReasonNoCoveringTrip}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to find trip for check-in %s: %w", c.NativeID, err)
	}

	checkin := &entity.Checkin{
		TripID:        trip.ID,
		UserID:        account.UserID,
		NativeID:      c.NativeID,
		VenueName:     c.VenueName,
		VenueCategory: c.VenueCategory,
		VenueAddress:  c.VenueAddress,
		Latitude:      c.Latitude,
		Longitude:     c.Longitude,
		CheckinTime:   c.CheckinTime,
		Shout:         c.Shout,
		PhotoURL:      c.PhotoURL,
	}
	if err := m.checkins.Create(ctx, checkin); err != nil {
		if repository.IsDuplicate(err) {
			return Result{Outcome: OutcomeDuplicateSkipped}, nil
		}
		return Result{}, fmt.Errorf("failed to create check-in %s: %w", c.NativeID, err)
	}
	return Result{Outcome: OutcomeCreated, TripID: trip.ID, RecordID: checkin.ID}, nil
}

// airlineName resolves the display name by the flight-number prefix, falling back
// to the detected carrier key.
func (m *Materializer) airlineName(ctx context.Context, c *entity.FlightCandidate) string {
	code := c.AirlineCode
	if code == "" {
		code = parser.CarrierCode(c.FlightNumber)
	}
	if m.airlineRepo != nil && code != "" {
		airline, err := m.airlineRepo.GetByCode(ctx, code)
		if err == nil {
			return airline.Name
		}
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("Failed to get airline", "code", code, "error", err)
		}
	}
	return c.Airline
}

// localize reads a wall-clock time extracted from an email in the airport's zone.
// Without a known zone the time stays as UTC wall-clock.
func (m *Materializer) localize(ctx context.Context, t *time.Time, airport string) *time.Time {
	if t == nil {
		return nil
	}
	if m.timezoneRepo == nil {
		return t
	}
	tz, err := m.timezoneRepo.GetByAirportCode(ctx, airport)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("Failed to get airport timezone", "code", airport, "error", err)
		}
		return t
	}
	loc, err := tz.Location()
	if err != nil {
		m.logger.Warn("Error loading airport location", "code", airport, "tz", tz.TzName, "error", err)
		return t
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC()
	return &local
}
