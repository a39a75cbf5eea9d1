package repository

import (
	"context"
	"errors"
	"time"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
)

// ErrDuplicate is returned when a write violates a natural-key uniqueness
// constraint. It is a duplicate_candidate in the failure taxonomy.
var ErrDuplicate = apperrors.New(apperrors.KindDuplicate, "", "duplicate record", nil)

// TripRepository holds the trip, flight and check-in writes of the ingestion core
type TripRepository interface {
	FindFlightByConfirmation(ctx context.Context, confirmation string) (*entity.Flight, error)
	// CreateTripWithFlight writes both records atomically and fills in their ids
	CreateTripWithFlight(ctx context.Context, trip *entity.Trip, flight *entity.Flight) error
	// UpcomingFlights returns flights departing in [from, to] whose status is not cancelled
	UpcomingFlights(ctx context.Context, from, to time.Time) ([]*entity.Flight, error)
	UpdateFlightStatus(ctx context.Context, flight *entity.Flight) error
	// FindTripCovering returns the user's earliest trip whose date range contains at
	FindTripCovering(ctx context.Context, userID uint, at time.Time) (*entity.Trip, error)
}

// CheckinRepository stores append-only check-ins
type CheckinRepository interface {
	ExistsByNativeID(ctx context.Context, nativeID string) (bool, error)
	Create(ctx context.Context, checkin *entity.Checkin) error
}

// ShareRepository is used by the share-cleanup job
type ShareRepository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// IsDuplicate reports whether err signals a uniqueness violation
func IsDuplicate(err error) bool {
	return errors.Is(err, apperrors.ErrDuplicate)
}
