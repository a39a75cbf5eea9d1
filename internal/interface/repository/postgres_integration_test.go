package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/internal/infrastructure/persistence"
)

// openTestPostgres migrates and opens the database named by TEST_POSTGRES_DSN
func openTestPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	require.NoError(t, persistence.RunMigrations(dsn))
	db, err := persistence.NewPostgresDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestGormTripRepository_DuplicateConfirmation(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo := NewGormTripRepository(db)

	code := uuid.NewString()[:6]
	dep := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	trip := &entity.Trip{UserID: 1, Title: "SFO to JFK", StartDate: dep, EndDate: dep.Add(6 * time.Hour), Visibility: entity.VisibilityPrivate}
	flight := &entity.Flight{Airline: "United Airlines", FlightNumber: "UA123", ConfirmationNumber: code, DepartureAirport: "SFO", ArrivalAirport: "JFK", DepartureTime: &dep}

	require.NoError(t, repo.CreateTripWithFlight(ctx, trip, flight))
	assert.NotZero(t, trip.ID)
	assert.Equal(t, trip.ID, flight.TripID)

	again := &entity.Flight{Airline: "United Airlines", FlightNumber: "UA123", ConfirmationNumber: code, DepartureAirport: "SFO", ArrivalAirport: "JFK"}
	err := repo.CreateTripWithFlight(ctx, &entity.Trip{UserID: 2, Title: "SFO to JFK", StartDate: dep, EndDate: dep, Visibility: entity.VisibilityPrivate}, again)
	assert.True(t, repository.IsDuplicate(err), "got %v", err)

	found, err := repo.FindFlightByConfirmation(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, flight.ID, found.ID)

	// the losing transaction must not leave an orphan trip behind
	var trips int64
	require.NoError(t, db.Model(&TripModel{}).Where("user_id = ? AND start_date = ?", 2, dep).Count(&trips).Error)
	assert.Zero(t, trips)
}

func TestGormAccountRepository_Checkpoint(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo := NewGormAccountRepository(db)

	row := ProviderAccount{UserID: 42, ProviderKind: string(entity.ProviderOutlook), Address: uuid.NewString() + "@example.com", IsActive: true}
	require.NoError(t, db.Create(&row).Error)
	t.Cleanup(func() { db.Delete(&ProviderAccount{}, row.ID) })

	later := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AdvanceCheckpoint(ctx, row.ID, entity.Checkpoint{At: later}))
	require.NoError(t, repo.AdvanceCheckpoint(ctx, row.ID, entity.Checkpoint{At: later.Add(-time.Hour)}))

	accounts, err := repo.ListActive(ctx, entity.ProviderOutlook)
	require.NoError(t, err)
	var got *entity.Account
	for _, a := range accounts {
		if a.ID == row.ID {
			got = a
		}
	}
	require.NotNil(t, got)
	require.NotNil(t, got.LastScan)
	assert.True(t, got.LastScan.Equal(later))
	assert.True(t, got.Settings.AutoScanEmails)

	require.NoError(t, repo.Deactivate(ctx, row.ID, "invalid_grant"))
	accounts, err = repo.ListActive(ctx, entity.ProviderOutlook)
	require.NoError(t, err)
	for _, a := range accounts {
		assert.NotEqual(t, row.ID, a.ID)
	}
}

func TestGormReferenceRepositories(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()

	airlines := NewGormAirlineRepository(db)
	airline, err := airlines.GetByCode(ctx, "ua")
	require.NoError(t, err)
	assert.Equal(t, "United Airlines", airline.Name)

	// cached lookups, including misses
	again, err := airlines.GetByCode(ctx, "UA")
	require.NoError(t, err)
	assert.Equal(t, airline.ID, again.ID)
	_, err = airlines.GetByCode(ctx, "ZZ")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = airlines.GetByCode(ctx, "ZZ")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = NewGormTimezoneRepository(db).GetByAirportCode(ctx, "QQQQ")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
