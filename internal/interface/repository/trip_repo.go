package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// GormTripRepository implements the TripRepository interface
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GORM trip repository
func NewGormTripRepository(db *gorm.DB) repository.TripRepository {
	return &GormTripRepository{
		db: db,
	}
}

// TripModel GORM model for database mapping
type TripModel struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"column:user_id"`
	Title              string    `gorm:"column:title"`
	Destination        string    `gorm:"column:destination"`
	StartDate          time.Time `gorm:"column:start_date"`
	EndDate            time.Time `gorm:"column:end_date"`
	Visibility         string    `gorm:"column:visibility"`
	ConfirmationNumber *string   `gorm:"column:confirmation_number"`
	AutoDetected       bool      `gorm:"column:auto_detected"`
	EmailSource        *string   `gorm:"column:email_source"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName overrides the default table name
func (TripModel) TableName() string {
	return "trips"
}

// FlightModel GORM model for database mapping
type FlightModel struct {
	ID                 uint       `gorm:"primaryKey"`
	TripID             uint       `gorm:"column:trip_id"`
	Airline            string     `gorm:"column:airline"`
	FlightNumber       string     `gorm:"column:flight_number"`
	ConfirmationNumber *string    `gorm:"column:confirmation_number"`
	DepartureAirport   string     `gorm:"column:departure_airport"`
	ArrivalAirport     string     `gorm:"column:arrival_airport"`
	DepartureTime      *time.Time `gorm:"column:departure_time"`
	ArrivalTime        *time.Time `gorm:"column:arrival_time"`
	DepartureTerminal  *string    `gorm:"column:departure_terminal"`
	DepartureGate      *string    `gorm:"column:departure_gate"`
	Status             *string    `gorm:"column:status"`
	LastAPIUpdate      *time.Time `gorm:"column:last_api_update"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName overrides the default table name
func (FlightModel) TableName() string {
	return "flights"
}

// FindFlightByConfirmation finds a flight by its confirmation number
func (r *GormTripRepository) FindFlightByConfirmation(ctx context.Context, confirmation string) (*entity.Flight, error) {
	var flight FlightModel
	result := r.db.WithContext(ctx).Where("confirmation_number = ?", confirmation).First(&flight)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return flight.toEntity(), nil
}

// CreateTripWithFlight writes the trip and its flight in one transaction
func (r *GormTripRepository) CreateTripWithFlight(ctx context.Context, trip *entity.Trip, flight *entity.Flight) error {
	tripRow := tripFromEntity(trip)
	flightRow := flightFromEntity(flight)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tripRow).Error; err != nil {
			return err
		}
		flightRow.TripID = tripRow.ID
		return tx.Create(&flightRow).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return err
	}

	trip.ID, trip.CreatedAt, trip.UpdatedAt = tripRow.ID, tripRow.CreatedAt, tripRow.UpdatedAt
	flight.ID, flight.TripID, flight.CreatedAt, flight.UpdatedAt = flightRow.ID, tripRow.ID, flightRow.CreatedAt, flightRow.UpdatedAt
	return nil
}

// UpcomingFlights returns flights departing in [from, to] that are not cancelled
func (r *GormTripRepository) UpcomingFlights(ctx context.Context, from, to time.Time) ([]*entity.Flight, error) {
	var rows []FlightModel
	err := r.db.WithContext(ctx).
		Where("departure_time BETWEEN ? AND ?", from, to).
		Where("status IS NULL OR status <> ?", entity.FlightStatusCancelled).
		Order("departure_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	flights := make([]*entity.Flight, 0, len(rows))
	for _, row := range rows {
		flights = append(flights, row.toEntity())
	}
	return flights, nil
}

// UpdateFlightStatus writes the status fields of a flight
func (r *GormTripRepository) UpdateFlightStatus(ctx context.Context, flight *entity.Flight) error {
	return r.db.WithContext(ctx).Model(&FlightModel{}).Where("id = ?", flight.ID).Updates(map[string]interface{}{
		"status":             nullable(flight.Status),
		"departure_gate":     nullable(flight.DepartureGate),
		"departure_terminal": nullable(flight.DepartureTerminal),
		"last_api_update":    flight.LastAPIUpdate,
		"updated_at":         time.Now().UTC(),
	}).Error
}

// FindTripCovering returns the user's earliest trip whose range contains at
func (r *GormTripRepository) FindTripCovering(ctx context.Context, userID uint, at time.Time) (*entity.Trip, error) {
	var trip TripModel
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND start_date <= ? AND end_date >= ?", userID, at, at).
		Order("start_date, id").
		First(&trip)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return trip.toEntity(), nil
}

func tripFromEntity(t *entity.Trip) TripModel {
	return TripModel{
		UserID:             t.UserID,
		Title:              t.Title,
		Destination:        t.Destination,
		StartDate:          t.StartDate,
		EndDate:            t.EndDate,
		Visibility:         string(t.Visibility),
		ConfirmationNumber: nullable(t.ConfirmationNumber),
		AutoDetected:       t.AutoDetected,
		EmailSource:        nullable(t.EmailSource),
	}
}

func (m TripModel) toEntity() *entity.Trip {
	return &entity.Trip{
		ID:                 m.ID,
		UserID:             m.UserID,
		Title:              m.Title,
		Destination:        m.Destination,
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		Visibility:         entity.Visibility(m.Visibility),
		ConfirmationNumber: deref(m.ConfirmationNumber),
		AutoDetected:       m.AutoDetected,
		EmailSource:        deref(m.EmailSource),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func flightFromEntity(f *entity.Flight) FlightModel {
	return FlightModel{
		TripID:             f.TripID,
		Airline:            f.Airline,
		FlightNumber:       f.FlightNumber,
		ConfirmationNumber: nullable(f.ConfirmationNumber),
		DepartureAirport:   f.DepartureAirport,
		ArrivalAirport:     f.ArrivalAirport,
		DepartureTime:      f.DepartureTime,
		ArrivalTime:        f.ArrivalTime,
		DepartureTerminal:  nullable(f.DepartureTerminal),
		DepartureGate:      nullable(f.DepartureGate),
		Status:             nullable(f.Status),
		LastAPIUpdate:      f.LastAPIUpdate,
	}
}

func (m FlightModel) toEntity() *entity.Flight {
	return &entity.Flight{
		ID:                 m.ID,
		TripID:             m.TripID,
		Airline:            m.Airline,
		FlightNumber:       m.FlightNumber,
		ConfirmationNumber: deref(m.ConfirmationNumber),
		DepartureAirport:   m.DepartureAirport,
		ArrivalAirport:     m.ArrivalAirport,
		DepartureTime:      m.DepartureTime,
		ArrivalTime:        m.ArrivalTime,
		DepartureTerminal:  deref(m.DepartureTerminal),
		DepartureGate:      deref(m.DepartureGate),
		Status:             deref(m.Status),
		LastAPIUpdate:      m.LastAPIUpdate,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
