package entity

import (
	"fmt"
	"time"
)

// Flight status values written by the flight-status job
const (
	FlightStatusScheduled = "scheduled"
	FlightStatusCancelled = "cancelled"
)

// Trip is the parent record of flights and check-ins
type Trip struct {
	ID                 uint
	UserID             uint
	Title              string
	Destination        string
	StartDate          time.Time
	EndDate            time.Time
	Visibility         Visibility
	ConfirmationNumber string
	AutoDetected       bool
	EmailSource        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Covers reports whether t falls inside the trip's date range, bounds included
func (t *Trip) Covers(at time.Time) bool {
	return !at.Before(t.StartDate) && !at.After(t.EndDate)
}

// TripTitle builds the title of an auto-detected trip
func TripTitle(departure, arrival string) string {
	return fmt.Sprintf("%s to %s", departure, arrival)
}

// Flight belongs to a trip. ConfirmationNumber is its natural key when present.
type Flight struct {
	ID                 uint
	TripID             uint
	Airline            string
	FlightNumber       string
	ConfirmationNumber string
	DepartureAirport   string
	ArrivalAirport     string
	DepartureTime      *time.Time
	ArrivalTime        *time.Time
	DepartureTerminal  string
	DepartureGate      string
	Status             string
	LastAPIUpdate      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FlightStatus is the canonical answer of a flight-status provider
type FlightStatus struct {
	Status             string
	DepartureGate      string
	ArrivalGate        string
	DepartureTerminal  string
	ScheduledDeparture *time.Time
	ActualDeparture    *time.Time
	ScheduledArrival   *time.Time
	ActualArrival      *time.Time
}

// Apply copies the non-empty fields of s onto f and stamps the update time
func (s *FlightStatus) Apply(f *Flight, now time.Time) {
	if s.Status != "" {
		f.Status = s.Status
	}
	if s.DepartureGate != "" {
		f.DepartureGate = s.DepartureGate
	}
	if s.DepartureTerminal != "" {
		f.DepartureTerminal = s.DepartureTerminal
	}
	f.LastAPIUpdate = &now
}

// TripShare grants access to a trip, optionally until ExpiresAt
type TripShare struct {
	ID        uint
	TripID    uint
	ExpiresAt *time.Time
	CreatedAt time.Time
}
