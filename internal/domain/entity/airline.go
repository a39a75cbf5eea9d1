package entity

import "time"

// Airline is a row of the airline reference table, keyed by IATA code
type Airline struct {
	ID        uint
	Code      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
