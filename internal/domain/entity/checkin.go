package entity

import "time"

// Checkin is an append-only venue check-in attached to a trip
type Checkin struct {
	ID            uint
	TripID        uint
	UserID        uint
	NativeID      string
	VenueName     string
	VenueCategory string
	VenueAddress  string
	Latitude      *float64
	Longitude     *float64
	CheckinTime   time.Time
	Shout         string
	PhotoURL      string
	CreatedAt     time.Time
}
