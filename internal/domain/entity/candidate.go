package entity

import "time"

// FlightCandidate is an extracted flight awaiting materialization. It is never persisted as-is.
type FlightCandidate struct {
	Airline          string // detected carrier key, upper case (UNITED, DELTA, ...)
	AirlineCode      string
	FlightNumber     string
	ConfirmationCode string
	DepartureAirport string
	ArrivalAirport   string
	DepartureTime    *time.Time
	ArrivalTime      *time.Time
	SourceID         string // originating provider message id
}

// Missing returns the name of the first required field that is empty, or ""
func (c *FlightCandidate) Missing() string {
	switch {
	case c.FlightNumber == "":
		return "flight number"
	case c.DepartureAirport == "":
		return "departure airport"
	case c.ArrivalAirport == "":
		return "arrival airport"
	}
	return ""
}

// CheckinCandidate is a provider check-in mapped to canonical shape
type CheckinCandidate struct {
	NativeID      string
	VenueName     string
	VenueCategory string
	VenueAddress  string
	Latitude      *float64
	Longitude     *float64
	CheckinTime   time.Time
	Shout         string
	PhotoURL      string
}
