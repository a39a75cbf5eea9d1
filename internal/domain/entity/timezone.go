package entity

import "time"

// Timezone maps an airport code to its IANA zone
type Timezone struct {
	ID          uint
	AirportCode string
	AirportName string
	CityCode    string
	CityName    string
	GmtTz       string
	TzName      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Location loads the airport's time zone
func (t *Timezone) Location() (*time.Location, error) {
	return time.LoadLocation(t.TzName)
}
