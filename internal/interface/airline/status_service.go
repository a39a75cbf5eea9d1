// Package airline implements flight-status lookups against the carriers' REST APIs.
// Carriers differ only in URL shape and response field names, so one client is
// driven by a per-airline table entry.
package airline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/httpx"
	"travelsync-service/internal/infrastructure/ratelimit"
)

// Airline keys, matching the extraction engine's detected carrier
const (
	United    = "UNITED"
	American  = "AMERICAN"
	Delta     = "DELTA"
	Southwest = "SOUTHWEST"
)

type fieldMap struct {
	root               []string
	status             string
	departureGate      string
	arrivalGate        string
	departureTerminal  string
	scheduledDeparture string
	actualDeparture    string
	scheduledArrival   string
	actualArrival      string
}

type carrier struct {
	defaultBaseURL string
	statusURL      func(base, flightNumber, date string) string
	fields         fieldMap
}

var carriers = map[string]carrier{
	United: {
		defaultBaseURL: "https://api.united.com/v1",
		statusURL: func(base, fn, date string) string {
			return fmt.Sprintf("%s/flightstatus/%s/%s", base, url.PathEscape(fn), date)
		},
		fields: fieldMap{
			status: "flightStatus", departureGate: "departureGate", arrivalGate: "arrivalGate",
			departureTerminal: "departureTerminal", scheduledDeparture: "scheduledDeparture",
			actualDeparture: "actualDeparture", scheduledArrival: "scheduledArrival", actualArrival: "actualArrival",
		},
	},
	American: {
		defaultBaseURL: "https://api.aa.com/v1",
		statusURL: func(base, fn, date string) string {
			return fmt.Sprintf("%s/flights/status/%s?date=%s", base, url.PathEscape(fn), url.QueryEscape(date))
		},
		fields: fieldMap{
			root:   []string{"flight"},
			status: "status", departureGate: "departureGate", arrivalGate: "arrivalGate",
			departureTerminal: "departureTerminal", scheduledDeparture: "scheduledDepartureTime",
			actualDeparture: "actualDepartureTime", scheduledArrival: "scheduledArrivalTime", actualArrival: "actualArrivalTime",
		},
	},
	Delta: {
		defaultBaseURL: "https://api.delta.com/v1",
		statusURL: func(base, fn, date string) string {
			return fmt.Sprintf("%s/flightstatus/%s/%s", base, url.PathEscape(fn), date)
		},
		fields: fieldMap{
			status: "operationalStatus", departureGate: "departureGate", arrivalGate: "arrivalGate",
			departureTerminal: "departureTerminal", scheduledDeparture: "scheduledDepartureDateTime",
			actualDeparture: "estimatedDepartureDateTime", scheduledArrival: "scheduledArrivalDateTime", actualArrival: "estimatedArrivalDateTime",
		},
	},
	Southwest: {
		defaultBaseURL: "https://api.southwest.com/v1",
		statusURL: func(base, fn, date string) string {
			q := url.Values{"flightNumber": {fn}, "date": {date}}
			return base + "/flightstatus?" + q.Encode()
		},
		fields: fieldMap{
			root:   []string{"flightStatusResponse", "flight"},
			status: "status", departureGate: "departureGate", arrivalGate: "arrivalGate",
			departureTerminal: "departureTerminal", scheduledDeparture: "scheduledDepartureTime",
			actualDeparture: "actualDepartureTime", scheduledArrival: "scheduledArrivalTime", actualArrival: "actualArrivalTime",
		},
	},
}

// Supported reports whether a status client exists for the airline key
func Supported(airline string) bool {
	_, ok := carriers[strings.ToUpper(airline)]
	return ok
}

// StatusService queries one airline's flight-status endpoint with API-key bearer auth
type StatusService struct {
	airline    string
	carrier    carrier
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiters   *ratelimit.Limiters
}

var _ provider.StatusClient = (*StatusService)(nil)

// NewStatusService creates the client of an airline. An empty baseURL uses the carrier's public URL.
func NewStatusService(airline, baseURL, apiKey string, timeout time.Duration, limiters *ratelimit.Limiters) (*StatusService, error) {
	key := strings.ToUpper(airline)
	c, ok := carriers[key]
	if !ok {
		return nil, fmt.Errorf("no status client for airline %q", airline)
	}
	if apiKey == "" {
		return nil, apperrors.NewConfigurationMissing(strings.ToLower(key), "api key")
	}
	if baseURL == "" {
		baseURL = c.defaultBaseURL
	}
	return &StatusService{
		airline:    key,
		carrier:    c,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiters:   limiters,
	}, nil
}

// Airline implements provider.StatusClient
func (s *StatusService) Airline() string {
	return s.airline
}

// GetStatus fetches the status of a flight departing on date
func (s *StatusService) GetStatus(ctx context.Context, flightNumber string, date time.Time) (*entity.FlightStatus, error) {
	name := strings.ToLower(s.airline)

	req, err := http.NewRequest(http.MethodGet, s.carrier.statusURL(s.baseURL, flightNumber, date.Format("2006-01-02")), nil)
	if err != nil {
		return nil, apperrors.NewTransient(name, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	var body map[string]any
	if err := httpx.GetJSON(ctx, s.httpClient, s.limiters, name, req, &body); err != nil {
		return nil, err
	}

	return s.carrier.fields.parse(body), nil
}

func (f fieldMap) parse(body map[string]any) *entity.FlightStatus {
	obj := body
	for _, key := range f.root {
		next, _ := obj[key].(map[string]any)
		obj = next
	}

	return &entity.FlightStatus{
		Status:             strings.ToLower(str(obj, f.status)),
		DepartureGate:      str(obj, f.departureGate),
		ArrivalGate:        str(obj, f.arrivalGate),
		DepartureTerminal:  str(obj, f.departureTerminal),
		ScheduledDeparture: timestamp(obj, f.scheduledDeparture),
		ActualDeparture:    timestamp(obj, f.actualDeparture),
		ScheduledArrival:   timestamp(obj, f.scheduledArrival),
		ActualArrival:      timestamp(obj, f.actualArrival),
	}
}

func str(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	}
	return ""
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

func timestamp(obj map[string]any, key string) *time.Time {
	raw := str(obj, key)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
