package usecase

import (
	"context"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
	"travelsync-service/pkg/parser"
)

// FlightStatusJob refreshes status, gate and terminal of flights departing soon
type FlightStatusJob struct {
	name     string
	trips    repository.TripRepository
	statuses StatusLookup
	window   time.Duration
	metrics  *metrics.Metrics
	logger   logger.Logger
	now      func() time.Time
}

// NewFlightStatusJob creates the job. Flights departing within window are refreshed.
func NewFlightStatusJob(name string, trips repository.TripRepository, statuses StatusLookup, window time.Duration, m *metrics.Metrics, logger logger.Logger) *FlightStatusJob {
	return &FlightStatusJob{
		name:     name,
		trips:    trips,
		statuses: statuses,
		window:   window,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run queries the airline of each upcoming flight. A failed flight is counted and skipped.
func (j *FlightStatusJob) Run(ctx context.Context) (entity.JobSummary, error) {
	var summary entity.JobSummary
	now := j.now().UTC()

	flights, err := j.trips.UpcomingFlights(ctx, now, now.Add(j.window))
	if err != nil {
		return summary, err
	}

	for _, flight := range flights {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++

		client, ok := j.client(flight)
		if !ok || flight.DepartureTime == nil {
			summary.Skipped++
			j.logger.Debug("No status source for flight", "flight", flight.FlightNumber, "airline", flight.Airline)
			continue
		}

		status, err := client.GetStatus(ctx, flight.FlightNumber, *flight.DepartureTime)
		if err != nil {
			summary.Errored++
			j.metrics.ObserveProviderError(client.Airline(), errorKind(err))
			j.logger.Warn("Failed to get flight status", "flight", flight.FlightNumber, "airline", client.Airline(), "error", err)
			continue
		}

		status.Apply(flight, now)
		if err := j.trips.UpdateFlightStatus(ctx, flight); err != nil {
			summary.Errored++
			j.logger.Error("Failed to update flight status", "flightID", flight.ID, "error", err)
			continue
		}
		summary.Updated++
	}

	j.metrics.ObserveItems(j.name, summary.Processed, summary.Created)
	j.logger.Info("Flight statuses refreshed", "flights", summary.Processed, "updated", summary.Updated, "errored", summary.Errored)
	return summary, nil
}

// client picks the status source by carrier designator, then by the stored airline
func (j *FlightStatusJob) client(flight *entity.Flight) (provider.StatusClient, bool) {
	if airline, ok := parser.AirlineByCode(parser.CarrierCode(flight.FlightNumber)); ok {
		if c, ok := j.statuses.Status(airline.Key); ok {
			return c, true
		}
	}
	return j.statuses.Status(flight.Airline)
}
