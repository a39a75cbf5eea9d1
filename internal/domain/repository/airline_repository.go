package repository

import (
	"context"

	"travelsync-service/internal/domain/entity"
)

// AirlineRepository reads the airline reference table
type AirlineRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Airline, error)
}
