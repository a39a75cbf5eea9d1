package repository

import (
	"context"

	"travelsync-service/internal/domain/entity"
)

// TimezoneRepository reads the airport timezone reference table
type TimezoneRepository interface {
	GetByAirportCode(ctx context.Context, code string) (*entity.Timezone, error)
}
