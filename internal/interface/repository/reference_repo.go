package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// AirlineModel is a row of the airline reference table
type AirlineModel struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"column:code;unique"`
	Name      string `gorm:"column:name"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (AirlineModel) TableName() string {
	return "m_airlines"
}

func (m AirlineModel) toEntity() *entity.Airline {
	return &entity.Airline{ID: m.ID, Code: m.Code, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// TimezoneModel is a row of the airport timezone reference table
type TimezoneModel struct {
	ID          uint   `gorm:"primaryKey"`
	AirportCode string `gorm:"column:airportcode;unique"`
	AirportName string `gorm:"column:airport_name"`
	CityCode    string `gorm:"column:citycode"`
	CityName    string `gorm:"column:cityname"`
	GmtTz       string `gorm:"column:gmttz"`
	TzName      string `gorm:"column:tzname"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (TimezoneModel) TableName() string {
	return "m_timezone_list"
}

func (m TimezoneModel) toEntity() *entity.Timezone {
	return &entity.Timezone{
		ID:          m.ID,
		AirportCode: m.AirportCode,
		AirportName: m.AirportName,
		CityCode:    m.CityCode,
		CityName:    m.CityName,
		GmtTz:       m.GmtTz,
		TzName:      m.TzName,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// referenceCache memoizes reference rows by upper-cased code. Misses are
// cached too; the tables only change through migrations.
type referenceCache[T any] struct {
	mu   sync.RWMutex
	rows map[string]*T
}

func (c *referenceCache[T]) get(code string) (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.rows[code]
	return row, ok
}

func (c *referenceCache[T]) put(code string, row *T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = make(map[string]*T)
	}
	c.rows[code] = row
}

// lookup reads one row by its code column through the cache
func lookup[T any](ctx context.Context, db *gorm.DB, cache *referenceCache[T], column, code string) (*T, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if row, ok := cache.get(code); ok {
		if row == nil {
			return nil, repository.ErrNotFound
		}
		return row, nil
	}

	var row T
	err := db.WithContext(ctx).Where(column+" = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cache.put(code, nil)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cache.put(code, &row)
	return &row, nil
}

// GormAirlineRepository implements the AirlineRepository interface
type GormAirlineRepository struct {
	db    *gorm.DB
	cache referenceCache[AirlineModel]
}

// NewGormAirlineRepository creates a new GORM airline repository
func NewGormAirlineRepository(db *gorm.DB) repository.AirlineRepository {
	return &GormAirlineRepository{db: db}
}

// GetByCode finds an airline by its IATA code
func (r *GormAirlineRepository) GetByCode(ctx context.Context, code string) (*entity.Airline, error) {
	row, err := lookup(ctx, r.db, &r.cache, "code", code)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// GormTimezoneRepository implements the TimezoneRepository interface
type GormTimezoneRepository struct {
	db    *gorm.DB
	cache referenceCache[TimezoneModel]
}

// NewGormTimezoneRepository creates a new GORM timezone repository
func NewGormTimezoneRepository(db *gorm.DB) repository.TimezoneRepository {
	return &GormTimezoneRepository{db: db}
}

// GetByAirportCode finds the time zone of an airport
func (r *GormTimezoneRepository) GetByAirportCode(ctx context.Context, code string) (*entity.Timezone, error) {
	row, err := lookup(ctx, r.db, &r.cache, "airportcode", code)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}
