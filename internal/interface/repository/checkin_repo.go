package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// GormCheckinRepository implements the CheckinRepository interface
type GormCheckinRepository struct {
	db *gorm.DB
}

// NewGormCheckinRepository creates a new GORM check-in repository
func NewGormCheckinRepository(db *gorm.DB) repository.CheckinRepository {
	return &GormCheckinRepository{
		db: db,
	}
}

// CheckinModel GORM model for database mapping
type CheckinModel struct {
	ID                  uint      `gorm:"primaryKey"`
	TripID              uint      `gorm:"column:trip_id"`
	UserID              uint      `gorm:"column:user_id"`
	FoursquareCheckinID string    `gorm:"column:foursquare_checkin_id"`
	VenueName           string    `gorm:"column:venue_name"`
	VenueCategory       string    `gorm:"column:venue_category"`
	VenueAddress        string    `gorm:"column:venue_address"`
	Latitude            *float64  `gorm:"column:latitude"`
	Longitude           *float64  `gorm:"column:longitude"`
	CheckinTime         time.Time `gorm:"column:checkin_time"`
	Shout               string    `gorm:"column:shout"`
	PhotoURL            string    `gorm:"column:photo_url"`
	CreatedAt           time.Time
}

// TableName overrides the default table name
func (CheckinModel) TableName() string {
	return "check_ins"
}

// ExistsByNativeID reports whether a check-in with the provider id is stored
func (r *GormCheckinRepository) ExistsByNativeID(ctx context.Context, nativeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CheckinModel{}).Where("foursquare_checkin_id = ?", nativeID).Count(&count).Error
	return count > 0, err
}

// Create inserts a check-in. Check-ins are never updated.
func (r *GormCheckinRepository) Create(ctx context.Context, checkin *entity.Checkin) error {
	row := CheckinModel{
		TripID:              checkin.TripID,
		UserID:              checkin.UserID,
		FoursquareCheckinID: checkin.NativeID,
		VenueName:           checkin.VenueName,
		VenueCategory:       checkin.VenueCategory,
		VenueAddress:        checkin.VenueAddress,
		Latitude:            checkin.Latitude,
		Longitude:           checkin.Longitude,
		CheckinTime:         checkin.CheckinTime,
		Shout:               checkin.Shout,
		PhotoURL:            checkin.PhotoURL,
	}

	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return err
	}

	checkin.ID, checkin.CreatedAt = row.ID, row.CreatedAt
	return nil
}

// GormShareRepository implements the ShareRepository interface
type GormShareRepository struct {
	db *gorm.DB
}

// NewGormShareRepository creates a new GORM share repository
func NewGormShareRepository(db *gorm.DB) repository.ShareRepository {
	return &GormShareRepository{
		db: db,
	}
}

// TripShareModel GORM model for database mapping
type TripShareModel struct {
	ID        uint       `gorm:"primaryKey"`
	TripID    uint       `gorm:"column:trip_id"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time
}

// TableName overrides the default table name
func (TripShareModel) TableName() string {
	return "trip_shares"
}

// DeleteExpired removes shares whose expiry has passed and returns how many were removed
func (r *GormShareRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&TripShareModel{})
	return int(result.RowsAffected), result.Error
}
