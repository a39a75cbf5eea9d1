package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// GormAccountRepository implements the AccountRepository interface
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GORM account repository
func NewGormAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &GormAccountRepository{
		db: db,
	}
}

// ProviderAccount GORM model for database mapping
type ProviderAccount struct {
	ID                uint       `gorm:"primaryKey"`
	UserID            uint       `gorm:"column:user_id"`
	ProviderKind      string     `gorm:"column:provider_kind"`
	Address           string     `gorm:"column:address"`
	AccessToken       string     `gorm:"column:access_token"`
	RefreshToken      string     `gorm:"column:refresh_token"`
	TokenExpiresAt    *time.Time `gorm:"column:token_expires_at"`
	LastScan          *time.Time `gorm:"column:last_scan"`
	IsActive          bool       `gorm:"column:is_active"`
	DeactivatedReason *string    `gorm:"column:deactivated_reason"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the default table name
func (ProviderAccount) TableName() string {
	return "provider_accounts"
}

// UserSettingsModel GORM model for database mapping
type UserSettingsModel struct {
	ID                        uint    `gorm:"primaryKey"`
	UserID                    uint    `gorm:"column:user_id;unique"`
	EmailIntegrationEnabled   bool    `gorm:"column:email_integration_enabled"`
	AutoScanEmails            bool    `gorm:"column:auto_scan_emails"`
	CheckinIntegrationEnabled bool    `gorm:"column:checkin_integration_enabled"`
	DefaultTripVisibility     string  `gorm:"column:default_trip_visibility"`
	GoogleClientID            *string `gorm:"column:google_client_id"`
	GoogleClientSecret        *string `gorm:"column:google_client_secret"`
	MicrosoftClientID         *string `gorm:"column:microsoft_client_id"`
	MicrosoftClientSecret     *string `gorm:"column:microsoft_client_secret"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// TableName overrides the default table name
func (UserSettingsModel) TableName() string {
	return "user_settings"
}

// ListActive returns active accounts of the given kinds with their owner settings
func (r *GormAccountRepository) ListActive(ctx context.Context, kinds ...entity.ProviderKind) ([]*entity.Account, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id")
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		query = query.Where("provider_kind IN ?", names)
	}

	var rows []ProviderAccount
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	userIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}

	var settingsRows []UserSettingsModel
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&settingsRows).Error; err != nil {
		return nil, err
	}
	settings := make(map[uint]entity.UserSettings, len(settingsRows))
	for _, s := range settingsRows {
		settings[s.UserID] = s.toEntity()
	}

	accounts := make([]*entity.Account, 0, len(rows))
	for _, row := range rows {
		account := row.toEntity()
		// Users without a settings row get the defaults
		if s, ok := settings[row.UserID]; ok {
			account.Settings = s
		} else {
			account.Settings = entity.UserSettings{UserID: row.UserID, AutoScanEmails: true}
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// UpdateTokens persists a refreshed credential
func (r *GormAccountRepository) UpdateTokens(ctx context.Context, accountID uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token":     accessToken,
		"token_expires_at": expiresAt,
		"updated_at":       time.Now().UTC(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}

	return r.db.WithContext(ctx).Model(&ProviderAccount{}).Where("id = ?", accountID).Updates(updates).Error
}

// Deactivate flags the credential inactive
func (r *GormAccountRepository) Deactivate(ctx context.Context, accountID uint, reason string) error {
	return r.db.WithContext(ctx).Model(&ProviderAccount{}).Where("id = ?", accountID).Updates(map[string]interface{}{
		"is_active":          false,
		"deactivated_reason": reason,
		"updated_at":         time.Now().UTC(),
	}).Error
}

// AdvanceCheckpoint moves last_scan forward. An older checkpoint is a no-op.
func (r *GormAccountRepository) AdvanceCheckpoint(ctx context.Context, accountID uint, checkpoint entity.Checkpoint) error {
	if checkpoint.IsZero() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&ProviderAccount{}).
		Where("id = ? AND (last_scan IS NULL OR last_scan < ?)", accountID, checkpoint.At).
		Update("last_scan", checkpoint.At).Error
}

func (m ProviderAccount) toEntity() *entity.Account {
	a := &entity.Account{
		ID:           m.ID,
		UserID:       m.UserID,
		Kind:         entity.ProviderKind(m.ProviderKind),
		Address:      m.Address,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.TokenExpiresAt,
		LastScan:     m.LastScan,
		Active:       m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.DeactivatedReason != nil {
		a.DeactivatedReason = *m.DeactivatedReason
	}
	return a
}

func (m UserSettingsModel) toEntity() entity.UserSettings {
	return entity.UserSettings{
		UserID:                    m.UserID,
		EmailIntegrationEnabled:   m.EmailIntegrationEnabled,
		AutoScanEmails:            m.AutoScanEmails,
		CheckinIntegrationEnabled: m.CheckinIntegrationEnabled,
		DefaultTripVisibility:     entity.Visibility(m.DefaultTripVisibility),
		GoogleClientID:            deref(m.GoogleClientID),
		GoogleClientSecret:        deref(m.GoogleClientSecret),
		MicrosoftClientID:         deref(m.MicrosoftClientID),
		MicrosoftClientSecret:     deref(m.MicrosoftClientSecret),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
