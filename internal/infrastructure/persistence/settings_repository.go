package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/persistence/models"
)

// GormSettingsRepository implements integration.SettingsRepository on the
// single integration_settings row.
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Load reads the settings row
func (r *GormSettingsRepository) Load(ctx context.Context) (*integration.Settings, error) {
	var model models.IntegrationSettingsModel
	if err := r.db.WithContext(ctx).First(&model, models.SettingsRowID).Error; err != nil {
		return nil, translate(err, integration.ErrSettingsNotFound)
	}
	return model.ToDomain(), nil
}

// Save inserts or replaces the settings row
func (r *GormSettingsRepository) Save(ctx context.Context, settings *integration.Settings) error {
	var model models.IntegrationSettingsModel
	model.FromDomain(settings)
	model.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(&model).Error
}

// SetEnabled flips only the enable flag
func (r *GormSettingsRepository) SetEnabled(ctx context.Context, enabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationSettingsModel{}).
		Where("id = ?", models.SettingsRowID).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrSettingsNotFound
	}
	return nil
}

// GormNamingSeries implements integration.NamingSeries with one counter row per prefix
type GormNamingSeries struct {
	db *gorm.DB
}

// NewGormNamingSeries creates a new GormNamingSeries
func NewGormNamingSeries(db *gorm.DB) *GormNamingSeries {
	return &GormNamingSeries{db: db}
}

// Next increments the prefix counter and returns e.g. "SO-Shopify-00042".
// The row lock taken by the UPDATE serialises concurrent callers.
func (s *GormNamingSeries) Next(ctx context.Context, prefix string) (string, error) {
	var row models.NamingSeriesModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.NamingSeriesModel{Prefix: prefix}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		err := tx.Model(&models.NamingSeriesModel{}).
			Where("prefix = ?", prefix).
			Update("last_number", gorm.Expr("last_number + ?", 1)).Error
		if err != nil {
			return err
		}
		return tx.Where("prefix = ?", prefix).First(&row).Error
	})
	if err != nil {
		return "", fmt.Errorf("naming series %q: %w", prefix, err)
	}
	return fmt.Sprintf("%s%05d", prefix, row.LastNumber), nil
}

var (
	_ integration.SettingsRepository = (*GormSettingsRepository)(nil)
	_ integration.NamingSeries       = (*GormNamingSeries)(nil)
)
