package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/persistence/models"
)

// GormItemRepository implements integration.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByCode finds an item by its code
func (r *GormItemRepository) FindByCode(ctx context.Context, code string) (*integration.LocalItem, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		return nil, translate(err, integration.ErrItemNotFound)
	}
	return model.ToDomain(), nil
}

// FindByExternalID matches (product, variant) exactly
func (r *GormItemRepository) FindByExternalID(ctx context.Context, productID, variantID int64) (*integration.LocalItem, error) {
	var model models.ItemModel
	err := r.db.WithContext(ctx).
		Where("remote_product_id = ? AND remote_variant_id = ?", productID, variantID).
		First(&model).Error
	if err != nil {
		return nil, translate(err, integration.ErrItemNotFound)
	}
	return model.ToDomain(), nil
}

// FindByProductID returns every item mapped to a remote product, ordered by variant id
func (r *GormItemRepository) FindByProductID(ctx context.Context, productID int64) ([]integration.LocalItem, error) {
	return r.find(r.db.WithContext(ctx).
		Where("remote_product_id = ?", productID).
		Order("remote_variant_id ASC"))
}

// FindVariantsOf returns the variants of a template, ordered by code
func (r *GormItemRepository) FindVariantsOf(ctx context.Context, templateCode string) ([]integration.LocalItem, error) {
	return r.find(r.db.WithContext(ctx).
		Where("template_ref = ?", templateCode).
		Order("code ASC"))
}

// FindSyncEnabled returns items flagged for sync that are not tombstoned
func (r *GormItemRepository) FindSyncEnabled(ctx context.Context) ([]integration.LocalItem, error) {
	return r.find(r.db.WithContext(ctx).
		Where("sync_enabled = ? AND remote_deleted = ?", true, false).
		Order("code ASC"))
}

func (r *GormItemRepository) find(query *gorm.DB) ([]integration.LocalItem, error) {
	var rows []models.ItemModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]integration.LocalItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// Create inserts an item. A code or external id that is already taken yields
// integration.ErrDuplicateExternal.
func (r *GormItemRepository) Create(ctx context.Context, item *integration.LocalItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	var model models.ItemModel
	model.FromDomain(item)
	return translate(r.db.WithContext(ctx).Create(&model).Error, nil)
}

// Update rewrites every column of the item identified by its code.
func (r *GormItemRepository) Update(ctx context.Context, item *integration.LocalItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	var model models.ItemModel
	model.FromDomain(item)
	result := r.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("code = ?", item.Code).
		Select("*").
		Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return integration.ErrItemNotFound
	}
	return nil
}

var _ integration.ItemRepository = (*GormItemRepository)(nil)
