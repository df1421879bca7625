package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Item attributes
// ---------------------------------------------------------------------------

// GormAttributeRepository implements integration.AttributeRepository using GORM
type GormAttributeRepository struct {
	db *gorm.DB
}

// NewGormAttributeRepository creates a new GormAttributeRepository
func NewGormAttributeRepository(db *gorm.DB) *GormAttributeRepository {
	return &GormAttributeRepository{db: db}
}

// FindByName finds an attribute by name
func (r *GormAttributeRepository) FindByName(ctx context.Context, name string) (*integration.ItemAttribute, error) {
	var model models.ItemAttributeModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		return nil, translate(err, integration.ErrAttributeNotFound)
	}
	return model.ToDomain(), nil
}

// Save inserts the attribute, or merges its values into the stored attribute of
// the same name under a row lock. Stored values are never dropped, so two
// writers appending different values both keep theirs. attr is refreshed with
// the stored result.
func (r *GormAttributeRepository) Save(ctx context.Context, attr *integration.ItemAttribute) error {
	now := time.Now()
	if attr.ID == uuid.Nil {
		attr.ID = uuid.New()
	}
	if attr.CreatedAt.IsZero() {
		attr.CreatedAt = now
	}
	attr.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.ItemAttributeModel
		model.FromDomain(attr)
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var stored models.ItemAttributeModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", attr.Name).
			First(&stored).Error
		if err != nil {
			return translate(err, integration.ErrAttributeNotFound)
		}
		merged := stored.ToDomain()
		added := false
		for _, v := range attr.Values {
			if merged.AppendValue(v.Value) {
				added = true
			}
		}
		if added {
			merged.UpdatedAt = now
			err := tx.Model(&models.ItemAttributeModel{}).
				Where("id = ?", stored.ID).
				Updates(map[string]any{
					"attribute_values": datatypes.NewJSONSlice(merged.Values),
					"updated_at":       now,
				}).Error
			if err != nil {
				return err
			}
		}
		*attr = *merged
		return nil
	})
}

// ---------------------------------------------------------------------------
// Item groups
// ---------------------------------------------------------------------------

// GormItemGroupRepository implements integration.ItemGroupRepository using GORM
type GormItemGroupRepository struct {
	db *gorm.DB
}

// NewGormItemGroupRepository creates a new GormItemGroupRepository
func NewGormItemGroupRepository(db *gorm.DB) *GormItemGroupRepository {
	return &GormItemGroupRepository{db: db}
}

// Ensure creates the group if it does not exist
func (r *GormItemGroupRepository) Ensure(ctx context.Context, group integration.ItemGroup) error {
	model := models.ItemGroupModel{Name: group.Name, Parent: group.Parent, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// ---------------------------------------------------------------------------
// Prices
// ---------------------------------------------------------------------------

// GormPriceRepository implements integration.PriceRepository using GORM
type GormPriceRepository struct {
	db *gorm.DB
}

// NewGormPriceRepository creates a new GormPriceRepository
func NewGormPriceRepository(db *gorm.DB) *GormPriceRepository {
	return &GormPriceRepository{db: db}
}

// Find returns the rate of an item in a price list
func (r *GormPriceRepository) Find(ctx context.Context, itemCode, priceList string) (*integration.PriceEntry, error) {
	var model models.ItemPriceModel
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND price_list = ?", itemCode, priceList).
		First(&model).Error
	if err != nil {
		return nil, translate(err, integration.ErrPriceNotFound)
	}
	return model.ToDomain(), nil
}

// Upsert writes the rate for (item, price list)
func (r *GormPriceRepository) Upsert(ctx context.Context, entry *integration.PriceEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.UpdatedAt = time.Now()
	model := models.ItemPriceModel{
		ID:        entry.ID,
		ItemCode:  entry.ItemCode,
		PriceList: entry.PriceList,
		Rate:      entry.Rate,
		UpdatedAt: entry.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_code"}, {Name: "price_list"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(&model).Error
}

// ---------------------------------------------------------------------------
// Stock (bins)
// ---------------------------------------------------------------------------

// GormStockRepository implements integration.StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// Find returns the bin of an item in a warehouse
func (r *GormStockRepository) Find(ctx context.Context, itemCode, warehouse string) (*integration.StockLevel, error) {
	var model models.BinModel
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND warehouse = ?", itemCode, warehouse).
		First(&model).Error
	if err != nil {
		return nil, translate(err, integration.ErrStockNotFound)
	}
	return model.ToDomain(), nil
}

// Save upserts the bin
func (r *GormStockRepository) Save(ctx context.Context, level *integration.StockLevel) error {
	if level.UpdatedAt.IsZero() {
		level.UpdatedAt = time.Now()
	}
	model := models.BinModel{
		ItemCode:       level.ItemCode,
		Warehouse:      level.Warehouse,
		QuantityOnHand: level.QuantityOnHand,
		UpdatedAt:      level.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_code"}, {Name: "warehouse"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity_on_hand", "updated_at"}),
	}).Create(&model).Error
}

var (
	_ integration.AttributeRepository = (*GormAttributeRepository)(nil)
	_ integration.ItemGroupRepository = (*GormItemGroupRepository)(nil)
	_ integration.PriceRepository     = (*GormPriceRepository)(nil)
	_ integration.StockRepository     = (*GormStockRepository)(nil)
)
