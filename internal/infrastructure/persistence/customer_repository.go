package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements integration.CustomerRepository using GORM.
// Addresses are stored in their own table and replaced wholesale on update.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Addresses", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByExternalID finds a customer by remote customer id
func (r *GormCustomerRepository) FindByExternalID(ctx context.Context, customerID int64) (*integration.LocalCustomer, error) {
	var model models.CustomerModel
	if err := r.query(ctx).Where("remote_customer_id = ?", customerID).First(&model).Error; err != nil {
		return nil, translate(err, integration.ErrCustomerNotFound)
	}
	return model.ToDomain(), nil
}

// FindByName finds the oldest customer with the given name
func (r *GormCustomerRepository) FindByName(ctx context.Context, name string) (*integration.LocalCustomer, error) {
	var model models.CustomerModel
	err := r.query(ctx).Where("name = ?", name).Order("created_at ASC").First(&model).Error
	if err != nil {
		return nil, translate(err, integration.ErrCustomerNotFound)
	}
	return model.ToDomain(), nil
}

// FindPendingPush returns sync-enabled customers without a remote id
func (r *GormCustomerRepository) FindPendingPush(ctx context.Context) ([]integration.LocalCustomer, error) {
	var rows []models.CustomerModel
	err := r.query(ctx).
		Where("sync_enabled = ? AND remote_customer_id IS NULL", true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	customers := make([]integration.LocalCustomer, len(rows))
	for i := range rows {
		customers[i] = *rows[i].ToDomain()
	}
	return customers, nil
}

// Create inserts the customer and its addresses in one transaction
func (r *GormCustomerRepository) Create(ctx context.Context, customer *integration.LocalCustomer) error {
	var model models.CustomerModel
	model.FromDomain(customer)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return translate(tx.Create(&model).Error, nil)
	})
}

// Update rewrites the customer row and replaces its addresses
func (r *GormCustomerRepository) Update(ctx context.Context, customer *integration.LocalCustomer) error {
	customer.UpdatedAt = time.Now()
	var model models.CustomerModel
	model.FromDomain(customer)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CustomerModel{}).
			Where("id = ?", model.ID).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(&model)
		if result.Error != nil {
			return translate(result.Error, nil)
		}
		if result.RowsAffected == 0 {
			return integration.ErrCustomerNotFound
		}
		if err := tx.Where("customer_id = ?", model.ID).Delete(&models.AddressModel{}).Error; err != nil {
			return err
		}
		if len(model.Addresses) == 0 {
			return nil
		}
		return tx.Create(&model.Addresses).Error
	})
}

var _ integration.CustomerRepository = (*GormCustomerRepository)(nil)
