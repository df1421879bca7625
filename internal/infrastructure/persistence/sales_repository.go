package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Sales orders
// ---------------------------------------------------------------------------

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByExternalID finds the order mirrored from a remote order
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, orderID int64) (*integration.LocalOrder, error) {
	var model models.SalesOrderModel
	if err := r.db.WithContext(ctx).Where("remote_order_id = ?", orderID).First(&model).Error; err != nil {
		return nil, translate(err, integration.ErrOrderNotFound)
	}
	return model.ToDomain(), nil
}

// Create inserts the order. A second order for the same remote order yields
// integration.ErrDuplicateExternal.
func (r *GormOrderRepository) Create(ctx context.Context, order *integration.LocalOrder) error {
	var model models.SalesOrderModel
	model.FromDomain(order)
	return translate(r.db.WithContext(ctx).Create(&model).Error, nil)
}

// Update rewrites the order identified by its remote order id
func (r *GormOrderRepository) Update(ctx context.Context, order *integration.LocalOrder) error {
	order.UpdatedAt = time.Now()
	var model models.SalesOrderModel
	model.FromDomain(order)
	result := r.db.WithContext(ctx).
		Model(&models.SalesOrderModel{}).
		Where("remote_order_id = ?", model.RemoteOrderID).
		Select("*").
		Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return integration.ErrOrderNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sales invoices
// ---------------------------------------------------------------------------

// GormInvoiceRepository implements integration.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByOrderID returns the invoice raised for a remote order
func (r *GormInvoiceRepository) FindByOrderID(ctx context.Context, orderID int64) (*integration.LocalInvoice, error) {
	var model models.SalesInvoiceModel
	if err := r.db.WithContext(ctx).Where("remote_order_id = ?", orderID).First(&model).Error; err != nil {
		return nil, translate(err, integration.ErrInvoiceNotFound)
	}
	return model.ToDomain(), nil
}

// Create inserts the invoice; the unique remote_order_id keeps it to one per order
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *integration.LocalInvoice) error {
	var model models.SalesInvoiceModel
	model.FromDomain(invoice)
	return translate(r.db.WithContext(ctx).Create(&model).Error, nil)
}

// ---------------------------------------------------------------------------
// Delivery notes
// ---------------------------------------------------------------------------

// GormDeliveryRepository implements integration.DeliveryRepository using GORM
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository
func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// FindByOrderID lists the deliveries of a remote order, oldest first
func (r *GormDeliveryRepository) FindByOrderID(ctx context.Context, orderID int64) ([]integration.LocalDelivery, error) {
	var rows []models.DeliveryNoteModel
	err := r.db.WithContext(ctx).
		Where("remote_order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	deliveries := make([]integration.LocalDelivery, len(rows))
	for i := range rows {
		deliveries[i] = *rows[i].ToDomain()
	}
	return deliveries, nil
}

// Create inserts a delivery note for one fulfillment
func (r *GormDeliveryRepository) Create(ctx context.Context, delivery *integration.LocalDelivery) error {
	var model models.DeliveryNoteModel
	model.FromDomain(delivery)
	return translate(r.db.WithContext(ctx).Create(&model).Error, nil)
}

var (
	_ integration.OrderRepository    = (*GormOrderRepository)(nil)
	_ integration.InvoiceRepository  = (*GormInvoiceRepository)(nil)
	_ integration.DeliveryRepository = (*GormDeliveryRepository)(nil)
)
