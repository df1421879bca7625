package integration

import (
	"context"
	"errors"

	"github.com/erp/shopsync/internal/domain/integration"
)

// EntityResolver maps remote identifiers to local records. Lookups are pure reads;
// a nil result with a nil error means "not mapped yet" and tells the caller to create.
type EntityResolver struct {
	items      integration.ItemRepository
	customers  integration.CustomerRepository
	orders     integration.OrderRepository
	invoices   integration.InvoiceRepository
	deliveries integration.DeliveryRepository
}

// NewEntityResolver creates an EntityResolver
func NewEntityResolver(repos Repositories) *EntityResolver {
	return &EntityResolver{
		items:      repos.Items,
		customers:  repos.Customers,
		orders:     repos.Orders,
		invoices:   repos.Invoices,
		deliveries: repos.Deliveries,
	}
}

// ResolveLocal finds the item owning (productID, variantID). Without a variant id
// it falls back to the first item mapped to the product, preferring non-templates.
func (r *EntityResolver) ResolveLocal(ctx context.Context, productID, variantID int64) (*integration.LocalItem, error) {
	if productID <= 0 && variantID <= 0 {
		return nil, nil
	}
	if variantID > 0 {
		item, err := r.items.FindByExternalID(ctx, productID, variantID)
		return found(item, err, integration.ErrItemNotFound)
	}

	items, err := r.items.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	var fallback *integration.LocalItem
	for i := range items {
		if !items[i].IsTemplate {
			return &items[i], nil
		}
		if fallback == nil {
			fallback = &items[i]
		}
	}
	return fallback, nil
}

// ResolveLocalCustomer finds the customer mapped to a remote customer id.
func (r *EntityResolver) ResolveLocalCustomer(ctx context.Context, customerID int64) (*integration.LocalCustomer, error) {
	if customerID <= 0 {
		return nil, nil
	}
	c, err := r.customers.FindByExternalID(ctx, customerID)
	return found(c, err, integration.ErrCustomerNotFound)
}

// ResolveLocalOrderArtifacts collects the order, invoice and deliveries recorded for a
// remote order id. Absent artifacts are nil; Deliveries is never nil.
func (r *EntityResolver) ResolveLocalOrderArtifacts(ctx context.Context, orderID int64) (*integration.OrderArtifacts, error) {
	artifacts := &integration.OrderArtifacts{Deliveries: make(map[int64]*integration.LocalDelivery)}

	order, err := r.orders.FindByExternalID(ctx, orderID)
	if order, err = found(order, err, integration.ErrOrderNotFound); err != nil {
		return nil, err
	}
	artifacts.Order = order

	invoice, err := r.invoices.FindByOrderID(ctx, orderID)
	if invoice, err = found(invoice, err, integration.ErrInvoiceNotFound); err != nil {
		return nil, err
	}
	artifacts.Invoice = invoice

	deliveries, err := r.deliveries.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range deliveries {
		d := deliveries[i]
		artifacts.Deliveries[d.ExternalID.ParentID] = &d
	}
	return artifacts, nil
}

func found[T any](v *T, err error, notFound error) (*T, error) {
	if errors.Is(err, notFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
