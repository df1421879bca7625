package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InventoryReconciler pushes local on-hand quantities to the remote platform.
type InventoryReconciler struct {
	items   integration.ItemRepository
	stock   integration.StockRepository
	catalog *CatalogSyncService
	events  shared.EventPublisher
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewInventoryReconciler creates an InventoryReconciler. Unmapped items are pushed
// through catalog before their quantity is written.
func NewInventoryReconciler(repos Repositories, catalog *CatalogSyncService, logger *zap.Logger) *InventoryReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryReconciler{
		items:   repos.Items,
		stock:   repos.Stock,
		catalog: catalog,
		logger:  logger.Named("inventory"),
	}
}

// SetEventPublisher sets the publisher for StockPushed events
func (r *InventoryReconciler) SetEventPublisher(p shared.EventPublisher) {
	r.events = p
}

// SetSyncMetrics sets the metrics recorder
func (r *InventoryReconciler) SetSyncMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// ReconcileAll pushes the configured warehouse quantity of every sync-enabled item.
func (r *InventoryReconciler) ReconcileAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageInventory)

	items, err := r.items.FindSyncEnabled(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list sync-enabled items: %w", err)
	}
	for i := range items {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		item := &items[i]
		if item.IsTemplate {
			result.Skipped()
			continue
		}
		pushed, err := r.UpdateItemStock(ctx, sess, item, nil)
		r.metrics.RecordEntity(ctx, StageInventory, err)
		switch {
		case err != nil && integration.IsFatal(err):
			return result.Finish(), err
		case err != nil:
			r.logger.Warn("Failed to push stock",
				zap.String("item_code", item.Code),
				zap.Error(err),
			)
			result.Failed(item.Code, err)
		case pushed:
			result.Succeeded()
		default:
			result.Skipped()
		}
	}
	return result.Finish(), nil
}

// UpdateItemStock writes one item's quantity upstream. When level is nil the bin of
// the configured warehouse is looked up; an item without a bin is left alone.
// Variants patch their parent product; the parent is never recreated here.
// It reports whether a quantity was written.
func (r *InventoryReconciler) UpdateItemStock(ctx context.Context, sess *Session, item *integration.LocalItem, level *integration.StockLevel) (bool, error) {
	if item.IsTemplate || item.RemoteDeleted {
		return false, nil
	}
	if level == nil {
		found, err := r.stock.Find(ctx, item.Code, sess.Settings.Warehouse)
		if errors.Is(err, integration.ErrStockNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		level = found
	}

	if !item.SyncEnabled {
		return false, nil
	}
	if item.ExternalID.IsZero() && !item.IsVariant() {
		if err := r.catalog.PushItem(ctx, sess, item); err != nil {
			return false, fmt.Errorf("push unmapped item %s: %w", item.Code, err)
		}
	}

	if item.ExternalID.IsZero() || level.Warehouse != sess.Settings.Warehouse {
		return false, nil
	}
	if !item.ExternalID.HasChild() {
		return false, &integration.ResolutionGap{Entity: "variant", Reference: item.Code}
	}

	qty := level.QuantityOnHand.IntPart()
	update := integration.VariantStockUpdate{
		ID:                  item.ExternalID.ChildID,
		InventoryQuantity:   qty,
		InventoryManagement: integration.InventoryManagementShopify,
	}
	if err := sess.Remote.UpdateVariantStock(ctx, item.ExternalID.ParentID, update); err != nil {
		return false, fmt.Errorf("update stock of %s: %w", item.Code, err)
	}

	r.logger.Debug("Stock pushed",
		zap.String("item_code", item.Code),
		zap.Int64("product_id", item.ExternalID.ParentID),
		zap.Int64("variant_id", item.ExternalID.ChildID),
		zap.Int64("quantity", qty),
	)
	if r.events != nil {
		ev := integration.NewStockPushedEvent(item, item.ExternalID.ParentID, item.ExternalID.ChildID, qty)
		if err := r.events.Publish(ctx, ev); err != nil {
			r.logger.Warn("Failed to publish stock event", zap.Error(err))
		}
	}
	return true, nil
}

// variantFigures reads the price and stock fields of a pushed variant.
type variantFigures struct {
	prices integration.PriceRepository
	stock  integration.StockRepository
}

func newVariantFigures(prices integration.PriceRepository, stock integration.StockRepository) *variantFigures {
	return &variantFigures{prices: prices, stock: stock}
}

// variantFor builds the variant payload of an item: rate from the configured price
// list, quantity from the configured warehouse, and the variant id when mapped.
func (f *variantFigures) variantFor(ctx context.Context, settings *integration.Settings, item *integration.LocalItem) (integration.RemoteVariant, error) {
	rv := integration.RemoteVariant{
		SKU:                 item.SKU,
		InventoryManagement: integration.InventoryManagementShopify,
	}
	if item.ExternalID.HasChild() {
		rv.ID = item.ExternalID.ChildID
	}

	price, err := f.prices.Find(ctx, item.Code, settings.PriceListName())
	switch {
	case err == nil:
		rv.Price = price.Rate
	case !errors.Is(err, integration.ErrPriceNotFound):
		return rv, fmt.Errorf("load price of %s: %w", item.Code, err)
	}

	level, err := f.stock.Find(ctx, item.Code, settings.Warehouse)
	switch {
	case err == nil:
		rv.InventoryQuantity = level.QuantityOnHand.IntPart()
	case !errors.Is(err, integration.ErrStockNotFound):
		return rv, fmt.Errorf("load stock of %s: %w", item.Code, err)
	}
	return rv, nil
}
