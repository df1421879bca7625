package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"go.uber.org/zap"
)

// StockService records local bin changes and announces them.
type StockService struct {
	stock  integration.StockRepository
	events shared.EventPublisher
	logger *zap.Logger
}

// NewStockService creates a StockService
func NewStockService(repos Repositories, events shared.EventPublisher, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{stock: repos.Stock, events: events, logger: logger.Named("stock")}
}

// RecordStockLevel stores the bin and publishes StockLevelChanged.
func (s *StockService) RecordStockLevel(ctx context.Context, level *integration.StockLevel) error {
	if level.ItemCode == "" || level.Warehouse == "" {
		return integration.ErrInvalidItemCode
	}
	level.UpdatedAt = time.Now()
	if err := s.stock.Save(ctx, level); err != nil {
		return fmt.Errorf("save stock level: %w", err)
	}
	if s.events == nil {
		return nil
	}
	return s.events.Publish(ctx, integration.NewStockLevelChangedEvent(level))
}

// StockLevelChangedHandler runs the single-item inventory push when a bin changes.
type StockLevelChangedHandler struct {
	settings   integration.SettingsRepository
	factory    integration.GatewayFactory
	items      integration.ItemRepository
	reconciler *InventoryReconciler
	logger     *zap.Logger
}

// NewStockLevelChangedHandler creates a StockLevelChangedHandler
func NewStockLevelChangedHandler(
	repos Repositories,
	factory integration.GatewayFactory,
	reconciler *InventoryReconciler,
	logger *zap.Logger,
) *StockLevelChangedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLevelChangedHandler{
		settings:   repos.Settings,
		factory:    factory,
		items:      repos.Items,
		reconciler: reconciler,
		logger:     logger.Named("stock_handler"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *StockLevelChangedHandler) EventTypes() []string {
	return []string{integration.EventTypeStockLevelChanged}
}

// Handle pushes the changed quantity when the integration is enabled.
func (h *StockLevelChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*integration.StockLevelChanged)
	if !ok {
		return nil
	}
	settings, err := h.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled || settings.ShopURL == "" {
		return nil
	}
	item, err := h.items.FindByCode(ctx, ev.ItemCode)
	if errors.Is(err, integration.ErrItemNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sess, err := NewSession(settings, h.factory)
	if err != nil {
		return err
	}
	pushed, err := h.reconciler.UpdateItemStock(ctx, sess, item, ev.StockLevel())
	if err != nil {
		return err
	}
	h.logger.Debug("stock level change handled",
		zap.String("item_code", ev.ItemCode),
		zap.String("warehouse", ev.Warehouse),
		zap.Bool("pushed", pushed),
	)
	return nil
}

var _ shared.EventHandler = (*StockLevelChangedHandler)(nil)
