package integration

import (
	"strconv"

	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeItem  = "Item"
	AggregateTypeOrder = "SalesOrder"
	AggregateTypeStock = "Bin"

	EventTypeStockLevelChanged = "StockLevelChanged"
	EventTypeProductSynced     = "ProductSynced"
	EventTypeOrderSynced       = "OrderSynced"
	EventTypeStockPushed       = "StockPushed"
)

// StockLevelChanged is published when a local bin quantity changes
type StockLevelChanged struct {
	shared.BaseDomainEvent
	ItemCode       string          `json:"item_code"`
	Warehouse      string          `json:"warehouse"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
}

// NewStockLevelChangedEvent creates a StockLevelChanged event for a bin
func NewStockLevelChangedEvent(level *StockLevel) *StockLevelChanged {
	return &StockLevelChanged{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockLevelChanged, AggregateTypeStock, level.ItemCode),
		ItemCode:        level.ItemCode,
		Warehouse:       level.Warehouse,
		QuantityOnHand:  level.QuantityOnHand,
	}
}

// StockLevel returns the bin carried by the event
func (e *StockLevelChanged) StockLevel() *StockLevel {
	return &StockLevel{
		ItemCode:       e.ItemCode,
		Warehouse:      e.Warehouse,
		QuantityOnHand: e.QuantityOnHand,
		UpdatedAt:      e.OccurredAt(),
	}
}

// ProductSynced is published after a remote product was pulled or pushed
type ProductSynced struct {
	shared.BaseDomainEvent
	ProductID int64  `json:"product_id"`
	ItemCode  string `json:"item_code"`
	Direction string `json:"direction"`
}

const (
	DirectionPull = "pull"
	DirectionPush = "push"
)

// NewProductSyncedEvent creates a ProductSynced event
func NewProductSyncedEvent(item *LocalItem, direction string) *ProductSynced {
	return &ProductSynced{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductSynced, AggregateTypeItem, item.Code),
		ProductID:       item.ExternalID.ParentID,
		ItemCode:        item.Code,
		Direction:       direction,
	}
}

// OrderSynced is published when an order reached a new progress state
type OrderSynced struct {
	shared.BaseDomainEvent
	OrderID   int64         `json:"order_id"`
	OrderName string        `json:"order_name"`
	Progress  OrderProgress `json:"progress"`
}

// NewOrderSyncedEvent creates an OrderSynced event
func NewOrderSyncedEvent(order *LocalOrder) *OrderSynced {
	return &OrderSynced{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderSynced, AggregateTypeOrder, strconv.FormatInt(order.ExternalID.ParentID, 10)),
		OrderID:         order.ExternalID.ParentID,
		OrderName:       order.Name,
		Progress:        order.Progress,
	}
}

// StockPushed is published after a quantity was written upstream
type StockPushed struct {
	shared.BaseDomainEvent
	ItemCode  string `json:"item_code"`
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

// NewStockPushedEvent creates a StockPushed event
func NewStockPushedEvent(item *LocalItem, productID, variantID, qty int64) *StockPushed {
	return &StockPushed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockPushed, AggregateTypeItem, item.Code),
		ItemCode:        item.Code,
		ProductID:       productID,
		VariantID:       variantID,
		Quantity:        qty,
	}
}
