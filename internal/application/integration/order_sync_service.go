package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const applyDiscountOnNetTotal = "Net Total"

// OrderSyncService drives remote orders through order → invoice → delivery.
// Every step is keyed by a remote id so replays and concurrent webhooks converge.
type OrderSyncService struct {
	resolver   *EntityResolver
	customers  *CustomerSyncService
	catalog    *CatalogSyncService
	orders     integration.OrderRepository
	invoices   integration.InvoiceRepository
	deliveries integration.DeliveryRepository
	series     integration.NamingSeries
	events     shared.EventPublisher
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewOrderSyncService creates an OrderSyncService
func NewOrderSyncService(
	repos Repositories,
	resolver *EntityResolver,
	customers *CustomerSyncService,
	catalog *CatalogSyncService,
	logger *zap.Logger,
) *OrderSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncService{
		resolver:   resolver,
		customers:  customers,
		catalog:    catalog,
		orders:     repos.Orders,
		invoices:   repos.Invoices,
		deliveries: repos.Deliveries,
		series:     repos.Series,
		logger:     logger.Named("orders"),
	}
}

// SetEventPublisher sets the publisher for OrderSynced events
func (s *OrderSyncService) SetEventPublisher(p shared.EventPublisher) {
	s.events = p
}

// SetSyncMetrics sets the metrics recorder
func (s *OrderSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// SyncAll processes every order returned by the remote list endpoint.
func (s *OrderSyncService) SyncAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageOrders)

	orders, err := sess.Remote.ListOrders(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list orders: %w", err)
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		ro := &orders[i]
		ref := strconv.FormatInt(ro.ID, 10)
		err := s.SyncOrder(ctx, sess, ro)
		s.metrics.RecordEntity(ctx, StageOrders, err)

		var gap *integration.ResolutionGap
		switch {
		case err == nil:
			result.Succeeded()
		case integration.IsFatal(err):
			s.logger.Error("Order sync aborted",
				zap.Int64("order_id", ro.ID),
				zap.Error(err),
			)
			return result.Finish(), err
		case errors.As(err, &gap):
			s.logger.Warn("Order skipped", zap.Int64("order_id", ro.ID), zap.Error(err))
			result.Skipped()
		default:
			s.logger.Warn("Failed to sync order", zap.Int64("order_id", ro.ID), zap.Error(err))
			result.Failed(ref, err)
		}
	}
	return result.Finish(), nil
}

// SyncOrder applies one remote order. The order is created at most once; invoice
// and deliveries are evaluated against the stored order on every call.
func (s *OrderSyncService) SyncOrder(ctx context.Context, sess *Session, ro *integration.RemoteOrder) error {
	if ro == nil || ro.ID <= 0 {
		return integration.ErrRemoteInvalidPayload
	}
	artifacts, err := s.resolver.ResolveLocalOrderArtifacts(ctx, ro.ID)
	if err != nil {
		return err
	}

	order := artifacts.Order
	if ro.CancelledAt != nil {
		if order != nil && !order.RemoteDeleted {
			return s.tombstone(ctx, order)
		}
		return nil
	}
	if order == nil {
		order, err = s.createOrder(ctx, sess, ro)
		if err != nil {
			return err
		}
	}
	if order.RemoteDeleted {
		return nil
	}

	if ro.IsPaid() && artifacts.Invoice == nil && order.IsSubmitted() && !order.IsFullyBilled() {
		if err := s.createInvoice(ctx, sess, order); err != nil {
			return err
		}
	}

	for i := range ro.Fulfillments {
		f := &ro.Fulfillments[i]
		if _, done := artifacts.Deliveries[f.ID]; done || !order.IsSubmitted() {
			continue
		}
		if err := s.createDelivery(ctx, sess, order, f); err != nil {
			return err
		}
	}
	return nil
}

// MarkOrderDeleted tombstones the local order of a remote order removed upstream.
func (s *OrderSyncService) MarkOrderDeleted(ctx context.Context, orderID int64) error {
	order, err := s.orders.FindByExternalID(ctx, orderID)
	if errors.Is(err, integration.ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if order.RemoteDeleted {
		return nil
	}
	return s.tombstone(ctx, order)
}

func (s *OrderSyncService) tombstone(ctx context.Context, order *integration.LocalOrder) error {
	order.MarkRemoteDeleted()
	if err := s.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("tombstone order %s: %w", order.Name, err)
	}
	s.logger.Info("Order tombstoned",
		zap.String("order", order.Name),
		zap.Int64("order_id", order.ExternalID.ParentID),
	)
	return nil
}

// createOrder builds and submits the sales order. A missing tax account aborts the
// order with a ConfigurationError before anything is written.
func (s *OrderSyncService) createOrder(ctx context.Context, sess *Session, ro *integration.RemoteOrder) (*integration.LocalOrder, error) {
	ref := strconv.FormatInt(ro.ID, 10)
	if ro.Customer == nil || ro.Customer.ID <= 0 {
		return nil, &integration.ResolutionGap{Entity: "customer", Reference: "order " + ref}
	}
	taxes, err := taxCharges(sess.Settings, ro)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.EnsureCustomer(ctx, sess, ro.Customer)
	if err != nil {
		return nil, err
	}

	lines := make([]integration.OrderLine, 0, len(ro.LineItems))
	for i := range ro.LineItems {
		li := &ro.LineItems[i]
		item, err := s.resolveLineItem(ctx, sess, li)
		var gap *integration.ResolutionGap
		if errors.As(err, &gap) {
			s.logger.Warn("Order line skipped",
				zap.Int64("order_id", ro.ID),
				zap.Int64("line_item_id", li.ID),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		name := li.Name
		if name == "" {
			name = li.Title
		}
		lines = append(lines, integration.OrderLine{
			RemoteLineID: li.ID,
			ItemCode:     item.Code,
			ItemName:     name,
			Qty:          decimal.NewFromInt(li.Quantity),
			Rate:         li.Price,
			UOM:          item.StockUOM,
			Warehouse:    sess.Settings.Warehouse,
		})
	}
	if len(lines) == 0 {
		return nil, &integration.ResolutionGap{Entity: "order lines", Reference: "order " + ref}
	}

	name, err := s.series.Next(ctx, sess.Settings.OrderSeries())
	if err != nil {
		return nil, fmt.Errorf("next order name: %w", err)
	}
	raw, err := json.Marshal(ro)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &integration.LocalOrder{
		ID:              uuid.New(),
		Name:            name,
		ExternalID:      integration.ExternalID{ParentID: ro.ID},
		CustomerName:    customer.Name,
		DeliveryDate:    now,
		PriceList:       sess.Settings.PriceListName(),
		ApplyDiscountOn: applyDiscountOnNetTotal,
		DiscountAmount:  ro.DiscountTotal(),
		Lines:           lines,
		Taxes:           taxes,
		FinancialStatus: ro.FinancialStatus,
		Progress:        integration.OrderProgressNew,
		RawPayload:      raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.CalculateTotals()
	order.Submit()

	err = s.orders.Create(ctx, order)
	if errors.Is(err, integration.ErrDuplicateExternal) {
		return s.orders.FindByExternalID(ctx, ro.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create order %s: %w", ref, err)
	}
	s.logger.Info("Order created",
		zap.Int64("order_id", ro.ID),
		zap.String("order", order.Name),
		zap.String("grand_total", order.GrandTotal.String()),
	)
	s.publish(ctx, order)
	return order, nil
}

// taxCharges maps tax lines to percentage charges on net total and shipping lines
// to actual-amount charges.
func taxCharges(settings *integration.Settings, ro *integration.RemoteOrder) ([]integration.TaxCharge, error) {
	hundred := decimal.NewFromInt(100)
	included := ro.TaxIncludedInPrice()
	charges := make([]integration.TaxCharge, 0, len(ro.TaxLines)+len(ro.ShippingLines))
	for _, tl := range ro.TaxLines {
		account, err := settings.TaxAccount(tl.Title)
		if err != nil {
			return nil, err
		}
		rate := tl.Rate.Mul(hundred)
		charges = append(charges, integration.TaxCharge{
			ChargeType:          integration.ChargeTypeOnNetTotal,
			AccountHead:         account,
			Description:         tl.Title + "-" + rate.String(),
			Rate:                rate,
			IncludedInPrintRate: included,
		})
	}
	for _, sl := range ro.ShippingLines {
		account, err := settings.TaxAccount(sl.Title)
		if err != nil {
			return nil, err
		}
		charges = append(charges, integration.TaxCharge{
			ChargeType:  integration.ChargeTypeActual,
			AccountHead: account,
			Description: sl.Title,
			TaxAmount:   sl.Price,
		})
	}
	return charges, nil
}

// resolveLineItem returns the local item of an order line, pulling the product
// first when it is not mapped yet.
func (s *OrderSyncService) resolveLineItem(ctx context.Context, sess *Session, li *integration.RemoteLineItem) (*integration.LocalItem, error) {
	productID, variantID := li.ProductRef()
	ref := li.Title
	if ref == "" {
		ref = strconv.FormatInt(li.ID, 10)
	}
	if productID <= 0 && variantID <= 0 {
		return nil, &integration.ResolutionGap{Entity: "item", Reference: ref}
	}

	item, err := s.resolver.ResolveLocal(ctx, productID, variantID)
	if err != nil || item != nil {
		return item, err
	}
	if productID <= 0 {
		return nil, &integration.ResolutionGap{Entity: "item", Reference: ref}
	}

	if err := s.catalog.SyncProductByID(ctx, sess, productID); err != nil {
		if integration.IsFatal(err) {
			return nil, err
		}
		return nil, &integration.ResolutionGap{Entity: "item", Reference: ref, Cause: err}
	}
	item, err = s.resolver.ResolveLocal(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &integration.ResolutionGap{Entity: "item", Reference: ref}
	}
	return item, nil
}

func (s *OrderSyncService) createInvoice(ctx context.Context, sess *Session, order *integration.LocalOrder) error {
	name, err := s.series.Next(ctx, sess.Settings.InvoiceSeries())
	if err != nil {
		return fmt.Errorf("next invoice name: %w", err)
	}
	invoice, err := integration.NewInvoiceFromOrder(order, name, sess.Settings.CashBankAccount)
	if err != nil {
		return err
	}
	err = s.invoices.Create(ctx, invoice)
	if errors.Is(err, integration.ErrDuplicateExternal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create invoice for %s: %w", order.Name, err)
	}

	order.MarkBilled()
	if err := s.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("mark %s billed: %w", order.Name, err)
	}
	s.logger.Info("Invoice created",
		zap.String("order", order.Name),
		zap.String("invoice", invoice.Name),
	)
	s.publish(ctx, order)
	return nil
}

func (s *OrderSyncService) createDelivery(ctx context.Context, sess *Session, order *integration.LocalOrder, f *integration.RemoteFulfillment) error {
	if f.ID <= 0 {
		return fmt.Errorf("%w: fulfillment without id on order %s", integration.ErrRemoteInvalidPayload, order.Name)
	}
	fulfilled := make([]integration.FulfilledLine, 0, len(f.LineItems))
	for i := range f.LineItems {
		li := &f.LineItems[i]
		productID, variantID := li.ProductRef()
		item, err := s.resolver.ResolveLocal(ctx, productID, variantID)
		if err != nil {
			return err
		}
		if item == nil {
			continue
		}
		fulfilled = append(fulfilled, integration.FulfilledLine{
			RemoteLineID: li.ID,
			ItemCode:     item.Code,
			Qty:          decimal.NewFromInt(li.Quantity),
		})
	}

	name, err := s.series.Next(ctx, sess.Settings.DeliverySeries())
	if err != nil {
		return fmt.Errorf("next delivery name: %w", err)
	}
	delivery, err := integration.NewDeliveryFromOrder(order, name, f.ID, fulfilled)
	if err != nil {
		return err
	}
	err = s.deliveries.Create(ctx, delivery)
	if errors.Is(err, integration.ErrDuplicateExternal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create delivery for fulfillment %d: %w", f.ID, err)
	}

	order.Progress = order.Progress.Advance(integration.OrderProgressDelivered)
	order.UpdatedAt = time.Now()
	if err := s.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("advance %s: %w", order.Name, err)
	}
	s.logger.Info("Delivery created",
		zap.String("order", order.Name),
		zap.String("delivery", delivery.Name),
		zap.Int64("fulfillment_id", f.ID),
	)
	s.publish(ctx, order)
	return nil
}

func (s *OrderSyncService) publish(ctx context.Context, order *integration.LocalOrder) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, integration.NewOrderSyncedEvent(order)); err != nil {
		s.logger.Warn("Failed to publish order event", zap.Error(err))
	}
}
