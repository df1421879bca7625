package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Webhook topics handled by the dispatcher
const (
	TopicOrdersCreate             = "orders/create"
	TopicOrdersUpdated            = "orders/updated"
	TopicOrdersPaid               = "orders/paid"
	TopicOrdersFulfilled          = "orders/fulfilled"
	TopicOrdersPartiallyFulfilled = "orders/partially_fulfilled"
	TopicOrdersCancelled          = "orders/cancelled"
	TopicOrdersDelete             = "orders/delete"
	TopicProductsCreate           = "products/create"
	TopicProductsUpdate           = "products/update"
	TopicProductsDelete           = "products/delete"
	TopicCustomersCreate          = "customers/create"
	TopicCustomersUpdate          = "customers/update"
	TopicFulfillmentsCreate       = "fulfillments/create"
	TopicFulfillmentsUpdate       = "fulfillments/update"
)

// WebhookEvent is a verified inbound webhook.
type WebhookEvent struct {
	Topic string
	// WebhookID is the delivery id used for deduplication; may be empty
	WebhookID string
	Body      []byte
}

type topicHandler func(ctx context.Context, sess *Session, body []byte) error

// VerifyWebhookSignature checks the base64 HMAC-SHA256 of the raw body against the
// header value. The body must also be well-formed JSON.
func VerifyWebhookSignature(body []byte, secret, signature string) error {
	if secret == "" {
		return &integration.AuthenticationError{Reason: "no webhook secret configured"}
	}
	if signature == "" {
		return &integration.AuthenticationError{Reason: "missing signature"}
	}
	expected := SignWebhookBody(body, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &integration.AuthenticationError{Reason: "signature mismatch"}
	}
	if !json.Valid(body) {
		return &integration.AuthenticationError{Reason: "malformed body"}
	}
	return nil
}

// SignWebhookBody returns the signature the remote platform would send for body.
func SignWebhookBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookDispatcher routes verified webhooks to the same per-entity operations the
// scheduled pass uses.
type WebhookDispatcher struct {
	settings    integration.SettingsRepository
	factory     integration.GatewayFactory
	catalog     *CatalogSyncService
	customers   *CustomerSyncService
	orders      *OrderSyncService
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	handlers    map[string]topicHandler
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// NewWebhookDispatcher creates a WebhookDispatcher with the static topic table.
func NewWebhookDispatcher(
	settings integration.SettingsRepository,
	factory integration.GatewayFactory,
	catalog *CatalogSyncService,
	customers *CustomerSyncService,
	orders *OrderSyncService,
	logger *zap.Logger,
) *WebhookDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &WebhookDispatcher{
		settings:   settings,
		factory:    factory,
		catalog:    catalog,
		customers:  customers,
		orders:     orders,
		idemConfig: shared.DefaultIdempotencyConfig(),
		logger:     logger.Named("webhooks"),
	}
	d.handlers = map[string]topicHandler{
		TopicOrdersCreate:             d.handleOrder,
		TopicOrdersUpdated:            d.handleOrder,
		TopicOrdersPaid:               d.handleOrder,
		TopicOrdersFulfilled:          d.handleOrder,
		TopicOrdersPartiallyFulfilled: d.handleOrder,
		TopicOrdersCancelled:          d.handleOrderRemoved,
		TopicOrdersDelete:             d.handleOrderRemoved,
		TopicProductsCreate:           d.handleProduct,
		TopicProductsUpdate:           d.handleProduct,
		TopicProductsDelete:           d.handleProductDeleted,
		TopicCustomersCreate:          d.handleCustomer,
		TopicCustomersUpdate:          d.handleCustomer,
		TopicFulfillmentsCreate:       d.handleFulfillment,
		TopicFulfillmentsUpdate:       d.handleFulfillment,
	}
	return d
}

// SetIdempotencyStore enables delivery-id deduplication
func (d *WebhookDispatcher) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	d.idempotency = store
	d.idemConfig = cfg
}

// SetSyncMetrics sets the metrics recorder
func (d *WebhookDispatcher) SetSyncMetrics(m *telemetry.SyncMetrics) {
	d.metrics = m
}

// Topics returns the handled topics in sorted order
func (d *WebhookDispatcher) Topics() []string {
	topics := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Handles reports whether topic has a handler
func (d *WebhookDispatcher) Handles(topic string) bool {
	_, ok := d.handlers[topic]
	return ok
}

// Dispatch runs the handler for a verified event. Unknown topics, a disabled
// integration and already processed deliveries are ignored without error.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event WebhookEvent) error {
	handler, ok := d.handlers[event.Topic]
	if !ok {
		d.logger.Debug("Ignoring webhook topic", zap.String("topic", event.Topic))
		d.metrics.RecordWebhook(ctx, event.Topic, telemetry.WebhookOutcomeIgnored)
		return nil
	}

	settings, err := d.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		d.logger.Debug("Integration disabled, dropping webhook", zap.String("topic", event.Topic))
		d.metrics.RecordWebhook(ctx, event.Topic, telemetry.WebhookOutcomeIgnored)
		return nil
	}

	dedupe := d.idempotency != nil && d.idemConfig.Enabled && event.WebhookID != ""
	if dedupe {
		processed, err := d.idempotency.IsProcessed(ctx, event.WebhookID)
		if err != nil {
			d.logger.Warn("Idempotency check failed", zap.String("webhook_id", event.WebhookID), zap.Error(err))
		} else if processed {
			d.logger.Debug("Duplicate webhook delivery",
				zap.String("topic", event.Topic),
				zap.String("webhook_id", event.WebhookID),
			)
			d.metrics.RecordWebhook(ctx, event.Topic, telemetry.WebhookOutcomeDuplicate)
			return nil
		}
	}

	sess, err := NewSession(settings, d.factory)
	if err != nil {
		return err
	}
	if err := handler(ctx, sess, event.Body); err != nil {
		d.logger.Error("Webhook handler failed",
			zap.String("topic", event.Topic),
			zap.String("webhook_id", event.WebhookID),
			zap.Error(err),
		)
		d.metrics.RecordWebhook(ctx, event.Topic, telemetry.WebhookOutcomeFailed)
		return err
	}

	if dedupe {
		if _, err := d.idempotency.MarkProcessed(ctx, event.WebhookID, d.idemConfig.TTL); err != nil {
			d.logger.Warn("Failed to mark webhook processed", zap.String("webhook_id", event.WebhookID), zap.Error(err))
		}
	}
	d.metrics.RecordWebhook(ctx, event.Topic, telemetry.WebhookOutcomeProcessed)
	return nil
}

func decodePayload(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrRemoteInvalidPayload, err)
	}
	return nil
}

func (d *WebhookDispatcher) handleOrder(ctx context.Context, sess *Session, body []byte) error {
	var ro integration.RemoteOrder
	if err := decodePayload(body, &ro); err != nil {
		return err
	}
	return d.handleOrderPayload(ctx, sess, &ro)
}

func (d *WebhookDispatcher) handleOrderRemoved(ctx context.Context, _ *Session, body []byte) error {
	var del integration.RemoteDeletion
	if err := decodePayload(body, &del); err != nil {
		return err
	}
	return d.orders.MarkOrderDeleted(ctx, del.ID)
}

func (d *WebhookDispatcher) handleProduct(ctx context.Context, sess *Session, body []byte) error {
	var p integration.RemoteProduct
	if err := decodePayload(body, &p); err != nil {
		return err
	}
	return d.catalog.PullProduct(ctx, sess, &p)
}

func (d *WebhookDispatcher) handleProductDeleted(ctx context.Context, _ *Session, body []byte) error {
	var del integration.RemoteDeletion
	if err := decodePayload(body, &del); err != nil {
		return err
	}
	n, err := d.catalog.MarkProductDeleted(ctx, del.ID)
	if err != nil {
		return err
	}
	d.logger.Info("Product tombstoned", zap.Int64("product_id", del.ID), zap.Int("items", n))
	return nil
}

func (d *WebhookDispatcher) handleCustomer(ctx context.Context, sess *Session, body []byte) error {
	var rc integration.RemoteCustomer
	if err := decodePayload(body, &rc); err != nil {
		return err
	}
	_, err := d.customers.EnsureCustomer(ctx, sess, &rc)
	return err
}

func (d *WebhookDispatcher) handleFulfillment(ctx context.Context, sess *Session, body []byte) error {
	var f integration.RemoteFulfillment
	if err := decodePayload(body, &f); err != nil {
		return err
	}
	if f.OrderID <= 0 {
		return fmt.Errorf("%w: fulfillment %d has no order id", integration.ErrRemoteInvalidPayload, f.ID)
	}
	ro, err := sess.Remote.GetOrder(ctx, f.OrderID)
	if err != nil {
		return fmt.Errorf("get order %d: %w", f.OrderID, err)
	}
	return d.handleOrderPayload(ctx, sess, ro)
}

func (d *WebhookDispatcher) handleOrderPayload(ctx context.Context, sess *Session, ro *integration.RemoteOrder) error {
	err := d.orders.SyncOrder(ctx, sess, ro)
	var gap *integration.ResolutionGap
	if errors.As(err, &gap) {
		d.logger.Warn("Order skipped", zap.Int64("order_id", ro.ID), zap.Error(err))
		return nil
	}
	return err
}
