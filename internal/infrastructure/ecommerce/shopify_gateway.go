package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
)

// ShopifyGateway implements integration.Gateway over the admin REST API.
type ShopifyGateway struct {
	client *Client
}

// NewShopifyGateway wraps a client
func NewShopifyGateway(client *Client) *ShopifyGateway {
	return &ShopifyGateway{client: client}
}

// VerifyCredentials reads one product.
func (g *ShopifyGateway) VerifyCredentials(ctx context.Context) error {
	var env productsEnvelope
	return g.client.Get(ctx, "products.json?limit=1", &env)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ListProducts returns every product across all pages.
func (g *ShopifyGateway) ListProducts(ctx context.Context) ([]integration.RemoteProduct, error) {
	products := make([]integration.RemoteProduct, 0)
	err := g.client.GetPages(ctx, "products.json", nil, func(body []byte) error {
		var env productsEnvelope
		if err := decode(body, &env); err != nil {
			return err
		}
		products = append(products, env.Products...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct fetches one product; a missing product is a 404 RemoteHTTPError.
func (g *ShopifyGateway) GetProduct(ctx context.Context, productID int64) (*integration.RemoteProduct, error) {
	if productID <= 0 {
		return nil, integration.ErrInvalidExternalID
	}
	var env productEnvelope
	if err := g.client.Get(ctx, fmt.Sprintf("products/%d.json", productID), &env); err != nil {
		return nil, err
	}
	return requireBody(env.Product)
}

// CreateProduct creates a product and returns it with remote ids filled in.
func (g *ShopifyGateway) CreateProduct(ctx context.Context, product *integration.RemoteProduct) (*integration.RemoteProduct, error) {
	var out productEnvelope
	if err := g.client.Post(ctx, "products.json", productEnvelope{Product: product}, &out); err != nil {
		return nil, err
	}
	return requireBody(out.Product)
}

// UpdateProduct replaces the product identified by product.ID.
func (g *ShopifyGateway) UpdateProduct(ctx context.Context, product *integration.RemoteProduct) (*integration.RemoteProduct, error) {
	if product == nil || product.ID <= 0 {
		return nil, integration.ErrInvalidExternalID
	}
	var out productEnvelope
	if err := g.client.Put(ctx, fmt.Sprintf("products/%d.json", product.ID), productEnvelope{Product: product}, &out); err != nil {
		return nil, err
	}
	return requireBody(out.Product)
}

// AddProductImage uploads an image by attachment or by source URL.
func (g *ShopifyGateway) AddProductImage(ctx context.Context, productID int64, image *integration.RemoteImage) error {
	if productID <= 0 {
		return integration.ErrInvalidExternalID
	}
	if image == nil || (image.Src == "") == (image.Attachment == "") {
		return fmt.Errorf("%w: image needs exactly one of src or attachment", integration.ErrRemoteInvalidPayload)
	}
	return g.client.Post(ctx, fmt.Sprintf("products/%d/images.json", productID), imageEnvelope{Image: image}, nil)
}

// UpdateVariantStock patches one variant through its parent product.
func (g *ShopifyGateway) UpdateVariantStock(ctx context.Context, productID int64, update integration.VariantStockUpdate) error {
	if productID <= 0 || update.ID <= 0 {
		return integration.ErrInvalidExternalID
	}
	payload := stockEnvelope{Product: integration.ProductStockUpdate{
		ID:       productID,
		Variants: []integration.VariantStockUpdate{update},
	}}
	return g.client.Put(ctx, fmt.Sprintf("products/%d.json", productID), payload, nil)
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// ListCustomers returns every customer across all pages.
func (g *ShopifyGateway) ListCustomers(ctx context.Context) ([]integration.RemoteCustomer, error) {
	customers := make([]integration.RemoteCustomer, 0)
	err := g.client.GetPages(ctx, "customers.json", nil, func(body []byte) error {
		var env customersEnvelope
		if err := decode(body, &env); err != nil {
			return err
		}
		customers = append(customers, env.Customers...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// CreateCustomer creates a customer with its addresses.
func (g *ShopifyGateway) CreateCustomer(ctx context.Context, customer *integration.RemoteCustomer) (*integration.RemoteCustomer, error) {
	var out customerEnvelope
	if err := g.client.Post(ctx, "customers.json", customerEnvelope{Customer: customer}, &out); err != nil {
		return nil, err
	}
	return requireBody(out.Customer)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// ListOrders returns orders in any status across all pages.
func (g *ShopifyGateway) ListOrders(ctx context.Context) ([]integration.RemoteOrder, error) {
	orders := make([]integration.RemoteOrder, 0)
	err := g.client.GetPages(ctx, "orders.json", url.Values{"status": {"any"}}, func(body []byte) error {
		var env ordersEnvelope
		if err := decode(body, &env); err != nil {
			return err
		}
		orders = append(orders, env.Orders...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches one order.
func (g *ShopifyGateway) GetOrder(ctx context.Context, orderID int64) (*integration.RemoteOrder, error) {
	if orderID <= 0 {
		return nil, integration.ErrInvalidExternalID
	}
	var env orderEnvelope
	if err := g.client.Get(ctx, fmt.Sprintf("orders/%d.json", orderID), &env); err != nil {
		return nil, err
	}
	return requireBody(env.Order)
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ListWebhooks returns the registered subscriptions.
func (g *ShopifyGateway) ListWebhooks(ctx context.Context) ([]integration.RemoteWebhook, error) {
	var env webhooksEnvelope
	if err := g.client.Get(ctx, "webhooks.json", &env); err != nil {
		return nil, err
	}
	if env.Webhooks == nil {
		env.Webhooks = make([]integration.RemoteWebhook, 0)
	}
	return env.Webhooks, nil
}

// CreateWebhook registers a subscription.
func (g *ShopifyGateway) CreateWebhook(ctx context.Context, webhook *integration.RemoteWebhook) (*integration.RemoteWebhook, error) {
	var out webhookEnvelope
	if err := g.client.Post(ctx, "webhooks.json", webhookEnvelope{Webhook: webhook}, &out); err != nil {
		return nil, err
	}
	return requireBody(out.Webhook)
}

// DeleteWebhook removes a subscription.
func (g *ShopifyGateway) DeleteWebhook(ctx context.Context, webhookID int64) error {
	if webhookID <= 0 {
		return integration.ErrInvalidExternalID
	}
	return g.client.Delete(ctx, fmt.Sprintf("webhooks/%d.json", webhookID))
}

func requireBody[T any](v *T) (*T, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: empty response envelope", integration.ErrRemoteInvalidPayload)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// GatewayFactory builds a ShopifyGateway per settings snapshot. The HTTP client
// and its connection pool are shared.
type GatewayFactory struct {
	cfg        ClientConfig
	httpClient *http.Client
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewGatewayFactory creates a GatewayFactory
func NewGatewayFactory(cfg ClientConfig, logger *zap.Logger) *GatewayFactory {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayFactory{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("shopify"),
	}
}

// SetSyncMetrics sets the metrics recorder passed to every client
func (f *GatewayFactory) SetSyncMetrics(m *telemetry.SyncMetrics) {
	f.metrics = m
}

// SetHTTPClient replaces the shared HTTP client
func (f *GatewayFactory) SetHTTPClient(c *http.Client) {
	if c != nil {
		f.httpClient = c
	}
}

// Gateway implements integration.GatewayFactory.
func (f *GatewayFactory) Gateway(settings *integration.Settings) (integration.Gateway, error) {
	client, err := NewClient(settings, f.cfg, f.httpClient)
	if err != nil {
		return nil, err
	}
	client.SetSyncMetrics(f.metrics)
	client.SetLogger(f.logger)
	return NewShopifyGateway(client), nil
}

var (
	_ integration.Gateway        = (*ShopifyGateway)(nil)
	_ integration.GatewayFactory = (*GatewayFactory)(nil)
)
