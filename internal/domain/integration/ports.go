package integration

import (
	"context"
)

// ---------------------------------------------------------------------------
// Gateway Port
// ---------------------------------------------------------------------------

// Gateway is the typed view of the remote commerce platform. Implementations live
// in the infrastructure layer and return *RemoteHTTPError for non-2xx responses.
type Gateway interface {
	// VerifyCredentials performs a cheap authenticated read
	VerifyCredentials(ctx context.Context) error

	// ListProducts returns every product, following pagination
	ListProducts(ctx context.Context) ([]RemoteProduct, error)
	GetProduct(ctx context.Context, productID int64) (*RemoteProduct, error)
	CreateProduct(ctx context.Context, product *RemoteProduct) (*RemoteProduct, error)
	UpdateProduct(ctx context.Context, product *RemoteProduct) (*RemoteProduct, error)
	AddProductImage(ctx context.Context, productID int64, image *RemoteImage) error
	// UpdateVariantStock patches one variant under its parent product
	UpdateVariantStock(ctx context.Context, productID int64, update VariantStockUpdate) error

	ListCustomers(ctx context.Context) ([]RemoteCustomer, error)
	CreateCustomer(ctx context.Context, customer *RemoteCustomer) (*RemoteCustomer, error)

	ListOrders(ctx context.Context) ([]RemoteOrder, error)
	GetOrder(ctx context.Context, orderID int64) (*RemoteOrder, error)

	ListWebhooks(ctx context.Context) ([]RemoteWebhook, error)
	CreateWebhook(ctx context.Context, webhook *RemoteWebhook) (*RemoteWebhook, error)
	DeleteWebhook(ctx context.Context, webhookID int64) error
}

// GatewayFactory builds a Gateway bound to one set of credentials. Settings are
// passed explicitly so a gateway never reads configuration behind the caller's back.
type GatewayFactory interface {
	Gateway(settings *Settings) (Gateway, error)
}

// ImageSource loads local image binaries referenced by LocalItem.Image.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) (data []byte, filename string, err error)
}

// ---------------------------------------------------------------------------
// Repository Ports
// ---------------------------------------------------------------------------

// ItemReader reads items by their local or remote keys.
// Not-found lookups return ErrItemNotFound.
type ItemReader interface {
	FindByCode(ctx context.Context, code string) (*LocalItem, error)
	// FindByExternalID matches (product, variant) exactly
	FindByExternalID(ctx context.Context, productID, variantID int64) (*LocalItem, error)
}

// ItemFinder lists items.
type ItemFinder interface {
	// FindByProductID returns every item mapped to a remote product, ordered by variant id
	FindByProductID(ctx context.Context, productID int64) ([]LocalItem, error)
	// FindVariantsOf returns the variants of a template, ordered by code
	FindVariantsOf(ctx context.Context, templateCode string) ([]LocalItem, error)
	// FindSyncEnabled returns items flagged for sync that are not tombstoned
	FindSyncEnabled(ctx context.Context) ([]LocalItem, error)
}

// ItemWriter persists items. Create returns ErrDuplicateExternal when the external
// id is already owned by another item.
type ItemWriter interface {
	Create(ctx context.Context, item *LocalItem) error
	Update(ctx context.Context, item *LocalItem) error
}

// ItemRepository is the full item store
type ItemRepository interface {
	ItemReader
	ItemFinder
	ItemWriter
}

// AttributeRepository stores ItemAttribute setup records
type AttributeRepository interface {
	FindByName(ctx context.Context, name string) (*ItemAttribute, error)
	// Save inserts by name, or merges attr's values into the stored attribute.
	// Stored values are never removed; attr is refreshed with the result.
	Save(ctx context.Context, attr *ItemAttribute) error
}

// ItemGroupRepository stores item groups
type ItemGroupRepository interface {
	// Ensure creates the group if it does not exist
	Ensure(ctx context.Context, group ItemGroup) error
}

// PriceRepository stores price list rates
type PriceRepository interface {
	Find(ctx context.Context, itemCode, priceList string) (*PriceEntry, error)
	// Upsert writes the rate for (item, price list)
	Upsert(ctx context.Context, entry *PriceEntry) error
}

// StockRepository stores warehouse bins
type StockRepository interface {
	Find(ctx context.Context, itemCode, warehouse string) (*StockLevel, error)
	Save(ctx context.Context, level *StockLevel) error
}

// CustomerRepository stores customers and their addresses.
type CustomerRepository interface {
	FindByExternalID(ctx context.Context, customerID int64) (*LocalCustomer, error)
	FindByName(ctx context.Context, name string) (*LocalCustomer, error)
	// FindPendingPush returns sync-enabled customers without a remote id
	FindPendingPush(ctx context.Context) ([]LocalCustomer, error)
	Create(ctx context.Context, customer *LocalCustomer) error
	Update(ctx context.Context, customer *LocalCustomer) error
}

// OrderRepository stores sales orders keyed by remote order id
type OrderRepository interface {
	FindByExternalID(ctx context.Context, orderID int64) (*LocalOrder, error)
	Create(ctx context.Context, order *LocalOrder) error
	Update(ctx context.Context, order *LocalOrder) error
}

// InvoiceRepository stores sales invoices, at most one per remote order
type InvoiceRepository interface {
	FindByOrderID(ctx context.Context, orderID int64) (*LocalInvoice, error)
	Create(ctx context.Context, invoice *LocalInvoice) error
}

// DeliveryRepository stores delivery notes, one per remote fulfillment
type DeliveryRepository interface {
	FindByOrderID(ctx context.Context, orderID int64) ([]LocalDelivery, error)
	Create(ctx context.Context, delivery *LocalDelivery) error
}

// SettingsRepository persists the integration settings row.
type SettingsRepository interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
	// SetEnabled flips only the enable flag
	SetEnabled(ctx context.Context, enabled bool) error
}

// NamingSeries hands out document names: prefix followed by a 5-digit counter.
type NamingSeries interface {
	Next(ctx context.Context, prefix string) (string, error)
}
