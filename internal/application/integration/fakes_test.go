package integration

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

type memItems struct {
	mu    sync.Mutex
	items map[string]integration.LocalItem

	// beforeCreate runs ahead of Create, outside the lock
	beforeCreate func()
}

func newMemItems() *memItems {
	return &memItems{items: make(map[string]integration.LocalItem)}
}

func cloneItem(i integration.LocalItem) integration.LocalItem {
	i.Attributes = append([]integration.VariantAttribute(nil), i.Attributes...)
	return i
}

func (m *memItems) FindByCode(_ context.Context, code string) (*integration.LocalItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[code]
	if !ok {
		return nil, integration.ErrItemNotFound
	}
	c := cloneItem(item)
	return &c, nil
}

func (m *memItems) FindByExternalID(_ context.Context, productID, variantID int64) (*integration.LocalItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ExternalID.ParentID == productID && item.ExternalID.ChildID == variantID {
			c := cloneItem(item)
			return &c, nil
		}
	}
	return nil, integration.ErrItemNotFound
}

func (m *memItems) filter(keep func(integration.LocalItem) bool, less func(a, b integration.LocalItem) bool) []integration.LocalItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]integration.LocalItem, 0)
	for _, item := range m.items {
		if keep(item) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byCode(a, b integration.LocalItem) bool { return a.Code < b.Code }

func (m *memItems) FindByProductID(_ context.Context, productID int64) ([]integration.LocalItem, error) {
	return m.filter(
		func(i integration.LocalItem) bool { return i.ExternalID.ParentID == productID },
		func(a, b integration.LocalItem) bool { return a.ExternalID.ChildID < b.ExternalID.ChildID },
	), nil
}

func (m *memItems) FindVariantsOf(_ context.Context, templateCode string) ([]integration.LocalItem, error) {
	return m.filter(func(i integration.LocalItem) bool { return i.TemplateRef == templateCode }, byCode), nil
}

func (m *memItems) FindSyncEnabled(_ context.Context) ([]integration.LocalItem, error) {
	return m.filter(func(i integration.LocalItem) bool { return i.SyncEnabled && !i.RemoteDeleted }, byCode), nil
}

func (m *memItems) conflicts(item *integration.LocalItem) bool {
	if item.ExternalID.IsZero() {
		return false
	}
	for code, other := range m.items {
		if code != item.Code && other.ExternalID == item.ExternalID {
			return true
		}
	}
	return false
}

func (m *memItems) Create(_ context.Context, item *integration.LocalItem) error {
	if m.beforeCreate != nil {
		m.beforeCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.Code]; ok || m.conflicts(item) {
		return integration.ErrDuplicateExternal
	}
	m.items[item.Code] = cloneItem(*item)
	return nil
}

func (m *memItems) Update(_ context.Context, item *integration.LocalItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.Code]; !ok {
		return integration.ErrItemNotFound
	}
	if m.conflicts(item) {
		return integration.ErrDuplicateExternal
	}
	m.items[item.Code] = cloneItem(*item)
	return nil
}

func (m *memItems) put(items ...*integration.LocalItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range items {
		m.items[i.Code] = cloneItem(*i)
	}
}

func (m *memItems) get(code string) integration.LocalItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[code]
}

func (m *memItems) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memAttributes struct {
	mu    sync.Mutex
	attrs map[string]integration.ItemAttribute
}

func cloneAttr(a integration.ItemAttribute) integration.ItemAttribute {
	a.Values = append([]integration.ItemAttributeValue(nil), a.Values...)
	return a
}

func (m *memAttributes) FindByName(_ context.Context, name string) (*integration.ItemAttribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attrs[name]
	if !ok {
		return nil, integration.ErrAttributeNotFound
	}
	c := cloneAttr(a)
	return &c, nil
}

func (m *memAttributes) Save(_ context.Context, attr *integration.ItemAttribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attrs[attr.Name]
	if !ok {
		m.attrs[attr.Name] = cloneAttr(*attr)
		return nil
	}
	merged := cloneAttr(stored)
	for _, v := range attr.Values {
		merged.AppendValue(v.Value)
	}
	m.attrs[attr.Name] = merged
	*attr = cloneAttr(merged)
	return nil
}

type memGroups struct {
	mu     sync.Mutex
	groups map[string]integration.ItemGroup
}

func (m *memGroups) Ensure(_ context.Context, group integration.ItemGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[group.Name]; !ok {
		m.groups[group.Name] = group
	}
	return nil
}

type memPrices struct {
	mu     sync.Mutex
	prices map[string]integration.PriceEntry
}

func priceKey(code, list string) string { return code + "|" + list }

func (m *memPrices) Find(_ context.Context, itemCode, priceList string) (*integration.PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[priceKey(itemCode, priceList)]
	if !ok {
		return nil, integration.ErrPriceNotFound
	}
	return &p, nil
}

func (m *memPrices) Upsert(_ context.Context, entry *integration.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[priceKey(entry.ItemCode, entry.PriceList)] = *entry
	return nil
}

type memStock struct {
	mu     sync.Mutex
	levels map[string]integration.StockLevel
}

func (m *memStock) Find(_ context.Context, itemCode, warehouse string) (*integration.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[priceKey(itemCode, warehouse)]
	if !ok {
		return nil, integration.ErrStockNotFound
	}
	return &l, nil
}

func (m *memStock) Save(_ context.Context, level *integration.StockLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[priceKey(level.ItemCode, level.Warehouse)] = *level
	return nil
}

type memCustomers struct {
	mu        sync.Mutex
	customers []integration.LocalCustomer

	beforeCreate func()
}

func (m *memCustomers) FindByExternalID(_ context.Context, customerID int64) (*integration.LocalCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ExternalID.ParentID == customerID {
			cc := c
			return &cc, nil
		}
	}
	return nil, integration.ErrCustomerNotFound
}

func (m *memCustomers) FindByName(_ context.Context, name string) (*integration.LocalCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Name == name {
			cc := c
			return &cc, nil
		}
	}
	return nil, integration.ErrCustomerNotFound
}

func (m *memCustomers) FindPendingPush(_ context.Context) ([]integration.LocalCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]integration.LocalCustomer, 0)
	for _, c := range m.customers {
		if c.SyncEnabled && c.ExternalID.IsZero() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCustomers) Create(_ context.Context, customer *integration.LocalCustomer) error {
	if m.beforeCreate != nil {
		m.beforeCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if !customer.ExternalID.IsZero() && c.ExternalID == customer.ExternalID {
			return integration.ErrDuplicateExternal
		}
	}
	m.customers = append(m.customers, *customer)
	return nil
}

func (m *memCustomers) Update(_ context.Context, customer *integration.LocalCustomer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.customers {
		if c.ID == customer.ID {
			m.customers[i] = *customer
			return nil
		}
	}
	return integration.ErrCustomerNotFound
}

type memOrders struct {
	mu     sync.Mutex
	orders map[int64]integration.LocalOrder

	beforeCreate func()
}

func (m *memOrders) FindByExternalID(_ context.Context, orderID int64) (*integration.LocalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, integration.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memOrders) Create(_ context.Context, order *integration.LocalOrder) error {
	if m.beforeCreate != nil {
		m.beforeCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ExternalID.ParentID]; ok {
		return integration.ErrDuplicateExternal
	}
	m.orders[order.ExternalID.ParentID] = *order
	return nil
}

func (m *memOrders) Update(_ context.Context, order *integration.LocalOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ExternalID.ParentID]; !ok {
		return integration.ErrOrderNotFound
	}
	m.orders[order.ExternalID.ParentID] = *order
	return nil
}

type memInvoices struct {
	mu       sync.Mutex
	invoices map[int64]integration.LocalInvoice
}

func (m *memInvoices) FindByOrderID(_ context.Context, orderID int64) (*integration.LocalInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[orderID]
	if !ok {
		return nil, integration.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *memInvoices) Create(_ context.Context, invoice *integration.LocalInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[invoice.ExternalID.ParentID]; ok {
		return integration.ErrDuplicateExternal
	}
	m.invoices[invoice.ExternalID.ParentID] = *invoice
	return nil
}

type memDeliveries struct {
	mu         sync.Mutex
	deliveries map[int64]integration.LocalDelivery
}

func (m *memDeliveries) FindByOrderID(_ context.Context, orderID int64) ([]integration.LocalDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]integration.LocalDelivery, 0)
	for _, d := range m.deliveries {
		if d.OrderID == orderID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDeliveries) Create(_ context.Context, delivery *integration.LocalDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deliveries[delivery.ExternalID.ParentID]; ok {
		return integration.ErrDuplicateExternal
	}
	m.deliveries[delivery.ExternalID.ParentID] = *delivery
	return nil
}

type memSettings struct {
	mu       sync.Mutex
	settings *integration.Settings
}

func (m *memSettings) Load(_ context.Context) (*integration.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, integration.ErrSettingsNotFound
	}
	s := *m.settings
	return &s, nil
}

func (m *memSettings) Save(_ context.Context, settings *integration.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *settings
	m.settings = &s
	return nil
}

func (m *memSettings) SetEnabled(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return integration.ErrSettingsNotFound
	}
	m.settings.Enabled = enabled
	return nil
}

func (m *memSettings) enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings != nil && m.settings.Enabled
}

type memSeries struct {
	mu       sync.Mutex
	counters map[string]int
}

func (m *memSeries) Next(_ context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[prefix]++
	return fmt.Sprintf("%s%05d", prefix, m.counters[prefix]), nil
}

type testStore struct {
	items      *memItems
	attributes *memAttributes
	groups     *memGroups
	prices     *memPrices
	stock      *memStock
	customers  *memCustomers
	orders     *memOrders
	invoices   *memInvoices
	deliveries *memDeliveries
	settings   *memSettings
	series     *memSeries
}

func newTestStore() *testStore {
	return &testStore{
		items:      newMemItems(),
		attributes: &memAttributes{attrs: make(map[string]integration.ItemAttribute)},
		groups:     &memGroups{groups: make(map[string]integration.ItemGroup)},
		prices:     &memPrices{prices: make(map[string]integration.PriceEntry)},
		stock:      &memStock{levels: make(map[string]integration.StockLevel)},
		customers:  &memCustomers{},
		orders:     &memOrders{orders: make(map[int64]integration.LocalOrder)},
		invoices:   &memInvoices{invoices: make(map[int64]integration.LocalInvoice)},
		deliveries: &memDeliveries{deliveries: make(map[int64]integration.LocalDelivery)},
		settings:   &memSettings{settings: testSettings()},
		series:     &memSeries{counters: make(map[string]int)},
	}
}

func (s *testStore) repos() Repositories {
	return Repositories{
		Items:      s.items,
		Attributes: s.attributes,
		ItemGroups: s.groups,
		Prices:     s.prices,
		Stock:      s.stock,
		Customers:  s.customers,
		Orders:     s.orders,
		Invoices:   s.invoices,
		Deliveries: s.deliveries,
		Settings:   s.settings,
		Series:     s.series,
	}
}

func testSettings() *integration.Settings {
	return &integration.Settings{
		Enabled:         true,
		AppType:         integration.AppTypePrivate,
		ShopURL:         "test-shop.myshopify.com",
		APIKey:          "key",
		Password:        "secret",
		Warehouse:       "Stores - WH",
		CashBankAccount: "Cash - WH",
		WebhookAddress:  "https://erp.example.com/webhooks/shopify",
		TaxAccounts: map[string]string{
			"VAT":      "VAT - WH",
			"Standard": "Freight - WH",
		},
	}
}

// ---------------------------------------------------------------------------
// Fake remote platform
// ---------------------------------------------------------------------------

type fakeGateway struct {
	mu sync.Mutex

	products  map[int64]integration.RemoteProduct
	customers []integration.RemoteCustomer
	orders    []integration.RemoteOrder
	webhooks  []integration.RemoteWebhook
	nextID    int64

	// reverseCreatedVariants returns created variants in reverse order
	reverseCreatedVariants bool

	// keepCreated makes created products readable through GetProduct
	keepCreated bool

	listProductsErr error
	getProductErr   map[int64]error
	createCustErr   error
	verifyErr       error

	created       []integration.RemoteProduct
	updated       []integration.RemoteProduct
	stockUpdates  map[int64][]integration.VariantStockUpdate
	images        []integration.RemoteImage
	createdCusts  []integration.RemoteCustomer
	deletedHooks  []int64
	getOrderCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		products:      make(map[int64]integration.RemoteProduct),
		nextID:        5000,
		getProductErr: make(map[int64]error),
		stockUpdates:  make(map[int64][]integration.VariantStockUpdate),
	}
}

func (g *fakeGateway) id() int64 {
	g.nextID++
	return g.nextID
}

func notFound(path string) error {
	return &integration.RemoteHTTPError{Method: http.MethodGet, Path: path, StatusCode: http.StatusNotFound}
}

func (g *fakeGateway) VerifyCredentials(context.Context) error {
	return g.verifyErr
}

func (g *fakeGateway) ListProducts(context.Context) ([]integration.RemoteProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listProductsErr != nil {
		return nil, g.listProductsErr
	}
	ids := make([]int64, 0, len(g.products))
	for id := range g.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]integration.RemoteProduct, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.products[id])
	}
	return out, nil
}

func (g *fakeGateway) GetProduct(_ context.Context, productID int64) (*integration.RemoteProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.getProductErr[productID]; err != nil {
		return nil, err
	}
	p, ok := g.products[productID]
	if !ok {
		return nil, notFound(fmt.Sprintf("/admin/products/%d.json", productID))
	}
	return &p, nil
}

func (g *fakeGateway) CreateProduct(_ context.Context, product *integration.RemoteProduct) (*integration.RemoteProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, *product)
	p := *product
	p.ID = g.id()
	p.Variants = make([]integration.RemoteVariant, len(product.Variants))
	for i, v := range product.Variants {
		v.ID = g.id()
		v.ProductID = p.ID
		p.Variants[i] = v
	}
	if g.reverseCreatedVariants {
		for i, j := 0, len(p.Variants)-1; i < j; i, j = i+1, j-1 {
			p.Variants[i], p.Variants[j] = p.Variants[j], p.Variants[i]
		}
	}
	if g.keepCreated {
		g.products[p.ID] = p
	}
	return &p, nil
}

func (g *fakeGateway) UpdateProduct(_ context.Context, product *integration.RemoteProduct) (*integration.RemoteProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updated = append(g.updated, *product)
	return product, nil
}

func (g *fakeGateway) AddProductImage(_ context.Context, _ int64, image *integration.RemoteImage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = append(g.images, *image)
	return nil
}

func (g *fakeGateway) UpdateVariantStock(_ context.Context, productID int64, update integration.VariantStockUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stockUpdates[productID] = append(g.stockUpdates[productID], update)
	return nil
}

func (g *fakeGateway) ListCustomers(context.Context) ([]integration.RemoteCustomer, error) {
	return g.customers, nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, customer *integration.RemoteCustomer) (*integration.RemoteCustomer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createCustErr != nil {
		return nil, g.createCustErr
	}
	c := *customer
	c.ID = g.id()
	g.createdCusts = append(g.createdCusts, c)
	return &c, nil
}

func (g *fakeGateway) ListOrders(context.Context) ([]integration.RemoteOrder, error) {
	return g.orders, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, orderID int64) (*integration.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getOrderCalls++
	for _, o := range g.orders {
		if o.ID == orderID {
			oo := o
			return &oo, nil
		}
	}
	return nil, notFound(fmt.Sprintf("/admin/orders/%d.json", orderID))
}

func (g *fakeGateway) ListWebhooks(context.Context) ([]integration.RemoteWebhook, error) {
	return g.webhooks, nil
}

func (g *fakeGateway) CreateWebhook(_ context.Context, webhook *integration.RemoteWebhook) (*integration.RemoteWebhook, error) {
	w := *webhook
	w.ID = g.id()
	g.webhooks = append(g.webhooks, w)
	return &w, nil
}

func (g *fakeGateway) DeleteWebhook(_ context.Context, webhookID int64) error {
	g.deletedHooks = append(g.deletedHooks, webhookID)
	return nil
}

var _ integration.Gateway = (*fakeGateway)(nil)

type fakeFactory struct {
	gw *fakeGateway
}

func (f fakeFactory) Gateway(*integration.Settings) (integration.Gateway, error) {
	return f.gw, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.DomainEvent, 0)
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memIdempotency struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func (m *memIdempotency) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = time.Now()
	return true, nil
}

func (m *memIdempotency) IsProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[eventID]
	return ok, nil
}

func (m *memIdempotency) Close() error { return nil }

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func newTestSession(store *testStore, gw *fakeGateway) *Session {
	return &Session{Settings: testSettings(), Remote: gw}
}

func mappedItem(code string, productID, variantID int64) *integration.LocalItem {
	item, err := integration.NewLocalItem(code)
	if err != nil {
		panic(err)
	}
	item.Name = "Item " + code
	item.ExternalID = integration.ExternalID{ParentID: productID, ChildID: variantID}
	return item
}
