package integration

import (
	"context"
	"testing"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	store     *testStore
	gw        *fakeGateway
	catalog   *CatalogSyncService
	customers *CustomerSyncService
	orders    *OrderSyncService
	sess      *Session
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store := newTestStore()
	gw := newFakeGateway()
	repos := store.repos()
	catalog := NewCatalogSyncService(repos, nil)
	customers := NewCustomerSyncService(repos, nil)
	orders := NewOrderSyncService(repos, NewEntityResolver(repos), customers, catalog, nil)

	store.items.put(mappedItem("10", 1, 10))
	c, err := integration.NewCustomerFromRemote(&integration.RemoteCustomer{ID: 5, FirstName: "Ann", LastName: "Lee"}, "", "")
	require.NoError(t, err)
	require.NoError(t, store.customers.Create(context.Background(), c))

	return &orderFixture{
		store:     store,
		gw:        gw,
		catalog:   catalog,
		customers: customers,
		orders:    orders,
		sess:      newTestSession(store, gw),
	}
}

func paidOrder77() *integration.RemoteOrder {
	return &integration.RemoteOrder{
		ID:              77,
		Name:            "#1077",
		FinancialStatus: "paid",
		Customer:        &integration.RemoteCustomer{ID: 5},
		LineItems: []integration.RemoteLineItem{
			{ID: 700, ProductID: int64Ptr(1), Title: "Mug", Quantity: 2, Price: decimal.RequireFromString("9.99")},
		},
	}
}

func TestOrderSyncService_PaidOrderCreatesOrderAndInvoice(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	ro := paidOrder77()

	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))

	require.Len(t, f.store.orders.orders, 1)
	order := f.store.orders.orders[77]
	assert.Equal(t, integration.DefaultSalesOrderSeries+"00001", order.Name)
	assert.Equal(t, "Ann Lee", order.CustomerName)
	assert.True(t, order.IsSubmitted())
	assert.True(t, order.IsFullyBilled())
	assert.Equal(t, integration.OrderProgressInvoiced, order.Progress)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "10", order.Lines[0].ItemCode)
	assert.True(t, order.Lines[0].Qty.Equal(decimal.NewFromInt(2)))
	assert.True(t, order.GrandTotal.Equal(decimal.RequireFromString("19.98")))
	assert.NotEmpty(t, order.RawPayload)

	require.Len(t, f.store.invoices.invoices, 1)
	invoice := f.store.invoices.invoices[77]
	assert.True(t, invoice.IsPOS)
	assert.Equal(t, "Cash - WH", invoice.CashBankAccount)
	assert.Equal(t, order.Name, invoice.OrderName)
	assert.Empty(t, f.store.deliveries.deliveries)

	// replaying the same payload changes nothing
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.Len(t, f.store.orders.orders, 1)
	assert.Len(t, f.store.invoices.invoices, 1)
	assert.Empty(t, f.store.deliveries.deliveries)
	assert.Len(t, f.store.customers.customers, 1)
}

func TestOrderSyncService_UnpaidOrderIsInvoicedOnceLaterPaid(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	ro := paidOrder77()
	ro.FinancialStatus = "pending"

	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.Len(t, f.store.orders.orders, 1)
	assert.Empty(t, f.store.invoices.invoices)

	ro.FinancialStatus = "paid"
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.Len(t, f.store.invoices.invoices, 1)
	order := f.store.orders.orders[77]
	assert.True(t, order.IsFullyBilled())
}

func TestOrderSyncService_DeliveriesPerFulfillment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	ro := paidOrder77()
	ro.Fulfillments = []integration.RemoteFulfillment{
		{ID: 900, OrderID: 77, LineItems: []integration.RemoteLineItem{{ProductID: int64Ptr(1), Quantity: 1}}},
		{ID: 901, OrderID: 77, LineItems: []integration.RemoteLineItem{{ProductID: int64Ptr(1), Quantity: 1}}},
	}

	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	require.Len(t, f.store.deliveries.deliveries, 2)
	d := f.store.deliveries.deliveries[900]
	assert.Equal(t, int64(77), d.OrderID)
	assert.Equal(t, integration.DocStatusDraft, d.DocStatus)
	require.Len(t, d.Lines, 1)
	assert.True(t, d.Lines[0].Qty.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, integration.OrderProgressDelivered, f.store.orders.orders[77].Progress)

	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.Len(t, f.store.deliveries.deliveries, 2)
}

func TestOrderSyncService_DeliverySumsRepeatedItems(t *testing.T) {
	f := newOrderFixture(t)
	ro := paidOrder77()
	ro.Fulfillments = []integration.RemoteFulfillment{{
		ID:      910,
		OrderID: 77,
		LineItems: []integration.RemoteLineItem{
			{ProductID: int64Ptr(1), VariantID: int64Ptr(10), Quantity: 1},
			{ProductID: int64Ptr(1), VariantID: int64Ptr(10), Quantity: 1},
		},
	}}

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, ro))
	d := f.store.deliveries.deliveries[910]
	require.Len(t, d.Lines, 1)
	assert.True(t, d.Lines[0].Qty.Equal(decimal.NewFromInt(2)))
}

func TestOrderSyncService_DeliveryKeepsRepeatedLinesApart(t *testing.T) {
	f := newOrderFixture(t)
	ro := paidOrder77()
	ro.LineItems = []integration.RemoteLineItem{
		{ID: 700, ProductID: int64Ptr(1), Title: "Mug", Quantity: 1, Price: decimal.RequireFromString("9.99")},
		{ID: 701, ProductID: int64Ptr(1), Title: "Mug (gift)", Quantity: 1, Price: decimal.RequireFromString("7.50")},
	}
	ro.Fulfillments = []integration.RemoteFulfillment{{
		ID:      920,
		OrderID: 77,
		LineItems: []integration.RemoteLineItem{
			{ID: 700, ProductID: int64Ptr(1), Quantity: 1},
			{ID: 701, ProductID: int64Ptr(1), Quantity: 1},
		},
	}}

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, ro))
	order := f.store.orders.orders[77]
	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(700), order.Lines[0].RemoteLineID)
	assert.Equal(t, int64(701), order.Lines[1].RemoteLineID)

	d := f.store.deliveries.deliveries[920]
	require.Len(t, d.Lines, 2)
	total := decimal.Zero
	for _, l := range d.Lines {
		assert.Equal(t, "10", l.ItemCode)
		assert.True(t, l.Qty.Equal(decimal.NewFromInt(1)))
		total = total.Add(l.Qty)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(2)))
	assert.True(t, d.Lines[1].Rate.Equal(decimal.RequireFromString("7.50")))
}

func TestOrderSyncService_LosesCreateRaceToWebhook(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	ro := paidOrder77()

	// the orders/paid webhook for the same order is stored between lookup and insert
	fired := false
	f.store.orders.beforeCreate = func() {
		if fired {
			return
		}
		fired = true
		require.NoError(t, f.orders.SyncOrder(ctx, f.sess, paidOrder77()))
	}

	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.True(t, fired)

	require.Len(t, f.store.orders.orders, 1)
	order := f.store.orders.orders[77]
	assert.Equal(t, integration.DefaultSalesOrderSeries+"00002", order.Name)
	assert.True(t, order.IsFullyBilled())
	require.Len(t, f.store.invoices.invoices, 1)
	assert.Equal(t, order.Name, f.store.invoices.invoices[77].OrderName)
}

func TestOrderSyncService_UnmappedTaxAbortsBeforeWrites(t *testing.T) {
	f := newOrderFixture(t)
	ro := paidOrder77()
	ro.Customer = &integration.RemoteCustomer{ID: 6, FirstName: "New"}
	ro.TaxLines = []integration.RemoteTaxLine{{Title: "GST", Rate: decimal.RequireFromString("0.05")}}

	err := f.orders.SyncOrder(context.Background(), f.sess, ro)
	require.Error(t, err)
	assert.True(t, integration.IsFatal(err))
	var cfgErr *integration.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "tax_accounts", cfgErr.Field)

	assert.Empty(t, f.store.orders.orders)
	assert.Len(t, f.store.customers.customers, 1)
}

func TestOrderSyncService_TaxesAndShipping(t *testing.T) {
	f := newOrderFixture(t)
	ro := paidOrder77()
	ro.TotalLineItemsPrice = decimal.RequireFromString("19.98")
	ro.TotalPrice = decimal.RequireFromString("26.98")
	ro.TotalTax = decimal.RequireFromString("2.00")
	ro.TaxLines = []integration.RemoteTaxLine{{Title: "VAT", Rate: decimal.RequireFromString("0.1"), Price: decimal.RequireFromString("2.00")}}
	ro.ShippingLines = []integration.RemoteShippingLine{{Title: "Standard", Price: decimal.NewFromInt(5)}}

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, ro))
	order := f.store.orders.orders[77]
	require.Len(t, order.Taxes, 2)

	vat := order.Taxes[0]
	assert.Equal(t, integration.ChargeTypeOnNetTotal, vat.ChargeType)
	assert.Equal(t, "VAT - WH", vat.AccountHead)
	assert.True(t, vat.Rate.Equal(decimal.NewFromInt(10)))
	assert.False(t, vat.IncludedInPrintRate)
	assert.True(t, vat.TaxAmount.Equal(decimal.RequireFromString("2")))

	shipping := order.Taxes[1]
	assert.Equal(t, integration.ChargeTypeActual, shipping.ChargeType)
	assert.Equal(t, "Freight - WH", shipping.AccountHead)
	assert.True(t, shipping.TaxAmount.Equal(decimal.NewFromInt(5)))

	assert.True(t, order.GrandTotal.Equal(decimal.RequireFromString("26.98")))
}

func TestOrderSyncService_PullsUnknownProduct(t *testing.T) {
	f := newOrderFixture(t)
	f.gw.products[3] = integration.RemoteProduct{
		ID:       3,
		Title:    "Teapot",
		Variants: []integration.RemoteVariant{{ID: 30, Price: decimal.NewFromInt(25)}},
	}
	ro := paidOrder77()
	ro.LineItems = []integration.RemoteLineItem{
		{ID: 701, ProductID: int64Ptr(3), VariantID: int64Ptr(30), Quantity: 1, Price: decimal.NewFromInt(25)},
	}

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, ro))
	assert.Equal(t, "Teapot", f.store.items.get("30").Name)
	require.Len(t, f.store.orders.orders[77].Lines, 1)
	assert.Equal(t, "30", f.store.orders.orders[77].Lines[0].ItemCode)
}

func TestOrderSyncService_UnresolvableLines(t *testing.T) {
	f := newOrderFixture(t)
	ro := paidOrder77()
	ro.LineItems = append(ro.LineItems,
		integration.RemoteLineItem{ID: 702, Title: "Gift card", Quantity: 1, Price: decimal.NewFromInt(10)},
		integration.RemoteLineItem{ID: 703, ProductID: int64Ptr(404), Quantity: 1, Price: decimal.NewFromInt(3)},
	)

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, ro))
	assert.Len(t, f.store.orders.orders[77].Lines, 1)

	only := paidOrder77()
	only.ID = 78
	only.LineItems = []integration.RemoteLineItem{{ID: 704, Title: "Gift card", Quantity: 1}}
	err := f.orders.SyncOrder(context.Background(), f.sess, only)
	var gap *integration.ResolutionGap
	require.ErrorAs(t, err, &gap)
	assert.NotContains(t, f.store.orders.orders, int64(78))
}

func TestOrderSyncService_SyncAll(t *testing.T) {
	f := newOrderFixture(t)
	noCustomer := paidOrder77()
	noCustomer.ID = 79
	noCustomer.Customer = nil
	f.gw.orders = []integration.RemoteOrder{*paidOrder77(), *noCustomer}

	result, err := f.orders.SyncAll(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, integration.SyncStatusSuccess, result.Status)
}

func TestOrderSyncService_Cancellation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	ro := paidOrder77()
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))

	cancelled := time.Now()
	ro.CancelledAt = &cancelled
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.True(t, f.store.orders.orders[77].RemoteDeleted)

	unknown := paidOrder77()
	unknown.ID = 80
	unknown.CancelledAt = &cancelled
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, unknown))
	assert.NotContains(t, f.store.orders.orders, int64(80))
}

func TestOrderSyncService_MarkOrderDeleted(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, paidOrder77()))

	require.NoError(t, f.orders.MarkOrderDeleted(ctx, 77))
	assert.True(t, f.store.orders.orders[77].RemoteDeleted)
	require.NoError(t, f.orders.MarkOrderDeleted(ctx, 12345))

	// a tombstoned order is not invoiced or delivered again
	ro := paidOrder77()
	ro.Fulfillments = []integration.RemoteFulfillment{{ID: 950, OrderID: 77}}
	require.NoError(t, f.orders.SyncOrder(ctx, f.sess, ro))
	assert.Empty(t, f.store.deliveries.deliveries)
}

func TestOrderSyncService_PublishesOrderSynced(t *testing.T) {
	f := newOrderFixture(t)
	pub := &recordingPublisher{}
	f.orders.SetEventPublisher(pub)

	require.NoError(t, f.orders.SyncOrder(context.Background(), f.sess, paidOrder77()))
	events := pub.ofType(integration.EventTypeOrderSynced)
	require.Len(t, events, 2)
	last, ok := events[1].(*integration.OrderSynced)
	require.True(t, ok)
	assert.Equal(t, integration.OrderProgressInvoiced, last.Progress)
}
