package integration

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"testing"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImageSource struct {
	data []byte
	name string
}

func (s stubImageSource) Fetch(context.Context, string) ([]byte, string, error) {
	return s.data, s.name, nil
}

func simpleRemoteProduct() integration.RemoteProduct {
	return integration.RemoteProduct{
		ID:    1,
		Title: "Mug",
		Options: []integration.RemoteOption{
			{Name: "Title", Values: []string{integration.NoOptionsSentinel}},
		},
		Variants: []integration.RemoteVariant{
			{ID: 10, ProductID: 1, SKU: "A1", Price: decimal.RequireFromString("9.99")},
		},
	}
}

func templateRemoteProduct() integration.RemoteProduct {
	return integration.RemoteProduct{
		ID:          2,
		Title:       "Shirt",
		BodyHTML:    "<p>Cotton</p>",
		ProductType: "Apparel",
		Options: []integration.RemoteOption{
			{Name: "Size", Values: []string{"S", "M"}},
			{Name: "Color", Values: []string{"Red"}},
		},
		Variants: []integration.RemoteVariant{
			{ID: 101, SKU: "SH-S", Price: decimal.NewFromInt(20), Option1: strPtr("S"), Option2: strPtr("Red")},
			{ID: 102, SKU: "SH-XL", Price: decimal.NewFromInt(22), Option1: strPtr("XL"), Option2: strPtr("Red")},
		},
	}
}

func newCatalogFixture() (*testStore, *fakeGateway, *CatalogSyncService, *Session) {
	store := newTestStore()
	gw := newFakeGateway()
	svc := NewCatalogSyncService(store.repos(), nil)
	return store, gw, svc, newTestSession(store, gw)
}

func TestCatalogSyncService_PullAll_SimpleProduct(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	gw.products[1] = simpleRemoteProduct()
	ctx := context.Background()

	result, err := svc.PullAll(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusSuccess, result.Status)
	assert.Equal(t, 1, result.SuccessCount)

	require.Equal(t, 1, store.items.count())
	item := store.items.get("10")
	assert.False(t, item.IsTemplate)
	assert.Equal(t, "A1", item.SKU)
	assert.Equal(t, "Mug", item.Name)
	assert.Equal(t, "Mug", item.Description)
	assert.Equal(t, integration.DefaultItemGroup, item.Group)
	assert.Equal(t, integration.ExternalID{ParentID: 1, ChildID: 10}, item.ExternalID)
	assert.Equal(t, "Stores - WH", item.DefaultWarehouse)

	require.Len(t, store.prices.prices, 1)
	price, err := store.prices.Find(ctx, "10", integration.DefaultPriceList)
	require.NoError(t, err)
	assert.True(t, price.Rate.Equal(decimal.RequireFromString("9.99")))

	// a second pull converges on the same records
	_, err = svc.PullAll(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, store.items.count())
	assert.Len(t, store.prices.prices, 1)
}

func TestCatalogSyncService_PullProduct_Template(t *testing.T) {
	store, _, svc, sess := newCatalogFixture()
	ctx := context.Background()
	p := templateRemoteProduct()

	require.NoError(t, svc.PullProduct(ctx, sess, &p))
	require.NoError(t, svc.PullProduct(ctx, sess, &p))

	template := store.items.get("P-2")
	assert.True(t, template.IsTemplate)
	assert.Equal(t, "Apparel", template.Group)
	assert.Equal(t, "<p>Cotton</p>", template.Description)
	assert.Equal(t, []integration.VariantAttribute{{Attribute: "Size"}, {Attribute: "Color"}}, template.Attributes)
	assert.Equal(t, integration.ExternalID{ParentID: 2}, template.ExternalID)

	small := store.items.get("101")
	assert.Equal(t, "P-2", small.TemplateRef)
	assert.Equal(t, []integration.VariantAttribute{
		{Attribute: "Size", Value: "S"},
		{Attribute: "Color", Value: "Red"},
	}, small.Attributes)

	// XL is not a declared Size value, so that slot is left out
	xl := store.items.get("102")
	assert.Equal(t, []integration.VariantAttribute{{Attribute: "Color", Value: "Red"}}, xl.Attributes)

	size, err := store.attributes.FindByName(ctx, "Size")
	require.NoError(t, err)
	assert.Len(t, size.Values, 2)
	assert.Contains(t, store.groups.groups, "Apparel")
	assert.Equal(t, 3, store.items.count())
}

func TestCatalogSyncService_PullProduct_KeepsLocalOnlyFields(t *testing.T) {
	store, _, svc, sess := newCatalogFixture()
	ctx := context.Background()

	existing := mappedItem("10", 1, 10)
	existing.SyncEnabled = false
	existing.DefaultWarehouse = "Other - WH"
	existing.Name = "Old name"
	store.items.put(existing)

	p := simpleRemoteProduct()
	require.NoError(t, svc.PullProduct(ctx, sess, &p))

	item := store.items.get("10")
	assert.Equal(t, "Mug", item.Name)
	assert.False(t, item.SyncEnabled)
	assert.Equal(t, "Other - WH", item.DefaultWarehouse)
}

func TestCatalogSyncService_PullProduct_ExistingAttributeMatchesAbbreviation(t *testing.T) {
	store, _, svc, sess := newCatalogFixture()
	ctx := context.Background()
	require.NoError(t, store.attributes.Save(ctx, integration.NewItemAttribute("Size", []string{"Small"})))

	p := integration.RemoteProduct{
		ID:    3,
		Title: "Hat",
		Options: []integration.RemoteOption{
			{Name: "Size", Values: []string{"Sma"}},
			{Name: "Fit", Values: []string{"Loose"}},
		},
		Variants: []integration.RemoteVariant{
			{ID: 31, Option1: strPtr("Sma"), Option2: strPtr("Loose")},
		},
	}
	require.NoError(t, svc.PullProduct(ctx, sess, &p))

	size, err := store.attributes.FindByName(ctx, "Size")
	require.NoError(t, err)
	assert.Len(t, size.Values, 1)
	variant := store.items.get("31")
	assert.Equal(t, "Small", variant.AttributeValue("Size"))
}

func TestCatalogSyncService_PullAll_RecordsPerProductFailures(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	gw.products[1] = simpleRemoteProduct()
	gw.products[4] = integration.RemoteProduct{ID: 4, Title: "Broken"}

	result, err := svc.PullAll(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusPartial, result.Status)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.FailedItems, 1)
	assert.Equal(t, "4", result.FailedItems[0].Reference)
	assert.Equal(t, 1, store.items.count())
}

func TestCatalogSyncService_PullAll_ListFailure(t *testing.T) {
	_, gw, svc, sess := newCatalogFixture()
	gw.listProductsErr = &integration.RemoteHTTPError{StatusCode: http.StatusServiceUnavailable}

	_, err := svc.PullAll(context.Background(), sess)
	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
}

func TestCatalogSyncService_MarkProductDeleted(t *testing.T) {
	store, _, svc, sess := newCatalogFixture()
	ctx := context.Background()
	p := templateRemoteProduct()
	require.NoError(t, svc.PullProduct(ctx, sess, &p))

	marked, err := svc.MarkProductDeleted(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)
	for _, code := range []string{"P-2", "101", "102"} {
		item := store.items.get(code)
		assert.True(t, item.RemoteDeleted, code)
		assert.False(t, item.SyncEnabled, code)
	}

	marked, err = svc.MarkProductDeleted(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestCatalogSyncService_PushItem_CreatesSimpleProduct(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	ctx := context.Background()

	item, err := integration.NewLocalItem("WIDGET")
	require.NoError(t, err)
	item.Name = "Widget"
	item.SKU = "W-1"
	store.items.put(item)
	require.NoError(t, store.prices.Upsert(ctx, &integration.PriceEntry{
		ItemCode: "WIDGET", PriceList: integration.DefaultPriceList, Rate: decimal.RequireFromString("4.50"),
	}))
	require.NoError(t, store.stock.Save(ctx, &integration.StockLevel{
		ItemCode: "WIDGET", Warehouse: "Stores - WH", QuantityOnHand: decimal.NewFromInt(7),
	}))

	result, err := svc.PushAll(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)

	require.Len(t, gw.created, 1)
	payload := gw.created[0]
	assert.Equal(t, "Widget", payload.Title)
	require.Len(t, payload.Variants, 1)
	assert.Equal(t, "W-1", payload.Variants[0].SKU)
	assert.True(t, payload.Variants[0].Price.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, int64(7), payload.Variants[0].InventoryQuantity)
	assert.Equal(t, integration.InventoryManagementShopify, payload.Variants[0].InventoryManagement)

	stored := store.items.get("WIDGET")
	assert.True(t, stored.ExternalID.HasChild())
	assert.Positive(t, stored.ExternalID.ParentID)

	// mapped now: the next push updates in place
	gw.products[stored.ExternalID.ParentID] = integration.RemoteProduct{ID: stored.ExternalID.ParentID}
	_, err = svc.PushAll(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, gw.created, 1)
	require.Len(t, gw.updated, 1)
	assert.Equal(t, stored.ExternalID.ParentID, gw.updated[0].ID)
	assert.Equal(t, stored.ExternalID.ChildID, gw.updated[0].Variants[0].ID)
}

func TestCatalogSyncService_PushItem_RecreatesStaleProduct(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	ctx := context.Background()

	item := mappedItem("OLD", 55, 550)
	store.items.put(item)

	require.NoError(t, svc.PushItem(ctx, sess, item))
	require.Len(t, gw.created, 1)
	assert.Empty(t, gw.updated)
	stored := store.items.get("OLD")
	assert.NotEqual(t, int64(55), stored.ExternalID.ParentID)
	assert.Positive(t, stored.ExternalID.ParentID)
}

func TestCatalogSyncService_PushAll_RecordsRemoteFailure(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	ctx := context.Background()

	store.items.put(mappedItem("A", 60, 600), mappedItem("B", 61, 610))
	gw.products[61] = integration.RemoteProduct{ID: 61}
	gw.getProductErr[60] = &integration.RemoteHTTPError{StatusCode: http.StatusInternalServerError}

	result, err := svc.PushAll(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusPartial, result.Status)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Empty(t, gw.created)
	assert.Equal(t, int64(60), store.items.get("A").ExternalID.ParentID)
}

func TestCatalogSyncService_PushAll_StopsOnAuthFailure(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	store.items.put(mappedItem("A", 60, 600))
	gw.getProductErr[60] = &integration.RemoteHTTPError{StatusCode: http.StatusUnauthorized}

	_, err := svc.PushAll(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, integration.IsFatal(err))
}

func TestCatalogSyncService_PushItem_TemplateMapsVariantsBySKU(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	gw.reverseCreatedVariants = true
	ctx := context.Background()

	template, _ := integration.NewLocalItem("SHIRT")
	template.Name = "Shirt"
	template.IsTemplate = true
	small, _ := integration.NewLocalItem("SHIRT-S")
	small.TemplateRef = "SHIRT"
	small.SKU = "SH-S"
	small.Attributes = []integration.VariantAttribute{{Attribute: "Size", Value: "S"}, {Attribute: "Color", Value: "Red"}}
	medium, _ := integration.NewLocalItem("SHIRT-M")
	medium.TemplateRef = "SHIRT"
	medium.SKU = "SH-M"
	medium.Attributes = []integration.VariantAttribute{{Attribute: "Size", Value: "M"}, {Attribute: "Color", Value: "Red"}}
	store.items.put(template, small, medium)

	result, err := svc.PushAll(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)

	require.Len(t, gw.created, 1)
	payload := gw.created[0]
	assert.Equal(t, []integration.RemoteOption{
		{Name: "Size", Position: 1, Values: []string{"M", "S"}},
		{Name: "Color", Position: 2, Values: []string{"Red"}},
	}, payload.Options)
	require.Len(t, payload.Variants, 2)
	require.NotNil(t, payload.Variants[0].Option1)
	assert.Equal(t, "M", *payload.Variants[0].Option1)
	assert.Equal(t, "SH-M", payload.Variants[0].SKU)

	storedTemplate := store.items.get("SHIRT")
	storedSmall := store.items.get("SHIRT-S")
	storedMedium := store.items.get("SHIRT-M")
	assert.False(t, storedTemplate.ExternalID.HasChild())
	assert.Equal(t, storedTemplate.ExternalID.ParentID, storedSmall.ExternalID.ParentID)
	assert.NotEqual(t, storedSmall.ExternalID.ChildID, storedMedium.ExternalID.ChildID)
	assert.True(t, storedSmall.ExternalID.HasChild())
	assert.True(t, storedMedium.ExternalID.HasChild())
}

func TestCatalogSyncService_PushItem_KeepsOptionSlotsOfPulledTemplate(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	ctx := context.Background()
	p := templateRemoteProduct()
	gw.products[p.ID] = p
	require.NoError(t, svc.PullProduct(ctx, sess, &p))

	template := store.items.get("P-2")
	require.NoError(t, svc.PushItem(ctx, sess, &template))

	require.Len(t, gw.updated, 1)
	payload := gw.updated[0]
	assert.Equal(t, []integration.RemoteOption{
		{Name: "Size", Position: 1, Values: []string{"S"}},
		{Name: "Color", Position: 2, Values: []string{"Red"}},
	}, payload.Options)

	require.Len(t, payload.Variants, 2)
	small, xl := payload.Variants[0], payload.Variants[1]
	assert.Equal(t, int64(101), small.ID)
	require.NotNil(t, small.Option1)
	require.NotNil(t, small.Option2)
	assert.Equal(t, "S", *small.Option1)
	assert.Equal(t, "Red", *small.Option2)

	// the variant has no Size value; Color must stay in the Color slot
	assert.Equal(t, int64(102), xl.ID)
	assert.Nil(t, xl.Option1)
	require.NotNil(t, xl.Option2)
	assert.Equal(t, "Red", *xl.Option2)
}

func TestCatalogSyncService_PushItem_ConcurrentPushesCreateOnce(t *testing.T) {
	store, gw, svc, sess := newCatalogFixture()
	gw.keepCreated = true
	ctx := context.Background()

	item, err := integration.NewLocalItem("LAMP")
	require.NoError(t, err)
	item.Name = "Lamp"
	item.SKU = "L-1"
	store.items.put(item)

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			own := store.items.get("LAMP")
			errs[i] = svc.PushItem(ctx, sess, &own)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, gw.created, 1)
	require.Len(t, gw.updated, 3)
	stored := store.items.get("LAMP")
	for _, u := range gw.updated {
		assert.Equal(t, stored.ExternalID.ParentID, u.ID)
	}
}

func TestCatalogSyncService_PullProduct_LosesCreateRaceToWebhook(t *testing.T) {
	store, _, svc, sess := newCatalogFixture()
	ctx := context.Background()
	p := simpleRemoteProduct()

	// the webhook for the same product lands between lookup and insert
	fired := false
	store.items.beforeCreate = func() {
		if fired {
			return
		}
		fired = true
		webhook := simpleRemoteProduct()
		webhook.Title = "Mug (webhook)"
		require.NoError(t, svc.PullProduct(ctx, sess, &webhook))
	}

	require.NoError(t, svc.PullProduct(ctx, sess, &p))
	assert.True(t, fired)

	require.Equal(t, 1, store.items.count())
	item := store.items.get("10")
	assert.Equal(t, integration.ExternalID{ParentID: 1, ChildID: 10}, item.ExternalID)
	assert.Equal(t, "Mug (webhook)", item.Name)
	assert.Len(t, store.prices.prices, 1)

	// the next pull updates the stored record in place
	require.NoError(t, svc.PullProduct(ctx, sess, &p))
	assert.Equal(t, 1, store.items.count())
	assert.Equal(t, "Mug", store.items.get("10").Name)
}

func TestOptionSlots(t *testing.T) {
	template := integration.LocalItem{Attributes: []integration.VariantAttribute{
		{Attribute: "Size"}, {Attribute: "Color"}, {Attribute: "Fit"},
	}}
	variants := []integration.LocalItem{
		{Attributes: []integration.VariantAttribute{{Attribute: "Color", Value: "Red"}, {Attribute: "Material", Value: "Wool"}}},
		{Attributes: []integration.VariantAttribute{{Attribute: "Size", Value: "M"}}},
	}

	assert.Equal(t, []string{"Size", "Color", "Material"}, optionSlots(&template, variants))
}

func TestMatchVariants(t *testing.T) {
	remote := []integration.RemoteVariant{{ID: 1, SKU: "B"}, {ID: 2, SKU: "A"}}

	t.Run("by sku", func(t *testing.T) {
		ids, err := matchVariants([]integration.LocalItem{{SKU: "A"}, {SKU: "B"}}, remote)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, ids)
	})

	t.Run("positional fallback for equal lengths", func(t *testing.T) {
		ids, err := matchVariants([]integration.LocalItem{{}, {}}, []integration.RemoteVariant{{ID: 7}, {ID: 8}})
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 8}, ids)
	})

	t.Run("length mismatch without sku", func(t *testing.T) {
		_, err := matchVariants([]integration.LocalItem{{}}, remote)
		assert.ErrorIs(t, err, integration.ErrVariantMappingFails)
	})

	t.Run("unknown sku", func(t *testing.T) {
		_, err := matchVariants([]integration.LocalItem{{SKU: "Z"}}, remote)
		assert.ErrorIs(t, err, integration.ErrVariantMappingFails)
	})
}

func TestCatalogSyncService_PushItem_Images(t *testing.T) {
	t.Run("local file is attached once", func(t *testing.T) {
		store, gw, svc, sess := newCatalogFixture()
		svc.SetImageSource(stubImageSource{data: []byte("png-bytes"), name: "mug.png"})
		ctx := context.Background()

		item, _ := integration.NewLocalItem("MUG")
		item.Name = "Mug"
		item.Image = "files/mug.png"
		store.items.put(item)

		require.NoError(t, svc.PushItem(ctx, sess, item))
		require.Len(t, gw.images, 1)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), gw.images[0].Attachment)
		assert.Equal(t, "mug.png", gw.images[0].Filename)
		assert.Equal(t, "files/mug.png", store.items.get("MUG").SyncedImage)

		stored := store.items.get("MUG")
		gw.products[stored.ExternalID.ParentID] = integration.RemoteProduct{ID: stored.ExternalID.ParentID}
		require.NoError(t, svc.PushItem(ctx, sess, &stored))
		assert.Len(t, gw.images, 1)
	})

	t.Run("url is passed by reference", func(t *testing.T) {
		store, gw, svc, sess := newCatalogFixture()
		item, _ := integration.NewLocalItem("CUP")
		item.Image = "https://cdn.example.com/cup.png"
		store.items.put(item)

		require.NoError(t, svc.PushItem(context.Background(), sess, item))
		require.Len(t, gw.images, 1)
		assert.Equal(t, "https://cdn.example.com/cup.png", gw.images[0].Src)
		assert.Empty(t, gw.images[0].Attachment)
	})
}

func TestCatalogSyncService_PublishesProductSynced(t *testing.T) {
	_, _, svc, sess := newCatalogFixture()
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)

	p := simpleRemoteProduct()
	require.NoError(t, svc.PullProduct(context.Background(), sess, &p))

	events := pub.ofType(integration.EventTypeProductSynced)
	require.Len(t, events, 1)
	ev, ok := events[0].(*integration.ProductSynced)
	require.True(t, ok)
	assert.Equal(t, "10", ev.ItemCode)
	assert.Equal(t, integration.DirectionPull, ev.Direction)
}

func TestIsRemoteURL(t *testing.T) {
	assert.True(t, isRemoteURL("https://x/y.png"))
	assert.True(t, isRemoteURL("ftp://x/y.png"))
	assert.False(t, isRemoteURL("/files/y.png"))
}
