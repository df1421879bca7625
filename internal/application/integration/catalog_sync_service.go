package integration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CatalogSyncService reconciles remote products with local items in both directions.
type CatalogSyncService struct {
	items      integration.ItemRepository
	attributes integration.AttributeRepository
	groups     integration.ItemGroupRepository
	prices     integration.PriceRepository
	figures    *variantFigures
	pushing    *keyedMutex
	images     integration.ImageSource
	events     shared.EventPublisher
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewCatalogSyncService creates a CatalogSyncService
func NewCatalogSyncService(repos Repositories, logger *zap.Logger) *CatalogSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogSyncService{
		items:      repos.Items,
		attributes: repos.Attributes,
		groups:     repos.ItemGroups,
		prices:     repos.Prices,
		figures:    newVariantFigures(repos.Prices, repos.Stock),
		pushing:    newKeyedMutex(),
		logger:     logger.Named("catalog"),
	}
}

// SetImageSource sets where local image binaries are read from
func (s *CatalogSyncService) SetImageSource(src integration.ImageSource) {
	s.images = src
}

// SetEventPublisher sets the publisher for ProductSynced events
func (s *CatalogSyncService) SetEventPublisher(p shared.EventPublisher) {
	s.events = p
}

// SetSyncMetrics sets the metrics recorder
func (s *CatalogSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

// PullAll pulls every remote product. Per-product failures are recorded and the
// pass continues; a fatal error stops it.
func (s *CatalogSyncService) PullAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageCatalogPull)

	products, err := sess.Remote.ListProducts(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list products: %w", err)
	}

	for i := range products {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		p := &products[i]
		err := s.PullProduct(ctx, sess, p)
		s.metrics.RecordEntity(ctx, StageCatalogPull, err)
		if err != nil {
			if integration.IsFatal(err) {
				return result.Finish(), err
			}
			s.logger.Warn("Failed to pull product",
				zap.Int64("product_id", p.ID),
				zap.Error(err),
			)
			result.Failed(strconv.FormatInt(p.ID, 10), err)
			continue
		}
		result.Succeeded()
	}
	return result.Finish(), nil
}

// SyncProductByID fetches one product and pulls it. This is the single-item path
// used when an order references a product that is not mapped yet.
func (s *CatalogSyncService) SyncProductByID(ctx context.Context, sess *Session, productID int64) error {
	p, err := sess.Remote.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product %d: %w", productID, err)
	}
	return s.PullProduct(ctx, sess, p)
}

// PullProduct creates or updates the local items for one remote product. Remote
// title, body, type and image win; the sync flag and default warehouse of existing
// items are kept.
func (s *CatalogSyncService) PullProduct(ctx context.Context, sess *Session, p *integration.RemoteProduct) error {
	if p == nil || p.ID <= 0 {
		return integration.ErrRemoteInvalidPayload
	}
	group, err := s.ensureItemGroup(ctx, p.ProductType)
	if err != nil {
		return err
	}

	if !p.IsTemplate() {
		if len(p.Variants) == 0 || p.Variants[0].ID <= 0 {
			return fmt.Errorf("%w: product %d has no variant", integration.ErrRemoteInvalidPayload, p.ID)
		}
		v := &p.Variants[0]
		item, err := s.upsertItem(ctx, sess, p, itemFields{
			variantID: v.ID,
			group:     group,
			sku:       v.SKU,
		})
		if err != nil {
			return err
		}
		if err := s.syncPrice(ctx, sess, item.Code, v); err != nil {
			return err
		}
		s.publish(ctx, integration.NewProductSyncedEvent(item, integration.DirectionPull))
		return nil
	}

	attrs, err := s.syncAttributes(ctx, p.Options)
	if err != nil {
		return err
	}
	names := make([]integration.VariantAttribute, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, integration.VariantAttribute{Attribute: a.Name})
	}
	var templateSKU string
	if len(p.Variants) > 0 {
		templateSKU = p.Variants[0].SKU
	}
	template, err := s.upsertItem(ctx, sess, p, itemFields{
		isTemplate: true,
		group:      group,
		attributes: names,
		sku:        templateSKU,
	})
	if err != nil {
		return err
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if v.ID <= 0 {
			return fmt.Errorf("%w: product %d has a variant without id", integration.ErrRemoteInvalidPayload, p.ID)
		}
		item, err := s.upsertItem(ctx, sess, p, itemFields{
			variantID:   v.ID,
			templateRef: template.Code,
			group:       group,
			attributes:  variantAttributes(attrs, v),
			sku:         v.SKU,
		})
		if err != nil {
			return err
		}
		if err := s.syncPrice(ctx, sess, item.Code, v); err != nil {
			return err
		}
	}
	s.publish(ctx, integration.NewProductSyncedEvent(template, integration.DirectionPull))
	return nil
}

// MarkProductDeleted tombstones every item mapped to a product removed upstream.
func (s *CatalogSyncService) MarkProductDeleted(ctx context.Context, productID int64) (int, error) {
	items, err := s.items.FindByProductID(ctx, productID)
	if err != nil {
		return 0, err
	}
	marked := 0
	for i := range items {
		if items[i].RemoteDeleted {
			continue
		}
		items[i].MarkRemoteDeleted()
		if err := s.items.Update(ctx, &items[i]); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

type itemFields struct {
	variantID   int64
	isTemplate  bool
	templateRef string
	group       string
	attributes  []integration.VariantAttribute
	sku         string
}

func (s *CatalogSyncService) upsertItem(ctx context.Context, sess *Session, p *integration.RemoteProduct, f itemFields) (*integration.LocalItem, error) {
	item, err := s.items.FindByExternalID(ctx, p.ID, f.variantID)
	if err != nil && !errors.Is(err, integration.ErrItemNotFound) {
		return nil, err
	}

	isNew := item == nil
	if isNew {
		item, err = integration.NewLocalItem(integration.ItemCodeFor(p.ID, f.variantID))
		if err != nil {
			return nil, err
		}
		item.ExternalID = integration.ExternalID{ParentID: p.ID, ChildID: f.variantID}
		item.DefaultWarehouse = sess.Settings.Warehouse
	}

	item.Name = p.Title
	item.Description = p.BodyHTML
	if item.Description == "" {
		item.Description = p.Title
	}
	item.Group = f.group
	item.IsTemplate = f.isTemplate
	item.TemplateRef = f.templateRef
	item.Attributes = f.attributes
	item.SKU = f.sku
	item.RemoteDeleted = false
	if p.Image != nil && p.Image.Src != "" {
		item.Image = p.Image.Src
		item.SyncedImage = p.Image.Src
	}

	if !isNew {
		if err := s.items.Update(ctx, item); err != nil {
			return nil, fmt.Errorf("update item %s: %w", item.Code, err)
		}
		return item, nil
	}

	err = s.items.Create(ctx, item)
	if errors.Is(err, integration.ErrDuplicateExternal) {
		// lost a race with a concurrent create: return the winner's record
		existing, findErr := s.items.FindByExternalID(ctx, p.ID, f.variantID)
		if findErr != nil {
			return nil, fmt.Errorf("create item %s: %w", item.Code, err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create item %s: %w", item.Code, err)
	}
	return item, nil
}

func (s *CatalogSyncService) ensureItemGroup(ctx context.Context, productType string) (string, error) {
	if productType == "" {
		return integration.DefaultItemGroup, nil
	}
	err := s.groups.Ensure(ctx, integration.ItemGroup{Name: productType, Parent: integration.DefaultItemGroup})
	if err != nil {
		return "", fmt.Errorf("ensure item group %q: %w", productType, err)
	}
	return productType, nil
}

// syncAttributes creates missing attributes and appends unseen values. The result
// follows the declared option order.
func (s *CatalogSyncService) syncAttributes(ctx context.Context, options []integration.RemoteOption) ([]*integration.ItemAttribute, error) {
	attrs := make([]*integration.ItemAttribute, 0, len(options))
	for _, opt := range options {
		attr, err := s.attributes.FindByName(ctx, opt.Name)
		switch {
		case errors.Is(err, integration.ErrAttributeNotFound):
			attr = integration.NewItemAttribute(opt.Name, opt.Values)
			if err := s.attributes.Save(ctx, attr); err != nil {
				return nil, fmt.Errorf("create attribute %q: %w", opt.Name, err)
			}
		case err != nil:
			return nil, err
		default:
			changed := false
			for _, v := range opt.Values {
				if attr.AppendValue(v) {
					changed = true
				}
			}
			if changed {
				if err := s.attributes.Save(ctx, attr); err != nil {
					return nil, fmt.Errorf("update attribute %q: %w", opt.Name, err)
				}
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// variantAttributes maps option slots positionally onto the template attributes.
// Unmatched slots are omitted.
func variantAttributes(attrs []*integration.ItemAttribute, v *integration.RemoteVariant) []integration.VariantAttribute {
	out := make([]integration.VariantAttribute, 0, len(attrs))
	for i, opt := range v.Options() {
		if opt == nil || *opt == "" || i >= len(attrs) {
			continue
		}
		value, ok := attrs[i].Lookup(*opt)
		if !ok {
			continue
		}
		out = append(out, integration.VariantAttribute{Attribute: attrs[i].Name, Value: value})
	}
	return out
}

func (s *CatalogSyncService) syncPrice(ctx context.Context, sess *Session, itemCode string, v *integration.RemoteVariant) error {
	entry := &integration.PriceEntry{
		ItemCode:  itemCode,
		PriceList: sess.Settings.PriceListName(),
		Rate:      v.Price,
	}
	if err := s.prices.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert price for %s: %w", itemCode, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

// PushAll pushes every sync-enabled item that is not a variant.
func (s *CatalogSyncService) PushAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageCatalogPush)

	items, err := s.items.FindSyncEnabled(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list sync-enabled items: %w", err)
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		item := &items[i]
		if item.IsVariant() {
			continue
		}
		err := s.PushItem(ctx, sess, item)
		s.metrics.RecordEntity(ctx, StageCatalogPush, err)
		if err != nil {
			if integration.IsFatal(err) {
				return result.Finish(), err
			}
			s.logger.Warn("Failed to push item",
				zap.String("item_code", item.Code),
				zap.Error(err),
			)
			result.Failed(item.Code, err)
			continue
		}
		result.Succeeded()
	}
	return result.Finish(), nil
}

// PushItem creates or updates the remote product for a non-variant item. A stored
// product id answering 404 is treated as stale and the product is recreated.
// Pushes of the same item code run one at a time and each starts from the stored
// record, so a push that waited sees the mapping the previous one wrote.
func (s *CatalogSyncService) PushItem(ctx context.Context, sess *Session, item *integration.LocalItem) error {
	if item.IsVariant() {
		return nil
	}
	unlock := s.pushing.lock(item.Code)
	defer unlock()

	stored, err := s.items.FindByCode(ctx, item.Code)
	switch {
	case err == nil:
		*item = *stored
	case !errors.Is(err, integration.ErrItemNotFound):
		return fmt.Errorf("reload item %s: %w", item.Code, err)
	}

	var variants []integration.LocalItem
	if item.IsTemplate {
		all, err := s.items.FindVariantsOf(ctx, item.Code)
		if err != nil {
			return fmt.Errorf("load variants of %s: %w", item.Code, err)
		}
		for _, v := range all {
			if !v.RemoteDeleted {
				variants = append(variants, v)
			}
		}
	}

	if !item.ExternalID.IsZero() {
		_, err := sess.Remote.GetProduct(ctx, item.ExternalID.ParentID)
		switch {
		case err == nil:
		case integration.IsRemoteNotFound(err):
			s.logger.Info("Remote product gone, recreating",
				zap.String("item_code", item.Code),
				zap.Int64("product_id", item.ExternalID.ParentID),
			)
			item.ExternalID = integration.ExternalID{}
			item.SyncedImage = ""
			for i := range variants {
				variants[i].ExternalID = integration.ExternalID{}
			}
		default:
			return fmt.Errorf("verify product %d: %w", item.ExternalID.ParentID, err)
		}
	}

	payload, err := s.buildPayload(ctx, sess, item, variants)
	if err != nil {
		return err
	}

	if item.ExternalID.IsZero() {
		created, err := sess.Remote.CreateProduct(ctx, payload)
		if err != nil {
			return fmt.Errorf("create product for %s: %w", item.Code, err)
		}
		if err := s.applyCreatedIDs(ctx, item, variants, created); err != nil {
			return err
		}
	} else {
		payload.ID = item.ExternalID.ParentID
		if _, err := sess.Remote.UpdateProduct(ctx, payload); err != nil {
			return fmt.Errorf("update product %d: %w", payload.ID, err)
		}
	}

	if err := s.syncImage(ctx, sess, item); err != nil {
		s.logger.Warn("Failed to sync item image",
			zap.String("item_code", item.Code),
			zap.Error(err),
		)
	}
	s.publish(ctx, integration.NewProductSyncedEvent(item, integration.DirectionPush))
	return nil
}

func (s *CatalogSyncService) buildPayload(ctx context.Context, sess *Session, item *integration.LocalItem, variants []integration.LocalItem) (*integration.RemoteProduct, error) {
	payload := &integration.RemoteProduct{
		Title:       item.Name,
		BodyHTML:    item.Description,
		ProductType: item.Group,
	}
	if !item.IsTemplate {
		rv, err := s.figures.variantFor(ctx, sess.Settings, item)
		if err != nil {
			return nil, err
		}
		payload.Variants = []integration.RemoteVariant{rv}
		return payload, nil
	}

	slots := optionSlots(item, variants)
	values := make([][]string, len(slots))
	payload.Variants = make([]integration.RemoteVariant, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		rv, err := s.figures.variantFor(ctx, sess.Settings, v)
		if err != nil {
			return nil, err
		}
		for _, a := range v.Attributes {
			j := slices.Index(slots, a.Attribute)
			if a.Value == "" || j < 0 {
				continue
			}
			rv.SetOption(j, a.Value)
			if !slices.Contains(values[j], a.Value) {
				values[j] = append(values[j], a.Value)
			}
		}
		payload.Variants = append(payload.Variants, rv)
	}
	for j, name := range slots {
		payload.Options = append(payload.Options, integration.RemoteOption{
			Name:     name,
			Position: j + 1,
			Values:   values[j],
		})
	}
	return payload, nil
}

// optionSlots fixes the option order of a template push: the template's own
// attribute order first, then attributes only the variants carry. Attributes no
// variant has a value for get no slot. A variant value always lands in the slot
// of its attribute, leaving slots it does not carry empty.
func optionSlots(template *integration.LocalItem, variants []integration.LocalItem) []string {
	candidates := make([]string, 0, len(template.Attributes))
	for _, a := range template.Attributes {
		if !slices.Contains(candidates, a.Attribute) {
			candidates = append(candidates, a.Attribute)
		}
	}
	used := make(map[string]bool)
	for _, v := range variants {
		for _, a := range v.Attributes {
			if a.Value == "" {
				continue
			}
			used[a.Attribute] = true
			if !slices.Contains(candidates, a.Attribute) {
				candidates = append(candidates, a.Attribute)
			}
		}
	}
	slots := make([]string, 0, integration.MaxVariantOptions)
	for _, name := range candidates {
		if used[name] && len(slots) < integration.MaxVariantOptions {
			slots = append(slots, name)
		}
	}
	return slots
}

// applyCreatedIDs stores the ids of a newly created product. Variants are matched by
// SKU; SKU-less variants fall back to position only when both lists have the same
// length.
func (s *CatalogSyncService) applyCreatedIDs(ctx context.Context, item *integration.LocalItem, variants []integration.LocalItem, created *integration.RemoteProduct) error {
	if created == nil || created.ID <= 0 {
		return fmt.Errorf("%w: create product for %s returned no id", integration.ErrRemoteInvalidPayload, item.Code)
	}

	if !item.IsTemplate {
		var variantID int64
		if len(created.Variants) > 0 {
			variantID = created.Variants[0].ID
		}
		item.ExternalID = integration.ExternalID{ParentID: created.ID, ChildID: variantID}
		if err := s.items.Update(ctx, item); err != nil {
			return fmt.Errorf("store product id for %s: %w", item.Code, err)
		}
		return nil
	}

	item.ExternalID = integration.ExternalID{ParentID: created.ID}
	if err := s.items.Update(ctx, item); err != nil {
		return fmt.Errorf("store product id for %s: %w", item.Code, err)
	}

	matched, err := matchVariants(variants, created.Variants)
	if err != nil {
		return fmt.Errorf("%s: %w", item.Code, err)
	}
	for i := range variants {
		variants[i].ExternalID = integration.ExternalID{ParentID: created.ID, ChildID: matched[i]}
		if err := s.items.Update(ctx, &variants[i]); err != nil {
			return fmt.Errorf("store variant id for %s: %w", variants[i].Code, err)
		}
	}
	return nil
}

// keyedMutex serialises work per key. Entries are dropped once nobody holds or
// waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// matchVariants returns, for each local variant, the remote variant id it became.
func matchVariants(local []integration.LocalItem, remote []integration.RemoteVariant) ([]int64, error) {
	bySKU := make(map[string]int64, len(remote))
	for _, rv := range remote {
		if rv.SKU != "" {
			bySKU[rv.SKU] = rv.ID
		}
	}
	used := make(map[int64]bool, len(remote))
	ids := make([]int64, len(local))
	for i, lv := range local {
		if lv.SKU == "" {
			continue
		}
		id, ok := bySKU[lv.SKU]
		if !ok || used[id] {
			return nil, fmt.Errorf("%w: no remote variant with sku %q", integration.ErrVariantMappingFails, lv.SKU)
		}
		ids[i] = id
		used[id] = true
	}
	for i, lv := range local {
		if lv.SKU != "" {
			continue
		}
		if len(local) != len(remote) {
			return nil, fmt.Errorf("%w: %d local variants, %d remote", integration.ErrVariantMappingFails, len(local), len(remote))
		}
		id := remote[i].ID
		if used[id] {
			return nil, fmt.Errorf("%w: remote variant %d already matched", integration.ErrVariantMappingFails, id)
		}
		ids[i] = id
		used[id] = true
	}
	return ids, nil
}

// syncImage uploads the item image when it differs from what is known upstream.
// URLs are passed by reference, anything else is read through the ImageSource and
// attached as base64.
func (s *CatalogSyncService) syncImage(ctx context.Context, sess *Session, item *integration.LocalItem) error {
	if item.Image == "" || item.Image == item.SyncedImage {
		return nil
	}
	img := &integration.RemoteImage{}
	if isRemoteURL(item.Image) {
		img.Src = item.Image
	} else {
		if s.images == nil {
			return nil
		}
		data, filename, err := s.images.Fetch(ctx, item.Image)
		if err != nil {
			return fmt.Errorf("fetch image %q: %w", item.Image, err)
		}
		img.Attachment = base64.StdEncoding.EncodeToString(data)
		img.Filename = filename
	}
	if err := sess.Remote.AddProductImage(ctx, item.ExternalID.ParentID, img); err != nil {
		return err
	}
	item.SyncedImage = item.Image
	return s.items.Update(ctx, item)
}

func (s *CatalogSyncService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish catalog event", zap.Error(err))
	}
}

func isRemoteURL(ref string) bool {
	return strings.HasPrefix(ref, "http") || strings.HasPrefix(ref, "ftp")
}
