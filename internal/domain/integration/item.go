package integration

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultItemGroup is the root item group and the fallback for untyped products
	DefaultItemGroup = "All Item Groups"
	// DefaultStockUOM is used for every synced item; the remote catalog has no units
	DefaultStockUOM = "Nos"
	// NoOptionsSentinel is the option value the remote platform uses for products without options
	NoOptionsSentinel = "Default Title"
	// maxAbbreviationLength bounds ItemAttributeValue.Abbreviation
	maxAbbreviationLength = 3
	// MaxVariantOptions is the number of option slots a remote variant carries
	MaxVariantOptions = 3
	// TemplateCodePrefix marks item codes derived from a product id. Variant ids
	// and product ids are separate sequences upstream and may coincide.
	TemplateCodePrefix = "P-"
)

// ---------------------------------------------------------------------------
// LocalItem Entity
// ---------------------------------------------------------------------------

// LocalItem is an ERP item. Template items own variants through TemplateRef.
type LocalItem struct {
	ID               uuid.UUID
	Code             string
	Name             string
	Description      string
	Group            string
	StockUOM         string
	IsTemplate       bool
	TemplateRef      string
	Attributes       []VariantAttribute
	SKU              string
	DefaultWarehouse string
	Image            string
	ExternalID       ExternalID
	// SyncedImage is the image reference last known to be present upstream
	SyncedImage string
	// SyncEnabled is local-only; a pull never overwrites it
	SyncEnabled bool
	// RemoteDeleted tombstones items whose product was removed upstream
	RemoteDeleted bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VariantAttribute is one attribute slot of an item. Templates carry names only.
type VariantAttribute struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value,omitempty"`
}

// NewLocalItem creates an item with the synced defaults.
func NewLocalItem(code string) (*LocalItem, error) {
	if code == "" {
		return nil, ErrInvalidItemCode
	}
	now := time.Now()
	return &LocalItem{
		ID:          uuid.New(),
		Code:        code,
		Group:       DefaultItemGroup,
		StockUOM:    DefaultStockUOM,
		Attributes:  make([]VariantAttribute, 0),
		SyncEnabled: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ItemCodeFor derives the local item code from remote ids: the variant id when
// present, otherwise the product id under TemplateCodePrefix.
func ItemCodeFor(productID, variantID int64) string {
	if variantID != 0 {
		return strconv.FormatInt(variantID, 10)
	}
	return TemplateCodePrefix + strconv.FormatInt(productID, 10)
}

// IsVariant reports whether the item belongs to a template.
func (i *LocalItem) IsVariant() bool {
	return i.TemplateRef != ""
}

// Validate checks the item invariants that do not need the store.
func (i *LocalItem) Validate() error {
	if i.Code == "" {
		return ErrInvalidItemCode
	}
	if i.IsTemplate && i.IsVariant() {
		return ErrInvalidTemplateRef
	}
	return nil
}

// AttributeValue returns the value set for an attribute, or "".
func (i *LocalItem) AttributeValue(attribute string) string {
	for _, a := range i.Attributes {
		if a.Attribute == attribute {
			return a.Value
		}
	}
	return ""
}

// MarkRemoteDeleted tombstones the item and stops it from being pushed again.
func (i *LocalItem) MarkRemoteDeleted() {
	i.RemoteDeleted = true
	i.SyncEnabled = false
	i.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// ItemAttribute Entity
// ---------------------------------------------------------------------------

// ItemAttribute is the setup record listing the allowed values of one attribute.
type ItemAttribute struct {
	ID        uuid.UUID
	Name      string
	Values    []ItemAttributeValue
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemAttributeValue is an attribute value and its short form.
type ItemAttributeValue struct {
	Value        string `json:"value"`
	Abbreviation string `json:"abbr"`
}

// NewItemAttribute creates an attribute seeded with values.
func NewItemAttribute(name string, values []string) *ItemAttribute {
	now := time.Now()
	attr := &ItemAttribute{
		ID:        uuid.New(),
		Name:      name,
		Values:    make([]ItemAttributeValue, 0, len(values)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, v := range values {
		attr.AppendValue(v)
	}
	return attr
}

// Abbreviate returns the first three characters of value. ItemAttribute
// lengthens it where two values would otherwise share an abbreviation.
func Abbreviate(value string) string {
	r := []rune(value)
	if len(r) <= maxAbbreviationLength {
		return value
	}
	return string(r[:maxAbbreviationLength])
}

// Lookup resolves a value given either the value itself or its abbreviation.
// The comparison is case-sensitive.
func (a *ItemAttribute) Lookup(candidate string) (string, bool) {
	for _, v := range a.Values {
		if v.Value == candidate || v.Abbreviation == candidate {
			return v.Value, true
		}
	}
	return "", false
}

// AppendValue adds value unless it already matches a value or abbreviation.
// Values are never removed. It reports whether anything was added.
func (a *ItemAttribute) AppendValue(value string) bool {
	if _, ok := a.Lookup(value); ok {
		return false
	}
	a.Values = append(a.Values, ItemAttributeValue{
		Value:        value,
		Abbreviation: a.uniqueAbbreviation(value),
	})
	a.UpdatedAt = time.Now()
	return true
}

// uniqueAbbreviation starts from Abbreviate and lengthens it one rune at a time
// until no existing value or abbreviation matches it. The full value is the
// last resort; AppendValue has already checked that it is free.
func (a *ItemAttribute) uniqueAbbreviation(value string) string {
	runes := []rune(value)
	for n := min(maxAbbreviationLength, len(runes)); n < len(runes); n++ {
		if candidate := string(runes[:n]); !a.taken(candidate) {
			return candidate
		}
	}
	return value
}

func (a *ItemAttribute) taken(candidate string) bool {
	_, ok := a.Lookup(candidate)
	return ok
}

// ---------------------------------------------------------------------------
// ItemGroup, PriceEntry, StockLevel
// ---------------------------------------------------------------------------

// ItemGroup classifies items; remote product types become groups.
type ItemGroup struct {
	Name   string
	Parent string
}

// PriceEntry is the rate of one item in one price list.
type PriceEntry struct {
	ID        uuid.UUID
	ItemCode  string
	PriceList string
	Rate      decimal.Decimal
	UpdatedAt time.Time
}

// StockLevel is the on-hand quantity of an item in a warehouse (a Bin).
type StockLevel struct {
	ItemCode       string
	Warehouse      string
	QuantityOnHand decimal.Decimal
	UpdatedAt      time.Time
}
