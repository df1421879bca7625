package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryManagementShopify marks a variant's stock as tracked by the platform
// and fed from the ERP.
const InventoryManagementShopify = "shopify"

// ---------------------------------------------------------------------------
// Catalog payloads
// ---------------------------------------------------------------------------

// RemoteProduct is a product as exchanged with the remote REST API.
type RemoteProduct struct {
	ID          int64           `json:"id,omitempty"`
	Title       string          `json:"title"`
	BodyHTML    string          `json:"body_html"`
	ProductType string          `json:"product_type"`
	Variants    []RemoteVariant `json:"variants"`
	Options     []RemoteOption  `json:"options,omitempty"`
	Image       *RemoteImage    `json:"image,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// RemoteVariant is a purchasable combination of a product.
type RemoteVariant struct {
	ID                  int64           `json:"id,omitempty"`
	ProductID           int64           `json:"product_id,omitempty"`
	Title               string          `json:"title,omitempty"`
	SKU                 string          `json:"sku"`
	Price               decimal.Decimal `json:"price"`
	Option1             *string         `json:"option1,omitempty"`
	Option2             *string         `json:"option2,omitempty"`
	Option3             *string         `json:"option3,omitempty"`
	InventoryQuantity   int64           `json:"inventory_quantity"`
	InventoryManagement string          `json:"inventory_management,omitempty"`
}

// Options returns the three option slots in order; nil entries are empty slots.
func (v *RemoteVariant) Options() [MaxVariantOptions]*string {
	return [MaxVariantOptions]*string{v.Option1, v.Option2, v.Option3}
}

// SetOption fills slot idx (0-based).
func (v *RemoteVariant) SetOption(idx int, value string) {
	val := value
	switch idx {
	case 0:
		v.Option1 = &val
	case 1:
		v.Option2 = &val
	case 2:
		v.Option3 = &val
	}
}

// RemoteOption is a declared product option with its values.
type RemoteOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position,omitempty"`
	Values   []string `json:"values"`
}

// RemoteImage is a product image. Exactly one of Src or Attachment is sent.
type RemoteImage struct {
	ID         int64  `json:"id,omitempty"`
	Src        string `json:"src,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// IsTemplate classifies a product. A product is simple when it declares no options,
// or a single option whose only value is the "Default Title" sentinel; anything
// else has selectable variants.
func (p *RemoteProduct) IsTemplate() bool {
	if len(p.Options) == 0 {
		return false
	}
	if len(p.Options) > 1 {
		return true
	}
	for _, v := range p.Options[0].Values {
		if v == NoOptionsSentinel {
			return false
		}
	}
	return len(p.Options[0].Values) > 0
}

// VariantStockUpdate is the variant fragment of an inventory push.
type VariantStockUpdate struct {
	ID                  int64  `json:"id"`
	InventoryQuantity   int64  `json:"inventory_quantity"`
	InventoryManagement string `json:"inventory_management"`
}

// ProductStockUpdate patches stock of one variant under its parent product.
type ProductStockUpdate struct {
	ID       int64                `json:"id"`
	Variants []VariantStockUpdate `json:"variants"`
}

// ---------------------------------------------------------------------------
// Customer payloads
// ---------------------------------------------------------------------------

// RemoteCustomer is a customer as exchanged with the remote REST API.
type RemoteCustomer struct {
	ID        int64           `json:"id,omitempty"`
	FirstName string          `json:"first_name,omitempty"`
	LastName  string          `json:"last_name,omitempty"`
	Email     string          `json:"email,omitempty"`
	Addresses []RemoteAddress `json:"addresses,omitempty"`
}

// RemoteAddress is a customer address.
type RemoteAddress struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ---------------------------------------------------------------------------
// Order payloads
// ---------------------------------------------------------------------------

// RemoteOrder is an order as delivered by the list endpoint or a webhook.
type RemoteOrder struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name,omitempty"`
	Email               string               `json:"email,omitempty"`
	FinancialStatus     string               `json:"financial_status"`
	FulfillmentStatus   string               `json:"fulfillment_status,omitempty"`
	Currency            string               `json:"currency,omitempty"`
	TotalPrice          decimal.Decimal      `json:"total_price"`
	TotalLineItemsPrice decimal.Decimal      `json:"total_line_items_price"`
	TotalTax            decimal.Decimal      `json:"total_tax"`
	Customer            *RemoteCustomer      `json:"customer"`
	LineItems           []RemoteLineItem     `json:"line_items"`
	TaxLines            []RemoteTaxLine      `json:"tax_lines"`
	ShippingLines       []RemoteShippingLine `json:"shipping_lines"`
	DiscountCodes       []RemoteDiscountCode `json:"discount_codes"`
	Fulfillments        []RemoteFulfillment  `json:"fulfillments"`
	CreatedAt           *time.Time           `json:"created_at,omitempty"`
	CancelledAt         *time.Time           `json:"cancelled_at,omitempty"`
}

// IsPaid reports whether the order should be invoiced
func (o *RemoteOrder) IsPaid() bool {
	return o.FinancialStatus == FinancialStatusPaid
}

// DiscountTotal sums the discount code amounts.
func (o *RemoteOrder) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range o.DiscountCodes {
		total = total.Add(d.Amount)
	}
	return total
}

// includedTaxTolerance is half a cent
var includedTaxTolerance = decimal.New(5, -3)

// TaxIncludedInPrice reports whether line prices already contain tax: the order has
// tax but the total equals the line total.
func (o *RemoteOrder) TaxIncludedInPrice() bool {
	if o.TotalTax.IsZero() {
		return false
	}
	return o.TotalPrice.Sub(o.TotalLineItemsPrice).Abs().LessThan(includedTaxTolerance)
}

// RemoteLineItem is one order or fulfillment line.
type RemoteLineItem struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id"`
	VariantID *int64          `json:"variant_id"`
	Title     string          `json:"title"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ProductRef returns the product and variant ids, zero when absent.
func (li *RemoteLineItem) ProductRef() (productID, variantID int64) {
	if li.ProductID != nil {
		productID = *li.ProductID
	}
	if li.VariantID != nil {
		variantID = *li.VariantID
	}
	return productID, variantID
}

// RemoteTaxLine is a tax applied to an order. Rate is a fraction (0.06 = 6%).
type RemoteTaxLine struct {
	Title string          `json:"title"`
	Rate  decimal.Decimal `json:"rate"`
	Price decimal.Decimal `json:"price"`
}

// RemoteShippingLine is a flat shipping charge.
type RemoteShippingLine struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// RemoteDiscountCode is a discount applied to an order.
type RemoteDiscountCode struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

// RemoteFulfillment is a shipment of some order lines.
type RemoteFulfillment struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"order_id"`
	Status    string           `json:"status"`
	LineItems []RemoteLineItem `json:"line_items"`
}

// ---------------------------------------------------------------------------
// Webhook payloads
// ---------------------------------------------------------------------------

// RemoteWebhook is a webhook subscription on the remote platform.
type RemoteWebhook struct {
	ID      int64  `json:"id,omitempty"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// RemoteDeletion is the payload of products/delete and orders/delete.
type RemoteDeletion struct {
	ID int64 `json:"id"`
}
