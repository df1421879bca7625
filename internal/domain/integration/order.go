package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultSalesOrderSeries   = "SO-Shopify-"
	DefaultSalesInvoiceSeries = "SI-Shopify-"
	DefaultDeliveryNoteSeries = "DN-Shopify-"
	DefaultPriceList          = "Standard Selling"

	// FinancialStatusPaid is the remote financial status that triggers invoicing
	FinancialStatusPaid = "paid"
)

// ---------------------------------------------------------------------------
// DocStatus
// ---------------------------------------------------------------------------

// DocStatus is the commit state of an ERP document
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

// String returns the string representation of DocStatus
func (s DocStatus) String() string {
	switch s {
	case DocStatusDraft:
		return "DRAFT"
	case DocStatusSubmitted:
		return "SUBMITTED"
	case DocStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ---------------------------------------------------------------------------
// OrderProgress
// ---------------------------------------------------------------------------

// OrderProgress is the furthest state a remote order has reached locally.
// Progress only moves forward.
type OrderProgress string

const (
	OrderProgressNew       OrderProgress = "NEW"
	OrderProgressCreated   OrderProgress = "ORDER_CREATED"
	OrderProgressInvoiced  OrderProgress = "INVOICED"
	OrderProgressDelivered OrderProgress = "DELIVERY_CREATED"
)

func (p OrderProgress) rank() int {
	switch p {
	case OrderProgressCreated:
		return 1
	case OrderProgressInvoiced:
		return 2
	case OrderProgressDelivered:
		return 3
	default:
		return 0
	}
}

// Advance returns the later of p and next.
func (p OrderProgress) Advance(next OrderProgress) OrderProgress {
	if next.rank() > p.rank() {
		return next
	}
	return p
}

// ---------------------------------------------------------------------------
// Charges and lines
// ---------------------------------------------------------------------------

// ChargeType is how a tax or shipping charge is computed
type ChargeType string

const (
	ChargeTypeOnNetTotal ChargeType = "On Net Total"
	ChargeTypeActual     ChargeType = "Actual"
)

// TaxCharge is one tax or shipping row on a sales document.
type TaxCharge struct {
	ChargeType          ChargeType      `json:"charge_type"`
	AccountHead         string          `json:"account_head"`
	Description         string          `json:"description"`
	Rate                decimal.Decimal `json:"rate"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	IncludedInPrintRate bool            `json:"included_in_print_rate"`
}

// OrderLine is one item row on a sales document.
type OrderLine struct {
	// RemoteLineID is the remote line item the line was built from
	RemoteLineID int64           `json:"remote_line_id,omitempty"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	Qty          decimal.Decimal `json:"qty"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	UOM          string          `json:"uom"`
	Warehouse    string          `json:"warehouse"`
}

// ---------------------------------------------------------------------------
// LocalOrder
// ---------------------------------------------------------------------------

// LocalOrder is a sales order mirrored from one remote order.
type LocalOrder struct {
	ID              uuid.UUID
	Name            string
	ExternalID      ExternalID
	CustomerName    string
	DeliveryDate    time.Time
	PriceList       string
	ApplyDiscountOn string
	DiscountAmount  decimal.Decimal
	Lines           []OrderLine
	Taxes           []TaxCharge
	NetTotal        decimal.Decimal
	TotalTaxes      decimal.Decimal
	GrandTotal      decimal.Decimal
	FinancialStatus string
	DocStatus       DocStatus
	PerBilled       decimal.Decimal
	Progress        OrderProgress
	RemoteDeleted   bool
	RawPayload      []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsSubmitted reports whether the order is committed
func (o *LocalOrder) IsSubmitted() bool {
	return o.DocStatus == DocStatusSubmitted
}

// IsFullyBilled reports whether an invoice covers the whole order
func (o *LocalOrder) IsFullyBilled() bool {
	return o.PerBilled.GreaterThanOrEqual(decimal.NewFromInt(100))
}

// Submit commits the order.
func (o *LocalOrder) Submit() {
	o.DocStatus = DocStatusSubmitted
	o.Progress = o.Progress.Advance(OrderProgressCreated)
	o.UpdatedAt = time.Now()
}

// CalculateTotals fills net, tax and grand totals from lines, discount and charges.
// Charges flagged as included in the print rate are already inside the line rates.
func (o *LocalOrder) CalculateTotals() {
	net := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].Amount = o.Lines[i].Qty.Mul(o.Lines[i].Rate)
		net = net.Add(o.Lines[i].Amount)
	}
	taxable := net.Sub(o.DiscountAmount)
	hundred := decimal.NewFromInt(100)
	taxes := decimal.Zero
	added := decimal.Zero
	for i := range o.Taxes {
		t := &o.Taxes[i]
		if t.ChargeType == ChargeTypeOnNetTotal {
			if t.IncludedInPrintRate {
				t.TaxAmount = taxable.Mul(t.Rate).Div(hundred.Add(t.Rate)).Round(2)
			} else {
				t.TaxAmount = taxable.Mul(t.Rate).Div(hundred).Round(2)
			}
		}
		taxes = taxes.Add(t.TaxAmount)
		if !t.IncludedInPrintRate {
			added = added.Add(t.TaxAmount)
		}
	}
	o.NetTotal = net
	o.TotalTaxes = taxes
	o.GrandTotal = taxable.Add(added)
}

// MarkBilled records a full invoice against the order.
func (o *LocalOrder) MarkBilled() {
	o.PerBilled = decimal.NewFromInt(100)
	o.Progress = o.Progress.Advance(OrderProgressInvoiced)
	o.UpdatedAt = time.Now()
}

// MarkRemoteDeleted tombstones an order removed or cancelled upstream.
func (o *LocalOrder) MarkRemoteDeleted() {
	o.RemoteDeleted = true
	o.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// LocalInvoice
// ---------------------------------------------------------------------------

// LocalInvoice is the sales invoice for a paid remote order. At most one per order.
type LocalInvoice struct {
	ID              uuid.UUID
	Name            string
	ExternalID      ExternalID
	OrderName       string
	CustomerName    string
	IsPOS           bool
	CashBankAccount string
	Lines           []OrderLine
	Taxes           []TaxCharge
	DiscountAmount  decimal.Decimal
	GrandTotal      decimal.Decimal
	DocStatus       DocStatus
	CreatedAt       time.Time
}

// NewInvoiceFromOrder copies a submitted order into a submitted POS invoice.
func NewInvoiceFromOrder(order *LocalOrder, name, cashBankAccount string) (*LocalInvoice, error) {
	if !order.IsSubmitted() {
		return nil, ErrOrderNotSubmitted
	}
	if order.IsFullyBilled() {
		return nil, ErrOrderAlreadyBilled
	}
	return &LocalInvoice{
		ID:              uuid.New(),
		Name:            name,
		ExternalID:      order.ExternalID,
		OrderName:       order.Name,
		CustomerName:    order.CustomerName,
		IsPOS:           true,
		CashBankAccount: cashBankAccount,
		Lines:           append([]OrderLine(nil), order.Lines...),
		Taxes:           append([]TaxCharge(nil), order.Taxes...),
		DiscountAmount:  order.DiscountAmount,
		GrandTotal:      order.GrandTotal,
		DocStatus:       DocStatusSubmitted,
		CreatedAt:       time.Now(),
	}, nil
}

// ---------------------------------------------------------------------------
// LocalDelivery
// ---------------------------------------------------------------------------

// LocalDelivery is the delivery note for one remote fulfillment.
type LocalDelivery struct {
	ID           uuid.UUID
	Name         string
	ExternalID   ExternalID // fulfillment id
	OrderID      int64      // remote order id
	OrderName    string
	CustomerName string
	Lines        []OrderLine
	DocStatus    DocStatus
	CreatedAt    time.Time
}

// FulfilledLine is one fulfillment line resolved to a local item.
type FulfilledLine struct {
	RemoteLineID int64
	ItemCode     string
	Qty          decimal.Decimal
}

// NewDeliveryFromOrder builds a draft delivery for a fulfillment. Only order lines
// the fulfillment covers are kept and their quantity is overwritten.
func NewDeliveryFromOrder(order *LocalOrder, name string, fulfillmentID int64, fulfilled []FulfilledLine) (*LocalDelivery, error) {
	if !order.IsSubmitted() {
		return nil, ErrOrderNotSubmitted
	}
	if fulfillmentID <= 0 {
		return nil, ErrInvalidExternalID
	}
	qty := allocateFulfilled(order.Lines, fulfilled)
	lines := make([]OrderLine, 0, len(order.Lines))
	for i, l := range order.Lines {
		if !qty[i].IsPositive() {
			continue
		}
		l.Qty = qty[i]
		l.Amount = qty[i].Mul(l.Rate)
		lines = append(lines, l)
	}
	return &LocalDelivery{
		ID:           uuid.New(),
		Name:         name,
		ExternalID:   ExternalID{ParentID: fulfillmentID},
		OrderID:      order.ExternalID.ParentID,
		OrderName:    order.Name,
		CustomerName: order.CustomerName,
		Lines:        lines,
		DocStatus:    DocStatusDraft,
		CreatedAt:    time.Now(),
	}, nil
}

// allocateFulfilled returns the delivered quantity per order line. A fulfilled
// line goes to the order line built from the same remote line item. The rest
// is pooled per item code and handed out over that code's remaining order lines
// up to each line's ordered quantity; any excess lands on the last of them.
func allocateFulfilled(orderLines []OrderLine, fulfilled []FulfilledLine) []decimal.Decimal {
	qty := make([]decimal.Decimal, len(orderLines))
	byRemoteLine := make(map[int64]int, len(orderLines))
	for i, l := range orderLines {
		if l.RemoteLineID > 0 {
			byRemoteLine[l.RemoteLineID] = i
		}
	}

	pooled := make(map[string]decimal.Decimal)
	codes := make([]string, 0)
	for _, f := range fulfilled {
		if i, ok := byRemoteLine[f.RemoteLineID]; ok && f.RemoteLineID > 0 {
			qty[i] = qty[i].Add(f.Qty)
			continue
		}
		if _, seen := pooled[f.ItemCode]; !seen {
			codes = append(codes, f.ItemCode)
		}
		pooled[f.ItemCode] = pooled[f.ItemCode].Add(f.Qty)
	}

	for _, code := range codes {
		remaining := pooled[code]
		last := -1
		for i, l := range orderLines {
			if l.ItemCode != code || qty[i].IsPositive() {
				continue
			}
			take := decimal.Min(remaining, l.Qty)
			qty[i] = take
			remaining = remaining.Sub(take)
			last = i
			if !remaining.IsPositive() {
				break
			}
		}
		if last >= 0 && remaining.IsPositive() {
			qty[last] = qty[last].Add(remaining)
		}
	}
	return qty
}

// OrderArtifacts is everything the store holds for one remote order.
type OrderArtifacts struct {
	Order      *LocalOrder
	Invoice    *LocalInvoice
	Deliveries map[int64]*LocalDelivery
}
