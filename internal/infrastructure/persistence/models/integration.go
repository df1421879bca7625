package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/erp/shopsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// ItemModel is the persistence model for LocalItem. (remote_product_id,
// remote_variant_id) is unique; unmapped items keep a NULL product id.
type ItemModel struct {
	BaseModel
	Code             string                                           `gorm:"type:varchar(140);not null;uniqueIndex"`
	Name             string                                           `gorm:"type:varchar(255)"`
	Description      string                                           `gorm:"type:text"`
	ItemGroup        string                                           `gorm:"type:varchar(140);not null"`
	StockUOM         string                                           `gorm:"type:varchar(40);not null"`
	IsTemplate       bool                                             `gorm:"not null;default:false"`
	TemplateRef      string                                           `gorm:"type:varchar(140);index"`
	Attributes       datatypes.JSONSlice[integration.VariantAttribute] `gorm:"column:attributes"`
	SKU              string                                           `gorm:"column:sku;type:varchar(140);index"`
	DefaultWarehouse string                                           `gorm:"type:varchar(140)"`
	Image            string                                           `gorm:"type:text"`
	SyncedImage      string                                           `gorm:"type:text"`
	RemoteProductID  *int64                                           `gorm:"uniqueIndex:idx_items_external,priority:1"`
	RemoteVariantID  int64                                            `gorm:"not null;default:0;uniqueIndex:idx_items_external,priority:2"`
	SyncEnabled      bool                                             `gorm:"not null;index"`
	RemoteDeleted    bool                                             `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the model to a LocalItem
func (m *ItemModel) ToDomain() *integration.LocalItem {
	item := &integration.LocalItem{
		ID:               m.ID,
		Code:             m.Code,
		Name:             m.Name,
		Description:      m.Description,
		Group:            m.ItemGroup,
		StockUOM:         m.StockUOM,
		IsTemplate:       m.IsTemplate,
		TemplateRef:      m.TemplateRef,
		Attributes:       append([]integration.VariantAttribute{}, m.Attributes...),
		SKU:              m.SKU,
		DefaultWarehouse: m.DefaultWarehouse,
		Image:            m.Image,
		SyncedImage:      m.SyncedImage,
		ExternalID:       integration.ExternalID{ParentID: derefID(m.RemoteProductID), ChildID: m.RemoteVariantID},
		SyncEnabled:      m.SyncEnabled,
		RemoteDeleted:    m.RemoteDeleted,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	return item
}

// FromDomain populates the model from a LocalItem
func (m *ItemModel) FromDomain(i *integration.LocalItem) {
	m.ID = i.ID
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
	m.Code = i.Code
	m.Name = i.Name
	m.Description = i.Description
	m.ItemGroup = i.Group
	m.StockUOM = i.StockUOM
	m.IsTemplate = i.IsTemplate
	m.TemplateRef = i.TemplateRef
	m.Attributes = datatypes.NewJSONSlice(i.Attributes)
	m.SKU = i.SKU
	m.DefaultWarehouse = i.DefaultWarehouse
	m.Image = i.Image
	m.SyncedImage = i.SyncedImage
	m.RemoteProductID = nullableID(i.ExternalID.ParentID)
	m.RemoteVariantID = i.ExternalID.ChildID
	m.SyncEnabled = i.SyncEnabled
	m.RemoteDeleted = i.RemoteDeleted
}

// ItemAttributeModel is the persistence model for ItemAttribute
type ItemAttributeModel struct {
	BaseModel
	Name   string                                             `gorm:"type:varchar(140);not null;uniqueIndex"`
	Values datatypes.JSONSlice[integration.ItemAttributeValue] `gorm:"column:attribute_values"`
}

// TableName returns the table name for GORM
func (ItemAttributeModel) TableName() string {
	return "item_attributes"
}

// ToDomain converts the model to an ItemAttribute
func (m *ItemAttributeModel) ToDomain() *integration.ItemAttribute {
	return &integration.ItemAttribute{
		ID:        m.ID,
		Name:      m.Name,
		Values:    append([]integration.ItemAttributeValue{}, m.Values...),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the model from an ItemAttribute
func (m *ItemAttributeModel) FromDomain(a *integration.ItemAttribute) {
	m.ID = a.ID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.Name = a.Name
	m.Values = datatypes.NewJSONSlice(a.Values)
}

// ItemGroupModel is an item group
type ItemGroupModel struct {
	Name      string `gorm:"type:varchar(140);primaryKey"`
	Parent    string `gorm:"type:varchar(140)"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (ItemGroupModel) TableName() string {
	return "item_groups"
}

// ItemPriceModel is the rate of one item in one price list
type ItemPriceModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	ItemCode  string          `gorm:"type:varchar(140);not null;uniqueIndex:idx_item_prices_item_list,priority:1"`
	PriceList string          `gorm:"type:varchar(140);not null;uniqueIndex:idx_item_prices_item_list,priority:2"`
	Rate      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemPriceModel) TableName() string {
	return "item_prices"
}

// ToDomain converts the model to a PriceEntry
func (m *ItemPriceModel) ToDomain() *integration.PriceEntry {
	return &integration.PriceEntry{
		ID:        m.ID,
		ItemCode:  m.ItemCode,
		PriceList: m.PriceList,
		Rate:      m.Rate,
		UpdatedAt: m.UpdatedAt,
	}
}

// BinModel is the on-hand quantity of an item in a warehouse
type BinModel struct {
	ItemCode       string          `gorm:"type:varchar(140);primaryKey"`
	Warehouse      string          `gorm:"type:varchar(140);primaryKey"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BinModel) TableName() string {
	return "bins"
}

// ToDomain converts the model to a StockLevel
func (m *BinModel) ToDomain() *integration.StockLevel {
	return &integration.StockLevel{
		ItemCode:       m.ItemCode,
		Warehouse:      m.Warehouse,
		QuantityOnHand: m.QuantityOnHand,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// CustomerModel is the persistence model for LocalCustomer
type CustomerModel struct {
	BaseModel
	Name             string         `gorm:"type:varchar(140);not null;index"`
	DisplayName      string         `gorm:"type:varchar(255)"`
	CustomerGroup    string         `gorm:"type:varchar(140)"`
	Territory        string         `gorm:"type:varchar(140)"`
	CustomerType     string         `gorm:"type:varchar(40)"`
	Email            string         `gorm:"type:varchar(255)"`
	RemoteCustomerID *int64         `gorm:"uniqueIndex"`
	SyncEnabled      bool           `gorm:"not null;default:false"`
	Addresses        []AddressModel `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// AddressModel is a customer address
type AddressModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	CustomerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Position    int       `gorm:"not null"`
	Title       string    `gorm:"type:varchar(255)"`
	AddressType string    `gorm:"type:varchar(20)"`
	Line1       string    `gorm:"type:varchar(255)"`
	Line2       string    `gorm:"type:varchar(255)"`
	City        string    `gorm:"type:varchar(140)"`
	State       string    `gorm:"type:varchar(140)"`
	PostalCode  string    `gorm:"type:varchar(40)"`
	Country     string    `gorm:"type:varchar(140)"`
	Phone       string    `gorm:"type:varchar(60)"`
	Email       string    `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (AddressModel) TableName() string {
	return "addresses"
}

// ToDomain converts the model (with preloaded addresses) to a LocalCustomer
func (m *CustomerModel) ToDomain() *integration.LocalCustomer {
	c := &integration.LocalCustomer{
		ID:           m.ID,
		Name:         m.Name,
		DisplayName:  m.DisplayName,
		Group:        m.CustomerGroup,
		Territory:    m.Territory,
		CustomerType: m.CustomerType,
		Email:        m.Email,
		ExternalID:   integration.ExternalID{ParentID: derefID(m.RemoteCustomerID)},
		SyncEnabled:  m.SyncEnabled,
		Addresses:    make([]integration.Address, 0, len(m.Addresses)),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	for _, a := range m.Addresses {
		c.Addresses = append(c.Addresses, integration.Address{
			ID:         a.ID,
			Title:      a.Title,
			Type:       integration.AddressType(a.AddressType),
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
			Email:      a.Email,
		})
	}
	return c
}

// FromDomain populates the model from a LocalCustomer
func (m *CustomerModel) FromDomain(c *integration.LocalCustomer) {
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.Name = c.Name
	m.DisplayName = c.DisplayName
	m.CustomerGroup = c.Group
	m.Territory = c.Territory
	m.CustomerType = c.CustomerType
	m.Email = c.Email
	m.RemoteCustomerID = nullableID(c.ExternalID.ParentID)
	m.SyncEnabled = c.SyncEnabled
	m.Addresses = make([]AddressModel, 0, len(c.Addresses))
	for i, a := range c.Addresses {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		m.Addresses = append(m.Addresses, AddressModel{
			ID:          id,
			CustomerID:  c.ID,
			Position:    i,
			Title:       a.Title,
			AddressType: string(a.Type),
			Line1:       a.Line1,
			Line2:       a.Line2,
			City:        a.City,
			State:       a.State,
			PostalCode:  a.PostalCode,
			Country:     a.Country,
			Phone:       a.Phone,
			Email:       a.Email,
		})
	}
}

// ---------------------------------------------------------------------------
// Sales documents
// ---------------------------------------------------------------------------

// SalesOrderModel is the persistence model for LocalOrder. One row per remote order.
type SalesOrderModel struct {
	BaseModel
	Name            string                                    `gorm:"type:varchar(140);not null;uniqueIndex"`
	RemoteOrderID   int64                                     `gorm:"not null;uniqueIndex"`
	CustomerName    string                                    `gorm:"type:varchar(140);not null"`
	DeliveryDate    time.Time                                 `gorm:"not null"`
	PriceList       string                                    `gorm:"type:varchar(140)"`
	ApplyDiscountOn string                                    `gorm:"type:varchar(40)"`
	DiscountAmount  decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	Lines           datatypes.JSONSlice[integration.OrderLine] `gorm:"column:lines"`
	Taxes           datatypes.JSONSlice[integration.TaxCharge] `gorm:"column:taxes"`
	NetTotal        decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	TotalTaxes      decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	GrandTotal      decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	FinancialStatus string                                    `gorm:"type:varchar(40)"`
	DocStatus       int                                       `gorm:"not null;default:0"`
	PerBilled       decimal.Decimal                           `gorm:"type:decimal(5,2);not null"`
	Progress        string                                    `gorm:"type:varchar(40);not null"`
	RemoteDeleted   bool                                      `gorm:"not null;default:false"`
	RawPayload      datatypes.JSON                            `gorm:"column:raw_payload;not null"`
}

// TableName returns the table name for GORM
func (SalesOrderModel) TableName() string {
	return "sales_orders"
}

// ToDomain converts the model to a LocalOrder
func (m *SalesOrderModel) ToDomain() *integration.LocalOrder {
	return &integration.LocalOrder{
		ID:              m.ID,
		Name:            m.Name,
		ExternalID:      integration.ExternalID{ParentID: m.RemoteOrderID},
		CustomerName:    m.CustomerName,
		DeliveryDate:    m.DeliveryDate,
		PriceList:       m.PriceList,
		ApplyDiscountOn: m.ApplyDiscountOn,
		DiscountAmount:  m.DiscountAmount,
		Lines:           append([]integration.OrderLine{}, m.Lines...),
		Taxes:           append([]integration.TaxCharge{}, m.Taxes...),
		NetTotal:        m.NetTotal,
		TotalTaxes:      m.TotalTaxes,
		GrandTotal:      m.GrandTotal,
		FinancialStatus: m.FinancialStatus,
		DocStatus:       integration.DocStatus(m.DocStatus),
		PerBilled:       m.PerBilled,
		Progress:        integration.OrderProgress(m.Progress),
		RemoteDeleted:   m.RemoteDeleted,
		RawPayload:      rawPayload(m.RawPayload),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromDomain populates the model from a LocalOrder
func (m *SalesOrderModel) FromDomain(o *integration.LocalOrder) {
	m.ID = o.ID
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.Name = o.Name
	m.RemoteOrderID = o.ExternalID.ParentID
	m.CustomerName = o.CustomerName
	m.DeliveryDate = o.DeliveryDate
	m.PriceList = o.PriceList
	m.ApplyDiscountOn = o.ApplyDiscountOn
	m.DiscountAmount = o.DiscountAmount
	m.Lines = datatypes.NewJSONSlice(o.Lines)
	m.Taxes = datatypes.NewJSONSlice(o.Taxes)
	m.NetTotal = o.NetTotal
	m.TotalTaxes = o.TotalTaxes
	m.GrandTotal = o.GrandTotal
	m.FinancialStatus = o.FinancialStatus
	m.DocStatus = int(o.DocStatus)
	m.PerBilled = o.PerBilled
	m.Progress = string(o.Progress)
	m.RemoteDeleted = o.RemoteDeleted
	m.RawPayload = datatypes.JSON("null")
	if len(o.RawPayload) > 0 {
		m.RawPayload = datatypes.JSON(o.RawPayload)
	}
}

// SalesInvoiceModel is the persistence model for LocalInvoice. At most one per remote order.
type SalesInvoiceModel struct {
	ID              uuid.UUID                                 `gorm:"type:uuid;primary_key"`
	Name            string                                    `gorm:"type:varchar(140);not null;uniqueIndex"`
	RemoteOrderID   int64                                     `gorm:"not null;uniqueIndex"`
	OrderName       string                                    `gorm:"type:varchar(140);not null"`
	CustomerName    string                                    `gorm:"type:varchar(140);not null"`
	IsPOS           bool                                      `gorm:"column:is_pos;not null"`
	CashBankAccount string                                    `gorm:"type:varchar(140)"`
	Lines           datatypes.JSONSlice[integration.OrderLine] `gorm:"column:lines"`
	Taxes           datatypes.JSONSlice[integration.TaxCharge] `gorm:"column:taxes"`
	DiscountAmount  decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	GrandTotal      decimal.Decimal                           `gorm:"type:decimal(18,4);not null"`
	DocStatus       int                                       `gorm:"not null"`
	CreatedAt       time.Time                                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesInvoiceModel) TableName() string {
	return "sales_invoices"
}

// ToDomain converts the model to a LocalInvoice
func (m *SalesInvoiceModel) ToDomain() *integration.LocalInvoice {
	return &integration.LocalInvoice{
		ID:              m.ID,
		Name:            m.Name,
		ExternalID:      integration.ExternalID{ParentID: m.RemoteOrderID},
		OrderName:       m.OrderName,
		CustomerName:    m.CustomerName,
		IsPOS:           m.IsPOS,
		CashBankAccount: m.CashBankAccount,
		Lines:           append([]integration.OrderLine{}, m.Lines...),
		Taxes:           append([]integration.TaxCharge{}, m.Taxes...),
		DiscountAmount:  m.DiscountAmount,
		GrandTotal:      m.GrandTotal,
		DocStatus:       integration.DocStatus(m.DocStatus),
		CreatedAt:       m.CreatedAt,
	}
}

// FromDomain populates the model from a LocalInvoice
func (m *SalesInvoiceModel) FromDomain(inv *integration.LocalInvoice) {
	m.ID = inv.ID
	m.Name = inv.Name
	m.RemoteOrderID = inv.ExternalID.ParentID
	m.OrderName = inv.OrderName
	m.CustomerName = inv.CustomerName
	m.IsPOS = inv.IsPOS
	m.CashBankAccount = inv.CashBankAccount
	m.Lines = datatypes.NewJSONSlice(inv.Lines)
	m.Taxes = datatypes.NewJSONSlice(inv.Taxes)
	m.DiscountAmount = inv.DiscountAmount
	m.GrandTotal = inv.GrandTotal
	m.DocStatus = int(inv.DocStatus)
	m.CreatedAt = inv.CreatedAt
}

// DeliveryNoteModel is the persistence model for LocalDelivery. One row per remote fulfillment.
type DeliveryNoteModel struct {
	ID                  uuid.UUID                                 `gorm:"type:uuid;primary_key"`
	Name                string                                    `gorm:"type:varchar(140);not null;uniqueIndex"`
	RemoteFulfillmentID int64                                     `gorm:"not null;uniqueIndex"`
	RemoteOrderID       int64                                     `gorm:"not null;index"`
	OrderName           string                                    `gorm:"type:varchar(140);not null"`
	CustomerName        string                                    `gorm:"type:varchar(140);not null"`
	Lines               datatypes.JSONSlice[integration.OrderLine] `gorm:"column:lines"`
	DocStatus           int                                       `gorm:"not null"`
	CreatedAt           time.Time                                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DeliveryNoteModel) TableName() string {
	return "delivery_notes"
}

// ToDomain converts the model to a LocalDelivery
func (m *DeliveryNoteModel) ToDomain() *integration.LocalDelivery {
	return &integration.LocalDelivery{
		ID:           m.ID,
		Name:         m.Name,
		ExternalID:   integration.ExternalID{ParentID: m.RemoteFulfillmentID},
		OrderID:      m.RemoteOrderID,
		OrderName:    m.OrderName,
		CustomerName: m.CustomerName,
		Lines:        append([]integration.OrderLine{}, m.Lines...),
		DocStatus:    integration.DocStatus(m.DocStatus),
		CreatedAt:    m.CreatedAt,
	}
}

// FromDomain populates the model from a LocalDelivery
func (m *DeliveryNoteModel) FromDomain(d *integration.LocalDelivery) {
	m.ID = d.ID
	m.Name = d.Name
	m.RemoteFulfillmentID = d.ExternalID.ParentID
	m.RemoteOrderID = d.OrderID
	m.OrderName = d.OrderName
	m.CustomerName = d.CustomerName
	m.Lines = datatypes.NewJSONSlice(d.Lines)
	m.DocStatus = int(d.DocStatus)
	m.CreatedAt = d.CreatedAt
}

// ---------------------------------------------------------------------------
// Settings and naming series
// ---------------------------------------------------------------------------

// SettingsRowID is the primary key of the single settings row
const SettingsRowID = 1

// IntegrationSettingsModel is the single row holding the integration settings
type IntegrationSettingsModel struct {
	ID                 int    `gorm:"primaryKey;autoIncrement:false"`
	Enabled            bool   `gorm:"not null;default:false"`
	AppType            string `gorm:"type:varchar(20);not null"`
	ShopURL            string `gorm:"type:varchar(255);not null"`
	APIKey             string `gorm:"column:api_key;type:varchar(255)"`
	Password           string `gorm:"type:varchar(255)"`
	AccessToken        string `gorm:"type:varchar(255)"`
	SharedSecret       string `gorm:"type:varchar(255)"`
	Warehouse          string `gorm:"type:varchar(140)"`
	PriceList          string `gorm:"type:varchar(140)"`
	CashBankAccount    string `gorm:"type:varchar(140)"`
	CustomerGroup      string `gorm:"type:varchar(140)"`
	Territory          string `gorm:"type:varchar(140)"`
	SalesOrderSeries   string `gorm:"type:varchar(40)"`
	SalesInvoiceSeries string `gorm:"type:varchar(40)"`
	DeliveryNoteSeries string `gorm:"type:varchar(40)"`
	WebhookAddress     string `gorm:"type:varchar(255)"`
	TaxAccounts        datatypes.JSONType[map[string]string]
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (IntegrationSettingsModel) TableName() string {
	return "integration_settings"
}

// ToDomain converts the row to Settings
func (m *IntegrationSettingsModel) ToDomain() *integration.Settings {
	accounts := make(map[string]string)
	for k, v := range m.TaxAccounts.Data() {
		accounts[k] = v
	}
	return &integration.Settings{
		Enabled:            m.Enabled,
		AppType:            integration.AppType(m.AppType),
		ShopURL:            m.ShopURL,
		APIKey:             m.APIKey,
		Password:           m.Password,
		AccessToken:        m.AccessToken,
		SharedSecret:       m.SharedSecret,
		Warehouse:          m.Warehouse,
		PriceList:          m.PriceList,
		CashBankAccount:    m.CashBankAccount,
		CustomerGroup:      m.CustomerGroup,
		Territory:          m.Territory,
		SalesOrderSeries:   m.SalesOrderSeries,
		SalesInvoiceSeries: m.SalesInvoiceSeries,
		DeliveryNoteSeries: m.DeliveryNoteSeries,
		WebhookAddress:     m.WebhookAddress,
		TaxAccounts:        accounts,
	}
}

// FromDomain populates the row from Settings
func (m *IntegrationSettingsModel) FromDomain(s *integration.Settings) {
	m.ID = SettingsRowID
	m.Enabled = s.Enabled
	m.AppType = string(s.AppType)
	m.ShopURL = s.ShopURL
	m.APIKey = s.APIKey
	m.Password = s.Password
	m.AccessToken = s.AccessToken
	m.SharedSecret = s.SharedSecret
	m.Warehouse = s.Warehouse
	m.PriceList = s.PriceList
	m.CashBankAccount = s.CashBankAccount
	m.CustomerGroup = s.CustomerGroup
	m.Territory = s.Territory
	m.SalesOrderSeries = s.SalesOrderSeries
	m.SalesInvoiceSeries = s.SalesInvoiceSeries
	m.DeliveryNoteSeries = s.DeliveryNoteSeries
	m.WebhookAddress = s.WebhookAddress
	accounts := s.TaxAccounts
	if accounts == nil {
		accounts = map[string]string{}
	}
	m.TaxAccounts = datatypes.NewJSONType(accounts)
}

// NamingSeriesModel holds the last number issued for a prefix
type NamingSeriesModel struct {
	Prefix     string `gorm:"type:varchar(40);primaryKey"`
	LastNumber int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (NamingSeriesModel) TableName() string {
	return "naming_series"
}

func rawPayload(j datatypes.JSON) []byte {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return []byte(j)
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// AllModels lists every table for AutoMigrate
func AllModels() []any {
	return []any{
		&ItemModel{},
		&ItemAttributeModel{},
		&ItemGroupModel{},
		&ItemPriceModel{},
		&BinModel{},
		&CustomerModel{},
		&AddressModel{},
		&SalesOrderModel{},
		&SalesInvoiceModel{},
		&DeliveryNoteModel{},
		&IntegrationSettingsModel{},
		&NamingSeriesModel{},
	}
}
