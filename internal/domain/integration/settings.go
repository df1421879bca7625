package integration

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AppType selects the remote authentication scheme
type AppType string

const (
	// AppTypePrivate authenticates with HTTP basic auth (api key / password)
	AppTypePrivate AppType = "Private"
	// AppTypePublic authenticates with an access token header
	AppTypePublic AppType = "Public"
)

// IsValid returns true if the app type is known
func (t AppType) IsValid() bool {
	return t == AppTypePrivate || t == AppTypePublic
}

// Settings is the explicit configuration passed to every sync operation.
type Settings struct {
	Enabled     bool
	AppType     AppType `validate:"required,oneof=Private Public"`
	ShopURL     string  `validate:"required"`
	APIKey      string  `validate:"required_if=AppType Private"`
	Password    string  `validate:"required_if=AppType Private"`
	AccessToken string  `validate:"required_if=AppType Public"`
	// SharedSecret signs webhooks; falls back to Password
	SharedSecret string

	Warehouse       string
	PriceList       string
	CashBankAccount string
	CustomerGroup   string
	Territory       string

	SalesOrderSeries   string
	SalesInvoiceSeries string
	DeliveryNoteSeries string

	WebhookAddress string
	// TaxAccounts maps a remote tax or shipping title to a ledger account
	TaxAccounts map[string]string
}

var settingsValidator = validator.New()

// Validate checks that the credentials required by the app type are present.
func (s *Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.StructField() == "AppType" {
			return NewConfigurationError("app_type", "must be Private or Public")
		}
		return NewConfigurationError(strings.ToLower(fe.Field()), "is required for "+string(s.AppType)+" apps")
	}
	return NewConfigurationError("", err.Error())
}

// WebhookSecret returns the key used to sign inbound webhooks.
func (s *Settings) WebhookSecret() string {
	if s.SharedSecret != "" {
		return s.SharedSecret
	}
	return s.Password
}

// TaxAccount resolves the ledger account for a remote tax or shipping title.
// An unmapped title is a ConfigurationError.
func (s *Settings) TaxAccount(title string) (string, error) {
	account, ok := s.TaxAccounts[title]
	if !ok || account == "" {
		return "", NewConfigurationError("tax_accounts", "tax account not specified for shopify tax "+title)
	}
	return account, nil
}

// PriceListName returns the price list used for synced rates
func (s *Settings) PriceListName() string {
	return withDefault(s.PriceList, DefaultPriceList)
}

// OrderSeries returns the naming series for sales orders
func (s *Settings) OrderSeries() string {
	return withDefault(s.SalesOrderSeries, DefaultSalesOrderSeries)
}

// InvoiceSeries returns the naming series for sales invoices
func (s *Settings) InvoiceSeries() string {
	return withDefault(s.SalesInvoiceSeries, DefaultSalesInvoiceSeries)
}

// DeliverySeries returns the naming series for delivery notes
func (s *Settings) DeliverySeries() string {
	return withDefault(s.DeliveryNoteSeries, DefaultDeliveryNoteSeries)
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
