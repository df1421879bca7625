package integration

import (
	"github.com/erp/shopsync/internal/domain/integration"
)

// Session carries the settings and the remote gateway for one unit of work (a
// scheduled pass or one webhook). Every engine operation takes it explicitly.
type Session struct {
	Settings *integration.Settings
	Remote   integration.Gateway
}

// NewSession builds a gateway for settings.
func NewSession(settings *integration.Settings, factory integration.GatewayFactory) (*Session, error) {
	if settings == nil {
		return nil, integration.ErrSettingsNotFound
	}
	gw, err := factory.Gateway(settings)
	if err != nil {
		return nil, err
	}
	return &Session{Settings: settings, Remote: gw}, nil
}

// Repositories groups the local store ports used by the engines.
type Repositories struct {
	Items      integration.ItemRepository
	Attributes integration.AttributeRepository
	ItemGroups integration.ItemGroupRepository
	Prices     integration.PriceRepository
	Stock      integration.StockRepository
	Customers  integration.CustomerRepository
	Orders     integration.OrderRepository
	Invoices   integration.InvoiceRepository
	Deliveries integration.DeliveryRepository
	Settings   integration.SettingsRepository
	Series     integration.NamingSeries
}
