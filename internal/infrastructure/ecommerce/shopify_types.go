package ecommerce

import "github.com/erp/shopsync/internal/domain/integration"

// JSON envelopes of the admin REST API. Single resources are wrapped in their
// singular name, lists in the plural.

type productEnvelope struct {
	Product *integration.RemoteProduct `json:"product"`
}

type productsEnvelope struct {
	Products []integration.RemoteProduct `json:"products"`
}

type stockEnvelope struct {
	Product integration.ProductStockUpdate `json:"product"`
}

type imageEnvelope struct {
	Image *integration.RemoteImage `json:"image"`
}

type customerEnvelope struct {
	Customer *integration.RemoteCustomer `json:"customer"`
}

type customersEnvelope struct {
	Customers []integration.RemoteCustomer `json:"customers"`
}

type orderEnvelope struct {
	Order *integration.RemoteOrder `json:"order"`
}

type ordersEnvelope struct {
	Orders []integration.RemoteOrder `json:"orders"`
}

type webhookEnvelope struct {
	Webhook *integration.RemoteWebhook `json:"webhook"`
}

type webhooksEnvelope struct {
	Webhooks []integration.RemoteWebhook `json:"webhooks"`
}
