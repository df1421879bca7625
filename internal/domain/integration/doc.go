// Package integration contains the Integration bounded context.
// This context keeps the local ERP records (items, customers, orders, invoices,
// deliveries, stock levels) consistent with a remote Shopify store.
//
// Key concepts:
//   - ExternalID: the remote identifier pair stored on every mapped local record
//   - LocalItem / ItemAttribute: the catalog, with template items and their variants
//   - LocalOrder / LocalInvoice / LocalDelivery: the order progression mirrored from the store
//   - Gateway: port for the remote REST API
//   - Repositories: ports for the local store; every ExternalID is unique in the store
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
