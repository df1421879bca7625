package integration

// Stage names used in results, logs and metrics
const (
	StageCatalogPull  = "catalog_pull"
	StageCatalogPush  = "catalog_push"
	StageCustomerPull = "customer_pull"
	StageCustomerPush = "customer_push"
	StageOrders       = "orders"
	StageInventory    = "inventory"
)
