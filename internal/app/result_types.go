package app

import (
	"time"

	"inventory-sync/internal/core"
)

// SyncBatchResult is returned by SyncSales. Results are in submission order.
type SyncBatchResult struct {
	Results   []core.SyncResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
}

// CatalogProduct is a product as served to POS registers, which look products
// up by code.
type CatalogProduct struct {
	core.Product
	Code *string `json:"code"`
}

// ProductListResult is returned by ProductsSince.
type ProductListResult struct {
	StoreID  string           `json:"storeId"`
	Products []CatalogProduct `json:"products"`
	// ServerTime is the value a register should send as Since on its next pull.
	ServerTime time.Time `json:"serverTime"`
}

// HealthResult is returned by Health.
type HealthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
