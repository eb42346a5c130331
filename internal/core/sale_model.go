package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is a point of sale location. Stores are owned by the inventory
// management side of the system and are read-only here.
type Store struct {
	ID        string
	Name      string
	UserID    *string
	CreatedAt time.Time
}

// Product is a stock-keeping item belonging to exactly one store.
// Quantity may be negative: oversell is surfaced, not absorbed.
type Product struct {
	ID        string          `json:"id"`
	StoreID   string          `json:"storeId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unids"`
	Barcode   *string         `json:"barcode"`
	MinStock  decimal.Decimal `json:"minStock"`
	OutPrice  decimal.Decimal `json:"outPrice"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CatalogDelta is one product pull. Every change it does not include carries
// an updated_at at or after AsOf, so AsOf is the cutoff for the next pull.
type CatalogDelta struct {
	Products []Product
	AsOf     time.Time
}

// Sale is the header of a POS transaction ingested by the sync engine.
// It is created once per PosSaleID and never mutated afterwards.
type Sale struct {
	ID            string
	PosSaleID     string
	StoreID       string
	Date          time.Time
	Total         decimal.Decimal
	PaymentMethod *string
	Items         []SaleItem
}

// SaleItem is one line of a Sale. ProductID is nil when the line could not
// be linked to a product; the line is kept for historical integrity.
type SaleItem struct {
	ID         string
	SaleID     string
	LineNo     int
	ProductID  *string
	ProductRef string
	Quantity   int
	Price      decimal.Decimal
	Subtotal   decimal.Decimal
}

// NewSaleItem builds a line with its subtotal fixed at quantity × price.
func NewSaleItem(id, saleID string, lineNo int, productRef string, quantity int, price decimal.Decimal) SaleItem {
	return SaleItem{
		ID:         id,
		SaleID:     saleID,
		LineNo:     lineNo,
		ProductRef: productRef,
		Quantity:   quantity,
		Price:      price,
		Subtotal:   price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SyncStatus is the terminal state of one submission in a batch.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSuccess SyncStatus = "success"
	StatusSkipped SyncStatus = "skipped"
	StatusError   SyncStatus = "error"
)

// SyncResult reports what happened to one submission. Results are returned in
// the same order as the submissions they describe.
type SyncResult struct {
	PosSaleID string     `json:"posSaleId"`
	Status    SyncStatus `json:"status"`
	ID        string     `json:"id,omitempty"`
	Message   string     `json:"message,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// StockFlag records a decrement that drove a product below zero so it can be
// reconciled by hand.
type StockFlag struct {
	ProductID      string
	SaleID         string
	QuantitySold   decimal.Decimal
	QuantityBefore decimal.Decimal
	QuantityAfter  decimal.Decimal
}
