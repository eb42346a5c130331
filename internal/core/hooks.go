package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SaleSynced is emitted after a sale has been committed.
type SaleSynced struct {
	SaleID    string            `json:"saleId"`
	PosSaleID string            `json:"posSaleId"`
	StoreID   string            `json:"storeId"`
	Date      time.Time         `json:"date"`
	Total     decimal.Decimal   `json:"total"`
	Items     []SaleSyncedItem  `json:"items"`
	LowStock  []LowStockProduct `json:"lowStock,omitempty"`
}

type SaleSyncedItem struct {
	ProductRef string          `json:"productRef"`
	ProductID  *string         `json:"productId,omitempty"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// LowStockProduct is a product whose stock fell to or below its minimum
// because of the sale.
type LowStockProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	MinStock  decimal.Decimal `json:"minStock"`
}

// EventPublisher announces committed sales to downstream consumers.
type EventPublisher interface {
	PublishSaleSynced(ctx context.Context, event SaleSynced) error
}

// SeenCache maps POS sale ids to the id of their durable sale. It is a fast
// path only; the sales table stays authoritative.
type SeenCache interface {
	Seen(ctx context.Context, posSaleID string) (saleID string, found bool, err error)
	Remember(ctx context.Context, posSaleID, saleID string) error
}

// SyncMetrics receives sync outcomes.
type SyncMetrics interface {
	SubmissionDone(status SyncStatus)
	UnresolvedItem()
	NegativeStock()
	Retry()
	BatchDone(size int, elapsed time.Duration)
}

type noopPublisher struct{}

func (noopPublisher) PublishSaleSynced(context.Context, SaleSynced) error { return nil }

type noopSeenCache struct{}

func (noopSeenCache) Seen(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopSeenCache) Remember(context.Context, string, string) error     { return nil }

type noopMetrics struct{}

func (noopMetrics) SubmissionDone(SyncStatus)    {}
func (noopMetrics) UnresolvedItem()              {}
func (noopMetrics) NegativeStock()               {}
func (noopMetrics) Retry()                       {}
func (noopMetrics) BatchDone(int, time.Duration) {}
