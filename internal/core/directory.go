package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	// ErrStoreNotFound is returned when a submission references an unknown store.
	ErrStoreNotFound = errors.New("store not found")
	// ErrProductNotFound is returned when a product row disappears between
	// resolution and locking.
	ErrProductNotFound = errors.New("product not found")
)

// TxBeginner opens database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Directory is the store/product lookup surface the sync engine depends on.
// Stores and products are owned by inventory management; the only write the
// engine performs through it is the stock quantity.
type Directory interface {
	// TX-scoped operations: work within a caller-provided transaction.

	// FindStoreTx returns ErrStoreNotFound when no such store exists.
	FindStoreTx(ctx context.Context, tx pgx.Tx, storeID string) (*Store, error)
	// FindProductByBarcodeTx returns nil, nil when no product of the store carries the barcode.
	FindProductByBarcodeTx(ctx context.Context, tx pgx.Tx, storeID, barcode string) (*Product, error)
	// FindProductByIDTx returns nil, nil when the store has no product with that id.
	FindProductByIDTx(ctx context.Context, tx pgx.Tx, storeID, productID string) (*Product, error)
	// LockProductTx row-locks the product until the transaction ends and returns its quantity.
	LockProductTx(ctx context.Context, tx pgx.Tx, productID string) (decimal.Decimal, error)
	// SetProductQuantityTx writes the new quantity and bumps updated_at.
	SetProductQuantityTx(ctx context.Context, tx pgx.Tx, productID string, quantity decimal.Decimal) error
	// FlagStockTx records a negative-stock condition for manual reconciliation.
	FlagStockTx(ctx context.Context, tx pgx.Tx, flag StockFlag) error

	// Standalone operations (manage their own connection).

	// ProductsSince lists the store's products updated at or after since, or all
	// of them when since is nil, with a cutoff that no in-flight write can precede.
	ProductsSince(ctx context.Context, storeID string, since *time.Time) (*CatalogDelta, error)
}

// SaleRepository persists sales and their items inside the caller's transaction.
type SaleRepository interface {
	// FindSaleIDTx looks up an existing sale by its POS identifier.
	FindSaleIDTx(ctx context.Context, tx pgx.Tx, posSaleID string) (id string, found bool, err error)
	// InsertSaleTx writes the sale header. inserted is false when another sale
	// with the same PosSaleID already exists or is being inserted concurrently.
	InsertSaleTx(ctx context.Context, tx pgx.Tx, sale *Sale) (inserted bool, err error)
	// InsertSaleItemTx writes one sale line.
	InsertSaleItemTx(ctx context.Context, tx pgx.Tx, item *SaleItem) error
}
