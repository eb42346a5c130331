package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-sync/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxStarter opens transactions with explicit options. *pgxpool.Pool satisfies it.
type TxStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// productColumns is the select list scanProduct expects.
const productColumns = `id::text, store_id::text, name, quantity, unids, barcode, min_stock, out_price, created_at, updated_at`

// Directory implements core.Directory on the stores and products tables.
type Directory struct {
	db TxStarter
}

var _ core.Directory = (*Directory)(nil)

func NewDirectory(db TxStarter) *Directory {
	return &Directory{db: db}
}

func scanProduct(row pgx.Row) (*core.Product, error) {
	var p core.Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Quantity, &p.Unit, &p.Barcode,
		&p.MinStock, &p.OutPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (d *Directory) FindStoreTx(ctx context.Context, tx pgx.Tx, storeID string) (*core.Store, error) {
	id, err := uuid.Parse(storeID)
	if err != nil {
		return nil, core.ErrStoreNotFound
	}

	var s core.Store
	err = tx.QueryRow(ctx,
		"SELECT id::text, name, user_id::text, created_at FROM stores WHERE id = $1",
		id.String(),
	).Scan(&s.ID, &s.Name, &s.UserID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to fetch store: %w", err)
	}
	return &s, nil
}

func (d *Directory) FindProductByBarcodeTx(ctx context.Context, tx pgx.Tx, storeID, barcode string) (*core.Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1 AND barcode = $2
		ORDER BY updated_at DESC
		LIMIT 1`,
		storeID, barcode,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch product by barcode: %w", err)
	}
	return p, nil
}

func (d *Directory) FindProductByIDTx(ctx context.Context, tx pgx.Tx, storeID, productID string) (*core.Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND store_id = $2`,
		productID, storeID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch product by id: %w", err)
	}
	return p, nil
}

func (d *Directory) LockProductTx(ctx context.Context, tx pgx.Tx, productID string) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT quantity FROM products WHERE id = $1 FOR UPDATE", productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, core.ErrProductNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to lock product row: %w", err)
	}
	return qty, nil
}

// SetProductQuantityTx stamps updated_at with the transaction start time, which
// ProductsSince relies on for its cutoff.
func (d *Directory) SetProductQuantityTx(ctx context.Context, tx pgx.Tx, productID string, quantity decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		"UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrProductNotFound
	}
	return nil
}

func (d *Directory) FlagStockTx(ctx context.Context, tx pgx.Tx, flag core.StockFlag) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_flags (product_id, sale_id, quantity_sold, quantity_before, quantity_after)
		VALUES ($1, $2, $3, $4, $5)`,
		flag.ProductID, flag.SaleID, flag.QuantitySold, flag.QuantityBefore, flag.QuantityAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock flag: %w", err)
	}
	return nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

// catalogWatermark is the oldest start time among open transactions, capped at
// the pull's own start. Sale transactions stamp updated_at with NOW(), their
// start time, so a write not yet visible to this snapshot can never carry an
// earlier timestamp.
const catalogWatermark = `
	SELECT LEAST(now(), COALESCE(MIN(xact_start), now()))
	FROM pg_stat_activity
	WHERE xact_start IS NOT NULL
	  AND backend_type = 'client backend'
	  AND pid <> pg_backend_pid()`

// ProductsSince reads the watermark and the products from one repeatable-read
// snapshot.
func (d *Directory) ProductsSince(ctx context.Context, storeID string, since *time.Time) (*core.CatalogDelta, error) {
	id, err := uuid.Parse(storeID)
	if err != nil {
		return nil, core.ErrStoreNotFound
	}

	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin catalog snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	var asOf time.Time
	if err := tx.QueryRow(ctx, catalogWatermark).Scan(&asOf); err != nil {
		return nil, fmt.Errorf("failed to read catalog watermark: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = $1`
	args := []any{id.String()}
	if since != nil {
		query += ` AND updated_at >= $2`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY updated_at, id`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []core.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close catalog snapshot: %w", err)
	}
	return &core.CatalogDelta{Products: products, AsOf: asOf.UTC()}, nil
}
