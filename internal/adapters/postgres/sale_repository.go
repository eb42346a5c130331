package postgres

import (
	"context"
	"errors"
	"fmt"

	"inventory-sync/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SaleRepository implements core.SaleRepository on the sales and sale_items tables.
// All operations run inside the caller's transaction.
type SaleRepository struct{}

var _ core.SaleRepository = (*SaleRepository)(nil)

func NewSaleRepository() *SaleRepository {
	return &SaleRepository{}
}

func (r *SaleRepository) FindSaleIDTx(ctx context.Context, tx pgx.Tx, posSaleID string) (string, bool, error) {
	var id string
	err := tx.QueryRow(ctx, "SELECT id::text FROM sales WHERE pos_sale_id = $1", posSaleID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up sale: %w", err)
	}
	return id, true, nil
}

// InsertSaleTx writes the header. When pos_sale_id is already taken, including
// by a concurrent transaction that commits first, nothing is written and
// inserted is false.
func (r *SaleRepository) InsertSaleTx(ctx context.Context, tx pgx.Tx, sale *core.Sale) (bool, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO sales (id, pos_sale_id, store_id, date, total, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pos_sale_id) DO NOTHING
		RETURNING id::text`,
		sale.ID, sale.PosSaleID, sale.StoreID, sale.Date, sale.Total, sale.PaymentMethod,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert sale: %w", err)
	}
	return true, nil
}

func (r *SaleRepository) InsertSaleItemTx(ctx context.Context, tx pgx.Tx, item *core.SaleItem) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO sale_items (id, sale_id, line_no, product_id, product_ref, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.SaleID, item.LineNo, item.ProductID, item.ProductRef, item.Quantity, item.Price, item.Subtotal,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("duplicate line %d for sale %s", item.LineNo, item.SaleID)
		}
		return fmt.Errorf("failed to insert sale item: %w", err)
	}
	return nil
}
