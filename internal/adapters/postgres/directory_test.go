package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"inventory-sync/internal/adapters/postgres"
	"inventory-sync/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

const (
	storeID   = "11111111-1111-1111-1111-111111111111"
	productID = "aaaaaaaa-0000-0000-0000-000000000001"
)

var productCols = []string{"id", "store_id", "name", "quantity", "unids", "barcode", "min_stock", "out_price", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	return tx
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestDirectory_FindStoreTx(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		tx := beginTx(t, mock)
		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(q("FROM stores WHERE id = $1")).
			WithArgs(storeID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "user_id", "created_at"}).
				AddRow(storeID, "Main Street", nil, created))

		s, err := postgres.NewDirectory(mock).FindStoreTx(ctx, tx, storeID)
		if err != nil {
			t.Fatalf("FindStoreTx failed: %v", err)
		}
		if s.ID != storeID || s.Name != "Main Street" {
			t.Errorf("unexpected store %+v", s)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		tx := beginTx(t, mock)
		mock.ExpectQuery(q("FROM stores WHERE id = $1")).
			WithArgs(storeID).
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewDirectory(mock).FindStoreTx(ctx, tx, storeID)
		if !errors.Is(err, core.ErrStoreNotFound) {
			t.Fatalf("expected ErrStoreNotFound, got %v", err)
		}
	})

	t.Run("malformed id never reaches the database", func(t *testing.T) {
		mock := newMock(t)
		tx := beginTx(t, mock)

		_, err := postgres.NewDirectory(mock).FindStoreTx(ctx, tx, "store-1")
		if !errors.Is(err, core.ErrStoreNotFound) {
			t.Fatalf("expected ErrStoreNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestDirectory_FindProductByBarcodeTx(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	tx := beginTx(t, mock)
	now := time.Now().UTC()
	barcode := "7790001000011"

	mock.ExpectQuery(q("WHERE store_id = $1 AND barcode = $2")).
		WithArgs(storeID, barcode).
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow(productID, storeID, "Yerba 1kg", decimal.NewFromInt(50), "unit", &barcode,
				decimal.NewFromInt(5), decimal.RequireFromString("3.20"), now, now))
	mock.ExpectQuery(q("WHERE store_id = $1 AND barcode = $2")).
		WithArgs(storeID, "unknown").
		WillReturnError(pgx.ErrNoRows)

	dir := postgres.NewDirectory(mock)
	p, err := dir.FindProductByBarcodeTx(ctx, tx, storeID, barcode)
	if err != nil {
		t.Fatalf("FindProductByBarcodeTx failed: %v", err)
	}
	if p == nil || p.ID != productID || !p.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected product %+v", p)
	}

	p, err = dir.FindProductByBarcodeTx(ctx, tx, storeID, "unknown")
	if err != nil || p != nil {
		t.Errorf("expected nil, nil for unknown barcode, got %v, %v", p, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDirectory_LockAndSetQuantity(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	tx := beginTx(t, mock)

	mock.ExpectQuery(q("SELECT quantity FROM products WHERE id = $1 FOR UPDATE")).
		WithArgs(productID).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(decimal.NewFromInt(50)))
	mock.ExpectExec(q("UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(pgxmock.AnyArg(), productID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dir := postgres.NewDirectory(mock)
	qty, err := dir.LockProductTx(ctx, tx, productID)
	if err != nil {
		t.Fatalf("LockProductTx failed: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected 50, got %s", qty)
	}
	if err := dir.SetProductQuantityTx(ctx, tx, productID, qty.Sub(decimal.NewFromInt(8))); err != nil {
		t.Fatalf("SetProductQuantityTx failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDirectory_SetQuantity_MissingRow(t *testing.T) {
	mock := newMock(t)
	tx := beginTx(t, mock)
	mock.ExpectExec(q("UPDATE products SET quantity")).
		WithArgs(pgxmock.AnyArg(), productID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := postgres.NewDirectory(mock).SetProductQuantityTx(context.Background(), tx, productID, decimal.Zero)
	if !errors.Is(err, core.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDirectory_LockProduct_DeadlockIsPassedThrough(t *testing.T) {
	mock := newMock(t)
	tx := beginTx(t, mock)
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs(productID).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})

	_, err := postgres.NewDirectory(mock).LockProductTx(context.Background(), tx, productID)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "40P01" {
		t.Fatalf("expected wrapped deadlock error, got %v", err)
	}
}

func TestDirectory_FlagStockTx(t *testing.T) {
	mock := newMock(t)
	tx := beginTx(t, mock)
	mock.ExpectExec(q("INSERT INTO stock_flags")).
		WithArgs(productID, "sale-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := postgres.NewDirectory(mock).FlagStockTx(context.Background(), tx, core.StockFlag{
		ProductID:      productID,
		SaleID:         "sale-1",
		QuantitySold:   decimal.NewFromInt(12),
		QuantityBefore: decimal.NewFromInt(10),
		QuantityAfter:  decimal.NewFromInt(-2),
	})
	if err != nil {
		t.Fatalf("FlagStockTx failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

var snapshotOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

func TestDirectory_ProductsSince(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("with cutoff", func(t *testing.T) {
		mock := newMock(t)
		since := now.Add(-time.Hour)
		watermark := now.Add(-2 * time.Second)
		mock.ExpectBeginTx(snapshotOptions)
		mock.ExpectQuery(q("FROM pg_stat_activity")).
			WillReturnRows(pgxmock.NewRows([]string{"least"}).AddRow(watermark))
		mock.ExpectQuery(q("WHERE store_id = $1 AND updated_at >= $2 ORDER BY updated_at, id")).
			WithArgs(storeID, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(productCols).
				AddRow(productID, storeID, "Yerba 1kg", decimal.NewFromInt(42), "unit", nil,
					decimal.NewFromInt(5), decimal.NewFromInt(3), now, now))
		mock.ExpectCommit()

		delta, err := postgres.NewDirectory(mock).ProductsSince(ctx, storeID, &since)
		if err != nil {
			t.Fatalf("ProductsSince failed: %v", err)
		}
		if len(delta.Products) != 1 || delta.Products[0].ID != productID {
			t.Errorf("unexpected products %+v", delta.Products)
		}
		if !delta.AsOf.Equal(watermark) {
			t.Errorf("expected cutoff %v from the database, got %v", watermark, delta.AsOf)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("without cutoff returns an empty slice", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBeginTx(snapshotOptions)
		mock.ExpectQuery(q("FROM pg_stat_activity")).
			WillReturnRows(pgxmock.NewRows([]string{"least"}).AddRow(now))
		mock.ExpectQuery(q("WHERE store_id = $1 ORDER BY updated_at, id")).
			WithArgs(storeID).
			WillReturnRows(pgxmock.NewRows(productCols))
		mock.ExpectCommit()

		delta, err := postgres.NewDirectory(mock).ProductsSince(ctx, storeID, nil)
		if err != nil {
			t.Fatalf("ProductsSince failed: %v", err)
		}
		if delta.Products == nil || len(delta.Products) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", delta.Products)
		}
	})

	t.Run("watermark failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBeginTx(snapshotOptions)
		mock.ExpectQuery(q("FROM pg_stat_activity")).
			WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		if _, err := postgres.NewDirectory(mock).ProductsSince(ctx, storeID, nil); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("malformed store id", func(t *testing.T) {
		mock := newMock(t)
		_, err := postgres.NewDirectory(mock).ProductsSince(ctx, "store-1", nil)
		if !errors.Is(err, core.ErrStoreNotFound) {
			t.Fatalf("expected ErrStoreNotFound, got %v", err)
		}
	})
}
