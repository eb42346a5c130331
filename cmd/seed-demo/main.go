// seed-demo loads a demo store with a handful of products so a register can be
// pointed at a fresh database. Running it again resets the demo stock levels.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"log"
	"os"

	"inventory-sync/internal/db"

	"github.com/joho/godotenv"
)

const demoStoreID = "5e1f0000-0000-4000-8000-000000000001"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"), 0)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Restoring demo store...")
	_, err = tx.Exec(ctx, `
		INSERT INTO stores (id, name)
		VALUES ($1, 'Demo Corner Store')
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		demoStoreID,
	)
	if err != nil {
		log.Fatalf("Failed to restore store: %v", err)
	}

	log.Println("Restoring demo products...")
	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, store_id, name, quantity, unids, barcode, min_stock, out_price)
		SELECT p.id::uuid, $1::uuid, p.name, p.quantity, p.unids, p.barcode, p.min_stock, p.out_price
		FROM (VALUES
		    ('5e1f0000-0000-4000-8000-000000000101', 'Yerba mate 1kg',    40::numeric, 'unit', '7790387000014', 5::numeric,  4.80::numeric),
		    ('5e1f0000-0000-4000-8000-000000000102', 'Sugar 1kg',         60,          'unit', '7790150000012', 10,          1.20),
		    ('5e1f0000-0000-4000-8000-000000000103', 'Sparkling water',   48,          'unit', '7790895000017', 12,          0.90),
		    ('5e1f0000-0000-4000-8000-000000000104', 'Bread roll',        80,          'unit', NULL,            20,          0.25),
		    ('5e1f0000-0000-4000-8000-000000000105', 'Cheese (by weight)', 12.5,       'kg',   NULL,            2,           9.60)
		) AS p(id, name, quantity, unids, barcode, min_stock, out_price)
		ON CONFLICT (id) DO UPDATE
		  SET name = EXCLUDED.name,
		      quantity = EXCLUDED.quantity,
		      barcode = EXCLUDED.barcode,
		      min_stock = EXCLUDED.min_stock,
		      out_price = EXCLUDED.out_price,
		      updated_at = NOW()`,
		demoStoreID,
	)
	if err != nil {
		log.Fatalf("Failed to restore products: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Printf("Demo store %s seeded.", demoStoreID)
}
