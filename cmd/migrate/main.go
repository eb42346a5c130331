// migrate applies migrations/*.sql in order, recording each in schema_migrations.
//
// Usage: go run ./cmd/migrate [-dir migrations]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"inventory-sync/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_description.sql files")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"), 0)
	if err != nil {
		log.Fatalf("[migrate] %v", err)
	}
	defer pool.Close()

	migrations, err := db.DiscoverMigrations(os.DirFS(*dir))
	if err != nil {
		log.Fatalf("[migrate] %v", err)
	}

	applied, err := db.ApplyMigrations(ctx, pool, migrations)
	if err != nil {
		log.Fatalf("[migrate] ERROR: %v", err)
	}
	log.Printf("[migrate] done: %d applied, %d already current", applied, len(migrations)-applied)
}
