package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"inventory-sync/internal/app"
	"inventory-sync/internal/core"
)

// ErrUsage is returned when the command line cannot be dispatched.
var ErrUsage = errors.New("usage: app <sync FILE|-> | <products STORE_ID [SINCE]> | schema | health")

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name. A sync file of
// "-" is read from stdin.
func Run(ctx context.Context, svc app.ApplicationService, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "sync", "s":
		if len(args) < 2 {
			return fmt.Errorf("%w\nUsage: app sync <file|->", ErrUsage)
		}
		data, err := readInput(args[1], stdin)
		if err != nil {
			return err
		}
		batch, err := core.DecodeBatch(data)
		if err != nil {
			return err
		}
		result, err := svc.SyncSales(ctx, batch)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printSyncResult(stdout, result)
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d sales failed", result.Failed, len(result.Results))
		}
		return nil

	case "products", "prod", "p":
		if len(args) < 2 {
			return fmt.Errorf("%w\nUsage: app products <storeId> [since]", ErrUsage)
		}
		req := app.ProductsSinceRequest{StoreID: args[1]}
		if len(args) > 2 {
			req.Since = args[2]
		}
		result, err := svc.ProductsSince(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		printProducts(stdout, result)
		return nil

	case "schema":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(svc.SubmissionSchema())

	case "health":
		res := svc.Health(ctx)
		fmt.Fprintf(stdout, "status: %s\n", res.Status)
		for name, state := range res.Checks {
			fmt.Fprintf(stdout, "  %-10s %s\n", name, state)
		}
		if res.Status != "ok" {
			return errors.New("service degraded")
		}
		return nil

	default:
		return fmt.Errorf("unknown command: %s\n%w", args[0], ErrUsage)
	}
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func printSyncResult(w io.Writer, result *app.SyncBatchResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  SYNC RESULT  synced %d  skipped %d  failed %d\n", result.Succeeded, result.Skipped, result.Failed)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-20s %-8s %-36s\n", "POS SALE", "STATUS", "SALE ID")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, r := range result.Results {
		fmt.Fprintf(w, "  %-20s %-8s %-36s\n", r.PosSaleID, r.Status, r.ID)
		if r.Message != "" {
			fmt.Fprintf(w, "      %s\n", r.Message)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "      warning: %s\n", warn)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

func printProducts(w io.Writer, result *app.ProductListResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Store       : %s\n", result.StoreID)
	fmt.Fprintf(w, "  Server time : %s\n", result.ServerTime.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-36s %-16s %12s %10s\n", "ID", "BARCODE", "QUANTITY", "MIN")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, p := range result.Products {
		barcode := ""
		if p.Barcode != nil {
			barcode = *p.Barcode
		}
		fmt.Fprintf(w, "  %-36s %-16s %12s %10s  %s\n", p.ID, barcode, p.Quantity.String(), p.MinStock.String(), p.Name)
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
}
