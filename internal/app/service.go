package app

import (
	"context"

	"inventory-sync/internal/core"

	"github.com/invopop/jsonschema"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples transport from the sync engine. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// SyncSales ingests one batch of POS sales. Per-sale failures are reported in
	// the result; an error is returned only when the batch is rejected as a whole
	// (ErrBatchTooLarge).
	SyncSales(ctx context.Context, batch []core.SaleSubmission) (*SyncBatchResult, error)

	// ProductsSince returns the store catalog changed after req.Since (all products
	// when empty), shaped for POS registers.
	ProductsSince(ctx context.Context, req ProductsSinceRequest) (*ProductListResult, error)

	// SubmissionSchema returns the JSON Schema of a sync batch.
	SubmissionSchema() *jsonschema.Schema

	// Health pings every configured dependency.
	Health(ctx context.Context) *HealthResult
}
