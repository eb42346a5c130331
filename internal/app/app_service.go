package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"inventory-sync/internal/core"

	"github.com/invopop/jsonschema"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrBatchTooLarge is returned when a batch exceeds the configured maximum.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrInvalidRequest wraps malformed request parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type appService struct {
	sync     core.SyncService
	maxBatch int
	checks   map[string]Pinger
	catalog  singleflight.Group
	schema   *jsonschema.Schema
}

// NewAppService constructs an appService that satisfies ApplicationService.
// checks names the dependencies reported by Health.
func NewAppService(sync core.SyncService, maxBatch int, checks map[string]Pinger) ApplicationService {
	return &appService{
		sync:     sync,
		maxBatch: maxBatch,
		checks:   checks,
		schema:   generateSubmissionSchema(),
	}
}

// SyncSales runs the batch through the sync engine and tallies the outcome.
func (s *appService) SyncSales(ctx context.Context, batch []core.SaleSubmission) (*SyncBatchResult, error) {
	if s.maxBatch > 0 && len(batch) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d sales submitted, at most %d allowed", ErrBatchTooLarge, len(batch), s.maxBatch)
	}

	results := s.sync.SyncSales(ctx, batch)

	out := &SyncBatchResult{Results: results}
	for _, r := range results {
		switch r.Status {
		case core.StatusSuccess:
			out.Succeeded++
		case core.StatusSkipped:
			out.Skipped++
		default:
			out.Failed++
		}
	}
	log.Printf("[sync] batch of %d: %d synced, %d skipped, %d failed", len(batch), out.Succeeded, out.Skipped, out.Failed)
	return out, nil
}

// ProductsSince collapses concurrent identical pulls (many registers of one store
// refreshing together) into a single query. The shared query does not inherit
// any one caller's cancellation; each caller stops waiting on its own context.
func (s *appService) ProductsSince(ctx context.Context, req ProductsSinceRequest) (*ProductListResult, error) {
	if req.StoreID == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrInvalidRequest)
	}

	var since *time.Time
	if req.Since != "" {
		t, err := core.ParseSaleDate(req.Since)
		if err != nil {
			return nil, fmt.Errorf("%w: last_update: %v", ErrInvalidRequest, err)
		}
		since = &t
	}

	shared := context.WithoutCancel(ctx)
	key := req.StoreID + "|" + req.Since
	ch := s.catalog.DoChan(key, func() (any, error) {
		delta, err := s.sync.ProductsSince(shared, req.StoreID, since)
		if err != nil {
			return nil, err
		}
		out := &ProductListResult{
			StoreID:    req.StoreID,
			Products:   make([]CatalogProduct, len(delta.Products)),
			ServerTime: delta.AsOf,
		}
		for i, p := range delta.Products {
			out.Products[i] = CatalogProduct{Product: p, Code: p.Barcode}
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ProductListResult), nil
	}
}

func (s *appService) SubmissionSchema() *jsonschema.Schema {
	return s.schema
}

func (s *appService) Health(ctx context.Context) *HealthResult {
	res := &HealthResult{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	for name, p := range s.checks {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Printf("[health] WARN: %s unreachable: %v", name, err)
			res.Checks[name] = "unavailable"
			res.Status = "degraded"
			continue
		}
		res.Checks[name] = "ok"
	}
	return res
}
