package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SyncService ingests batches of POS sales and reconciles them against stock.
type SyncService interface {
	// SyncSales processes every submission in its own transaction and returns
	// exactly one result per submission, in input order. It never fails as a
	// whole: per-submission failures are reported in the results.
	SyncSales(ctx context.Context, batch []SaleSubmission) []SyncResult

	// ProductsSince returns the store's products changed at or after since (all
	// when nil), for registers refreshing their local catalog. Registers pass the
	// returned AsOf as since on their next pull.
	ProductsSince(ctx context.Context, storeID string, since *time.Time) (*CatalogDelta, error)
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// Workers bounds how many submissions run concurrently. 1 or less is sequential.
	Workers int
	// MaxAttempts bounds retries of a unit of work that hit a deadlock or
	// serialization failure.
	MaxAttempts   int
	NegativeStock NegativeStockPolicy
}

// SyncDeps are the collaborators of the sync engine. Seen, Events and Metrics are optional.
type SyncDeps struct {
	DB        TxBeginner
	Sales     SaleRepository
	Directory Directory
	Seen      SeenCache
	Events    EventPublisher
	Metrics   SyncMetrics
}

type syncService struct {
	db        TxBeginner
	sales     SaleRepository
	directory Directory
	resolver  *ProductResolver
	ledger    *StockLedger
	seen      SeenCache
	events    EventPublisher
	metrics   SyncMetrics
	cfg       SyncConfig
}

func NewSyncService(deps SyncDeps, cfg SyncConfig) SyncService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	s := &syncService{
		db:        deps.DB,
		sales:     deps.Sales,
		directory: deps.Directory,
		resolver:  NewProductResolver(deps.Directory),
		ledger:    NewStockLedger(deps.Directory, cfg.NegativeStock),
		seen:      deps.Seen,
		events:    deps.Events,
		metrics:   deps.Metrics,
		cfg:       cfg,
	}
	if s.seen == nil {
		s.seen = noopSeenCache{}
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

// outcome is what one committed or short-circuited unit of work produced.
type outcome struct {
	status    SyncStatus
	saleID    string
	warnings  []string
	sale      *Sale
	lowStock  []LowStockProduct
	movements []StockMovement
}

// ── Batch ─────────────────────────────────────────────────────────────────────

func (s *syncService) SyncSales(ctx context.Context, batch []SaleSubmission) []SyncResult {
	start := time.Now()
	results := make([]SyncResult, len(batch))

	if s.cfg.Workers <= 1 {
		for i := range batch {
			results[i] = s.syncOne(ctx, batch[i])
		}
	} else {
		s.syncConcurrently(ctx, batch, results)
	}

	s.metrics.BatchDone(len(batch), time.Since(start))
	return results
}

// syncConcurrently runs submissions on a bounded pool. Submissions sharing a
// PosSaleID form one group handled by a single goroutine in input order, so
// the first occurrence wins and the rest are skipped deterministically.
func (s *syncService) syncConcurrently(ctx context.Context, batch []SaleSubmission, results []SyncResult) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for _, group := range groupByPosSaleID(batch) {
		g.Go(func() error {
			for _, i := range group {
				results[i] = s.syncOne(ctx, batch[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

// groupByPosSaleID returns input indexes grouped by trimmed PosSaleID, groups in
// order of first appearance. Entries without an id each get their own group.
func groupByPosSaleID(batch []SaleSubmission) [][]int {
	var groups [][]int
	byID := make(map[string]int)
	for i := range batch {
		id := strings.TrimSpace(batch[i].PosSaleID)
		if id == "" {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := byID[id]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		byID[id] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

// ── One submission ────────────────────────────────────────────────────────────

func (s *syncService) syncOne(ctx context.Context, sub SaleSubmission) SyncResult {
	sub.Normalize()
	res := SyncResult{PosSaleID: sub.PosSaleID, Status: StatusPending}

	if err := ctx.Err(); err != nil {
		return s.fail(res, fmt.Errorf("sync aborted before processing: %w", err))
	}
	if err := sub.Validate(); err != nil {
		return s.fail(res, err)
	}

	if saleID, seen, err := s.seen.Seen(ctx, sub.PosSaleID); err != nil {
		log.Printf("[sync] WARN: seen-cache lookup failed for sale %s: %v", sub.PosSaleID, err)
	} else if seen {
		log.Printf("[sync] sale %s already synced (cache), skipping", sub.PosSaleID)
		res.Status = StatusSkipped
		res.ID = saleID
		res.Message = "already exists"
		s.metrics.SubmissionDone(res.Status)
		return res
	}

	var out *outcome
	var err error
	for attempt := 1; ; attempt++ {
		out, err = s.runUnitOfWork(ctx, sub)
		if err == nil || !isRetryable(err) || attempt >= s.cfg.MaxAttempts {
			break
		}
		s.metrics.Retry()
		log.Printf("[sync] WARN: sale %s hit %v, retrying (attempt %d of %d)", sub.PosSaleID, err, attempt+1, s.cfg.MaxAttempts)
	}
	if err != nil {
		return s.fail(res, err)
	}

	res.Status = out.status
	res.ID = out.saleID
	res.Warnings = out.warnings

	switch out.status {
	case StatusSkipped:
		res.Message = "already exists"
		log.Printf("[sync] sale %s already exists, skipping", sub.PosSaleID)
	case StatusSuccess:
		log.Printf("[sync] sale %s committed as %s (%d items)", sub.PosSaleID, out.saleID, len(out.sale.Items))
		s.afterCommit(ctx, out)
	}

	if err := s.seen.Remember(ctx, sub.PosSaleID, out.saleID); err != nil {
		log.Printf("[sync] WARN: failed to remember sale %s in seen-cache: %v", sub.PosSaleID, err)
	}
	s.metrics.SubmissionDone(res.Status)
	return res
}

func (s *syncService) fail(res SyncResult, err error) SyncResult {
	log.Printf("[sync] ERROR: failed to sync sale %s: %v", res.PosSaleID, err)
	res.Status = StatusError
	res.Message = err.Error()
	s.metrics.SubmissionDone(res.Status)
	return res
}

// runUnitOfWork executes one submission inside a single transaction. Nothing is
// committed unless every step succeeded; skipped submissions are rolled back.
func (s *syncService) runUnitOfWork(ctx context.Context, sub SaleSubmission) (*outcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	out, err := s.processTx(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if out.status == StatusSkipped {
		return out, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale %s: %w", sub.PosSaleID, err)
	}
	return out, nil
}

// processTx runs the idempotency check, store and product resolution, sale
// header insert, stock deduction and item inserts within the caller's TX.
func (s *syncService) processTx(ctx context.Context, tx pgx.Tx, sub SaleSubmission) (*outcome, error) {
	// 1. Idempotency guard
	existingID, found, err := s.sales.FindSaleIDTx(ctx, tx, sub.PosSaleID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing sale: %w", err)
	}
	if found {
		return &outcome{status: StatusSkipped, saleID: existingID}, nil
	}

	// 2. Resolve store
	store, err := s.directory.FindStoreTx(ctx, tx, sub.StoreID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, fmt.Errorf("store %s not found", sub.StoreID)
		}
		return nil, fmt.Errorf("failed to resolve store %s: %w", sub.StoreID, err)
	}

	// 3. Resolve every line's product before any row is locked
	out := &outcome{status: StatusSuccess}
	resolutions := make([]Resolution, len(sub.Items))
	for i, item := range sub.Items {
		resolution, err := s.resolver.ResolveTx(ctx, tx, store.ID, item.ProductID)
		if err != nil {
			return nil, err
		}
		if _, ok := resolution.Product(); !ok {
			log.Printf("[sync] WARN: product %s not found in store %s during sync of sale %s, skipping stock deduction",
				item.ProductID, store.ID, sub.PosSaleID)
			s.metrics.UnresolvedItem()
			out.warnings = append(out.warnings, fmt.Sprintf("item %d: product %s not found, stock not deducted", i+1, item.ProductID))
		}
		resolutions[i] = resolution
	}

	// 4. Sale header; a conflict on pos_sale_id means a concurrent sync won the race
	sale, err := buildSale(sub, store.ID, resolutions)
	if err != nil {
		return nil, err
	}
	inserted, err := s.sales.InsertSaleTx(ctx, tx, sale)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}
	if !inserted {
		id, _, err := s.sales.FindSaleIDTx(ctx, tx, sub.PosSaleID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up concurrently inserted sale: %w", err)
		}
		return &outcome{status: StatusSkipped, saleID: id}, nil
	}

	// 5. Stock deduction, rows locked in ascending id order
	products := make(map[string]*Product)
	sold := make(map[string]decimal.Decimal)
	for i, resolution := range resolutions {
		product, ok := resolution.Product()
		if !ok {
			continue
		}
		products[product.ID] = product
		sold[product.ID] = sold[product.ID].Add(decimal.NewFromInt(int64(sub.Items[i].Quantity)))
	}
	productIDs := make([]string, 0, len(sold))
	for id := range sold {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	for _, id := range productIDs {
		mv, err := s.ledger.DeductTx(ctx, tx, id, sale.ID, sold[id])
		if err != nil {
			return nil, err
		}
		log.Printf("[sync] product %s stock %s -> %s (sale %s)", id, mv.Before.String(), mv.After.String(), sub.PosSaleID)
		if mv.After.IsNegative() {
			s.metrics.NegativeStock()
		}
		if mv.Flagged {
			out.warnings = append(out.warnings, fmt.Sprintf("product %s stock is negative (%s), flagged for reconciliation", id, mv.After.String()))
		}
		if p := products[id]; mv.After.LessThanOrEqual(p.MinStock) {
			out.lowStock = append(out.lowStock, LowStockProduct{
				ProductID: id,
				Name:      p.Name,
				Quantity:  mv.After,
				MinStock:  p.MinStock,
			})
		}
		out.movements = append(out.movements, mv)
	}

	// 6. Sale lines, in register order
	for i := range sale.Items {
		if err := s.sales.InsertSaleItemTx(ctx, tx, &sale.Items[i]); err != nil {
			return nil, fmt.Errorf("failed to insert item %d of sale %s: %w", i+1, sub.PosSaleID, err)
		}
	}

	out.saleID = sale.ID
	out.sale = sale
	return out, nil
}

func buildSale(sub SaleSubmission, storeID string, resolutions []Resolution) (*Sale, error) {
	date, err := ParseSaleDate(sub.Date)
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:        uuid.NewString(),
		PosSaleID: sub.PosSaleID,
		StoreID:   storeID,
		Date:      date,
		Total:     sub.Total.Decimal,
		Items:     make([]SaleItem, len(sub.Items)),
	}
	if sub.PaymentMethod != "" {
		pm := sub.PaymentMethod
		sale.PaymentMethod = &pm
	}

	for i, in := range sub.Items {
		item := NewSaleItem(uuid.NewString(), sale.ID, i+1, in.ProductID, in.Quantity, in.Price.Decimal)
		if product, ok := resolutions[i].Product(); ok {
			id := product.ID
			item.ProductID = &id
		}
		sale.Items[i] = item
	}
	return sale, nil
}

// afterCommit publishes the sale event. The sale is durable at this point, so
// a publish failure is logged and does not change the result.
func (s *syncService) afterCommit(ctx context.Context, out *outcome) {
	event := SaleSynced{
		SaleID:    out.sale.ID,
		PosSaleID: out.sale.PosSaleID,
		StoreID:   out.sale.StoreID,
		Date:      out.sale.Date,
		Total:     out.sale.Total,
		Items:     make([]SaleSyncedItem, len(out.sale.Items)),
		LowStock:  out.lowStock,
	}
	for i, item := range out.sale.Items {
		event.Items[i] = SaleSyncedItem{
			ProductRef: item.ProductRef,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Price:      item.Price,
			Subtotal:   item.Subtotal,
		}
	}

	if err := s.events.PublishSaleSynced(ctx, event); err != nil {
		log.Printf("[sync] WARN: failed to publish sale-synced event for sale %s: %v", out.sale.PosSaleID, err)
	}
}

// isRetryable reports whether the unit of work failed on a deadlock or a
// serialization failure and can be replayed from scratch.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *syncService) ProductsSince(ctx context.Context, storeID string, since *time.Time) (*CatalogDelta, error) {
	if storeID == "" {
		return nil, errors.New("store id is required")
	}
	delta, err := s.directory.ProductsSince(ctx, storeID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list products for store %s: %w", storeID, err)
	}
	return delta, nil
}
