package core_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"inventory-sync/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Directory, SaleRepository and TxBeginner with
// transaction semantics close enough to Postgres for engine tests: writes are
// staged per transaction, product rows are locked until commit or rollback, and
// inserting a sale waits on any in-flight insert of the same POS sale id.
type memStore struct {
	mu       sync.Mutex
	stores   map[string]core.Store
	products map[string]core.Product
	sales    map[string]core.Sale // keyed by PosSaleID
	items    []core.SaleItem
	flags    []core.StockFlag
	begins   int
	commits  int

	rowLocks map[string]*sync.Mutex
	posLocks map[string]*sync.Mutex

	// failure injection
	lockErr       func(productID string) error
	itemInsertErr func(item *core.SaleItem) error
	commitErr     error
}

func newMemStore() *memStore {
	return &memStore{
		stores:   make(map[string]core.Store),
		products: make(map[string]core.Product),
		sales:    make(map[string]core.Sale),
		rowLocks: make(map[string]*sync.Mutex),
		posLocks: make(map[string]*sync.Mutex),
	}
}

func (m *memStore) addStore(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[id] = core.Store{ID: id, Name: name, CreatedAt: time.Now()}
}

func (m *memStore) addProduct(p core.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	m.products[p.ID] = p
}

func (m *memStore) quantity(productID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Quantity
}

func (m *memStore) sale(posSaleID string) (core.Sale, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[posSaleID]
	return s, ok
}

func (m *memStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memStore) itemsOf(saleID string) []core.SaleItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.SaleItem
	for _, it := range m.items {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	return out
}

func (m *memStore) beginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begins
}

func (m *memStore) lockFor(locks map[string]*sync.Mutex, key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := locks[key]
	if !ok {
		l = &sync.Mutex{}
		locks[key] = l
	}
	return l
}

// ── TxBeginner ────────────────────────────────────────────────────────────────

type memTx struct {
	pgx.Tx
	store      *memStore
	quantities map[string]decimal.Decimal
	sale       *core.Sale
	items      []core.SaleItem
	flags      []core.StockFlag
	held       map[string]*sync.Mutex
	done       bool
}

func (m *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	m.begins++
	m.mu.Unlock()
	return &memTx{
		store:      m,
		quantities: make(map[string]decimal.Decimal),
		held:       make(map[string]*sync.Mutex),
	}, nil
}

func (tx *memTx) hold(key string, l *sync.Mutex) {
	if _, ok := tx.held[key]; ok {
		return
	}
	l.Lock()
	tx.held[key] = l
}

func (tx *memTx) release() {
	for _, l := range tx.held {
		l.Unlock()
	}
	tx.held = nil
	tx.done = true
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	m := tx.store
	if m.commitErr != nil {
		tx.release()
		return m.commitErr
	}

	m.mu.Lock()
	for id, q := range tx.quantities {
		p := m.products[id]
		p.Quantity = q
		p.UpdatedAt = time.Now()
		m.products[id] = p
	}
	if tx.sale != nil {
		m.sales[tx.sale.PosSaleID] = *tx.sale
	}
	m.items = append(m.items, tx.items...)
	m.flags = append(m.flags, tx.flags...)
	m.commits++
	m.mu.Unlock()

	tx.release()
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.release()
	return nil
}

func asMemTx(tx pgx.Tx) *memTx {
	return tx.(*memTx)
}

// ── Directory ─────────────────────────────────────────────────────────────────

func (m *memStore) FindStoreTx(ctx context.Context, tx pgx.Tx, storeID string) (*core.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[storeID]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return &s, nil
}

func (m *memStore) FindProductByBarcodeTx(ctx context.Context, tx pgx.Tx, storeID, barcode string) (*core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *core.Product
	for _, p := range m.products {
		if p.StoreID != storeID || p.Barcode == nil || *p.Barcode != barcode {
			continue
		}
		if best == nil || p.UpdatedAt.After(best.UpdatedAt) {
			cp := p
			best = &cp
		}
	}
	return best, nil
}

func (m *memStore) FindProductByIDTx(ctx context.Context, tx pgx.Tx, storeID, productID string) (*core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) LockProductTx(ctx context.Context, tx pgx.Tx, productID string) (decimal.Decimal, error) {
	if m.lockErr != nil {
		if err := m.lockErr(productID); err != nil {
			return decimal.Zero, err
		}
	}
	mt := asMemTx(tx)
	mt.hold("product:"+productID, m.lockFor(m.rowLocks, productID))

	if q, ok := mt.quantities[productID]; ok {
		return q, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return decimal.Zero, core.ErrProductNotFound
	}
	return p.Quantity, nil
}

func (m *memStore) SetProductQuantityTx(ctx context.Context, tx pgx.Tx, productID string, quantity decimal.Decimal) error {
	asMemTx(tx).quantities[productID] = quantity
	return nil
}

func (m *memStore) FlagStockTx(ctx context.Context, tx pgx.Tx, flag core.StockFlag) error {
	mt := asMemTx(tx)
	mt.flags = append(mt.flags, flag)
	return nil
}

// ProductsSince reads under the store mutex, which every commit also holds, so
// the current time is a safe cutoff.
func (m *memStore) ProductsSince(ctx context.Context, storeID string, since *time.Time) (*core.CatalogDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asOf := time.Now()
	out := []core.Product{}
	for _, p := range m.products {
		if p.StoreID != storeID {
			continue
		}
		if since != nil && p.UpdatedAt.Before(*since) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return &core.CatalogDelta{Products: out, AsOf: asOf}, nil
}

// ── SaleRepository ────────────────────────────────────────────────────────────

func (m *memStore) FindSaleIDTx(ctx context.Context, tx pgx.Tx, posSaleID string) (string, bool, error) {
	mt := asMemTx(tx)
	if mt.sale != nil && mt.sale.PosSaleID == posSaleID {
		return mt.sale.ID, true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[posSaleID]
	if !ok {
		return "", false, nil
	}
	return s.ID, true, nil
}

func (m *memStore) InsertSaleTx(ctx context.Context, tx pgx.Tx, sale *core.Sale) (bool, error) {
	mt := asMemTx(tx)
	mt.hold("sale:"+sale.PosSaleID, m.lockFor(m.posLocks, sale.PosSaleID))

	m.mu.Lock()
	_, exists := m.sales[sale.PosSaleID]
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	header := *sale
	header.Items = nil
	mt.sale = &header
	return true, nil
}

func (m *memStore) InsertSaleItemTx(ctx context.Context, tx pgx.Tx, item *core.SaleItem) error {
	if m.itemInsertErr != nil {
		if err := m.itemInsertErr(item); err != nil {
			return err
		}
	}
	mt := asMemTx(tx)
	mt.items = append(mt.items, *item)
	return nil
}

// ── Hook fakes ────────────────────────────────────────────────────────────────

type recordingMetrics struct {
	mu         sync.Mutex
	statuses   map[core.SyncStatus]int
	unresolved int
	negative   int
	retries    int
	batches    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{statuses: make(map[core.SyncStatus]int)}
}

func (r *recordingMetrics) SubmissionDone(status core.SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status]++
}

func (r *recordingMetrics) UnresolvedItem() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unresolved++
}

func (r *recordingMetrics) NegativeStock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.negative++
}

func (r *recordingMetrics) Retry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recordingMetrics) BatchDone(int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.SaleSynced
	err    error
}

func (p *recordingPublisher) PublishSaleSynced(ctx context.Context, event core.SaleSynced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type mapSeenCache struct {
	mu   sync.Mutex
	seen map[string]string
	err  error
}

func newMapSeenCache() *mapSeenCache {
	return &mapSeenCache{seen: make(map[string]string)}
}

func (c *mapSeenCache) Seen(ctx context.Context, posSaleID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	id, ok := c.seen[posSaleID]
	return id, ok, nil
}

func (c *mapSeenCache) Remember(ctx context.Context, posSaleID, saleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[posSaleID] = saleID
	return nil
}

func (c *mapSeenCache) has(posSaleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[posSaleID]
	return ok
}

var errInjected = errors.New("injected failure")
