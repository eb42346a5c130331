package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ResolutionKind tells how a line item's product reference was matched.
type ResolutionKind int

const (
	Unresolved ResolutionKind = iota
	ResolvedByBarcode
	ResolvedByID
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedByBarcode:
		return "barcode"
	case ResolvedByID:
		return "id"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of resolving one product reference. The product is
// only reachable through Product, which forces callers to handle the miss.
type Resolution struct {
	kind    ResolutionKind
	product *Product
}

// Product returns the matched product and true, or false for an unresolved reference.
func (r Resolution) Product() (*Product, bool) {
	if r.kind == Unresolved || r.product == nil {
		return nil, false
	}
	return r.product, true
}

// Kind reports how the reference was matched.
func (r Resolution) Kind() ResolutionKind {
	return r.kind
}

// ProductResolver maps the product identifier a register sends to a product of
// the sale's store: barcode first, then internal id.
type ProductResolver struct {
	directory Directory
}

func NewProductResolver(directory Directory) *ProductResolver {
	return &ProductResolver{directory: directory}
}

// ResolveTx tries the barcode, then the internal id. A reference that is not a
// well-formed id is a miss, not an error. Errors are storage failures only.
func (r *ProductResolver) ResolveTx(ctx context.Context, tx pgx.Tx, storeID, ref string) (Resolution, error) {
	product, err := r.directory.FindProductByBarcodeTx(ctx, tx, storeID, ref)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up product by barcode %s: %w", ref, err)
	}
	if product != nil {
		return Resolution{kind: ResolvedByBarcode, product: product}, nil
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return Resolution{kind: Unresolved}, nil
	}

	product, err = r.directory.FindProductByIDTx(ctx, tx, storeID, id.String())
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up product by id %s: %w", ref, err)
	}
	if product == nil {
		return Resolution{kind: Unresolved}, nil
	}
	return Resolution{kind: ResolvedByID, product: product}, nil
}
