package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNegativeStock is returned under NegativeStockReject when a sale would drive
// a product below zero.
var ErrNegativeStock = errors.New("insufficient stock")

// NegativeStockPolicy decides what a decrement below zero does.
type NegativeStockPolicy string

const (
	// NegativeStockAllow decrements unconditionally so oversell stays visible.
	NegativeStockAllow NegativeStockPolicy = "allow"
	// NegativeStockFlag decrements and records a StockFlag for reconciliation.
	NegativeStockFlag NegativeStockPolicy = "flag"
	// NegativeStockReject fails the whole sale.
	NegativeStockReject NegativeStockPolicy = "reject"
)

// ParseNegativeStockPolicy parses a policy name; empty means allow.
func ParseNegativeStockPolicy(s string) (NegativeStockPolicy, error) {
	switch p := NegativeStockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return NegativeStockAllow, nil
	case NegativeStockAllow, NegativeStockFlag, NegativeStockReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown negative stock policy %q (want allow, flag or reject)", s)
	}
}

// StockMovement describes one applied decrement.
type StockMovement struct {
	ProductID string
	Sold      decimal.Decimal
	Before    decimal.Decimal
	After     decimal.Decimal
	Flagged   bool
}

// StockLedger applies sale quantities to product stock.
type StockLedger struct {
	directory Directory
	policy    NegativeStockPolicy
}

func NewStockLedger(directory Directory, policy NegativeStockPolicy) *StockLedger {
	if policy == "" {
		policy = NegativeStockAllow
	}
	return &StockLedger{directory: directory, policy: policy}
}

// Policy returns the configured negative stock policy.
func (l *StockLedger) Policy() NegativeStockPolicy {
	return l.policy
}

// DeductTx locks the product row, subtracts sold and writes the result, all
// within the caller's TX. The row lock serializes concurrent syncs touching the
// same product, so no decrement is lost.
func (l *StockLedger) DeductTx(ctx context.Context, tx pgx.Tx, productID, saleID string, sold decimal.Decimal) (StockMovement, error) {
	before, err := l.directory.LockProductTx(ctx, tx, productID)
	if err != nil {
		return StockMovement{}, fmt.Errorf("failed to lock product %s: %w", productID, err)
	}

	mv := StockMovement{
		ProductID: productID,
		Sold:      sold,
		Before:    before,
		After:     before.Sub(sold),
	}

	if mv.After.IsNegative() {
		switch l.policy {
		case NegativeStockReject:
			return StockMovement{}, fmt.Errorf("%w for product %s: on hand %s, sold %s",
				ErrNegativeStock, productID, before.String(), sold.String())
		case NegativeStockFlag:
			flag := StockFlag{
				ProductID:      productID,
				SaleID:         saleID,
				QuantitySold:   sold,
				QuantityBefore: before,
				QuantityAfter:  mv.After,
			}
			if err := l.directory.FlagStockTx(ctx, tx, flag); err != nil {
				return StockMovement{}, fmt.Errorf("failed to flag negative stock for product %s: %w", productID, err)
			}
			mv.Flagged = true
		}
	}

	if err := l.directory.SetProductQuantityTx(ctx, tx, productID, mv.After); err != nil {
		return StockMovement{}, fmt.Errorf("failed to update stock for product %s: %w", productID, err)
	}
	return mv, nil
}
