package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidSubmission is wrapped by every validation failure.
var ErrInvalidSubmission = errors.New("invalid sale submission")

// SaleItemInput is one line item as sent by a POS register.
type SaleItemInput struct {
	ProductID string              `json:"productId" jsonschema_description:"Product barcode, or the internal product id when the product has no barcode"`
	Quantity  int                 `json:"quantity" jsonschema:"minimum=1" jsonschema_description:"Units sold, a positive integer"`
	Price     decimal.NullDecimal `json:"price" jsonschema_description:"Unit price charged, zero or greater"`
}

// SaleSubmission is one sale as sent by a POS register during synchronization.
// PosSaleID is the idempotency key.
type SaleSubmission struct {
	PosSaleID     string              `json:"posSaleId" jsonschema_description:"Register-side sale identifier, unique across all sales"`
	Date          string              `json:"date" jsonschema_description:"Sale timestamp in ISO-8601; values without a zone are read as UTC"`
	Total         decimal.NullDecimal `json:"total" jsonschema_description:"Total amount charged for the sale"`
	StoreID       string              `json:"storeId" jsonschema_description:"Identifier of the store the register belongs to"`
	PaymentMethod string              `json:"paymentMethod,omitempty" jsonschema_description:"Optional payment method label, e.g. cash or card"`
	Items         []SaleItemInput     `json:"items" jsonschema:"minItems=1" jsonschema_description:"Line items, at least one"`

	decodeErr error
}

// DecodeBatch splits a JSON array of submissions into individual entries.
// A body that is not a JSON array is rejected as a whole. An entry that does not
// decode is kept in place and reported as invalid when validated, so one broken
// entry never hides the others.
func DecodeBatch(data []byte) ([]SaleSubmission, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array of sales: %w", err)
	}

	batch := make([]SaleSubmission, len(raw))
	for i, entry := range raw {
		var sub SaleSubmission
		if err := json.Unmarshal(entry, &sub); err != nil {
			// json.Unmarshal keeps decoding after a type error, so PosSaleID is
			// usually still populated and the result stays attributable.
			sub.decodeErr = err
		}
		batch[i] = sub
	}
	return batch, nil
}

// Normalize trims whitespace from identifiers and labels. Items is copied
// first, so a copy of a submission never writes through to the original's lines.
func (s *SaleSubmission) Normalize() {
	s.PosSaleID = strings.TrimSpace(s.PosSaleID)
	s.StoreID = strings.TrimSpace(s.StoreID)
	s.Date = strings.TrimSpace(s.Date)
	s.PaymentMethod = strings.TrimSpace(s.PaymentMethod)
	s.Items = slices.Clone(s.Items)
	for i := range s.Items {
		s.Items[i].ProductID = strings.TrimSpace(s.Items[i].ProductID)
	}
}

// Validate runs the structural checks that must pass before any storage work.
func (s *SaleSubmission) Validate() error {
	if s.decodeErr != nil {
		return fmt.Errorf("%w: malformed sale: %v", ErrInvalidSubmission, s.decodeErr)
	}
	if s.PosSaleID == "" {
		return fmt.Errorf("%w: posSaleId is required", ErrInvalidSubmission)
	}
	if s.StoreID == "" {
		return fmt.Errorf("%w: storeId is required", ErrInvalidSubmission)
	}
	if s.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidSubmission)
	}
	if _, err := ParseSaleDate(s.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if !s.Total.Valid {
		return fmt.Errorf("%w: total is required", ErrInvalidSubmission)
	}
	if s.Total.Decimal.IsNegative() {
		return fmt.Errorf("%w: total cannot be negative, got %s", ErrInvalidSubmission, s.Total.Decimal)
	}
	if !fitsCents(s.Total.Decimal) {
		return fmt.Errorf("%w: total has more than 2 decimal places, got %s", ErrInvalidSubmission, s.Total.Decimal)
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidSubmission)
	}

	for i, item := range s.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d: productId is required", ErrInvalidSubmission, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be > 0, got %d", ErrInvalidSubmission, i+1, item.Quantity)
		}
		if !item.Price.Valid {
			return fmt.Errorf("%w: item %d: price is required", ErrInvalidSubmission, i+1)
		}
		if item.Price.Decimal.IsNegative() {
			return fmt.Errorf("%w: item %d: price cannot be negative, got %s", ErrInvalidSubmission, i+1, item.Price.Decimal)
		}
		if !fitsCents(item.Price.Decimal) {
			return fmt.Errorf("%w: item %d: price has more than 2 decimal places, got %s", ErrInvalidSubmission, i+1, item.Price.Decimal)
		}
	}
	return nil
}

// fitsCents reports whether d is stored by NUMERIC(14,2) without rounding.
// Trailing zeros are fine, so "2.500" passes.
func fitsCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

var saleDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseSaleDate accepts RFC 3339 timestamps as well as the zone-less ISO
// timestamps offline registers produce. Zone-less values are taken as UTC.
func ParseSaleDate(value string) (time.Time, error) {
	for _, layout := range saleDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected an ISO-8601 timestamp", value)
}
