package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrEmptyOrder is returned when a delivery note is submitted without lines.
var ErrEmptyOrder = errors.New("delivery note has no line items")

// ErrPaymentAlreadyDecided is returned when a confirm/reject targets a
// payment that already left pending status.
var ErrPaymentAlreadyDecided = errors.New("payment has already been decided")

// ValidationError reports per-field input problems. It is always detected
// before any write, so a caller receiving it can retry without cleanup.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// NotFoundError reports a missing referenced record.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// InsufficientStockError reports a requested quantity exceeding the part's
// available stock.
type InsufficientStockError struct {
	PartCode  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %s: requested %d, available %d",
		e.PartCode, e.Requested, e.Available)
}

// BalanceExceededError reports a payment amount above the note's outstanding
// balance.
type BalanceExceededError struct {
	NoteCode    string
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("payment of %s exceeds outstanding balance %s on note %s",
		e.Amount.StringFixed(2), e.Outstanding.StringFixed(2), e.NoteCode)
}
