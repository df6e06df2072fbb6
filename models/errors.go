package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound covers missing entries, accounts, items and assets.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is surfaced after a write conflict has been
	// retried up to the posting retry bound.
	ErrConcurrentModification = errors.New("concurrent modification: write conflict persisted after retries")
)

// UnbalancedEntryError reports a journal entry whose debit and credit
// totals differ. Tolerance is zero.
type UnbalancedEntryError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced entry: debits (%s) != credits (%s)", e.TotalDebit, e.TotalCredit)
}

// GroupAccountPostingError reports a line targeting an aggregation-only account.
type GroupAccountPostingError struct {
	AccountCode string
}

func (e GroupAccountPostingError) Error() string {
	return fmt.Sprintf("cannot post to group account %s", e.AccountCode)
}

type UnknownAccountError struct {
	AccountCode string
}

func (e UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %s", e.AccountCode)
}

// InvalidHierarchyError covers duplicate codes, missing parents, cycles,
// illegal reparenting and group-flag inconsistencies.
type InvalidHierarchyError struct {
	AccountCode string
	Reason      string
}

func (e InvalidHierarchyError) Error() string {
	return fmt.Sprintf("invalid hierarchy for account %s: %s", e.AccountCode, e.Reason)
}

// InsufficientLayerQuantityError reports an outbound movement larger than
// the total remaining quantity across all layers of the item.
type InsufficientLayerQuantityError struct {
	ItemId    int
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e InsufficientLayerQuantityError) Error() string {
	return fmt.Sprintf("insufficient layer quantity for item_id=%d: requested %s, available %s",
		e.ItemId, e.Requested, e.Available)
}

type InvalidQuantityError struct {
	Field string
	Value decimal.Decimal
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Value)
}

// InvalidLineError reports a journal line that does not carry exactly one
// positive side.
type InvalidLineError struct {
	AccountCode string
	Reason      string
}

func (e InvalidLineError) Error() string {
	return fmt.Sprintf("invalid line for account %s: %s", e.AccountCode, e.Reason)
}
