/*
Package generic provides the storage-independent ledger engine.

PURPOSE:
  This package knows nothing about customers, suppliers, credits or
  purchases. It folds an ordered log of signed movements into running
  balances, and it defines the document-store contract the domain
  packages persist through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry:  One signed movement in a ledger (delta already carries the sign)
  - Point:  The running balance right after one entry was applied
  - Result: Every point, the final total, and the last activity date

DESIGN PRINCIPLES:
  1. Derived, never stored by callers: balances come out of Fold
  2. Precision: decimal.Decimal, never float64
  3. Deterministic order: date first, then creation sequence

USAGE:
  res := generic.Fold([]generic.Entry{
      {ID: "t1", At: day1, Seq: 1, Delta: decimal.NewFromInt(500)},
      {ID: "t2", At: day2, Seq: 2, Delta: decimal.NewFromInt(-200)},
  })
  res.Total // 300

SEE ALSO:
  - balance.go: Sorting, folding and windowed statements
  - store.go: Document store contract
  - bookkeeping/: Customer and party ledgers built on top
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY - One signed movement
// =============================================================================

// Entry is one movement in a ledger. Delta is signed: the caller maps its
// transaction types onto positive or negative deltas before folding.
type Entry struct {
	ID    string
	At    time.Time // zero when the transaction carries no date
	Seq   int64     // store creation sequence, breaks ties on equal dates
	Delta decimal.Decimal
}

// HasDate reports whether the entry carries a usable date.
func (e Entry) HasDate() bool { return !e.At.IsZero() }

// =============================================================================
// POINT / RESULT - Output of a fold
// =============================================================================

// Point is the running balance immediately after an entry was applied.
type Point struct {
	ID      string
	At      time.Time
	Delta   decimal.Decimal
	Balance decimal.Decimal
}

// Result is the outcome of folding a whole ledger.
type Result struct {
	Points       []Point
	Total        decimal.Decimal
	LastActivity *time.Time // nil when no entry carries a date
}

// BalanceAfter returns the running balance recorded for the given entry.
func (r Result) BalanceAfter(id string) (decimal.Decimal, bool) {
	for _, p := range r.Points {
		if p.ID == id {
			return p.Balance, true
		}
	}
	return decimal.Zero, false
}

// Equal reports whether two results carry the same points, total and
// last activity. Used to check recalculation idempotence.
func (r Result) Equal(other Result) bool {
	if len(r.Points) != len(other.Points) || !r.Total.Equal(other.Total) {
		return false
	}
	if (r.LastActivity == nil) != (other.LastActivity == nil) {
		return false
	}
	if r.LastActivity != nil && !r.LastActivity.Equal(*other.LastActivity) {
		return false
	}
	for i := range r.Points {
		a, b := r.Points[i], other.Points[i]
		if a.ID != b.ID || !a.Balance.Equal(b.Balance) {
			return false
		}
	}
	return true
}
