/*
balance.go - Running balance calculation

PURPOSE:
  Derives running balances by replaying a ledger in date order. The
  stored balance on an entity is only ever a cache of this fold.

ALGORITHM:
  1. Sort entries ascending by date (entries without a date sort first)
  2. Equal dates fall back to the store creation sequence
  3. Fold left from zero, recording the total after every entry
  4. Last activity = date of the last folded entry that has one

WHOLE LEDGER:
  Callers always fold the entity's complete entry set. Folding the same
  set twice yields the same points, so a recalculation can be re-run at
  any time to repair stale derived fields.

EXAMPLE:
  day1 CREDIT 500   -> 500
  day2 PAYMENT 200  -> 300
  Fold(...).Total   == 300

SEE ALSO:
  - types.go: Entry, Point, Result
  - bookkeeping/recalc.go: Writes fold results back through the store
*/
package generic

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDERING
// =============================================================================

// Less orders two entries: by date, then by creation sequence, then by id
// so that the order never depends on how the store returned them.
func Less(a, b Entry) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}

// SortEntries sorts entries in ledger order, in place.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// =============================================================================
// FOLD
// =============================================================================

// Fold sorts a copy of entries and folds them into running balances.
func Fold(entries []Entry) Result {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	res := Result{
		Points: make([]Point, 0, len(sorted)),
		Total:  decimal.Zero,
	}
	for _, e := range sorted {
		res.Total = res.Total.Add(e.Delta)
		res.Points = append(res.Points, Point{
			ID:      e.ID,
			At:      e.At,
			Delta:   e.Delta,
			Balance: res.Total,
		})
		if e.HasDate() {
			at := e.At
			res.LastActivity = &at
		}
	}
	return res
}

// BalanceBefore returns the balance of every entry dated strictly before at.
// Entries without a date open the ledger, so they count for any non-zero at.
func BalanceBefore(entries []Entry, at time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.At.Before(at) {
			total = total.Add(e.Delta)
		}
	}
	return total
}

// =============================================================================
// WINDOW - Statement over a date range
// =============================================================================

// Window is the slice of a ledger between two dates, with the balances on
// either side of it.
type Window struct {
	Opening decimal.Decimal
	Points  []Point
	Closing decimal.Decimal
}

// WindowOf folds the full ledger and returns the points dated within
// [from, to]. A zero from means the beginning of the ledger and a zero to
// means its end. Opening is the balance before the first point in range.
func WindowOf(entries []Entry, from, to time.Time) Window {
	res := Fold(entries)

	opening := BalanceBefore(entries, from)
	w := Window{Opening: opening, Closing: opening}
	for _, p := range res.Points {
		switch {
		case p.At.Before(from):
			continue
		case !to.IsZero() && p.At.After(to):
			// Points are sorted, nothing later can fall in range.
			return w
		default:
			w.Points = append(w.Points, p)
			w.Closing = p.Balance
		}
	}
	return w
}
