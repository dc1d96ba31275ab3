/*
ledger.go - Whole-ledger recalculation over the document store

PURPOSE:
  A Ledger describes where one kind of ledger lives in the store: the
  owner collection holding the running total, the entry collection
  holding the transactions, and which fields are derived. Recalculate
  folds the owner's full entry set and writes every derived field back
  in one atomic batch.

CRITICAL INVARIANTS:
  1. DERIVED ONLY: The per-entry running field and the owner's total and
     last activity are written here and nowhere else.
  2. ATOMIC: Entry fields and owner total land in one BatchWrite, so the
     stored total is never observed out of step with the entry chain.
  3. IDEMPOTENT: Recalculating twice produces identical values.

WHY WHOLE-LEDGER?
  Entry volume per owner is small. Re-folding everything on each write
  keeps the rule trivial and lets any later pass repair a failed one.

EXAMPLE:
  customers := generic.Ledger{
      Name:          "customer",
      Owners:        "customers",
      Entries:       "transactions",
      OwnerField:    "customer_id",
      DerivedField:  "balance_after",
      TotalField:    "current_balance",
      ActivityField: "last_activity",
      Delta:         customerDelta,
  }
  res, err := customers.Recalculate(ctx, store, "cust-1")

SEE ALSO:
  - balance.go: The fold itself
  - bookkeeping/recalc.go: Customer and party ledger definitions
*/
package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// LEDGER - Where a ledger lives in the store
// =============================================================================

// DeltaFunc converts a stored entry document into a signed Entry.
type DeltaFunc func(doc Document) (Entry, error)

// Ledger binds the fold to a pair of collections.
type Ledger struct {
	Name          string
	Owners        Collection
	Entries       Collection
	OwnerField    string
	DerivedField  string
	TotalField    string
	ActivityField string
	Delta         DeltaFunc
}

// OwnerRef addresses the owner document.
func (l Ledger) OwnerRef(ownerID string) Ref { return Ref{Collection: l.Owners, ID: ownerID} }

// EntryRef addresses one entry document.
func (l Ledger) EntryRef(id string) Ref { return Ref{Collection: l.Entries, ID: id} }

// Load returns the owner's entry documents in store order.
func (l Ledger) Load(ctx context.Context, store Store, ownerID string) ([]Document, error) {
	docs, err := store.Query(ctx, l.Entries, Eq(l.OwnerField, ownerID))
	if err != nil {
		return nil, fmt.Errorf("load %s ledger %q: %w", l.Name, ownerID, err)
	}
	return docs, nil
}

// Fold converts documents to entries and folds them.
func (l Ledger) Fold(docs []Document) (Result, error) {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e, err := l.Delta(doc)
		if err != nil {
			return Result{}, err
		}
		entries = append(entries, e)
	}
	return Fold(entries), nil
}

// Recalculate re-folds the owner's whole ledger and writes all derived
// fields in one batch. Returns a *NotFoundError if the owner is gone.
func (l Ledger) Recalculate(ctx context.Context, store Store, ownerID string) (Result, error) {
	owner, err := store.Get(ctx, l.OwnerRef(ownerID))
	if err != nil {
		return Result{}, fmt.Errorf("recalculate %s %q: %w", l.Name, ownerID, err)
	}
	if owner == nil {
		return Result{}, NotFound(l.Owners, ownerID)
	}

	docs, err := l.Load(ctx, store, ownerID)
	if err != nil {
		return Result{}, err
	}
	res, err := l.Fold(docs)
	if err != nil {
		return Result{}, err
	}

	writes := make([]Write, 0, len(res.Points)+1)
	for _, p := range res.Points {
		writes = append(writes, SetFields(l.EntryRef(p.ID), Fields{l.DerivedField: p.Balance}))
	}
	writes = append(writes, SetFields(l.OwnerRef(ownerID), Fields{
		l.TotalField:    res.Total,
		l.ActivityField: res.LastActivity,
	}))

	if err := store.BatchWrite(ctx, writes); err != nil {
		return Result{}, fmt.Errorf("write %s %q balances: %w", l.Name, ownerID, err)
	}
	return res, nil
}
