/*
mirror.go - CUSTOMER_DIRECT mirror synchronisation

PURPOSE:
  When a customer pays the shop's supplier directly, the payment appears
  twice: as a PAYMENT in the customer ledger and as a CUSTOMER_DIRECT
  entry lowering the supplier's due. The party entry is derived data,
  keyed by the customer transaction's id (OriginTransactionID).

RULES:
  1. Previous mirror exists  -> delete it, recalculate that party's due
  2. New state names a party -> create a fresh mirror, recalculate that party
  3. Same party before/after -> still delete+recalc, then create+recalc
  4. Flow is one-way: party ledgers never write back to customers

EXAMPLE (retarget P1 -> P2, amount 300):
  P1: CUSTOMER_DIRECT 300 removed, due +300
  P2: CUSTOMER_DIRECT 300 added,   due -300

SEE ALSO:
  - transactions.go: Calls SyncMirror after every customer write
  - parties.go: Refuses direct edits of CUSTOMER_DIRECT entries
*/
package bookkeeping

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

// MirrorState is the part of a customer transaction a mirror copies.
// An empty PartyID means "no mirror should exist".
type MirrorState struct {
	TransactionID string
	CustomerID    string
	PartyID       string
	Amount        decimal.Decimal
	Note          string
	Date          time.Time
}

// MirrorStateOf derives the mirror state of a customer transaction.
func MirrorStateOf(tx Transaction) MirrorState {
	return MirrorState{
		TransactionID: tx.ID,
		CustomerID:    tx.CustomerID,
		PartyID:       tx.MirrorTarget(),
		Amount:        tx.Amount,
		Note:          tx.Note,
		Date:          tx.Date,
	}
}

// SyncMirror brings the party ledgers in line with next. previousPartyID is
// the mirror target the transaction had before this write ("" if none).
//
// Every CUSTOMER_DIRECT entry whose origin is next.TransactionID is
// removed first, whichever party holds it, so a mirror left behind by an
// earlier interrupted sync is cleaned up too.
func (s *Service) SyncMirror(ctx context.Context, next MirrorState, previousPartyID string) error {
	if next.TransactionID == "" {
		return generic.Invalid("transaction_id", "mirror sync needs the origin transaction id")
	}

	existing, err := s.store.Query(ctx, PartyTransactionsCollection,
		generic.Eq("origin_transaction_id", next.TransactionID),
		generic.Eq("type", string(PartyCustomerDirect)),
	)
	if err != nil {
		return fmt.Errorf("find mirrors of %q: %w", next.TransactionID, err)
	}

	affected := map[string]bool{}
	if previousPartyID != "" {
		affected[previousPartyID] = true
	}
	writes := make([]generic.Write, 0, len(existing))
	for _, doc := range existing {
		var mirror PartyTransaction
		if err := doc.Decode(&mirror); err != nil {
			return err
		}
		affected[mirror.PartyID] = true
		writes = append(writes, generic.DeleteDoc(doc.Ref))
	}

	if len(writes) > 0 {
		if err := s.store.BatchWrite(ctx, writes); err != nil {
			return fmt.Errorf("remove mirrors of %q: %w", next.TransactionID, err)
		}
		s.recorder.MirrorSynced("delete")
	}
	for _, partyID := range sortedKeys(affected) {
		if err := s.recalculatePartyIfPresent(ctx, partyID); err != nil {
			return err
		}
	}

	if next.PartyID == "" {
		return nil
	}

	mirror := PartyTransaction{
		ID:                  s.newID(),
		PartyID:             next.PartyID,
		Type:                PartyCustomerDirect,
		Amount:              next.Amount,
		Note:                next.Note,
		Date:                next.Date,
		CustomerID:          next.CustomerID,
		OriginTransactionID: next.TransactionID,
		CreatedAt:           s.now(),
	}
	if err := s.store.Create(ctx, partyTransactionRef(mirror.ID), mirror); err != nil {
		return fmt.Errorf("create mirror of %q: %w", next.TransactionID, err)
	}
	s.recorder.MirrorSynced("create")
	s.log.Debug("mirror created",
		zap.String("transaction_id", next.TransactionID),
		zap.String("party_id", next.PartyID),
		zap.String("mirror_id", mirror.ID),
	)

	if _, err := s.RecalculateParty(ctx, next.PartyID); err != nil {
		return err
	}
	return nil
}

// recalculatePartyIfPresent skips parties that were deleted; their orphaned
// mirrors have no due left to maintain.
func (s *Service) recalculatePartyIfPresent(ctx context.Context, partyID string) error {
	_, err := s.RecalculateParty(ctx, partyID)
	if generic.IsNotFound(err) {
		s.log.Debug("skipping due recalculation for missing party", zap.String("party_id", partyID))
		return nil
	}
	return err
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// REPAIR
// =============================================================================

// mirrorLedger names mirror repair failures in a RecalcReport.
const mirrorLedger = "mirror"

// repairMirrors compares every direct-to-party payment with the
// CUSTOMER_DIRECT entries keyed by its id and re-runs SyncMirror where the
// two disagree. A write whose mirror sync was interrupted is completed
// here. Mirrors whose target party was deleted are left as they are.
func (s *Service) repairMirrors(ctx context.Context, report *RecalcReport) error {
	partyDocs, err := s.store.Query(ctx, PartiesCollection)
	if err != nil {
		return err
	}
	parties := make(map[string]bool, len(partyDocs))
	for _, doc := range partyDocs {
		parties[doc.Ref.ID] = true
	}

	paymentDocs, err := s.store.Query(ctx, TransactionsCollection,
		generic.Eq("type", string(TxPayment)),
		generic.Eq("payment_mode", string(ModePartyDirect)),
	)
	if err != nil {
		return err
	}
	payments, err := decodeAll(paymentDocs, func(t *Transaction, seq int64) { t.Seq = seq })
	if err != nil {
		return err
	}

	mirrorDocs, err := s.store.Query(ctx, PartyTransactionsCollection,
		generic.Eq("type", string(PartyCustomerDirect)))
	if err != nil {
		return err
	}
	mirrors, err := decodeAll(mirrorDocs, func(t *PartyTransaction, seq int64) { t.Seq = seq })
	if err != nil {
		return err
	}
	byOrigin := make(map[string][]PartyTransaction)
	for _, m := range mirrors {
		byOrigin[m.OriginTransactionID] = append(byOrigin[m.OriginTransactionID], m)
	}

	var repairs []MirrorState
	for _, tx := range payments {
		want := MirrorStateOf(tx)
		have := byOrigin[tx.ID]
		delete(byOrigin, tx.ID)
		if !parties[want.PartyID] {
			continue
		}
		if !mirrorMatches(want, have) {
			repairs = append(repairs, want)
		}
	}

	// What is left has no direct-to-party payment behind it any more.
	strays := make([]string, 0, len(byOrigin))
	for origin, held := range byOrigin {
		if heldByAny(held, parties) {
			strays = append(strays, origin)
		}
	}
	sort.Strings(strays)
	for _, origin := range strays {
		repairs = append(repairs, MirrorState{TransactionID: origin, CustomerID: byOrigin[origin][0].CustomerID})
	}

	for _, want := range repairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SyncMirror(ctx, want, ""); err != nil {
			s.log.Warn("mirror repair failed",
				zap.String("transaction_id", want.TransactionID),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, RecalcFailure{Ledger: mirrorLedger, OwnerID: want.TransactionID, Err: err})
			continue
		}
		report.Mirrors++
		s.log.Info("mirror repaired",
			zap.String("transaction_id", want.TransactionID),
			zap.String("party_id", want.PartyID),
		)
	}
	return nil
}

// mirrorMatches reports whether have is exactly the one mirror want describes.
func mirrorMatches(want MirrorState, have []PartyTransaction) bool {
	if len(have) != 1 {
		return false
	}
	m := have[0]
	return m.PartyID == want.PartyID &&
		m.CustomerID == want.CustomerID &&
		m.Amount.Equal(want.Amount) &&
		m.Note == want.Note &&
		m.Date.Equal(want.Date)
}

func heldByAny(mirrors []PartyTransaction, parties map[string]bool) bool {
	for _, m := range mirrors {
		if parties[m.PartyID] {
			return true
		}
	}
	return false
}
