/*
transactions.go - Customer transaction write path

PURPOSE:
  The only way customer ledger entries are created, edited or deleted.
  Each call is a strictly ordered chain of atomic store steps:

    1. validate input (nothing written on failure)
    2. create, or transactionally read-modify-write the entry
    3. recalculate the customer's whole ledger (one batch)
    4. sync the CUSTOMER_DIRECT mirror into the party ledger

  Steps 2-4 are NOT one transaction. If step 3 or 4 fails the entry stays
  written with stale derived fields; the next recalculation of that
  customer (any later write, the reconciler, or `shopbook recalc`)
  repairs them.

CONCURRENT EDITS:
  Two sessions editing the same customer race; whichever recalculation
  runs last wins. There is no conflict detection.

SEE ALSO:
  - recalc.go: Step 3
  - mirror.go: Step 4
*/
package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

// TransactionInput is a create (ID empty) or edit of a customer transaction.
type TransactionInput struct {
	ID           string
	CustomerID   string
	Type         TxType
	Amount       decimal.Decimal
	Note         string
	Date         time.Time
	PaymentMode  PaymentMode
	PartyID      string
	BillImageURL string
	CreatedBy    string
}

// normalize fills defaults and drops fields that don't apply to the type.
func (in TransactionInput) normalize() TransactionInput {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.PartyID = strings.TrimSpace(in.PartyID)
	in.Note = strings.TrimSpace(in.Note)

	switch in.Type {
	case TxCredit:
		in.PaymentMode = ""
		in.PartyID = ""
	case TxPayment:
		if in.PaymentMode == "" {
			in.PaymentMode = ModeCash
		}
		if in.PaymentMode != ModePartyDirect {
			in.PartyID = ""
		}
	}
	return in
}

// Validate checks the input without touching the store.
func (in TransactionInput) Validate() error {
	if in.CustomerID == "" {
		return generic.Invalid("customer_id", "customer is required")
	}
	if !in.Type.Valid() {
		return generic.Invalid("type", fmt.Sprintf("unknown transaction type %q", in.Type))
	}
	if !in.Amount.IsPositive() {
		return generic.Invalid("amount", "amount must be greater than zero")
	}
	if in.Type == TxPayment {
		if !in.PaymentMode.Valid() {
			return generic.Invalid("payment_mode", fmt.Sprintf("unknown payment mode %q", in.PaymentMode))
		}
		if in.PaymentMode == ModePartyDirect && in.PartyID == "" {
			return generic.Invalid("party_id", "select the party this payment was made to")
		}
	}
	return nil
}

func (in TransactionInput) mirrorTarget() string {
	if in.Type == TxPayment && in.PaymentMode == ModePartyDirect {
		return in.PartyID
	}
	return ""
}

// apply copies the user-editable fields onto tx. Derived fields, Seq and
// creation metadata are left alone.
func (in TransactionInput) apply(tx Transaction) Transaction {
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Note = in.Note
	tx.Date = in.Date
	tx.PaymentMode = in.PaymentMode
	tx.PartyID = in.PartyID
	tx.BillImageURL = in.BillImageURL
	return tx
}

// =============================================================================
// SAVE
// =============================================================================

// SaveTransaction creates or edits a customer transaction, then
// recalculates the customer and syncs the party mirror.
//
// The returned id is valid whenever the entry itself was written, even if
// a later step failed and an error is returned alongside it.
func (s *Service) SaveTransaction(ctx context.Context, in TransactionInput) (string, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	if err := s.requireExists(ctx, customerRef(in.CustomerID)); err != nil {
		return "", err
	}
	if target := in.mirrorTarget(); target != "" {
		if err := s.requireExists(ctx, partyRef(target)); err != nil {
			return "", err
		}
	}

	var (
		id       = in.ID
		previous string
		saved    Transaction
	)
	if id == "" {
		id = s.newID()
		saved = in.apply(Transaction{
			ID:         id,
			CustomerID: in.CustomerID,
			CreatedBy:  in.CreatedBy,
			CreatedAt:  s.now(),
		})
		if err := s.store.Create(ctx, transactionRef(id), saved); err != nil {
			return "", fmt.Errorf("create transaction: %w", err)
		}
	} else {
		err := s.store.Update(ctx, transactionRef(id), func(doc generic.Document) (any, error) {
			var existing Transaction
			if err := doc.Decode(&existing); err != nil {
				return nil, err
			}
			if existing.CustomerID != in.CustomerID {
				return nil, generic.Invalid("customer_id", "a transaction cannot be moved to another customer")
			}
			previous = existing.MirrorTarget()
			saved = in.apply(existing)
			return saved, nil
		})
		if errors.Is(err, generic.ErrDocumentNotFound) {
			return "", generic.NotFound(TransactionsCollection, id)
		}
		if err != nil {
			return "", err
		}
	}
	s.log.Debug("transaction written",
		zap.String("transaction_id", id),
		zap.String("customer_id", in.CustomerID),
		zap.String("type", string(in.Type)),
		zap.Bool("edit", in.ID != ""),
	)

	if err := s.afterCustomerWrite(ctx, in.CustomerID, MirrorStateOf(saved), previous); err != nil {
		return id, err
	}
	return id, nil
}

// DeleteTransaction removes a customer transaction, recalculates the
// customer, and removes its mirror if it had one.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	tx, _, err := load[Transaction](ctx, s.store, transactionRef(id))
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, transactionRef(id)); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.log.Debug("transaction deleted", zap.String("transaction_id", id), zap.String("customer_id", tx.CustomerID))

	return s.afterCustomerWrite(ctx, tx.CustomerID, MirrorState{TransactionID: id, CustomerID: tx.CustomerID}, tx.MirrorTarget())
}

// afterCustomerWrite recalculates the customer and syncs the mirror. The
// mirror is synced even when the recalculation failed; both errors are
// returned joined.
func (s *Service) afterCustomerWrite(ctx context.Context, customerID string, next MirrorState, previousPartyID string) error {
	var recalcErr error
	if _, err := s.RecalculateCustomer(ctx, customerID); err != nil {
		s.log.Warn("customer recalculation failed after write; derived fields are stale until the next pass",
			zap.String("customer_id", customerID), zap.Error(err))
		recalcErr = err
	}
	// Nothing to do on the party side for plain transactions.
	if next.PartyID == "" && previousPartyID == "" {
		return recalcErr
	}
	if err := s.SyncMirror(ctx, next, previousPartyID); err != nil {
		s.log.Warn("mirror sync failed after write",
			zap.String("transaction_id", next.TransactionID), zap.Error(err))
		return errors.Join(recalcErr, err)
	}
	return recalcErr
}

// =============================================================================
// READ
// =============================================================================

// GetTransaction returns one customer transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	tx, doc, err := load[Transaction](ctx, s.store, transactionRef(id))
	if err != nil {
		return Transaction{}, err
	}
	tx.Seq = doc.Seq
	return tx, nil
}

// ListTransactions returns the customer's transactions in ledger order.
func (s *Service) ListTransactions(ctx context.Context, customerID string) ([]Transaction, error) {
	docs, err := s.customers.Load(ctx, s.store, customerID)
	if err != nil {
		return nil, err
	}
	txs, err := decodeAll(docs, func(t *Transaction, seq int64) { t.Seq = seq })
	if err != nil {
		return nil, err
	}
	sortLedger(txs, func(t Transaction) generic.Entry {
		return generic.Entry{ID: t.ID, At: t.Date, Seq: t.Seq}
	})
	return txs, nil
}

func (s *Service) requireExists(ctx context.Context, ref generic.Ref) error {
	doc, err := s.store.Get(ctx, ref)
	if err != nil {
		return err
	}
	if doc == nil {
		return generic.NotFound(ref.Collection, ref.ID)
	}
	return nil
}
