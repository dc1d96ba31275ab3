package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

var errMirrorManaged = &generic.InvalidOperationError{
	Message: "customer direct entries are managed from customer transactions",
}

// =============================================================================
// PARTIES
// =============================================================================

// CreateParty adds a supplier with a zero due.
func (s *Service) CreateParty(ctx context.Context, in ContactInput) (Party, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Party{}, err
	}
	p := Party{
		ID:        s.newID(),
		Name:      in.Name,
		Phone:     in.Phone,
		Notes:     in.Notes,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, partyRef(p.ID), p); err != nil {
		return Party{}, fmt.Errorf("create party: %w", err)
	}
	return p, nil
}

// UpdateParty edits the profile; the due fields are untouched.
func (s *Service) UpdateParty(ctx context.Context, id string, in ContactInput) (Party, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Party{}, err
	}
	var updated Party
	err := s.store.Update(ctx, partyRef(id), func(doc generic.Document) (any, error) {
		if err := doc.Decode(&updated); err != nil {
			return nil, err
		}
		updated.Name = in.Name
		updated.Phone = in.Phone
		updated.Notes = in.Notes
		return updated, nil
	})
	if errors.Is(err, generic.ErrDocumentNotFound) {
		return Party{}, generic.NotFound(PartiesCollection, id)
	}
	return updated, err
}

func (s *Service) GetParty(ctx context.Context, id string) (Party, error) {
	p, _, err := load[Party](ctx, s.store, partyRef(id))
	return p, err
}

// ListParties returns every party sorted by name.
func (s *Service) ListParties(ctx context.Context) ([]Party, error) {
	docs, err := s.store.Query(ctx, PartiesCollection)
	if err != nil {
		return nil, err
	}
	parties, err := decodeAll[Party](docs, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(parties, func(i, j int) bool {
		return strings.ToLower(parties[i].Name) < strings.ToLower(parties[j].Name)
	})
	return parties, nil
}

// DeleteParty removes the party and its own ledger entries in one batch.
// CUSTOMER_DIRECT mirrors are left in place and the customer payments they
// came from are not touched.
func (s *Service) DeleteParty(ctx context.Context, id string) error {
	if err := s.requireExists(ctx, partyRef(id)); err != nil {
		return err
	}
	entries, err := s.ListPartyTransactions(ctx, id)
	if err != nil {
		return err
	}

	writes := make([]generic.Write, 0, len(entries)+1)
	kept := 0
	for _, e := range entries {
		if e.IsMirror() {
			kept++
			continue
		}
		writes = append(writes, generic.DeleteDoc(partyTransactionRef(e.ID)))
	}
	writes = append(writes, generic.DeleteDoc(partyRef(id)))
	if err := s.store.BatchWrite(ctx, writes); err != nil {
		return fmt.Errorf("delete party: %w", err)
	}
	s.log.Info("party deleted",
		zap.String("party_id", id),
		zap.Int("entries_deleted", len(writes)-1),
		zap.Int("mirrors_orphaned", kept),
	)
	return nil
}

// =============================================================================
// PARTY TRANSACTIONS
// =============================================================================

// PartyTransactionInput is a create (ID empty) or edit of a party entry.
// Only PURCHASE, PAYMENT and DISCOUNT are accepted.
type PartyTransactionInput struct {
	ID           string
	PartyID      string
	Type         PartyTxType
	Amount       decimal.Decimal
	Note         string
	Date         time.Time
	BillImageURL string
}

func (in PartyTransactionInput) Validate() error {
	if strings.TrimSpace(in.PartyID) == "" {
		return generic.Invalid("party_id", "party is required")
	}
	if !in.Type.UserEditable() {
		return generic.Invalid("type", fmt.Sprintf("transaction type %q cannot be entered on a party", in.Type))
	}
	if !in.Amount.IsPositive() {
		return generic.Invalid("amount", "amount must be greater than zero")
	}
	return nil
}

func (in PartyTransactionInput) apply(tx PartyTransaction) PartyTransaction {
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Note = strings.TrimSpace(in.Note)
	tx.Date = in.Date
	tx.BillImageURL = in.BillImageURL
	return tx
}

// SavePartyTransaction creates or edits a party entry and recalculates the
// party's due. Nothing propagates beyond the party.
func (s *Service) SavePartyTransaction(ctx context.Context, in PartyTransactionInput) (string, error) {
	in.PartyID = strings.TrimSpace(in.PartyID)
	if err := in.Validate(); err != nil {
		return "", err
	}
	if err := s.requireExists(ctx, partyRef(in.PartyID)); err != nil {
		return "", err
	}

	id := in.ID
	if id == "" {
		id = s.newID()
		tx := in.apply(PartyTransaction{ID: id, PartyID: in.PartyID, CreatedAt: s.now()})
		if err := s.store.Create(ctx, partyTransactionRef(id), tx); err != nil {
			return "", fmt.Errorf("create party transaction: %w", err)
		}
	} else {
		err := s.store.Update(ctx, partyTransactionRef(id), func(doc generic.Document) (any, error) {
			var existing PartyTransaction
			if err := doc.Decode(&existing); err != nil {
				return nil, err
			}
			if existing.IsMirror() {
				return nil, errMirrorManaged
			}
			if existing.PartyID != in.PartyID {
				return nil, generic.Invalid("party_id", "a transaction cannot be moved to another party")
			}
			return in.apply(existing), nil
		})
		if errors.Is(err, generic.ErrDocumentNotFound) {
			return "", generic.NotFound(PartyTransactionsCollection, id)
		}
		if err != nil {
			return "", err
		}
	}

	if _, err := s.RecalculateParty(ctx, in.PartyID); err != nil {
		s.log.Warn("party recalculation failed after write", zap.String("party_id", in.PartyID), zap.Error(err))
		return id, err
	}
	return id, nil
}

// DeletePartyTransaction removes a user-entered party entry and
// recalculates the due. CUSTOMER_DIRECT mirrors are refused.
func (s *Service) DeletePartyTransaction(ctx context.Context, id string) error {
	tx, _, err := load[PartyTransaction](ctx, s.store, partyTransactionRef(id))
	if err != nil {
		return err
	}
	if tx.IsMirror() {
		return errMirrorManaged
	}
	if err := s.store.Delete(ctx, partyTransactionRef(id)); err != nil {
		return fmt.Errorf("delete party transaction: %w", err)
	}
	if _, err := s.RecalculateParty(ctx, tx.PartyID); err != nil {
		s.log.Warn("party recalculation failed after delete", zap.String("party_id", tx.PartyID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) GetPartyTransaction(ctx context.Context, id string) (PartyTransaction, error) {
	tx, doc, err := load[PartyTransaction](ctx, s.store, partyTransactionRef(id))
	if err != nil {
		return PartyTransaction{}, err
	}
	tx.Seq = doc.Seq
	return tx, nil
}

// ListPartyTransactions returns the party's entries in ledger order.
func (s *Service) ListPartyTransactions(ctx context.Context, partyID string) ([]PartyTransaction, error) {
	docs, err := s.parties.Load(ctx, s.store, partyID)
	if err != nil {
		return nil, err
	}
	txs, err := decodeAll(docs, func(t *PartyTransaction, seq int64) { t.Seq = seq })
	if err != nil {
		return nil, err
	}
	sortLedger(txs, func(t PartyTransaction) generic.Entry {
		return generic.Entry{ID: t.ID, At: t.Date, Seq: t.Seq}
	})
	return txs, nil
}
