package bookkeeping

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/shopbook/generic"
)

// StatementLine is one entry of a statement with its running balance.
type StatementLine struct {
	TransactionID string
	Date          time.Time
	Type          string
	Amount        decimal.Decimal
	Delta         decimal.Decimal
	Balance       decimal.Decimal
	Note          string
}

// Statement covers one owner's ledger between two dates. Balances are
// computed from the full ledger, not read from stored derived fields.
type Statement struct {
	OwnerID string
	Name    string
	From    time.Time
	To      time.Time
	Opening decimal.Decimal
	Lines   []StatementLine
	Closing decimal.Decimal
}

// CustomerStatement returns the customer's ledger within [from, to]. Zero
// bounds are open.
func (s *Service) CustomerStatement(ctx context.Context, customerID string, from, to time.Time) (Statement, error) {
	c, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return Statement{}, err
	}
	txs, err := s.ListTransactions(ctx, customerID)
	if err != nil {
		return Statement{}, err
	}

	entries := make([]generic.Entry, len(txs))
	byID := make(map[string]Transaction, len(txs))
	for i, tx := range txs {
		entries[i] = generic.Entry{ID: tx.ID, At: tx.Date, Seq: tx.Seq, Delta: tx.Delta()}
		byID[tx.ID] = tx
	}
	return buildStatement(c.ID, c.Name, from, to, entries, func(id string) (string, decimal.Decimal, string) {
		tx := byID[id]
		return string(tx.Type), tx.Amount, tx.Note
	}), nil
}

// PartyStatement returns the party's ledger within [from, to].
func (s *Service) PartyStatement(ctx context.Context, partyID string, from, to time.Time) (Statement, error) {
	p, err := s.GetParty(ctx, partyID)
	if err != nil {
		return Statement{}, err
	}
	txs, err := s.ListPartyTransactions(ctx, partyID)
	if err != nil {
		return Statement{}, err
	}

	entries := make([]generic.Entry, len(txs))
	byID := make(map[string]PartyTransaction, len(txs))
	for i, tx := range txs {
		entries[i] = generic.Entry{ID: tx.ID, At: tx.Date, Seq: tx.Seq, Delta: tx.Delta()}
		byID[tx.ID] = tx
	}
	return buildStatement(p.ID, p.Name, from, to, entries, func(id string) (string, decimal.Decimal, string) {
		tx := byID[id]
		return string(tx.Type), tx.Amount, tx.Note
	}), nil
}

func buildStatement(ownerID, name string, from, to time.Time, entries []generic.Entry,
	describe func(id string) (string, decimal.Decimal, string)) Statement {
	w := generic.WindowOf(entries, from, to)
	st := Statement{
		OwnerID: ownerID,
		Name:    name,
		From:    from,
		To:      to,
		Opening: w.Opening,
		Closing: w.Closing,
		Lines:   make([]StatementLine, 0, len(w.Points)),
	}
	for _, p := range w.Points {
		typ, amount, note := describe(p.ID)
		st.Lines = append(st.Lines, StatementLine{
			TransactionID: p.ID,
			Date:          p.At,
			Type:          typ,
			Amount:        amount,
			Delta:         p.Delta,
			Balance:       p.Balance,
			Note:          note,
		})
	}
	return st
}
