/*
Package bookkeeping implements the shop's customer and supplier ledgers.

PURPOSE:
  Customers run a credit balance with the shop (CREDIT raises it, PAYMENT
  lowers it). Suppliers ("parties") run a due the shop owes them
  (PURCHASE raises it, PAYMENT / DISCOUNT / CUSTOMER_DIRECT lower it).
  A customer payment collected "directly to a party" is mirrored into the
  party ledger as a CUSTOMER_DIRECT entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer, Transaction:      customer ledger records
  - Party, PartyTransaction:    party ledger records
  - Sign tables:                type -> signed delta for each ledger

DERIVED FIELDS:
  BalanceAfter / DueAfter on transactions and CurrentBalance / CurrentDue /
  LastActivity on owners are never accepted from callers. They are written
  only by the recalculation in recalc.go.

SEE ALSO:
  - transactions.go: Customer transaction write path
  - parties.go: Party CRUD and party transaction write path
  - mirror.go: CUSTOMER_DIRECT mirror synchronisation
  - recalc.go: Ledger definitions and whole-ledger recalculation
*/
package bookkeeping

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/shopbook/generic"
)

// Collections used by this package.
const (
	CustomersCollection         generic.Collection = "customers"
	TransactionsCollection      generic.Collection = "transactions"
	PartiesCollection           generic.Collection = "parties"
	PartyTransactionsCollection generic.Collection = "party_transactions"
)

// =============================================================================
// CUSTOMER LEDGER
// =============================================================================

type TxType string

const (
	TxCredit  TxType = "CREDIT"  // goods given on credit, balance goes up
	TxPayment TxType = "PAYMENT" // customer paid, balance goes down
)

func (t TxType) Valid() bool { return t == TxCredit || t == TxPayment }

// Sign returns +1 for CREDIT and -1 for PAYMENT.
func (t TxType) Sign() int64 {
	if t == TxPayment {
		return -1
	}
	return 1
}

type PaymentMode string

const (
	ModeCash        PaymentMode = "CASH"
	ModeOnline      PaymentMode = "ONLINE"
	ModePartyDirect PaymentMode = "PARTY_DIRECT"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeOnline, ModePartyDirect:
		return true
	}
	return false
}

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastActivity   *time.Time      `json:"last_activity,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Transaction is one entry in a customer ledger.
type Transaction struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Type         TxType          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
	Date         time.Time       `json:"date"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	PaymentMode  PaymentMode     `json:"payment_mode,omitempty"`
	PartyID      string          `json:"party_id,omitempty"`
	BillImageURL string          `json:"bill_image_url,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	Seq int64 `json:"-"`
}

// Delta is the signed change this transaction applies to the balance.
func (t Transaction) Delta() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(t.Type.Sign()))
}

// MirrorTarget returns the party a mirror entry belongs to, or "".
func (t Transaction) MirrorTarget() string {
	if t.Type == TxPayment && t.PaymentMode == ModePartyDirect {
		return t.PartyID
	}
	return ""
}

// =============================================================================
// PARTY LEDGER
// =============================================================================

type PartyTxType string

const (
	PartyPurchase       PartyTxType = "PURCHASE"        // goods bought on credit, due goes up
	PartyPayment        PartyTxType = "PAYMENT"         // shop paid the supplier
	PartyDiscount       PartyTxType = "DISCOUNT"        // supplier waived part of the due
	PartyCustomerDirect PartyTxType = "CUSTOMER_DIRECT" // mirror of a customer payment
)

func (t PartyTxType) Valid() bool {
	switch t {
	case PartyPurchase, PartyPayment, PartyDiscount, PartyCustomerDirect:
		return true
	}
	return false
}

// UserEditable reports whether the type may be written through the party
// write path. CUSTOMER_DIRECT entries are owned by mirror sync.
func (t PartyTxType) UserEditable() bool {
	return t.Valid() && t != PartyCustomerDirect
}

// Sign returns +1 for PURCHASE and -1 for everything else.
func (t PartyTxType) Sign() int64 {
	if t == PartyPurchase {
		return 1
	}
	return -1
}

type Party struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CurrentDue   decimal.Decimal `json:"current_due"`
	LastActivity *time.Time      `json:"last_activity,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PartyTransaction is one entry in a party ledger.
type PartyTransaction struct {
	ID           string          `json:"id"`
	PartyID      string          `json:"party_id"`
	Type         PartyTxType     `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
	Date         time.Time       `json:"date"`
	DueAfter     decimal.Decimal `json:"due_after"`
	BillImageURL string          `json:"bill_image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	// Set only on CUSTOMER_DIRECT mirrors. CustomerID is for display;
	// OriginTransactionID is the key mirror sync looks entries up by.
	CustomerID          string `json:"customer_id,omitempty"`
	OriginTransactionID string `json:"origin_transaction_id,omitempty"`

	Seq int64 `json:"-"`
}

// Delta is the signed change this entry applies to the due.
func (t PartyTransaction) Delta() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(t.Type.Sign()))
}

// IsMirror reports whether the entry is managed by mirror sync.
func (t PartyTransaction) IsMirror() bool { return t.Type == PartyCustomerDirect }
