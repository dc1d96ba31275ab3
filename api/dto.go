/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger records from the external API contract:
  - Amounts travel as decimal strings ("1250.50"), never floats
  - Dates travel as "YYYY-MM-DD" or RFC3339 on input, RFC3339 on output
  - Derived fields (balance_after, current_due, ...) are output only

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request shapes carry go-playground/validator tags, checked by
  Handler.decode before anything reaches the bookkeeping service. The
  service re-validates business rules on its own.

SEE ALSO:
  - handlers.go: Uses these types
  - bookkeeping/types.go: The records behind the DTOs
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/shopbook/accounts"
	"github.com/shopbook/shopbook/bookkeeping"
	"github.com/shopbook/shopbook/generic"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ContactRequest creates or edits a customer or a party.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=500"`
	Notes   string `json:"notes" validate:"max=1000"`
}

func (r ContactRequest) toInput() bookkeeping.ContactInput {
	return bookkeeping.ContactInput{Name: r.Name, Phone: r.Phone, Address: r.Address, Notes: r.Notes}
}

// TransactionRequest creates or edits a customer transaction.
type TransactionRequest struct {
	CustomerID   string `json:"customer_id" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=CREDIT PAYMENT"`
	Amount       string `json:"amount" validate:"required,numeric"`
	Note         string `json:"note" validate:"max=500"`
	Date         string `json:"date"`
	PaymentMode  string `json:"payment_mode" validate:"omitempty,oneof=CASH ONLINE PARTY_DIRECT"`
	PartyID      string `json:"party_id"`
	BillImageURL string `json:"bill_image_url" validate:"omitempty,url"`
}

func (r TransactionRequest) toInput(id, createdBy string) (bookkeeping.TransactionInput, error) {
	amount, date, err := parseAmountAndDate(r.Amount, r.Date)
	if err != nil {
		return bookkeeping.TransactionInput{}, err
	}
	return bookkeeping.TransactionInput{
		ID:           id,
		CustomerID:   r.CustomerID,
		Type:         bookkeeping.TxType(r.Type),
		Amount:       amount,
		Note:         r.Note,
		Date:         date,
		PaymentMode:  bookkeeping.PaymentMode(r.PaymentMode),
		PartyID:      r.PartyID,
		BillImageURL: r.BillImageURL,
		CreatedBy:    createdBy,
	}, nil
}

// PartyTransactionRequest creates or edits a party ledger entry.
type PartyTransactionRequest struct {
	PartyID      string `json:"party_id" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=PURCHASE PAYMENT DISCOUNT"`
	Amount       string `json:"amount" validate:"required,numeric"`
	Note         string `json:"note" validate:"max=500"`
	Date         string `json:"date"`
	BillImageURL string `json:"bill_image_url" validate:"omitempty,url"`
}

func (r PartyTransactionRequest) toInput(id string) (bookkeeping.PartyTransactionInput, error) {
	amount, date, err := parseAmountAndDate(r.Amount, r.Date)
	if err != nil {
		return bookkeeping.PartyTransactionInput{}, err
	}
	return bookkeeping.PartyTransactionInput{
		ID:           id,
		PartyID:      r.PartyID,
		Type:         bookkeeping.PartyTxType(r.Type),
		Amount:       amount,
		Note:         r.Note,
		Date:         date,
		BillImageURL: r.BillImageURL,
	}, nil
}

// RegisterRequest is a staff self-registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,max=20"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func parseAmountAndDate(amount, date string) (decimal.Decimal, time.Time, error) {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, time.Time{}, generic.Invalid("amount", fmt.Sprintf("invalid amount %q", amount))
	}
	d, err := generic.ParseDate(date)
	if err != nil {
		return decimal.Zero, time.Time{}, generic.Invalid("date", err.Error())
	}
	return a, d, nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return generic.FormatDate(*t)
}

// =============================================================================
// RESPONSES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastActivity   string          `json:"last_activity,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

func toCustomerDTO(c bookkeeping.Customer) CustomerDTO {
	return CustomerDTO{
		ID:             c.ID,
		Name:           c.Name,
		Phone:          c.Phone,
		Address:        c.Address,
		Notes:          c.Notes,
		CurrentBalance: c.CurrentBalance,
		LastActivity:   formatOptional(c.LastActivity),
		CreatedAt:      generic.FormatDate(c.CreatedAt),
	}
}

// TransactionDTO represents a customer transaction in API responses.
type TransactionDTO struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
	Date         string          `json:"date,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	PaymentMode  string          `json:"payment_mode,omitempty"`
	PartyID      string          `json:"party_id,omitempty"`
	BillImageURL string          `json:"bill_image_url,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

func toTransactionDTO(tx bookkeeping.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:           tx.ID,
		CustomerID:   tx.CustomerID,
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		Note:         tx.Note,
		Date:         generic.FormatDate(tx.Date),
		BalanceAfter: tx.BalanceAfter,
		PaymentMode:  string(tx.PaymentMode),
		PartyID:      tx.PartyID,
		BillImageURL: tx.BillImageURL,
		CreatedBy:    tx.CreatedBy,
		CreatedAt:    generic.FormatDate(tx.CreatedAt),
	}
}

// PartyDTO represents a supplier in API responses.
type PartyDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CurrentDue   decimal.Decimal `json:"current_due"`
	LastActivity string          `json:"last_activity,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

func toPartyDTO(p bookkeeping.Party) PartyDTO {
	return PartyDTO{
		ID:           p.ID,
		Name:         p.Name,
		Phone:        p.Phone,
		Notes:        p.Notes,
		CurrentDue:   p.CurrentDue,
		LastActivity: formatOptional(p.LastActivity),
		CreatedAt:    generic.FormatDate(p.CreatedAt),
	}
}

// PartyTransactionDTO represents a party ledger entry. Mirrors carry the
// customer and the customer transaction they came from.
type PartyTransactionDTO struct {
	ID                  string          `json:"id"`
	PartyID             string          `json:"party_id"`
	Type                string          `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	Note                string          `json:"note,omitempty"`
	Date                string          `json:"date,omitempty"`
	DueAfter            decimal.Decimal `json:"due_after"`
	BillImageURL        string          `json:"bill_image_url,omitempty"`
	CustomerID          string          `json:"customer_id,omitempty"`
	OriginTransactionID string          `json:"origin_transaction_id,omitempty"`
	CreatedAt           string          `json:"created_at"`
}

func toPartyTransactionDTO(tx bookkeeping.PartyTransaction) PartyTransactionDTO {
	return PartyTransactionDTO{
		ID:                  tx.ID,
		PartyID:             tx.PartyID,
		Type:                string(tx.Type),
		Amount:              tx.Amount,
		Note:                tx.Note,
		Date:                generic.FormatDate(tx.Date),
		DueAfter:            tx.DueAfter,
		BillImageURL:        tx.BillImageURL,
		CustomerID:          tx.CustomerID,
		OriginTransactionID: tx.OriginTransactionID,
		CreatedAt:           generic.FormatDate(tx.CreatedAt),
	}
}

// StatementDTO is a dated extract of one ledger.
type StatementDTO struct {
	OwnerID string             `json:"owner_id"`
	Name    string             `json:"name"`
	From    string             `json:"from,omitempty"`
	To      string             `json:"to,omitempty"`
	Opening decimal.Decimal    `json:"opening"`
	Lines   []StatementLineDTO `json:"lines"`
	Closing decimal.Decimal    `json:"closing"`
}

type StatementLineDTO struct {
	TransactionID string          `json:"transaction_id"`
	Date          string          `json:"date,omitempty"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Delta         decimal.Decimal `json:"delta"`
	Balance       decimal.Decimal `json:"balance"`
	Note          string          `json:"note,omitempty"`
}

func toStatementDTO(st bookkeeping.Statement) StatementDTO {
	dto := StatementDTO{
		OwnerID: st.OwnerID,
		Name:    st.Name,
		From:    generic.FormatDate(st.From),
		To:      generic.FormatDate(st.To),
		Opening: st.Opening,
		Closing: st.Closing,
		Lines:   make([]StatementLineDTO, len(st.Lines)),
	}
	for i, l := range st.Lines {
		dto.Lines[i] = StatementLineDTO{
			TransactionID: l.TransactionID,
			Date:          generic.FormatDate(l.Date),
			Type:          l.Type,
			Amount:        l.Amount,
			Delta:         l.Delta,
			Balance:       l.Balance,
			Note:          l.Note,
		}
	}
	return dto
}

// UserDTO never carries the password hash.
type UserDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toUserDTO(u accounts.User) UserDTO {
	return UserDTO{
		ID:         u.ID,
		Name:       u.Name,
		Phone:      u.Phone,
		Role:       string(u.Role),
		Approved:   u.Approved,
		ApprovedBy: u.ApprovedBy,
		CreatedAt:  generic.FormatDate(u.CreatedAt),
	}
}

// SaveResponse is returned by create/edit endpoints.
type SaveResponse struct {
	ID string `json:"id"`
}

// RecalculateResponse summarises a full recalculation pass.
type RecalculateResponse struct {
	RunID     string             `json:"run_id,omitempty"`
	Customers int                `json:"customers"`
	Parties   int                `json:"parties"`
	Mirrors   int                `json:"mirrors"`
	Failures  []RecalcFailureDTO `json:"failures"`
}

type RecalcFailureDTO struct {
	Ledger  string `json:"ledger"`
	OwnerID string `json:"owner_id"`
	Error   string `json:"error"`
}

func toRecalculateResponse(r bookkeeping.RecalcReport) RecalculateResponse {
	resp := RecalculateResponse{
		Customers: r.Customers,
		Parties:   r.Parties,
		Mirrors:   r.Mirrors,
		Failures:  make([]RecalcFailureDTO, len(r.Failures)),
	}
	for i, f := range r.Failures {
		resp.Failures[i] = RecalcFailureDTO{Ledger: f.Ledger, OwnerID: f.OwnerID, Error: f.Err.Error()}
	}
	return resp
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response. ID is set when a
// write landed but a follow-up step failed.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
	ID      string `json:"id,omitempty"`
}
