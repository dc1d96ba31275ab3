/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledgers with realistic
	data for demos. Each scenario creates customers, parties and their
	transactions through the bookkeeping service, so balances, dues and
	mirrors are derived exactly as they would be for real entries.

AVAILABLE SCENARIOS:

	corner-shop:      A few customers on credit, one supplier with bills
	running-balance:  Backdated and same-day entries on one customer
	direct-payment:   Customer pays a supplier directly, then the payment
	                  is moved to another supplier

HOW SCENARIOS WORK:
 1. Create parties first (payments may point at them)
 2. Create customers
 3. Save transactions in the order a shopkeeper would enter them

USAGE VIA API:

	POST /api/admin/scenarios/{id}/load

NOTE:

	Scenarios add to whatever is already stored. Names carry the scenario
	id so loaded data is easy to spot.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/shopbook/bookkeeping"
)

// Scenario is a named demo data set.
type Scenario struct {
	ID          string
	Name        string
	Description string
	Load        func(ctx context.Context, books *bookkeeping.Service) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []Scenario{
	{
		ID:          "corner-shop",
		Name:        "Corner Shop",
		Description: "Three customers buying on credit and one wholesaler with bills and a discount",
		Load:        loadCornerShop,
	},
	{
		ID:          "running-balance",
		Name:        "Running Balance",
		Description: "Backdated and same-day entries showing how balance_after is ordered",
		Load:        loadRunningBalance,
	},
	{
		ID:          "direct-payment",
		Name:        "Direct Payment",
		Description: "Customer pays a supplier directly; the payment is later moved to a second supplier",
		Load:        loadDirectPayment,
	},
}

// Scenarios returns the available scenarios.
func Scenarios() []Scenario {
	return scenarios
}

// FindScenario looks up a scenario by id.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// =============================================================================
// LOADERS
// =============================================================================

// scenarioStart anchors every scenario's dates.
var scenarioStart = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

func dayN(n int) time.Time { return scenarioStart.AddDate(0, 0, n) }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func loadCornerShop(ctx context.Context, books *bookkeeping.Service) error {
	wholesaler, err := books.CreateParty(ctx, bookkeeping.ContactInput{
		Name: "Corner Shop: Metro Wholesale", Phone: "9800000001", Address: "Market Road",
	})
	if err != nil {
		return err
	}

	type entry struct {
		day    int
		typ    bookkeeping.TxType
		amount string
		note   string
	}
	customers := []struct {
		name    string
		entries []entry
	}{
		{"Corner Shop: Asha", []entry{
			{0, bookkeeping.TxCredit, "450.00", "rice, dal"},
			{3, bookkeeping.TxCredit, "120.50", "milk"},
			{7, bookkeeping.TxPayment, "400.00", ""},
		}},
		{"Corner Shop: Ravi", []entry{
			{1, bookkeeping.TxCredit, "899.00", "monthly groceries"},
			{14, bookkeeping.TxPayment, "899.00", "settled"},
		}},
		{"Corner Shop: Meena", []entry{
			{2, bookkeeping.TxCredit, "65.00", "bread, eggs"},
		}},
	}

	for _, c := range customers {
		cust, err := books.CreateCustomer(ctx, bookkeeping.ContactInput{Name: c.name})
		if err != nil {
			return err
		}
		for _, e := range c.entries {
			if _, err := books.SaveTransaction(ctx, bookkeeping.TransactionInput{
				CustomerID: cust.ID,
				Type:       e.typ,
				Amount:     amt(e.amount),
				Note:       e.note,
				Date:       dayN(e.day),
			}); err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
		}
	}

	party := []bookkeeping.PartyTransactionInput{
		{Type: bookkeeping.PartyPurchase, Amount: amt("5200.00"), Note: "bill #118", Date: dayN(0)},
		{Type: bookkeeping.PartyPayment, Amount: amt("3000.00"), Date: dayN(5)},
		{Type: bookkeeping.PartyDiscount, Amount: amt("200.00"), Note: "damaged stock", Date: dayN(6)},
	}
	for _, in := range party {
		in.PartyID = wholesaler.ID
		if _, err := books.SavePartyTransaction(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func loadRunningBalance(ctx context.Context, books *bookkeeping.Service) error {
	cust, err := books.CreateCustomer(ctx, bookkeeping.ContactInput{
		Name: "Running Balance: Farida", Notes: "entries deliberately saved out of date order",
	})
	if err != nil {
		return err
	}

	inputs := []bookkeeping.TransactionInput{
		{Type: bookkeeping.TxCredit, Amount: amt("300"), Date: dayN(10), Note: "entered first"},
		{Type: bookkeeping.TxCredit, Amount: amt("100"), Date: dayN(2), Note: "backdated"},
		{Type: bookkeeping.TxPayment, Amount: amt("50"), Date: dayN(10), Note: "same day, saved later"},
		{Type: bookkeeping.TxCredit, Amount: amt("25"), Note: "no date"},
	}
	for _, in := range inputs {
		in.CustomerID = cust.ID
		if _, err := books.SaveTransaction(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func loadDirectPayment(ctx context.Context, books *bookkeeping.Service) error {
	dairy, err := books.CreateParty(ctx, bookkeeping.ContactInput{Name: "Direct Payment: Dairy Co-op"})
	if err != nil {
		return err
	}
	bakery, err := books.CreateParty(ctx, bookkeeping.ContactInput{Name: "Direct Payment: Sunrise Bakery"})
	if err != nil {
		return err
	}
	for _, p := range []string{dairy.ID, bakery.ID} {
		if _, err := books.SavePartyTransaction(ctx, bookkeeping.PartyTransactionInput{
			PartyID: p, Type: bookkeeping.PartyPurchase, Amount: amt("1000"), Date: dayN(0),
		}); err != nil {
			return err
		}
	}

	cust, err := books.CreateCustomer(ctx, bookkeeping.ContactInput{Name: "Direct Payment: Kiran"})
	if err != nil {
		return err
	}
	if _, err := books.SaveTransaction(ctx, bookkeeping.TransactionInput{
		CustomerID: cust.ID, Type: bookkeeping.TxCredit, Amount: amt("600"), Date: dayN(1),
	}); err != nil {
		return err
	}

	payment := bookkeeping.TransactionInput{
		CustomerID:  cust.ID,
		Type:        bookkeeping.TxPayment,
		Amount:      amt("400"),
		Date:        dayN(3),
		PaymentMode: bookkeeping.ModePartyDirect,
		PartyID:     dairy.ID,
		Note:        "paid the dairy on our behalf",
	}
	id, err := books.SaveTransaction(ctx, payment)
	if err != nil {
		return err
	}

	// Retarget the payment: the dairy mirror goes away, the bakery gets one.
	payment.ID = id
	payment.PartyID = bakery.ID
	_, err = books.SaveTransaction(ctx, payment)
	return err
}
