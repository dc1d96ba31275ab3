/*
handlers_test.go - HTTP tests for the API layer

Tests for:
- Basic auth and admin gating
- Customer and party ledgers through the router
- Error mapping (400/404/409/500 with written id)
- Registration and approval
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopbook/shopbook/accounts"
	"github.com/shopbook/shopbook/bookkeeping"
	"github.com/shopbook/shopbook/generic"
	"github.com/shopbook/shopbook/generic/store"
	"github.com/shopbook/shopbook/metrics"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

const (
	adminPhone    = "9000000000"
	adminPassword = "admin-pass"
)

type harness struct {
	t       *testing.T
	router  http.Handler
	handler *Handler
	books   *bookkeeping.Service
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, store.NewMemory())
}

func newHarnessWithStore(t *testing.T, st generic.Store) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	books := bookkeeping.NewService(st, bookkeeping.WithLogger(log))
	accts := accounts.NewService(st, accounts.WithHashCost(bcrypt.MinCost))
	_, _, err := accts.EnsureDefaultAdmin(context.Background(), accounts.AdminSeed{
		Name: "Owner", Phone: adminPhone, Password: adminPassword,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg, reg)

	h := NewHandler(books, accts, log)
	h.Metrics = m
	h.Reconciler = NewReconciler(books, log)
	return &harness{t: t, router: NewRouter(h, nil), handler: h, books: books, logs: logs, metrics: m}
}

// do sends a request as the admin unless creds are given ("" for none).
func (hs *harness) do(method, path string, body any, creds ...string) *httptest.ResponseRecorder {
	hs.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(hs.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	phone, password := adminPhone, adminPassword
	if len(creds) == 2 {
		phone, password = creds[0], creds[1]
	}
	if phone != "" {
		req.SetBasicAuth(phone, password)
	}

	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (hs *harness) createCustomer(name string) CustomerDTO {
	hs.t.Helper()
	rec := hs.do(http.MethodPost, "/api/customers", ContactRequest{Name: name})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[CustomerDTO](hs.t, rec)
}

func (hs *harness) createParty(name string) PartyDTO {
	hs.t.Helper()
	rec := hs.do(http.MethodPost, "/api/parties", ContactRequest{Name: name})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[PartyDTO](hs.t, rec)
}

func (hs *harness) save(req TransactionRequest) string {
	hs.t.Helper()
	rec := hs.do(http.MethodPost, "/api/transactions", req)
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[SaveResponse](hs.t, rec).ID
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// AUTH
// =============================================================================

func TestHealthHidesStoreError(t *testing.T) {
	// GIVEN: A store whose ping fails with an internal message
	hs := newHarness(t)
	hs.handler.Ping = func(context.Context) error {
		return errors.New("dial tcp 10.0.0.5:5432: connection refused")
	}

	// WHEN: The health endpoint is hit
	rec := hs.do(http.MethodGet, "/healthz", nil, "", "")

	// THEN: 503 without the store error, which is logged instead
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "store unavailable", resp.Error)
	assert.Empty(t, resp.Details)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")

	logged := hs.logs.FilterMessage("health check failed").All()
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0].ContextMap()["error"], "connection refused")
}

func TestAuth(t *testing.T) {
	hs := newHarness(t)

	t.Run("health is public", func(t *testing.T) {
		rec := hs.do(http.MethodGet, "/healthz", nil, "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		rec := hs.do(http.MethodGet, "/api/customers", nil, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := hs.do(http.MethodGet, "/api/customers", nil, adminPhone, "nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unapproved user", func(t *testing.T) {
		rec := hs.do(http.MethodPost, "/api/auth/register", RegisterRequest{
			Name: "Sunil", Phone: "9111111111", Password: "secret1",
		}, "", "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = hs.do(http.MethodGet, "/api/customers", nil, "9111111111", "secret1")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin me", func(t *testing.T) {
		rec := hs.do(http.MethodGet, "/api/auth/me", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decodeBody[UserDTO](t, rec)
		assert.Equal(t, "admin", me.Role)
		assert.True(t, me.Approved)
	})
}

func TestRegisterAndApprove(t *testing.T) {
	// GIVEN: A staff member registers
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/api/auth/register", RegisterRequest{
		Name: "Priya", Phone: "9222-222-222", Password: "secret1",
	}, "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody[UserDTO](t, rec)
	assert.False(t, user.Approved)
	assert.Equal(t, "staff", user.Role)
	assert.Equal(t, "9222222222", user.Phone)

	// Duplicate phone is a validation error
	rec = hs.do(http.MethodPost, "/api/auth/register", RegisterRequest{
		Name: "Priya again", Phone: "9222222222", Password: "secret2",
	}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "phone", decodeBody[ErrorResponse](t, rec).Field)

	// WHEN: The admin lists and approves pending users
	rec = hs.do(http.MethodGet, "/api/admin/users/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[[]UserDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, user.ID, pending[0].ID)

	rec = hs.do(http.MethodPost, "/api/admin/users/"+user.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The user can work the ledgers but not the admin routes
	rec = hs.do(http.MethodGet, "/api/customers", nil, "9222222222", "secret1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = hs.do(http.MethodGet, "/api/admin/users/pending", nil, "9222222222", "secret1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPost, "/api/admin/recalculate", nil, "9222222222", "secret1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	hs := newHarness(t)

	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"missing name", RegisterRequest{Phone: "9333333333", Password: "secret1"}, "name"},
		{"missing phone", RegisterRequest{Name: "A", Password: "secret1"}, "phone"},
		{"short password", RegisterRequest{Name: "A", Phone: "9333333333", Password: "abc"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := hs.do(http.MethodPost, "/api/auth/register", tt.req, "", "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decodeBody[ErrorResponse](t, rec).Field)
		})
	}
}

// =============================================================================
// CUSTOMER LEDGER
// =============================================================================

func TestCustomerLedgerFlow(t *testing.T) {
	// GIVEN: A customer with a credit and a later payment
	hs := newHarness(t)
	c := hs.createCustomer("Asha")

	creditID := hs.save(TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "450.00", Date: "2025-03-01", Note: "rice"})
	hs.save(TransactionRequest{CustomerID: c.ID, Type: "PAYMENT", Amount: "100", Date: "2025-03-05"})

	// WHEN: Reading the customer and its ledger
	rec := hs.do(http.MethodGet, "/api/customers/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[CustomerDTO](t, rec)

	// THEN: Balance and running balances are derived
	assertAmount(t, "350", got.CurrentBalance)
	assert.NotEmpty(t, got.LastActivity)

	rec = hs.do(http.MethodGet, "/api/customers/"+c.ID+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody[[]TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	assertAmount(t, "450", txs[0].BalanceAfter)
	assertAmount(t, "350", txs[1].BalanceAfter)
	assert.Equal(t, "CASH", txs[1].PaymentMode)
	assert.Empty(t, txs[0].PaymentMode, "credits carry no payment mode")

	// Edit the credit
	rec = hs.do(http.MethodPut, "/api/transactions/"+creditID,
		TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "500", Date: "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hs.do(http.MethodGet, "/api/customers/"+c.ID, nil)
	assertAmount(t, "400", decodeBody[CustomerDTO](t, rec).CurrentBalance)

	// Delete it
	rec = hs.do(http.MethodDelete, "/api/transactions/"+creditID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = hs.do(http.MethodGet, "/api/customers/"+c.ID, nil)
	assertAmount(t, "-100", decodeBody[CustomerDTO](t, rec).CurrentBalance)
}

func TestCustomerStatement(t *testing.T) {
	hs := newHarness(t)
	c := hs.createCustomer("Ravi")
	hs.save(TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "200", Date: "2025-03-01"})
	hs.save(TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "50", Date: "2025-03-10T18:30:00Z"})
	hs.save(TransactionRequest{CustomerID: c.ID, Type: "PAYMENT", Amount: "120", Date: "2025-03-20"})

	// "to" as a bare date covers the whole day
	rec := hs.do(http.MethodGet, "/api/customers/"+c.ID+"/statement?from=2025-03-02&to=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[StatementDTO](t, rec)

	assertAmount(t, "200", st.Opening)
	require.Len(t, st.Lines, 1)
	assertAmount(t, "250", st.Lines[0].Balance)
	assertAmount(t, "250", st.Closing)

	rec = hs.do(http.MethodGet, "/api/customers/"+c.ID+"/statement?from=2025-03-10&to=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodGet, "/api/customers/"+c.ID+"/statement?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "from", decodeBody[ErrorResponse](t, rec).Field)
}

func TestErrorMapping(t *testing.T) {
	hs := newHarness(t)
	c := hs.createCustomer("Meena")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"malformed json", http.MethodPost, "/api/transactions", "{not json", http.StatusBadRequest, ""},
		{"missing name", http.MethodPost, "/api/customers", ContactRequest{}, http.StatusBadRequest, "name"},
		{"bad type", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: c.ID, Type: "REFUND", Amount: "1"}, http.StatusBadRequest, "type"},
		{"non-numeric amount", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "ten"}, http.StatusBadRequest, "amount"},
		{"zero amount", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "0"}, http.StatusBadRequest, "amount"},
		{"bad date", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "5", Date: "31/03/2025"}, http.StatusBadRequest, "date"},
		{"direct payment without party", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: c.ID, Type: "PAYMENT", Amount: "5", PaymentMode: "PARTY_DIRECT"}, http.StatusBadRequest, "party_id"},
		{"unknown customer", http.MethodPost, "/api/transactions",
			TransactionRequest{CustomerID: "nobody", Type: "CREDIT", Amount: "5"}, http.StatusNotFound, ""},
		{"unknown transaction", http.MethodDelete, "/api/transactions/nothing", nil, http.StatusNotFound, ""},
		{"unknown party", http.MethodGet, "/api/parties/nothing", nil, http.StatusNotFound, ""},
		{"unknown customer ledger", http.MethodGet, "/api/customers/nothing/transactions", nil, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := hs.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Equal(t, tt.field, resp.Field)
			}
		})
	}
}

// =============================================================================
// PARTIES AND MIRRORS
// =============================================================================

func TestDirectPaymentMirrorsIntoParty(t *testing.T) {
	// GIVEN: A supplier with a bill and a customer
	hs := newHarness(t)
	p := hs.createParty("Metro Wholesale")
	rec := hs.do(http.MethodPost, "/api/party-transactions",
		PartyTransactionRequest{PartyID: p.ID, Type: "PURCHASE", Amount: "1000", Date: "2025-03-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	c := hs.createCustomer("Kiran")

	// WHEN: The customer pays the supplier directly
	txID := hs.save(TransactionRequest{
		CustomerID: c.ID, Type: "PAYMENT", Amount: "400", Date: "2025-03-02",
		PaymentMode: "PARTY_DIRECT", PartyID: p.ID,
	})

	// THEN: The party due drops and the mirror is listed
	rec = hs.do(http.MethodGet, "/api/parties/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertAmount(t, "600", decodeBody[PartyDTO](t, rec).CurrentDue)

	rec = hs.do(http.MethodGet, "/api/parties/"+p.ID+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ptxs := decodeBody[[]PartyTransactionDTO](t, rec)
	require.Len(t, ptxs, 2)
	mirror := ptxs[1]
	assert.Equal(t, "CUSTOMER_DIRECT", mirror.Type)
	assert.Equal(t, txID, mirror.OriginTransactionID)
	assert.Equal(t, c.ID, mirror.CustomerID)
	assertAmount(t, "600", mirror.DueAfter)

	// AND: The mirror cannot be edited or deleted directly
	rec = hs.do(http.MethodPut, "/api/party-transactions/"+mirror.ID,
		PartyTransactionRequest{PartyID: p.ID, Type: "PURCHASE", Amount: "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = hs.do(http.MethodDelete, "/api/party-transactions/"+mirror.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: The party statement includes it
	rec = hs.do(http.MethodGet, "/api/parties/"+p.ID+"/statement", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[StatementDTO](t, rec)
	assert.Len(t, st.Lines, 2)
	assertAmount(t, "600", st.Closing)

	// WHEN: The customer is deleted
	rec = hs.do(http.MethodDelete, "/api/customers/"+c.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: The mirror goes with it
	rec = hs.do(http.MethodGet, "/api/parties/"+p.ID, nil)
	assertAmount(t, "1000", decodeBody[PartyDTO](t, rec).CurrentDue)
}

func TestPartyCRUD(t *testing.T) {
	hs := newHarness(t)
	p := hs.createParty("Dairy Co-op")

	rec := hs.do(http.MethodPut, "/api/parties/"+p.ID, ContactRequest{Name: "Dairy Co-operative", Phone: "98000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Dairy Co-operative", decodeBody[PartyDTO](t, rec).Name)

	rec = hs.do(http.MethodGet, "/api/parties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]PartyDTO](t, rec), 1)

	rec = hs.do(http.MethodDelete, "/api/parties/"+p.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = hs.do(http.MethodGet, "/api/parties/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMIN AND FAILURES
// =============================================================================

func TestRecalculateEndpoint(t *testing.T) {
	hs := newHarness(t)
	c := hs.createCustomer("Farida")
	hs.save(TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "10"})
	hs.createParty("Bakery")

	rec := hs.do(http.MethodPost, "/api/admin/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[RecalculateResponse](t, rec)
	assert.Equal(t, 1, resp.Customers)
	assert.Equal(t, 1, resp.Parties)
	assert.Empty(t, resp.Failures)
}

func TestRecalculateEndpointIsRecordedAsManualRun(t *testing.T) {
	// GIVEN: A direct payment whose mirror has gone missing
	hs := newHarness(t)
	c := hs.createCustomer("Kiran")
	p := hs.createParty("Dairy")
	id := hs.save(TransactionRequest{CustomerID: c.ID, Type: "PAYMENT", Amount: "300", PaymentMode: "PARTY_DIRECT", PartyID: p.ID})
	require.NoError(t, hs.books.SyncMirror(context.Background(), bookkeeping.MirrorState{TransactionID: id, CustomerID: c.ID}, ""))

	// WHEN: An admin triggers a recalculation
	rec := hs.do(http.MethodPost, "/api/admin/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[RecalculateResponse](t, rec)

	// THEN: The mirror is rebuilt and the pass shows up in the run history
	assert.Equal(t, 1, resp.Mirrors)
	require.NotEmpty(t, resp.RunID)

	rec = hs.do(http.MethodGet, "/api/admin/reconcile/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeBody[[]ReconcileRun](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, resp.RunID, runs[0].ID)
	assert.Equal(t, "manual", runs[0].Trigger)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 1, runs[0].Mirrors)
}

func TestRecalculateEndpointWithoutReconciler(t *testing.T) {
	hs := newHarness(t)
	hs.handler.Reconciler = nil
	hs.createCustomer("Farida")

	rec := hs.do(http.MethodPost, "/api/admin/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[RecalculateResponse](t, rec)
	assert.Equal(t, 1, resp.Customers)
	assert.Empty(t, resp.RunID)
}

// failingBatchStore fails every BatchWrite, so writes land but their
// recalculation does not.
type failingBatchStore struct {
	generic.Store
}

func (failingBatchStore) BatchWrite(context.Context, []generic.Write) error {
	return errors.New("disk full")
}

func TestWriteWithFailedRecalculationReturnsID(t *testing.T) {
	// GIVEN: A store whose batch writes fail
	hs := newHarnessWithStore(t, failingBatchStore{Store: store.NewMemory()})
	c := hs.createCustomer("Asha")

	// WHEN: A transaction is saved
	rec := hs.do(http.MethodPost, "/api/transactions", TransactionRequest{CustomerID: c.ID, Type: "CREDIT", Amount: "10"})

	// THEN: 500, with the id of the entry that was written
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.NotContains(t, resp.Error, "disk full", "server error details stay in the log")

	logged := hs.logs.FilterMessage("request failed").All()
	require.Len(t, logged, 1)
	assert.Equal(t, resp.ID, logged[0].ContextMap()["written_id"])

	_, err := hs.books.GetTransaction(context.Background(), resp.ID)
	assert.NoError(t, err)
}

func TestRequestMetrics(t *testing.T) {
	hs := newHarness(t)
	hs.do(http.MethodGet, "/api/customers", nil)
	hs.do(http.MethodGet, "/api/customers", nil, "", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(hs.metrics.HTTPRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hs.metrics.HTTPRequests.WithLabelValues("GET", "401")))

	rec := hs.do(http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shopbook_http_requests_total")
}
