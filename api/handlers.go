/*
handlers.go - HTTP API handlers for the shop ledgers

PURPOSE:
  Exposes the bookkeeping and accounts services via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the domain
  services. No ledger arithmetic happens here.

ENDPOINTS:
  Customers:
    GET    /api/customers                   List customers
    POST   /api/customers                   Create customer
    GET    /api/customers/{id}              Customer with current balance
    PUT    /api/customers/{id}              Edit profile
    DELETE /api/customers/{id}              Delete customer and its ledger
    GET    /api/customers/{id}/transactions Ledger with balance_after
    GET    /api/customers/{id}/statement    ?from=&to= dated extract

  Customer transactions:
    POST   /api/transactions                Create (CREDIT / PAYMENT)
    PUT    /api/transactions/{id}           Edit
    DELETE /api/transactions/{id}           Delete

  Parties and party transactions mirror the customer routes under
  /api/parties and /api/party-transactions.

  Admin:
    GET    /api/admin/users/pending         Users awaiting approval
    POST   /api/admin/users/{id}/approve    Approve a user
    POST   /api/admin/recalculate           Recalculate every ledger
    GET    /api/admin/reconcile/runs        Recent background passes
    GET    /api/admin/scenarios             Demo data sets
    POST   /api/admin/scenarios/{id}/load   Load a demo data set

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: ValidationError, malformed JSON
  - 401: Missing or invalid credentials
  - 403: Not approved, not an admin
  - 404: NotFoundError
  - 409: InvalidOperationError (e.g. editing a CUSTOMER_DIRECT mirror)
  - 500: Store failures, including a write whose recalculation failed
         (the body then carries the id of the written record)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Basic auth and admin middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/accounts"
	"github.com/shopbook/shopbook/bookkeeping"
	"github.com/shopbook/shopbook/generic"
	"github.com/shopbook/shopbook/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Books      *bookkeeping.Service
	Accounts   *accounts.Service
	Log        *zap.Logger
	Metrics    *metrics.Metrics                // optional
	Reconciler *Reconciler                     // optional
	Ping       func(ctx context.Context) error // optional store health check

	validate *validator.Validate
}

// NewHandler creates a handler over the two services.
func NewHandler(books *bookkeeping.Service, accts *accounts.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Books:    books,
		Accounts: accts,
		Log:      log,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.Log.Error("health check failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Books.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Books.CreateCustomer(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Books.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Books.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomerTransactions returns the ledger in fold order.
func (h *Handler) ListCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Books.GetCustomer(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.Books.ListTransactions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CustomerStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.statementRange(w, r)
	if !ok {
		return
	}
	st, err := h.Books.CustomerStatement(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// CUSTOMER TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	h.saveTransaction(w, r, "", http.StatusCreated)
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	h.saveTransaction(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (h *Handler) saveTransaction(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req TransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(id, CurrentUser(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	savedID, err := h.Books.SaveTransaction(r.Context(), in)
	if err != nil {
		h.failWithID(w, r, err, savedID)
		return
	}
	writeJSON(w, status, SaveResponse{ID: savedID})
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PARTY HANDLERS
// =============================================================================

func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.Books.ListParties(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]PartyDTO, len(parties))
	for i, p := range parties {
		dtos[i] = toPartyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Books.CreateParty(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartyDTO(p))
}

func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Books.GetParty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(p))
}

func (h *Handler) UpdateParty(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Books.UpdateParty(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(p))
}

// DeleteParty leaves CUSTOMER_DIRECT mirrors behind; see bookkeeping.DeleteParty.
func (h *Handler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.DeleteParty(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPartyTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Books.GetParty(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.Books.ListPartyTransactions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]PartyTransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toPartyTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) PartyStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.statementRange(w, r)
	if !ok {
		return
	}
	st, err := h.Books.PartyStatement(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// PARTY TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) CreatePartyTransaction(w http.ResponseWriter, r *http.Request) {
	h.savePartyTransaction(w, r, "", http.StatusCreated)
}

func (h *Handler) UpdatePartyTransaction(w http.ResponseWriter, r *http.Request) {
	h.savePartyTransaction(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (h *Handler) savePartyTransaction(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req PartyTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	savedID, err := h.Books.SavePartyTransaction(r.Context(), in)
	if err != nil {
		h.failWithID(w, r, err, savedID)
		return
	}
	writeJSON(w, status, SaveResponse{ID: savedID})
}

func (h *Handler) DeletePartyTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.DeletePartyTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Register is public. The new account stays unusable until approved.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Register(r.Context(), accounts.RegisterInput{
		Name: req.Name, Phone: req.Phone, Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserDTO(CurrentUser(r.Context())))
}

func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Accounts.ListPending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.Approve(r.Context(), CurrentUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Recalculate re-folds every ledger. Per-owner failures are reported in the
// body; the request itself only fails if the owners cannot be listed. With a
// reconciler the pass is serialized with scheduled ones and recorded.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var (
		runID  string
		report bookkeeping.RecalcReport
		err    error
	)
	if h.Reconciler != nil {
		var run ReconcileRun
		run, report, err = h.Reconciler.Reconcile(r.Context(), "manual")
		runID = run.ID
	} else {
		report, err = h.Books.RecalculateAll(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("manual recalculation",
		zap.String("user_id", CurrentUser(r.Context()).ID),
		zap.String("run_id", runID),
		zap.Int("customers", report.Customers),
		zap.Int("parties", report.Parties),
		zap.Int("mirrors", report.Mirrors),
		zap.Int("failures", len(report.Failures)),
	)
	resp := toRecalculateResponse(report)
	resp.RunID = runID
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListReconcileRuns(w http.ResponseWriter, r *http.Request) {
	runs := []ReconcileRun{}
	if h.Reconciler != nil {
		runs = h.Reconciler.Runs()
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := Scenarios()
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scenario, ok := FindScenario(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown scenario %q", id), nil)
		return
	}
	if err := scenario.Load(r.Context(), h.Books); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: scenario.ID, Name: scenario.Name, Description: scenario.Description})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON body. It writes the 400 response
// itself and returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.fail(w, r, generic.Invalid(verrs[0].Field(), validationMessage(verrs[0])))
			return false
		}
		h.fail(w, r, err)
		return false
	}
	return true
}

// statementRange reads ?from= and ?to=. A bare date in "to" covers the
// whole day.
func (h *Handler) statementRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := generic.ParseDate(q.Get("from"))
	if err != nil {
		h.fail(w, r, generic.Invalid("from", err.Error()))
		return time.Time{}, time.Time{}, false
	}
	to, err := generic.ParseDate(q.Get("to"))
	if err != nil {
		h.fail(w, r, generic.Invalid("to", err.Error()))
		return time.Time{}, time.Time{}, false
	}
	if !to.IsZero() && len(strings.TrimSpace(q.Get("to"))) == len(generic.DateLayout) {
		to = generic.EndOfDay(to)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		h.fail(w, r, generic.Invalid("to", "end of range is before its start"))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.failWithID(w, r, err, "")
}

// failWithID maps err onto a status code. Server errors are logged with
// the request id and their details are not sent to the client.
func (h *Handler) failWithID(w http.ResponseWriter, r *http.Request, err error, id string) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), ID: id}

	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Message
		resp.Field = verr.Field
	case status < http.StatusInternalServerError:
		resp.Error = err.Error()
	default:
		h.Log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("written_id", id),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrNotApproved), errors.Is(err, accounts.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + e.Param() + " characters"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "numeric":
		return "Must be numeric"
	case "url":
		return "Invalid URL format"
	default:
		return "Invalid value"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
