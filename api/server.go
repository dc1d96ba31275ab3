/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log line carrying the request id
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the shop frontend

ROUTE GROUPS:
  /healthz              Liveness + store ping (public)
  /metrics              Prometheus scrape endpoint (public)
  /api/auth/register    Staff self-registration (public)
  /api/customers/*      Customer ledgers          (approved users)
  /api/transactions/*   Customer entries          (approved users)
  /api/parties/*        Party ledgers             (approved users)
  /api/party-transactions/*                       (approved users)
  /api/admin/*          Approvals, recalculation  (approved admins)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate, RequireAdmin
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/auth/me", h.Me)

			// Customer routes
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
				r.Get("/{id}/transactions", h.ListCustomerTransactions)
				r.Get("/{id}/statement", h.CustomerStatement)
			})

			// Customer transaction routes
			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", h.CreateTransaction)
				r.Put("/{id}", h.UpdateTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			// Party routes
			r.Route("/parties", func(r chi.Router) {
				r.Get("/", h.ListParties)
				r.Post("/", h.CreateParty)
				r.Get("/{id}", h.GetParty)
				r.Put("/{id}", h.UpdateParty)
				r.Delete("/{id}", h.DeleteParty)
				r.Get("/{id}/transactions", h.ListPartyTransactions)
				r.Get("/{id}/statement", h.PartyStatement)
			})

			// Party transaction routes
			r.Route("/party-transactions", func(r chi.Router) {
				r.Post("/", h.CreatePartyTransaction)
				r.Put("/{id}", h.UpdatePartyTransaction)
				r.Delete("/{id}", h.DeletePartyTransaction)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/users/pending", h.ListPendingUsers)
				r.Post("/users/{id}/approve", h.ApproveUser)
				r.Post("/recalculate", h.Recalculate)
				r.Get("/reconcile/runs", h.ListReconcileRuns)
				r.Get("/scenarios", h.ListScenarios)
				r.Post("/scenarios/{id}/load", h.LoadScenario)
			})
		})
	})

	return r
}

// requestLogger logs one line per request and feeds the request counter.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if h.Metrics != nil {
				h.Metrics.ObserveRequest(r.Method, status)
			}
			h.Log.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
