/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logging:    Structured request log via zap
  4. CORS:       Cross-origin requests for frontend
  5. Session:    Bearer token -> request identity (permissive)

ROUTE GROUPS:
  /api/auth/*           Login and session
  /api/customers/*      Customer management
  /api/contacts/*       Contact management
  /api/deals/*          Deal pipeline
  /api/invoices/*       Invoicing
  /api/payments/*       Payment lifecycle (stop, history)
  /api/refunds/*        Refund workflow (approve, reject, complete)
  /api/dashboard        Aggregate metrics
  /api/admin/*          Overdue sweep
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
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
func NewRouter(h *Handler, auth *Auth) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(auth.Middleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Session routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", auth.Login(h))
			r.Get("/me", auth.Me)
		})

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		// Contact routes
		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
			r.Get("/{id}", h.GetContact)
			r.Put("/{id}", h.UpdateContact)
			r.Delete("/{id}", h.DeleteContact)
		})

		// Deal routes
		r.Route("/deals", func(r chi.Router) {
			r.Get("/", h.ListDeals)
			r.Post("/", h.CreateDeal)
			r.Get("/{id}", h.GetDeal)
			r.Put("/{id}", h.UpdateDeal)
			r.Delete("/{id}", h.DeleteDeal)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
			r.Post("/{id}/stop", h.StopPayment)
			r.Get("/{id}/history", h.GetPaymentHistory)
		})

		// Refund routes
		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", h.ListRefunds)
			r.Post("/", h.CreateRefund)
			r.Get("/{id}", h.GetRefund)
			r.Put("/{id}", h.UpdateRefund)
			r.Delete("/{id}", h.DeleteRefund)
			r.Post("/{id}/approve", h.ApproveRefund)
			r.Post("/{id}/reject", h.RejectRefund)
			r.Post("/{id}/complete", h.CompleteRefund)
		})

		// Dashboard
		r.Get("/dashboard", h.GetDashboard)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/mark-overdue", h.MarkOverdue)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Landing page pointing at the API surface.
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>CRM Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>CRM Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/customers">/api/customers</a> - List customers</li>
<li><a href="/api/invoices">/api/invoices</a> - List invoices</li>
<li><a href="/api/payments">/api/payments</a> - List payments</li>
<li><a href="/api/refunds">/api/refunds</a> - List refunds</li>
<li><a href="/api/dashboard">/api/dashboard</a> - Dashboard metrics</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
