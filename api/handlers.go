/*
handlers.go - Handler wiring and shared HTTP plumbing

PURPOSE:
  Holds the Handler struct with all dependencies, the JSON/error helpers
  every endpoint shares, include-parameter parsing, and the dashboard and
  admin endpoints.

ERROR HANDLING:
  Domain errors map onto HTTP statuses in one place (writeDomainError):
  - 400: validation failures
  - 404: entity not found
  - 409: state-machine violations, already-stopped payments
  - 500: everything else
  The body is always the ErrorResponse envelope.

REQUEST FLOW:
  1. Decode and validate the request body (decodeValid)
  2. Call a ledger service or the store
  3. Serialize the entity back, or map the error

SEE ALSO:
  - crm.go, invoices.go, payments.go, refunds.go: entity endpoints
  - auth.go: session handling
  - server.go: routing
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/crm-engine/ledger"
	"github.com/warp/crm-engine/store/gormdb"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *gormdb.Store
	Accounting *ledger.Accounting
	Payments   *ledger.Payments
	Refunds    *ledger.Refunds
	Log        *zap.Logger

	validate *validator.Validate

	// Track currently loaded demo scenario
	currentScenario string
}

// NewHandler wires the ledger services around the store.
func NewHandler(store *gormdb.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	accounting := ledger.NewAccounting(store, log)
	return &Handler{
		Store:      store,
		Accounting: accounting,
		Payments:   ledger.NewPayments(store, accounting, log),
		Refunds:    ledger.NewRefunds(store, accounting, log),
		Log:        log,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// DASHBOARD & ADMIN
// =============================================================================

// GetDashboard returns the aggregate stats for the landing page.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// MarkOverdue flips Sent invoices past their due date to Overdue.
func (h *Handler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	marked, err := h.Accounting.MarkOverdue(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark overdue invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkOverdueResponse{Marked: marked})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

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

// writeDomainError converts ledger errors into the HTTP contract.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrAlreadyStopped), errors.Is(err, ledger.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Unexpected error", err)
	}
}

// decodeValid decodes the body into dst and runs struct validation. Writes
// the 400 response itself; callers just return on false.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseIncludes reads ?include=a,b,c and maps the names onto Preload paths.
// Unknown names are ignored; an absent parameter yields the endpoint's
// defaults.
func parseIncludes(r *http.Request, allowed map[string]string, defaults []string) []string {
	raw := r.URL.Query().Get("include")
	if raw == "" {
		return defaults
	}
	var includes []string
	for _, name := range strings.Split(raw, ",") {
		if path, ok := allowed[strings.ToLower(strings.TrimSpace(name))]; ok {
			includes = append(includes, path)
		}
	}
	return includes
}
