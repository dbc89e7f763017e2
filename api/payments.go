/*
payments.go - Payment endpoints

PURPOSE:
  Thin HTTP shims over the payment lifecycle manager. The handlers decode,
  default the acting user from the session, delegate, and serialize; every
  accounting effect happens inside the ledger service transaction.

SEE ALSO:
  - ledger/payment.go: the lifecycle rules
  - auth.go: CurrentUser
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/crm-engine/ledger"
)

var paymentIncludes = map[string]string{
	"customer":         "Customer",
	"invoice":          "Invoice",
	"invoice.customer": "Invoice.Customer",
	"refunds":          "Refunds",
	"history":          "History",
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	includes := parseIncludes(r, paymentIncludes, []string{"Invoice", "Invoice.Customer", "Customer", "Refunds"})
	payments, err := h.Store.ListPayments(r.Context(), includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch payments", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	includes := parseIncludes(r, paymentIncludes, []string{"Customer", "Invoice", "Refunds", "History"})
	p, err := h.Store.GetPayment(r.Context(), id, includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch payment", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Payment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	in := ledger.CreatePaymentInput{
		InvoiceID:       req.InvoiceID,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		Status:          ledger.PaymentStatus(req.Status),
		PaymentNumber:   req.PaymentNumber,
		TransactionID:   req.TransactionID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ProcessedBy:     h.actor(r, req.ProcessedBy),
		CardLast4:       req.CardLast4,
		CardBrand:       req.CardBrand,
		CardExpiry:      req.CardExpiry,
		BankName:        req.BankName,
		AccountLast4:    req.AccountLast4,
	}
	if req.PaymentDate != "" {
		t, err := parseDate(req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paymentDate (use YYYY-MM-DD)", err)
			return
		}
		in.PaymentDate = t
	}

	p, err := h.Payments.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Store.GetPayment(r.Context(), p.ID, "Customer", "Invoice")
	if err != nil || created == nil {
		writeJSON(w, http.StatusCreated, p)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	in := ledger.UpdatePaymentInput{
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		TransactionID:   req.TransactionID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ProcessedBy:     req.ProcessedBy,
	}
	if req.Status != nil {
		status := ledger.PaymentStatus(*req.Status)
		in.Status = &status
	}
	if req.PaymentDate != nil {
		t, err := parseDate(*req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paymentDate (use YYYY-MM-DD)", err)
			return
		}
		in.PaymentDate = &t
	}

	p, err := h.Payments.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// StopPayment executes the stop transition. Body: {reason, stoppedBy}.
func (h *Handler) StopPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req StopPaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p, err := h.Payments.Stop(r.Context(), id, req.Reason, h.actor(r, req.StoppedBy))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stopped, err := h.Store.GetPayment(r.Context(), p.ID, "Customer", "Invoice")
	if err != nil || stopped == nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, stopped)
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Payments.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment deleted"})
}

// GetPaymentHistory returns the audit trail, newest entry first.
func (h *Handler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch payment", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Payment not found", nil)
		return
	}

	entries, err := h.Store.HistoryByPayment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch payment history", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
