/*
refunds.go - Refund endpoints

PURPOSE:
  HTTP surface of the refund approval workflow: request, approve, reject,
  complete, plus CRUD reads. Transition violations come back as 409.

SEE ALSO:
  - ledger/refund.go: the state machine
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/crm-engine/ledger"
)

var refundIncludes = map[string]string{
	"payment":          "Payment",
	"payment.customer": "Payment.Customer",
	"invoice":          "Invoice",
	"invoice.items":    "Invoice.Items",
}

func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	includes := parseIncludes(r, refundIncludes, []string{"Payment", "Payment.Customer", "Invoice"})
	refunds, err := h.Store.ListRefunds(r.Context(), includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch refunds", err)
		return
	}
	writeJSON(w, http.StatusOK, refunds)
}

func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	includes := parseIncludes(r, refundIncludes, []string{"Payment", "Payment.Customer", "Invoice", "Invoice.Items"})
	ref, err := h.Store.GetRefund(r.Context(), id, includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch refund", err)
		return
	}
	if ref == nil {
		writeError(w, http.StatusNotFound, "Refund not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ref, err := h.Refunds.Request(r.Context(), ledger.RequestRefundInput{
		PaymentID:    req.PaymentID,
		InvoiceID:    req.InvoiceID,
		Amount:       req.Amount,
		Reason:       req.Reason,
		RefundMethod: req.RefundMethod,
		RequestedBy:  h.actor(r, req.RequestedBy),
		RefundNumber: req.RefundNumber,
		Notes:        req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Store.GetRefund(r.Context(), ref.ID, "Payment", "Payment.Customer", "Invoice")
	if err != nil || created == nil {
		writeJSON(w, http.StatusCreated, ref)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateRefundRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ref, err := h.Refunds.Update(r.Context(), id, ledger.UpdateRefundInput{
		Reason:       req.Reason,
		RefundMethod: req.RefundMethod,
		Notes:        req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) DeleteRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Refunds.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Refund deleted"})
}

// ApproveRefund moves a Pending refund to Approved. Body: {approvedBy}.
func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ApproveRefundRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ref, err := h.Refunds.Approve(r.Context(), id, h.actor(r, req.ApprovedBy))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// RejectRefund moves a Pending refund to Rejected. Body: {reason}.
func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RejectRefundRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ref, err := h.Refunds.Reject(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// CompleteRefund moves an Approved refund to Completed and settles the
// invoice. Body: {processedBy}.
func (h *Handler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CompleteRefundRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ref, err := h.Refunds.Complete(r.Context(), id, h.actor(r, req.ProcessedBy))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
