/*
invoices.go - Invoice endpoints

PURPOSE:
  Invoice CRUD with server-side derivation of every money field. Clients
  submit line items and rates; subtotal, tax, total, amountPaid and
  amountDue come out of ComputeDerived and the accounting service only.

DELETE SEMANTICS:
  The persistence layer rejects deletion while payments or refunds still
  reference the invoice; that surfaces as a 404, same as a missing row.

SEE ALSO:
  - ledger/types.go: ComputeDerived
  - ledger/accounting.go: recomputation on rate changes
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/crm-engine/ledger"
)

var invoiceIncludes = map[string]string{
	"customer": "Customer",
	"deal":     "Deal",
	"items":    "Items",
	"payments": "Payments",
	"refunds":  "Refunds",
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	includes := parseIncludes(r, invoiceIncludes, []string{"Customer", "Deal", "Items", "Payments"})
	invoices, err := h.Store.ListInvoices(r.Context(), includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	includes := parseIncludes(r, invoiceIncludes, []string{"Customer", "Deal", "Items", "Payments", "Refunds"})
	inv, err := h.Store.GetInvoice(r.Context(), id, includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	status := ledger.InvoiceDraft
	if req.Status != "" {
		status = ledger.InvoiceStatus(req.Status)
		if status != ledger.InvoiceDraft && status != ledger.InvoiceSent {
			writeError(w, http.StatusBadRequest, "Invoices are created as Draft or Sent", nil)
			return
		}
	}

	issueDate := time.Now()
	if req.IssueDate != "" {
		t, err := parseDate(req.IssueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid issueDate (use YYYY-MM-DD)", err)
			return
		}
		issueDate = t
	}
	dueDate := issueDate.AddDate(0, 1, 0)
	if req.DueDate != "" {
		t, err := parseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dueDate (use YYYY-MM-DD)", err)
			return
		}
		dueDate = t
	}

	customer, err := h.Store.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch customer", err)
		return
	}
	if customer == nil {
		writeError(w, http.StatusBadRequest, "customerId does not reference an existing customer", nil)
		return
	}

	number := req.InvoiceNumber
	if number == "" {
		number = ledger.NewInvoiceNumber()
	}

	inv := &ledger.Invoice{
		ID:              ledger.NewID(),
		InvoiceNumber:   number,
		CustomerID:      req.CustomerID,
		DealID:          req.DealID,
		IssueDate:       issueDate,
		DueDate:         dueDate,
		TaxRate:         req.TaxRate,
		DiscountAmount:  req.DiscountAmount,
		Status:          status,
		Notes:           req.Notes,
		TermsConditions: req.TermsConditions,
	}
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			writeError(w, http.StatusBadRequest, "Line quantity must be greater than zero", nil)
			return
		}
		if item.UnitPrice.IsNegative() {
			writeError(w, http.StatusBadRequest, "Line unitPrice cannot be negative", nil)
			return
		}
		inv.Items = append(inv.Items, ledger.InvoiceLine{
			ID:          ledger.NewID(),
			InvoiceID:   inv.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	inv.ComputeDerived()

	if err := h.Store.CreateInvoice(r.Context(), inv); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create invoice", err)
		return
	}

	created, err := h.Store.GetInvoice(r.Context(), inv.ID, "Customer", "Items")
	if err != nil || created == nil {
		writeJSON(w, http.StatusCreated, inv)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateInvoiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	inv, err := h.Store.GetInvoice(r.Context(), id, "Items")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}

	if req.Status != nil {
		status := ledger.InvoiceStatus(*req.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid invoice status", nil)
			return
		}
		// Paid is derived from the ledger, never set by hand.
		if status == ledger.InvoicePaid {
			writeError(w, http.StatusBadRequest, "Paid status is derived from payments", nil)
			return
		}
		inv.Status = status
	}
	if req.IssueDate != nil {
		t, err := parseDate(*req.IssueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid issueDate (use YYYY-MM-DD)", err)
			return
		}
		inv.IssueDate = t
	}
	if req.DueDate != nil {
		t, err := parseDate(*req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dueDate (use YYYY-MM-DD)", err)
			return
		}
		inv.DueDate = t
	}
	if req.TaxRate != nil {
		inv.TaxRate = *req.TaxRate
	}
	if req.DiscountAmount != nil {
		inv.DiscountAmount = *req.DiscountAmount
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	if req.TermsConditions != nil {
		inv.TermsConditions = *req.TermsConditions
	}

	inv.ComputeDerived()
	if err := h.Store.SaveInvoice(r.Context(), inv); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update invoice", err)
		return
	}

	// Rate or discount changes move the total; settle paid/due/status.
	updated, err := h.Accounting.RecomputeInvoiceTotals(r.Context(), inv.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteInvoice(r.Context(), id); err != nil {
		// Referenced payments block deletion at the FK level; the contract
		// reports that the same way as a missing row.
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invoice deleted"})
}
