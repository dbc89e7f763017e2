/*
crm.go - Customer, contact and deal endpoints

PURPOSE:
  Plain CRUD over the relationship entities. Each handler performs a single
  mapped store operation and returns the entity as JSON. Any delete failure
  (missing row or a blocking reference) surfaces as a 404 with a not-found
  message.

SEE ALSO:
  - handlers.go: shared helpers
  - store/gormdb/crm.go: persistence
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/crm-engine/crm"
)

var (
	customerIncludes = map[string]string{
		"contacts": "Contacts",
		"deals":    "Deals",
	}
	contactIncludes = map[string]string{
		"customer": "Customer",
	}
	dealIncludes = map[string]string{
		"customer": "Customer",
		"contact":  "Contact",
	}
)

// =============================================================================
// CUSTOMERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context(), parseIncludes(r, customerIncludes, nil)...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch customers", err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	includes := parseIncludes(r, customerIncludes, []string{"Contacts", "Deals"})
	c, err := h.Store.GetCustomer(r.Context(), id, includes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	c := &crm.Customer{
		ID:      crm.NewID(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := h.Store.CreateCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateCustomerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Address != nil {
		c.Address = *req.Address
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted"})
}

// =============================================================================
// CONTACTS
// =============================================================================

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Store.ListContacts(r.Context(), parseIncludes(r, contactIncludes, []string{"Customer"})...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Store.GetContact(r.Context(), id, parseIncludes(r, contactIncludes, []string{"Customer"})...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch contact", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Contact not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	c := &crm.Contact{
		ID:         crm.NewID(),
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		CustomerID: req.CustomerID,
	}
	if err := h.Store.CreateContact(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateContactRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	c, err := h.Store.GetContact(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch contact", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Contact not found", nil)
		return
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Company != nil {
		c.Company = *req.Company
	}
	if req.CustomerID != nil {
		c.CustomerID = req.CustomerID
	}
	if err := h.Store.SaveContact(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update contact", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteContact(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Contact not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contact deleted"})
}

// =============================================================================
// DEALS
// =============================================================================

func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.Store.ListDeals(r.Context(), parseIncludes(r, dealIncludes, []string{"Customer", "Contact"})...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch deals", err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.Store.GetDeal(r.Context(), id, parseIncludes(r, dealIncludes, []string{"Customer", "Contact"})...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch deal", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Deal not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	status := crm.DealStatus(req.Status)
	if req.Status == "" {
		status = crm.DealOpen
	}
	if !status.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid deal status", nil)
		return
	}

	d := &crm.Deal{
		ID:          crm.NewID(),
		Title:       req.Title,
		Description: req.Description,
		Value:       req.Value,
		Amount:      req.Amount,
		Status:      status,
		CustomerID:  req.CustomerID,
		ContactID:   req.ContactID,
	}
	if err := h.Store.CreateDeal(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create deal", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateDealRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	d, err := h.Store.GetDeal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch deal", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Deal not found", nil)
		return
	}

	if req.Status != nil {
		status := crm.DealStatus(*req.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid deal status", nil)
			return
		}
		d.Status = status
	}
	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.Value != nil {
		d.Value = *req.Value
	}
	if req.Amount != nil {
		d.Amount = *req.Amount
	}
	if req.CustomerID != nil {
		d.CustomerID = req.CustomerID
	}
	if req.ContactID != nil {
		d.ContactID = req.ContactID
	}
	if err := h.Store.SaveDeal(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update deal", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteDeal(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Deal not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deal deleted"})
}
