/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates customers, deals,
	invoices, payments and refunds that demonstrate specific features.

AVAILABLE SCENARIOS:

	starter-pipeline:  Customers, contacts and an open deal pipeline
	billing-cycle:     Invoice settled by two partial payments
	refund-dispute:    Paid invoice reopened by a completed refund
	stopped-payment:   Completed payment stopped after settlement
	overdue-books:     Sent invoices already past their due dates

HOW SCENARIOS WORK:
 1. Reset database (clear all data, re-seed users)
 2. Create customers, contacts, deals directly through the store
 3. Create invoices with ComputeDerived
 4. Drive payments and refunds through the ledger services, so every
    history entry and recomputation happens exactly as in production

USAGE VIA API:

	POST /api/scenarios/load
	{"id": "billing-cycle"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: scenario routes
  - ledger/payment.go, ledger/refund.go: the services scenarios drive
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/ledger"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-pipeline",
		Name:        "Starter Pipeline",
		Description: "Two customers with contacts and deals in every stage",
		Category:    "crm",
	},
	{
		ID:          "billing-cycle",
		Name:        "Billing Cycle",
		Description: "A 1000.00 invoice settled by 600.00 + 400.00 payments",
		Category:    "ledger",
	},
	{
		ID:          "refund-dispute",
		Name:        "Refund Dispute",
		Description: "Paid invoice reopened by an approved and completed refund",
		Category:    "ledger",
	},
	{
		ID:          "stopped-payment",
		Name:        "Stopped Payment",
		Description: "Completed payment stopped after the invoice went Paid",
		Category:    "ledger",
	},
	{
		ID:          "overdue-books",
		Name:        "Overdue Books",
		Description: "Sent invoices already past due, ready for the overdue sweep",
		Category:    "ledger",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.resetDatabase(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ID {
	case "starter-pipeline":
		_, _, err = h.loadStarterPipeline(ctx)
	case "billing-cycle":
		err = h.loadBillingCycle(ctx)
	case "refund-dispute":
		err = h.loadRefundDispute(ctx)
	case "stopped-payment":
		err = h.loadStoppedPayment(ctx)
	case "overdue-books":
		err = h.loadOverdueBooks(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ID})
}

// ResetDatabase clears all data and re-seeds the bootstrap users.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.resetDatabase(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) resetDatabase(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return EnsureSeedUsers(ctx, h.Store, h.Log)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadStarterPipeline creates the base CRM data shared by the ledger
// scenarios and returns the two customers.
func (h *Handler) loadStarterPipeline(ctx context.Context) (*crm.Customer, *crm.Customer, error) {
	acme := &crm.Customer{
		ID:      crm.NewID(),
		Name:    "Acme Corporation",
		Email:   "billing@acme.example.com",
		Phone:   "+1-555-0100",
		Address: "100 Industrial Way, Springfield",
	}
	globex := &crm.Customer{
		ID:      crm.NewID(),
		Name:    "Globex Inc",
		Email:   "accounts@globex.example.com",
		Phone:   "+1-555-0200",
		Address: "42 Harbor Blvd, Portland",
	}
	for _, c := range []*crm.Customer{acme, globex} {
		if err := h.Store.CreateCustomer(ctx, c); err != nil {
			return nil, nil, err
		}
	}

	contacts := []crm.Contact{
		{ID: crm.NewID(), Name: "Jane Porter", Email: "jane@acme.example.com", Phone: "+1-555-0101", Company: "Acme Corporation", CustomerID: &acme.ID},
		{ID: crm.NewID(), Name: "Hank Scorpio", Email: "hank@globex.example.com", Phone: "+1-555-0201", Company: "Globex Inc", CustomerID: &globex.ID},
		{ID: crm.NewID(), Name: "Maria Keller", Email: "maria@prospect.example.com", Company: "Unaffiliated"},
	}
	for i := range contacts {
		if err := h.Store.CreateContact(ctx, &contacts[i]); err != nil {
			return nil, nil, err
		}
	}

	deals := []crm.Deal{
		{ID: crm.NewID(), Title: "Annual support contract", Description: "12-month premium support", Value: decimal.NewFromInt(12000), Amount: decimal.NewFromInt(12000), Status: crm.DealOpen, CustomerID: &acme.ID, ContactID: &contacts[0].ID},
		{ID: crm.NewID(), Title: "Warehouse rollout", Description: "Hardware plus onboarding", Value: decimal.NewFromInt(48000), Amount: decimal.NewFromInt(45000), Status: crm.DealInProgress, CustomerID: &globex.ID, ContactID: &contacts[1].ID},
		{ID: crm.NewID(), Title: "Pilot project", Value: decimal.NewFromInt(5000), Amount: decimal.NewFromInt(5000), Status: crm.DealWon, CustomerID: &acme.ID},
		{ID: crm.NewID(), Title: "Legacy migration", Value: decimal.NewFromInt(30000), Amount: decimal.Zero, Status: crm.DealLost, CustomerID: &globex.ID},
	}
	for i := range deals {
		if err := h.Store.CreateDeal(ctx, &deals[i]); err != nil {
			return nil, nil, err
		}
	}

	return acme, globex, nil
}

// createScenarioInvoice builds a Sent invoice with a single line.
func (h *Handler) createScenarioInvoice(ctx context.Context, customerID string, amount decimal.Decimal, issue, due time.Time) (*ledger.Invoice, error) {
	inv := &ledger.Invoice{
		ID:            ledger.NewID(),
		InvoiceNumber: ledger.NewInvoiceNumber(),
		CustomerID:    customerID,
		IssueDate:     issue,
		DueDate:       due,
		Status:        ledger.InvoiceSent,
	}
	inv.Items = []ledger.InvoiceLine{{
		ID:          ledger.NewID(),
		InvoiceID:   inv.ID,
		Description: "Professional services",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   amount,
	}}
	inv.ComputeDerived()
	if err := h.Store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (h *Handler) loadBillingCycle(ctx context.Context) error {
	acme, _, err := h.loadStarterPipeline(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	inv, err := h.createScenarioInvoice(ctx, acme.ID, decimal.NewFromInt(1000), now.AddDate(0, 0, -10), now.AddDate(0, 0, 20))
	if err != nil {
		return err
	}

	// Two completed partials settle the invoice: 600 + 400 = 1000.
	for _, amount := range []int64{600, 400} {
		_, err := h.Payments.Create(ctx, ledger.CreatePaymentInput{
			InvoiceID:     inv.ID,
			Amount:        decimal.NewFromInt(amount),
			PaymentMethod: "Bank Transfer",
			Status:        ledger.PaymentCompleted,
			ProcessedBy:   "System",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadRefundDispute(ctx context.Context) error {
	acme, _, err := h.loadStarterPipeline(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	inv, err := h.createScenarioInvoice(ctx, acme.ID, decimal.NewFromInt(500), now.AddDate(0, 0, -15), now.AddDate(0, 0, 15))
	if err != nil {
		return err
	}

	payment, err := h.Payments.Create(ctx, ledger.CreatePaymentInput{
		InvoiceID:     inv.ID,
		Amount:        decimal.NewFromInt(500),
		PaymentMethod: "Credit Card",
		Status:        ledger.PaymentCompleted,
		ProcessedBy:   "System",
		CardLast4:     "4242",
		CardBrand:     "Visa",
	})
	if err != nil {
		return err
	}

	// Partial refund runs the full workflow and reopens the invoice.
	refund, err := h.Refunds.Request(ctx, ledger.RequestRefundInput{
		PaymentID:    payment.ID,
		Amount:       decimal.NewFromInt(200),
		Reason:       "Service level dispute",
		RefundMethod: "Credit Card",
		RequestedBy:  "Jane Porter",
	})
	if err != nil {
		return err
	}
	if _, err := h.Refunds.Approve(ctx, refund.ID, "Admin User"); err != nil {
		return err
	}
	if _, err := h.Refunds.Complete(ctx, refund.ID, "Admin User"); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadStoppedPayment(ctx context.Context) error {
	_, globex, err := h.loadStarterPipeline(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	inv, err := h.createScenarioInvoice(ctx, globex.ID, decimal.NewFromInt(750), now.AddDate(0, 0, -5), now.AddDate(0, 0, 25))
	if err != nil {
		return err
	}

	payment, err := h.Payments.Create(ctx, ledger.CreatePaymentInput{
		InvoiceID:     inv.ID,
		Amount:        decimal.NewFromInt(750),
		PaymentMethod: "Check",
		Status:        ledger.PaymentCompleted,
		ProcessedBy:   "System",
	})
	if err != nil {
		return err
	}

	// Stopping the settled check reopens the invoice balance.
	_, err = h.Payments.Stop(ctx, payment.ID, "Check reported lost by customer", "Admin User")
	return err
}

func (h *Handler) loadOverdueBooks(ctx context.Context) error {
	acme, globex, err := h.loadStarterPipeline(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	overdue := []struct {
		customerID string
		amount     int64
		daysLate   int
	}{
		{acme.ID, 1200, 30},
		{acme.ID, 400, 10},
		{globex.ID, 2500, 60},
	}
	for _, o := range overdue {
		issue := now.AddDate(0, 0, -(o.daysLate + 30))
		due := now.AddDate(0, 0, -o.daysLate)
		if _, err := h.createScenarioInvoice(ctx, o.customerID, decimal.NewFromInt(o.amount), issue, due); err != nil {
			return err
		}
	}

	// One current invoice that must survive the sweep untouched.
	_, err = h.createScenarioInvoice(ctx, acme.ID, decimal.NewFromInt(800), now, now.AddDate(0, 1, 0))
	return err
}
