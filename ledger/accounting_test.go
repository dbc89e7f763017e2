package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crm-engine/ledger"
	"github.com/warp/crm-engine/store/memstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testLedger struct {
	store      *memstore.Memory
	accounting *ledger.Accounting
	payments   *ledger.Payments
	refunds    *ledger.Refunds
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	store := memstore.New()
	accounting := ledger.NewAccounting(store, nil)
	return &testLedger{
		store:      store,
		accounting: accounting,
		payments:   ledger.NewPayments(store, accounting, nil),
		refunds:    ledger.NewRefunds(store, accounting, nil),
	}
}

// seedInvoice creates a Sent invoice with a single line of the given total.
func (tl *testLedger) seedInvoice(t *testing.T, total int64) *ledger.Invoice {
	t.Helper()
	inv := &ledger.Invoice{
		ID:            ledger.NewID(),
		InvoiceNumber: ledger.NewInvoiceNumber(),
		CustomerID:    "cust-1",
		IssueDate:     time.Now().AddDate(0, 0, -7),
		DueDate:       time.Now().AddDate(0, 0, 23),
		Status:        ledger.InvoiceSent,
		Items: []ledger.InvoiceLine{{
			ID:          ledger.NewID(),
			Description: "Services",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(total),
		}},
	}
	inv.ComputeDerived()
	tl.store.PutInvoice(*inv)
	return inv
}

func (tl *testLedger) completedPayment(t *testing.T, invoiceID string, amount int64) *ledger.Payment {
	t.Helper()
	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: invoiceID,
		Amount:    decimal.NewFromInt(amount),
		Status:    ledger.PaymentCompleted,
	})
	require.NoError(t, err)
	return p
}

func (tl *testLedger) invoice(t *testing.T, id string) *ledger.Invoice {
	t.Helper()
	inv, err := tl.store.InvoiceByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

// =============================================================================
// SETTLEMENT TESTS
// =============================================================================

func TestAccounting_PartialThenFullPayment_MarksPaid(t *testing.T) {
	// GIVEN: A 1000.00 invoice
	// WHEN: 600.00 and then 400.00 completed payments arrive
	// THEN: The invoice ends amountPaid=1000, amountDue=0, status Paid

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 1000)

	tl.completedPayment(t, inv.ID, 600)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(600)))
	assert.True(t, after.AmountDue.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, ledger.InvoiceSent, after.Status, "partial payment must not mark Paid")

	tl.completedPayment(t, inv.ID, 400)

	after = tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, after.AmountDue.IsZero())
	assert.Equal(t, ledger.InvoicePaid, after.Status)
}

func TestAccounting_PendingPaymentsDoNotCount(t *testing.T) {
	// GIVEN: A 500.00 invoice
	// WHEN: A Pending payment covering the full amount is recorded
	// THEN: amountPaid stays zero and the status stays Sent

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	_, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
		Status:    ledger.PaymentPending,
	})
	require.NoError(t, err)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.IsZero())
	assert.True(t, after.AmountDue.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, ledger.InvoiceSent, after.Status)
}

func TestAccounting_OverpaymentFloorsDueAtZero(t *testing.T) {
	// GIVEN: A 1000.00 invoice
	// WHEN: A 1200.00 completed payment arrives
	// THEN: amountPaid records the full 1200 but amountDue floors at zero

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 1000)

	tl.completedPayment(t, inv.ID, 1200)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(1200)))
	assert.True(t, after.AmountDue.IsZero())
	assert.Equal(t, ledger.InvoicePaid, after.Status)
}

func TestAccounting_RecomputeIsIdempotent(t *testing.T) {
	// GIVEN: An invoice already recomputed after a payment
	// WHEN: RecomputeInvoiceTotals runs again with no ledger changes
	// THEN: Nothing changes

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 1000)
	tl.completedPayment(t, inv.ID, 600)

	first := tl.invoice(t, inv.ID)
	again, err := tl.accounting.RecomputeInvoiceTotals(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.True(t, first.AmountPaid.Equal(again.AmountPaid))
	assert.True(t, first.AmountDue.Equal(again.AmountDue))
	assert.Equal(t, first.Status, again.Status)
}

func TestAccounting_RecomputeMissingInvoice_NotFound(t *testing.T) {
	tl := newTestLedger(t)

	_, err := tl.accounting.RecomputeInvoiceTotals(context.Background(), "no-such-invoice")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// OVERDUE SWEEP TESTS
// =============================================================================

func TestAccounting_MarkOverdue_OnlySentPastDue(t *testing.T) {
	// GIVEN: A Sent invoice past due, a Sent invoice due next month, and a
	//        Draft invoice past due
	// WHEN: MarkOverdue runs
	// THEN: Only the past-due Sent invoice flips to Overdue

	tl := newTestLedger(t)
	now := time.Now()

	pastDue := tl.seedInvoice(t, 100)
	pastDue.DueDate = now.AddDate(0, 0, -5)
	tl.store.PutInvoice(*pastDue)

	current := tl.seedInvoice(t, 100)

	draft := tl.seedInvoice(t, 100)
	draft.Status = ledger.InvoiceDraft
	draft.DueDate = now.AddDate(0, 0, -5)
	tl.store.PutInvoice(*draft)

	marked, err := tl.accounting.MarkOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	assert.Equal(t, ledger.InvoiceOverdue, tl.invoice(t, pastDue.ID).Status)
	assert.Equal(t, ledger.InvoiceSent, tl.invoice(t, current.ID).Status)
	assert.Equal(t, ledger.InvoiceDraft, tl.invoice(t, draft.ID).Status)
}

func TestAccounting_MarkOverdue_SecondRunMarksNothing(t *testing.T) {
	tl := newTestLedger(t)
	now := time.Now()

	inv := tl.seedInvoice(t, 100)
	inv.DueDate = now.AddDate(0, 0, -1)
	tl.store.PutInvoice(*inv)

	marked, err := tl.accounting.MarkOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = tl.accounting.MarkOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, marked, "already-Overdue invoices are not Sent, so the sweep skips them")
}
