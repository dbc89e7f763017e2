package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crm-engine/ledger"
)

// =============================================================================
// CREATION TESTS
// =============================================================================

func TestPayments_Create_AppendsCreatedHistory(t *testing.T) {
	// GIVEN: An invoice
	// WHEN: A payment is created without an explicit actor
	// THEN: Exactly one "Created" history entry exists, attributed to System

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentPending, p.Status, "status defaults to Pending")
	assert.Equal(t, inv.CustomerID, p.CustomerID, "customer comes from the invoice")
	assert.NotEmpty(t, p.PaymentNumber)

	entries, err := tl.store.HistoryByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.HistoryCreated, entries[0].Action)
	assert.Equal(t, "System", entries[0].PerformedBy)
}

func TestPayments_Create_RejectsNonPositiveAmount(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	_, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.Zero,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestPayments_Create_RejectsUnknownInvoice(t *testing.T) {
	tl := newTestLedger(t)

	_, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: "no-such-invoice",
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestPayments_Create_RejectsStoppedStatus(t *testing.T) {
	// Stopped is only reachable through the stop transition, never at creation.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	_, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(100),
		Status:    ledger.PaymentStopped,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// STOP-PAYMENT TESTS
// =============================================================================

func TestPayments_Stop_CompletedPayment_ReopensInvoice(t *testing.T) {
	// GIVEN: A 1000.00 invoice fully settled by one completed payment (Paid)
	// WHEN: That payment is stopped
	// THEN: The payment is terminally stopped, a "Stopped" history entry
	//       records the reason, and the invoice reverts to Sent with the
	//       full amount due again

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 1000)
	p := tl.completedPayment(t, inv.ID, 1000)
	require.Equal(t, ledger.InvoicePaid, tl.invoice(t, inv.ID).Status)

	stopped, err := tl.payments.Stop(context.Background(), p.ID, "Check reported lost", "Admin User")
	require.NoError(t, err)

	assert.Equal(t, ledger.PaymentStopped, stopped.Status)
	assert.True(t, stopped.IsStopped)
	assert.NotNil(t, stopped.StoppedAt)
	assert.Equal(t, "Admin User", stopped.StoppedBy)
	assert.Equal(t, "Check reported lost", stopped.StopReason)

	entries, err := tl.store.HistoryByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.HistoryStopped, entries[0].Action)
	assert.Equal(t, "Payment stopped: Check reported lost", entries[0].Description)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.IsZero())
	assert.True(t, after.AmountDue.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, ledger.InvoiceSent, after.Status)
}

func TestPayments_Stop_PendingPayment_NoInvoiceEffect(t *testing.T) {
	// A pending payment never counted toward the invoice, so stopping it
	// changes nothing on the invoice side.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	_, err = tl.payments.Stop(context.Background(), p.ID, "Customer cancelled", "")
	require.NoError(t, err)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.IsZero())
	assert.Equal(t, ledger.InvoiceSent, after.Status)
}

func TestPayments_Stop_Twice_AlreadyStopped(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.payments.Stop(context.Background(), p.ID, "first", "")
	require.NoError(t, err)

	_, err = tl.payments.Stop(context.Background(), p.ID, "second", "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyStopped)
}

func TestPayments_Stop_FailedPayment_TransitionError(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
		Status:    ledger.PaymentFailed,
	})
	require.NoError(t, err)

	_, err = tl.payments.Stop(context.Background(), p.ID, "too late", "")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestPayments_Update_StoppedStatusIsFrozen(t *testing.T) {
	// Once stopped, a payment's status can never move again.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.payments.Stop(context.Background(), p.ID, "lost check", "")
	require.NoError(t, err)

	completed := ledger.PaymentCompleted
	_, err = tl.payments.Update(context.Background(), p.ID, ledger.UpdatePaymentInput{Status: &completed})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestPayments_Update_StatusChangeRecomputesInvoice(t *testing.T) {
	// GIVEN: A pending payment on a 500.00 invoice
	// WHEN: The payment is updated to Completed
	// THEN: The invoice settles

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	completed := ledger.PaymentCompleted
	_, err = tl.payments.Update(context.Background(), p.ID, ledger.UpdatePaymentInput{Status: &completed})
	require.NoError(t, err)

	after := tl.invoice(t, inv.ID)
	assert.Equal(t, ledger.InvoicePaid, after.Status)
	assert.True(t, after.AmountDue.IsZero())

	entries, err := tl.store.HistoryByPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "update appends its own history entry")
	assert.Equal(t, ledger.HistoryUpdated, entries[0].Action)
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestPayments_Delete_RecomputesInvoice(t *testing.T) {
	// Deleting the payment that settled an invoice reopens its balance.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)
	require.Equal(t, ledger.InvoicePaid, tl.invoice(t, inv.ID).Status)

	require.NoError(t, tl.payments.Delete(context.Background(), p.ID))

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.IsZero())
	assert.True(t, after.AmountDue.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, ledger.InvoiceSent, after.Status)
}

func TestPayments_Delete_BlockedByAttachedRefund(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	err = tl.payments.Delete(context.Background(), p.ID)
	assert.True(t, ledger.IsNotFound(err), "blocked deletes surface as not-found")

	still, err := tl.store.PaymentByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, still, "the payment must survive the failed delete")
}

func TestPayments_Delete_Missing_NotFound(t *testing.T) {
	tl := newTestLedger(t)
	err := tl.payments.Delete(context.Background(), "no-such-payment")
	assert.True(t, ledger.IsNotFound(err))
}
