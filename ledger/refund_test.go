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
// WORKFLOW TESTS
// =============================================================================

func TestRefunds_FullWorkflow_ReopensPaidInvoice(t *testing.T) {
	// GIVEN: A 500.00 invoice settled by one completed payment (status Paid)
	// WHEN: A 200.00 refund is requested, approved and completed
	// THEN: amountPaid drops to 300, amountDue rises to 200, and the invoice
	//       reverts from Paid to Sent

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)
	require.Equal(t, ledger.InvoicePaid, tl.invoice(t, inv.ID).Status)

	r, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID:   p.ID,
		Amount:      decimal.NewFromInt(200),
		Reason:      "Service level dispute",
		RequestedBy: "Jane Porter",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.RefundPending, r.Status)
	assert.Equal(t, inv.ID, r.InvoiceID, "invoice is taken from the payment")
	assert.NotEmpty(t, r.RefundNumber)

	// Request alone must not move any money.
	mid := tl.invoice(t, inv.ID)
	assert.True(t, mid.AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, ledger.InvoicePaid, mid.Status)

	r, err = tl.refunds.Approve(context.Background(), r.ID, "Admin User")
	require.NoError(t, err)
	assert.Equal(t, ledger.RefundApproved, r.Status)
	assert.Equal(t, "Admin User", r.ApprovedBy)
	assert.NotNil(t, r.ApprovedAt)

	r, err = tl.refunds.Complete(context.Background(), r.ID, "Admin User")
	require.NoError(t, err)
	assert.Equal(t, ledger.RefundCompleted, r.Status)
	assert.NotNil(t, r.ProcessedAt)

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(300)))
	assert.True(t, after.AmountDue.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, ledger.InvoiceSent, after.Status)
}

func TestRefunds_Reject_IsTerminal(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	r, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	r, err = tl.refunds.Reject(context.Background(), r.ID, "Duplicate request")
	require.NoError(t, err)
	assert.Equal(t, ledger.RefundRejected, r.Status)
	assert.Equal(t, "Duplicate request", r.Notes)

	// No transition leaves Rejected.
	_, err = tl.refunds.Approve(context.Background(), r.ID, "Admin User")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	_, err = tl.refunds.Complete(context.Background(), r.ID, "Admin User")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestRefunds_Complete_RequiresApproved(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	r, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = tl.refunds.Complete(context.Background(), r.ID, "Admin User")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition, "Pending cannot skip straight to Completed")
}

// =============================================================================
// ELIGIBLE BALANCE TESTS
// =============================================================================

func TestRefunds_Request_RejectsOverRefund(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(600),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRefunds_Request_NonCompletedPaymentHasNoBalance(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)

	p, err := tl.payments.Create(context.Background(), ledger.CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	_, err = tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation, "a Pending payment has nothing refundable")
}

func TestRefunds_EligibleBalance_ShrinksWithCompletedRefunds(t *testing.T) {
	// GIVEN: A completed 500.00 payment with a completed 200.00 refund
	// WHEN: A second refund is requested
	// THEN: 400.00 exceeds the remaining 300.00 balance; 300.00 is accepted

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	first, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	_, err = tl.refunds.Approve(context.Background(), first.ID, "Admin User")
	require.NoError(t, err)
	_, err = tl.refunds.Complete(context.Background(), first.ID, "Admin User")
	require.NoError(t, err)

	_, err = tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(400),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(300),
	})
	assert.NoError(t, err)
}

func TestRefunds_Request_PendingRefundsDoNotReserveBalance(t *testing.T) {
	// Only Completed refunds reduce the eligible balance; two pending
	// requests may together exceed the payment.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(400),
	})
	require.NoError(t, err)

	_, err = tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(400),
	})
	assert.NoError(t, err)
}

func TestRefunds_Request_InvoiceMismatchRejected(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	other := tl.seedInvoice(t, 300)
	p := tl.completedPayment(t, inv.ID, 500)

	_, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		InvoiceID: other.ID,
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// EDIT AND DELETE TESTS
// =============================================================================

func TestRefunds_Update_ReasonFrozenAfterApproval(t *testing.T) {
	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	r, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(100),
		Reason:    "original",
	})
	require.NoError(t, err)
	_, err = tl.refunds.Approve(context.Background(), r.ID, "Admin User")
	require.NoError(t, err)

	newReason := "rewritten"
	_, err = tl.refunds.Update(context.Background(), r.ID, ledger.UpdateRefundInput{Reason: &newReason})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	// Notes stay editable at any stage.
	notes := "called the customer back"
	updated, err := tl.refunds.Update(context.Background(), r.ID, ledger.UpdateRefundInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
}

func TestRefunds_DeleteCompleted_RestoresInvoiceBalance(t *testing.T) {
	// Deleting a completed refund gives the money back to amountPaid.

	tl := newTestLedger(t)
	inv := tl.seedInvoice(t, 500)
	p := tl.completedPayment(t, inv.ID, 500)

	r, err := tl.refunds.Request(context.Background(), ledger.RequestRefundInput{
		PaymentID: p.ID,
		Amount:    decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	_, err = tl.refunds.Approve(context.Background(), r.ID, "Admin User")
	require.NoError(t, err)
	_, err = tl.refunds.Complete(context.Background(), r.ID, "Admin User")
	require.NoError(t, err)
	require.Equal(t, ledger.InvoiceSent, tl.invoice(t, inv.ID).Status)

	require.NoError(t, tl.refunds.Delete(context.Background(), r.ID))

	after := tl.invoice(t, inv.ID)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.True(t, after.AmountDue.IsZero())
	assert.Equal(t, ledger.InvoicePaid, after.Status)
}
