/*
accounting.go - Invoice accounting service

PURPOSE:
  Re-derives an invoice's amountPaid, amountDue and (where applicable) status
  from the payments and refunds that reference it. This is the single place
  where paid/due amounts are written; page clients and API callers never
  submit them.

COMPUTATION:
  amountPaid = sum(payments with status Completed)
             - sum(refunds with status Completed)
  amountDue  = max(0, totalAmount - amountPaid)

STATUS POLICY:
  - due == 0 and total > 0        -> Paid
  - due > 0 and status was Paid   -> back to Sent (a completed refund or a
                                     stopped payment reopened the balance)
  - anything else                 -> untouched; Draft->Sent promotion and
                                     Overdue detection stay external concerns

IDEMPOTENCY:
  Recomputing twice with unchanged payment/refund data writes nothing the
  second time.

SEE ALSO:
  - payment.go, refund.go: the triggers for recomputation
  - api/scheduler.go: periodic overdue marking
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Accounting keeps invoice totals consistent with the ledger.
type Accounting struct {
	gw  Gateway
	log *zap.Logger
}

func NewAccounting(gw Gateway, log *zap.Logger) *Accounting {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accounting{gw: gw, log: log}
}

// RecomputeInvoiceTotals recalculates amountPaid/amountDue/status for one
// invoice and persists the row if anything changed. Safe to call repeatedly.
func (a *Accounting) RecomputeInvoiceTotals(ctx context.Context, invoiceID string) (*Invoice, error) {
	return a.recompute(ctx, a.gw, invoiceID)
}

// recompute is the transaction-aware worker; callers inside WithTx pass the
// transactional gateway.
func (a *Accounting) recompute(ctx context.Context, gw Gateway, invoiceID string) (*Invoice, error) {
	inv, err := gw.InvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &NotFoundError{Entity: "invoice", ID: invoiceID}
	}

	payments, err := gw.PaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	refunds, err := gw.RefundsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			paid = paid.Add(p.Amount)
		}
	}
	for _, r := range refunds {
		if r.Status == RefundCompleted {
			paid = paid.Sub(r.Amount)
		}
	}
	due := decimal.Max(decimal.Zero, inv.TotalAmount.Sub(paid))

	status := inv.Status
	switch {
	case due.IsZero() && inv.TotalAmount.IsPositive():
		status = InvoicePaid
	case due.IsPositive() && inv.Status == InvoicePaid:
		status = InvoiceSent
	}

	if paid.Equal(inv.AmountPaid) && due.Equal(inv.AmountDue) && status == inv.Status {
		return inv, nil
	}

	inv.AmountPaid = paid
	inv.AmountDue = due
	inv.Status = status
	if err := gw.SaveInvoice(ctx, inv); err != nil {
		return nil, err
	}

	a.log.Debug("invoice totals recomputed",
		zap.String("invoice_id", invoiceID),
		zap.String("amount_paid", paid.String()),
		zap.String("amount_due", due.String()),
		zap.String("status", string(status)))
	return inv, nil
}

// MarkOverdue flips Sent invoices whose due date has passed to Overdue and
// returns how many were updated. This is the manually-triggered counterpart
// to the status policy above; the API exposes it as an admin action and the
// scheduler calls it periodically.
func (a *Accounting) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := a.gw.SentInvoicesDueBefore(ctx, asOf)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range candidates {
		inv := candidates[i]
		inv.Status = InvoiceOverdue
		if err := a.gw.SaveInvoice(ctx, &inv); err != nil {
			return marked, err
		}
		marked++
	}
	if marked > 0 {
		a.log.Info("invoices marked overdue", zap.Int("count", marked))
	}
	return marked, nil
}
