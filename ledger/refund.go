/*
refund.go - Refund approval workflow

PURPOSE:
  Manages refund requests from creation through approval to completion, and
  feeds completed refunds back into invoice accounting.

STATE MACHINE:

      Pending ──approve──▶ Approved ──complete──▶ Completed
         │
       reject
         ▼
      Rejected

  Rejected, Completed and Failed are terminal.

ELIGIBLE BALANCE:
  A refund may not exceed the payment's completed amount minus refunds
  already completed against that payment. Only a Completed payment has any
  refundable balance.

SEE ALSO:
  - accounting.go: completed refunds reduce amountPaid
  - payment.go: the payments being refunded
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Refunds orchestrates the refund approval workflow.
type Refunds struct {
	gw         Gateway
	accounting *Accounting
	log        *zap.Logger
}

func NewRefunds(gw Gateway, accounting *Accounting, log *zap.Logger) *Refunds {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refunds{gw: gw, accounting: accounting, log: log}
}

// RequestRefundInput carries a refund request. InvoiceID is optional; when
// present it must match the payment's invoice.
type RequestRefundInput struct {
	PaymentID    string
	InvoiceID    string
	Amount       decimal.Decimal
	Reason       string
	RefundMethod string
	RequestedBy  string
	RefundNumber string
	Notes        string
}

// Request creates a Pending refund after checking the eligible refundable
// balance.
func (s *Refunds) Request(ctx context.Context, in RequestRefundInput) (*Refund, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	p, err := s.gw.PaymentByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "payment", ID: in.PaymentID}
	}
	if in.InvoiceID != "" && in.InvoiceID != p.InvoiceID {
		return nil, &ValidationError{Field: "invoiceId", Reason: "does not match the payment's invoice"}
	}

	eligible, err := s.eligibleBalance(ctx, p)
	if err != nil {
		return nil, err
	}
	if in.Amount.GreaterThan(eligible) {
		return nil, &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("exceeds refundable balance of %s", eligible.StringFixed(2)),
		}
	}

	number := in.RefundNumber
	if number == "" {
		number = NewRefundNumber()
	}
	r := &Refund{
		ID:           NewID(),
		RefundNumber: number,
		PaymentID:    p.ID,
		InvoiceID:    p.InvoiceID,
		Amount:       in.Amount,
		Reason:       in.Reason,
		RefundMethod: in.RefundMethod,
		Status:       RefundPending,
		RequestedBy:  in.RequestedBy,
		RequestedAt:  time.Now(),
		Notes:        in.Notes,
	}
	if err := s.gw.CreateRefund(ctx, r); err != nil {
		return nil, err
	}

	s.log.Info("refund requested",
		zap.String("refund_id", r.ID),
		zap.String("payment_id", p.ID),
		zap.String("amount", r.Amount.String()))
	return r, nil
}

// Approve moves a Pending refund to Approved.
func (s *Refunds) Approve(ctx context.Context, refundID, approvedBy string) (*Refund, error) {
	r, err := s.requireStatus(ctx, refundID, RefundPending, "approve")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r.Status = RefundApproved
	r.ApprovedBy = approvedBy
	r.ApprovedAt = &now
	if err := s.gw.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Reject moves a Pending refund to Rejected, keeping the rationale in notes.
func (s *Refunds) Reject(ctx context.Context, refundID, reason string) (*Refund, error) {
	r, err := s.requireStatus(ctx, refundID, RefundPending, "reject")
	if err != nil {
		return nil, err
	}

	r.Status = RefundRejected
	r.Notes = reason
	if err := s.gw.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Complete moves an Approved refund to Completed and recomputes the invoice
// so the refunded amount leaves amountPaid. Both writes share a transaction.
func (s *Refunds) Complete(ctx context.Context, refundID, processedBy string) (*Refund, error) {
	var completed *Refund
	err := s.gw.WithTx(ctx, func(gw Gateway) error {
		r, err := gw.RefundByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return &NotFoundError{Entity: "refund", ID: refundID}
		}
		if r.Status != RefundApproved {
			return &TransitionError{Entity: "refund", ID: r.ID, From: string(r.Status), Action: "complete"}
		}

		now := time.Now()
		r.Status = RefundCompleted
		r.ProcessedBy = processedBy
		r.ProcessedAt = &now
		if err := gw.SaveRefund(ctx, r); err != nil {
			return err
		}

		if _, err := s.accounting.recompute(ctx, gw, r.InvoiceID); err != nil {
			return err
		}
		completed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("refund completed",
		zap.String("refund_id", completed.ID),
		zap.String("processed_by", processedBy))
	return completed, nil
}

// UpdateRefundInput lists the editable fields. Reason and method are only
// editable while the workflow has not started; notes may always change.
type UpdateRefundInput struct {
	Reason       *string
	RefundMethod *string
	Notes        *string
}

// Update applies field edits outside the workflow transitions.
func (s *Refunds) Update(ctx context.Context, refundID string, in UpdateRefundInput) (*Refund, error) {
	r, err := s.gw.RefundByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Entity: "refund", ID: refundID}
	}

	if (in.Reason != nil || in.RefundMethod != nil) && r.Status != RefundPending {
		return nil, &TransitionError{Entity: "refund", ID: r.ID, From: string(r.Status), Action: "edit"}
	}
	if in.Reason != nil {
		r.Reason = *in.Reason
	}
	if in.RefundMethod != nil {
		r.RefundMethod = *in.RefundMethod
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if err := s.gw.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a refund. Deleting a Completed refund changes what counts
// as paid, so the invoice is recomputed in the same transaction.
func (s *Refunds) Delete(ctx context.Context, refundID string) error {
	return s.gw.WithTx(ctx, func(gw Gateway) error {
		r, err := gw.RefundByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return &NotFoundError{Entity: "refund", ID: refundID}
		}

		wasCompleted := r.Status == RefundCompleted
		if err := gw.DeleteRefund(ctx, refundID); err != nil {
			return err
		}
		if wasCompleted {
			if _, err := s.accounting.recompute(ctx, gw, r.InvoiceID); err != nil {
				return err
			}
		}
		return nil
	})
}

// eligibleBalance is the payment's completed amount minus refunds already
// completed against it. A payment that never completed has nothing to refund.
func (s *Refunds) eligibleBalance(ctx context.Context, p *Payment) (decimal.Decimal, error) {
	if p.Status != PaymentCompleted {
		return decimal.Zero, nil
	}
	refunds, err := s.gw.RefundsByPayment(ctx, p.ID)
	if err != nil {
		return decimal.Zero, err
	}
	eligible := p.Amount
	for _, r := range refunds {
		if r.Status == RefundCompleted {
			eligible = eligible.Sub(r.Amount)
		}
	}
	return eligible, nil
}

// requireStatus loads a refund and enforces the workflow precondition.
func (s *Refunds) requireStatus(ctx context.Context, refundID string, want RefundStatus, action string) (*Refund, error) {
	r, err := s.gw.RefundByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Entity: "refund", ID: refundID}
	}
	if r.Status != want {
		return nil, &TransitionError{Entity: "refund", ID: r.ID, From: string(r.Status), Action: action}
	}
	return r, nil
}
