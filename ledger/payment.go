/*
payment.go - Payment lifecycle manager

PURPOSE:
  Creates payments, applies field updates, executes the stop-payment
  transition and deletion. Every mutation appends exactly one history entry
  and, where it changes what counts as paid, triggers invoice recomputation -
  all inside one store transaction.

LIFECYCLE:
  Statuses: Pending, Completed, Failed, Cancelled, Stopped.
  Stopped is reachable only from Pending or Completed, only via Stop, and is
  terminal: once isStopped is true it can never be unset. Other statuses are
  set directly at creation/update and are not governed by a transition table.

ACCOUNTING EFFECTS:
  - Create with status Completed   -> recompute
  - Update changing amount/status  -> recompute
  - Stop of a Completed payment    -> recompute (the payment stops counting)
  - Delete                         -> recompute

SEE ALSO:
  - accounting.go: the recomputation itself
  - refund.go: refunds held against a payment block its deletion
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Payments orchestrates the payment lifecycle.
type Payments struct {
	gw         Gateway
	accounting *Accounting
	log        *zap.Logger
}

func NewPayments(gw Gateway, accounting *Accounting, log *zap.Logger) *Payments {
	if log == nil {
		log = zap.NewNop()
	}
	return &Payments{gw: gw, accounting: accounting, log: log}
}

// CreatePaymentInput carries everything a client may set at creation.
// CustomerID is derived from the invoice, never taken from the caller.
type CreatePaymentInput struct {
	InvoiceID       string
	Amount          decimal.Decimal
	PaymentMethod   string
	PaymentDate     time.Time
	Status          PaymentStatus
	PaymentNumber   string
	TransactionID   string
	ReferenceNumber string
	Notes           string
	ProcessedBy     string
	CardLast4       string
	CardBrand       string
	CardExpiry      string
	BankName        string
	AccountLast4    string
}

// Create validates and records a payment, appends its "Created" history
// entry, and recomputes the parent invoice when the payment lands Completed.
func (s *Payments) Create(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	status := in.Status
	if status == "" {
		status = PaymentPending
	}
	if !status.IsValid() || status == PaymentStopped {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a valid creation status", in.Status)}
	}

	var created *Payment
	err := s.gw.WithTx(ctx, func(gw Gateway) error {
		inv, err := gw.InvoiceByID(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return &ValidationError{Field: "invoiceId", Reason: "does not reference an existing invoice"}
		}

		number := in.PaymentNumber
		if number == "" {
			number = NewPaymentNumber()
		}
		date := in.PaymentDate
		if date.IsZero() {
			date = time.Now()
		}

		p := &Payment{
			ID:              NewID(),
			PaymentNumber:   number,
			InvoiceID:       inv.ID,
			CustomerID:      inv.CustomerID,
			Amount:          in.Amount,
			PaymentMethod:   in.PaymentMethod,
			PaymentDate:     date,
			Status:          status,
			TransactionID:   in.TransactionID,
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
			ProcessedBy:     in.ProcessedBy,
			CardLast4:       in.CardLast4,
			CardBrand:       in.CardBrand,
			CardExpiry:      in.CardExpiry,
			BankName:        in.BankName,
			AccountLast4:    in.AccountLast4,
		}
		if err := gw.CreatePayment(ctx, p); err != nil {
			return err
		}

		if err := gw.AppendHistory(ctx, &PaymentHistoryEntry{
			ID:          NewID(),
			PaymentID:   p.ID,
			Action:      HistoryCreated,
			Description: "Payment created",
			PerformedBy: actorOrSystem(in.ProcessedBy),
		}); err != nil {
			return err
		}

		if p.Status == PaymentCompleted {
			if _, err := s.accounting.recompute(ctx, gw, inv.ID); err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("payment_id", created.ID),
		zap.String("invoice_id", created.InvoiceID),
		zap.String("status", string(created.Status)))
	return created, nil
}

// UpdatePaymentInput lists the fields a client may change; nil means leave
// untouched.
type UpdatePaymentInput struct {
	Amount          *decimal.Decimal
	PaymentMethod   *string
	PaymentDate     *time.Time
	Status          *PaymentStatus
	TransactionID   *string
	ReferenceNumber *string
	Notes           *string
	ProcessedBy     *string
}

// Update applies field changes and appends an "Updated" history entry.
// A stopped payment is frozen: its status cannot move again.
func (s *Payments) Update(ctx context.Context, paymentID string, in UpdatePaymentInput) (*Payment, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if in.Status != nil && !in.Status.IsValid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a valid status", *in.Status)}
	}

	var updated *Payment
	err := s.gw.WithTx(ctx, func(gw Gateway) error {
		p, err := gw.PaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: "payment", ID: paymentID}
		}

		prevAmount, prevStatus := p.Amount, p.Status

		if in.Status != nil && *in.Status != p.Status {
			if p.IsStopped {
				return &TransitionError{Entity: "payment", ID: p.ID, From: string(p.Status), Action: "update status of"}
			}
			p.Status = *in.Status
		}
		if in.Amount != nil {
			p.Amount = *in.Amount
		}
		if in.PaymentMethod != nil {
			p.PaymentMethod = *in.PaymentMethod
		}
		if in.PaymentDate != nil {
			p.PaymentDate = *in.PaymentDate
		}
		if in.TransactionID != nil {
			p.TransactionID = *in.TransactionID
		}
		if in.ReferenceNumber != nil {
			p.ReferenceNumber = *in.ReferenceNumber
		}
		if in.Notes != nil {
			p.Notes = *in.Notes
		}
		if in.ProcessedBy != nil {
			p.ProcessedBy = *in.ProcessedBy
		}

		if err := gw.SavePayment(ctx, p); err != nil {
			return err
		}

		performedBy := ""
		if in.ProcessedBy != nil {
			performedBy = *in.ProcessedBy
		}
		if err := gw.AppendHistory(ctx, &PaymentHistoryEntry{
			ID:          NewID(),
			PaymentID:   p.ID,
			Action:      HistoryUpdated,
			Description: "Payment updated",
			PerformedBy: actorOrSystem(performedBy),
		}); err != nil {
			return err
		}

		if !p.Amount.Equal(prevAmount) || p.Status != prevStatus {
			if _, err := s.accounting.recompute(ctx, gw, p.InvoiceID); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Stop executes the stop-payment transition. Fails with ErrAlreadyStopped if
// the terminal flag is already set, and with a transition error for statuses
// the action does not apply to.
func (s *Payments) Stop(ctx context.Context, paymentID, reason, stoppedBy string) (*Payment, error) {
	var stopped *Payment
	err := s.gw.WithTx(ctx, func(gw Gateway) error {
		p, err := gw.PaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: "payment", ID: paymentID}
		}
		if p.IsStopped {
			return ErrAlreadyStopped
		}
		if !p.Status.Stoppable() {
			return &TransitionError{Entity: "payment", ID: p.ID, From: string(p.Status), Action: "stop"}
		}

		wasCompleted := p.Status == PaymentCompleted
		now := time.Now()
		p.Status = PaymentStopped
		p.IsStopped = true
		p.StoppedAt = &now
		p.StoppedBy = stoppedBy
		p.StopReason = reason
		if err := gw.SavePayment(ctx, p); err != nil {
			return err
		}

		if err := gw.AppendHistory(ctx, &PaymentHistoryEntry{
			ID:          NewID(),
			PaymentID:   p.ID,
			Action:      HistoryStopped,
			Description: fmt.Sprintf("Payment stopped: %s", reason),
			PerformedBy: actorOrSystem(stoppedBy),
		}); err != nil {
			return err
		}

		// A stopped payment no longer counts as Completed, so the invoice
		// must give the amount back to amountDue.
		if wasCompleted {
			if _, err := s.accounting.recompute(ctx, gw, p.InvoiceID); err != nil {
				return err
			}
		}
		stopped = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment stopped",
		zap.String("payment_id", stopped.ID),
		zap.String("stopped_by", stoppedBy))
	return stopped, nil
}

// Delete removes a payment and recomputes the invoice it counted toward.
// Referential constraints (refunds held against the payment) surface as a
// not-found-style failure, mirroring how the persistence layer rejects them.
func (s *Payments) Delete(ctx context.Context, paymentID string) error {
	return s.gw.WithTx(ctx, func(gw Gateway) error {
		p, err := gw.PaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: "payment", ID: paymentID}
		}

		if err := gw.DeletePayment(ctx, paymentID); err != nil {
			return &NotFoundError{Entity: "payment", ID: paymentID}
		}
		_, err = s.accounting.recompute(ctx, gw, p.InvoiceID)
		return err
	})
}

// actorOrSystem defaults the audit actor when the caller supplied none.
func actorOrSystem(actor string) string {
	if actor == "" {
		return "System"
	}
	return actor
}
