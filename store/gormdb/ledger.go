/*
ledger.go - Invoice, payment and refund persistence

PURPOSE:
  Implements the ledger.Gateway methods plus the include-aware reads the API
  layer uses. Single-entity lookups return (nil, nil) when the row is absent;
  services decide whether that is an error.

APPEND-ONLY ENFORCEMENT:
  Payment history has exactly one write path (AppendHistory). No update or
  delete method exists for it anywhere in this package.

SEE ALSO:
  - store.go: connection, migration, transactions
  - ledger/gateway.go: interface contract
*/
package gormdb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warp/crm-engine/ledger"
)

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) InvoiceByID(ctx context.Context, id string) (*ledger.Invoice, error) {
	return s.GetInvoice(ctx, id)
}

// GetInvoice loads one invoice with the requested relations.
func (s *Store) GetInvoice(ctx context.Context, id string, includes ...string) (*ledger.Invoice, error) {
	var inv ledger.Invoice
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// ListInvoices returns all invoices, newest first.
func (s *Store) ListInvoices(ctx context.Context, includes ...string) ([]ledger.Invoice, error) {
	var invoices []ledger.Invoice
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// CreateInvoice persists an invoice together with its line items.
func (s *Store) CreateInvoice(ctx context.Context, inv *ledger.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

// SaveInvoice updates the invoice row only; associations are never written
// through this path.
func (s *Store) SaveInvoice(ctx context.Context, inv *ledger.Invoice) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(inv).Error
}

// DeleteInvoice removes an invoice. Foreign keys reject the delete while
// payments or refunds still reference it.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&ledger.Invoice{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "invoice", ID: id}
	}
	return nil
}

func (s *Store) SentInvoicesDueBefore(ctx context.Context, cutoff time.Time) ([]ledger.Invoice, error) {
	var invoices []ledger.Invoice
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", ledger.InvoiceSent, cutoff).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) PaymentByID(ctx context.Context, id string) (*ledger.Payment, error) {
	return s.GetPayment(ctx, id)
}

// GetPayment loads one payment with the requested relations.
func (s *Store) GetPayment(ctx context.Context, id string, includes ...string) (*ledger.Payment, error) {
	var p ledger.Payment
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListPayments returns all payments, newest first.
func (s *Store) ListPayments(ctx context.Context, includes ...string) ([]ledger.Payment, error) {
	var payments []ledger.Payment
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) PaymentsByInvoice(ctx context.Context, invoiceID string) ([]ledger.Payment, error) {
	var payments []ledger.Payment
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *ledger.Payment) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (s *Store) SavePayment(ctx context.Context, p *ledger.Payment) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// DeletePayment removes a payment; history entries cascade, refunds block.
func (s *Store) DeletePayment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&ledger.Payment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "payment", ID: id}
	}
	return nil
}

// AppendHistory is the only write path for payment history.
func (s *Store) AppendHistory(ctx context.Context, entry *ledger.PaymentHistoryEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// HistoryByPayment returns a payment's audit trail, newest first.
func (s *Store) HistoryByPayment(ctx context.Context, paymentID string) ([]ledger.PaymentHistoryEntry, error) {
	var entries []ledger.PaymentHistoryEntry
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================================================
// REFUNDS
// =============================================================================

func (s *Store) RefundByID(ctx context.Context, id string) (*ledger.Refund, error) {
	return s.GetRefund(ctx, id)
}

// GetRefund loads one refund with the requested relations.
func (s *Store) GetRefund(ctx context.Context, id string, includes ...string) (*ledger.Refund, error) {
	var r ledger.Refund
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRefunds returns all refunds, newest first.
func (s *Store) ListRefunds(ctx context.Context, includes ...string) ([]ledger.Refund, error) {
	var refunds []ledger.Refund
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *Store) RefundsByInvoice(ctx context.Context, invoiceID string) ([]ledger.Refund, error) {
	var refunds []ledger.Refund
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *Store) RefundsByPayment(ctx context.Context, paymentID string) ([]ledger.Refund, error) {
	var refunds []ledger.Refund
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *Store) CreateRefund(ctx context.Context, r *ledger.Refund) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error
}

func (s *Store) SaveRefund(ctx context.Context, r *ledger.Refund) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(r).Error
}

func (s *Store) DeleteRefund(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&ledger.Refund{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "refund", ID: id}
	}
	return nil
}
