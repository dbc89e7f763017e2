/*
Package memstore is an in-memory ledger.Gateway implementation (for
testing/dev).

PURPOSE:
  Backs the ledger services without a database. Rows live in maps guarded
  by one mutex; WithTx simulates a transaction with a snapshot that is
  restored when the callback fails.

FIDELITY:
  The referential rules the production store gets from foreign keys are
  enforced by hand here: deleting a payment with refunds still attached
  fails, and deleting a payment drops its history entries. Reads hand out
  copies, so callers mutate nothing until they Save.

SEE ALSO:
  - ledger/gateway.go: the interface
  - store/gormdb: the production implementation
*/
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/crm-engine/ledger"
)

type Memory struct {
	mu       sync.RWMutex
	invoices map[string]ledger.Invoice
	payments map[string]ledger.Payment
	history  map[string][]ledger.PaymentHistoryEntry
	refunds  map[string]ledger.Refund
}

func New() *Memory {
	return &Memory{
		invoices: make(map[string]ledger.Invoice),
		payments: make(map[string]ledger.Payment),
		history:  make(map[string][]ledger.PaymentHistoryEntry),
		refunds:  make(map[string]ledger.Refund),
	}
}

// =============================================================================
// INVOICES
// =============================================================================

// PutInvoice seeds an invoice directly; tests use it in place of the full
// invoice creation path.
func (m *Memory) PutInvoice(inv ledger.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	m.invoices[inv.ID] = inv
}

func (m *Memory) InvoiceByID(_ context.Context, id string) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoiceByIDLocked(id), nil
}

func (m *Memory) invoiceByIDLocked(id string) *ledger.Invoice {
	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}
	return &inv
}

func (m *Memory) SaveInvoice(_ context.Context, inv *ledger.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInvoiceLocked(inv)
}

func (m *Memory) saveInvoiceLocked(inv *ledger.Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return fmt.Errorf("invoice %s does not exist", inv.ID)
	}
	inv.UpdatedAt = time.Now()
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *Memory) SentInvoicesDueBefore(_ context.Context, cutoff time.Time) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sentDueBeforeLocked(cutoff), nil
}

func (m *Memory) sentDueBeforeLocked(cutoff time.Time) []ledger.Invoice {
	var result []ledger.Invoice
	for _, inv := range m.invoices {
		if inv.Status == ledger.InvoiceSent && inv.DueDate.Before(cutoff) {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	return result
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) PaymentByID(_ context.Context, id string) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentByIDLocked(id), nil
}

func (m *Memory) paymentByIDLocked(id string) *ledger.Payment {
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) PaymentsByInvoice(_ context.Context, invoiceID string) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsByInvoiceLocked(invoiceID), nil
}

func (m *Memory) paymentsByInvoiceLocked(invoiceID string) []ledger.Payment {
	var result []ledger.Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *Memory) CreatePayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPaymentLocked(p)
}

func (m *Memory) createPaymentLocked(p *ledger.Payment) error {
	if _, ok := m.payments[p.ID]; ok {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	if _, ok := m.invoices[p.InvoiceID]; !ok {
		return fmt.Errorf("payment %s references missing invoice %s", p.ID, p.InvoiceID)
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) SavePayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePaymentLocked(p)
}

func (m *Memory) savePaymentLocked(p *ledger.Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s does not exist", p.ID)
	}
	p.UpdatedAt = time.Now()
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id string) error {
	if _, ok := m.payments[id]; !ok {
		return fmt.Errorf("payment %s does not exist", id)
	}
	// Refunds hold the payment in place, like the RESTRICT constraint.
	for _, r := range m.refunds {
		if r.PaymentID == id {
			return fmt.Errorf("payment %s has refunds attached", id)
		}
	}
	delete(m.payments, id)
	delete(m.history, id)
	return nil
}

// =============================================================================
// PAYMENT HISTORY
// =============================================================================

func (m *Memory) AppendHistory(_ context.Context, entry *ledger.PaymentHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendHistoryLocked(entry)
}

func (m *Memory) appendHistoryLocked(entry *ledger.PaymentHistoryEntry) error {
	if _, ok := m.payments[entry.PaymentID]; !ok {
		return fmt.Errorf("history entry references missing payment %s", entry.PaymentID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.history[entry.PaymentID] = append(m.history[entry.PaymentID], *entry)
	return nil
}

// HistoryByPayment returns the audit trail, newest first.
func (m *Memory) HistoryByPayment(_ context.Context, paymentID string) ([]ledger.PaymentHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := append([]ledger.PaymentHistoryEntry{}, m.history[paymentID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// =============================================================================
// REFUNDS
// =============================================================================

func (m *Memory) RefundByID(_ context.Context, id string) (*ledger.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refundByIDLocked(id), nil
}

func (m *Memory) refundByIDLocked(id string) *ledger.Refund {
	r, ok := m.refunds[id]
	if !ok {
		return nil
	}
	return &r
}

func (m *Memory) RefundsByInvoice(_ context.Context, invoiceID string) ([]ledger.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refundsWhereLocked(func(r ledger.Refund) bool { return r.InvoiceID == invoiceID }), nil
}

func (m *Memory) RefundsByPayment(_ context.Context, paymentID string) ([]ledger.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refundsWhereLocked(func(r ledger.Refund) bool { return r.PaymentID == paymentID }), nil
}

func (m *Memory) refundsWhereLocked(match func(ledger.Refund) bool) []ledger.Refund {
	var result []ledger.Refund
	for _, r := range m.refunds {
		if match(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *Memory) CreateRefund(_ context.Context, r *ledger.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRefundLocked(r)
}

func (m *Memory) createRefundLocked(r *ledger.Refund) error {
	if _, ok := m.refunds[r.ID]; ok {
		return fmt.Errorf("refund %s already exists", r.ID)
	}
	if _, ok := m.payments[r.PaymentID]; !ok {
		return fmt.Errorf("refund %s references missing payment %s", r.ID, r.PaymentID)
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.refunds[r.ID] = *r
	return nil
}

func (m *Memory) SaveRefund(_ context.Context, r *ledger.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRefundLocked(r)
}

func (m *Memory) saveRefundLocked(r *ledger.Refund) error {
	if _, ok := m.refunds[r.ID]; !ok {
		return fmt.Errorf("refund %s does not exist", r.ID)
	}
	r.UpdatedAt = time.Now()
	m.refunds[r.ID] = *r
	return nil
}

func (m *Memory) DeleteRefund(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRefundLocked(id)
}

func (m *Memory) deleteRefundLocked(id string) error {
	if _, ok := m.refunds[id]; !ok {
		return fmt.Errorf("refund %s does not exist", id)
	}
	delete(m.refunds, id)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction. Simulated with a snapshot that is
// restored when fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(gw ledger.Gateway) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	invoices map[string]ledger.Invoice
	payments map[string]ledger.Payment
	history  map[string][]ledger.PaymentHistoryEntry
	refunds  map[string]ledger.Refund
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		invoices: make(map[string]ledger.Invoice, len(m.invoices)),
		payments: make(map[string]ledger.Payment, len(m.payments)),
		history:  make(map[string][]ledger.PaymentHistoryEntry, len(m.history)),
		refunds:  make(map[string]ledger.Refund, len(m.refunds)),
	}
	for k, v := range m.invoices {
		s.invoices[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.history {
		s.history[k] = append([]ledger.PaymentHistoryEntry{}, v...)
	}
	for k, v := range m.refunds {
		s.refunds[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.invoices = s.invoices
	m.payments = s.payments
	m.history = s.history
	m.refunds = s.refunds
}

// txView operates on the parent with the lock already held.
type txView struct {
	parent *Memory
}

func (tv *txView) InvoiceByID(_ context.Context, id string) (*ledger.Invoice, error) {
	return tv.parent.invoiceByIDLocked(id), nil
}

func (tv *txView) SaveInvoice(_ context.Context, inv *ledger.Invoice) error {
	return tv.parent.saveInvoiceLocked(inv)
}

func (tv *txView) SentInvoicesDueBefore(_ context.Context, cutoff time.Time) ([]ledger.Invoice, error) {
	return tv.parent.sentDueBeforeLocked(cutoff), nil
}

func (tv *txView) PaymentByID(_ context.Context, id string) (*ledger.Payment, error) {
	return tv.parent.paymentByIDLocked(id), nil
}

func (tv *txView) PaymentsByInvoice(_ context.Context, invoiceID string) ([]ledger.Payment, error) {
	return tv.parent.paymentsByInvoiceLocked(invoiceID), nil
}

func (tv *txView) CreatePayment(_ context.Context, p *ledger.Payment) error {
	return tv.parent.createPaymentLocked(p)
}

func (tv *txView) SavePayment(_ context.Context, p *ledger.Payment) error {
	return tv.parent.savePaymentLocked(p)
}

func (tv *txView) DeletePayment(_ context.Context, id string) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txView) AppendHistory(_ context.Context, entry *ledger.PaymentHistoryEntry) error {
	return tv.parent.appendHistoryLocked(entry)
}

func (tv *txView) RefundByID(_ context.Context, id string) (*ledger.Refund, error) {
	return tv.parent.refundByIDLocked(id), nil
}

func (tv *txView) RefundsByInvoice(_ context.Context, invoiceID string) ([]ledger.Refund, error) {
	return tv.parent.refundsWhereLocked(func(r ledger.Refund) bool { return r.InvoiceID == invoiceID }), nil
}

func (tv *txView) RefundsByPayment(_ context.Context, paymentID string) ([]ledger.Refund, error) {
	return tv.parent.refundsWhereLocked(func(r ledger.Refund) bool { return r.PaymentID == paymentID }), nil
}

func (tv *txView) CreateRefund(_ context.Context, r *ledger.Refund) error {
	return tv.parent.createRefundLocked(r)
}

func (tv *txView) SaveRefund(_ context.Context, r *ledger.Refund) error {
	return tv.parent.saveRefundLocked(r)
}

func (tv *txView) DeleteRefund(_ context.Context, id string) error {
	return tv.parent.deleteRefundLocked(id)
}

// WithTx on a transactional view runs fn against the same view; nested
// transactions flatten into the outer one.
func (tv *txView) WithTx(_ context.Context, fn func(gw ledger.Gateway) error) error {
	return fn(tv)
}
