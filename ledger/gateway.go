/*
gateway.go - Persistence gateway consumed by the ledger services

PURPOSE:
  The ledger services perform single mapped database operations through this
  interface; they never touch the ORM directly. The store/gormdb package is
  the production implementation.

TRANSACTIONS:
  Every multi-row sequence (payment create + history append + invoice
  recompute; refund completion + invoice recompute) runs inside WithTx so an
  interrupted sequence cannot leave an orphaned payment without its history
  entry, or an invoice out of step with its payments.

NOT-FOUND CONVENTION:
  Single-entity lookups return (nil, nil) when the row is absent. Services
  translate that into NotFoundError; the gateway stays policy-free.

SEE ALSO:
  - store/gormdb/ledger.go: GORM implementation
  - accounting.go, payment.go, refund.go: consumers
*/
package ledger

import (
	"context"
	"time"
)

// Gateway is the persistence surface the ledger services require.
type Gateway interface {
	// Invoices
	InvoiceByID(ctx context.Context, id string) (*Invoice, error)
	SaveInvoice(ctx context.Context, inv *Invoice) error
	// SentInvoicesDueBefore returns Sent invoices whose due date has passed,
	// for overdue marking.
	SentInvoicesDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error)

	// Payments
	PaymentByID(ctx context.Context, id string) (*Payment, error)
	PaymentsByInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
	SavePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id string) error

	// Payment history (append-only: no update or delete exists)
	AppendHistory(ctx context.Context, entry *PaymentHistoryEntry) error

	// Refunds
	RefundByID(ctx context.Context, id string) (*Refund, error)
	RefundsByInvoice(ctx context.Context, invoiceID string) ([]Refund, error)
	RefundsByPayment(ctx context.Context, paymentID string) ([]Refund, error)
	CreateRefund(ctx context.Context, r *Refund) error
	SaveRefund(ctx context.Context, r *Refund) error
	DeleteRefund(ctx context.Context, id string) error

	// WithTx runs fn against a transaction-scoped gateway. Rolls back if fn
	// returns an error, commits otherwise.
	WithTx(ctx context.Context, fn func(gw Gateway) error) error
}
