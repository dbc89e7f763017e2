/*
Package ledger implements the invoice/payment/refund accounting core.

PURPOSE:
  Keeps an invoice's paid/due amounts, its payments' lifecycles, and the
  refund approval workflow mutually consistent. This is the one part of the
  CRM with real invariants; everything else is CRUD around it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice/InvoiceLine: the billed document and its immutable line items
  - Payment: money received against an invoice, with a stop-payment flag
  - PaymentHistoryEntry: append-only audit trail per payment
  - Refund: money returned, gated by a Pending -> Approved -> Completed workflow

CORE INVARIANT:
  amountPaid + amountDue == totalAmount for every non-cancelled invoice,
  where amountPaid = sum(completed payments) - sum(completed refunds).
  The Accounting service (accounting.go) re-derives these on every write;
  client-submitted derived fields are never trusted.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float
  2. Append-only history: payment history entries are never edited
  3. Terminal flags stay terminal: isStopped cannot be unset

SEE ALSO:
  - accounting.go: invoice total recomputation
  - payment.go: payment lifecycle (create/update/stop/delete)
  - refund.go: refund approval state machine
  - errors.go: error taxonomy
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/crm-engine/crm"
)

// =============================================================================
// STATUS ENUMS
// =============================================================================

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "Draft"
	InvoiceSent      InvoiceStatus = "Sent"
	InvoicePaid      InvoiceStatus = "Paid"
	InvoiceOverdue   InvoiceStatus = "Overdue"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentCancelled PaymentStatus = "Cancelled"
	PaymentStopped   PaymentStatus = "Stopped"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentStopped:
		return true
	}
	return false
}

// Stoppable reports whether the stop-payment action applies to this status.
// Stopped is only reachable from Pending or Completed.
func (s PaymentStatus) Stoppable() bool {
	return s == PaymentPending || s == PaymentCompleted
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "Pending"
	RefundApproved  RefundStatus = "Approved"
	RefundRejected  RefundStatus = "Rejected"
	RefundCompleted RefundStatus = "Completed"
	RefundFailed    RefundStatus = "Failed"
)

func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundPending, RefundApproved, RefundRejected, RefundCompleted, RefundFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further workflow transition is defined.
func (s RefundStatus) IsTerminal() bool {
	return s == RefundRejected || s == RefundCompleted || s == RefundFailed
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is the billed document. Subtotal, tax, total, amountPaid and
// amountDue are derived server-side; see ComputeDerived and the Accounting
// service.
type Invoice struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InvoiceNumber   string          `json:"invoiceNumber" gorm:"uniqueIndex;not null"`
	CustomerID      string          `json:"customerId" gorm:"type:varchar(36);not null;index"`
	DealID          *string         `json:"dealId,omitempty" gorm:"type:varchar(36);index"`
	IssueDate       time.Time       `json:"issueDate"`
	DueDate         time.Time       `json:"dueDate"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:decimal(18,2)"`
	TaxRate         decimal.Decimal `json:"taxRate" gorm:"type:decimal(6,3)"`
	TaxAmount       decimal.Decimal `json:"taxAmount" gorm:"type:decimal(18,2)"`
	DiscountAmount  decimal.Decimal `json:"discountAmount" gorm:"type:decimal(18,2)"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(18,2)"`
	AmountPaid      decimal.Decimal `json:"amountPaid" gorm:"type:decimal(18,2)"`
	AmountDue       decimal.Decimal `json:"amountDue" gorm:"type:decimal(18,2)"`
	Status          InvoiceStatus   `json:"status" gorm:"type:varchar(20);default:'Draft';index"`
	Notes           string          `json:"notes,omitempty"`
	TermsConditions string          `json:"termsConditions,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Customer *crm.Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Deal     *crm.Deal     `json:"deal,omitempty" gorm:"foreignKey:DealID;constraint:OnDelete:SET NULL"`
	Items    []InvoiceLine `json:"items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments []Payment     `json:"payments,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:RESTRICT"`
	Refunds  []Refund      `json:"refunds,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:RESTRICT"`
}

// ComputeDerived fills every derived money field from the line items:
// line amount = quantity * unitPrice, subtotal = sum of line amounts,
// taxAmount = subtotal * taxRate / 100, total = subtotal + tax - discount.
// amountDue is set against the current amountPaid, floored at zero.
func (inv *Invoice) ComputeDerived() {
	subtotal := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Amount = inv.Items[i].UnitPrice.Mul(inv.Items[i].Quantity)
		subtotal = subtotal.Add(inv.Items[i].Amount)
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = subtotal.Mul(inv.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	inv.TotalAmount = subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)
	inv.AmountDue = decimal.Max(decimal.Zero, inv.TotalAmount.Sub(inv.AmountPaid))
}

// InvoiceLine is immutable once created: lines only come into existence as
// part of invoice creation.
type InvoiceLine struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InvoiceID   string          `json:"invoiceId" gorm:"type:varchar(36);not null;index"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(12,3)"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:decimal(18,2)"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(18,2)"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is money received against an invoice. The CustomerID duplicates
// the invoice's owner for query convenience.
// Card/bank descriptors hold last-4 digits only, never full numbers.
type Payment struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PaymentNumber   string          `json:"paymentNumber" gorm:"uniqueIndex;not null"`
	InvoiceID       string          `json:"invoiceId" gorm:"type:varchar(36);not null;index"`
	CustomerID      string          `json:"customerId" gorm:"type:varchar(36);not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(18,2)"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentDate     time.Time       `json:"paymentDate"`
	Status          PaymentStatus   `json:"status" gorm:"type:varchar(20);default:'Pending';index"`
	TransactionID   string          `json:"transactionId,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ProcessedBy     string          `json:"processedBy,omitempty"`
	CardLast4       string          `json:"cardLast4,omitempty" gorm:"type:varchar(4)"`
	CardBrand       string          `json:"cardBrand,omitempty"`
	CardExpiry      string          `json:"cardExpiry,omitempty"`
	BankName        string          `json:"bankName,omitempty"`
	AccountLast4    string          `json:"accountLast4,omitempty" gorm:"type:varchar(4)"`
	IsStopped       bool            `json:"isStopped"`
	StoppedAt       *time.Time      `json:"stoppedAt,omitempty"`
	StoppedBy       string          `json:"stoppedBy,omitempty"`
	StopReason      string          `json:"stopReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Customer *crm.Customer         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Invoice  *Invoice              `json:"invoice,omitempty" gorm:"foreignKey:InvoiceID"`
	History  []PaymentHistoryEntry `json:"history,omitempty" gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	Refunds  []Refund              `json:"refunds,omitempty" gorm:"foreignKey:PaymentID;constraint:OnDelete:RESTRICT"`
}

// PaymentHistoryEntry is an append-only audit record. Entries are never
// mutated or deleted; display order is createdAt descending.
type PaymentHistoryEntry struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PaymentID   string    `json:"paymentId" gorm:"type:varchar(36);not null;index"`
	Action      string    `json:"action" gorm:"not null"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// History entry actions. Action is a free-form label; these are the ones
// the lifecycle manager writes.
const (
	HistoryCreated = "Created"
	HistoryUpdated = "Updated"
	HistoryStopped = "Stopped"
)

// =============================================================================
// REFUND
// =============================================================================

// Refund is money returned against a completed payment. It belongs to both
// the payment and that payment's invoice.
//
// State machine: Pending -> Approved -> Completed, or Pending -> Rejected.
// Rejected, Completed and Failed are terminal.
type Refund struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RefundNumber  string          `json:"refundNumber" gorm:"uniqueIndex;not null"`
	PaymentID     string          `json:"paymentId" gorm:"type:varchar(36);not null;index"`
	InvoiceID     string          `json:"invoiceId" gorm:"type:varchar(36);not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(18,2)"`
	Reason        string          `json:"reason"`
	RefundMethod  string          `json:"refundMethod"`
	Status        RefundStatus    `json:"status" gorm:"type:varchar(20);default:'Pending';index"`
	RequestedBy   string          `json:"requestedBy,omitempty"`
	ApprovedBy    string          `json:"approvedBy,omitempty"`
	ProcessedBy   string          `json:"processedBy,omitempty"`
	RequestedAt   time.Time       `json:"requestedAt"`
	ApprovedAt    *time.Time      `json:"approvedAt,omitempty"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Payment *Payment `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`
	Invoice *Invoice `json:"invoice,omitempty" gorm:"foreignKey:InvoiceID"`
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

func NewID() string {
	return uuid.NewString()
}

// Document numbers are human-facing references, generated when the client
// does not supply one.
func NewInvoiceNumber() string { return fmt.Sprintf("INV-%d", time.Now().UnixNano()) }
func NewPaymentNumber() string { return fmt.Sprintf("PAY-%d", time.Now().UnixNano()) }
func NewRefundNumber() string  { return fmt.Sprintf("REF-%d", time.Now().UnixNano()) }
