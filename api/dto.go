/*
dto.go - Request payloads for the HTTP API

PURPOSE:
  Request body types decoupling the API contract from the domain model.
  Responses serialize the entities directly (the JSON tags on crm/ledger
  types are the public camelCase contract); only inbound payloads need
  dedicated types, because derived fields must never be accepted from
  clients.

VALIDATION:
  Struct tags drive go-playground/validator for required/format checks.
  Money and state-machine rules live in the ledger services, not here.

NAMING CONVENTION:
  Create*Request / Update*Request per entity; Update requests use pointers
  so absent fields stay untouched.

SEE ALSO:
  - handlers.go: decode + validate helper
  - ledger/payment.go, ledger/refund.go: the service-level inputs these map to
*/
package api

import (
	"github.com/shopspring/decimal"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// =============================================================================
// CUSTOMERS / CONTACTS / DEALS
// =============================================================================

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type CreateContactRequest struct {
	Name       string  `json:"name" validate:"required"`
	Email      string  `json:"email" validate:"omitempty,email"`
	Phone      string  `json:"phone"`
	Company    string  `json:"company"`
	CustomerID *string `json:"customerId"`
}

type UpdateContactRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone"`
	Company    *string `json:"company"`
	CustomerID *string `json:"customerId"`
}

type CreateDealRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CustomerID  *string         `json:"customerId"`
	ContactID   *string         `json:"contactId"`
}

type UpdateDealRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Value       *decimal.Decimal `json:"value"`
	Amount      *decimal.Decimal `json:"amount"`
	Status      *string          `json:"status"`
	CustomerID  *string          `json:"customerId"`
	ContactID   *string          `json:"contactId"`
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceLineRequest is a line at creation time. Amount is always derived.
type InvoiceLineRequest struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type CreateInvoiceRequest struct {
	CustomerID      string               `json:"customerId" validate:"required"`
	DealID          *string              `json:"dealId"`
	InvoiceNumber   string               `json:"invoiceNumber"`
	IssueDate       string               `json:"issueDate"`
	DueDate         string               `json:"dueDate"`
	TaxRate         decimal.Decimal      `json:"taxRate"`
	DiscountAmount  decimal.Decimal      `json:"discountAmount"`
	Status          string               `json:"status"`
	Notes           string               `json:"notes"`
	TermsConditions string               `json:"termsConditions"`
	Items           []InvoiceLineRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateInvoiceRequest deliberately omits every derived money field and the
// line items: lines are immutable, totals are recomputed server-side.
type UpdateInvoiceRequest struct {
	Status          *string          `json:"status"`
	IssueDate       *string          `json:"issueDate"`
	DueDate         *string          `json:"dueDate"`
	TaxRate         *decimal.Decimal `json:"taxRate"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount"`
	Notes           *string          `json:"notes"`
	TermsConditions *string          `json:"termsConditions"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type CreatePaymentRequest struct {
	InvoiceID       string          `json:"invoiceId" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentDate     string          `json:"paymentDate"`
	Status          string          `json:"status"`
	PaymentNumber   string          `json:"paymentNumber"`
	TransactionID   string          `json:"transactionId"`
	ReferenceNumber string          `json:"referenceNumber"`
	Notes           string          `json:"notes"`
	ProcessedBy     string          `json:"processedBy"`
	CardLast4       string          `json:"cardLast4" validate:"omitempty,len=4,numeric"`
	CardBrand       string          `json:"cardBrand"`
	CardExpiry      string          `json:"cardExpiry"`
	BankName        string          `json:"bankName"`
	AccountLast4    string          `json:"accountLast4" validate:"omitempty,len=4,numeric"`
}

type UpdatePaymentRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	PaymentMethod   *string          `json:"paymentMethod"`
	PaymentDate     *string          `json:"paymentDate"`
	Status          *string          `json:"status"`
	TransactionID   *string          `json:"transactionId"`
	ReferenceNumber *string          `json:"referenceNumber"`
	Notes           *string          `json:"notes"`
	ProcessedBy     *string          `json:"processedBy"`
}

type StopPaymentRequest struct {
	Reason    string `json:"reason" validate:"required"`
	StoppedBy string `json:"stoppedBy"`
}

// =============================================================================
// REFUNDS
// =============================================================================

type CreateRefundRequest struct {
	PaymentID    string          `json:"paymentId" validate:"required"`
	InvoiceID    string          `json:"invoiceId"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	RefundMethod string          `json:"refundMethod"`
	RequestedBy  string          `json:"requestedBy"`
	RefundNumber string          `json:"refundNumber"`
	Notes        string          `json:"notes"`
}

type UpdateRefundRequest struct {
	Reason       *string `json:"reason"`
	RefundMethod *string `json:"refundMethod"`
	Notes        *string `json:"notes"`
}

type ApproveRefundRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

type RejectRefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type CompleteRefundRequest struct {
	ProcessedBy string `json:"processedBy"`
}

// =============================================================================
// SCENARIOS / ADMIN
// =============================================================================

type LoadScenarioRequest struct {
	ID string `json:"id" validate:"required"`
}

type MarkOverdueResponse struct {
	Marked int `json:"marked"`
}
