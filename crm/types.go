/*
Package crm holds the relationship-management entities: users, customers,
contacts, and deals.

PURPOSE:
  These are the "address book" side of the system. They carry no money
  semantics - the invoice/payment/refund ledger lives in the ledger package
  and references customers and deals by ID.

DESIGN PRINCIPLES:
  1. Pure data: no behavior beyond status validation helpers
  2. Server-owned identity: IDs are UUIDs assigned at creation
  3. Loose coupling: contacts and deals reference customers optionally,
     so a contact can exist before the company becomes a customer

SEE ALSO:
  - ledger/types.go: Invoice/Payment/Refund entities
  - store/gormdb: persistence for both packages
*/
package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// USER - Authenticated operator of the CRM
// =============================================================================

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is an operator account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name"`
	Role         Role      `json:"role" gorm:"type:varchar(10);default:'USER'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Contacts []Contact `json:"contacts,omitempty" gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL"`
	Deals    []Deal    `json:"deals,omitempty" gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL"`
}

// =============================================================================
// CONTACT - A person, optionally attached to a customer
// =============================================================================

type Contact struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name       string    `json:"name" gorm:"not null"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Company    string    `json:"company"`
	CustomerID *string   `json:"customerId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// =============================================================================
// DEAL - A sales opportunity
// =============================================================================

type DealStatus string

const (
	DealOpen       DealStatus = "Open"
	DealInProgress DealStatus = "In Progress"
	DealWon        DealStatus = "Won"
	DealLost       DealStatus = "Lost"
)

func (s DealStatus) IsValid() bool {
	switch s {
	case DealOpen, DealInProgress, DealWon, DealLost:
		return true
	}
	return false
}

// Deal carries both Value (expected) and Amount (negotiated); invoices may
// be raised against either.
type Deal struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value" gorm:"type:decimal(18,2)"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(18,2)"`
	Status      DealStatus      `json:"status" gorm:"type:varchar(20);default:'Open'"`
	CustomerID  *string         `json:"customerId,omitempty" gorm:"type:varchar(36);index"`
	ContactID   *string         `json:"contactId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Contact  *Contact  `json:"contact,omitempty" gorm:"foreignKey:ContactID;constraint:OnDelete:SET NULL"`
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}
