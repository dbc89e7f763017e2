/*
crm.go - User, customer, contact and deal persistence

PURPOSE:
  CRUD for the relationship-management side, plus the dashboard aggregates.
  These entities carry no ledger invariants; handlers call this file
  directly without a service layer in between.

SEE ALSO:
  - store.go: connection and include handling
  - crm/types.go: the entities
*/
package gormdb

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/ledger"
)

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u *crm.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*crm.User, error) {
	var u crm.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*crm.User, error) {
	var u crm.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&crm.User{}).Count(&n).Error
	return n, err
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) GetCustomer(ctx context.Context, id string, includes ...string) (*crm.Customer, error) {
	var c crm.Customer
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, includes ...string) ([]crm.Customer, error) {
	var customers []crm.Customer
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *crm.Customer) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (s *Store) SaveCustomer(ctx context.Context, c *crm.Customer) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error
}

// DeleteCustomer removes a customer. Contacts and deals detach (SET NULL);
// invoices block the delete via their foreign key.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&crm.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "customer", ID: id}
	}
	return nil
}

// =============================================================================
// CONTACTS
// =============================================================================

func (s *Store) GetContact(ctx context.Context, id string, includes ...string) (*crm.Contact, error) {
	var c crm.Contact
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListContacts(ctx context.Context, includes ...string) ([]crm.Contact, error) {
	var contacts []crm.Contact
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Store) CreateContact(ctx context.Context, c *crm.Contact) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (s *Store) SaveContact(ctx context.Context, c *crm.Contact) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&crm.Contact{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "contact", ID: id}
	}
	return nil
}

// =============================================================================
// DEALS
// =============================================================================

func (s *Store) GetDeal(ctx context.Context, id string, includes ...string) (*crm.Deal, error) {
	var d crm.Deal
	q := applyIncludes(s.db.WithContext(ctx), includes)
	if err := q.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListDeals(ctx context.Context, includes ...string) ([]crm.Deal, error) {
	var deals []crm.Deal
	q := applyIncludes(s.db.WithContext(ctx), includes).Order("created_at DESC")
	if err := q.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

func (s *Store) CreateDeal(ctx context.Context, d *crm.Deal) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error
}

func (s *Store) SaveDeal(ctx context.Context, d *crm.Deal) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(d).Error
}

func (s *Store) DeleteDeal(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&crm.Deal{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "deal", ID: id}
	}
	return nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardStats is the aggregate snapshot behind GET /api/dashboard.
type DashboardStats struct {
	Customers       int64           `json:"customers"`
	Contacts        int64           `json:"contacts"`
	Deals           int64           `json:"deals"`
	OpenDeals       int64           `json:"openDeals"`
	Invoices        int64           `json:"invoices"`
	OverdueInvoices int64           `json:"overdueInvoices"`
	Payments        int64           `json:"payments"`
	Refunds         int64           `json:"refunds"`
	Revenue         decimal.Decimal `json:"revenue"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

// Dashboard computes entity counts plus revenue (completed payments minus
// completed refunds) and outstanding (amountDue across live invoices).
// Sums run in Go: decimal columns are stored as text and must not be summed
// by SQLite's numeric affinity.
func (s *Store) Dashboard(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{Revenue: decimal.Zero, Outstanding: decimal.Zero}

	counts := []struct {
		model any
		conds []any
		dst   *int64
	}{
		{&crm.Customer{}, nil, &stats.Customers},
		{&crm.Contact{}, nil, &stats.Contacts},
		{&crm.Deal{}, nil, &stats.Deals},
		{&crm.Deal{}, []any{"status IN ?", []crm.DealStatus{crm.DealOpen, crm.DealInProgress}}, &stats.OpenDeals},
		{&ledger.Invoice{}, nil, &stats.Invoices},
		{&ledger.Invoice{}, []any{"status = ?", ledger.InvoiceOverdue}, &stats.OverdueInvoices},
		{&ledger.Payment{}, nil, &stats.Payments},
		{&ledger.Refund{}, nil, &stats.Refunds},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.conds) > 0 {
			q = q.Where(c.conds[0], c.conds[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var paid []decimal.Decimal
	if err := db.Model(&ledger.Payment{}).
		Where("status = ?", ledger.PaymentCompleted).
		Pluck("amount", &paid).Error; err != nil {
		return nil, err
	}
	for _, a := range paid {
		stats.Revenue = stats.Revenue.Add(a)
	}

	var refunded []decimal.Decimal
	if err := db.Model(&ledger.Refund{}).
		Where("status = ?", ledger.RefundCompleted).
		Pluck("amount", &refunded).Error; err != nil {
		return nil, err
	}
	for _, a := range refunded {
		stats.Revenue = stats.Revenue.Sub(a)
	}

	var due []decimal.Decimal
	if err := db.Model(&ledger.Invoice{}).
		Where("status <> ?", ledger.InvoiceCancelled).
		Pluck("amount_due", &due).Error; err != nil {
		return nil, err
	}
	for _, a := range due {
		stats.Outstanding = stats.Outstanding.Add(a)
	}

	return stats, nil
}
