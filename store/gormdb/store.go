/*
Package gormdb provides the GORM-backed implementation of the persistence
gateway over SQLite.

PURPOSE:
  One store serves both the CRM entities (users, customers, contacts, deals)
  and the ledger entities (invoices, payments, refunds, history). The ledger
  services consume it through the ledger.Gateway interface; HTTP handlers use
  the wider include-aware read methods directly.

EAGER LOADING:
  The API's ?include= parameter maps onto GORM Preload. Nested relations use
  dotted paths ("Invoice.Customer"). Payment history is always preloaded in
  createdAt-descending order for display.

REFERENTIAL RULES (enforced by foreign keys, _foreign_keys=on):
  invoices   -> payments, refunds: RESTRICT (cannot delete while referenced)
  payments   -> history: CASCADE, refunds: RESTRICT
  customers  -> contacts, deals: SET NULL

TRANSACTIONS:
  WithTx wraps a function in a database transaction and hands it a
  transaction-scoped *Store, satisfying ledger.Gateway.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block and
  crash recovery improves. Use ":memory:" for tests.

MIGRATION:
  Schema comes from GORM AutoMigrate at Open time.

SEE ALSO:
  - ledger/gateway.go: the interface this package implements
  - ledger.go, crm.go: the entity-specific methods
*/
package gormdb

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/ledger"
)

// Store implements ledger.Gateway plus the CRM persistence surface.
type Store struct {
	db *gorm.DB
}

// Open creates the store, applying connection pragmas and migrating the
// schema. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&crm.User{},
		&crm.Customer{},
		&crm.Contact{},
		&crm.Deal{},
		&ledger.Invoice{},
		&ledger.InvoiceLine{},
		&ledger.Payment{},
		&ledger.PaymentHistoryEntry{},
		&ledger.Refund{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn against a transaction-scoped store. The transaction rolls
// back if fn errors and commits otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(gw ledger.Gateway) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Reset deletes all rows, child tables first so foreign keys hold. Used by
// the demo-scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	tables := []any{
		&ledger.Refund{},
		&ledger.PaymentHistoryEntry{},
		&ledger.Payment{},
		&ledger.InvoiceLine{},
		&ledger.Invoice{},
		&crm.Deal{},
		&crm.Contact{},
		&crm.Customer{},
		&crm.User{},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applyIncludes translates include names into Preload calls. History gets a
// fixed display order.
func applyIncludes(q *gorm.DB, includes []string) *gorm.DB {
	for _, inc := range includes {
		if inc == "History" || strings.HasSuffix(inc, ".History") {
			q = q.Preload(inc, func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at DESC")
			})
			continue
		}
		q = q.Preload(inc)
	}
	return q
}
