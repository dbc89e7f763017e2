package gormdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/ledger"
	"github.com/warp/crm-engine/store/gormdb"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *gormdb.Store {
	t.Helper()
	store, err := gormdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCustomer(t *testing.T, store *gormdb.Store) *crm.Customer {
	t.Helper()
	c := &crm.Customer{ID: crm.NewID(), Name: "Acme Corporation", Email: "billing@acme.example.com"}
	require.NoError(t, store.CreateCustomer(context.Background(), c))
	return c
}

func seedInvoice(t *testing.T, store *gormdb.Store, customerID string, total int64) *ledger.Invoice {
	t.Helper()
	inv := &ledger.Invoice{
		ID:            ledger.NewID(),
		InvoiceNumber: ledger.NewInvoiceNumber(),
		CustomerID:    customerID,
		IssueDate:     time.Now(),
		DueDate:       time.Now().AddDate(0, 1, 0),
		Status:        ledger.InvoiceSent,
		Items: []ledger.InvoiceLine{{
			ID:          ledger.NewID(),
			Description: "Services",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(total),
		}},
	}
	inv.Items[0].InvoiceID = inv.ID
	inv.ComputeDerived()
	require.NoError(t, store.CreateInvoice(context.Background(), inv))
	return inv
}

func seedPayment(t *testing.T, store *gormdb.Store, inv *ledger.Invoice, amount int64, status ledger.PaymentStatus) *ledger.Payment {
	t.Helper()
	p := &ledger.Payment{
		ID:            ledger.NewID(),
		PaymentNumber: ledger.NewPaymentNumber(),
		InvoiceID:     inv.ID,
		CustomerID:    inv.CustomerID,
		Amount:        decimal.NewFromInt(amount),
		PaymentDate:   time.Now(),
		Status:        status,
	}
	require.NoError(t, store.CreatePayment(context.Background(), p))
	return p
}

// =============================================================================
// INCLUDE / PRELOAD TESTS
// =============================================================================

func TestStore_GetInvoice_Includes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	seedPayment(t, store, inv, 400, ledger.PaymentCompleted)

	// Without includes nothing is preloaded.
	bare, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, bare)
	assert.Nil(t, bare.Customer)
	assert.Empty(t, bare.Payments)

	loaded, err := store.GetInvoice(ctx, inv.ID, "Customer", "Items", "Payments")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Customer)
	assert.Equal(t, cust.Name, loaded.Customer.Name)
	assert.Len(t, loaded.Items, 1)
	assert.Len(t, loaded.Payments, 1)
}

func TestStore_GetPayment_NestedIncludeAndHistoryOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	p := seedPayment(t, store, inv, 1000, ledger.PaymentCompleted)

	base := time.Now().Add(-time.Hour)
	for i, action := range []string{ledger.HistoryCreated, ledger.HistoryUpdated, ledger.HistoryStopped} {
		require.NoError(t, store.AppendHistory(ctx, &ledger.PaymentHistoryEntry{
			ID:        ledger.NewID(),
			PaymentID: p.ID,
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	loaded, err := store.GetPayment(ctx, p.ID, "Invoice.Customer", "History")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Invoice)
	require.NotNil(t, loaded.Invoice.Customer)
	assert.Equal(t, cust.ID, loaded.Invoice.Customer.ID)

	require.Len(t, loaded.History, 3)
	assert.Equal(t, ledger.HistoryStopped, loaded.History[0].Action, "history preloads newest first")
	assert.Equal(t, ledger.HistoryCreated, loaded.History[2].Action)
}

func TestStore_MissingRowsReturnNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inv, err := store.GetInvoice(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, inv)

	p, err := store.GetPayment(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	u, err := store.UserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

// =============================================================================
// REFERENTIAL RULE TESTS
// =============================================================================

func TestStore_DeleteInvoice_BlockedByPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	seedPayment(t, store, inv, 400, ledger.PaymentCompleted)

	err := store.DeleteInvoice(ctx, inv.ID)
	assert.Error(t, err, "payments must block invoice deletion")

	still, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestStore_DeleteInvoice_CascadesLines(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)

	require.NoError(t, store.DeleteInvoice(ctx, inv.ID))

	gone, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_DeletePayment_BlockedByRefunds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	p := seedPayment(t, store, inv, 1000, ledger.PaymentCompleted)

	require.NoError(t, store.CreateRefund(ctx, &ledger.Refund{
		ID:           ledger.NewID(),
		RefundNumber: ledger.NewRefundNumber(),
		PaymentID:    p.ID,
		InvoiceID:    inv.ID,
		Amount:       decimal.NewFromInt(100),
		Status:       ledger.RefundPending,
		RequestedAt:  time.Now(),
	}))

	assert.Error(t, store.DeletePayment(ctx, p.ID))
}

func TestStore_DeletePayment_CascadesHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	p := seedPayment(t, store, inv, 1000, ledger.PaymentCompleted)
	require.NoError(t, store.AppendHistory(ctx, &ledger.PaymentHistoryEntry{
		ID:        ledger.NewID(),
		PaymentID: p.ID,
		Action:    ledger.HistoryCreated,
	}))

	require.NoError(t, store.DeletePayment(ctx, p.ID))

	entries, err := store.HistoryByPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_DeleteCustomer_DetachesContacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)

	contact := &crm.Contact{ID: crm.NewID(), Name: "Jane Porter", CustomerID: &cust.ID}
	require.NoError(t, store.CreateContact(ctx, contact))

	require.NoError(t, store.DeleteCustomer(ctx, cust.ID))

	detached, err := store.GetContact(ctx, contact.ID)
	require.NoError(t, err)
	require.NotNil(t, detached, "contact survives customer deletion")
	assert.Nil(t, detached.CustomerID, "customer reference is cleared")
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)

	boom := assert.AnError
	err := store.WithTx(ctx, func(gw ledger.Gateway) error {
		p := &ledger.Payment{
			ID:            ledger.NewID(),
			PaymentNumber: ledger.NewPaymentNumber(),
			InvoiceID:     inv.ID,
			CustomerID:    inv.CustomerID,
			Amount:        decimal.NewFromInt(100),
			PaymentDate:   time.Now(),
			Status:        ledger.PaymentPending,
		}
		if err := gw.CreatePayment(ctx, p); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	payments, err := store.PaymentsByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "the payment write must roll back")
}

// =============================================================================
// DASHBOARD AND RESET TESTS
// =============================================================================

func TestStore_Dashboard_Aggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)

	inv := seedInvoice(t, store, cust.ID, 1000)
	seedPayment(t, store, inv, 600, ledger.PaymentCompleted)
	seedPayment(t, store, inv, 100, ledger.PaymentPending)

	p := seedPayment(t, store, inv, 200, ledger.PaymentCompleted)
	require.NoError(t, store.CreateRefund(ctx, &ledger.Refund{
		ID:           ledger.NewID(),
		RefundNumber: ledger.NewRefundNumber(),
		PaymentID:    p.ID,
		InvoiceID:    inv.ID,
		Amount:       decimal.NewFromInt(50),
		Status:       ledger.RefundCompleted,
		RequestedAt:  time.Now(),
	}))

	stats, err := store.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Customers)
	assert.Equal(t, int64(1), stats.Invoices)
	assert.Equal(t, int64(3), stats.Payments)
	assert.Equal(t, int64(1), stats.Refunds)
	// Revenue: 600 + 200 completed minus 50 refunded. Pending never counts.
	assert.True(t, stats.Revenue.Equal(decimal.NewFromInt(750)), "got %s", stats.Revenue)
	assert.True(t, stats.Outstanding.Equal(decimal.NewFromInt(1000)), "amountDue untouched without recompute")
}

func TestStore_Reset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := seedCustomer(t, store)
	inv := seedInvoice(t, store, cust.ID, 1000)
	seedPayment(t, store, inv, 600, ledger.PaymentCompleted)
	require.NoError(t, store.CreateUser(ctx, &crm.User{ID: crm.NewID(), Email: "a@b.c", PasswordHash: "x", Role: crm.RoleAdmin}))

	require.NoError(t, store.Reset(ctx))

	stats, err := store.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Customers)
	assert.Zero(t, stats.Invoices)
	assert.Zero(t, stats.Payments)

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
