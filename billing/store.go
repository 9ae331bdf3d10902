/*
store.go - Persistence interfaces consumed by the billing engine

PURPOSE:
  The engine never touches storage directly; it consumes and produces plain
  records through these interfaces. Different implementations back them with
  SQLite (store/sqlite) or memory (billing/store).

UPSERT CONTRACT:
  Bills are keyed by (unit, period). UpsertBill must overwrite the numeric
  fields of an existing bill in place (preserving its ID, and writing that
  ID back into the caller's bill) or insert a new one. The discipline for
  concurrent writers is last-write-wins per key;
  callers serialize billing runs per period.

NOT FOUND:
  Lookup methods return the sentinel errors from errors.go
  (ErrReadingNotFound, ErrInvoiceNotFound, ErrBillNotFound) so callers can
  branch with billing.IsNotFound.

SEE ALSO:
  - billing/store/memory.go: in-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package billing

import "context"

// =============================================================================
// READING STORE
// =============================================================================

// ReadingStore persists meter readings keyed by year-month period.
type ReadingStore interface {
	// GetReading returns the reading for the period, or ErrReadingNotFound.
	GetReading(ctx context.Context, period YearMonth) (*MeterReading, error)

	// PreviousReading returns the latest reading strictly before the period,
	// or nil when none exists (first reading).
	PreviousReading(ctx context.Context, period YearMonth) (*MeterReading, error)

	// PutReading inserts or replaces the reading for its period.
	PutReading(ctx context.Context, r *MeterReading) error

	// ListReadings returns all readings ordered by period ascending.
	ListReadings(ctx context.Context) ([]MeterReading, error)
}

// =============================================================================
// INVOICE STORE
// =============================================================================

// InvoiceStore persists invoices with their sale and fee records.
type InvoiceStore interface {
	// InvoiceCovering returns the invoice whose coverage window contains the
	// billing month (see Invoice.Covers), or ErrInvoiceNotFound.
	InvoiceCovering(ctx context.Context, period YearMonth) (*Invoice, error)

	// GetInvoice returns an invoice by ID, or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id string) (*Invoice, error)

	// PutInvoice inserts or replaces an invoice and its records.
	PutInvoice(ctx context.Context, inv *Invoice) error

	// ListInvoices returns all invoices ordered by period start ascending.
	ListInvoices(ctx context.Context) ([]Invoice, error)
}

// =============================================================================
// BILL STORE
// =============================================================================

// BillStore persists bills under the (unit, period) upsert contract.
type BillStore interface {
	// UpsertBill overwrites the numeric fields of an existing (unit, period)
	// bill in place, or inserts a new one.
	UpsertBill(ctx context.Context, b *Bill) error

	// GetBill returns the bill for (unit, period), or ErrBillNotFound.
	GetBill(ctx context.Context, unit UnitID, period YearMonth) (*Bill, error)

	// BillsForPeriod returns every bill for the period, units first, the
	// whole-building aggregate last.
	BillsForPeriod(ctx context.Context, period YearMonth) ([]Bill, error)
}
