/*
Package sqlite provides the SQLite-backed implementation of the billing
storage interfaces.

PURPOSE:
  Implements billing.ReadingStore, billing.InvoiceStore and billing.BillStore
  on SQLite. The engine itself never sees SQL; it consumes plain records.

KEY TABLES:
  meter_readings: one row per year-month period, both stations inline
  invoices:       invoice header (coverage range, tariff class, totals)
  invoice_sales:  sale line items, position column preserves encounter order
  invoice_fees:   fee line items with their sub-period end dates
  bills:          one row per (unit, period), upserted on rerun

UPSERT CONTRACT:
  bills carries UNIQUE(unit, period). UpsertBill uses ON CONFLICT DO UPDATE
  so re-running billing for a period overwrites the numeric fields in place;
  the row identity survives reruns. The caller's bill is updated with the
  surviving id after the write.

POSITIONAL ORDERING:
  invoice_sales.position records encounter order. The extractor's positional
  day/night pairing depends on reading sales back in exactly the order they
  were written; both PutInvoice and the loaders honor it.

DECIMALS:
  All monetary and kWh values are stored as TEXT and parsed back through
  shopspring/decimal, never through floats.

WAL MODE:
  The database is opened with WAL for better read concurrency. Billing runs
  themselves are serialized by callers.

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hausnet/splitmeter/billing"
)

// Store implements all billing storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meter_readings (
		period TEXT PRIMARY KEY,
		taken_at TEXT,
		main_dual INTEGER NOT NULL,
		main_combined TEXT NOT NULL,
		main_day TEXT NOT NULL,
		main_night TEXT NOT NULL,
		lower_dual INTEGER NOT NULL,
		lower_combined TEXT NOT NULL,
		lower_day TEXT NOT NULL,
		lower_night TEXT NOT NULL,
		nested TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		dual_tariff INTEGER NOT NULL,
		total_kwh TEXT NOT NULL,
		energy_gross TEXT NOT NULL,
		distribution_gross TEXT NOT NULL,
		vat_rate TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_period
		ON invoices(period_start, period_end);

	CREATE TABLE IF NOT EXISTS invoice_sales (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		zone TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		gross TEXT NOT NULL,
		vat_rate TEXT NOT NULL,
		PRIMARY KEY (invoice_id, position)
	);

	CREATE TABLE IF NOT EXISTS invoice_fees (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		fee_type TEXT NOT NULL,
		zone TEXT NOT NULL,
		unit TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		gross TEXT NOT NULL,
		vat_rate TEXT NOT NULL,
		period_end TEXT NOT NULL,
		PRIMARY KEY (invoice_id, position)
	);

	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		unit TEXT NOT NULL,
		period TEXT NOT NULL,
		span_start TEXT NOT NULL,
		span_end TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		reading_period TEXT NOT NULL,
		total_kwh TEXT NOT NULL,
		day_kwh TEXT,
		night_kwh TEXT,
		energy_gross TEXT NOT NULL,
		distribution_gross TEXT NOT NULL,
		net_total TEXT NOT NULL,
		gross_total TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		UNIQUE (unit, period)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READINGS
// =============================================================================

const readingColumns = `period, taken_at, main_dual, main_combined, main_day, main_night,
	lower_dual, lower_combined, lower_day, lower_night, nested`

func (s *Store) GetReading(ctx context.Context, period billing.YearMonth) (*billing.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM meter_readings WHERE period = ?`, period.String())
	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrReadingNotFound
	}
	return r, err
}

func (s *Store) PreviousReading(ctx context.Context, period billing.YearMonth) (*billing.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM meter_readings WHERE period < ? ORDER BY period DESC LIMIT 1`,
		period.String())
	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Store) PutReading(ctx context.Context, r *billing.MeterReading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var takenAt any
	if r.TakenAt != nil {
		takenAt = r.TakenAt.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meter_readings (`+readingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period) DO UPDATE SET
			taken_at = excluded.taken_at,
			main_dual = excluded.main_dual,
			main_combined = excluded.main_combined,
			main_day = excluded.main_day,
			main_night = excluded.main_night,
			lower_dual = excluded.lower_dual,
			lower_combined = excluded.lower_combined,
			lower_day = excluded.lower_day,
			lower_night = excluded.lower_night,
			nested = excluded.nested
	`, r.Period.String(), takenAt,
		r.Main.Dual, r.Main.Combined.String(), r.Main.Day.String(), r.Main.Night.String(),
		r.Lower.Dual, r.Lower.Combined.String(), r.Lower.Day.String(), r.Lower.Night.String(),
		r.Nested.String())
	return err
}

func (s *Store) ListReadings(ctx context.Context) ([]billing.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingColumns+` FROM meter_readings ORDER BY period ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.MeterReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (*billing.MeterReading, error) {
	var (
		period, mainCombined, mainDay, mainNight       string
		lowerCombined, lowerDay, lowerNight, nestedStr string
		takenAt                                        sql.NullString
		mainDual, lowerDual                            bool
	)
	if err := row.Scan(&period, &takenAt, &mainDual, &mainCombined, &mainDay, &mainNight,
		&lowerDual, &lowerCombined, &lowerDay, &lowerNight, &nestedStr); err != nil {
		return nil, err
	}

	ym, err := billing.ParseYearMonth(period)
	if err != nil {
		return nil, err
	}
	var p decParser
	r := &billing.MeterReading{
		Period: ym,
		Main: billing.StationReading{
			Dual:     mainDual,
			Combined: p.dec(mainCombined),
			Day:      p.dec(mainDay),
			Night:    p.dec(mainNight),
		},
		Lower: billing.StationReading{
			Dual:     lowerDual,
			Combined: p.dec(lowerCombined),
			Day:      p.dec(lowerDay),
			Night:    p.dec(lowerNight),
		},
		Nested: p.dec(nestedStr),
	}
	if p.err != nil {
		return nil, p.err
	}
	if takenAt.Valid && takenAt.String != "" {
		d, err := billing.ParseDate(takenAt.String)
		if err != nil {
			return nil, err
		}
		r.TakenAt = &d
	}
	return r, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) InvoiceCovering(ctx context.Context, period billing.YearMonth) (*billing.Invoice, error) {
	invoices, err := s.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if invoices[i].Covers(period) {
			return &invoices[i], nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, period_start, period_end, dual_tariff, total_kwh,
		       energy_gross, distribution_gross, vat_rate
		FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoiceHeader(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadRecords(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_start, period_end, dual_tariff, total_kwh,
		       energy_gross, distribution_gross, vat_rate
		FROM invoices ORDER BY period_start ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoiceHeader(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadRecords(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) PutInvoice(ctx context.Context, inv *billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, period_start, period_end, dual_tariff, total_kwh,
			energy_gross, distribution_gross, vat_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			dual_tariff = excluded.dual_tariff,
			total_kwh = excluded.total_kwh,
			energy_gross = excluded.energy_gross,
			distribution_gross = excluded.distribution_gross,
			vat_rate = excluded.vat_rate
	`, inv.ID, inv.Period.Start.String(), inv.Period.End.String(), inv.DualTariff,
		inv.TotalEnergyKWh.String(), inv.EnergyGross.String(),
		inv.DistributionGross.String(), inv.VATRate.String())
	if err != nil {
		return err
	}

	// Replace child records wholesale; position preserves encounter order.
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_sales WHERE invoice_id = ?`, inv.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_fees WHERE invoice_id = ?`, inv.ID); err != nil {
		return err
	}
	for i, sale := range inv.Sales {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_sales (invoice_id, position, zone, quantity, unit_price, gross, vat_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, inv.ID, i, string(sale.Zone), sale.Quantity.String(), sale.UnitPrice.String(),
			sale.Gross.String(), sale.VATRate.String())
		if err != nil {
			return err
		}
	}
	for i, fee := range inv.Fees {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_fees (invoice_id, position, fee_type, zone, unit, quantity,
				unit_price, gross, vat_rate, period_end)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, inv.ID, i, string(fee.Type), string(fee.Zone), string(fee.Unit),
			fee.Quantity.String(), fee.UnitPrice.String(), fee.Gross.String(),
			fee.VATRate.String(), fee.PeriodEnd.String())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanInvoiceHeader(row scanner) (*billing.Invoice, error) {
	var (
		id, start, end, totalKWh, energy, dist, vat string
		dual                                        bool
	)
	if err := row.Scan(&id, &start, &end, &dual, &totalKWh, &energy, &dist, &vat); err != nil {
		return nil, err
	}
	startDate, err := billing.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDate, err := billing.ParseDate(end)
	if err != nil {
		return nil, err
	}
	var p decParser
	inv := &billing.Invoice{
		ID:                id,
		Period:            billing.DateRange{Start: startDate, End: endDate},
		DualTariff:        dual,
		TotalEnergyKWh:    p.dec(totalKWh),
		EnergyGross:       p.dec(energy),
		DistributionGross: p.dec(dist),
		VATRate:           p.dec(vat),
	}
	if p.err != nil {
		return nil, p.err
	}
	return inv, nil
}

func (s *Store) loadRecords(ctx context.Context, inv *billing.Invoice) error {
	saleRows, err := s.db.QueryContext(ctx, `
		SELECT zone, quantity, unit_price, gross, vat_rate
		FROM invoice_sales WHERE invoice_id = ? ORDER BY position ASC`, inv.ID)
	if err != nil {
		return err
	}
	defer saleRows.Close()
	for saleRows.Next() {
		var zone, qty, price, gross, vat string
		if err := saleRows.Scan(&zone, &qty, &price, &gross, &vat); err != nil {
			return err
		}
		var p decParser
		inv.Sales = append(inv.Sales, billing.SaleRecord{
			Zone:      billing.Zone(zone),
			Quantity:  p.dec(qty),
			UnitPrice: p.dec(price),
			Gross:     p.dec(gross),
			VATRate:   p.dec(vat),
		})
		if p.err != nil {
			return p.err
		}
	}
	if err := saleRows.Err(); err != nil {
		return err
	}

	feeRows, err := s.db.QueryContext(ctx, `
		SELECT fee_type, zone, unit, quantity, unit_price, gross, vat_rate, period_end
		FROM invoice_fees WHERE invoice_id = ? ORDER BY position ASC`, inv.ID)
	if err != nil {
		return err
	}
	defer feeRows.Close()
	for feeRows.Next() {
		var feeType, zone, unit, qty, price, gross, vat, periodEnd string
		if err := feeRows.Scan(&feeType, &zone, &unit, &qty, &price, &gross, &vat, &periodEnd); err != nil {
			return err
		}
		end, err := billing.ParseDate(periodEnd)
		if err != nil {
			return err
		}
		var p decParser
		inv.Fees = append(inv.Fees, billing.FeeRecord{
			Type:      billing.FeeType(feeType),
			Zone:      billing.Zone(zone),
			Unit:      billing.FeeUnit(unit),
			Quantity:  p.dec(qty),
			UnitPrice: p.dec(price),
			Gross:     p.dec(gross),
			VATRate:   p.dec(vat),
			PeriodEnd: end,
		})
		if p.err != nil {
			return p.err
		}
	}
	return feeRows.Err()
}

// =============================================================================
// BILLS
// =============================================================================

func (s *Store) UpsertBill(ctx context.Context, b *billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dayKWh, nightKWh any
	if b.DayKWh != nil {
		dayKWh = b.DayKWh.String()
	}
	if b.NightKWh != nil {
		nightKWh = b.NightKWh.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (id, unit, period, span_start, span_end, invoice_id, reading_period,
			total_kwh, day_kwh, night_kwh, energy_gross, distribution_gross,
			net_total, gross_total, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit, period) DO UPDATE SET
			span_start = excluded.span_start,
			span_end = excluded.span_end,
			invoice_id = excluded.invoice_id,
			reading_period = excluded.reading_period,
			total_kwh = excluded.total_kwh,
			day_kwh = excluded.day_kwh,
			night_kwh = excluded.night_kwh,
			energy_gross = excluded.energy_gross,
			distribution_gross = excluded.distribution_gross,
			net_total = excluded.net_total,
			gross_total = excluded.gross_total,
			generated_at = excluded.generated_at
	`, b.ID, string(b.Unit), b.Period.String(), b.Span.Start.String(), b.Span.End.String(),
		b.InvoiceID, b.ReadingPeriod.String(), b.TotalKWh.String(), dayKWh, nightKWh,
		b.EnergyGross.String(), b.DistributionGross.String(),
		b.NetTotal.String(), b.GrossTotal.String(),
		b.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	// On conflict the existing row keeps its id. Read it back so the caller's
	// bill carries the persisted identity, matching the in-memory store.
	return s.db.QueryRowContext(ctx,
		`SELECT id FROM bills WHERE unit = ? AND period = ?`,
		string(b.Unit), b.Period.String()).Scan(&b.ID)
}

func (s *Store) GetBill(ctx context.Context, unit billing.UnitID, period billing.YearMonth) (*billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, billSelect+` WHERE unit = ? AND period = ?`,
		string(unit), period.String())
	b, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrBillNotFound
	}
	return b, err
}

func (s *Store) BillsForPeriod(ctx context.Context, period billing.YearMonth) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, billSelect+` WHERE period = ?`, period.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUnit := map[billing.UnitID]billing.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		byUnit[b.Unit] = *b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Units first, aggregate last.
	var out []billing.Bill
	order := append(append([]billing.UnitID{}, billing.BillableUnits...), billing.UnitBuilding)
	for _, unit := range order {
		if b, ok := byUnit[unit]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

const billSelect = `
	SELECT id, unit, period, span_start, span_end, invoice_id, reading_period,
	       total_kwh, day_kwh, night_kwh, energy_gross, distribution_gross,
	       net_total, gross_total, generated_at
	FROM bills`

func scanBill(row scanner) (*billing.Bill, error) {
	var (
		id, unit, period, spanStart, spanEnd, invoiceID, readingPeriod string
		totalKWh, energy, dist, net, gross, generatedAt                string
		dayKWh, nightKWh                                               sql.NullString
	)
	if err := row.Scan(&id, &unit, &period, &spanStart, &spanEnd, &invoiceID, &readingPeriod,
		&totalKWh, &dayKWh, &nightKWh, &energy, &dist, &net, &gross, &generatedAt); err != nil {
		return nil, err
	}

	ym, err := billing.ParseYearMonth(period)
	if err != nil {
		return nil, err
	}
	readingYM, err := billing.ParseYearMonth(readingPeriod)
	if err != nil {
		return nil, err
	}
	start, err := billing.ParseDate(spanStart)
	if err != nil {
		return nil, err
	}
	end, err := billing.ParseDate(spanEnd)
	if err != nil {
		return nil, err
	}
	gen, err := time.Parse(time.RFC3339, generatedAt)
	if err != nil {
		return nil, err
	}

	var p decParser
	b := &billing.Bill{
		ID:                id,
		Unit:              billing.UnitID(unit),
		Period:            ym,
		Span:              billing.DateRange{Start: start, End: end},
		InvoiceID:         invoiceID,
		ReadingPeriod:     readingYM,
		TotalKWh:          p.dec(totalKWh),
		EnergyGross:       p.dec(energy),
		DistributionGross: p.dec(dist),
		NetTotal:          p.dec(net),
		GrossTotal:        p.dec(gross),
		GeneratedAt:       gen,
	}
	if dayKWh.Valid {
		d := p.dec(dayKWh.String)
		b.DayKWh = &d
	}
	if nightKWh.Valid {
		n := p.dec(nightKWh.String)
		b.NightKWh = &n
	}
	if p.err != nil {
		return nil, p.err
	}
	return b, nil
}

// decParser parses stored decimal text, retaining the first failure so
// scanners report corrupt rows instead of coercing them to zero.
type decParser struct {
	err error
}

func (p *decParser) dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("malformed stored decimal %q: %w", s, err)
		}
		return decimal.Zero
	}
	return d
}
