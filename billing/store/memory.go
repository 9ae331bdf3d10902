// Package store provides in-memory implementations of the billing storage
// interfaces, for tests and the dev server.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hausnet/splitmeter/billing"
)

// =============================================================================
// MEMORY STORE - Implements ReadingStore, InvoiceStore, BillStore
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	readings map[billing.YearMonth]billing.MeterReading
	invoices map[string]billing.Invoice
	bills    map[billKey]billing.Bill
}

type billKey struct {
	Unit   billing.UnitID
	Period billing.YearMonth
}

func NewMemory() *Memory {
	return &Memory{
		readings: make(map[billing.YearMonth]billing.MeterReading),
		invoices: make(map[string]billing.Invoice),
		bills:    make(map[billKey]billing.Bill),
	}
}

// =============================================================================
// READINGS
// =============================================================================

func (m *Memory) GetReading(_ context.Context, period billing.YearMonth) (*billing.MeterReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.readings[period]
	if !ok {
		return nil, billing.ErrReadingNotFound
	}
	return &r, nil
}

func (m *Memory) PreviousReading(_ context.Context, period billing.YearMonth) (*billing.MeterReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *billing.MeterReading
	for ym, r := range m.readings {
		if !ym.Before(period) {
			continue
		}
		r := r
		if best == nil || best.Period.Before(ym) {
			best = &r
		}
	}
	return best, nil
}

func (m *Memory) PutReading(_ context.Context, r *billing.MeterReading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[r.Period] = *r
	return nil
}

func (m *Memory) ListReadings(_ context.Context) ([]billing.MeterReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.MeterReading, 0, len(m.readings))
	for _, r := range m.readings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) InvoiceCovering(_ context.Context, period billing.YearMonth) (*billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.Covers(period) {
			inv := inv
			return &inv, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (m *Memory) GetInvoice(_ context.Context, id string) (*billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *Memory) PutInvoice(_ context.Context, inv *billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, nil
}

// =============================================================================
// BILLS - Upsert keyed by (unit, period)
// =============================================================================

func (m *Memory) UpsertBill(_ context.Context, b *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := billKey{Unit: b.Unit, Period: b.Period}
	if existing, ok := m.bills[k]; ok {
		// Overwrite in place: the stored identity survives reruns.
		b.ID = existing.ID
	}
	m.bills[k] = *b
	return nil
}

func (m *Memory) GetBill(_ context.Context, unit billing.UnitID, period billing.YearMonth) (*billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[billKey{Unit: unit, Period: period}]
	if !ok {
		return nil, billing.ErrBillNotFound
	}
	return &b, nil
}

func (m *Memory) BillsForPeriod(_ context.Context, period billing.YearMonth) ([]billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Bill
	for k, b := range m.bills {
		if k.Period == period {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return unitRank(out[i].Unit) < unitRank(out[j].Unit) })
	return out, nil
}

// unitRank orders bills units-first with the aggregate last.
func unitRank(u billing.UnitID) int {
	for i, b := range billing.BillableUnits {
		if u == b {
			return i
		}
	}
	return len(billing.BillableUnits)
}
