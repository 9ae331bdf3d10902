/*
manager.go - The billing run orchestrator

PURPOSE:
  Drives one billing run for one year-month period through its states:

    SELECT_INVOICE → COMPUTE_USAGE → ALLOCATE_COST (per unit) → PERSIST

  terminating in COMPLETE or FAILED. Missing inputs (no invoice covering the
  period, no reading for the period) abort the whole run before anything is
  persisted. Once allocation begins, units are persisted independently: a
  failure on one unit does not roll back previously persisted units. This is
  a best-effort batch, not a transaction; callers serialize runs per period.

ALLOCATION PATHS:
  - Invoice yields ≥2 distribution periods: day-weighted overlap allocation
    (overlap.go) against the unit's reading-to-reading span.
  - Single or zero distribution periods (fallback):
      dual-tariff invoice: the configured day/night ratio weights the
        composed zone prices into one average price per kWh;
      flat-tariff invoice: the invoice's two aggregate gross totals are
        scaled by the unit's usage ratio (unit kWh / whole-building kWh).
    In both fallback branches, the invoice's recognized per-month fixed fees
    are summed undivided and split between units by the configured shares.

AGGREGATE BILL:
  A whole-building bill is produced from the invoice's gross totals directly
  (not by summing unit bills) plus the full fixed-fee total.
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RUN STATE MACHINE
// =============================================================================

// RunState is the stage a billing run is in.
type RunState string

const (
	StateSelectInvoice RunState = "select_invoice"
	StateComputeUsage  RunState = "compute_usage"
	StateAllocateCost  RunState = "allocate_cost"
	StatePersist       RunState = "persist"
	StateComplete      RunState = "complete"
	StateFailed        RunState = "failed"
)

// RunResult reports the outcome of one billing run.
type RunResult struct {
	Period    YearMonth
	State     RunState
	InvoiceID string

	// Bills lists every bill persisted by the run, units first, the
	// whole-building aggregate last.
	Bills []Bill

	// Warnings collects suspicious-price recoveries encountered while
	// composing prices. Informational; never fatal.
	Warnings []SuspiciousPriceWarning
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager orchestrates billing runs. Purely computational apart from the
// injected stores; deterministic given the stored readings and invoices.
type Manager struct {
	Readings ReadingStore
	Invoices InvoiceStore
	Bills    BillStore
	Config   AllocationConfig

	// Now stamps generated bills; replaceable in tests.
	Now func() time.Time
}

// NewManager wires a manager with the default clock.
func NewManager(readings ReadingStore, invoices InvoiceStore, bills BillStore, cfg AllocationConfig) *Manager {
	return &Manager{
		Readings: readings,
		Invoices: invoices,
		Bills:    bills,
		Config:   cfg,
		Now:      time.Now,
	}
}

// Run executes one billing run for the period. The returned result carries
// the terminal state and whatever bills were persisted; the error is non-nil
// when the run failed or was only partially persisted.
func (m *Manager) Run(ctx context.Context, period YearMonth) (*RunResult, error) {
	res := &RunResult{Period: period, State: StateSelectInvoice}
	warn := func(w SuspiciousPriceWarning) { res.Warnings = append(res.Warnings, w) }

	inv, err := m.Invoices.InvoiceCovering(ctx, period)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("select invoice for %s: %w", period, err)
	}
	res.InvoiceID = inv.ID

	res.State = StateComputeUsage
	current, err := m.Readings.GetReading(ctx, period)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("reading for %s: %w", period, err)
	}
	previous, err := m.Readings.PreviousReading(ctx, period)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("previous reading before %s: %w", period, err)
	}
	usage := Reconcile(current, previous)
	span := billingSpan(current, previous)

	res.State = StateAllocateCost
	periods := ExtractDistributionPeriods(inv, warn)

	// From here on each unit is persisted independently.
	var persistErrs []error
	for _, unit := range BillableUnits {
		bill := m.allocateUnit(unit, period, usage, span, inv, periods, warn)
		bill.GeneratedAt = m.Now()
		res.State = StatePersist
		if err := m.Bills.UpsertBill(ctx, bill); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("persist %s/%s: %w", unit, period, err))
			continue
		}
		res.Bills = append(res.Bills, *bill)
		res.State = StateAllocateCost
	}

	aggregate := m.aggregateBill(usage, span, inv, period)
	aggregate.GeneratedAt = m.Now()
	res.State = StatePersist
	if err := m.Bills.UpsertBill(ctx, aggregate); err != nil {
		persistErrs = append(persistErrs, fmt.Errorf("persist %s/%s: %w", UnitBuilding, period, err))
	} else {
		res.Bills = append(res.Bills, *aggregate)
	}

	if len(persistErrs) > 0 {
		res.State = StateFailed
		return res, errors.Join(persistErrs...)
	}
	res.State = StateComplete
	return res, nil
}

// billingSpan is the reading-to-reading date range the bills cover: the day
// after the previous reading through the current reading's date. With no
// previous reading the span opens at the first day of the reading's month.
func billingSpan(current, previous *MeterReading) DateRange {
	if previous != nil {
		return DateRange{Start: previous.Date().AddDays(1), End: current.Date()}
	}
	return DateRange{Start: current.Period.FirstDay(), End: current.Date()}
}

// allocateUnit prices one unit's usage on whichever path the invoice's
// distribution periods select.
func (m *Manager) allocateUnit(unit UnitID, period YearMonth, breakdown UsageBreakdown, span DateRange, inv *Invoice, periods []DistributionPeriod, warn WarnFunc) *Bill {
	usage := breakdown.ForUnit(unit)
	bill := m.newBill(unit, period, usage, span, inv)
	grossFactor := decimal.NewFromInt(1).Add(inv.VATRate)

	if len(periods) >= 2 {
		a := AllocateOverlap(span, periods, usage, inv.DualTariff, inv.VATRate, m.Config)
		bill.EnergyGross = a.EnergyGross
		bill.DistributionGross = a.FixedFeeGross
		bill.NetTotal = a.NetTotal()
		bill.GrossTotal = a.GrossTotal()
		return bill
	}

	fixedNet := Round4(inv.FixedFeeTotal().Mul(m.Config.Share(unit)))
	fixedGross := Round4(fixedNet.Mul(grossFactor))

	if inv.DualTariff {
		prices := ComposeZonePrices(true, inv.Sales, inv.Fees, warn)
		avg := Round4(prices.For(ZoneDay).Mul(m.Config.DayRatio).
			Add(prices.For(ZoneNight).Mul(m.Config.NightRatio)))
		energyNet := Round4(usage.Total.Mul(avg))
		bill.EnergyGross = Round4(energyNet.Mul(grossFactor))
		bill.DistributionGross = fixedGross
		bill.NetTotal = energyNet.Add(fixedNet)
		bill.GrossTotal = bill.EnergyGross.Add(bill.DistributionGross)
		return bill
	}

	ratio := decimal.Zero
	if breakdown.Main.Total.IsPositive() {
		ratio = usage.Total.DivRound(breakdown.Main.Total, InternalPlaces)
	}
	bill.EnergyGross = Round4(inv.EnergyGross.Mul(ratio))
	bill.DistributionGross = Round4(inv.DistributionGross.Mul(ratio)).Add(fixedGross)
	bill.GrossTotal = bill.EnergyGross.Add(bill.DistributionGross)
	bill.NetTotal = bill.GrossTotal.DivRound(grossFactor, InternalPlaces)
	return bill
}

// aggregateBill builds the whole-building bill from the invoice totals
// directly plus the full fixed-fee total.
func (m *Manager) aggregateBill(breakdown UsageBreakdown, span DateRange, inv *Invoice, period YearMonth) *Bill {
	bill := m.newBill(UnitBuilding, period, breakdown.Main, span, inv)
	grossFactor := decimal.NewFromInt(1).Add(inv.VATRate)
	fixedGross := Round4(inv.FixedFeeTotal().Mul(grossFactor))

	bill.EnergyGross = inv.EnergyGross
	bill.DistributionGross = inv.DistributionGross.Add(fixedGross)
	bill.GrossTotal = bill.EnergyGross.Add(bill.DistributionGross)
	bill.NetTotal = bill.GrossTotal.DivRound(grossFactor, InternalPlaces)
	return bill
}

func (m *Manager) newBill(unit UnitID, period YearMonth, usage Usage, span DateRange, inv *Invoice) *Bill {
	return &Bill{
		ID:            uuid.NewString(),
		Unit:          unit,
		Period:        period,
		Span:          span,
		InvoiceID:     inv.ID,
		ReadingPeriod: period,
		TotalKWh:      usage.Total,
		DayKWh:        usage.Day,
		NightKWh:      usage.Night,
	}
}
