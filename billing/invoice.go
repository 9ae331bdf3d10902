/*
invoice.go - Provider invoice with its sale and fee line items

PURPOSE:
  Models one electricity invoice as the engine consumes it: a coverage date
  range, a tariff-class flag, aggregate gross totals for energy and
  distribution, and the itemized SaleRecords (per tariff zone) and FeeRecords
  (per fee type and sub-period) the composer and extractor work from.

SUB-PERIOD INVARIANT:
  FeeRecords sharing the same PeriodEnd date belong to the same sub-period.
  Sorting FeeRecords by date and de-duplicating the dates yields the
  invoice's sub-period boundaries (see distribution.go).

SALE RECORD ORDERING INVARIANT:
  SaleRecords carry no explicit sub-period reference. They appear in
  chronological sub-period order; for dual-tariff invoices in day-then-night
  pairs. The extractor pairs them to sub-periods positionally. Fragile by
  construction; flagged as such where it happens.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// SALE RECORD - Energy sold in one tariff zone
// =============================================================================

// SaleRecord is one energy line item: the quantity sold in a tariff zone at
// a netto price per kWh.
type SaleRecord struct {
	Zone      Zone
	Quantity  decimal.Decimal // kWh
	UnitPrice decimal.Decimal // netto per kWh
	Gross     decimal.Decimal // gross amount owed for the line
	VATRate   decimal.Decimal // e.g. 0.23
}

// =============================================================================
// FEE RECORD - Distribution fee line item
// =============================================================================

// FeeRecord is one distribution fee line item. PeriodEnd marks the last day
// of the sub-period the fee applies to.
type FeeRecord struct {
	Type      FeeType
	Zone      Zone // empty for zone-independent fees
	Unit      FeeUnit
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal // netto
	Gross     decimal.Decimal
	VATRate   decimal.Decimal
	PeriodEnd Date
}

// NetAmount returns the fee's netto total (quantity × unit price).
func (f FeeRecord) NetAmount() decimal.Decimal {
	return Round4(f.Quantity.Mul(f.UnitPrice))
}

// AppliesToZone reports whether the fee contributes to the given zone's
// composed price. A fee with no zone applies to every zone.
func (f FeeRecord) AppliesToZone(z Zone) bool {
	return f.Zone == "" || f.Zone == z
}

// =============================================================================
// INVOICE - One provider invoice
// =============================================================================

// Invoice is one provider invoice covering a calendar date range.
type Invoice struct {
	ID string

	// Period is the coverage range stated on the invoice.
	Period DateRange

	// DualTariff distinguishes day/night invoices from flat ones.
	DualTariff bool

	// TotalEnergyKWh is the total billed energy quantity.
	TotalEnergyKWh decimal.Decimal

	// EnergyGross and DistributionGross are the invoice's two aggregate
	// monetary totals: energy sold, and distribution service.
	EnergyGross       decimal.Decimal
	DistributionGross decimal.Decimal

	// VATRate is the invoice's declared rate, applied when grossing up
	// allocated netto costs.
	VATRate decimal.Decimal

	Sales []SaleRecord
	Fees  []FeeRecord
}

// Covers reports whether the invoice covers the given billing month. The
// invoice's start month counts in full: the window is
// [Period.Start with day=1, Period.End].
func (inv *Invoice) Covers(ym YearMonth) bool {
	window := DateRange{Start: inv.Period.Start.FirstOfMonth(), End: inv.Period.End}
	return window.Contains(ym.FirstDay())
}

// FixedFeeTotal sums the netto amounts of all recognized per-month fees on
// the invoice, undivided: the invoice's stated fee already covers its whole
// period.
func (inv *Invoice) FixedFeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, f := range inv.Fees {
		if f.Unit == FeePerMonth && IsFixedFee(f.Type) {
			total = total.Add(f.NetAmount())
		}
	}
	return Round4(total)
}
