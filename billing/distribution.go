/*
distribution.go - Splitting an invoice into price-constant sub-periods

PURPOSE:
  Distribution tariffs change mid-invoice (typically at a calendar year or
  regulatory boundary), so one invoice can carry several consecutive
  sub-periods with different per-kWh prices and different fixed fees. This
  file derives those sub-periods from the invoice's fee records: every
  distinct fee date marks the end of one sub-period.

POSITIONAL SALE PAIRING:
  SaleRecords carry no sub-period date of their own. They are paired to
  sub-periods positionally, in encounter order: dual-tariff invoices consume
  them in day-then-night pairs, flat-tariff invoices one at a time. This
  leans on the ordering invariant documented in invoice.go and is fragile:
  an invoice whose sale records arrive out of order will price sub-periods
  wrongly. SaleRecord carries no explicit sub-period reference, so encounter
  order is the only binding.

NO FEES, NO PERIODS:
  An invoice with no fee records yields zero sub-periods; billing then takes
  the single-period fallback path (manager.go).
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DISTRIBUTION PERIOD - Derived, never persisted
// =============================================================================

// DistributionPeriod is a contiguous date range inside one invoice during
// which per-kWh zone prices and fixed fees are constant.
type DistributionPeriod struct {
	Range DateRange

	// Prices holds the composed netto price per kWh per zone: day and night
	// for dual-tariff invoices, flat otherwise.
	Prices ZonePrices

	// FixedFeeNet is the netto total of per-month fees applicable to this
	// sub-period.
	FixedFeeNet decimal.Decimal
}

// PriceFor returns the zone price, zero when the zone is absent.
func (p DistributionPeriod) PriceFor(zone Zone) decimal.Decimal {
	if v, ok := p.Prices[zone]; ok {
		return v
	}
	return decimal.Zero
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// ExtractDistributionPeriods splits an invoice into its ordered list of
// price-constant sub-periods. The first sub-period runs from the invoice's
// start date to the first distinct fee date; each subsequent one from the
// day after the previous boundary to the next.
func ExtractDistributionPeriods(inv *Invoice, warn WarnFunc) []DistributionPeriod {
	boundaries := feeDateBoundaries(inv.Fees)
	if len(boundaries) == 0 {
		return nil
	}

	periods := make([]DistributionPeriod, 0, len(boundaries))
	start := inv.Period.Start
	for i, boundary := range boundaries {
		fees := feesEndingAt(inv.Fees, boundary)
		sales := salesForIndex(inv, i)

		periods = append(periods, DistributionPeriod{
			Range:       DateRange{Start: start, End: boundary},
			Prices:      ComposeZonePrices(inv.DualTariff, sales, fees, warn),
			FixedFeeNet: sumMonthlyFees(fees),
		})
		start = boundary.AddDays(1)
	}
	return periods
}

// feeDateBoundaries returns the distinct fee dates ascending.
func feeDateBoundaries(fees []FeeRecord) []Date {
	seen := map[Date]bool{}
	var dates []Date
	for _, f := range fees {
		if !seen[f.PeriodEnd] {
			seen[f.PeriodEnd] = true
			dates = append(dates, f.PeriodEnd)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func feesEndingAt(fees []FeeRecord, boundary Date) []FeeRecord {
	var out []FeeRecord
	for _, f := range fees {
		if f.PeriodEnd.Equal(boundary) {
			out = append(out, f)
		}
	}
	return out
}

// salesForIndex pairs sale records to the i-th sub-period positionally:
// records [2i, 2i+1] for dual-tariff invoices (day then night), record [i]
// for flat ones. Out-of-range positions yield an empty set, leaving the
// sub-period priced by fees alone.
func salesForIndex(inv *Invoice, i int) []SaleRecord {
	if inv.DualTariff {
		lo := 2 * i
		hi := lo + 2
		if lo >= len(inv.Sales) {
			return nil
		}
		if hi > len(inv.Sales) {
			hi = len(inv.Sales)
		}
		return inv.Sales[lo:hi]
	}
	if i >= len(inv.Sales) {
		return nil
	}
	return inv.Sales[i : i+1]
}

func sumMonthlyFees(fees []FeeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fees {
		if f.Unit == FeePerMonth {
			total = total.Add(f.NetAmount())
		}
	}
	return Round4(total)
}
