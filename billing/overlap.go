/*
overlap.go - Day-weighted cost allocation across distribution periods

PURPOSE:
  A unit's billing period is bounded by meter-reading dates; an invoice's
  price changes happen on regulatory dates. The two almost never coincide,
  so a unit's usage must be priced piecewise: each distribution period gets
  the fraction of the unit's usage proportional to the calendar days it
  shares with the billing period. This interval weighting is what separates
  a correct multi-price-period bill from a naive usage-ratio division.

ALGORITHM:
  For each distribution period, overlap = [max(start, p.start),
  min(end, p.end)]; day count is inclusive, (end − start) + 1. Periods with
  no overlap are discarded. proportion = overlap days / Σ overlap days.
  Energy cost accrues at each period's zone prices on the proportional
  usage; the period's fixed fees accrue by the same proportion. Gross values
  apply the invoice's declared VAT rate.

NO OVERLAP:
  A billing period outside every distribution period allocates zero cost.
  That is a valid result, not an error.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// ALLOCATION - Monetary outcome for one unit
// =============================================================================

// Allocation is the cost allocated to one unit for one billing period.
type Allocation struct {
	EnergyNet     decimal.Decimal
	EnergyGross   decimal.Decimal
	FixedFeeNet   decimal.Decimal
	FixedFeeGross decimal.Decimal
}

// NetTotal returns energy plus fixed fees, netto.
func (a Allocation) NetTotal() decimal.Decimal { return a.EnergyNet.Add(a.FixedFeeNet) }

// GrossTotal returns energy plus fixed fees, gross.
func (a Allocation) GrossTotal() decimal.Decimal { return a.EnergyGross.Add(a.FixedFeeGross) }

func zeroAllocation() Allocation {
	return Allocation{
		EnergyNet:     decimal.Zero,
		EnergyGross:   decimal.Zero,
		FixedFeeNet:   decimal.Zero,
		FixedFeeGross: decimal.Zero,
	}
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// AllocateOverlap computes the day-weighted cost of a unit's usage across an
// invoice's distribution periods. dual selects day/night pricing; a usage
// value without a recorded split is split by the configured default ratio
// first. vat is the invoice's declared rate.
func AllocateOverlap(span DateRange, periods []DistributionPeriod, usage Usage, dual bool, vat decimal.Decimal, cfg AllocationConfig) Allocation {
	type weighted struct {
		period DistributionPeriod
		days   int
	}

	var overlapping []weighted
	totalDays := 0
	for _, p := range periods {
		if ov, ok := span.Overlap(p.Range); ok {
			overlapping = append(overlapping, weighted{period: p, days: ov.Days()})
			totalDays += ov.Days()
		}
	}
	if totalDays == 0 {
		return zeroAllocation()
	}

	dayKWh, nightKWh := splitForPricing(usage, cfg)

	energyNet := decimal.Zero
	fixedNet := decimal.Zero
	total := decimal.NewFromInt(int64(totalDays))
	for _, w := range overlapping {
		proportion := decimal.NewFromInt(int64(w.days)).DivRound(total, InternalPlaces)

		if dual {
			energyNet = energyNet.Add(dayKWh.Mul(proportion).Mul(w.period.PriceFor(ZoneDay)))
			energyNet = energyNet.Add(nightKWh.Mul(proportion).Mul(w.period.PriceFor(ZoneNight)))
		} else {
			energyNet = energyNet.Add(usage.Total.Mul(proportion).Mul(w.period.PriceFor(ZoneFlat)))
		}
		fixedNet = fixedNet.Add(w.period.FixedFeeNet.Mul(proportion))
	}

	energyNet = Round4(energyNet)
	fixedNet = Round4(fixedNet)
	grossFactor := decimal.NewFromInt(1).Add(vat)
	return Allocation{
		EnergyNet:     energyNet,
		EnergyGross:   Round4(energyNet.Mul(grossFactor)),
		FixedFeeNet:   fixedNet,
		FixedFeeGross: Round4(fixedNet.Mul(grossFactor)),
	}
}

// splitForPricing returns the day/night quantities to price. Usage with a
// recorded split is used as-is; otherwise the configured default ratio
// apportions the total.
func splitForPricing(usage Usage, cfg AllocationConfig) (day, night decimal.Decimal) {
	if usage.HasSplit() {
		return *usage.Day, *usage.Night
	}
	day = Round4(usage.Total.Mul(cfg.DayRatio))
	return day, usage.Total.Sub(day)
}
