package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hausnet/splitmeter/billing"
)

func flatPeriod(start, end, price, fixed string) billing.DistributionPeriod {
	return billing.DistributionPeriod{
		Range: billing.DateRange{
			Start: billing.MustParseDate(start),
			End:   billing.MustParseDate(end),
		},
		Prices:      billing.ZonePrices{billing.ZoneFlat: dec(price)},
		FixedFeeNet: dec(fixed),
	}
}

func dualPeriod(start, end, day, night, fixed string) billing.DistributionPeriod {
	return billing.DistributionPeriod{
		Range: billing.DateRange{
			Start: billing.MustParseDate(start),
			End:   billing.MustParseDate(end),
		},
		Prices: billing.ZonePrices{
			billing.ZoneDay:   dec(day),
			billing.ZoneNight: dec(night),
		},
		FixedFeeNet: dec(fixed),
	}
}

// =============================================================================
// DAY-WEIGHTED ALLOCATION
// =============================================================================

func TestAllocateOverlap_Flat_EqualSplitAcrossPeriods(t *testing.T) {
	// GIVEN: Two price periods, billing span overlapping each by 10 days
	// WHEN: Allocating 100 kWh at 0.10 then 0.20 per kWh
	// THEN: Half the usage is priced in each period

	periods := []billing.DistributionPeriod{
		flatPeriod("2025-01-01", "2025-01-31", "0.10", "10"),
		flatPeriod("2025-02-01", "2025-02-28", "0.20", "10"),
	}
	span := billing.DateRange{
		Start: billing.MustParseDate("2025-01-22"),
		End:   billing.MustParseDate("2025-02-10"),
	}

	a := billing.AllocateOverlap(span, periods, billing.FlatUsage(dec("100")),
		false, dec("0.21"), billing.DefaultAllocationConfig())

	// 100 * 0.5 * 0.10 + 100 * 0.5 * 0.20 = 15
	assertDec(t, "15", a.EnergyNet)
	assertDec(t, "18.15", a.EnergyGross)
	assertDec(t, "10", a.FixedFeeNet)
	assertDec(t, "12.1", a.FixedFeeGross)
	assertDec(t, "25", a.NetTotal())
	assertDec(t, "30.25", a.GrossTotal())
}

func TestAllocateOverlap_InclusiveDayCounts(t *testing.T) {
	// A one-day overlap still weighs 1/(1+n); both endpoints count.
	periods := []billing.DistributionPeriod{
		flatPeriod("2025-01-01", "2025-01-31", "0.10", "0"),
		flatPeriod("2025-02-01", "2025-02-28", "0.20", "0"),
	}
	span := billing.DateRange{
		Start: billing.MustParseDate("2025-01-31"),
		End:   billing.MustParseDate("2025-02-03"),
	}

	a := billing.AllocateOverlap(span, periods, billing.FlatUsage(dec("100")),
		false, dec("0"), billing.DefaultAllocationConfig())

	// 1 day of 4 at 0.10, 3 of 4 at 0.20: 100*(0.25*0.1 + 0.75*0.2) = 17.5
	assertDec(t, "17.5", a.EnergyNet)
}

func TestAllocateOverlap_NoOverlap_ZeroAllocation(t *testing.T) {
	periods := []billing.DistributionPeriod{
		flatPeriod("2025-01-01", "2025-01-31", "0.10", "10"),
	}
	span := billing.DateRange{
		Start: billing.MustParseDate("2025-03-01"),
		End:   billing.MustParseDate("2025-03-31"),
	}

	a := billing.AllocateOverlap(span, periods, billing.FlatUsage(dec("100")),
		false, dec("0.21"), billing.DefaultAllocationConfig())

	assert.True(t, a.NetTotal().IsZero())
	assert.True(t, a.GrossTotal().IsZero())
}

func TestAllocateOverlap_Dual_RecordedSplitUsed(t *testing.T) {
	// GIVEN: Usage carrying its own 60/40 day/night split
	// THEN: The recorded split prices the zones, not the configured ratio

	periods := []billing.DistributionPeriod{
		dualPeriod("2025-01-01", "2025-01-31", "0.10", "0.05", "0"),
		dualPeriod("2025-02-01", "2025-02-28", "0.10", "0.05", "0"),
	}
	span := billing.DateRange{
		Start: billing.MustParseDate("2025-01-22"),
		End:   billing.MustParseDate("2025-02-10"),
	}

	a := billing.AllocateOverlap(span, periods, billing.SplitUsage(dec("60"), dec("40")),
		true, dec("0"), billing.DefaultAllocationConfig())

	// Prices are constant across both periods, so the weighting cancels:
	// 60*0.10 + 40*0.05 = 8
	assertDec(t, "8", a.EnergyNet)
}

func TestAllocateOverlap_Dual_MissingSplit_ConfiguredRatio(t *testing.T) {
	// Usage without a recorded split is apportioned 0.7/0.3 before pricing.
	periods := []billing.DistributionPeriod{
		dualPeriod("2025-01-01", "2025-01-31", "0.10", "0.05", "0"),
		dualPeriod("2025-02-01", "2025-02-28", "0.10", "0.05", "0"),
	}
	span := billing.DateRange{
		Start: billing.MustParseDate("2025-01-22"),
		End:   billing.MustParseDate("2025-02-10"),
	}

	a := billing.AllocateOverlap(span, periods, billing.FlatUsage(dec("100")),
		true, dec("0"), billing.DefaultAllocationConfig())

	// 70*0.10 + 30*0.05 = 8.5
	assertDec(t, "8.5", a.EnergyNet)
}
