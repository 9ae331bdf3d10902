package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnet/splitmeter/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return billing.MustDecimal(s) }

// assertDec compares a decimal against its expected string value.
func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func dualReading(period string, mainDay, mainNight, lowerDay, lowerNight, nested string) *billing.MeterReading {
	return &billing.MeterReading{
		Period: billing.MustParseYearMonth(period),
		Main:   billing.DualStation(dec(mainDay), dec(mainNight)),
		Lower:  billing.DualStation(dec(lowerDay), dec(lowerNight)),
		Nested: dec(nested),
	}
}

func singleReading(period string, main, lower, nested string) *billing.MeterReading {
	return &billing.MeterReading{
		Period: billing.MustParseYearMonth(period),
		Main:   billing.SingleStation(dec(main)),
		Lower:  billing.SingleStation(dec(lower)),
		Nested: dec(nested),
	}
}

// =============================================================================
// STATION RECONCILIATION BRANCHES
// =============================================================================

func TestReconcile_BothDual_PerZoneDeltas(t *testing.T) {
	// GIVEN: Both readings dual-tariff on both stations
	// WHEN: Reconciling
	// THEN: Usage is the per-register delta, split preserved

	prev := dualReading("2025-03", "10000", "5000", "4000", "2000", "1000")
	cur := dualReading("2025-04", "10300", "5150", "4120", "2060", "1060")

	b := billing.Reconcile(cur, prev)

	require.True(t, b.Main.HasSplit())
	assertDec(t, "300", *b.Main.Day)
	assertDec(t, "150", *b.Main.Night)
	assertDec(t, "450", b.Main.Total)

	require.True(t, b.Lower.HasSplit())
	assertDec(t, "120", *b.Lower.Day)
	assertDec(t, "60", *b.Lower.Night)
}

func TestReconcile_BothSingle_CombinedDelta(t *testing.T) {
	prev := singleReading("2025-03", "20000", "8000", "1000")
	cur := singleReading("2025-04", "20450", "8180", "1060")

	b := billing.Reconcile(cur, prev)

	assert.False(t, b.Main.HasSplit())
	assertDec(t, "450", b.Main.Total)
	assertDec(t, "180", b.Lower.Total)
	assertDec(t, "60", b.Nested.Total)
}

func TestReconcile_DualToSingle_SplitIsLost(t *testing.T) {
	// GIVEN: Previous reading was dual, current merged back to one register
	// THEN: Total is combined minus (day+night); no split survives

	prev := dualReading("2025-03", "10000", "5000", "4000", "2000", "1000")
	cur := singleReading("2025-04", "15450", "6180", "1060")

	b := billing.Reconcile(cur, prev)

	assert.False(t, b.Main.HasSplit())
	assertDec(t, "450", b.Main.Total)
	assertDec(t, "180", b.Lower.Total)
}

func TestReconcile_SingleToDual_SplitByCurrentRatio(t *testing.T) {
	// GIVEN: Previous reading single, current dual
	// WHEN: Reconciling
	// THEN: The total delta is apportioned by the current day/night register
	//       ratio, not by a fixed constant

	prev := singleReading("2025-03", "800", "0", "0")
	cur := &billing.MeterReading{
		Period: billing.MustParseYearMonth("2025-04"),
		Main:   billing.DualStation(dec("900"), dec("300")),
		Lower:  billing.SingleStation(dec("0")),
		Nested: decimal.Zero,
	}

	b := billing.Reconcile(cur, prev)

	// total = (900+300) - 800 = 400; day share = 400 * 900/1200 = 300
	require.True(t, b.Main.HasSplit())
	assertDec(t, "400", b.Main.Total)
	assertDec(t, "300", *b.Main.Day)
	assertDec(t, "100", *b.Main.Night)
}

func TestReconcile_NoPrevious_AllZero(t *testing.T) {
	cur := singleReading("2025-04", "20450", "8180", "1060")

	b := billing.Reconcile(cur, nil)

	assertDec(t, "0", b.Main.Total)
	assertDec(t, "0", b.Upper.Total)
	assertDec(t, "0", b.Nested.Total)
	assert.False(t, b.Main.HasSplit())
}

func TestReconcile_NegativeUsage_Propagated(t *testing.T) {
	// GIVEN: Current register below previous (meter swap)
	// THEN: The negative delta is kept as-is, not clamped

	prev := singleReading("2025-03", "20000", "8000", "1000")
	cur := singleReading("2025-04", "150", "8180", "1060")

	b := billing.Reconcile(cur, prev)
	assertDec(t, "-19850", b.Main.Total)
}

// =============================================================================
// DERIVED CONSUMPTION POINTS
// =============================================================================

func TestReconcile_DerivedPoints_BothDual(t *testing.T) {
	// GIVEN: Main 450 (300/150), lower 180 (120/60), nested 60
	// THEN: Residual = lower - nested split by lower's own ratio,
	//       upper = per-zone main - lower

	prev := dualReading("2025-03", "10000", "5000", "4000", "2000", "1000")
	cur := dualReading("2025-04", "10300", "5150", "4120", "2060", "1060")

	b := billing.Reconcile(cur, prev)

	// residual total 120; day = 120 * 120/180 = 80
	require.True(t, b.LowerResidual.HasSplit())
	assertDec(t, "120", b.LowerResidual.Total)
	assertDec(t, "80", *b.LowerResidual.Day)
	assertDec(t, "40", *b.LowerResidual.Night)

	require.True(t, b.Upper.HasSplit())
	assertDec(t, "180", *b.Upper.Day)
	assertDec(t, "90", *b.Upper.Night)

	// Conservation: the three billable points sum back to main.
	sum := b.Upper.Total.Add(b.LowerResidual.Total).Add(b.Nested.Total)
	assertDec(t, "450", sum)
}

func TestReconcile_DerivedPoints_Flat(t *testing.T) {
	prev := singleReading("2025-03", "10000", "4000", "1000")
	cur := singleReading("2025-04", "11000", "4400", "1100")

	b := billing.Reconcile(cur, prev)

	assertDec(t, "1000", b.Main.Total)
	assertDec(t, "300", b.LowerResidual.Total)
	assertDec(t, "100", b.Nested.Total)
	assertDec(t, "600", b.Upper.Total)
	assert.False(t, b.Upper.HasSplit())
}

func TestUsageBreakdown_ForUnit_BuildingIsMain(t *testing.T) {
	prev := singleReading("2025-03", "10000", "4000", "1000")
	cur := singleReading("2025-04", "11000", "4400", "1100")

	b := billing.Reconcile(cur, prev)

	assertDec(t, "1000", b.ForUnit(billing.UnitBuilding).Total)
	assertDec(t, "600", b.ForUnit(billing.UnitUpper).Total)
	assertDec(t, "300", b.ForUnit(billing.UnitLowerResidual).Total)
	assertDec(t, "100", b.ForUnit(billing.UnitNested).Total)
}

// =============================================================================
// READING VALIDATION
// =============================================================================

func TestMeterReading_Validate_DualWithCombined_Rejected(t *testing.T) {
	r := &billing.MeterReading{
		Period: billing.MustParseYearMonth("2025-04"),
		Main: billing.StationReading{
			Dual:     true,
			Day:      dec("100"),
			Night:    dec("50"),
			Combined: dec("150"),
		},
		Lower: billing.SingleStation(dec("40")),
	}

	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrInvalidReading)
}

func TestMeterReading_Date_FallsBackToLastOfMonth(t *testing.T) {
	r := singleReading("2025-04", "1", "1", "0")
	assert.Equal(t, "2025-04-30", r.Date().String())

	taken := billing.MustParseDate("2025-04-28")
	r.TakenAt = &taken
	assert.Equal(t, "2025-04-28", r.Date().String())
}
