package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnet/splitmeter/billing"
)

// =============================================================================
// ZONE PRICE COMPOSITION
// =============================================================================

func TestComposeZonePrices_Dual_SalePlusVariableFees(t *testing.T) {
	// GIVEN: Day/night sales plus per-kWh fees (one zoned, two zone-less)
	// WHEN: Composing zone prices
	// THEN: Each zone gets its sale price plus every matching variable fee

	sales := []billing.SaleRecord{
		{Zone: billing.ZoneDay, UnitPrice: dec("0.12"), Quantity: dec("1000"), Gross: dec("120")},
		{Zone: billing.ZoneNight, UnitPrice: dec("0.08"), Quantity: dec("500"), Gross: dec("40")},
	}
	fees := []billing.FeeRecord{
		{Type: billing.FeeQuality, Unit: billing.FeePerKWh, UnitPrice: dec("0.01")},
		{Type: billing.FeeVariableNetwork, Zone: billing.ZoneDay, Unit: billing.FeePerKWh, UnitPrice: dec("0.02")},
		{Type: billing.FeeRenewable, Unit: billing.FeePerKWh, UnitPrice: dec("0.005")},
		// Per-month fee must not leak into the per-kWh price.
		{Type: billing.FeeSubscription, Unit: billing.FeePerMonth, UnitPrice: dec("4.50"), Quantity: dec("1")},
	}

	prices := billing.ComposeZonePrices(true, sales, fees, nil)

	assertDec(t, "0.155", prices.For(billing.ZoneDay))
	assertDec(t, "0.095", prices.For(billing.ZoneNight))
	assertDec(t, "0", prices.For(billing.ZoneFlat))
}

func TestComposeZonePrices_Flat_SingleZone(t *testing.T) {
	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("0.1"), Quantity: dec("1000"), Gross: dec("100")},
	}
	fees := []billing.FeeRecord{
		{Type: billing.FeeCogeneration, Unit: billing.FeePerKWh, UnitPrice: dec("0.003")},
	}

	prices := billing.ComposeZonePrices(false, sales, fees, nil)

	assertDec(t, "0.103", prices.For(billing.ZoneFlat))
	assert.Len(t, prices, 1)
}

func TestComposeZonePrices_FixedFeeTypes_Excluded(t *testing.T) {
	// Fixed fee types never contribute to the per-kWh price, even if a data
	// error marks them per-kWh.
	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("0.1"), Quantity: dec("1000"), Gross: dec("100")},
	}
	fees := []billing.FeeRecord{
		{Type: billing.FeeFixedNetwork, Unit: billing.FeePerKWh, UnitPrice: dec("0.5")},
		{Type: billing.FeeCapacity, Unit: billing.FeePerKWh, UnitPrice: dec("0.2")},
	}

	prices := billing.ComposeZonePrices(false, sales, fees, nil)
	assertDec(t, "0.1", prices.For(billing.ZoneFlat))
}

func TestComposeZonePrices_Rounding_FourPlaces(t *testing.T) {
	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("0.12345"), Quantity: dec("1000"), Gross: dec("123.45")},
	}

	prices := billing.ComposeZonePrices(false, sales, nil, nil)
	assertDec(t, "0.1235", prices.For(billing.ZoneFlat))
}

// =============================================================================
// PRICE SANITY THRESHOLD
// =============================================================================

func TestComposeZonePrices_SuspiciousPrice_Recovered(t *testing.T) {
	// GIVEN: A sale whose unit price is clearly a gross total (150/kWh)
	// WHEN: Composing with a warning sink
	// THEN: The price is recomputed as gross/quantity, substituted, and a
	//       warning is emitted; the run does not fail

	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("150"), Quantity: dec("1000"), Gross: dec("120")},
	}

	var warnings []billing.SuspiciousPriceWarning
	warn := func(w billing.SuspiciousPriceWarning) { warnings = append(warnings, w) }

	prices := billing.ComposeZonePrices(false, sales, nil, warn)

	assertDec(t, "0.12", prices.For(billing.ZoneFlat))
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Substituted)
	assertDec(t, "150", warnings[0].RawPrice)
	assertDec(t, "0.12", warnings[0].Recomputed)
}

func TestComposeZonePrices_SuspiciousPrice_NoRecoveryPossible(t *testing.T) {
	// With zero quantity the recomputation cannot run; the raw price is kept
	// and the warning flags no substitution.
	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("150"), Quantity: dec("0"), Gross: dec("120")},
	}

	var warnings []billing.SuspiciousPriceWarning
	warn := func(w billing.SuspiciousPriceWarning) { warnings = append(warnings, w) }

	prices := billing.ComposeZonePrices(false, sales, nil, warn)

	assertDec(t, "150", prices.For(billing.ZoneFlat))
	require.Len(t, warnings, 1)
	assert.False(t, warnings[0].Substituted)
}

func TestComposeZonePrices_PriceAtThreshold_NotSuspicious(t *testing.T) {
	sales := []billing.SaleRecord{
		{Zone: billing.ZoneFlat, UnitPrice: dec("5"), Quantity: dec("10"), Gross: dec("50")},
	}

	var warnings []billing.SuspiciousPriceWarning
	warn := func(w billing.SuspiciousPriceWarning) { warnings = append(warnings, w) }

	prices := billing.ComposeZonePrices(false, sales, nil, warn)

	assertDec(t, "5", prices.For(billing.ZoneFlat))
	assert.Empty(t, warnings)
}
