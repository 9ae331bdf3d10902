/*
Package billing provides the electricity usage-reconciliation and
cost-allocation engine.

PURPOSE:
  This package contains the computational core that turns a pair of meter
  readings and a provider invoice into one bill per consumption unit. It
  derives per-unit energy from a hierarchy of physical and virtual meters
  across tariff-type changes, and allocates the invoice's monetary cost to
  each unit's billing period even when that period straddles invoice
  sub-periods with different per-kWh prices.

KEY CONCEPTS IN THIS FILE (types.go):
  - Zone: a tariff zone (day/night for dual-tariff, flat otherwise)
  - UnitID: a billable consumption point (upper, lower-residual, nested,
    whole-building aggregate)
  - FeeType/FeeUnit: classification of invoice fee line items
  - ZonePrices: composed netto prices per kWh keyed by zone

DESIGN PRINCIPLES:
  1. Purity: nothing in this package touches storage, HTTP, or files
  2. Precision: decimal.Decimal everywhere; 4 decimal places internally,
     2 at presentation boundaries
  3. Determinism: same readings + same invoice = same bills, always

SEE ALSO:
  - usage.go: meter reconciliation across tariff transitions
  - tariff.go: per-zone price composition
  - distribution.go: invoice sub-period extraction
  - overlap.go: day-weighted cost allocation
  - manager.go: the billing run orchestrator
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PRECISION
// =============================================================================

const (
	// InternalPlaces is the rounding applied to every intermediate monetary
	// and per-kWh value.
	InternalPlaces int32 = 4

	// PresentationPlaces is the rounding applied when values leave the core
	// (DTOs, persisted bill fields shown to users).
	PresentationPlaces int32 = 2
)

// Round4 rounds to the internal precision.
func Round4(d decimal.Decimal) decimal.Decimal { return d.Round(InternalPlaces) }

// Round2 rounds to the presentation precision.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(PresentationPlaces) }

// MustDecimal parses a decimal literal and panics on malformed input.
// For constants and test fixtures only.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// TARIFF ZONES
// =============================================================================

// Zone identifies a tariff zone on an invoice. Dual-tariff invoices price
// day and night separately; flat-tariff invoices carry a single flat zone.
type Zone string

const (
	ZoneDay   Zone = "day"
	ZoneNight Zone = "night"
	ZoneFlat  Zone = "flat"
)

// ZonePrices holds the composed netto price per kWh for each zone that has a
// non-zero contribution. Absence of a zone means "no price for this zone".
type ZonePrices map[Zone]decimal.Decimal

// For returns the zone's price, zero when the zone is absent.
func (p ZonePrices) For(z Zone) decimal.Decimal {
	if v, ok := p[z]; ok {
		return v
	}
	return decimal.Zero
}

// =============================================================================
// CONSUMPTION UNITS
// =============================================================================

// UnitID identifies a billable consumption point.
//
// The meter hierarchy is MAIN ⊇ LOWER ⊇ NESTED. UPPER is never metered and
// is always derived as MAIN − LOWER. LOWER's register includes NESTED, so the
// residual-of-lower unit is LOWER − NESTED.
type UnitID string

const (
	UnitUpper         UnitID = "upper"
	UnitLowerResidual UnitID = "residual-lower"
	UnitNested        UnitID = "nested"

	// UnitBuilding is the aggregate whole-building bill, computed from the
	// invoice totals directly rather than by summing unit bills.
	UnitBuilding UnitID = "whole-building"
)

// BillableUnits are the three non-aggregate units a billing run produces
// bills for, in persistence order.
var BillableUnits = []UnitID{UnitUpper, UnitLowerResidual, UnitNested}

// =============================================================================
// FEE CLASSIFICATION
// =============================================================================

// FeeUnit states how a fee line item is billed.
type FeeUnit string

const (
	FeePerKWh   FeeUnit = "kWh"
	FeePerMonth FeeUnit = "month"
)

// FeeType labels an invoice fee line item. The recognized sets below drive
// price composition and fixed-fee splitting; unrecognized labels are ignored.
type FeeType string

const (
	FeeQuality         FeeType = "quality"
	FeeVariableNetwork FeeType = "network-variable"
	FeeRenewable       FeeType = "renewable-source"
	FeeCogeneration    FeeType = "cogeneration"

	FeeFixedNetwork FeeType = "network-fixed"
	FeeTransitional FeeType = "transitional"
	FeeCapacity     FeeType = "capacity"
	FeeSubscription FeeType = "subscription"
)

// variableFeeTypes are the per-kWh fee labels that contribute to a zone's
// composed price.
var variableFeeTypes = map[FeeType]bool{
	FeeQuality:         true,
	FeeVariableNetwork: true,
	FeeRenewable:       true,
	FeeCogeneration:    true,
}

// fixedFeeTypes are the per-month fee labels split between units.
var fixedFeeTypes = map[FeeType]bool{
	FeeFixedNetwork: true,
	FeeTransitional: true,
	FeeCapacity:     true,
	FeeSubscription: true,
}

// IsVariableFee reports whether the label contributes to per-kWh prices.
func IsVariableFee(t FeeType) bool { return variableFeeTypes[t] }

// IsFixedFee reports whether the label is a per-month fixed fee.
func IsFixedFee(t FeeType) bool { return fixedFeeTypes[t] }

// =============================================================================
// ALLOCATION CONFIGURATION
// =============================================================================

// AllocationConfig carries the ratios the allocator needs. Injected rather
// than hard-coded so the number and split of units is not baked into the
// algorithm.
type AllocationConfig struct {
	// Shares maps each billable unit to its share of fixed per-month fees.
	// Shares should sum to 1.
	Shares map[UnitID]decimal.Decimal

	// DayRatio and NightRatio form the default day/night split used by the
	// single-period fallback price and wherever a dual-priced invoice meets
	// usage without a recorded day/night split.
	DayRatio   decimal.Decimal
	NightRatio decimal.Decimal
}

// DefaultAllocationConfig returns the historical configuration: three units
// with equal fixed-fee shares and a 0.7/0.3 day/night default.
func DefaultAllocationConfig() AllocationConfig {
	third := decimal.NewFromInt(1).DivRound(decimal.NewFromInt(3), InternalPlaces)
	return AllocationConfig{
		Shares: map[UnitID]decimal.Decimal{
			UnitUpper:         third,
			UnitLowerResidual: third,
			UnitNested:        third,
		},
		DayRatio:   MustDecimal("0.7"),
		NightRatio: MustDecimal("0.3"),
	}
}

// Share returns the fixed-fee share for a unit, zero if unconfigured.
func (c AllocationConfig) Share(unit UnitID) decimal.Decimal {
	if s, ok := c.Shares[unit]; ok {
		return s
	}
	return decimal.Zero
}

// UnitCount returns the number of configured billable units.
func (c AllocationConfig) UnitCount() int { return len(c.Shares) }
