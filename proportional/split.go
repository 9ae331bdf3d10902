/*
Package proportional implements the simple single-rate cost split used for
water and gas.

PURPOSE:
  Water and gas invoices carry one rate, no tariff hierarchy and no
  overlapping price periods, so their cost splits by plain usage proportion.
  This package allocates one invoice total across the building's units so
  the allocations sum to the total exactly.

REMAINDER HANDLING:
  Proportional shares rounded to cents rarely sum to the invoice total. The
  difference (at most a few cents) is assigned to the unit with the largest
  usage, which absorbs rounding noise where it is least visible.
*/
package proportional

import (
	"github.com/shopspring/decimal"

	"github.com/hausnet/splitmeter/billing"
)

// Utility names the metered medium the split applies to.
type Utility string

const (
	UtilityWater Utility = "water"
	UtilityGas   Utility = "gas"
)

// Share is one unit's allocated cost.
type Share struct {
	Unit   billing.UnitID
	Usage  decimal.Decimal
	Amount decimal.Decimal
}

// Split allocates an invoice total across units in proportion to their
// usage. Units are processed in billing.BillableUnits order; unknown units
// in the usage map are ignored. A zero total usage yields zero shares.
func Split(total decimal.Decimal, usages map[billing.UnitID]decimal.Decimal) []Share {
	sum := decimal.Zero
	for _, unit := range billing.BillableUnits {
		sum = sum.Add(usages[unit])
	}

	shares := make([]Share, 0, len(billing.BillableUnits))
	allocated := decimal.Zero
	largest := -1
	for i, unit := range billing.BillableUnits {
		usage := usages[unit]
		amount := decimal.Zero
		if sum.IsPositive() {
			amount = billing.Round2(total.Mul(usage).Div(sum))
		}
		allocated = allocated.Add(amount)
		shares = append(shares, Share{Unit: unit, Usage: usage, Amount: amount})
		if largest == -1 || usage.GreaterThan(shares[largest].Usage) {
			largest = i
		}
	}

	// Assign the rounding remainder to the heaviest consumer.
	if remainder := total.Sub(allocated); !remainder.IsZero() && sum.IsPositive() {
		shares[largest].Amount = shares[largest].Amount.Add(remainder)
	}
	return shares
}
