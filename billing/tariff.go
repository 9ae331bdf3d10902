/*
tariff.go - Per-zone netto price composition

PURPOSE:
  An invoice never states "the price per kWh" directly: the effective netto
  price of a zone is the energy sale price plus every recognized per-kWh
  distribution fee that applies to the zone (quality, variable-network,
  renewable-source, cogeneration). This file composes those components into
  one price per zone, for a whole invoice or for one distribution sub-period's
  restricted record set.

ROUNDING:
  Every component is rounded to 4 decimal places before summation and the
  sum is rounded to 4 places. Matches the provider's own arithmetic, which
  the result must reconcile against to the cent.

SANITY THRESHOLD:
  A per-kWh price above 5 monetary units almost certainly means a unit-scale
  parsing error upstream (e.g. a gross line total read as a unit price).
  When a zone's raw sale price exceeds the threshold, the composer recomputes
  it as gross/quantity and substitutes the recomputed value if that one is
  below the threshold; otherwise the raw value is kept. Either way a warning
  is emitted and the run continues; this is recovery, not failure.
*/
package billing

import "github.com/shopspring/decimal"

// PriceSanityThreshold is the per-kWh price above which a sale price is
// treated as a suspected unit-scale parsing error.
var PriceSanityThreshold = decimal.NewFromInt(5)

// WarnFunc receives suspicious-price warnings. Nil disables emission.
type WarnFunc func(SuspiciousPriceWarning)

// ComposeZonePrices computes the effective netto price per kWh for each
// tariff zone present in the given records: day and night zones for a
// dual-tariff record set, the flat zone otherwise. A zone appears in the
// result only if it has a non-zero contribution.
func ComposeZonePrices(dual bool, sales []SaleRecord, fees []FeeRecord, warn WarnFunc) ZonePrices {
	zones := []Zone{ZoneFlat}
	if dual {
		zones = []Zone{ZoneDay, ZoneNight}
	}

	prices := ZonePrices{}
	for _, zone := range zones {
		price := composeZone(zone, sales, fees, warn)
		if !price.IsZero() {
			prices[zone] = price
		}
	}
	return prices
}

// composeZone sums the zone's sale price and its recognized per-kWh fees.
func composeZone(zone Zone, sales []SaleRecord, fees []FeeRecord, warn WarnFunc) decimal.Decimal {
	price := decimal.Zero
	if sale, ok := saleForZone(zone, sales); ok {
		price = price.Add(Round4(sanitizedSalePrice(sale, warn)))
	}
	for _, fee := range fees {
		if fee.Unit != FeePerKWh || !IsVariableFee(fee.Type) || !fee.AppliesToZone(zone) {
			continue
		}
		price = price.Add(Round4(fee.UnitPrice))
	}
	return Round4(price)
}

// saleForZone finds the sale record matching a zone. Only the first match
// counts; a record set restricted to one sub-period carries at most one sale
// per zone.
func saleForZone(zone Zone, sales []SaleRecord) (SaleRecord, bool) {
	for _, s := range sales {
		if s.Zone == zone {
			return s, true
		}
	}
	return SaleRecord{}, false
}

// sanitizedSalePrice guards against unit-scale parsing errors upstream.
func sanitizedSalePrice(sale SaleRecord, warn WarnFunc) decimal.Decimal {
	raw := sale.UnitPrice
	if raw.LessThanOrEqual(PriceSanityThreshold) {
		return raw
	}

	w := SuspiciousPriceWarning{Zone: sale.Zone, RawPrice: raw}
	if sale.Quantity.IsPositive() {
		recomputed := Round4(sale.Gross.Div(sale.Quantity))
		if recomputed.LessThan(PriceSanityThreshold) {
			w.Recomputed = recomputed
			w.Substituted = true
			if warn != nil {
				warn(w)
			}
			return recomputed
		}
	}
	if warn != nil {
		warn(w)
	}
	return raw
}
