/*
usage.go - Usage reconciliation across tariff-type transitions

PURPOSE:
  Computes energy consumed at each logical consumption point for the period
  between two meter readings. The hard part is that either station may have
  switched between single- and dual-tariff metering between the two
  readings, so four reconciliation branches exist per station:

    previous \ current | Single                  | Dual
    -------------------+-------------------------+--------------------------
    Single             | combined − combined     | sum − combined, split by
                       | (no split)              | the CURRENT day/night ratio
    Dual               | combined − (day+night)  | day − day, night − night
                       | (no split)              |

  Each branch is a pure function from register pairs to a usage value that
  either carries a day/night split or only a flat total.

DERIVED POINTS:
  UPPER is not metered: with splits on both stations it is the per-zone
  difference MAIN − LOWER; otherwise the flat MAIN − LOWER-residual − NESTED.
  The LOWER register includes NESTED, so the residual-of-lower point is
  LOWER − NESTED wherever the nested point must be isolated from its parent.

NEGATIVE USAGE:
  Never an error. A negative delta signals a meter replacement or read-order
  anomaly; it is propagated as data for downstream interpretation, not
  clamped and not guessed at.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// USAGE - Energy consumed at one point, with or without a zone split
// =============================================================================

// Usage is the energy consumed at one consumption point over one billing
// period. Day and Night are nil when the split is unknown (any branch that
// crosses a single-tariff reading loses the split).
type Usage struct {
	Total decimal.Decimal
	Day   *decimal.Decimal
	Night *decimal.Decimal
}

// FlatUsage builds a usage value without a zone split.
func FlatUsage(total decimal.Decimal) Usage {
	return Usage{Total: Round4(total)}
}

// SplitUsage builds a usage value with a day/night split.
func SplitUsage(day, night decimal.Decimal) Usage {
	d := Round4(day)
	n := Round4(night)
	return Usage{Total: d.Add(n), Day: &d, Night: &n}
}

// HasSplit reports whether the day/night breakdown is known.
func (u Usage) HasSplit() bool { return u.Day != nil && u.Night != nil }

// Sub subtracts another usage per zone when both carry splits, otherwise
// flat.
func (u Usage) Sub(o Usage) Usage {
	if u.HasSplit() && o.HasSplit() {
		return SplitUsage(u.Day.Sub(*o.Day), u.Night.Sub(*o.Night))
	}
	return FlatUsage(u.Total.Sub(o.Total))
}

// =============================================================================
// USAGE BREAKDOWN - All consumption points for one period
// =============================================================================

// UsageBreakdown holds reconciled usage for every logical point.
//
// Lower is the raw sub-meter delta and still includes Nested;
// LowerResidual = Lower − Nested is the billable residual point.
type UsageBreakdown struct {
	Main          Usage
	Lower         Usage
	LowerResidual Usage
	Nested        Usage
	Upper         Usage
}

// ForUnit returns the usage of a billable unit.
func (b UsageBreakdown) ForUnit(unit UnitID) Usage {
	switch unit {
	case UnitUpper:
		return b.Upper
	case UnitLowerResidual:
		return b.LowerResidual
	case UnitNested:
		return b.Nested
	case UnitBuilding:
		return b.Main
	}
	return Usage{}
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconcile computes per-point usage for the period between two readings.
// previous may be nil (first reading): every usage is zero with no split,
// since there is no billable delta yet.
func Reconcile(current *MeterReading, previous *MeterReading) UsageBreakdown {
	if previous == nil {
		zero := FlatUsage(decimal.Zero)
		return UsageBreakdown{Main: zero, Lower: zero, LowerResidual: zero, Nested: zero, Upper: zero}
	}

	main := reconcileStation(current.Main, previous.Main)
	lower := reconcileStation(current.Lower, previous.Lower)
	nested := FlatUsage(current.Nested.Sub(previous.Nested))
	residual := residualOfLower(lower, nested)

	return UsageBreakdown{
		Main:          main,
		Lower:         lower,
		LowerResidual: residual,
		Nested:        nested,
		Upper:         deriveUpper(main, lower, residual, nested),
	}
}

// reconcileStation is the four-branch match over {Single, Dual} for the
// current and previous state of one station.
func reconcileStation(cur, prev StationReading) Usage {
	switch {
	case cur.Dual && prev.Dual:
		return SplitUsage(cur.Day.Sub(prev.Day), cur.Night.Sub(prev.Night))

	case !cur.Dual && prev.Dual:
		// Meter merged back to a single register: the split is unknowable.
		return FlatUsage(cur.Combined.Sub(prev.Day.Add(prev.Night)))

	case cur.Dual && !prev.Dual:
		// Tariff just split. Apportion the total by the current period's own
		// day/night ratio, not a fixed one.
		total := cur.Day.Add(cur.Night).Sub(prev.Combined)
		curSum := cur.Day.Add(cur.Night)
		if curSum.IsZero() {
			return FlatUsage(total)
		}
		day := Round4(total.Mul(cur.Day).Div(curSum))
		night := Round4(total).Sub(day)
		return SplitUsage(day, night)

	default:
		return FlatUsage(cur.Combined.Sub(prev.Combined))
	}
}

// residualOfLower isolates the nested point from its parent meter. When the
// lower station carries a split, the nested (always flat) usage is removed
// proportionally to the lower split so per-zone quantities stay consistent.
func residualOfLower(lower, nested Usage) Usage {
	if !lower.HasSplit() || lower.Total.IsZero() {
		return FlatUsage(lower.Total.Sub(nested.Total))
	}
	total := lower.Total.Sub(nested.Total)
	day := Round4(total.Mul(*lower.Day).Div(lower.Total))
	night := Round4(total).Sub(day)
	return SplitUsage(day, night)
}

// deriveUpper computes the non-metered upper point. Per-zone when both
// stations produced splits; otherwise flat from the totals.
func deriveUpper(main, lower, residual, nested Usage) Usage {
	if main.HasSplit() && lower.HasSplit() {
		return SplitUsage(main.Day.Sub(*lower.Day), main.Night.Sub(*lower.Night))
	}
	return FlatUsage(main.Total.Sub(residual.Total).Sub(nested.Total))
}
