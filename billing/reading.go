/*
reading.go - Meter reading snapshot for one calendar period

PURPOSE:
  A MeterReading captures the register state of every physical meter in the
  building at (roughly) the end of one calendar month. Two stations are
  recorded (the whole-building main meter and the lower sub-meter), each
  either as one combined register (single tariff) or as separate day/night
  registers (dual tariff). A third, always-single-tariff register covers the
  nested consumption point under the lower sub-meter.

INVARIANT:
  Per station, exactly one of {combined, day+night} is populated, consistent
  with that station's Dual flag. Validate() enforces this; the reconciler
  assumes it.

LIFECYCLE:
  Created and updated via external input (API). Immutable once used for
  billing, except for tariff-flag corrections; re-running billing after a
  correction overwrites the affected bills.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// STATION READING - One physical meter, single- or dual-tariff
// =============================================================================

// StationReading is the register state of one metering station. When Dual is
// false only Combined is meaningful; when true only Day and Night are.
type StationReading struct {
	Dual     bool
	Combined decimal.Decimal
	Day      decimal.Decimal
	Night    decimal.Decimal
}

// SingleStation builds a single-tariff station state.
func SingleStation(combined decimal.Decimal) StationReading {
	return StationReading{Dual: false, Combined: combined}
}

// DualStation builds a dual-tariff station state.
func DualStation(day, night decimal.Decimal) StationReading {
	return StationReading{Dual: true, Day: day, Night: night}
}

// Sum returns the station's total register value regardless of tariff mode.
func (s StationReading) Sum() decimal.Decimal {
	if s.Dual {
		return s.Day.Add(s.Night)
	}
	return s.Combined
}

func (s StationReading) validate() string {
	if s.Dual {
		if !s.Combined.IsZero() {
			return "dual-tariff station carries a combined register"
		}
		return ""
	}
	if !s.Day.IsZero() || !s.Night.IsZero() {
		return "single-tariff station carries day/night registers"
	}
	return ""
}

// =============================================================================
// METER READING - Snapshot of all stations for one period
// =============================================================================

// MeterReading is the snapshot of meter states for one year-month period.
type MeterReading struct {
	// Period is the calendar month this reading closes.
	Period YearMonth

	// TakenAt is the literal date the reading was physically taken, when
	// known. When absent the last day of Period is assumed.
	TakenAt *Date

	// Main is the whole-building meter; Lower the sub-meter nested under it.
	Main  StationReading
	Lower StationReading

	// Nested is the register of the always-single-tariff point nested under
	// the lower sub-meter.
	Nested decimal.Decimal
}

// Validate checks the one-variant-per-station invariant.
func (r *MeterReading) Validate() error {
	if msg := r.Main.validate(); msg != "" {
		return &ReadingInvariantError{Period: r.Period, Station: "main", Detail: msg}
	}
	if msg := r.Lower.validate(); msg != "" {
		return &ReadingInvariantError{Period: r.Period, Station: "lower", Detail: msg}
	}
	return nil
}

// Date returns the effective calendar date of the reading: TakenAt when
// recorded, otherwise the last day of the reading's month.
func (r *MeterReading) Date() Date {
	if r.TakenAt != nil {
		return *r.TakenAt
	}
	return r.Period.LastDay()
}
