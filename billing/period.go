package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day abstraction (all interval arithmetic is day-granular)
// =============================================================================

// Date is a calendar day. Meter-reading dates and invoice sub-period
// boundaries are all day-granular; nothing in the engine needs finer
// resolution.
type Date struct {
	t time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t.UTC()}, nil
}

// MustParseDate is ParseDate for fixtures; panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

// FirstOfMonth returns the same month with the day clamped to 1. Invoice
// selection treats an invoice as covering its start month in full.
func (d Date) FirstOfMonth() Date { return NewDate(d.Year(), d.Month(), 1) }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// DaysBetween returns the signed number of days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// Later returns the later of two dates.
func Later(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// Earlier returns the earlier of two dates.
func Earlier(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// =============================================================================
// DATE RANGE - Closed interval [Start, End]
// =============================================================================

// DateRange is an inclusive calendar interval. Both invoice sub-periods and
// unit billing periods are closed ranges; a one-day range has Start == End.
type DateRange struct {
	Start Date
	End   Date
}

// Valid reports whether the range is well-formed (end not before start).
func (r DateRange) Valid() bool { return r.Start.BeforeOrEqual(r.End) }

// Contains reports whether the date lies within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Days returns the inclusive day count: (End − Start) + 1.
func (r DateRange) Days() int {
	if !r.Valid() {
		return 0
	}
	return DaysBetween(r.Start, r.End) + 1
}

// Overlap intersects two ranges. ok is false when they share no days.
func (r DateRange) Overlap(o DateRange) (DateRange, bool) {
	ov := DateRange{Start: Later(r.Start, o.Start), End: Earlier(r.End, o.End)}
	return ov, ov.Valid()
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// YEAR-MONTH - Billing period key
// =============================================================================

// YearMonth is the calendar period a meter reading (and therefore a bill)
// belongs to, in "YYYY-MM" form.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MustParseYearMonth is ParseYearMonth for fixtures.
func MustParseYearMonth(s string) YearMonth {
	ym, err := ParseYearMonth(s)
	if err != nil {
		panic(err)
	}
	return ym
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

// FirstDay returns the first calendar day of the month.
func (ym YearMonth) FirstDay() Date { return NewDate(ym.Year, ym.Month, 1) }

// LastDay returns the last calendar day of the month.
func (ym YearMonth) LastDay() Date {
	return NewDate(ym.Year, ym.Month, 1).AddMonths(1).AddDays(-1)
}

// Prev returns the preceding month.
func (ym YearMonth) Prev() YearMonth {
	d := ym.FirstDay().AddMonths(-1)
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	d := ym.FirstDay().AddMonths(1)
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// Before orders year-months chronologically.
func (ym YearMonth) Before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
