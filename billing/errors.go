/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API layer, scheduler) map these to their own surfaces.

ERROR CATEGORIES:
  1. NotFound errors - no invoice covers the period, no reading exists.
     Fatal for a billing run; surfaced to the caller.
  2. Validation errors - malformed readings or periods. Client input errors.
  3. Suspicious values - a per-kWh price over the sanity threshold. These are
     NOT errors: the composer recovers locally and emits a warning.

NEGATIVE USAGE:
  A negative reconciled usage (meter replacement, read-order anomaly) is
  deliberately not represented here. It is valid data, propagated into bills
  for downstream interpretation, never clamped or rejected.

USAGE:
  if billing.IsNotFound(err) {
      // 404 at the HTTP boundary
  }

SEE ALSO:
  - manager.go: produces the NotFound errors
  - tariff.go: emits suspicious-price warnings
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvoiceNotFound is returned when no invoice's coverage window
	// contains the requested billing period.
	ErrInvoiceNotFound = errors.New("no invoice covers the period")

	// ErrReadingNotFound is returned when no meter reading exists for the
	// requested billing period.
	ErrReadingNotFound = errors.New("no meter reading for the period")

	// ErrBillNotFound is returned by stores when a (unit, period) bill
	// does not exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrInvalidReading is returned when a reading violates the
	// one-variant-per-station invariant.
	ErrInvalidReading = errors.New("invalid meter reading")

	// ErrInvalidPeriod is returned when a date range ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ReadingInvariantError explains which station of a reading is inconsistent
// with its tariff flag.
type ReadingInvariantError struct {
	Period  YearMonth
	Station string // "main" or "lower"
	Detail  string
}

func (e *ReadingInvariantError) Error() string {
	return fmt.Sprintf("reading %s: station %s: %s", e.Period, e.Station, e.Detail)
}

func (e *ReadingInvariantError) Unwrap() error { return ErrInvalidReading }

// =============================================================================
// WARNINGS - Recovered locally, never fatal
// =============================================================================

// SuspiciousPriceWarning records a per-kWh price that exceeded the sanity
// threshold. The composer either substitutes a recomputed price or keeps the
// raw value; either way the run continues.
type SuspiciousPriceWarning struct {
	Zone        Zone
	RawPrice    decimal.Decimal
	Recomputed  decimal.Decimal
	Substituted bool
}

func (w SuspiciousPriceWarning) String() string {
	if w.Substituted {
		return fmt.Sprintf("zone %s: raw price %s over threshold, using recomputed %s",
			w.Zone, w.RawPrice, w.Recomputed)
	}
	return fmt.Sprintf("zone %s: price %s over threshold and recomputation did not help, keeping raw value",
		w.Zone, w.RawPrice)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error aborts a billing run because an input
// record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrReadingNotFound) ||
		errors.Is(err, ErrBillNotFound)
}

// IsClientError reports whether the error is due to invalid input data.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidReading) ||
		errors.Is(err, ErrInvalidPeriod)
}
