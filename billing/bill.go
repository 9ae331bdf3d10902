package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BILL - One unit's cost for one billing period
// =============================================================================

// Bill is the outcome of a billing run for one unit and one period. One bill
// exists per (unit, period); re-running billing overwrites the numeric
// fields of an existing bill rather than duplicating it.
type Bill struct {
	ID     string
	Unit   UnitID
	Period YearMonth

	// Span is the reading-to-reading date range the bill covers.
	Span DateRange

	// InvoiceID and ReadingPeriod link the bill to its inputs. The reading
	// pair is (ReadingPeriod, the reading immediately preceding it).
	InvoiceID     string
	ReadingPeriod YearMonth

	// TotalKWh is the unit's reconciled usage; DayKWh/NightKWh are set when
	// the reconciliation preserved a zone split.
	TotalKWh decimal.Decimal
	DayKWh   *decimal.Decimal
	NightKWh *decimal.Decimal

	EnergyGross       decimal.Decimal
	DistributionGross decimal.Decimal
	NetTotal          decimal.Decimal
	GrossTotal        decimal.Decimal

	GeneratedAt time.Time
}
