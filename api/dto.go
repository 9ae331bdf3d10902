/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal billing model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific rounding (internal 4 decimals, presented 2)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

PRESENTATION ROUNDING:
  Monetary fields are rounded to 2 decimal places on the way out.
  Internal computation keeps 4 decimal places end to end; DTOs are the
  only place presentation rounding happens.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/bill.go: Internal bill model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hausnet/splitmeter/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// StationReadingDTO represents one metering station's counters.
type StationReadingDTO struct {
	Dual     bool   `json:"dual"`
	Combined string `json:"combined,omitempty"`
	Day      string `json:"day,omitempty"`
	Night    string `json:"night,omitempty"`
}

// ReadingDTO represents a monthly meter reading.
type ReadingDTO struct {
	Period  string            `json:"period"`
	TakenAt string            `json:"taken_at,omitempty"`
	Main    StationReadingDTO `json:"main"`
	Lower   StationReadingDTO `json:"lower"`
	Nested  string            `json:"nested"`
}

// SaleRecordDTO represents one energy sale line on an invoice.
type SaleRecordDTO struct {
	Zone      string `json:"zone"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Gross     string `json:"gross"`
	VATRate   string `json:"vat_rate"`
}

// FeeRecordDTO represents one distribution fee line on an invoice.
type FeeRecordDTO struct {
	Type      string `json:"type"`
	Zone      string `json:"zone,omitempty"`
	Unit      string `json:"unit"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Gross     string `json:"gross"`
	VATRate   string `json:"vat_rate"`
	PeriodEnd string `json:"period_end"`
}

// InvoiceDTO represents a supplier invoice.
type InvoiceDTO struct {
	ID                string          `json:"id"`
	PeriodStart       string          `json:"period_start"`
	PeriodEnd         string          `json:"period_end"`
	DualTariff        bool            `json:"dual_tariff"`
	TotalEnergyKWh    string          `json:"total_energy_kwh"`
	EnergyGross       string          `json:"energy_gross"`
	DistributionGross string          `json:"distribution_gross"`
	VATRate           string          `json:"vat_rate"`
	Sales             []SaleRecordDTO `json:"sales"`
	Fees              []FeeRecordDTO  `json:"fees"`
}

// BillDTO represents a per-unit bill in API responses.
type BillDTO struct {
	ID                string  `json:"id"`
	Unit              string  `json:"unit"`
	Period            string  `json:"period"`
	SpanStart         string  `json:"span_start"`
	SpanEnd           string  `json:"span_end"`
	InvoiceID         string  `json:"invoice_id"`
	TotalKWh          string  `json:"total_kwh"`
	DayKWh            *string `json:"day_kwh,omitempty"`
	NightKWh          *string `json:"night_kwh,omitempty"`
	EnergyGross       string  `json:"energy_gross"`
	DistributionGross string  `json:"distribution_gross"`
	NetTotal          string  `json:"net_total"`
	GrossTotal        string  `json:"gross_total"`
	GeneratedAt       string  `json:"generated_at"`
}

// RunBillingRequest asks for a billing run over one year-month period.
type RunBillingRequest struct {
	Period string `json:"period"` // "YYYY-MM"
}

// RunResultDTO is the outcome of a billing run.
type RunResultDTO struct {
	Period    string    `json:"period"`
	State     string    `json:"state"`
	InvoiceID string    `json:"invoice_id,omitempty"`
	Bills     []BillDTO `json:"bills"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// SplitRequest asks for a proportional split of a shared utility amount.
type SplitRequest struct {
	Utility string            `json:"utility"` // "water" or "gas"
	Total   string            `json:"total"`
	Usages  map[string]string `json:"usages"` // unit -> metered usage
}

// SplitShareDTO is one unit's share of a proportional split.
type SplitShareDTO struct {
	Unit   string `json:"unit"`
	Usage  string `json:"usage"`
	Amount string `json:"amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// money renders a monetary amount at presentation precision.
func money(d decimal.Decimal) string {
	return billing.Round2(d).StringFixed(2)
}

func toReadingDTO(r billing.MeterReading) ReadingDTO {
	dto := ReadingDTO{
		Period: r.Period.String(),
		Main:   toStationDTO(r.Main),
		Lower:  toStationDTO(r.Lower),
		Nested: r.Nested.String(),
	}
	if r.TakenAt != nil {
		dto.TakenAt = r.TakenAt.String()
	}
	return dto
}

func toStationDTO(s billing.StationReading) StationReadingDTO {
	if s.Dual {
		return StationReadingDTO{Dual: true, Day: s.Day.String(), Night: s.Night.String()}
	}
	return StationReadingDTO{Combined: s.Combined.String()}
}

func fromStationDTO(dto StationReadingDTO) (billing.StationReading, error) {
	if dto.Dual {
		day, err := parseDec(dto.Day)
		if err != nil {
			return billing.StationReading{}, err
		}
		night, err := parseDec(dto.Night)
		if err != nil {
			return billing.StationReading{}, err
		}
		return billing.DualStation(day, night), nil
	}
	combined, err := parseDec(dto.Combined)
	if err != nil {
		return billing.StationReading{}, err
	}
	return billing.SingleStation(combined), nil
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:                inv.ID,
		PeriodStart:       inv.Period.Start.String(),
		PeriodEnd:         inv.Period.End.String(),
		DualTariff:        inv.DualTariff,
		TotalEnergyKWh:    inv.TotalEnergyKWh.String(),
		EnergyGross:       money(inv.EnergyGross),
		DistributionGross: money(inv.DistributionGross),
		VATRate:           inv.VATRate.String(),
		Sales:             make([]SaleRecordDTO, len(inv.Sales)),
		Fees:              make([]FeeRecordDTO, len(inv.Fees)),
	}
	for i, s := range inv.Sales {
		dto.Sales[i] = SaleRecordDTO{
			Zone:      string(s.Zone),
			Quantity:  s.Quantity.String(),
			UnitPrice: s.UnitPrice.String(),
			Gross:     s.Gross.String(),
			VATRate:   s.VATRate.String(),
		}
	}
	for i, f := range inv.Fees {
		dto.Fees[i] = FeeRecordDTO{
			Type:      string(f.Type),
			Zone:      string(f.Zone),
			Unit:      string(f.Unit),
			Quantity:  f.Quantity.String(),
			UnitPrice: f.UnitPrice.String(),
			Gross:     f.Gross.String(),
			VATRate:   f.VATRate.String(),
			PeriodEnd: f.PeriodEnd.String(),
		}
	}
	return dto
}

func toBillDTO(b billing.Bill) BillDTO {
	dto := BillDTO{
		ID:                b.ID,
		Unit:              string(b.Unit),
		Period:            b.Period.String(),
		SpanStart:         b.Span.Start.String(),
		SpanEnd:           b.Span.End.String(),
		InvoiceID:         b.InvoiceID,
		TotalKWh:          b.TotalKWh.String(),
		EnergyGross:       money(b.EnergyGross),
		DistributionGross: money(b.DistributionGross),
		NetTotal:          money(b.NetTotal),
		GrossTotal:        money(b.GrossTotal),
		GeneratedAt:       b.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if b.DayKWh != nil {
		s := b.DayKWh.String()
		dto.DayKWh = &s
	}
	if b.NightKWh != nil {
		s := b.NightKWh.String()
		dto.NightKWh = &s
	}
	return dto
}

func toBillDTOs(bills []billing.Bill) []BillDTO {
	dtos := make([]BillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = toBillDTO(b)
	}
	return dtos
}

func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
