/*
handlers.go - HTTP API handlers for the utility cost splitting service

PURPOSE:
  Exposes meter readings, supplier invoices and billing runs via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  billing engine.

ENDPOINTS:
  Readings:
    GET    /api/readings               List all meter readings
    PUT    /api/readings               Upsert a reading (idempotent per period)
    GET    /api/readings/{period}      Get one reading

  Invoices:
    GET    /api/invoices               List all invoices
    POST   /api/invoices               Create or replace an invoice
    GET    /api/invoices/{id}          Get one invoice with line items

  Billing:
    POST   /api/billing/run            Run billing for a period
    GET    /api/billing/{period}       Bills for a period (aggregate last)
    GET    /api/billing/{period}/{unit} One unit's bill

  Utilities:
    POST   /api/split                  Proportional water/gas split

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (reconciler, composer, allocator via Manager)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - billing/manager.go: Billing run orchestration
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausnet/splitmeter/billing"
	"github.com/hausnet/splitmeter/proportional"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Readings billing.ReadingStore
	Invoices billing.InvoiceStore
	Bills    billing.BillStore
	Manager  *billing.Manager
}

// NewHandler creates a handler backed by the given stores.
func NewHandler(readings billing.ReadingStore, invoices billing.InvoiceStore, bills billing.BillStore, cfg billing.AllocationConfig) *Handler {
	return &Handler{
		Readings: readings,
		Invoices: invoices,
		Bills:    bills,
		Manager:  billing.NewManager(readings, invoices, bills, cfg),
	}
}

// =============================================================================
// READING HANDLERS
// =============================================================================

// ListReadings returns all meter readings ordered by period.
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.Readings.ListReadings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list readings", err)
		return
	}

	dtos := make([]ReadingDTO, len(readings))
	for i, rd := range readings {
		dtos[i] = toReadingDTO(rd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReading returns the reading for one year-month period.
func (h *Handler) GetReading(w http.ResponseWriter, r *http.Request) {
	period, err := billing.ParseYearMonth(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}

	reading, err := h.Readings.GetReading(r.Context(), period)
	if billing.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Reading not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reading", err)
		return
	}
	writeJSON(w, http.StatusOK, toReadingDTO(*reading))
}

// PutReading stores a reading, replacing any existing one for the period.
func (h *Handler) PutReading(w http.ResponseWriter, r *http.Request) {
	var dto ReadingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reading, err := fromReadingDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reading", err)
		return
	}
	if err := h.Readings.PutReading(r.Context(), reading); err != nil {
		if billing.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid reading", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store reading", err)
		return
	}
	writeJSON(w, http.StatusOK, toReadingDTO(*reading))
}

func fromReadingDTO(dto ReadingDTO) (*billing.MeterReading, error) {
	period, err := billing.ParseYearMonth(dto.Period)
	if err != nil {
		return nil, err
	}
	main, err := fromStationDTO(dto.Main)
	if err != nil {
		return nil, err
	}
	lower, err := fromStationDTO(dto.Lower)
	if err != nil {
		return nil, err
	}
	nested, err := parseDec(dto.Nested)
	if err != nil {
		return nil, err
	}

	reading := &billing.MeterReading{
		Period: period,
		Main:   main,
		Lower:  lower,
		Nested: nested,
	}
	if dto.TakenAt != "" {
		takenAt, err := billing.ParseDate(dto.TakenAt)
		if err != nil {
			return nil, err
		}
		reading.TakenAt = &takenAt
	}
	return reading, reading.Validate()
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns all invoices with their line items.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Invoices.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.Invoices.GetInvoice(r.Context(), id)
	if billing.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// CreateInvoice stores an invoice. An empty ID is assigned a fresh one.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var dto InvoiceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := fromInvoiceDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice", err)
		return
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if !inv.Period.Valid() {
		writeError(w, http.StatusBadRequest, "Invoice period start must not be after end", nil)
		return
	}

	if err := h.Invoices.PutInvoice(r.Context(), inv); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(*inv))
}

func fromInvoiceDTO(dto InvoiceDTO) (*billing.Invoice, error) {
	start, err := billing.ParseDate(dto.PeriodStart)
	if err != nil {
		return nil, err
	}
	end, err := billing.ParseDate(dto.PeriodEnd)
	if err != nil {
		return nil, err
	}
	totalKWh, err := parseDec(dto.TotalEnergyKWh)
	if err != nil {
		return nil, err
	}
	energyGross, err := parseDec(dto.EnergyGross)
	if err != nil {
		return nil, err
	}
	distGross, err := parseDec(dto.DistributionGross)
	if err != nil {
		return nil, err
	}
	vat, err := parseDec(dto.VATRate)
	if err != nil {
		return nil, err
	}

	inv := &billing.Invoice{
		ID:                dto.ID,
		Period:            billing.DateRange{Start: start, End: end},
		DualTariff:        dto.DualTariff,
		TotalEnergyKWh:    totalKWh,
		EnergyGross:       energyGross,
		DistributionGross: distGross,
		VATRate:           vat,
	}

	for _, s := range dto.Sales {
		qty, err := parseDec(s.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := parseDec(s.UnitPrice)
		if err != nil {
			return nil, err
		}
		gross, err := parseDec(s.Gross)
		if err != nil {
			return nil, err
		}
		saleVAT, err := parseDec(s.VATRate)
		if err != nil {
			return nil, err
		}
		inv.Sales = append(inv.Sales, billing.SaleRecord{
			Zone:      billing.Zone(s.Zone),
			Quantity:  qty,
			UnitPrice: price,
			Gross:     gross,
			VATRate:   saleVAT,
		})
	}

	for _, f := range dto.Fees {
		qty, err := parseDec(f.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := parseDec(f.UnitPrice)
		if err != nil {
			return nil, err
		}
		gross, err := parseDec(f.Gross)
		if err != nil {
			return nil, err
		}
		feeVAT, err := parseDec(f.VATRate)
		if err != nil {
			return nil, err
		}
		periodEnd, err := billing.ParseDate(f.PeriodEnd)
		if err != nil {
			return nil, err
		}
		inv.Fees = append(inv.Fees, billing.FeeRecord{
			Type:      billing.FeeType(f.Type),
			Zone:      billing.Zone(f.Zone),
			Unit:      billing.FeeUnit(f.Unit),
			Quantity:  qty,
			UnitPrice: price,
			Gross:     gross,
			VATRate:   feeVAT,
			PeriodEnd: periodEnd,
		})
	}
	return inv, nil
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// RunBilling executes a billing run for the requested period.
func (h *Handler) RunBilling(w http.ResponseWriter, r *http.Request) {
	var req RunBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := billing.ParseYearMonth(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}

	result, err := h.Manager.Run(r.Context(), period)
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Billing inputs missing", err)
			return
		}
		if billing.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Billing inputs invalid", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Billing run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toRunResultDTO(result))
}

// GetBills returns all bills for a period, per-unit bills first and the
// whole-building aggregate last.
func (h *Handler) GetBills(w http.ResponseWriter, r *http.Request) {
	period, err := billing.ParseYearMonth(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}

	bills, err := h.Bills.BillsForPeriod(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTOs(bills))
}

// GetBill returns one unit's bill for a period.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	period, err := billing.ParseYearMonth(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}
	unit := billing.UnitID(chi.URLParam(r, "unit"))

	bill, err := h.Bills.GetBill(r.Context(), unit, period)
	if billing.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Bill not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(*bill))
}

func toRunResultDTO(res *billing.RunResult) RunResultDTO {
	dto := RunResultDTO{
		Period:    res.Period.String(),
		State:     string(res.State),
		InvoiceID: res.InvoiceID,
		Bills:     toBillDTOs(res.Bills),
	}
	for _, warn := range res.Warnings {
		dto.Warnings = append(dto.Warnings, warn.String())
	}
	return dto
}

// =============================================================================
// UTILITY SPLIT HANDLERS
// =============================================================================

// SplitUtility splits a shared water or gas amount proportionally to
// metered usage.
func (h *Handler) SplitUtility(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	utility := proportional.Utility(req.Utility)
	if utility != proportional.UtilityWater && utility != proportional.UtilityGas {
		writeError(w, http.StatusBadRequest, "Unknown utility (use water or gas)", nil)
		return
	}
	total, err := parseDec(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}

	usages := make(map[billing.UnitID]decimal.Decimal, len(req.Usages))
	for unit, raw := range req.Usages {
		usage, err := parseDec(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid usage for "+unit, err)
			return
		}
		usages[billing.UnitID(unit)] = usage
	}

	shares := proportional.Split(total, usages)
	dtos := make([]SplitShareDTO, len(shares))
	for i, s := range shares {
		dtos[i] = SplitShareDTO{
			Unit:   string(s.Unit),
			Usage:  s.Usage.String(),
			Amount: s.Amount.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
