package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnet/splitmeter/api"
	"github.com/hausnet/splitmeter/billing"
	"github.com/hausnet/splitmeter/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	handler := api.NewHandler(mem, mem, mem, billing.DefaultAllocationConfig())
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, mem
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedBillingInputs(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, mem.PutReading(ctx, &billing.MeterReading{
		Period: billing.MustParseYearMonth("2025-03"),
		Main:   billing.SingleStation(billing.MustDecimal("10000")),
		Lower:  billing.SingleStation(billing.MustDecimal("4000")),
		Nested: billing.MustDecimal("1000"),
	}))
	require.NoError(t, mem.PutReading(ctx, &billing.MeterReading{
		Period: billing.MustParseYearMonth("2025-04"),
		Main:   billing.SingleStation(billing.MustDecimal("11000")),
		Lower:  billing.SingleStation(billing.MustDecimal("4400")),
		Nested: billing.MustDecimal("1100"),
	}))
	require.NoError(t, mem.PutInvoice(ctx, &billing.Invoice{
		ID: "inv-apr",
		Period: billing.DateRange{
			Start: billing.MustParseDate("2025-04-01"),
			End:   billing.MustParseDate("2025-04-30"),
		},
		TotalEnergyKWh:    billing.MustDecimal("1000"),
		EnergyGross:       billing.MustDecimal("100"),
		DistributionGross: billing.MustDecimal("50"),
		VATRate:           billing.MustDecimal("0.21"),
	}))
}

// =============================================================================
// READING ENDPOINTS
// =============================================================================

func TestAPI_PutAndGetReading(t *testing.T) {
	srv, _ := newTestServer(t)

	put := doJSON(t, http.MethodPut, srv.URL+"/api/readings", api.ReadingDTO{
		Period: "2025-04",
		Main:   api.StationReadingDTO{Dual: true, Day: "10300", Night: "5150"},
		Lower:  api.StationReadingDTO{Combined: "6180"},
		Nested: "1060",
	})
	require.Equal(t, http.StatusOK, put.StatusCode)
	put.Body.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/readings/2025-04", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[api.ReadingDTO](t, resp)

	assert.Equal(t, "2025-04", got.Period)
	assert.True(t, got.Main.Dual)
	assert.Equal(t, "10300", got.Main.Day)
	assert.Equal(t, "6180", got.Lower.Combined)
}

func TestAPI_PutReading_BadDecimal_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/readings", api.ReadingDTO{
		Period: "2025-04",
		Main:   api.StationReadingDTO{Dual: true, Day: "10300", Night: "5150"},
		Lower:  api.StationReadingDTO{Combined: "6180"},
		Nested: "one thousand",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetReading_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/readings/2031-01", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_GetReading_BadPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/readings/april", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

func TestAPI_CreateInvoice_AssignsID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", api.InvoiceDTO{
		PeriodStart:       "2025-04-01",
		PeriodEnd:         "2025-04-30",
		TotalEnergyKWh:    "1000",
		EnergyGross:       "100",
		DistributionGross: "50",
		VATRate:           "0.21",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[api.InvoiceDTO](t, resp)
	assert.NotEmpty(t, created.ID)

	get := doJSON(t, http.MethodGet, srv.URL+"/api/invoices/"+created.ID, nil)
	require.Equal(t, http.StatusOK, get.StatusCode)
	got := decodeJSON[api.InvoiceDTO](t, get)
	assert.Equal(t, "2025-04-01", got.PeriodStart)
	assert.Equal(t, "100.00", got.EnergyGross)
}

func TestAPI_CreateInvoice_InvertedPeriod_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", api.InvoiceDTO{
		PeriodStart: "2025-04-30",
		PeriodEnd:   "2025-04-01",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// BILLING ENDPOINTS
// =============================================================================

func TestAPI_RunBilling_EndToEnd(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBillingInputs(t, mem)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/billing/run",
		api.RunBillingRequest{Period: "2025-04"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeJSON[api.RunResultDTO](t, resp)

	assert.Equal(t, "complete", result.State)
	assert.Equal(t, "inv-apr", result.InvoiceID)
	require.Len(t, result.Bills, 4)
	assert.Equal(t, "upper", result.Bills[0].Unit)
	assert.Equal(t, "90.00", result.Bills[0].GrossTotal)
	assert.Equal(t, "whole-building", result.Bills[3].Unit)

	// Bills are queryable afterwards.
	get := doJSON(t, http.MethodGet, srv.URL+"/api/billing/2025-04/upper", nil)
	require.Equal(t, http.StatusOK, get.StatusCode)
	bill := decodeJSON[api.BillDTO](t, get)
	assert.Equal(t, "600", bill.TotalKWh)
}

func TestAPI_RunBilling_MissingInvoice_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/billing/run",
		api.RunBillingRequest{Period: "2025-04"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_GetBills_EmptyPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/billing/2025-04", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bills := decodeJSON[[]api.BillDTO](t, resp)
	assert.Empty(t, bills)
}

// =============================================================================
// UTILITY SPLIT
// =============================================================================

func TestAPI_SplitUtility_Water(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/split", api.SplitRequest{
		Utility: "water",
		Total:   "90",
		Usages: map[string]string{
			"upper":          "10",
			"residual-lower": "5",
			"nested":         "15",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shares := decodeJSON[[]api.SplitShareDTO](t, resp)

	require.Len(t, shares, 3)
	assert.Equal(t, "30.00", shares[0].Amount)
	assert.Equal(t, "15.00", shares[1].Amount)
	assert.Equal(t, "45.00", shares[2].Amount)
}

func TestAPI_SplitUtility_UnknownUtility_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/split", api.SplitRequest{
		Utility: "electricity",
		Total:   "90",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}
