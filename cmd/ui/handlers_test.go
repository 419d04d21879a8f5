package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/database"
	"signal-relay-go/internal/models"
	"signal-relay-go/internal/pnl"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupHandler wires the dashboard to a fresh in-memory database.
func setupHandler(t *testing.T) http.Handler {
	db, err := database.NewDatabase(config.Database{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	h := NewAPIHandler(zap.NewNop(), store.NewGormStore(db))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	h.seed = func() int64 { return 1 }

	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestDataHandler_ConcurrentSeed(t *testing.T) {
	h := setupHandler(t)

	const workers = 8
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(h, http.MethodPut, "/data", "").Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	rec := do(h, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.TransactionRecord](t, rec), workers*17)
}

func TestDataHandler(t *testing.T) {
	h := setupHandler(t)

	rec := do(h, http.MethodPut, "/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test data populated successfully", decode[messageResponse](t, rec).Message)

	rec = do(h, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]models.TransactionRecord](t, rec)
	require.Len(t, records, 17)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Datetime.After(records[i-1].Datetime), "records must be most recent first")
	}

	rec = do(h, http.MethodDelete, "/data?name=AAAA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Data for AAAA deleted successfully", decode[messageResponse](t, rec).Message)

	records = decode[[]models.TransactionRecord](t, do(h, http.MethodGet, "/data", ""))
	assert.NotEmpty(t, records)
	for _, r := range records {
		assert.NotEqual(t, "AAAA", r.Name)
	}

	rec = do(h, http.MethodDelete, "/data?name=all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All data deleted successfully", decode[messageResponse](t, rec).Message)

	records = decode[[]models.TransactionRecord](t, do(h, http.MethodGet, "/data", ""))
	assert.Empty(t, records)
}

func TestTokensHandler(t *testing.T) {
	h := setupHandler(t)

	type tokenBody struct {
		Message string        `json:"message"`
		Token   tokenResponse `json:"token"`
	}

	rec := do(h, http.MethodPost, "/tokens", `{"name":"AAAA","usdtAmount":250}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[tokenBody](t, rec)
	assert.Equal(t, "Token added successfully", body.Message)
	assert.Equal(t, "AAAA", body.Token.Name)
	assert.True(t, body.Token.UsdtAmount.Equal(decimal.NewFromInt(250)))

	rec = do(h, http.MethodPost, "/tokens", `{"name":"AAAA","usdtAmount":300.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token updated successfully", decode[tokenBody](t, rec).Message)

	rec = do(h, http.MethodGet, "/tokens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	allocations := decode[[]models.AllocationRecord](t, rec)
	require.Len(t, allocations, 1)
	assert.True(t, allocations[0].UsdtAmount.Equal(decimal.RequireFromString("300.5")))

	rec = do(h, http.MethodDelete, "/tokens", `{"name":"AAAA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token deleted successfully", decode[messageResponse](t, rec).Message)

	allocations = decode[[]models.AllocationRecord](t, do(h, http.MethodGet, "/tokens", ""))
	assert.Empty(t, allocations)
}

func TestTokensHandler_InvalidInput(t *testing.T) {
	h := setupHandler(t)

	testCases := []struct {
		name     string
		method   string
		body     string
		expected int
	}{
		{name: "missing amount", method: http.MethodPost, body: `{"name":"AAAA"}`, expected: http.StatusBadRequest},
		{name: "missing name", method: http.MethodPost, body: `{"usdtAmount":10}`, expected: http.StatusBadRequest},
		{name: "negative amount", method: http.MethodPost, body: `{"name":"AAAA","usdtAmount":-1}`, expected: http.StatusBadRequest},
		{name: "malformed", method: http.MethodPost, body: `{"name":`, expected: http.StatusBadRequest},
		{name: "delete without name", method: http.MethodDelete, body: `{}`, expected: http.StatusBadRequest},
		{name: "unsupported method", method: http.MethodPatch, body: `{}`, expected: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, tc.method, "/tokens", tc.body)
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	h := setupHandler(t)
	do(h, http.MethodPut, "/data", "")

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[store.Health](t, rec)
	assert.Equal(t, "Connected", health.DatabaseStatus)
	assert.Equal(t, int64(17), health.ItemCount)
}

func TestPnLHandler(t *testing.T) {
	h := setupHandler(t)
	do(h, http.MethodPut, "/data", "")

	rec := do(h, http.MethodGet, "/pnl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[pnl.Report](t, rec)
	assert.Len(t, report.Instruments, 5)
	assert.True(t, report.TotalProfit.Equal(decimal.NewFromInt(65)), report.TotalProfit.String())

	rec = do(h, http.MethodGet, "/pnl?name=AAAA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report = decode[pnl.Report](t, rec)
	assert.Equal(t, []string{"AAAA"}, report.Names())
	assert.True(t, report.TotalProfit.Equal(decimal.NewFromInt(20)))
}

func TestMethodNotAllowed(t *testing.T) {
	h := setupHandler(t)
	for _, target := range []string{"/data", "/health", "/pnl"} {
		rec := do(h, http.MethodPatch, target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}
