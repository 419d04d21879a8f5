package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"signal-relay-go/internal/pnl"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store store.Store
	now   func() time.Time
	// seed feeds a fresh source per request.
	seed func() int64
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, st store.Store) *APIHandler {
	return &APIHandler{
		log:   log,
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		seed:  func() int64 { return time.Now().UnixNano() },
	}
}

// Routes registers every dashboard endpoint on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/data", h.DataHandler)
	mux.HandleFunc("/tokens", h.TokensHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	mux.HandleFunc("/pnl", h.PnLHandler)
}

type messageResponse struct {
	Message string `json:"message"`
}

// DataHandler lists, purges and seeds the transaction journal.
func (h *APIHandler) DataHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		// Most recent first
		records, err := h.store.List(ctx)
		if err != nil {
			h.internalError(w, "Failed to get transactions from database", err)
			return
		}
		h.writeJSON(w, http.StatusOK, records)

	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		name = strings.TrimSpace(name)
		if err := h.store.DeleteTransactions(ctx, name); err != nil {
			h.internalError(w, "Failed to delete transactions", err)
			return
		}
		msg := "All data deleted successfully"
		if !store.IsPurgeAll(name) {
			msg = fmt.Sprintf("Data for %s deleted successfully", name)
		}
		h.log.Info("Transactions deleted", zap.String("name", name))
		h.writeJSON(w, http.StatusOK, messageResponse{Message: msg})

	case http.MethodPut:
		n, err := h.store.SeedTestData(ctx, h.now(), rand.New(rand.NewSource(h.seed())))
		if err != nil {
			h.internalError(w, "Failed to seed test data", err)
			return
		}
		h.log.Info("Test data populated", zap.Int("rows", n))
		h.writeJSON(w, http.StatusOK, messageResponse{Message: "Test data populated successfully"})

	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

type tokenRequest struct {
	Name       string              `json:"name"`
	UsdtAmount decimal.NullDecimal `json:"usdtAmount"`
}

type tokenResponse struct {
	Name       string          `json:"name"`
	UsdtAmount decimal.Decimal `json:"usdtAmount"`
}

// TokensHandler manages the per-instrument USDT allocations.
func (h *APIHandler) TokensHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		allocations, err := h.store.ListAllocations(ctx)
		if err != nil {
			h.internalError(w, "Failed to get allocations from database", err)
			return
		}
		h.writeJSON(w, http.StatusOK, allocations)

	case http.MethodPost:
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			strings.TrimSpace(req.Name) == "" || !req.UsdtAmount.Valid || req.UsdtAmount.Decimal.IsNegative() {
			http.Error(w, "Invalid input", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Name)

		created, err := h.store.UpsertAllocation(ctx, name, req.UsdtAmount.Decimal)
		if err != nil {
			h.internalError(w, "Failed to upsert allocation", err)
			return
		}
		body := struct {
			Message string        `json:"message"`
			Token   tokenResponse `json:"token"`
		}{Token: tokenResponse{Name: name, UsdtAmount: req.UsdtAmount.Decimal}}

		status := http.StatusOK
		body.Message = "Token updated successfully"
		if created {
			status = http.StatusCreated
			body.Message = "Token added successfully"
		}
		h.log.Info("Allocation saved", zap.String("name", name), zap.Stringer("usdt_amount", req.UsdtAmount.Decimal), zap.Bool("created", created))
		h.writeJSON(w, status, body)

	case http.MethodDelete:
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "Token Name is required", http.StatusBadRequest)
			return
		}
		if err := h.store.DeleteAllocation(ctx, strings.TrimSpace(req.Name)); err != nil {
			h.internalError(w, "Failed to delete allocation", err)
			return
		}
		h.writeJSON(w, http.StatusOK, messageResponse{Message: "Token deleted successfully"})

	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// HealthHandler reports database connectivity and the journal size.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.Health(r.Context()))
}

// PnLHandler computes realized profit, optionally for a single instrument.
func (h *APIHandler) PnLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	records, err := h.store.Query(r.Context(), store.Filter{Name: name})
	if err != nil {
		h.internalError(w, "Failed to get transactions for profit", err)
		return
	}
	h.writeJSON(w, http.StatusOK, pnl.Compute(records, name))
}

func (h *APIHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
