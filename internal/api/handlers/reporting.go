package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradelearn/payments-backend/internal/api/httpx"
	"github.com/tradelearn/payments-backend/internal/services"
	"github.com/tradelearn/payments-backend/internal/store"
)

type ReportingHandler struct {
	Svc *services.ReportingService
}

func NewReportingHandler(svc *services.ReportingService) *ReportingHandler {
	return &ReportingHandler{Svc: svc}
}

// GET /api/v1/transactions
func (h *ReportingHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	txs, err := h.Svc.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not list transactions", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

// GET /api/v1/transactions/{id}
func (h *ReportingHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Svc.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not fetch transaction", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// GET /api/v1/stats
func (h *ReportingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not aggregate stats", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
