package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/api/httpx"
	"github.com/tradelearn/payments-backend/internal/api/validate"
	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/providers"
	"github.com/tradelearn/payments-backend/internal/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

func providerParam(r *http.Request) (models.Provider, bool) {
	p := models.Provider(chi.URLParam(r, "provider"))
	return p, p.Valid()
}

type initializeReq struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Course   string          `json:"course"`
}

func (req *initializeReq) validate(p models.Provider) validate.Errs {
	var errs validate.Errs
	add := func(e *validate.ErrField) {
		if e != nil {
			errs = append(errs, *e)
		}
	}
	add(validate.Positive("amount", req.Amount))
	add(validate.Required("course", req.Course))
	add(validate.Email("email", req.Email))
	switch p {
	case models.ProviderMpesa:
		add(validate.Required("phone", req.Phone))
	default:
		add(validate.Required("email", req.Email))
	}
	return errs
}

// POST /api/v1/payments/{provider}/initialize
func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "unknown provider", nil)
		return
	}

	var req initializeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	if errs := req.validate(p); len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid request", errs)
		return
	}

	res, err := h.Svc.Initialize(r.Context(), p, providers.InitRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Course:   req.Course,
	})
	if err != nil {
		// the user needs to know the charge could not start
		httpx.WriteError(w, http.StatusBadGateway, "provider_error", "could not start charge", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"pay_url":   res.PayURL,
		"reference": res.Reference,
		"message":   res.Message,
	})
}

// GET /api/v1/payments/{provider}/verify?reference=...
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "unknown provider", nil)
		return
	}
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "reference is required", nil)
		return
	}

	tx, err := h.Svc.Verify(r.Context(), p, ref)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "provider_error", "could not verify charge", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// POST /api/v1/payments/{provider}/webhook
//
// Providers retry on non-2xx, so only signature and parse failures are
// rejected; everything past the parse answers 200 even when persistence or
// side effects failed.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "unknown provider", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}

	_, err = h.Svc.HandleNotification(r.Context(), p, body, r.Header)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, providers.ErrBadSignature):
		httpx.WriteError(w, http.StatusUnauthorized, "bad_signature", "signature mismatch", nil)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "bad_notification", "could not parse notification", nil)
	}
}
