package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/auth"
	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/notify"
	"github.com/tradelearn/payments-backend/internal/providers"
	"github.com/tradelearn/payments-backend/internal/services"
	filestore "github.com/tradelearn/payments-backend/internal/store/file"
	"github.com/tradelearn/payments-backend/internal/worker"
)

const mpesaCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "ok",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 10000},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func newTestServer(t *testing.T) (http.Handler, *auth.TokenManager, *worker.Pool) {
	t.Helper()

	ds, err := filestore.New(filepath.Join(t.TempDir(), "payments.json"))
	require.NoError(t, err)

	registry := providers.Registry{
		models.ProviderMpesa: providers.NewMpesa(config.MpesaConfig{}),
	}
	wp := worker.NewPool(1)
	tm := auth.NewTokenManager("acc", "ref", time.Minute, time.Hour)
	cfg := config.Config{RateRPS: 1000}

	r := NewRouter(RouterDeps{
		Cfg:          cfg,
		TokenManager: tm,
		PaymentSvc:   services.NewPaymentService(ds, registry, notify.New(config.SMTPConfig{}), wp, slog.Default()),
		ReportingSvc: services.NewReportingService(ds),
	})
	return r, tm, wp
}

func TestWebhookThenAuthedRead(t *testing.T) {
	r, tm, wp := newTestServer(t)
	defer wp.Stop()

	// provider-pushed callback
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa/callback", strings.NewReader(mpesaCallback))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// reads are JWT-guarded
	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	access, _, _, err := tm.GeneratePair("admin@example.com")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "mpesa_29115-34620561-1_ws_CO_191220191020363925", txs[0].ID)
	assert.Equal(t, models.TxnSuccess, txs[0].Status)
	assert.Equal(t, "100", txs[0].Amount.String())
}

func TestWebhookRejectsGarbage(t *testing.T) {
	r, _, wp := newTestServer(t)
	defer wp.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownProviderIs404(t *testing.T) {
	r, _, wp := newTestServer(t)
	defer wp.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/stripe/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitializeValidation(t *testing.T) {
	r, _, wp := newTestServer(t)
	defer wp.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa/initialize",
		strings.NewReader(`{"amount":"0","course":""}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
