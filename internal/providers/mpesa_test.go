package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

const mpesaSuccessCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 10000},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

const mpesaCancelledCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

func TestMpesaParseSuccessCallback(t *testing.T) {
	m := NewMpesa(config.MpesaConfig{})

	ev, err := m.ParseNotification([]byte(mpesaSuccessCallback))
	require.NoError(t, err)

	assert.Equal(t, models.ProviderMpesa, ev.Provider)
	assert.Equal(t, "29115-34620561-1", ev.Reference)
	assert.Equal(t, "ws_CO_191220191020363925", ev.SecondaryRef)
	require.NotNil(t, ev.ResultCode)
	assert.Equal(t, 0, *ev.ResultCode)
	assert.True(t, ev.AmountSet)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(10000)), "raw amount stays in minor units, got %s", ev.Amount)
	assert.Equal(t, "NLJ7RT61SV", ev.Metadata["receipt"])
	assert.Equal(t, "254708374149", ev.Phone)
	require.NotNil(t, ev.PaidAt)
	assert.Equal(t, 2019, ev.PaidAt.Year())
}

func TestMpesaParseCancelledCallback(t *testing.T) {
	m := NewMpesa(config.MpesaConfig{})

	ev, err := m.ParseNotification([]byte(mpesaCancelledCallback))
	require.NoError(t, err)

	require.NotNil(t, ev.ResultCode)
	assert.Equal(t, 1032, *ev.ResultCode)
	assert.False(t, ev.AmountSet, "cancelled callbacks carry no metadata")
}

func TestMpesaParseRejectsGarbage(t *testing.T) {
	m := NewMpesa(config.MpesaConfig{})

	_, err := m.ParseNotification([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadNotification)

	_, err = m.ParseNotification([]byte(`{"Body":{"stkCallback":{}}}`))
	assert.ErrorIs(t, err, ErrBadNotification)
}

func TestMpesaPassword(t *testing.T) {
	m := NewMpesa(config.MpesaConfig{Shortcode: "174379", Passkey: "key"})
	// base64("174379" + "key" + ts)
	assert.Equal(t, "MTc0Mzc5a2V5MjAyNDAxMDIwMzA0MDU=", m.password("20240102030405"))
}
