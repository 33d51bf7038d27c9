package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/config"
)

func TestBinanceSign(t *testing.T) {
	b := NewBinancePay(config.BinanceConfig{APIKey: "cert", APISecret: "secret"})

	sig := b.sign("1700000000000", "nonce123", []byte(`{"a":1}`))
	assert.Len(t, sig, 128) // hex sha512
	assert.Equal(t, sig, b.sign("1700000000000", "nonce123", []byte(`{"a":1}`)), "signing is deterministic")
	assert.NotEqual(t, sig, b.sign("1700000000001", "nonce123", []byte(`{"a":1}`)))

	hdr, err := b.signedHeaders([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "cert", hdr["BinancePay-Certificate-SN"])
	assert.NotEmpty(t, hdr["BinancePay-Signature"])
}

func TestBinanceSignedHeadersRequireConfig(t *testing.T) {
	b := NewBinancePay(config.BinanceConfig{})
	_, err := b.signedHeaders(nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBinanceParseWebhookDataAsString(t *testing.T) {
	b := NewBinancePay(config.BinanceConfig{})

	// binance encodes data as a JSON string
	payload := `{"bizType":"PAY","bizId":29383937493038367292,"bizStatus":"PAY_SUCCESS",` +
		`"data":"{\"merchantTradeNo\":\"9825382937292\",\"orderAmount\":\"25.17\",\"currency\":\"USDT\",\"transactionId\":\"tx-1\"}"}`

	ev, err := b.ParseNotification([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "9825382937292", ev.Reference)
	assert.Equal(t, "PAY_SUCCESS", ev.Status, "bizStatus wins over the order echo")
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("25.17")))
	assert.Equal(t, "USDT", ev.Currency)
	assert.Equal(t, "tx-1", ev.Metadata["transaction_id"])
}

func TestBinanceParseWebhookDataAsObject(t *testing.T) {
	b := NewBinancePay(config.BinanceConfig{})

	payload := `{"bizType":"PAY","bizId":1,"bizStatus":"PAY_CLOSED",` +
		`"data":{"merchantTradeNo":"trade-9","orderAmount":"10","currency":"USDT"}}`

	ev, err := b.ParseNotification([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "trade-9", ev.Reference)
	assert.Equal(t, "PAY_CLOSED", ev.Status)
}

func TestBinanceParseWebhookRejectsIncomplete(t *testing.T) {
	b := NewBinancePay(config.BinanceConfig{})

	_, err := b.ParseNotification([]byte(`{"bizType":"PAY"}`))
	assert.ErrorIs(t, err, ErrBadNotification)

	_, err = b.ParseNotification([]byte(`{"bizStatus":"PAY_SUCCESS","data":"{}"}`))
	assert.ErrorIs(t, err, ErrBadNotification)
}
