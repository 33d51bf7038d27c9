package providers

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/config"
)

func newTestPaddle(t *testing.T, pubPEM string) *Paddle {
	t.Helper()
	p, err := NewPaddle(config.PaddleConfig{PublicKeyPEM: pubPEM})
	require.NoError(t, err)
	return p
}

func TestPaddleParseClassicWebhook(t *testing.T) {
	p := newTestPaddle(t, "")

	form := url.Values{}
	form.Set("alert_name", "payment_succeeded")
	form.Set("p_order_id", "487581")
	form.Set("sale_gross", "59.99")
	form.Set("currency", "USD")
	form.Set("email", "buyer@example.com")
	form.Set("customer_name", "Chris")
	form.Set("passthrough", "ptx_abc123")
	form.Set("event_time", "2024-05-27 16:00:35")

	ev, err := p.ParseNotification([]byte(form.Encode()))
	require.NoError(t, err)

	assert.Equal(t, "487581", ev.Reference)
	assert.Equal(t, "ptx_abc123", ev.SecondaryRef)
	assert.Equal(t, "payment_succeeded", ev.Status)
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("59.99")), "paddle reports major units")
	assert.Equal(t, "buyer@example.com", ev.Email)
	assert.Equal(t, "Chris", ev.Name)
	require.NotNil(t, ev.PaidAt)
}

func TestPaddleParseBillingWebhook(t *testing.T) {
	p := newTestPaddle(t, "")

	payload := `{
	  "event_type": "transaction.completed",
	  "data": {
	    "id": "txn_01h9x2",
	    "status": "completed",
	    "currency_code": "USD",
	    "details": {"totals": {"total": "120.00"}},
	    "customer": {"email": "b@example.com", "name": "Bola"},
	    "custom_data": {"passthrough": "ptx_zzz"}
	  }
	}`

	ev, err := p.ParseNotification([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "txn_01h9x2", ev.Reference)
	assert.Equal(t, "ptx_zzz", ev.SecondaryRef)
	assert.Equal(t, "transaction.completed", ev.Status)
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("120.00")))
}

func TestPaddleParseRejectsIncomplete(t *testing.T) {
	p := newTestPaddle(t, "")

	_, err := p.ParseNotification([]byte("sale_gross=1.00"))
	assert.ErrorIs(t, err, ErrBadNotification)

	_, err = p.ParseNotification([]byte(`{"event_type":"transaction.completed","data":{}}`))
	assert.ErrorIs(t, err, ErrBadNotification)
}

func TestPaddleSuccessVocabulary(t *testing.T) {
	assert.True(t, PaddleEventSucceeded("payment_succeeded"))
	assert.True(t, PaddleEventSucceeded("subscription.activated"))
	assert.False(t, PaddleEventSucceeded("payment_refunded"))
}

// signs the same canonical form the verifier reconstructs
func signClassicForm(t *testing.T, key *rsa.PrivateKey, form url.Values) string {
	t.Helper()
	fields := make(map[string]string, len(form))
	for k := range form {
		fields[k] = form.Get(k)
	}
	canonical, err := json.Marshal(fields)
	require.NoError(t, err)
	sum := sha1.Sum(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, sum[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestPaddleVerifyNotification(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	p := newTestPaddle(t, pubPEM)

	form := url.Values{}
	form.Set("alert_name", "payment_succeeded")
	form.Set("p_order_id", "487581")
	form.Set("sale_gross", "59.99")
	form.Set("p_signature", signClassicForm(t, key, url.Values{
		"alert_name": {"payment_succeeded"},
		"p_order_id": {"487581"},
		"sale_gross": {"59.99"},
	}))

	assert.NoError(t, p.VerifyNotification([]byte(form.Encode()), http.Header{}))

	form.Set("sale_gross", "0.01") // tampered
	assert.ErrorIs(t, p.VerifyNotification([]byte(form.Encode()), http.Header{}), ErrBadSignature)

	form.Del("p_signature")
	assert.ErrorIs(t, p.VerifyNotification([]byte(form.Encode()), http.Header{}), ErrBadSignature)
}

func TestPaddleVerifySkippedWithoutKey(t *testing.T) {
	p := newTestPaddle(t, "")
	assert.NoError(t, p.VerifyNotification([]byte("anything=1"), http.Header{}))
}
