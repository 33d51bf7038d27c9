package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/providers"
)

func intp(n int) *int { return &n }

func TestNormalizeMpesaSuccess(t *testing.T) {
	ev := providers.RawEvent{
		Provider:     models.ProviderMpesa,
		Reference:    "29115-34620561-1",
		SecondaryRef: "ws_CO_191220191020363925",
		ResultCode:   intp(0),
		Amount:       decimal.NewFromInt(10000),
		AmountSet:    true,
	}

	tx, err := Normalize(ev, nil)
	require.NoError(t, err)

	assert.Equal(t, "mpesa_29115-34620561-1_ws_CO_191220191020363925", tx.ID)
	assert.Equal(t, models.TxnSuccess, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(100)), "minor units divided by 100, got %s", tx.Amount)
	assert.Equal(t, "KES", tx.Currency)
}

func TestNormalizeMpesaResultCodes(t *testing.T) {
	cases := []struct {
		code int
		want models.TransactionStatus
	}{
		{0, models.TxnSuccess},
		{1032, models.TxnCancelled},
		{1037, models.TxnFailed},
		{1, models.TxnFailed},
		{2001, models.TxnFailed},
	}
	for _, c := range cases {
		ev := providers.RawEvent{
			Provider:   models.ProviderMpesa,
			Reference:  "mr-1",
			ResultCode: intp(c.code),
		}
		tx, err := Normalize(ev, nil)
		require.NoError(t, err)
		assert.Equal(t, c.want, tx.Status, "result code %d", c.code)
	}
}

func TestNormalizeMpesaNoResultCodeIsPending(t *testing.T) {
	tx, err := Normalize(providers.RawEvent{Provider: models.ProviderMpesa, Reference: "mr-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, tx.Status)
}

func TestNormalizePaystack(t *testing.T) {
	ev := providers.RawEvent{
		Provider:  models.ProviderPaystack,
		Reference: "ref_abc",
		Status:    "success",
		Amount:    decimal.NewFromInt(19999),
		AmountSet: true,
		Currency:  "NGN",
	}

	tx, err := Normalize(ev, nil)
	require.NoError(t, err)

	assert.Equal(t, "paystack_ref_abc", tx.ID)
	assert.Equal(t, models.TxnSuccess, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("199.99")), "got %s", tx.Amount)
	assert.Equal(t, "NGN", tx.Currency)

	ev.Status = "abandoned"
	tx, err = Normalize(ev, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, tx.Status)
}

func TestNormalizeBinanceStatuses(t *testing.T) {
	cases := []struct {
		status string
		want   models.TransactionStatus
	}{
		{"SUCCESS", models.TxnSuccess},
		{"COMPLETED", models.TxnSuccess},
		{"PAID", models.TxnSuccess},
		{"PAY_SUCCESS", models.TxnSuccess},
		{"PAY_CLOSED", models.TxnFailed},
		{"EXPIRED", models.TxnFailed},
		{"INITIAL", models.TxnPending},
	}
	for _, c := range cases {
		tx, err := Normalize(providers.RawEvent{
			Provider:  models.ProviderBinance,
			Reference: "trade-1",
			Status:    c.status,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, c.want, tx.Status, "status %s", c.status)
	}
}

func TestNormalizeCoinbaseEmptyPaymentsIsPending(t *testing.T) {
	// an unpaid charge stays pending regardless of age, never failed
	tx, err := Normalize(providers.RawEvent{
		Provider:  models.ProviderCoinbase,
		Reference: "66BEOV2A",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, tx.Status)

	tx, err = Normalize(providers.RawEvent{
		Provider:   models.ProviderCoinbase,
		Reference:  "66BEOV2A",
		HasPayment: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, tx.Status)
}

func TestNormalizePaddleEventVocabulary(t *testing.T) {
	for _, name := range []string{"payment_succeeded", "transaction.completed", "transaction.paid", "subscription.activated"} {
		tx, err := Normalize(providers.RawEvent{
			Provider:  models.ProviderPaddle,
			Reference: "487581",
			Status:    name,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.TxnSuccess, tx.Status, "event %s", name)
	}

	tx, err := Normalize(providers.RawEvent{
		Provider:  models.ProviderPaddle,
		Reference: "487581",
		Status:    "subscription_cancelled",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, tx.Status)
	// paddle amounts pass through untouched
	assert.Equal(t, "paddle_487581", tx.ID)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	ev := providers.RawEvent{
		Provider:  models.ProviderPaystack,
		Reference: "ref_xyz",
		Status:    "success",
		Amount:    decimal.NewFromInt(5000),
		AmountSet: true,
	}
	a, err := Normalize(ev, nil)
	require.NoError(t, err)
	b, err := Normalize(ev, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Status, b.Status)
	assert.True(t, a.Amount.Equal(b.Amount))
}

func TestNormalizeMergesInitRecord(t *testing.T) {
	init := &models.InitRecord{
		Key:      "mr-9",
		Provider: models.ProviderMpesa,
		Name:     "Jane Wanjiku",
		Email:    "jane@example.com",
		Phone:    "254700000000",
		Course:   "forex-101",
		Amount:   decimal.NewFromInt(100),
		Currency: "KES",
	}
	ev := providers.RawEvent{
		Provider:   models.ProviderMpesa,
		Reference:  "mr-9",
		ResultCode: intp(0),
		Phone:      "254711111111", // raw event wins
	}

	tx, err := Normalize(ev, init)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", tx.Email)
	assert.Equal(t, "Jane Wanjiku", tx.Name)
	assert.Equal(t, "254711111111", tx.Phone)
	assert.Equal(t, "forex-101", tx.Metadata["course"])
	// no amount on the event: the init record's (already major unit) value is used
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(100)))
}

func TestNormalizeMissingReference(t *testing.T) {
	_, err := Normalize(providers.RawEvent{Provider: models.ProviderPaystack}, nil)
	assert.ErrorIs(t, err, ErrMissingReference)

	_, err = Normalize(providers.RawEvent{Provider: "stripe", Reference: "x"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
