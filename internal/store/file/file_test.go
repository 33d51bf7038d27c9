package file

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "payments.json"))
	require.NoError(t, err)
	return s
}

func TestUpsertTwiceKeepsOneDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := models.Transaction{
		ID:       "paystack_ref_1",
		Provider: models.ProviderPaystack,
		Status:   models.TxnPending,
		Amount:   decimal.NewFromInt(100),
		Currency: "NGN",
		Email:    "a@example.com",
	}
	_, err := s.UpsertTransaction(ctx, tx)
	require.NoError(t, err)

	tx.Status = models.TxnSuccess
	tx.Email = "" // later event lost the email; merge keeps the old one
	id, err := s.UpsertTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "paystack_ref_1", id)

	all, err := s.ListTransactions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 1, "same id must not create a second document")
	assert.Equal(t, models.TxnSuccess, all[0].Status)
	assert.Equal(t, "a@example.com", all[0].Email)
}

func TestGetTransactionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTransaction(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInitRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.GetInitRecord(ctx, "mr-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "missing init record is nil, not an error")

	require.NoError(t, s.PutInitRecord(ctx, models.InitRecord{
		Key:      "mr-1",
		Provider: models.ProviderMpesa,
		Email:    "jane@example.com",
		Amount:   decimal.NewFromInt(100),
	}))

	rec, err = s.GetInitRecord(ctx, "mr-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "jane@example.com", rec.Email)
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.json")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.UpsertTransaction(ctx, models.Transaction{
		ID: "mpesa_a_b", Provider: models.ProviderMpesa, Status: models.TxnSuccess,
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	s2, err := New(path)
	require.NoError(t, err)
	tx, err := s2.GetTransaction(ctx, "mpesa_a_b")
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, tx.Status)
}

func TestStageLogsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendStageLog(ctx, models.StageLog{
			Provider: models.ProviderMpesa,
			Stage:    models.StageWebhook,
			Outcome:  models.OutcomeOK,
		}))
	}
	assert.Len(t, s.st.StageLogs, 3)
}

func TestStatsAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []models.Transaction{
		{ID: "paystack_1", Provider: models.ProviderPaystack, Status: models.TxnSuccess, Amount: decimal.NewFromInt(100)},
		{ID: "paystack_2", Provider: models.ProviderPaystack, Status: models.TxnSuccess, Amount: decimal.NewFromInt(50)},
		{ID: "mpesa_1_1", Provider: models.ProviderMpesa, Status: models.TxnFailed, Amount: decimal.NewFromInt(10)},
	}
	for _, tx := range seed {
		_, err := s.UpsertTransaction(ctx, tx)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, models.ProviderMpesa, stats[0].Provider)
	assert.Equal(t, int64(1), stats[0].Count)
	assert.Equal(t, models.ProviderPaystack, stats[1].Provider)
	assert.Equal(t, int64(2), stats[1].Count)
	assert.True(t, stats[1].Total.Equal(decimal.NewFromInt(150)))
}
