// Package store defines the persistence contract. Two implementations
// exist: postgres (the managed database) and file (a local JSON fallback
// for unconfigured environments). They are selected at startup and never
// mixed at call sites.
package store

import (
	"context"
	"errors"

	"github.com/tradelearn/payments-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type Datastore interface {
	// UpsertTransaction writes the canonical record keyed by its
	// deterministic id with merge semantics; a second upsert for the same
	// id updates the existing document.
	UpsertTransaction(ctx context.Context, tx models.Transaction) (string, error)
	GetTransaction(ctx context.Context, id string) (models.Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]models.Transaction, error)
	Stats(ctx context.Context) ([]models.ProviderStat, error)

	PutInitRecord(ctx context.Context, rec models.InitRecord) error
	GetInitRecord(ctx context.Context, key string) (*models.InitRecord, error)

	// AppendStageLog is append-only; every init/verify/webhook stage gets a
	// row whether it succeeded or not.
	AppendStageLog(ctx context.Context, l models.StageLog) error

	CreatePurchase(ctx context.Context, p models.Purchase) error

	Close()
}
