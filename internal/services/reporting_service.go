package services

import (
	"context"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/store"
)

// ReportingService backs the dashboard read endpoints.
type ReportingService struct {
	store store.Datastore
}

func NewReportingService(ds store.Datastore) *ReportingService {
	return &ReportingService{store: ds}
}

func (s *ReportingService) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *ReportingService) ListTransactions(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, limit, offset)
}

func (s *ReportingService) Stats(ctx context.Context) ([]models.ProviderStat, error) {
	return s.store.Stats(ctx)
}
