package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/tradelearn/payments-backend/internal/models"
)

func (s *Store) CreatePurchase(ctx context.Context, p models.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO purchases (id, transaction_id, course, name, email, amount, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (id) DO NOTHING`,
		p.ID, p.TransactionID, p.Course, p.Name, p.Email, p.Amount.String(), p.Currency)
	return err
}
