package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/models"
)

func (s *Store) PutInitRecord(ctx context.Context, rec models.InitRecord) error {
	const q = `
INSERT INTO init_records (key, provider, name, email, phone, course, amount, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
ON CONFLICT (key) DO UPDATE SET
  name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
  course = EXCLUDED.course, amount = EXCLUDED.amount, currency = EXCLUDED.currency;
`
	_, err := s.pool.Exec(ctx, q,
		rec.Key, rec.Provider, rec.Name, rec.Email, rec.Phone, rec.Course,
		rec.Amount.String(), rec.Currency)
	return err
}

func (s *Store) GetInitRecord(ctx context.Context, key string) (*models.InitRecord, error) {
	var (
		rec    models.InitRecord
		amount string
	)
	err := s.pool.QueryRow(ctx, `
SELECT key, provider, name, email, phone, course, amount::text, currency, created_at
  FROM init_records WHERE key=$1`, key).
		Scan(&rec.Key, &rec.Provider, &rec.Name, &rec.Email, &rec.Phone,
			&rec.Course, &amount, &rec.Currency, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &rec, nil
}
