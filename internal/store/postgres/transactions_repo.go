package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/store"
)

func (s *Store) UpsertTransaction(ctx context.Context, tx models.Transaction) (string, error) {
	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		return "", err
	}
	raw := []byte(tx.RawData)
	if len(raw) == 0 {
		raw = []byte("null")
	}

	const q = `
INSERT INTO transactions (
  id, provider, status, amount, currency, email, phone, name, reference,
  metadata, raw_data, paid_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
ON CONFLICT (id) DO UPDATE SET
  status     = EXCLUDED.status,
  amount     = EXCLUDED.amount,
  currency   = EXCLUDED.currency,
  email      = COALESCE(NULLIF(EXCLUDED.email, ''), transactions.email),
  phone      = COALESCE(NULLIF(EXCLUDED.phone, ''), transactions.phone),
  name       = COALESCE(NULLIF(EXCLUDED.name, ''), transactions.name),
  reference  = EXCLUDED.reference,
  metadata   = EXCLUDED.metadata,
  raw_data   = EXCLUDED.raw_data,
  paid_at    = COALESCE(EXCLUDED.paid_at, transactions.paid_at),
  updated_at = now();
`
	_, err = s.pool.Exec(ctx, q,
		tx.ID, tx.Provider, tx.Status, tx.Amount.String(), tx.Currency,
		tx.Email, tx.Phone, tx.Name, tx.Reference, meta, raw, tx.PaidAt,
	)
	if err != nil {
		return "", err
	}
	return tx.ID, nil
}

const txColumns = `id, provider, status, amount::text, currency, email, phone, name,
  reference, metadata, raw_data, paid_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		tx     models.Transaction
		amount string
		meta   []byte
		raw    []byte
	)
	err := row.Scan(&tx.ID, &tx.Provider, &tx.Status, &amount, &tx.Currency,
		&tx.Email, &tx.Phone, &tx.Name, &tx.Reference, &meta, &raw,
		&tx.PaidAt, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.Transaction{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &tx.Metadata)
	}
	if len(raw) > 0 && string(raw) != "null" {
		tx.RawData = json.RawMessage(raw)
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=$1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, store.ErrNotFound
	}
	return tx, err
}

func (s *Store) ListTransactions(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) ([]models.ProviderStat, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider, status, count(*), COALESCE(sum(amount),0)::text
  FROM transactions
 GROUP BY provider, status
 ORDER BY provider, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProviderStat
	for rows.Next() {
		var (
			st    models.ProviderStat
			total string
		)
		if err := rows.Scan(&st.Provider, &st.Status, &st.Count, &total); err != nil {
			return nil, err
		}
		if st.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
