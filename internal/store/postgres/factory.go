// Package postgres is the managed-database implementation of
// store.Datastore, backed by a pgx pool with JSONB columns for metadata and
// raw provider payloads.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradelearn/payments-backend/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) store.Datastore {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}
