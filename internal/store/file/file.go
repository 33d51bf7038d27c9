// Package file is the local JSON fallback implementation of
// store.Datastore, used when no database URL is configured. One file, one
// mutex; fine for development and single-instance deployments, not for
// anything else.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/store"
)

type state struct {
	Transactions map[string]models.Transaction `json:"transactions"`
	InitRecords  map[string]models.InitRecord  `json:"init_records"`
	StageLogs    []models.StageLog             `json:"stage_logs"`
	Purchases    []models.Purchase             `json:"purchases"`
}

type Store struct {
	mu   sync.Mutex
	path string
	st   state
}

func New(path string) (*Store, error) {
	s := &Store{
		path: path,
		st: state{
			Transactions: map[string]models.Transaction{},
			InitRecords:  map[string]models.InitRecord{},
		},
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// fresh store
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &s.st); err != nil {
			return nil, err
		}
		if s.st.Transactions == nil {
			s.st.Transactions = map[string]models.Transaction{}
		}
		if s.st.InitRecords == nil {
			s.st.InitRecords = map[string]models.InitRecord{}
		}
	}
	return s, nil
}

// flush writes the whole state atomically via a temp file rename. Caller
// holds the mutex.
func (s *Store) flush() error {
	b, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) UpsertTransaction(_ context.Context, tx models.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.st.Transactions[tx.ID]; ok {
		tx.CreatedAt = prev.CreatedAt
		if tx.Email == "" {
			tx.Email = prev.Email
		}
		if tx.Phone == "" {
			tx.Phone = prev.Phone
		}
		if tx.Name == "" {
			tx.Name = prev.Name
		}
		if tx.PaidAt == nil {
			tx.PaidAt = prev.PaidAt
		}
	}
	tx.UpdatedAt = time.Now().UTC()
	s.st.Transactions[tx.ID] = tx
	if err := s.flush(); err != nil {
		return "", err
	}
	return tx.ID, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.st.Transactions[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, limit, offset int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Transaction, 0, len(s.st.Transactions))
	for _, tx := range s.st.Transactions {
		all = append(all, tx)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) Stats(_ context.Context) ([]models.ProviderStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		p models.Provider
		s models.TransactionStatus
	}
	agg := map[key]*models.ProviderStat{}
	for _, tx := range s.st.Transactions {
		k := key{tx.Provider, tx.Status}
		st, ok := agg[k]
		if !ok {
			st = &models.ProviderStat{Provider: tx.Provider, Status: tx.Status, Total: decimal.Zero}
			agg[k] = st
		}
		st.Count++
		st.Total = st.Total.Add(tx.Amount)
	}

	out := make([]models.ProviderStat, 0, len(agg))
	for _, st := range agg {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (s *Store) PutInitRecord(_ context.Context, rec models.InitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.st.InitRecords[rec.Key] = rec
	return s.flush()
}

func (s *Store) GetInitRecord(_ context.Context, key string) (*models.InitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.InitRecords[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) AppendStageLog(_ context.Context, l models.StageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.st.StageLogs = append(s.st.StageLogs, l)
	return s.flush()
}

func (s *Store) CreatePurchase(_ context.Context, p models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.st.Purchases = append(s.st.Purchases, p)
	return s.flush()
}

func (s *Store) Close() {}
