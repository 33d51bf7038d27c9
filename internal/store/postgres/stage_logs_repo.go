package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tradelearn/payments-backend/internal/models"
)

func (s *Store) AppendStageLog(ctx context.Context, l models.StageLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	details, err := json.Marshal(l.Details)
	if err != nil {
		return err
	}
	raw := []byte(l.Raw)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO stage_logs (id, provider, stage, reference, outcome, details, raw, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())`,
		l.ID, l.Provider, l.Stage, l.Reference, l.Outcome, details, raw)
	return err
}
