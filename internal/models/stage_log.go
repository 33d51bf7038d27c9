package models

import (
	"encoding/json"
	"time"
)

const (
	StageInit    = "init"
	StageVerify  = "verify"
	StageWebhook = "webhook"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// StageLog is an append-only audit record written at every init/verify/webhook
// stage, successful or not. Never upserted.
type StageLog struct {
	ID        string          `json:"id"`
	Provider  Provider        `json:"provider"`
	Stage     string          `json:"stage"`
	Reference *string         `json:"reference,omitempty"`
	Outcome   string          `json:"outcome"`
	Details   map[string]any  `json:"details,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
