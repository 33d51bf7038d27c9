package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is the denormalized record written when a transaction settles
// successfully; the dashboards read it directly instead of re-deriving it
// from transactions.
type Purchase struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Course        string          `json:"course,omitempty"`
	Name          string          `json:"name,omitempty"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}
