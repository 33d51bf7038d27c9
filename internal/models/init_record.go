package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitRecord caches customer-supplied fields captured when a charge is
// started. Some providers omit those fields from their asynchronous
// callbacks, so the normalizer merges the matching record back in. Keyed by
// every transient reference the provider might echo (M-Pesa emits two).
type InitRecord struct {
	Key       string          `json:"key"`
	Provider  Provider        `json:"provider"`
	Name      string          `json:"name,omitempty"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Course    string          `json:"course,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}
