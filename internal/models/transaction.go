package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderMpesa    Provider = "mpesa"
	ProviderPaystack Provider = "paystack"
	ProviderBinance  Provider = "binance"
	ProviderCoinbase Provider = "coinbase"
	ProviderPaddle   Provider = "paddle"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderMpesa, ProviderPaystack, ProviderBinance, ProviderCoinbase, ProviderPaddle:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxnSuccess   TransactionStatus = "success"
	TxnPending   TransactionStatus = "pending"
	TxnFailed    TransactionStatus = "failed"
	TxnCancelled TransactionStatus = "cancelled"
)

// Transaction is the canonical, provider-agnostic payment record. The ID is
// deterministic per provider+reference so repeated deliveries of the same
// provider event upsert the same document.
type Transaction struct {
	ID        string            `json:"id"`
	Provider  Provider          `json:"provider"`
	Status    TransactionStatus `json:"status"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Name      string            `json:"name,omitempty"`
	Reference string            `json:"reference"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	RawData   json.RawMessage   `json:"raw_data,omitempty"`
	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ProviderStat is one row of the dashboard aggregate: totals per
// provider+status pair.
type ProviderStat struct {
	Provider Provider          `json:"provider"`
	Status   TransactionStatus `json:"status"`
	Count    int64             `json:"count"`
	Total    decimal.Decimal   `json:"total"`
}
