// Package normalize maps raw provider events onto the canonical transaction
// record: deterministic id, unified status, major-unit amount, merged
// contact fields.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/providers"
)

var (
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrMissingReference = errors.New("event has no reference")
)

var hundred = decimal.NewFromInt(100)

// minorUnitProviders report amounts in cents/kobo and are divided by 100;
// the rest already report major units.
var minorUnitProviders = map[models.Provider]bool{
	models.ProviderMpesa:    true,
	models.ProviderPaystack: true,
}

var defaultCurrency = map[models.Provider]string{
	models.ProviderMpesa:    "KES",
	models.ProviderPaystack: "NGN",
	models.ProviderBinance:  "USDT",
	models.ProviderCoinbase: "USD",
	models.ProviderPaddle:   "USD",
}

// TransactionID derives the deterministic upsert key for a provider event.
// The same event always re-derives the same id.
func TransactionID(ev providers.RawEvent) (string, error) {
	switch ev.Provider {
	case models.ProviderMpesa:
		if ev.Reference == "" && ev.SecondaryRef == "" {
			return "", ErrMissingReference
		}
		return fmt.Sprintf("mpesa_%s_%s", ev.Reference, ev.SecondaryRef), nil
	case models.ProviderPaystack, models.ProviderBinance, models.ProviderCoinbase, models.ProviderPaddle:
		if ev.Reference == "" {
			return "", ErrMissingReference
		}
		return string(ev.Provider) + "_" + ev.Reference, nil
	}
	return "", ErrUnknownProvider
}

// Normalize builds the canonical transaction for one raw event, merging in
// the matched init record when the provider callback omitted contact or
// amount fields. It is pure and safe to call repeatedly for retried
// deliveries of the same event.
func Normalize(ev providers.RawEvent, init *models.InitRecord) (models.Transaction, error) {
	id, err := TransactionID(ev)
	if err != nil {
		return models.Transaction{}, err
	}

	now := time.Now().UTC()
	tx := models.Transaction{
		ID:        id,
		Provider:  ev.Provider,
		Status:    deriveStatus(ev),
		Reference: ev.Reference,
		Metadata:  ev.Metadata,
		RawData:   ev.Raw,
		PaidAt:    ev.PaidAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]any{}
	}
	if ev.SecondaryRef != "" {
		tx.Metadata["secondary_reference"] = ev.SecondaryRef
	}

	// amount: event first, then init record; minor units divide by 100
	switch {
	case ev.AmountSet:
		tx.Amount = ev.Amount
		if minorUnitProviders[ev.Provider] {
			tx.Amount = tx.Amount.Div(hundred)
		}
	case init != nil:
		tx.Amount = init.Amount
	}

	tx.Currency = ev.Currency
	if tx.Currency == "" && init != nil {
		tx.Currency = init.Currency
	}
	if tx.Currency == "" {
		tx.Currency = defaultCurrency[ev.Provider]
	}

	// contact fields: raw event wins, init record fills gaps, never guessed
	tx.Email, tx.Phone, tx.Name = ev.Email, ev.Phone, ev.Name
	if init != nil {
		if tx.Email == "" {
			tx.Email = init.Email
		}
		if tx.Phone == "" {
			tx.Phone = init.Phone
		}
		if tx.Name == "" {
			tx.Name = init.Name
		}
		if init.Course != "" {
			if _, ok := tx.Metadata["course"]; !ok {
				tx.Metadata["course"] = init.Course
			}
		}
	}

	return tx, nil
}

// mpesa result codes with a dedicated terminal meaning
const (
	mpesaResultOK        = 0
	mpesaResultCancelled = 1032
	mpesaResultTimeout   = 1037
)

var binanceSuccessStatuses = map[string]bool{
	"SUCCESS":     true,
	"COMPLETED":   true,
	"PAID":        true,
	"PAY_SUCCESS": true,
}

var binanceFailedStatuses = map[string]bool{
	"EXPIRED":    true,
	"CANCELED":   true,
	"ERROR":      true,
	"FAIL":       true,
	"PAY_CLOSED": true,
}

func deriveStatus(ev providers.RawEvent) models.TransactionStatus {
	switch ev.Provider {
	case models.ProviderMpesa:
		if ev.ResultCode == nil {
			return models.TxnPending
		}
		switch *ev.ResultCode {
		case mpesaResultOK:
			return models.TxnSuccess
		case mpesaResultCancelled:
			return models.TxnCancelled
		case mpesaResultTimeout:
			return models.TxnFailed
		default:
			return models.TxnFailed
		}

	case models.ProviderPaystack:
		if ev.Status == "success" {
			return models.TxnSuccess
		}
		return models.TxnFailed

	case models.ProviderBinance:
		switch {
		case binanceSuccessStatuses[ev.Status]:
			return models.TxnSuccess
		case binanceFailedStatuses[ev.Status]:
			return models.TxnFailed
		default:
			return models.TxnPending
		}

	case models.ProviderCoinbase:
		// settled only once at least one payment landed, regardless of age
		if ev.HasPayment {
			return models.TxnSuccess
		}
		return models.TxnPending

	case models.ProviderPaddle:
		if providers.PaddleEventSucceeded(ev.Status) {
			return models.TxnSuccess
		}
		return models.TxnPending
	}
	return models.TxnPending
}
