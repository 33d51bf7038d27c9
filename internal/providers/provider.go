package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/models"
)

// InitRequest is the generic "start a charge" input shared by all adapters.
type InitRequest struct {
	Amount   decimal.Decimal
	Currency string
	Name     string
	Email    string
	Phone    string
	Course   string
}

// InitResult comes back from a successful charge initiation. InitKeys holds
// every transient reference the provider might echo in a later callback;
// the service caches one InitRecord per key.
type InitResult struct {
	PayURL    string
	Reference string
	InitKeys  []string
	Message   string
}

// RawEvent is one provider notification, poll response or init echo reduced
// to the fields the normalizer needs. Amounts stay in the provider's native
// unit; unit conversion is the normalizer's job.
type RawEvent struct {
	Provider     models.Provider
	Reference    string
	SecondaryRef string

	// exactly one of these carries the provider's outcome signal
	ResultCode *int   // mpesa numeric result code
	Status     string // paystack/binance/paddle status or event name
	HasPayment bool   // coinbase: charge has at least one payment entry

	Amount    decimal.Decimal
	AmountSet bool
	Currency  string

	Email string
	Phone string
	Name  string

	Metadata map[string]any
	PaidAt   *time.Time
	Raw      json.RawMessage
}

// Adapter translates between the generic charge operations and one
// provider's REST contract.
type Adapter interface {
	Provider() models.Provider
	Initialize(ctx context.Context, req InitRequest) (InitResult, error)
	Verify(ctx context.Context, reference string) (RawEvent, error)
	ParseNotification(body []byte) (RawEvent, error)
}

// NotificationVerifier is implemented by adapters whose provider signs its
// webhook deliveries. Verification happens before parsing.
type NotificationVerifier interface {
	VerifyNotification(body []byte, header http.Header) error
}

var (
	ErrNotConfigured    = errors.New("provider not configured")
	ErrBadNotification  = errors.New("malformed provider notification")
	ErrBadSignature     = errors.New("notification signature mismatch")
	ErrEmptyReference   = errors.New("reference is required")
)

// Registry maps provider names to their adapters.
type Registry map[models.Provider]Adapter

func (r Registry) Get(p models.Provider) (Adapter, bool) {
	a, ok := r[p]
	return a, ok
}
