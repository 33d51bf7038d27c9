package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

// CoinbaseCommerce creates hosted crypto charges. A charge is only
// considered settled once its payments array is non-empty; an empty array
// means the customer has not paid yet, however old the charge is.
type CoinbaseCommerce struct {
	cfg    config.CoinbaseConfig
	client *http.Client
}

func NewCoinbaseCommerce(cfg config.CoinbaseConfig) *CoinbaseCommerce {
	return &CoinbaseCommerce{cfg: cfg, client: newHTTPClient()}
}

func (c *CoinbaseCommerce) Provider() models.Provider { return models.ProviderCoinbase }

func (c *CoinbaseCommerce) headers() (map[string]string, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return map[string]string{
		"X-CC-Api-Key": c.cfg.APIKey,
		"X-CC-Version": "2018-03-22",
	}, nil
}

type coinbaseCharge struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	HostedURL string `json:"hosted_url"`
	Pricing   struct {
		Local struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"local"`
	} `json:"pricing"`
	Payments []struct {
		Network       string `json:"network"`
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
		DetectedAt    string `json:"detected_at"`
	} `json:"payments"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

func (c *CoinbaseCommerce) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	hdr, err := c.headers()
	if err != nil {
		return InitResult{}, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	body := marshalBody(map[string]any{
		"name":         req.Course,
		"description":  "Course purchase",
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   req.Amount.String(),
			"currency": currency,
		},
		"metadata": map[string]any{
			"name":   req.Name,
			"email":  req.Email,
			"phone":  req.Phone,
			"course": req.Course,
		},
	})

	var out struct {
		Data coinbaseCharge `json:"data"`
	}
	err = doJSON(ctx, c.client, "coinbase", http.MethodPost,
		c.cfg.BaseURL+"/charges", hdr, body, &out)
	if err != nil {
		return InitResult{}, err
	}
	if out.Data.Code == "" {
		return InitResult{}, fmt.Errorf("coinbase api: charge created without code")
	}

	return InitResult{
		PayURL:    out.Data.HostedURL,
		Reference: out.Data.Code,
		InitKeys:  []string{out.Data.Code},
	}, nil
}

func (c *CoinbaseCommerce) chargeEvent(ch coinbaseCharge, raw []byte) RawEvent {
	ev := RawEvent{
		Provider:   models.ProviderCoinbase,
		Reference:  ch.Code,
		HasPayment: len(ch.Payments) > 0,
		Currency:   ch.Pricing.Local.Currency,
		Metadata:   map[string]any{},
		Raw:        append([]byte(nil), raw...),
	}
	if d, err := decimal.NewFromString(ch.Pricing.Local.Amount); err == nil {
		ev.Amount = d
		ev.AmountSet = true
	}
	if v, ok := ch.Metadata["email"].(string); ok {
		ev.Email = v
	}
	if v, ok := ch.Metadata["name"].(string); ok {
		ev.Name = v
	}
	if v, ok := ch.Metadata["phone"].(string); ok {
		ev.Phone = v
	}
	if v, ok := ch.Metadata["course"].(string); ok {
		ev.Metadata["course"] = v
	}
	if len(ch.Payments) > 0 {
		p := ch.Payments[0]
		ev.Metadata["network"] = p.Network
		ev.Metadata["transaction_id"] = p.TransactionID
		if t, err := time.Parse(time.RFC3339, p.DetectedAt); err == nil {
			ev.PaidAt = &t
		}
	}
	return ev
}

func (c *CoinbaseCommerce) Verify(ctx context.Context, reference string) (RawEvent, error) {
	if reference == "" {
		return RawEvent{}, ErrEmptyReference
	}
	hdr, err := c.headers()
	if err != nil {
		return RawEvent{}, err
	}

	var out struct {
		Data coinbaseCharge `json:"data"`
	}
	err = doJSON(ctx, c.client, "coinbase", http.MethodGet,
		c.cfg.BaseURL+"/charges/"+reference, hdr, nil, &out)
	if err != nil {
		return RawEvent{}, err
	}
	raw, _ := json.Marshal(out.Data)
	return c.chargeEvent(out.Data, raw), nil
}

type coinbaseWebhook struct {
	Event struct {
		Type string         `json:"type"`
		Data coinbaseCharge `json:"data"`
	} `json:"event"`
}

func (c *CoinbaseCommerce) ParseNotification(payload []byte) (RawEvent, error) {
	var wh coinbaseWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if wh.Event.Data.Code == "" {
		return RawEvent{}, fmt.Errorf("%w: missing charge code", ErrBadNotification)
	}
	ev := c.chargeEvent(wh.Event.Data, payload)
	ev.Metadata["event"] = wh.Event.Type
	return ev, nil
}

// VerifyNotification checks X-CC-Webhook-Signature: hex HMAC-SHA256 of the
// raw body keyed with the shared webhook secret.
func (c *CoinbaseCommerce) VerifyNotification(body []byte, header http.Header) error {
	if c.cfg.WebhookSecret == "" {
		return ErrNotConfigured
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	got := header.Get("X-CC-Webhook-Signature")
	if got == "" || !hmac.Equal([]byte(want), []byte(got)) {
		return ErrBadSignature
	}
	return nil
}
