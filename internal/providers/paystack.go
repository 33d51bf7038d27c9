package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

// Paystack charges in minor units (kobo). The customer is redirected to the
// authorization_url and the outcome arrives on the charge.success webhook or
// via the verify endpoint.
type Paystack struct {
	cfg    config.PaystackConfig
	client *http.Client
}

func NewPaystack(cfg config.PaystackConfig) *Paystack {
	return &Paystack{cfg: cfg, client: newHTTPClient()}
}

func (p *Paystack) Provider() models.Provider { return models.ProviderPaystack }

func (p *Paystack) authHeader() (map[string]string, error) {
	if p.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	return map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey}, nil
}

type paystackInitResp struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	hdr, err := p.authHeader()
	if err != nil {
		return InitResult{}, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	// paystack wants kobo
	body := marshalBody(map[string]any{
		"email":    req.Email,
		"amount":   req.Amount.Mul(decimal.NewFromInt(100)).Round(0).String(),
		"currency": currency,
		"metadata": map[string]any{
			"name":   req.Name,
			"phone":  req.Phone,
			"course": req.Course,
		},
	})

	var out paystackInitResp
	err = doJSON(ctx, p.client, "paystack", http.MethodPost,
		p.cfg.BaseURL+"/transaction/initialize", hdr, body, &out)
	if err != nil {
		return InitResult{}, err
	}
	if !out.Status || out.Data.Reference == "" {
		return InitResult{}, fmt.Errorf("paystack api: initialize rejected: %s", out.Message)
	}

	return InitResult{
		PayURL:    out.Data.AuthorizationURL,
		Reference: out.Data.Reference,
		InitKeys:  []string{out.Data.Reference},
	}, nil
}

// paystackTxn is the data object shared by the verify response and the
// charge webhook.
type paystackTxn struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Metadata      map[string]any `json:"metadata"`
	Authorization struct {
		Last4   string `json:"last4"`
		Channel string `json:"channel"`
		Bank    string `json:"bank"`
	} `json:"authorization"`
}

func (p *Paystack) event(txn paystackTxn, raw []byte) RawEvent {
	ev := RawEvent{
		Provider:  models.ProviderPaystack,
		Reference: txn.Reference,
		Status:    txn.Status,
		Amount:    decimal.NewFromInt(txn.Amount),
		AmountSet: txn.Amount != 0,
		Currency:  txn.Currency,
		Email:     txn.Customer.Email,
		Phone:     txn.Customer.Phone,
		Metadata:  map[string]any{},
		Raw:       append([]byte(nil), raw...),
	}
	if txn.Authorization.Last4 != "" {
		ev.Metadata["card_last4"] = txn.Authorization.Last4
	}
	if txn.Authorization.Channel != "" {
		ev.Metadata["channel"] = txn.Authorization.Channel
	}
	if v, ok := txn.Metadata["name"].(string); ok {
		ev.Name = v
	}
	if v, ok := txn.Metadata["phone"].(string); ok && ev.Phone == "" {
		ev.Phone = v
	}
	if v, ok := txn.Metadata["course"].(string); ok {
		ev.Metadata["course"] = v
	}
	if t, err := time.Parse(time.RFC3339, txn.PaidAt); err == nil {
		ev.PaidAt = &t
	}
	return ev
}

func (p *Paystack) Verify(ctx context.Context, reference string) (RawEvent, error) {
	if reference == "" {
		return RawEvent{}, ErrEmptyReference
	}
	hdr, err := p.authHeader()
	if err != nil {
		return RawEvent{}, err
	}

	var out struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	err = doJSON(ctx, p.client, "paystack", http.MethodGet,
		p.cfg.BaseURL+"/transaction/verify/"+reference, hdr, nil, &out)
	if err != nil {
		return RawEvent{}, err
	}
	if !out.Status {
		return RawEvent{}, fmt.Errorf("paystack api: verify rejected: %s", out.Message)
	}

	var txn paystackTxn
	if err := json.Unmarshal(out.Data, &txn); err != nil {
		return RawEvent{}, fmt.Errorf("paystack api: decode data: %w", err)
	}
	return p.event(txn, out.Data), nil
}

type paystackWebhook struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (p *Paystack) ParseNotification(payload []byte) (RawEvent, error) {
	var wh paystackWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	var txn paystackTxn
	if err := json.Unmarshal(wh.Data, &txn); err != nil || txn.Reference == "" {
		return RawEvent{}, fmt.Errorf("%w: missing reference", ErrBadNotification)
	}

	ev := p.event(txn, payload)
	ev.Metadata["event"] = wh.Event
	return ev, nil
}

// VerifyNotification checks the x-paystack-signature header: hex HMAC-SHA512
// of the raw body keyed with the secret key.
func (p *Paystack) VerifyNotification(body []byte, header http.Header) error {
	if p.cfg.SecretKey == "" {
		return ErrNotConfigured
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	got := header.Get("x-paystack-signature")
	if got == "" || !hmac.Equal([]byte(want), []byte(got)) {
		return ErrBadSignature
	}
	return nil
}
