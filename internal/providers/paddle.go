package providers

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

// paddleSuccessEvents is the success vocabulary across Paddle's classic
// (alert_name) and Billing (event_type) webhook generations.
var paddleSuccessEvents = map[string]bool{
	"payment_succeeded":      true,
	"transaction.completed":  true,
	"transaction.paid":       true,
	"subscription.activated": true,
}

func PaddleEventSucceeded(name string) bool { return paddleSuccessEvents[name] }

// Paddle generates hosted pay links and pushes webhooks. Amounts are already
// in major units. Classic webhooks are form-encoded and RSA-signed
// (p_signature); Billing webhooks are JSON. No order id exists at init time,
// so the passthrough field carries our own key for the init record lookup.
type Paddle struct {
	cfg    config.PaddleConfig
	client *http.Client
	pubKey *rsa.PublicKey
}

func NewPaddle(cfg config.PaddleConfig) (*Paddle, error) {
	p := &Paddle{cfg: cfg, client: newHTTPClient()}
	if cfg.PublicKeyPEM != "" {
		key, err := parseRSAPublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("paddle public key: %w", err)
		}
		p.pubKey = key
	}
	return p, nil
}

func parseRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA key")
	}
	return key, nil
}

func (p *Paddle) Provider() models.Provider { return models.ProviderPaddle }

func (p *Paddle) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	if p.cfg.VendorID == "" || p.cfg.APIKey == "" {
		return InitResult{}, ErrNotConfigured
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	passthrough := "ptx_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	form := url.Values{}
	form.Set("vendor_id", p.cfg.VendorID)
	form.Set("vendor_auth_code", p.cfg.APIKey)
	form.Set("title", req.Course)
	form.Set("prices[0]", currency+":"+req.Amount.StringFixed(2))
	form.Set("customer_email", req.Email)
	form.Set("passthrough", passthrough)

	var out struct {
		Success  bool `json:"success"`
		Response struct {
			URL string `json:"url"`
		} `json:"response"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	err := doForm(ctx, p.client, "paddle",
		p.cfg.BaseURL+"/api/2.0/product/generate_pay_link", form, &out)
	if err != nil {
		return InitResult{}, err
	}
	if !out.Success || out.Response.URL == "" {
		return InitResult{}, fmt.Errorf("paddle api: pay link rejected: %s", out.Error.Message)
	}

	return InitResult{
		PayURL:    out.Response.URL,
		Reference: passthrough,
		InitKeys:  []string{passthrough},
	}, nil
}

// Verify looks up a completed checkout by checkout id on the public order
// information API.
func (p *Paddle) Verify(ctx context.Context, reference string) (RawEvent, error) {
	if reference == "" {
		return RawEvent{}, ErrEmptyReference
	}

	var out struct {
		State string `json:"state"`
		Order struct {
			OrderID  json.Number `json:"order_id"`
			Total    string      `json:"total"`
			Currency string      `json:"currency"`
			Customer struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"order"`
	}
	err := doJSON(ctx, p.client, "paddle", http.MethodGet,
		"https://checkout.paddle.com/api/1.0/order?checkout_id="+url.QueryEscape(reference), nil, nil, &out)
	if err != nil {
		return RawEvent{}, err
	}

	ev := RawEvent{
		Provider:  models.ProviderPaddle,
		Reference: out.Order.OrderID.String(),
		Status:    out.State,
		Currency:  out.Order.Currency,
		Email:     out.Order.Customer.Email,
		Metadata:  map[string]any{"checkout_id": reference},
	}
	if out.State == "processed" {
		ev.Status = "payment_succeeded"
	}
	if d, err := decimal.NewFromString(out.Order.Total); err == nil {
		ev.Amount = d
		ev.AmountSet = true
	}
	ev.Raw, _ = json.Marshal(out)
	return ev, nil
}

func (p *Paddle) ParseNotification(payload []byte) (RawEvent, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		return p.parseBillingWebhook(payload)
	}
	return p.parseClassicWebhook(payload)
}

// Billing generation: JSON body with event_type and a transaction object.
func (p *Paddle) parseBillingWebhook(payload []byte) (RawEvent, error) {
	var wh struct {
		EventType string `json:"event_type"`
		Data      struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			CurrencyCode string `json:"currency_code"`
			Details    struct {
				Totals struct {
					Total string `json:"total"`
				} `json:"totals"`
			} `json:"details"`
			Customer struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"customer"`
			CustomData map[string]any `json:"custom_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &wh); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if wh.Data.ID == "" {
		return RawEvent{}, fmt.Errorf("%w: missing transaction id", ErrBadNotification)
	}

	ev := RawEvent{
		Provider:  models.ProviderPaddle,
		Reference: wh.Data.ID,
		Status:    wh.EventType,
		Currency:  wh.Data.CurrencyCode,
		Email:     wh.Data.Customer.Email,
		Name:      wh.Data.Customer.Name,
		Metadata:  map[string]any{"event": wh.EventType, "provider_status": wh.Data.Status},
		Raw:       append([]byte(nil), payload...),
	}
	if d, err := decimal.NewFromString(wh.Data.Details.Totals.Total); err == nil {
		ev.Amount = d
		ev.AmountSet = true
	}
	if v, ok := wh.Data.CustomData["passthrough"].(string); ok {
		ev.SecondaryRef = v
	}
	return ev, nil
}

// Classic generation: form-encoded body with alert_name and p_* fields.
func (p *Paddle) parseClassicWebhook(payload []byte) (RawEvent, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	orderID := form.Get("p_order_id")
	if orderID == "" {
		orderID = form.Get("order_id")
	}
	alert := form.Get("alert_name")
	if orderID == "" || alert == "" {
		return RawEvent{}, fmt.Errorf("%w: missing order id or alert name", ErrBadNotification)
	}

	// the body is form-encoded, not JSON; kept as a JSON string so the raw
	// column stays jsonb-compatible
	rawStr, _ := json.Marshal(string(payload))

	ev := RawEvent{
		Provider:     models.ProviderPaddle,
		Reference:    orderID,
		SecondaryRef: form.Get("passthrough"),
		Status:       alert,
		Currency:     form.Get("currency"),
		Email:        form.Get("email"),
		Name:         form.Get("customer_name"),
		Metadata:     map[string]any{"event": alert},
		Raw:          rawStr,
	}
	if plan := form.Get("subscription_plan_id"); plan != "" {
		ev.Metadata["subscription_plan_id"] = plan
	}
	if d, err := decimal.NewFromString(form.Get("sale_gross")); err == nil {
		ev.Amount = d
		ev.AmountSet = true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", form.Get("event_time")); err == nil {
		ev.PaidAt = &t
	}
	return ev, nil
}

// VerifyNotification checks the classic p_signature field: RSA-SHA1 over a
// canonicalized serialization of the remaining fields. The canonical form
// here is JSON with sorted keys, which only approximates Paddle's actual
// PHP-serialize-based scheme and may not byte-match every payload; callers
// should treat a mismatch as suspect rather than definitive. Verification
// is skipped entirely when no public key is configured, and Billing (JSON)
// webhooks carry no p_signature at all.
func (p *Paddle) VerifyNotification(body []byte, header http.Header) error {
	if p.pubKey == nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	sig := form.Get("p_signature")
	if sig == "" {
		return ErrBadSignature
	}
	rawSig, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	form.Del("p_signature")

	fields := make(map[string]string, len(form))
	for k := range form {
		fields[k] = form.Get(k)
	}
	canonical, err := json.Marshal(fields) // sorted keys
	if err != nil {
		return err
	}

	sum := sha1.Sum(canonical)
	if err := rsa.VerifyPKCS1v15(p.pubKey, crypto.SHA1, sum[:], rawSig); err != nil {
		return ErrBadSignature
	}
	return nil
}
