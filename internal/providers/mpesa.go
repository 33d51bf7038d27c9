package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

// Mpesa drives Safaricom's STK Push flow: an initialize call prompts the
// customer's phone, the outcome arrives on the callback URL (or via the
// stkpushquery poll). The Daraja API emits two transient ids per push
// (MerchantRequestID and CheckoutRequestID); init records are cached under
// both because the callback echoes both and the query echoes only one.
type Mpesa struct {
	cfg    config.MpesaConfig
	client *http.Client
}

func NewMpesa(cfg config.MpesaConfig) *Mpesa {
	return &Mpesa{cfg: cfg, client: newHTTPClient()}
}

func (m *Mpesa) Provider() models.Provider { return models.ProviderMpesa }

type mpesaTokenResp struct {
	AccessToken string `json:"access_token"`
}

func (m *Mpesa) accessToken(ctx context.Context) (string, error) {
	if m.cfg.ConsumerKey == "" || m.cfg.ConsumerSecret == "" {
		return "", ErrNotConfigured
	}
	basic := base64.StdEncoding.EncodeToString([]byte(m.cfg.ConsumerKey + ":" + m.cfg.ConsumerSecret))
	var tok mpesaTokenResp
	err := doJSON(ctx, m.client, "mpesa", http.MethodGet,
		m.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials",
		map[string]string{"Authorization": "Basic " + basic}, nil, &tok)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("mpesa api: empty access token")
	}
	return tok.AccessToken, nil
}

// password is base64(shortcode+passkey+timestamp), timestamp yyyyMMddHHmmss.
func (m *Mpesa) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(m.cfg.Shortcode + m.cfg.Passkey + ts))
}

type mpesaSTKResp struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
}

func (m *Mpesa) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	tok, err := m.accessToken(ctx)
	if err != nil {
		return InitResult{}, err
	}

	ts := time.Now().Format("20060102150405")
	phone := strings.TrimPrefix(req.Phone, "+")
	body := marshalBody(map[string]any{
		"BusinessShortCode": m.cfg.Shortcode,
		"Password":          m.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.Round(0).String(),
		"PartyA":            phone,
		"PartyB":            m.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       m.cfg.CallbackURL,
		"AccountReference":  req.Course,
		"TransactionDesc":   "Course purchase",
	})

	var out mpesaSTKResp
	err = doJSON(ctx, m.client, "mpesa", http.MethodPost,
		m.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest",
		map[string]string{"Authorization": "Bearer " + tok}, body, &out)
	if err != nil {
		return InitResult{}, err
	}
	if out.ResponseCode != "0" {
		return InitResult{}, fmt.Errorf("mpesa api: stk push rejected, response code %q", out.ResponseCode)
	}

	return InitResult{
		Reference: out.MerchantRequestID,
		InitKeys:  []string{out.MerchantRequestID, out.CheckoutRequestID},
		Message:   out.CustomerMessage,
	}, nil
}

type mpesaQueryResp struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

// Verify polls the STK query endpoint by CheckoutRequestID.
func (m *Mpesa) Verify(ctx context.Context, reference string) (RawEvent, error) {
	if reference == "" {
		return RawEvent{}, ErrEmptyReference
	}
	tok, err := m.accessToken(ctx)
	if err != nil {
		return RawEvent{}, err
	}

	ts := time.Now().Format("20060102150405")
	body := marshalBody(map[string]any{
		"BusinessShortCode": m.cfg.Shortcode,
		"Password":          m.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": reference,
	})

	var out mpesaQueryResp
	err = doJSON(ctx, m.client, "mpesa", http.MethodPost,
		m.cfg.BaseURL+"/mpesa/stkpushquery/v1/query",
		map[string]string{"Authorization": "Bearer " + tok}, body, &out)
	if err != nil {
		return RawEvent{}, err
	}

	var code *int
	if n, err := parseIntString(out.ResultCode); err == nil {
		code = &n
	}
	raw, _ := json.Marshal(out)
	return RawEvent{
		Provider:     models.ProviderMpesa,
		Reference:    out.MerchantRequestID,
		SecondaryRef: out.CheckoutRequestID,
		ResultCode:   code,
		Metadata:     map[string]any{"result_desc": out.ResultDesc},
		Raw:          raw,
	}, nil
}

// Callback shape per Daraja: Body.stkCallback with an optional
// CallbackMetadata item list (present only on success).
type mpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (m *Mpesa) ParseNotification(payload []byte) (RawEvent, error) {
	var cb mpesaCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	stk := cb.Body.StkCallback
	if stk.MerchantRequestID == "" && stk.CheckoutRequestID == "" {
		return RawEvent{}, fmt.Errorf("%w: missing request ids", ErrBadNotification)
	}

	code := stk.ResultCode
	ev := RawEvent{
		Provider:     models.ProviderMpesa,
		Reference:    stk.MerchantRequestID,
		SecondaryRef: stk.CheckoutRequestID,
		ResultCode:   &code,
		Metadata:     map[string]any{"result_desc": stk.ResultDesc},
		Raw:          append([]byte(nil), payload...),
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if d, ok := toDecimal(item.Value); ok {
				ev.Amount = d
				ev.AmountSet = true
			}
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				ev.Metadata["receipt"] = s
			}
		case "PhoneNumber":
			ev.Phone = anyToString(item.Value)
		case "TransactionDate":
			if t, ok := parseMpesaDate(item.Value); ok {
				ev.PaidAt = &t
			}
		}
	}
	return ev, nil
}

func parseMpesaDate(v any) (time.Time, bool) {
	s := anyToString(v)
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func anyToString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	case json.Number:
		return x.String()
	}
	return ""
}

func parseIntString(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
