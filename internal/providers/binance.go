package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

// BinancePay settles in crypto (USDT by default) and reports amounts in
// major units. Every request is signed: HMAC-SHA512 over
// "timestamp\nnonce\nbody\n", uppercase hex, plus certificate headers.
type BinancePay struct {
	cfg    config.BinanceConfig
	client *http.Client

	// overridable for tests
	now   func() time.Time
	nonce func() string
}

func NewBinancePay(cfg config.BinanceConfig) *BinancePay {
	return &BinancePay{
		cfg:    cfg,
		client: newHTTPClient(),
		now:    time.Now,
		nonce:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func (b *BinancePay) Provider() models.Provider { return models.ProviderBinance }

func (b *BinancePay) sign(ts, nonce string, body []byte) string {
	payload := ts + "\n" + nonce + "\n" + string(body) + "\n"
	mac := hmac.New(sha512.New, []byte(b.cfg.APISecret))
	mac.Write([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

func (b *BinancePay) signedHeaders(body []byte) (map[string]string, error) {
	if b.cfg.APIKey == "" || b.cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}
	ts := fmt.Sprintf("%d", b.now().UnixMilli())
	nonce := b.nonce()
	return map[string]string{
		"BinancePay-Timestamp":      ts,
		"BinancePay-Nonce":          nonce,
		"BinancePay-Certificate-SN": b.cfg.APIKey,
		"BinancePay-Signature":      b.sign(ts, nonce, body),
	}, nil
}

type binanceEnvelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	ErrMsg  string          `json:"errorMessage"`
}

func (b *BinancePay) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USDT"
	}
	tradeNo := strings.ReplaceAll(uuid.NewString(), "-", "")
	body := marshalBody(map[string]any{
		"env":             map[string]any{"terminalType": "WEB"},
		"merchantTradeNo": tradeNo,
		"orderAmount":     req.Amount.String(),
		"currency":        currency,
		"description":     "Course purchase: " + req.Course,
		"goodsDetails": []map[string]any{{
			"goodsType":        "02",
			"goodsCategory":    "Z000",
			"referenceGoodsId": req.Course,
			"goodsName":        req.Course,
		}},
	})

	hdr, err := b.signedHeaders(body)
	if err != nil {
		return InitResult{}, err
	}

	var out binanceEnvelope
	err = doJSON(ctx, b.client, "binance", http.MethodPost,
		b.cfg.BaseURL+"/binancepay/openapi/v3/order", hdr, body, &out)
	if err != nil {
		return InitResult{}, err
	}
	if out.Status != "SUCCESS" {
		return InitResult{}, fmt.Errorf("binance api: order rejected: %s %s", out.Code, out.ErrMsg)
	}

	var data struct {
		PrepayID     string `json:"prepayId"`
		CheckoutURL  string `json:"checkoutUrl"`
		UniversalURL string `json:"universalUrl"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return InitResult{}, fmt.Errorf("binance api: decode data: %w", err)
	}

	payURL := data.CheckoutURL
	if payURL == "" {
		payURL = data.UniversalURL
	}
	return InitResult{
		PayURL:    payURL,
		Reference: tradeNo,
		InitKeys:  []string{tradeNo, data.PrepayID},
	}, nil
}

type binanceOrder struct {
	MerchantTradeNo string `json:"merchantTradeNo"`
	PrepayID        string `json:"prepayId"`
	TransactionID   string `json:"transactionId"`
	Status          string `json:"status"`
	OrderAmount     string `json:"orderAmount"`
	Currency        string `json:"currency"`
	CreateTime      int64  `json:"createTime"`
}

func (b *BinancePay) orderEvent(o binanceOrder, raw []byte) RawEvent {
	ev := RawEvent{
		Provider:  models.ProviderBinance,
		Reference: o.MerchantTradeNo,
		Status:    o.Status,
		Currency:  o.Currency,
		Metadata:  map[string]any{},
		Raw:       append([]byte(nil), raw...),
	}
	if d, err := decimal.NewFromString(o.OrderAmount); err == nil {
		ev.Amount = d
		ev.AmountSet = true
	}
	if o.TransactionID != "" {
		ev.Metadata["transaction_id"] = o.TransactionID
	}
	return ev
}

func (b *BinancePay) Verify(ctx context.Context, reference string) (RawEvent, error) {
	if reference == "" {
		return RawEvent{}, ErrEmptyReference
	}
	body := marshalBody(map[string]any{"merchantTradeNo": reference})
	hdr, err := b.signedHeaders(body)
	if err != nil {
		return RawEvent{}, err
	}

	var out binanceEnvelope
	err = doJSON(ctx, b.client, "binance", http.MethodPost,
		b.cfg.BaseURL+"/binancepay/openapi/v2/order/query", hdr, body, &out)
	if err != nil {
		return RawEvent{}, err
	}
	if out.Status != "SUCCESS" {
		return RawEvent{}, fmt.Errorf("binance api: query rejected: %s %s", out.Code, out.ErrMsg)
	}

	var o binanceOrder
	if err := json.Unmarshal(out.Data, &o); err != nil {
		return RawEvent{}, fmt.Errorf("binance api: decode data: %w", err)
	}
	return b.orderEvent(o, out.Data), nil
}

// Webhook deliveries carry bizStatus plus a data field that Binance encodes
// as a JSON string; some sandbox deliveries send it as an object instead, so
// both forms are accepted.
type binanceWebhook struct {
	BizType   string          `json:"bizType"`
	BizID     json.Number     `json:"bizId"`
	BizStatus string          `json:"bizStatus"`
	Data      json.RawMessage `json:"data"`
}

func (b *BinancePay) ParseNotification(payload []byte) (RawEvent, error) {
	var wh binanceWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if wh.BizStatus == "" {
		return RawEvent{}, fmt.Errorf("%w: missing bizStatus", ErrBadNotification)
	}

	inner := wh.Data
	var asString string
	if err := json.Unmarshal(wh.Data, &asString); err == nil {
		inner = json.RawMessage(asString)
	}

	var o binanceOrder
	if len(inner) > 0 {
		if err := json.Unmarshal(inner, &o); err != nil {
			return RawEvent{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
		}
	}
	if o.MerchantTradeNo == "" {
		return RawEvent{}, fmt.Errorf("%w: missing merchantTradeNo", ErrBadNotification)
	}

	ev := b.orderEvent(o, payload)
	// bizStatus (PAY_SUCCESS / PAY_CLOSED) wins over the embedded order echo
	ev.Status = wh.BizStatus
	ev.Metadata["biz_id"] = wh.BizID.String()
	return ev, nil
}
