package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tradelearn/payments-backend/internal/metrics"
	"github.com/tradelearn/payments-backend/internal/models"
	"github.com/tradelearn/payments-backend/internal/normalize"
	"github.com/tradelearn/payments-backend/internal/notify"
	"github.com/tradelearn/payments-backend/internal/providers"
	"github.com/tradelearn/payments-backend/internal/store"
	"github.com/tradelearn/payments-backend/internal/worker"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// PaymentService drives the adapter → normalizer → store pipeline and fires
// the notification side effect. Store failures on the verify/webhook paths
// are logged and swallowed so a provider is never told to retry because our
// own persistence hiccupped; initialize escalates them because the user
// needs to know the charge could not start.
type PaymentService struct {
	store    store.Datastore
	adapters providers.Registry
	notifier notify.Notifier
	wp       *worker.Pool
	log      *slog.Logger
}

func NewPaymentService(ds store.Datastore, reg providers.Registry, n notify.Notifier, wp *worker.Pool, log *slog.Logger) *PaymentService {
	return &PaymentService{store: ds, adapters: reg, notifier: n, wp: wp, log: log}
}

// ----------------- stage audit -----------------

// rawJSON keeps arbitrary provider bytes storable in a jsonb column: valid
// JSON passes through, anything else is wrapped as a JSON string.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return b
	}
	wrapped, _ := json.Marshal(string(b))
	return wrapped
}

func (s *PaymentService) stageLog(ctx context.Context, p models.Provider, stage, outcome string, ref string, details map[string]any, raw []byte) {
	var refp *string
	if ref != "" {
		refp = &ref
	}
	err := s.store.AppendStageLog(ctx, models.StageLog{
		Provider:  p,
		Stage:     stage,
		Reference: refp,
		Outcome:   outcome,
		Details:   details,
		Raw:       rawJSON(raw),
	})
	if err != nil {
		s.log.Error("stage log append failed", "provider", p, "stage", stage, "err", err)
	}
}

func (s *PaymentService) stageFailed(ctx context.Context, p models.Provider, stage string, ref string, cause error, raw []byte) {
	metrics.ProviderFailures.WithLabelValues(string(p), stage).Inc()
	s.stageLog(ctx, p, stage, models.OutcomeFailed, ref, map[string]any{"error": cause.Error()}, raw)
}

// ----------------- INITIALIZE -----------------

func (s *PaymentService) Initialize(ctx context.Context, p models.Provider, req providers.InitRequest) (providers.InitResult, error) {
	adapter, ok := s.adapters.Get(p)
	if !ok {
		return providers.InitResult{}, ErrUnsupportedProvider
	}

	res, err := adapter.Initialize(ctx, req)
	if err != nil {
		s.stageFailed(ctx, p, models.StageInit, "", err, nil)
		return providers.InitResult{}, err
	}

	// cache the customer-supplied fields under every reference the provider
	// might echo back later
	rec := models.InitRecord{
		Provider: p,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Course:   req.Course,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	for _, key := range res.InitKeys {
		if key == "" {
			continue
		}
		rec.Key = key
		if err := s.store.PutInitRecord(ctx, rec); err != nil {
			s.stageFailed(ctx, p, models.StageInit, res.Reference, err, nil)
			return providers.InitResult{}, err
		}
	}

	s.stageLog(ctx, p, models.StageInit, models.OutcomeOK, res.Reference,
		map[string]any{"pay_url": res.PayURL}, nil)
	return res, nil
}

// ----------------- VERIFY -----------------

func (s *PaymentService) Verify(ctx context.Context, p models.Provider, reference string) (models.Transaction, error) {
	adapter, ok := s.adapters.Get(p)
	if !ok {
		return models.Transaction{}, ErrUnsupportedProvider
	}

	ev, err := adapter.Verify(ctx, reference)
	if err != nil {
		s.stageFailed(ctx, p, models.StageVerify, reference, err, nil)
		return models.Transaction{}, err
	}
	return s.record(ctx, models.StageVerify, ev)
}

// ----------------- WEBHOOK -----------------

func (s *PaymentService) HandleNotification(ctx context.Context, p models.Provider, body []byte, header http.Header) (models.Transaction, error) {
	adapter, ok := s.adapters.Get(p)
	if !ok {
		return models.Transaction{}, ErrUnsupportedProvider
	}

	if v, ok := adapter.(providers.NotificationVerifier); ok {
		if err := v.VerifyNotification(body, header); err != nil {
			s.stageFailed(ctx, p, models.StageWebhook, "", err, body)
			return models.Transaction{}, err
		}
	}

	ev, err := adapter.ParseNotification(body)
	if err != nil {
		s.stageFailed(ctx, p, models.StageWebhook, "", err, body)
		return models.Transaction{}, err
	}
	return s.record(ctx, models.StageWebhook, ev)
}

// ----------------- pipeline -----------------

// record normalizes one raw event, upserts the canonical transaction and
// fires side effects. Only normalization errors are returned; store errors
// never fail the calling handler.
func (s *PaymentService) record(ctx context.Context, stage string, ev providers.RawEvent) (models.Transaction, error) {
	init := s.lookupInit(ctx, ev)

	tx, err := normalize.Normalize(ev, init)
	if err != nil {
		s.stageFailed(ctx, ev.Provider, stage, ev.Reference, err, ev.Raw)
		return models.Transaction{}, err
	}

	// no transition guard exists: a late retry may downgrade a settled
	// record (last-write-wins). Flagged loudly instead of silently fixed.
	if prev, err := s.store.GetTransaction(ctx, tx.ID); err == nil {
		if prev.Status == models.TxnSuccess && tx.Status != models.TxnSuccess {
			s.log.Warn("stale event downgrades settled transaction",
				"id", tx.ID, "from", prev.Status, "to", tx.Status, "stage", stage)
		}
	}

	if _, err := s.store.UpsertTransaction(ctx, tx); err != nil {
		s.log.Error("transaction upsert failed, continuing", "id", tx.ID, "err", err)
	}

	s.stageLog(ctx, ev.Provider, stage, models.OutcomeOK, ev.Reference,
		map[string]any{"transaction_id": tx.ID, "status": tx.Status}, ev.Raw)
	metrics.ProviderEvents.WithLabelValues(string(ev.Provider), stage, string(tx.Status)).Inc()

	if tx.Status == models.TxnSuccess && tx.Email != "" {
		s.wp.Submit(func() { s.fulfil(tx) })
	}
	return tx, nil
}

func (s *PaymentService) lookupInit(ctx context.Context, ev providers.RawEvent) *models.InitRecord {
	for _, key := range []string{ev.Reference, ev.SecondaryRef} {
		if key == "" {
			continue
		}
		rec, err := s.store.GetInitRecord(ctx, key)
		if err != nil {
			s.log.Error("init record lookup failed", "key", key, "err", err)
			continue
		}
		if rec != nil {
			return rec
		}
	}
	return nil
}

// fulfil runs on the worker pool: denormalized purchase row plus the
// confirmation email. Log-only failure semantics on both.
func (s *PaymentService) fulfil(tx models.Transaction) {
	ctx := context.Background()

	course, _ := tx.Metadata["course"].(string)
	p := models.Purchase{
		ID:            "pur_" + tx.ID,
		TransactionID: tx.ID,
		Course:        course,
		Name:          tx.Name,
		Email:         tx.Email,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		s.log.Error("purchase record failed", "transaction", tx.ID, "err", err)
	}
	if err := s.notifier.SendPurchaseConfirmation(ctx, p); err != nil {
		metrics.NotificationsFailed.Inc()
		s.log.Error("purchase confirmation failed", "transaction", tx.ID, "err", err)
		return
	}
	metrics.NotificationsSent.Inc()
}
