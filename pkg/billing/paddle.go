package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/cache"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/statemachine"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Paddle notification types handled by the webhook.
const (
	EventTransactionCompleted     = "transaction.completed"
	EventTransactionPaymentFailed = "transaction.payment_failed"
)

// Actor is recorded in audit entries written on behalf of Paddle.
const Actor = "billing:paddle"

// MaxBodySize limits the accepted notification size.
const MaxBodySize = 1 << 20

// DefaultDedupWindow is how long processed event IDs are remembered.
const DefaultDedupWindow = 24 * time.Hour

// Payments is the part of the lifecycle service the webhook drives.
type Payments interface {
	OnPaymentSuccess(ctx context.Context, tenantID uuid.UUID, p subscription.PaymentSuccess) (*tenant.Tenant, error)
	OnPaymentFailure(ctx context.Context, tenantID uuid.UUID, p subscription.PaymentFailure) (*tenant.Tenant, error)
}

// Option configures the webhook.
type Option func(*PaddleWebhook)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *PaddleWebhook) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithDedupWindow sets how long processed event IDs are remembered. Zero disables deduplication.
func WithDedupWindow(d time.Duration) Option {
	return func(h *PaddleWebhook) {
		h.seen = cache.NewTTLCache[string, struct{}](d)
	}
}

// PaddleWebhook is an http.Handler for Paddle notifications.
type PaddleWebhook struct {
	verifier *paddle.WebhookVerifier
	payments Payments
	seen     *cache.TTLCache[string, struct{}]
	logger   *slog.Logger
}

// NewPaddleWebhook creates the webhook handler.
func NewPaddleWebhook(cfg PaddleConfig, payments Payments, opts ...Option) (*PaddleWebhook, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	if payments == nil {
		return nil, errors.New("billing: payments handler is required")
	}

	h := &PaddleWebhook{
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		payments: payments,
		seen:     cache.NewTTLCache[string, struct{}](DefaultDedupWindow),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("billing"), slog.String("provider", "paddle"))
	return h, nil
}

type notification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type transaction struct {
	ID            string `json:"id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	CustomData    struct {
		TenantID string `json:"tenant_id"`
	} `json:"custom_data"`
	BillingPeriod *struct {
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
	} `json:"billing_period"`
	Payments []struct {
		Status    string `json:"status"`
		ErrorCode string `json:"error_code"`
	} `json:"payments"`
}

func (t transaction) invoice() string {
	switch {
	case t.InvoiceNumber != "":
		return t.InvoiceNumber
	case t.InvoiceID != "":
		return t.InvoiceID
	}
	return t.ID
}

func (h *PaddleWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
		return
	}

	if err := h.verify(ctx, body, r.Header.Get("Paddle-Signature")); err != nil {
		h.fail(w, r, http.StatusUnauthorized, err)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		h.fail(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
		return
	}

	log := h.logger.With(slog.String("event_id", n.EventID), slog.String("event_type", n.EventType))

	if n.EventID != "" {
		if _, dup := h.seen.Get(n.EventID); dup {
			log.InfoContext(ctx, "duplicate notification ignored")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	handled, err := h.dispatch(ctx, n)
	if err != nil {
		h.fail(w, r, statusOf(err), err)
		return
	}

	if n.EventID != "" {
		h.seen.Set(n.EventID, struct{}{})
	}
	if handled {
		log.InfoContext(ctx, "notification processed")
	} else {
		log.DebugContext(ctx, "notification type not handled")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *PaddleWebhook) verify(ctx context.Context, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Paddle-Signature", signature)

	ok, err := h.verifier.Verify(req)
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

func (h *PaddleWebhook) dispatch(ctx context.Context, n notification) (bool, error) {
	if n.EventType != EventTransactionCompleted && n.EventType != EventTransactionPaymentFailed {
		return false, nil
	}

	var tx transaction
	if err := json.Unmarshal(n.Data, &tx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	tenantID, err := uuid.Parse(tx.CustomData.TenantID)
	if err != nil {
		return false, ErrMissingTenantID
	}

	switch n.EventType {
	case EventTransactionCompleted:
		if tx.BillingPeriod == nil || tx.BillingPeriod.EndsAt.IsZero() {
			return false, fmt.Errorf("%w: billing_period.ends_at is required", ErrMalformedPayload)
		}
		_, err = h.payments.OnPaymentSuccess(ctx, tenantID, subscription.PaymentSuccess{
			PaidThroughDate: tx.BillingPeriod.EndsAt,
			InvoiceID:       tx.invoice(),
			Actor:           Actor,
		})

	case EventTransactionPaymentFailed:
		var reason string
		if len(tx.Payments) > 0 {
			reason = tx.Payments[0].ErrorCode
		}
		_, err = h.payments.OnPaymentFailure(ctx, tenantID, subscription.PaymentFailure{
			FailedAt:   n.OccurredAt,
			InvoiceID:  tx.invoice(),
			ReasonCode: reason,
			Actor:      Actor,
		})
	}
	return true, err
}

func (h *PaddleWebhook) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "webhook rejected", slog.Int("status", status), logger.Error(err))
	http.Error(w, http.StatusText(status), status)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrMissingTenantID):
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, subscription.ErrInvalidSubscriptionEndDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, statemachine.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
