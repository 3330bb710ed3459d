package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/email"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// DefaultProductName is used in subjects and footers.
const DefaultProductName = "EntitleKit"

// TenantFinder loads the tenant an event belongs to.
type TenantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Option configures the sink.
type Option func(*Sink)

// WithProductName sets the product name shown in emails.
func WithProductName(name string) Option {
	return func(s *Sink) {
		if name = strings.TrimSpace(name); name != "" {
			s.product = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sink emails tenants about billing events.
type Sink struct {
	tenants TenantFinder
	sender  email.EmailSender
	product string
	logger  *slog.Logger
}

// NewSink creates an email notification sink.
// Panics if tenants or sender is nil.
func NewSink(tenants TenantFinder, sender email.EmailSender, opts ...Option) *Sink {
	if tenants == nil {
		panic("notify: tenant finder is required")
	}
	if sender == nil {
		panic("notify: email sender is required")
	}

	s := &Sink{
		tenants: tenants,
		sender:  sender,
		product: DefaultProductName,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("notify"))
	return s
}

// Handles reports whether the sink sends an email for the event.
func Handles(name string) bool {
	_, ok := messages[name]
	return ok
}

type templateData struct {
	Product string
	Tenant  *tenant.Tenant
	Payload map[string]any
}

// Publish sends the email for name, if any.
func (s *Sink) Publish(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
	msg, ok := messages[name]
	if !ok {
		return nil
	}

	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			s.logger.WarnContext(ctx, "event for unknown tenant", logger.Event(name), logger.TenantID(tenantID))
			return nil
		}
		return fmt.Errorf("notify: load tenant %s: %w", tenantID, err)
	}
	if t.BillingEmail == "" {
		s.logger.DebugContext(ctx, "tenant has no billing email", logger.Event(name), logger.TenantID(tenantID))
		return nil
	}

	data := templateData{Product: s.product, Tenant: t, Payload: payload}

	var subject, body bytes.Buffer
	if err := msg.subject.Execute(&subject, data); err != nil {
		return fmt.Errorf("notify: render %s subject: %w", name, err)
	}
	if err := msg.body.Execute(&body, data); err != nil {
		return fmt.Errorf("notify: render %s body: %w", name, err)
	}

	if err := s.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   t.BillingEmail,
		Subject:  subject.String(),
		BodyHTML: body.String(),
		Tag:      msg.tag,
	}); err != nil {
		return fmt.Errorf("notify: send %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "billing email sent", logger.Event(name), logger.TenantID(tenantID))
	return nil
}
