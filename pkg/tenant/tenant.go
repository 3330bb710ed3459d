package tenant

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// SubscriptionState is the billing status of a tenant.
type SubscriptionState string

const (
	StateTrialing    SubscriptionState = "trialing"
	StateActive      SubscriptionState = "active"
	StatePastDue     SubscriptionState = "past_due"
	StateGrace       SubscriptionState = "grace"
	StateSuspended   SubscriptionState = "suspended"
	StateDeactivated SubscriptionState = "deactivated"
)

// String implements fmt.Stringer.
func (s SubscriptionState) String() string {
	return string(s)
}

// Valid reports whether s is a known state.
func (s SubscriptionState) Valid() bool {
	switch s {
	case StateTrialing, StateActive, StatePastDue, StateGrace, StateSuspended, StateDeactivated:
		return true
	}
	return false
}

// ExpirationPolicy is a per-tenant override of the global expiration policy.
// Nil or empty fields fall through to the global configuration.
type ExpirationPolicy struct {
	Action                 string `json:"action,omitempty"`
	GraceDays              *int   `json:"grace_days,omitempty"`
	FallbackEditionID      string `json:"fallback_edition_id,omitempty"`
	NotifyDaysBeforeExpiry []int  `json:"notify_days_before_expiry,omitempty"`
	PastDueWindowDays      *int   `json:"past_due_window_days,omitempty"`
	MaxPastDueDays         *int   `json:"max_past_due_days,omitempty"`
}

func (p *ExpirationPolicy) clone() *ExpirationPolicy {
	if p == nil {
		return nil
	}
	c := *p
	c.GraceDays = cloneInt(p.GraceDays)
	c.PastDueWindowDays = cloneInt(p.PastDueWindowDays)
	c.MaxPastDueDays = cloneInt(p.MaxPastDueDays)
	c.NotifyDaysBeforeExpiry = slices.Clone(p.NotifyDaysBeforeExpiry)
	return &c
}

// Tenant is the tenant aggregate as seen by the subscription engine.
// Nil time pointers mean "not set".
type Tenant struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BillingEmail string    `json:"billing_email,omitempty"`
	EditionID    string    `json:"edition_id,omitempty"`

	SubscriptionState     SubscriptionState `json:"subscription_state"`
	SubscriptionStartDate *time.Time        `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time        `json:"subscription_end_date,omitempty"`
	TrialEndDate          *time.Time        `json:"trial_end_date,omitempty"`
	// TrialEndsAt is the legacy trial end column, read only when TrialEndDate is unset.
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`

	PastDueSince       *time.Time `json:"past_due_since,omitempty"`
	GraceStartedAt     *time.Time `json:"grace_started_at,omitempty"`
	GracePeriodEndDate *time.Time `json:"grace_period_end_date,omitempty"`

	IsSuspended      bool       `json:"is_suspended"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	DeactivatedAt    *time.Time `json:"deactivated_at,omitempty"`

	LastPaymentFailureAt *time.Time `json:"last_payment_failure_at,omitempty"`
	LastPaymentSuccessAt *time.Time `json:"last_payment_success_at,omitempty"`
	LastInvoiceID        string     `json:"last_invoice_id,omitempty"`

	StateVersion     int64             `json:"state_version"`
	ExpirationPolicy *ExpirationPolicy `json:"expiration_policy,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrialEnd returns TrialEndDate, falling back to the legacy TrialEndsAt.
func (t *Tenant) TrialEnd() *time.Time {
	if t.TrialEndDate != nil {
		return t.TrialEndDate
	}
	return t.TrialEndsAt
}

// Clone returns a deep copy of t.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.SubscriptionStartDate = cloneTime(t.SubscriptionStartDate)
	c.SubscriptionEndDate = cloneTime(t.SubscriptionEndDate)
	c.TrialEndDate = cloneTime(t.TrialEndDate)
	c.TrialEndsAt = cloneTime(t.TrialEndsAt)
	c.PastDueSince = cloneTime(t.PastDueSince)
	c.GraceStartedAt = cloneTime(t.GraceStartedAt)
	c.GracePeriodEndDate = cloneTime(t.GracePeriodEndDate)
	c.SuspendedAt = cloneTime(t.SuspendedAt)
	c.DeactivatedAt = cloneTime(t.DeactivatedAt)
	c.LastPaymentFailureAt = cloneTime(t.LastPaymentFailureAt)
	c.LastPaymentSuccessAt = cloneTime(t.LastPaymentSuccessAt)
	c.ExpirationPolicy = t.ExpirationPolicy.clone()
	return &c
}

// Repository is the tenant store used by the subscription engine.
type Repository interface {
	// FindByID returns ErrTenantNotFound if no tenant has the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// Update writes the set fields of patch. Returns ErrTenantNotFound if the
	// tenant does not exist.
	Update(ctx context.Context, id uuid.UUID, patch Patch) error

	// FindWithFilters returns tenants matching q ordered by ID ascending.
	FindWithFilters(ctx context.Context, q Query) ([]*Tenant, error)
}

// OverrideRepository stores tenant-specific feature values.
type OverrideRepository interface {
	// FindMapByTenantID returns feature key -> raw value. A tenant without
	// overrides yields an empty map.
	FindMapByTenantID(ctx context.Context, tenantID uuid.UUID) (map[string]string, error)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
