package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Snapshot is a read-only projection of a tenant's subscription fields.
type Snapshot struct {
	TenantID              uuid.UUID                `json:"tenant_id"`
	EditionID             string                   `json:"edition_id,omitempty"`
	State                 tenant.SubscriptionState `json:"state"`
	StateVersion          int64                    `json:"state_version"`
	SubscriptionStartDate *time.Time               `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time               `json:"subscription_end_date,omitempty"`
	TrialEndDate          *time.Time               `json:"trial_end_date,omitempty"`
	PastDueSince          *time.Time               `json:"past_due_since,omitempty"`
	GraceStartedAt        *time.Time               `json:"grace_started_at,omitempty"`
	GracePeriodEndDate    *time.Time               `json:"grace_period_end_date,omitempty"`
	IsSuspended           bool                     `json:"is_suspended"`
	SuspendedAt           *time.Time               `json:"suspended_at,omitempty"`
	SuspensionReason      string                   `json:"suspension_reason,omitempty"`
	DeactivatedAt         *time.Time               `json:"deactivated_at,omitempty"`
	LastPaymentSuccessAt  *time.Time               `json:"last_payment_success_at,omitempty"`
	LastPaymentFailureAt  *time.Time               `json:"last_payment_failure_at,omitempty"`
	LastInvoiceID         string                   `json:"last_invoice_id,omitempty"`
}

// SnapshotOf projects t. The legacy trial end is used when TrialEndDate is unset.
func SnapshotOf(t *tenant.Tenant) Snapshot {
	c := t.Clone()
	return Snapshot{
		TenantID:              c.ID,
		EditionID:             c.EditionID,
		State:                 c.SubscriptionState,
		StateVersion:          c.StateVersion,
		SubscriptionStartDate: c.SubscriptionStartDate,
		SubscriptionEndDate:   c.SubscriptionEndDate,
		TrialEndDate:          c.TrialEnd(),
		PastDueSince:          c.PastDueSince,
		GraceStartedAt:        c.GraceStartedAt,
		GracePeriodEndDate:    c.GracePeriodEndDate,
		IsSuspended:           c.IsSuspended,
		SuspendedAt:           c.SuspendedAt,
		SuspensionReason:      c.SuspensionReason,
		DeactivatedAt:         c.DeactivatedAt,
		LastPaymentSuccessAt:  c.LastPaymentSuccessAt,
		LastPaymentFailureAt:  c.LastPaymentFailureAt,
		LastInvoiceID:         c.LastInvoiceID,
	}
}

func (s *service) GetTenantSubscriptionSnapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error) {
	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snap := SnapshotOf(t)
	return &snap, nil
}
