package tenant

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize is used when Query.Limit is not positive.
const DefaultPageSize = 100

// Query filters tenants for paginated scans. Zero-valued filters are ignored.
// Time bounds are exclusive ("before" means strictly earlier).
type Query struct {
	States []SubscriptionState

	EndAfter  *time.Time // subscriptionEndDate > EndAfter
	EndBefore *time.Time // subscriptionEndDate < EndBefore

	TrialEndBefore     *time.Time // trialEndDate (or legacy trialEndsAt) < TrialEndBefore
	GraceEndBefore     *time.Time // gracePeriodEndDate < GraceEndBefore
	PastDueSinceBefore *time.Time // pastDueSince < PastDueSinceBefore

	// AfterID is the keyset cursor: only tenants with a greater ID are returned.
	AfterID uuid.UUID
	Limit   int
}

// PageSize returns the effective page size.
func (q Query) PageSize() int {
	if q.Limit <= 0 {
		return DefaultPageSize
	}
	return q.Limit
}

// Matches reports whether t satisfies every filter of q except pagination.
func (q Query) Matches(t *Tenant) bool {
	if len(q.States) > 0 && !slices.Contains(q.States, t.SubscriptionState) {
		return false
	}
	if q.EndAfter != nil && (t.SubscriptionEndDate == nil || !t.SubscriptionEndDate.After(*q.EndAfter)) {
		return false
	}
	if q.EndBefore != nil && !before(t.SubscriptionEndDate, *q.EndBefore) {
		return false
	}
	if q.TrialEndBefore != nil && !before(t.TrialEnd(), *q.TrialEndBefore) {
		return false
	}
	if q.GraceEndBefore != nil && !before(t.GracePeriodEndDate, *q.GraceEndBefore) {
		return false
	}
	if q.PastDueSinceBefore != nil && !before(t.PastDueSince, *q.PastDueSinceBefore) {
		return false
	}
	return true
}

// After reports whether id sorts after the cursor.
func (q Query) After(id uuid.UUID) bool {
	return bytes.Compare(id[:], q.AfterID[:]) > 0
}

func before(t *time.Time, bound time.Time) bool {
	return t != nil && t.Before(bound)
}
