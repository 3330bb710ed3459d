package tenant

import "time"

// Field is an optional patch value. It is written only when Set is true.
type Field[T any] struct {
	Value T
	Set   bool
}

// Set returns a field that writes v.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// SetTime returns a field that writes t.
func SetTime(t time.Time) Field[*time.Time] {
	return Field[*time.Time]{Value: &t, Set: true}
}

// ClearTime returns a field that resets a timestamp to "not set".
func ClearTime() Field[*time.Time] {
	return Field[*time.Time]{Set: true}
}

// Patch is a partial update of the subscription fields of a tenant.
type Patch struct {
	EditionID             Field[string]
	SubscriptionState     Field[SubscriptionState]
	SubscriptionStartDate Field[*time.Time]
	SubscriptionEndDate   Field[*time.Time]
	TrialEndDate          Field[*time.Time]
	PastDueSince          Field[*time.Time]
	GraceStartedAt        Field[*time.Time]
	GracePeriodEndDate    Field[*time.Time]
	IsSuspended           Field[bool]
	SuspendedAt           Field[*time.Time]
	SuspensionReason      Field[string]
	DeactivatedAt         Field[*time.Time]
	LastPaymentFailureAt  Field[*time.Time]
	LastPaymentSuccessAt  Field[*time.Time]
	LastInvoiceID         Field[string]
	StateVersion          Field[int64]
	ExpirationPolicy      Field[*ExpirationPolicy]
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return !p.EditionID.Set &&
		!p.SubscriptionState.Set &&
		!p.SubscriptionStartDate.Set &&
		!p.SubscriptionEndDate.Set &&
		!p.TrialEndDate.Set &&
		!p.PastDueSince.Set &&
		!p.GraceStartedAt.Set &&
		!p.GracePeriodEndDate.Set &&
		!p.IsSuspended.Set &&
		!p.SuspendedAt.Set &&
		!p.SuspensionReason.Set &&
		!p.DeactivatedAt.Set &&
		!p.LastPaymentFailureAt.Set &&
		!p.LastPaymentSuccessAt.Set &&
		!p.LastInvoiceID.Set &&
		!p.StateVersion.Set &&
		!p.ExpirationPolicy.Set
}

// Apply writes the set fields of p into t.
func (p Patch) Apply(t *Tenant) {
	applyField(p.EditionID, &t.EditionID)
	applyField(p.SubscriptionState, &t.SubscriptionState)
	applyTime(p.SubscriptionStartDate, &t.SubscriptionStartDate)
	applyTime(p.SubscriptionEndDate, &t.SubscriptionEndDate)
	applyTime(p.TrialEndDate, &t.TrialEndDate)
	applyTime(p.PastDueSince, &t.PastDueSince)
	applyTime(p.GraceStartedAt, &t.GraceStartedAt)
	applyTime(p.GracePeriodEndDate, &t.GracePeriodEndDate)
	applyField(p.IsSuspended, &t.IsSuspended)
	applyTime(p.SuspendedAt, &t.SuspendedAt)
	applyField(p.SuspensionReason, &t.SuspensionReason)
	applyTime(p.DeactivatedAt, &t.DeactivatedAt)
	applyTime(p.LastPaymentFailureAt, &t.LastPaymentFailureAt)
	applyTime(p.LastPaymentSuccessAt, &t.LastPaymentSuccessAt)
	applyField(p.LastInvoiceID, &t.LastInvoiceID)
	applyField(p.StateVersion, &t.StateVersion)
	if p.ExpirationPolicy.Set {
		t.ExpirationPolicy = p.ExpirationPolicy.Value.clone()
	}
}

func applyField[T any](f Field[T], dst *T) {
	if f.Set {
		*dst = f.Value
	}
}

func applyTime(f Field[*time.Time], dst **time.Time) {
	if f.Set {
		*dst = cloneTime(f.Value)
	}
}
