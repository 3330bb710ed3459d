package subscription_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/statemachine"
	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

func TestInitializeTenantSubscription(t *testing.T) {
	t.Parallel()

	t.Run("trial", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed("", func(tn *tenant.Tenant) {
			tn.IsSuspended = true
			tn.GracePeriodEndDate = ptr(baseTime)
		})

		got, err := e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{
			Mode:         subscription.ModeTrial,
			TrialEndDate: ptr(baseTime.Add(days(14))),
		})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateTrialing, got.SubscriptionState)
		assert.Equal(t, int64(1), got.StateVersion)
		assert.False(t, got.IsSuspended)
		assert.Nil(t, got.GracePeriodEndDate)
		assert.Equal(t, baseTime, *got.SubscriptionStartDate)

		stored := e.get(t, id)
		assert.Equal(t, tenant.StateTrialing, stored.SubscriptionState)

		changed := e.sink.Named(events.SubscriptionStateChanged)
		require.Len(t, changed, 1)
		assert.Equal(t, "", changed[0].Payload["previous_state"])
		assert.Equal(t, "trialing", changed[0].Payload["next_state"])
		assert.Equal(t, 1, e.audit.Len())
	})

	t.Run("open ended trial", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed("")

		got, err := e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{Mode: subscription.ModeTrial})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateTrialing, got.SubscriptionState)
		assert.Nil(t, got.TrialEndDate)

		got, err = e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime.AddDate(1, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, tenant.StateTrialing, got.SubscriptionState)
		assert.Equal(t, 1, e.tenants.Updates())
	})

	t.Run("active with edition", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed("")

		got, err := e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{
			Mode:                subscription.ModeActive,
			SubscriptionEndDate: ptr(baseTime.AddDate(1, 0, 0)),
			EditionID:           "free-edition",
		})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateActive, got.SubscriptionState)
		assert.Equal(t, "free-edition", got.EditionID)
	})

	t.Run("same state writes without state event", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		_, err := e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{Mode: subscription.ModeActive})
		require.NoError(t, err)
		assert.Equal(t, 1, e.tenants.Updates())
		assert.Empty(t, e.sink.Named(events.SubscriptionStateChanged))
		assert.Equal(t, 1, e.audit.Len())
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed("")

		_, err := e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{
			Mode:         subscription.ModeTrial,
			TrialEndDate: ptr(baseTime.Add(-time.Hour)),
		})
		assert.ErrorIs(t, err, subscription.ErrInvalidTrialEndDate)

		_, err = e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{Mode: "forever"})
		assert.ErrorIs(t, err, subscription.ErrInvalidMode)

		_, err = e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{
			Mode:                subscription.ModeActive,
			SubscriptionEndDate: ptr(baseTime.Add(-time.Hour)),
		})
		assert.ErrorIs(t, err, subscription.ErrInvalidSubscriptionEndDate)

		_, err = e.svc.InitializeTenantSubscription(ctx, id, subscription.InitParams{
			Mode:      subscription.ModeActive,
			EditionID: "missing",
		})
		assert.ErrorIs(t, err, edition.ErrEditionNotFound)

		_, err = e.svc.InitializeTenantSubscription(ctx, uuid.New(), subscription.InitParams{Mode: subscription.ModeActive})
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

		assert.Zero(t, e.tenants.Updates())
	})
}

func TestOnPaymentSuccess(t *testing.T) {
	t.Parallel()

	t.Run("restores past due tenant", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StatePastDue, func(tn *tenant.Tenant) {
			tn.StateVersion = 4
			tn.PastDueSince = ptr(baseTime.Add(-days(3)))
			tn.GracePeriodEndDate = ptr(baseTime.Add(days(4)))
		})
		paid := baseTime.AddDate(0, 1, 0)

		got, err := e.svc.OnPaymentSuccess(ctx, id, subscription.PaymentSuccess{
			PaidThroughDate: paid,
			InvoiceID:       "inv_42",
		})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateActive, got.SubscriptionState)
		assert.Equal(t, int64(5), got.StateVersion)
		assert.Equal(t, paid, *got.SubscriptionEndDate)
		assert.Nil(t, got.PastDueSince)
		assert.Nil(t, got.GracePeriodEndDate)
		assert.Equal(t, baseTime, *got.LastPaymentSuccessAt)
		assert.Equal(t, "inv_42", got.LastInvoiceID)

		assert.Len(t, e.sink.Named(events.SubscriptionPaymentSucceeded), 1)
		assert.Len(t, e.sink.Named(events.SubscriptionStateChanged), 1)

		records := e.audit.All()
		require.Len(t, records, 1)
		assert.Equal(t, subscription.ActionPaymentSucceeded, records[0].Action)
		assert.Equal(t, int64(5), records[0].StateVersion)
		before := records[0].Before.(subscription.Snapshot)
		after := records[0].After.(subscription.Snapshot)
		assert.Equal(t, tenant.StatePastDue, before.State)
		assert.Equal(t, tenant.StateActive, after.State)
	})

	t.Run("active tenant renews without state event", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		_, err := e.svc.OnPaymentSuccess(ctx, id, subscription.PaymentSuccess{PaidThroughDate: baseTime.AddDate(0, 1, 0)})
		require.NoError(t, err)
		assert.Empty(t, e.sink.Named(events.SubscriptionStateChanged))
		assert.Len(t, e.sink.Named(events.SubscriptionPaymentSucceeded), 1)
	})

	t.Run("deactivated is a no-op", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateDeactivated)

		got, err := e.svc.OnPaymentSuccess(ctx, id, subscription.PaymentSuccess{PaidThroughDate: baseTime.AddDate(0, 1, 0)})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateDeactivated, got.SubscriptionState)
		assert.Zero(t, e.tenants.Updates())
		assert.Zero(t, e.sink.Len())
		assert.Zero(t, e.audit.Len())
	})

	t.Run("requires paid through date", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.OnPaymentSuccess(context.Background(), e.seed(tenant.StatePastDue), subscription.PaymentSuccess{})
		assert.ErrorIs(t, err, subscription.ErrInvalidSubscriptionEndDate)
	})
}

func TestOnPaymentFailure(t *testing.T) {
	t.Parallel()

	t.Run("uses resolved grace days", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)
		failedAt := baseTime.Add(-time.Hour)

		got, err := e.svc.OnPaymentFailure(ctx, id, subscription.PaymentFailure{
			FailedAt:   failedAt,
			InvoiceID:  "inv_7",
			ReasonCode: "card_declined",
		})
		require.NoError(t, err)
		assert.Equal(t, tenant.StatePastDue, got.SubscriptionState)
		assert.Equal(t, failedAt, *got.PastDueSince)
		assert.Equal(t, failedAt.Add(days(7)), *got.GracePeriodEndDate)
		assert.Equal(t, failedAt, *got.LastPaymentFailureAt)

		failed := e.sink.Named(events.SubscriptionPaymentFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, "card_declined", failed[0].Payload["reason_code"])
		assert.Equal(t, 7, failed[0].Payload["grace_days"])
	})

	t.Run("override grace days", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)
		e.overrides.Set(id, feature.KeyGracePeriodDays, "3")

		got, err := e.svc.OnPaymentFailure(ctx, id, subscription.PaymentFailure{FailedAt: baseTime})
		require.NoError(t, err)
		assert.Equal(t, baseTime.Add(days(3)), *got.GracePeriodEndDate)
	})

	t.Run("keeps earliest past due timestamp", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		first := baseTime.Add(-days(2))
		id := e.seed(tenant.StatePastDue, func(tn *tenant.Tenant) {
			tn.PastDueSince = ptr(first)
		})

		got, err := e.svc.OnPaymentFailure(ctx, id, subscription.PaymentFailure{})
		require.NoError(t, err)
		assert.Equal(t, first, *got.PastDueSince)
		assert.Equal(t, baseTime, *got.LastPaymentFailureAt, "zero FailedAt uses the clock")
		assert.Empty(t, e.sink.Named(events.SubscriptionStateChanged))
	})

	t.Run("resolver failure means no grace", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		tenants := memstore.NewTenants()
		id := uuid.New()
		tenants.Put(&tenant.Tenant{ID: id, SubscriptionState: tenant.StateActive})
		catalog := feature.MustNewCatalog(feature.BuiltinDefinitions()...)
		svc := subscription.NewService(tenants, edition.NewManager(memstore.NewEditions(), catalog), failingEntitlements{})

		got, err := svc.OnPaymentFailure(ctx, id, subscription.PaymentFailure{FailedAt: baseTime})
		require.NoError(t, err)
		assert.Equal(t, baseTime, *got.GracePeriodEndDate)
	})

	t.Run("deactivated is a no-op", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		id := e.seed(tenant.StateDeactivated)

		_, err := e.svc.OnPaymentFailure(context.Background(), id, subscription.PaymentFailure{FailedAt: baseTime})
		require.NoError(t, err)
		assert.Zero(t, e.tenants.Updates())
		assert.Zero(t, e.sink.Len())
	})

	t.Run("suspended cannot become past due", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		id := e.seed(tenant.StateSuspended)

		_, err := e.svc.OnPaymentFailure(context.Background(), id, subscription.PaymentFailure{FailedAt: baseTime})
		assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
		assert.Zero(t, e.tenants.Updates())
	})
}

func TestEvaluateTenantSubscriptionState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  tenant.SubscriptionState
		mutate func(*tenant.Tenant)
		want   tenant.SubscriptionState
	}{
		{
			name:   "trial ended",
			state:  tenant.StateTrialing,
			mutate: func(tn *tenant.Tenant) { tn.TrialEndDate = ptr(baseTime.Add(-time.Minute)) },
			want:   tenant.StatePastDue,
		},
		{
			name:   "legacy trial end",
			state:  tenant.StateTrialing,
			mutate: func(tn *tenant.Tenant) { tn.TrialEndsAt = ptr(baseTime.Add(-days(1))) },
			want:   tenant.StatePastDue,
		},
		{
			name:   "trial running",
			state:  tenant.StateTrialing,
			mutate: func(tn *tenant.Tenant) { tn.TrialEndDate = ptr(baseTime.Add(days(1))) },
			want:   tenant.StateTrialing,
		},
		{
			name:   "subscription ended",
			state:  tenant.StateActive,
			mutate: func(tn *tenant.Tenant) { tn.SubscriptionEndDate = ptr(baseTime.Add(-days(1))) },
			want:   tenant.StatePastDue,
		},
		{
			name:   "active without end",
			state:  tenant.StateActive,
			mutate: func(*tenant.Tenant) {},
			want:   tenant.StateActive,
		},
		{
			name:   "past due grace elapsed",
			state:  tenant.StatePastDue,
			mutate: func(tn *tenant.Tenant) { tn.GracePeriodEndDate = ptr(baseTime) },
			want:   tenant.StateSuspended,
		},
		{
			name:   "past due enters grace",
			state:  tenant.StatePastDue,
			mutate: func(tn *tenant.Tenant) { tn.GracePeriodEndDate = ptr(baseTime.Add(days(2))) },
			want:   tenant.StateGrace,
		},
		{
			name:  "grace not started yet",
			state: tenant.StatePastDue,
			mutate: func(tn *tenant.Tenant) {
				tn.GracePeriodEndDate = ptr(baseTime.Add(days(2)))
				tn.GraceStartedAt = ptr(baseTime.Add(days(1)))
			},
			want: tenant.StatePastDue,
		},
		{
			name:   "past due without grace end",
			state:  tenant.StatePastDue,
			mutate: func(*tenant.Tenant) {},
			want:   tenant.StatePastDue,
		},
		{
			name:   "grace elapsed",
			state:  tenant.StateGrace,
			mutate: func(tn *tenant.Tenant) { tn.GracePeriodEndDate = ptr(baseTime.Add(-days(1))) },
			want:   tenant.StateSuspended,
		},
		{
			name:   "grace running",
			state:  tenant.StateGrace,
			mutate: func(tn *tenant.Tenant) { tn.GracePeriodEndDate = ptr(baseTime.Add(days(1))) },
			want:   tenant.StateGrace,
		},
		{
			name:   "suspended untouched",
			state:  tenant.StateSuspended,
			mutate: func(tn *tenant.Tenant) { tn.SubscriptionEndDate = ptr(baseTime.Add(-days(30))) },
			want:   tenant.StateSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			e := newEnv(t)
			id := e.seed(tt.state, tt.mutate)

			got, err := e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SubscriptionState)
			assert.Equal(t, tt.want, e.get(t, id).SubscriptionState)

			if tt.want == tt.state {
				assert.Zero(t, e.tenants.Updates())
				assert.Zero(t, e.sink.Len())
				return
			}
			assert.Equal(t, 1, e.tenants.Updates())
			assert.Equal(t, int64(1), got.StateVersion)
			assert.Len(t, e.sink.Named(events.SubscriptionStateChanged), 1)
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	id := e.seed(tenant.StateActive, func(tn *tenant.Tenant) {
		tn.SubscriptionEndDate = ptr(baseTime.Add(-days(1)))
	})

	first, err := e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatePastDue, first.SubscriptionState)
	assert.Equal(t, baseTime.Add(-days(1)), *first.PastDueSince)

	updates, published := e.tenants.Updates(), e.sink.Len()

	second, err := e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime)
	require.NoError(t, err)
	assert.Equal(t, first.StateVersion, second.StateVersion)
	assert.Equal(t, updates, e.tenants.Updates())
	assert.Equal(t, published, e.sink.Len())
}

func TestEvaluateGraceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	id := e.seed(tenant.StateActive)

	_, err := e.svc.OnPaymentFailure(ctx, id, subscription.PaymentFailure{FailedAt: baseTime})
	require.NoError(t, err)

	got, err := e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, tenant.StateGrace, got.SubscriptionState)
	assert.Equal(t, baseTime.Add(time.Hour), *got.GraceStartedAt)

	got, err = e.svc.EvaluateTenantSubscriptionState(ctx, id, baseTime.Add(days(8)))
	require.NoError(t, err)
	assert.Equal(t, tenant.StateSuspended, got.SubscriptionState)
	assert.True(t, got.IsSuspended)
	assert.Equal(t, subscription.GraceElapsedReason, got.SuspensionReason)
	assert.Equal(t, int64(3), got.StateVersion)
}

func TestHostActions(t *testing.T) {
	t.Parallel()

	t.Run("suspend", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		got, err := e.svc.HostSuspendTenant(ctx, id, subscription.HostAction{Reason: " abuse ", Actor: "admin@example.com"})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateSuspended, got.SubscriptionState)
		assert.True(t, got.IsSuspended)
		assert.Equal(t, "abuse", got.SuspensionReason)
		assert.Equal(t, baseTime, *got.SuspendedAt)

		records, err := e.audit.Query(ctx, audit.Criteria{TenantID: id})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "admin@example.com", records[0].Actor)
	})

	t.Run("suspend reason validation", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		_, err := e.svc.HostSuspendTenant(ctx, id, subscription.HostAction{Reason: "   "})
		assert.ErrorIs(t, err, subscription.ErrInvalidSuspensionReason)

		_, err = e.svc.HostSuspendTenant(ctx, id, subscription.HostAction{Reason: strings.Repeat("x", subscription.MaxReasonLength+1)})
		assert.ErrorIs(t, err, subscription.ErrInvalidSuspensionReason)
		assert.Zero(t, e.tenants.Updates())
	})

	t.Run("suspend from trial is invalid", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		id := e.seed(tenant.StateTrialing)

		_, err := e.svc.HostSuspendTenant(context.Background(), id, subscription.HostAction{Reason: "abuse"})
		assert.True(t, statemachine.IsInvalidTransitionError(err))
	})

	t.Run("deactivate", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateGrace, func(tn *tenant.Tenant) {
			tn.GracePeriodEndDate = ptr(baseTime.Add(days(1)))
		})

		got, err := e.svc.HostDeactivateTenant(ctx, id, subscription.HostAction{})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateDeactivated, got.SubscriptionState)
		assert.Equal(t, baseTime, *got.DeactivatedAt)
		assert.Nil(t, got.GracePeriodEndDate)

		_, err = e.svc.HostSuspendTenant(ctx, id, subscription.HostAction{Reason: "late"})
		assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
	})

	t.Run("reactivate suspended", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateSuspended, func(tn *tenant.Tenant) {
			tn.IsSuspended = true
			tn.SuspendedAt = ptr(baseTime.Add(-days(1)))
			tn.SuspensionReason = "abuse"
			tn.SubscriptionEndDate = ptr(baseTime.Add(days(10)))
		})

		got, err := e.svc.HostReactivateTenant(ctx, id, subscription.HostAction{Reason: "resolved"})
		require.NoError(t, err)
		assert.Equal(t, tenant.StateActive, got.SubscriptionState)
		assert.False(t, got.IsSuspended)
		assert.Nil(t, got.SuspendedAt)
		assert.Empty(t, got.SuspensionReason)
	})

	t.Run("reactivate not allowed", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)

		deactivated := e.seed(tenant.StateDeactivated)
		_, err := e.svc.HostReactivateTenant(ctx, deactivated, subscription.HostAction{})
		assert.ErrorIs(t, err, subscription.ErrReactivationNotAllowed)

		expired := e.seed(tenant.StateSuspended, func(tn *tenant.Tenant) {
			tn.SubscriptionEndDate = ptr(baseTime.Add(-days(1)))
		})
		_, err = e.svc.HostReactivateTenant(ctx, expired, subscription.HostAction{})
		assert.ErrorIs(t, err, subscription.ErrReactivationNotAllowed)
		assert.Zero(t, e.tenants.Updates())
	})
}

func TestChangeTenantEdition(t *testing.T) {
	t.Parallel()

	t.Run("immediate change invalidates features", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		users, err := e.resolver.Int(ctx, id, feature.KeyUsersMaxCount)
		require.NoError(t, err)
		assert.Equal(t, int64(3), users)

		got, err := e.svc.ChangeTenantEdition(ctx, id, subscription.EditionChange{
			EditionID:     "free-edition",
			EffectiveDate: baseTime,
		})
		require.NoError(t, err)
		assert.Equal(t, "free-edition", got.EditionID)
		assert.Equal(t, int64(1), got.StateVersion)

		users, err = e.resolver.Int(ctx, id, feature.KeyUsersMaxCount)
		require.NoError(t, err)
		assert.Equal(t, int64(1), users)

		assert.Len(t, e.sink.Named(events.SubscriptionPlanChanged), 1)
		assert.Empty(t, e.sink.Named(events.SubscriptionStateChanged))
	})

	t.Run("dates", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e := newEnv(t)
		id := e.seed(tenant.StateActive)

		_, err := e.svc.ChangeTenantEdition(ctx, id, subscription.EditionChange{EditionID: "free-edition"})
		assert.ErrorIs(t, err, subscription.ErrInvalidEffectiveDate)

		_, err = e.svc.ChangeTenantEdition(ctx, id, subscription.EditionChange{
			EditionID:     "free-edition",
			EffectiveDate: baseTime.Add(days(1)),
		})
		assert.ErrorIs(t, err, subscription.ErrScheduledChangeNotSupported)
	})

	t.Run("unknown edition", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.ChangeTenantEdition(context.Background(), e.seed(tenant.StateActive), subscription.EditionChange{
			EditionID:     "enterprise",
			EffectiveDate: baseTime,
		})
		assert.ErrorIs(t, err, edition.ErrEditionNotFound)
	})

	t.Run("same edition is a no-op", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.ChangeTenantEdition(context.Background(), e.seed(tenant.StateActive), subscription.EditionChange{
			EditionID:     "standard",
			EffectiveDate: baseTime,
		})
		require.NoError(t, err)
		assert.Zero(t, e.tenants.Updates())
	})
}

func TestAssignFallbackEdition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	id := e.seed(tenant.StatePastDue, func(tn *tenant.Tenant) {
		tn.SubscriptionEndDate = ptr(baseTime.Add(-days(2)))
	})

	got, err := e.svc.AssignFallbackEdition(ctx, id, "free-edition", "policy")
	require.NoError(t, err)
	assert.Equal(t, "free-edition", got.EditionID)
	assert.Nil(t, got.SubscriptionEndDate)
	assert.Equal(t, tenant.StatePastDue, got.SubscriptionState)

	_, err = e.svc.AssignFallbackEdition(ctx, id, "free-edition", "policy")
	require.NoError(t, err)
	assert.Equal(t, 1, e.tenants.Updates())
}

func TestGetTenantSubscriptionSnapshot(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	trialEnd := baseTime.Add(days(3))
	id := e.seed(tenant.StateTrialing, func(tn *tenant.Tenant) {
		tn.TrialEndsAt = ptr(trialEnd)
		tn.StateVersion = 2
	})

	snap, err := e.svc.GetTenantSubscriptionSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.TenantID)
	assert.Equal(t, tenant.StateTrialing, snap.State)
	assert.Equal(t, trialEnd, *snap.TrialEndDate)
	assert.Equal(t, int64(2), snap.StateVersion)

	_, err = e.svc.GetTenantSubscriptionSnapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}
