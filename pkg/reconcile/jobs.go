package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/jobs"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// AuditConsistencyIssue is the audit action written by the consistency check.
const AuditConsistencyIssue = "subscription.consistency_issue"

// Consistency issue codes.
const (
	IssueUnknownState         = "unknown_state"
	IssueSuspendedFlag        = "suspended_flag_without_suspended_state"
	IssueSuspendedWithoutFlag = "suspended_state_without_flag"
	IssueGraceFieldsSet       = "grace_fields_outside_grace"
	IssueStalePastDueSince    = "stale_past_due_since"
	IssueMissingEdition       = "missing_edition"
)

// Register adds all jobs to s with their default schedules.
func (j *Jobs) Register(s *jobs.Scheduler) error {
	entries := []struct {
		name     string
		schedule jobs.Schedule
		run      func(context.Context, time.Time) (Report, error)
	}{
		{JobNotifyExpiring, jobs.DailyAt(9, 0), j.NotifyExpiring},
		{JobMarkPastDue, jobs.HourlyAt(0), j.MarkPastDue},
		{JobEnforceGracePolicy, jobs.HourlyAt(30), j.EnforceGracePolicy},
		{JobConsistencyCheck, jobs.WeeklyOn(time.Sunday, 3, 0), j.ConsistencyCheck},
	}

	var errs []error
	for _, e := range entries {
		run := e.run
		if err := s.Add(e.name, e.schedule, func(ctx context.Context, now time.Time) error {
			_, err := run(ctx, now)
			return err
		}); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

// NotifyExpiring publishes SUBSCRIPTION_EXPIRING_SOON for active and trialing
// tenants whose whole days until expiry match a reminder day of their policy.
func (j *Jobs) NotifyExpiring(ctx context.Context, now time.Time) (Report, error) {
	now = j.at(now)
	q := tenant.Query{States: []tenant.SubscriptionState{tenant.StateActive, tenant.StateTrialing}}

	return j.scan(ctx, JobNotifyExpiring, q, func(ctx context.Context, t *tenant.Tenant) (bool, error) {
		expiresAt := policy.ExpiresAt(t)
		if expiresAt == nil || !expiresAt.After(now) {
			return false, nil
		}

		p, err := j.policies.ResolvePolicy(ctx, t.ID)
		if err != nil {
			return false, err
		}

		days := DaysLeft(*expiresAt, now)
		if !slices.Contains(p.NotifyDaysBeforeExpiry, days) {
			return false, nil
		}

		if err := j.sink.Publish(ctx, events.SubscriptionExpiringSoon, map[string]any{
			"days_left":  days,
			"expires_at": *expiresAt,
			"state":      string(t.SubscriptionState),
			"edition_id": t.EditionID,
		}, t.ID); err != nil {
			return false, fmt.Errorf("publish %s: %w", events.SubscriptionExpiringSoon, err)
		}
		return true, nil
	})
}

// DaysLeft is the number of started days between now and expiresAt.
func DaysLeft(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

// MarkPastDue runs the lifecycle evaluation for every active and trialing
// tenant, moving lapsed ones to past_due.
func (j *Jobs) MarkPastDue(ctx context.Context, now time.Time) (Report, error) {
	now = j.at(now)
	q := tenant.Query{States: []tenant.SubscriptionState{tenant.StateActive, tenant.StateTrialing}}

	return j.scan(ctx, JobMarkPastDue, q, func(ctx context.Context, t *tenant.Tenant) (bool, error) {
		updated, err := j.lifecycle.EvaluateTenantSubscriptionState(ctx, t.ID, now)
		if err != nil {
			return false, err
		}
		return updated.SubscriptionState != t.SubscriptionState, nil
	})
}

// EnforceGracePolicy evaluates the expiration policy of every overdue tenant
// and applies the resulting decision.
func (j *Jobs) EnforceGracePolicy(ctx context.Context, now time.Time) (Report, error) {
	now = j.at(now)
	q := tenant.Query{States: []tenant.SubscriptionState{
		tenant.StatePastDue,
		tenant.StateGrace,
		tenant.StateSuspended,
	}}
	actor := "scheduler:" + JobEnforceGracePolicy

	return j.scan(ctx, JobEnforceGracePolicy, q, func(ctx context.Context, t *tenant.Tenant) (bool, error) {
		d, err := j.policies.Evaluate(ctx, t.ID, now)
		if err != nil {
			return false, err
		}
		return j.policies.ApplyDecision(ctx, d, actor)
	})
}

// ConsistencyCheck reports tenants whose subscription fields contradict their
// state. It never mutates tenants.
func (j *Jobs) ConsistencyCheck(ctx context.Context, now time.Time) (Report, error) {
	now = j.at(now)

	return j.scan(ctx, JobConsistencyCheck, tenant.Query{}, func(ctx context.Context, t *tenant.Tenant) (bool, error) {
		issues, err := j.inspect(ctx, t)
		if err != nil {
			return false, err
		}
		if len(issues) == 0 {
			return false, nil
		}

		j.logger.WarnContext(ctx, "subscription consistency issue",
			logger.Job(JobConsistencyCheck),
			logger.TenantID(t.ID),
			logger.State(t.SubscriptionState),
			slog.Any("issues", issues))

		meta := map[string]any{
			"issues":     issues,
			"state":      string(t.SubscriptionState),
			"checked_at": now,
		}
		var errs []error
		if err := j.audit.Record(ctx, t.ID, AuditConsistencyIssue,
			audit.WithActor("scheduler:"+JobConsistencyCheck),
			audit.WithStateVersion(t.StateVersion),
			audit.WithMetadataMap(meta),
		); err != nil {
			errs = append(errs, fmt.Errorf("record audit: %w", err))
		}
		if err := j.sink.Publish(ctx, events.SubscriptionConsistencyIssue, meta, t.ID); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", events.SubscriptionConsistencyIssue, err))
		}
		return true, errors.Join(errs...)
	})
}

func (j *Jobs) inspect(ctx context.Context, t *tenant.Tenant) ([]string, error) {
	var issues []string
	state := t.SubscriptionState

	if !state.Valid() {
		issues = append(issues, IssueUnknownState)
	}

	switch {
	case t.IsSuspended && state != tenant.StateSuspended && state != tenant.StateDeactivated:
		issues = append(issues, IssueSuspendedFlag)
	case !t.IsSuspended && state == tenant.StateSuspended:
		issues = append(issues, IssueSuspendedWithoutFlag)
	}

	if state == tenant.StateActive || state == tenant.StateTrialing {
		if t.GraceStartedAt != nil || t.GracePeriodEndDate != nil {
			issues = append(issues, IssueGraceFieldsSet)
		}
	}
	if state == tenant.StateActive && t.PastDueSince != nil {
		issues = append(issues, IssueStalePastDueSince)
	}

	if t.EditionID != "" {
		if _, err := j.editions.Get(ctx, t.EditionID); err != nil {
			if !errors.Is(err, edition.ErrEditionNotFound) {
				return nil, fmt.Errorf("load edition %s: %w", t.EditionID, err)
			}
			issues = append(issues, IssueMissingEdition)
		}
	}

	return issues, nil
}

func (j *Jobs) at(now time.Time) time.Time {
	if now.IsZero() {
		now = j.now()
	}
	return now.UTC()
}
