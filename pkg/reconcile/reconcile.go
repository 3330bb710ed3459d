package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Job names.
const (
	JobNotifyExpiring     = "notify-expiring"
	JobMarkPastDue        = "mark-past-due"
	JobEnforceGracePolicy = "enforce-grace-policy"
	JobConsistencyCheck   = "consistency-check"
)

// Report summarises one job run.
type Report struct {
	Job      string        `json:"job"`
	Scanned  int           `json:"scanned"`
	Changed  int           `json:"changed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Option configures Jobs.
type Option func(*Jobs)

// WithConfig sets page size and concurrency.
func WithConfig(cfg Config) Option {
	return func(j *Jobs) {
		if cfg.PageSize > 0 {
			j.cfg.PageSize = cfg.PageSize
		}
		if cfg.Concurrency > 0 {
			j.cfg.Concurrency = cfg.Concurrency
		}
	}
}

// WithEventSink sets the sink for reminders and consistency issues.
func WithEventSink(sink events.Sink) Option {
	return func(j *Jobs) {
		if sink != nil {
			j.sink = sink
		}
	}
}

// WithAuditRecorder sets the recorder for consistency issues.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(j *Jobs) {
		if r != nil {
			j.audit = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Jobs) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Jobs) {
		if now != nil {
			j.now = now
		}
	}
}

// WithMetrics counts per-tenant failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Jobs) {
		j.metrics = m
	}
}

// Jobs runs the subscription reconciliation jobs.
type Jobs struct {
	tenants   tenant.Repository
	lifecycle subscription.Service
	policies  policy.Engine
	editions  subscription.EditionLookup
	sink      events.Sink
	audit     audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	cfg       Config
}

// New creates the job set.
// Panics if any dependency is nil.
func New(
	tenants tenant.Repository,
	lifecycle subscription.Service,
	policies policy.Engine,
	editions subscription.EditionLookup,
	opts ...Option,
) *Jobs {
	if tenants == nil {
		panic("reconcile: tenant repository is required")
	}
	if lifecycle == nil {
		panic("reconcile: subscription service is required")
	}
	if policies == nil {
		panic("reconcile: policy engine is required")
	}
	if editions == nil {
		panic("reconcile: edition lookup is required")
	}

	j := &Jobs{
		tenants:   tenants,
		lifecycle: lifecycle,
		policies:  policies,
		editions:  editions,
		sink:      events.Discard,
		audit:     audit.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
		cfg:       Config{PageSize: tenant.DefaultPageSize, Concurrency: 4},
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With(logger.Component("reconcile"))

	return j
}

// tenantFunc processes one tenant and reports whether it changed anything.
type tenantFunc func(ctx context.Context, t *tenant.Tenant) (bool, error)

// scan walks every tenant matching q. Only a failure to fetch a page aborts
// the scan; per-tenant errors and panics are counted in the report.
func (j *Jobs) scan(ctx context.Context, job string, q tenant.Query, fn tenantFunc) (Report, error) {
	start := time.Now()
	rep := Report{Job: job}
	log := j.logger.With(logger.Job(job))

	var mu sync.Mutex
	q.Limit = j.cfg.PageSize

	for {
		page, err := j.tenants.FindWithFilters(ctx, q)
		if err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("%s: fetch tenants: %w", job, err)
		}

		var g errgroup.Group
		g.SetLimit(j.cfg.Concurrency)
		for _, t := range page {
			g.Go(func() error {
				changed, err := j.process(ctx, t, fn)

				mu.Lock()
				defer mu.Unlock()
				rep.Scanned++
				switch {
				case err != nil:
					rep.Failed++
					j.metrics.JobTenantFailure(job)
					log.ErrorContext(ctx, "tenant processing failed", logger.TenantID(t.ID), logger.Error(err))
				case changed:
					rep.Changed++
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < q.Limit {
			break
		}
		q.AfterID = page[len(page)-1].ID
	}

	rep.Duration = time.Since(start)
	log.InfoContext(ctx, "job scan finished",
		slog.Int("scanned", rep.Scanned),
		slog.Int("changed", rep.Changed),
		slog.Int("failed", rep.Failed),
		logger.Duration(rep.Duration))
	return rep, nil
}

func (j *Jobs) process(ctx context.Context, t *tenant.Tenant, fn tenantFunc) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, t)
}
