// Command entitlekitd runs the subscription engine: the read-only HTTP API,
// the Paddle webhook and the reconciliation scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/clientip"
	"github.com/dmitrymomot/entitlekit/pkg/config"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/email"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/environment"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/httpapi"
	"github.com/dmitrymomot/entitlekit/pkg/httpserver"
	"github.com/dmitrymomot/entitlekit/pkg/jobs"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/notify"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/reconcile"
	"github.com/dmitrymomot/entitlekit/pkg/redis"
	"github.com/dmitrymomot/entitlekit/pkg/requestid"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
	"github.com/dmitrymomot/entitlekit/pkg/webhook"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("entitlekitd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	if err := app.validate(); err != nil {
		return err
	}

	log, err := newLogger(app)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	catalog, err := loadCatalog(app.CatalogPath)
	if err != nil {
		return err
	}

	var (
		entCfg    entitlement.Config
		policyCfg policy.GlobalConfig
		recCfg    reconcile.Config
		redisCfg  redis.Config
		emailCfg  email.Config
		paddleCfg billing.PaddleConfig
		hookCfg   webhook.Config
		httpCfg   httpserver.Config
	)
	for _, target := range []func() error{
		func() error { return config.Load(&entCfg) },
		func() error { return config.Load(&policyCfg) },
		func() error { return config.Load(&recCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&paddleCfg) },
		func() error { return config.Load(&hookCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := target(); err != nil {
			return err
		}
	}

	m := metrics.New(true)

	st, err := openStores(ctx, app, log)
	if err != nil {
		return err
	}
	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}
	defer func() {
		sctx, cancel := shutdownCtx()
		defer cancel()
		st.close(sctx)
	}()

	auditWriter := audit.NewAsyncWriter(st.audit, audit.AsyncOptions{})
	defer func() {
		sctx, cancel := shutdownCtx()
		defer cancel()
		if err := auditWriter.Close(sctx); err != nil {
			log.Error("failed to flush audit records", logger.Error(err))
		}
	}()
	recorder := audit.NewRecorder(auditWriter)

	hub := events.NewHub(app.EventBuffer)
	defer func() { _ = hub.Close() }()

	var forward []events.Sink
	if hookCfg.Enabled() {
		sender, err := webhook.NewSender(hookCfg)
		if err != nil {
			return err
		}
		hook := webhook.NewSink(sender,
			webhook.WithQueueSize(hookCfg.QueueSize),
			webhook.WithLogger(log),
			webhook.WithMetrics(m),
		)
		defer func() {
			sctx, cancel := shutdownCtx()
			defer cancel()
			if err := hook.Close(sctx); err != nil {
				log.Error("failed to deliver queued event webhooks", logger.Error(err))
			}
		}()
		forward = append(forward, hook)
	}

	sink, checks, err := eventSinks(ctx, hub, st.tenants, redisCfg, emailCfg, log, forward...)
	if err != nil {
		return err
	}
	checks = append(st.checks, checks...)

	// The edition manager invalidates resolver entries, and the resolver reads
	// editions through the manager's cache.
	var resolver entitlement.Resolver
	editions := edition.NewManager(st.editions, catalog,
		edition.WithCacheTTL(entCfg.CacheTTL),
		edition.WithLogger(log),
		edition.WithChangeHook(func(ctx context.Context, _ string) {
			resolver.InvalidateEditionImpact(ctx)
		}),
	)
	resolver = entitlement.NewResolver(catalog, st.tenants, st.overrides, editions,
		entitlement.WithConfig(entCfg),
		entitlement.WithLogger(log),
		entitlement.WithMetrics(m),
	)

	lifecycle := subscription.NewService(st.tenants, editions, resolver,
		subscription.WithEventSink(sink),
		subscription.WithAuditRecorder(recorder),
		subscription.WithLogger(log),
		subscription.WithMetrics(m),
	)
	policies := policy.NewEngine(st.tenants, lifecycle,
		policy.WithGlobalConfig(policyCfg),
		policy.WithEventSink(sink),
		policy.WithAuditRecorder(recorder),
		policy.WithLogger(log),
		policy.WithMetrics(m),
	)

	scheduler := jobs.NewScheduler(jobs.WithLogger(log), jobs.WithMetrics(m))
	reconciler := reconcile.New(st.tenants, lifecycle, policies, editions,
		reconcile.WithConfig(recCfg),
		reconcile.WithEventSink(sink),
		reconcile.WithAuditRecorder(recorder),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(m),
	)
	if err := reconciler.Register(scheduler); err != nil {
		return err
	}

	deps := httpapi.Deps{
		Features:      resolver,
		Subscriptions: lifecycle,
		Policies:      policies,
		Tenants:       st.tenants,
		Metrics:       m,
		Checks:        checks,
		ClientIP:      app.clientIPResolver(),
		Logger:        log,
	}
	if paddleCfg.Enabled() {
		paddle, err := billing.NewPaddleWebhook(paddleCfg, lifecycle, billing.WithLogger(log))
		if err != nil {
			return err
		}
		deps.Webhook = paddle
	} else {
		log.Warn("PADDLE_WEBHOOK_SECRET is not set, payment webhooks are disabled")
	}
	handler := environment.Middleware(app.Env)(httpapi.NewRouter(deps))

	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, handler)
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	log.Info("entitlekitd started",
		slog.String("store", app.StoreDriver),
		slog.String("audit", app.auditDriver()),
		slog.Int("features", catalog.Len()),
	)
	return g.Wait()
}

func newLogger(app appConfig) (*slog.Logger, error) {
	var cfg logger.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	opts = append([]logger.Option{logger.WithEnvironment(app.Env, app.ServiceName)}, opts...)
	opts = append(opts, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
		tenant.LoggerExtractor(),
	))
	return logger.New(opts...), nil
}

// loadCatalog registers the built-in features plus the optional YAML
// catalog. A YAML definition replaces the built-in one with the same key.
func loadCatalog(path string) (*feature.Catalog, error) {
	defs := feature.BuiltinDefinitions()
	if path != "" {
		extra, err := feature.LoadDefinitionsFile(path)
		if err != nil {
			return nil, err
		}
		defs = mergeDefinitions(defs, extra)
	}
	catalog, err := feature.NewCatalog(defs...)
	if err != nil {
		return nil, fmt.Errorf("register feature catalog: %w", err)
	}
	return catalog, nil
}

func mergeDefinitions(base, extra []feature.Definition) []feature.Definition {
	index := make(map[string]int, len(base))
	out := make([]feature.Definition, 0, len(base)+len(extra))
	for _, d := range base {
		index[feature.FoldKey(d.Key)] = len(out)
		out = append(out, d)
	}
	for _, d := range extra {
		if i, ok := index[feature.FoldKey(d.Key)]; ok {
			out[i] = d
			continue
		}
		index[feature.FoldKey(d.Key)] = len(out)
		out = append(out, d)
	}
	return out
}

// eventSinks fans events out to the in-process hub, the forward sinks, Redis
// when configured and tenant email notifications.
func eventSinks(
	ctx context.Context,
	hub *events.Hub,
	tenants tenant.Repository,
	redisCfg redis.Config,
	emailCfg email.Config,
	log *slog.Logger,
	forward ...events.Sink,
) (events.Sink, []httpserver.Check, error) {
	sinks := append([]events.Sink{hub}, forward...)
	var checks []httpserver.Check

	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, events.NewRedisSink(client,
			events.WithChannelPrefix(redisCfg.EventsChannelPrefix),
			events.WithRedisLogger(log),
		))
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	}

	sender, err := email.New(emailCfg)
	if err != nil {
		return nil, nil, err
	}
	if !emailCfg.UsePostmark() {
		log.Info("postmark is not configured, emails are written to disk", slog.String("dir", emailCfg.DevDir))
	}
	sinks = append(sinks, notify.NewSink(tenants, sender, notify.WithLogger(log)))

	return events.Multi(sinks...), checks, nil
}
