// Package logger builds the log/slog loggers used across entitlekit and
// defines the attribute helpers that keep field names consistent.
//
// New assembles a text or JSON handler from functional options and wraps it
// in a ContextHandler that copies request-scoped values (request ID,
// environment, tenant ID) from the context onto every record:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "entitlekitd"),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), tenant.LoggerExtractor()),
//	)
//
// Attribute helpers such as TenantID, EditionID, FeatureKey, State, Job and
// Error live in attr.go. Services take a *slog.Logger through a WithLogger
// option and default to slog.Default().
package logger
