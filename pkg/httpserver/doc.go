// Package httpserver runs an http.Server with graceful shutdown.
//
// Run blocks until its context is cancelled and then calls http.Server.Shutdown
// bounded by the shutdown timeout. Signal handling is left to the caller, which
// usually derives the context from signal.NotifyContext:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// HealthHandler serves liveness and readiness probes.
package httpserver
