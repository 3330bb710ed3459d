// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for optional .env files. Every configurable
// component of entitlekit (policy.GlobalConfig, entitlement.Config,
// reconcile.Config, pg.Config, redis.Config, ...) is a plain struct with env
// tags that can be passed to Load.
//
// A call without options reads the default .env once and caches the parsed
// value per type for the lifetime of the process. Options switch to an
// uncached parse, which is what tests use to stay away from the process
// environment:
//
//	var cfg policy.GlobalConfig
//	err := config.Load(&cfg, config.WithEnvironment(map[string]string{
//		"SUBSCRIPTION_EXPIRATION_ACTION": "DEACTIVATE",
//	}))
//
// WithPrefix namespaces the tags and WithEnvFiles layers dotenv files under
// the environment. ResetCache clears the per-type cache.
package config
