package entitlement

import "time"

// Config holds resolver settings loaded from the environment.
type Config struct {
	CacheTTL  time.Duration `env:"FEATURE_CACHE_TTL" envDefault:"3m"`
	CacheSize int           `env:"FEATURE_CACHE_SIZE" envDefault:"10000"`
}
