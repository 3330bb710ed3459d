package redis

import "time"

// Config holds the Redis client settings. An empty ConnectionURL disables Redis.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	// EventsChannelPrefix prefixes the per-tenant pub/sub channels of the event sink.
	EventsChannelPrefix string `env:"REDIS_EVENTS_CHANNEL_PREFIX" envDefault:"entitlekit:events:"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
