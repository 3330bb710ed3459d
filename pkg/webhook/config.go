package webhook

import "time"

// Config holds the outbound event webhook settings.
type Config struct {
	URL              string        `env:"EVENTS_WEBHOOK_URL"`
	Secret           string        `env:"EVENTS_WEBHOOK_SECRET"`
	Timeout          time.Duration `env:"EVENTS_WEBHOOK_TIMEOUT" envDefault:"10s"`
	MaxRetries       int           `env:"EVENTS_WEBHOOK_MAX_RETRIES" envDefault:"3"`
	BackoffInitial   time.Duration `env:"EVENTS_WEBHOOK_BACKOFF_INITIAL" envDefault:"1s"`
	BackoffMax       time.Duration `env:"EVENTS_WEBHOOK_BACKOFF_MAX" envDefault:"30s"`
	FailureThreshold int           `env:"EVENTS_WEBHOOK_FAILURE_THRESHOLD" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"EVENTS_WEBHOOK_RECOVERY_TIMEOUT" envDefault:"30s"`
	QueueSize        int           `env:"EVENTS_WEBHOOK_QUEUE_SIZE" envDefault:"512"`
}

// Enabled reports whether events should be forwarded.
func (c Config) Enabled() bool {
	return c.URL != ""
}
