package billing

// PaddleConfig holds the webhook settings.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
}

// Enabled reports whether the webhook route should be mounted.
func (c PaddleConfig) Enabled() bool {
	return c.WebhookSecret != ""
}
