package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/events"
)

const userAgent = "entitlekit-webhook/1.0"

// Sender posts events to one endpoint.
type Sender struct {
	url        string
	secret     string
	client     *http.Client
	backoff    Backoff
	maxRetries int
	breaker    *breaker
	now        func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default client. The client's own timeout applies.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithClock overrides time.Now for signing and the circuit breaker.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSender validates cfg and builds a sender for cfg.URL.
func NewSender(cfg Config, opts ...Option) (*Sender, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Sender{
		url:        u.String(),
		secret:     cfg.Secret,
		client:     &http.Client{Timeout: timeout},
		backoff:    Backoff{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax, Jitter: 0.1},
		maxRetries: max(cfg.MaxRetries, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = newBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout, s.now)

	return s, nil
}

// Deliver posts e, retrying network errors, 5xx and throttling responses.
// Other 4xx responses are not retried. A delivery that fails after all
// attempts counts once towards opening the circuit.
func (s *Sender) Deliver(ctx context.Context, e events.Event) error {
	if !s.breaker.allow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.breaker.failure()
				return ctx.Err()
			case <-time.After(s.backoff.Delay(attempt)):
			}
		}

		status, err := s.post(ctx, e, body)
		if err == nil {
			s.breaker.success()
			return nil
		}
		lastErr = err
		if permanent(status) {
			s.breaker.failure()
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	s.breaker.failure()
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *Sender) post(ctx context.Context, e events.Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	ts := s.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEventID, e.ID.String())
	req.Header.Set(HeaderEvent, e.Name)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(s.secret, ts, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.Join(strings.Fields(string(snippet)), " ")
	return resp.StatusCode, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, msg)
}

// permanent reports whether a status will not change on retry.
func permanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
