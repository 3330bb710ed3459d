// Package webhook delivers engine events to an external HTTP endpoint.
//
// Sink implements events.Sink: Publish only enqueues, and a background
// worker posts each event as JSON through a Sender. The Sender signs the body
// with HMAC-SHA256, retries temporary failures with exponential backoff and
// stops calling an endpoint that keeps failing until its circuit recovers.
//
// Receivers verify a delivery with Verify:
//
//	ts, _ := strconv.ParseInt(r.Header.Get(webhook.HeaderTimestamp), 10, 64)
//	err := webhook.Verify(secret, body, ts, r.Header.Get(webhook.HeaderSignature), time.Now(), 5*time.Minute)
package webhook
