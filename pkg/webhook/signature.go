package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Delivery headers.
const (
	HeaderSignature = "X-Entitlekit-Signature"
	HeaderTimestamp = "X-Entitlekit-Timestamp"
	HeaderEventID   = "X-Entitlekit-Event-ID"
	HeaderEvent     = "X-Entitlekit-Event"
)

// Sign returns the hex HMAC-SHA256 of "<ts>.<body>".
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body and ts. A non-zero tolerance rejects
// timestamps further than tolerance from now in either direction.
func Verify(secret string, body []byte, ts int64, signature string, now time.Time, tolerance time.Duration) error {
	if signature == "" || ts == 0 {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}
	if !hmac.Equal([]byte(Sign(secret, ts, body)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
