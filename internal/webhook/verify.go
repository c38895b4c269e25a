package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hermes/internal/domain"
)

const (
	headerTimestamp = "X-Request-Timestamp"
	headerSignature = "X-Request-Signature"

	signatureVersion = "v0"
)

// Verify checks that the request carries a valid platform signature:
// HMAC-SHA256 over "v0:{timestamp}:{body}" keyed by the signing secret,
// hex-encoded with a "v0=" prefix, compared in constant time.
//
// maxAge > 0 additionally rejects timestamps older (or further in the
// future) than maxAge. Every failure mode returns ErrInvalidSignature so
// callers cannot leak which check tripped.
func Verify(headers http.Header, body []byte, secret string, maxAge time.Duration) error {
	ts := headers.Get(headerTimestamp)
	sig := headers.Get(headerSignature)
	if ts == "" || sig == "" {
		return domain.ErrInvalidSignature
	}

	if maxAge > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return domain.ErrInvalidSignature
		}
		age := time.Since(time.Unix(sec, 0))
		if age > maxAge || age < -maxAge {
			return domain.ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s", signatureVersion, ts, body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Sign computes the signature header value for a timestamp and body.
// Used by tests and the doctor's self-check.
func Sign(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s", signatureVersion, timestamp, body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
