package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"hermes/internal/domain"
)

func signedHeaders(ts string, body []byte, secret string) http.Header {
	h := http.Header{}
	h.Set(headerTimestamp, ts)
	h.Set(headerSignature, Sign(ts, body, secret))
	return h
}

func TestVerify_Valid(t *testing.T) {
	body := []byte(`{"event":{}}`)
	h := signedHeaders("1531420618", body, "8f742231b10e8888abcd99yyyzzz85a5")

	if err := Verify(h, body, "8f742231b10e8888abcd99yyyzzz85a5", 0); err != nil {
		t.Errorf("valid signature should verify: %v", err)
	}
}

func TestVerify_Mismatch(t *testing.T) {
	body := []byte(`{"event":{}}`)
	h := signedHeaders("1531420618", body, "right-secret")

	err := Verify(h, body, "wrong-secret", 0)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	body := []byte(`{"event":{}}`)
	h := signedHeaders("1531420618", body, "secret")

	err := Verify(h, []byte(`{"event":{"text":"evil"}}`), "secret", 0)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	body := []byte("x")

	cases := []http.Header{
		{},
		{headerTimestamp: []string{"1531420618"}},
		{headerSignature: []string{"v0=deadbeef"}},
	}
	for i, h := range cases {
		if err := Verify(h, body, "secret", 0); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("case %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}
}

func TestVerify_StaleTimestamp(t *testing.T) {
	body := []byte("x")
	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	h := signedHeaders(old, body, "secret")

	// Correctly signed but an hour old.
	if err := Verify(h, body, "secret", 5*time.Minute); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected stale timestamp rejection, got %v", err)
	}

	// Freshness check disabled: passes.
	if err := Verify(h, body, "secret", 0); err != nil {
		t.Errorf("disabled freshness check should pass: %v", err)
	}
}

func TestVerify_FreshTimestamp(t *testing.T) {
	body := []byte("x")
	now := fmt.Sprintf("%d", time.Now().Unix())
	h := signedHeaders(now, body, "secret")

	if err := Verify(h, body, "secret", 5*time.Minute); err != nil {
		t.Errorf("fresh timestamp should pass: %v", err)
	}
}

func TestVerify_NonNumericTimestampWithFreshness(t *testing.T) {
	body := []byte("x")
	h := signedHeaders("not-a-number", body, "secret")

	if err := Verify(h, body, "secret", 5*time.Minute); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}
