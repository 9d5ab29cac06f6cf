// Package webhook verifies and receives freta webhook deliveries. Each
// delivery carries a hex HMAC-SHA512 of its raw body, keyed with the
// webhook's token, in the X-Freta-Digest header.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tonimelisma/freta/internal/api"
)

// DigestHeader carries the signature of a delivery.
const DigestHeader = "X-Freta-Digest"

var (
	ErrMissingDigest  = errors.New("webhook: missing digest header")
	ErrDigestMismatch = errors.New("webhook: digest mismatch")
	ErrInvalidEvent   = errors.New("webhook: invalid event payload")
)

// Digest returns the lowercase hex HMAC-SHA512 of body keyed with secret.
func Digest(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// Compare reports whether a and b are equal. Strings of different length
// are unequal immediately; otherwise the comparison time does not depend
// on where they differ.
func Compare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Verify checks the digest header of a delivery against body.
func Verify(header http.Header, body []byte, secret string) error {
	got := header.Get(DigestHeader)
	if got == "" {
		return ErrMissingDigest
	}

	if !Compare(got, Digest(secret, body)) {
		return ErrDigestMismatch
	}

	return nil
}

// ParseEvent decodes a delivery body.
func ParseEvent(body []byte) (api.WebhookEvent, error) {
	var ev api.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return api.WebhookEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if ev.EventType == "" {
		return api.WebhookEvent{}, fmt.Errorf("%w: missing event_type", ErrInvalidEvent)
	}

	return ev, nil
}
