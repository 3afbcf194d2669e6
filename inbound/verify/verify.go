package verify

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

/* Strategy authenticates that a webhook delivery genuinely originated from
 * the claimed provider. Implementations are pure: raw body + headers +
 * injected secret in, accept or reject out. No ambient secret lookups.
 *
 * A nil return means the delivery is accepted. Any non-nil error means
 * rejected; callers should not distinguish beyond the sentinel errors below.
 */
type Strategy interface {
	Verify(body []byte, headers http.Header, now time.Time) error
}

var (
	ErrMissingSignature   = errors.New("signature header is required")
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrTimestampExpired   = errors.New("signed timestamp outside allowed tolerance")
	ErrMissingSecret      = errors.New("signing secret is not configured")
	ErrRejected           = errors.New("verification disabled, rejecting all deliveries")
)

/* AcceptAll accepts every delivery without looking at it.
 * Only for providers without a reliable verification mechanism and for
 * local development. Must be configured explicitly; the selection table
 * never falls back to it.
 */
type AcceptAll struct{}

func (AcceptAll) Verify(body []byte, headers http.Header, now time.Time) error {
	return nil
}

// RejectAll rejects every delivery. Used as an explicit shutoff.
type RejectAll struct{}

func (RejectAll) Verify(body []byte, headers http.Header, now time.Time) error {
	return ErrRejected
}

// safeStrategy wraps another strategy and converts panics into rejections.
type safeStrategy struct {
	inner Strategy
}

/* Safe returns a strategy that never panics. Verification runs on
 * attacker-controlled input, so a crash inside a strategy must surface as
 * a rejection, not a 500.
 */
func Safe(s Strategy) Strategy {
	return safeStrategy{inner: s}
}

func (s safeStrategy) Verify(body []byte, headers http.Header, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: verification panic: %v", ErrInvalidSignature, r)
		}
	}()
	return s.inner.Verify(body, headers, now)
}
