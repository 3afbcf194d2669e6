package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHeader is the header carrying the signature when the provider
	// configuration does not name one
	DefaultHeader = "Webhook-Signature"

	// DefaultTolerance bounds the age of the signed timestamp (replay window)
	DefaultTolerance = 5 * time.Minute

	// SchemeVersion is the signature scheme identifier in the header
	SchemeVersion = "v1"
)

/* Signature verifies HMAC-SHA256 signatures in the scheme used by payment
 * providers: the header value is a comma-separated list of key=value pairs,
 *
 *   t=1687871280,v1=5257a86...,v1=d397af...
 *
 * where each v1 entry is hex(HMAC-SHA256(secret, "{t}.{body}")). Multiple
 * v1 entries allow secret rotation; any one match accepts. The signed
 * timestamp must fall within Tolerance of the wall clock.
 */
type Signature struct {
	// Secret is the shared signing secret, injected at construction
	Secret []byte
	// Header names the request header carrying the signature
	Header string
	// Tolerance is the maximum accepted clock skew for the signed timestamp
	Tolerance time.Duration
}

// NewSignature creates a signature strategy with default header and tolerance
func NewSignature(secret []byte) *Signature {
	return &Signature{
		Secret:    secret,
		Header:    DefaultHeader,
		Tolerance: DefaultTolerance,
	}
}

// Verify checks the signature header against the raw body
func (s *Signature) Verify(body []byte, headers http.Header, now time.Time) error {
	if len(s.Secret) == 0 {
		return ErrMissingSecret
	}

	header := s.Header
	if header == "" {
		header = DefaultHeader
	}

	value := headers.Get(header)
	if value == "" {
		return ErrMissingSignature
	}

	timestamp, signatures, err := parseSignatureHeader(value)
	if err != nil {
		return err
	}

	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	// Reject both stale and too-far-future timestamps
	age := now.Sub(timestamp)
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: signed at %s", ErrTimestampExpired, timestamp.UTC().Format(time.RFC3339))
	}

	expected := ComputeSignature(s.Secret, timestamp, body)
	for _, sig := range signatures {
		if subtle.ConstantTimeCompare(sig, expected) == 1 {
			return nil
		}
	}

	return ErrInvalidSignature
}

/* ComputeSignature returns the raw HMAC-SHA256 digest over the signed
 * content "{unix_timestamp}.{body}". Exported so tests and the sender side
 * of integrations can produce valid headers.
 */
func ComputeSignature(secret []byte, timestamp time.Time, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", timestamp.Unix())
	mac.Write(body)
	return mac.Sum(nil)
}

// BuildSignatureHeader builds a valid header value for the given payload
func BuildSignatureHeader(secret []byte, timestamp time.Time, body []byte) string {
	digest := ComputeSignature(secret, timestamp, body)
	return fmt.Sprintf("t=%d,%s=%s", timestamp.Unix(), SchemeVersion, hex.EncodeToString(digest))
}

/* parseSignatureHeader splits "t=...,v1=...,v1=..." into the signed
 * timestamp and the decoded candidate signatures. Unknown schemes are
 * ignored for forward compatibility, matching provider documentation.
 */
func parseSignatureHeader(value string) (time.Time, [][]byte, error) {
	var timestamp time.Time
	var signatures [][]byte

	for _, pair := range strings.Split(value, ",") {
		key, val, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			return time.Time{}, nil, fmt.Errorf("%w: %q", ErrMalformedSignature, pair)
		}

		switch key {
		case "t":
			unix, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("%w: parsing timestamp: %q", ErrMalformedSignature, val)
			}
			timestamp = time.Unix(unix, 0)
		case SchemeVersion:
			sig, err := hex.DecodeString(val)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("%w: decoding signature: %q", ErrMalformedSignature, val)
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp.IsZero() {
		return time.Time{}, nil, fmt.Errorf("%w: missing timestamp", ErrMalformedSignature)
	}
	if len(signatures) == 0 {
		return time.Time{}, nil, fmt.Errorf("%w: no %s signatures", ErrMalformedSignature, SchemeVersion)
	}

	return timestamp, signatures, nil
}
