package providers

import (
	"fmt"
	"time"

	"github.com/colinloretz/railsconf-webhooks/inbound/verify"
)

/* VerificationMode selects how deliveries for a provider are authenticated
 * There is deliberately no zero-value default: a provider entry that does
 * not name a mode fails validation instead of silently accepting traffic
 */
type VerificationMode int

const (
	Signature VerificationMode = iota + 1
	Accept
	Reject
)

// String returns the string representation of the verification mode
func (m VerificationMode) String() string {
	switch m {
	case Signature:
		return "signature"
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// NewVerificationMode creates a VerificationMode from a string
func NewVerificationMode(s string) (VerificationMode, error) {
	switch s {
	case "signature":
		return Signature, nil
	case "accept":
		return Accept, nil
	case "reject":
		return Reject, nil
	default:
		return 0, fmt.Errorf("unknown verification mode: %q", s)
	}
}

// Validate checks if the verification mode is valid
func (m VerificationMode) Validate() error {
	if m < Signature || m > Reject {
		return fmt.Errorf("invalid verification mode: %d", m)
	}
	return nil
}

/* Provider represents one configured webhook sender
 * Maps a provider name (the URL path segment) to its verification settings
 */
type Provider struct {
	Name             string
	Mode             VerificationMode
	SigningSecret    string // required for Signature mode
	SignatureHeader  string // optional, defaults to verify.DefaultHeader
	ToleranceSeconds int    // optional replay window, defaults to verify.DefaultTolerance
}

// Validate checks if the provider configuration is valid
func (p *Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if err := p.Mode.Validate(); err != nil {
		return fmt.Errorf("invalid mode for provider %s: %w", p.Name, err)
	}
	if p.Mode == Signature && p.SigningSecret == "" {
		return fmt.Errorf("signing_secret is required for provider %s in signature mode", p.Name)
	}
	if p.Mode != Signature && p.SigningSecret != "" {
		return fmt.Errorf("signing_secret is set for provider %s but mode is %s", p.Name, p.Mode)
	}
	if p.ToleranceSeconds < 0 {
		return fmt.Errorf("tolerance_seconds cannot be negative for provider %s", p.Name)
	}
	return nil
}

/* Strategy returns the verification strategy for this provider
 * Selection happens here, explicitly, per configuration — never through an
 * implicit fallback. Every strategy is wrapped so a panic on malformed
 * input is a rejection rather than a crash.
 */
func (p *Provider) Strategy() verify.Strategy {
	switch p.Mode {
	case Signature:
		tolerance := time.Duration(p.ToleranceSeconds) * time.Second
		if p.ToleranceSeconds == 0 {
			tolerance = verify.DefaultTolerance
		}
		header := p.SignatureHeader
		if header == "" {
			header = verify.DefaultHeader
		}
		return verify.Safe(&verify.Signature{
			Secret:    []byte(p.SigningSecret),
			Header:    header,
			Tolerance: tolerance,
		})
	case Accept:
		return verify.Safe(verify.AcceptAll{})
	default:
		return verify.Safe(verify.RejectAll{})
	}
}
