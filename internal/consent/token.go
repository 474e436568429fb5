// Package consent decodes the consent token asserted at screening request
// intake (spec §4.7, §6). Per spec: "the caller asserts a consent token the
// platform records but does not re-validate cryptographically in this
// core" — so unlike the teacher's identity.TokenManager (which signs and
// verifies with a KeySet), this package only parses claims and checks
// expiry, using jwt.ParseUnverified the way a downstream consumer of an
// already-authenticated token would.
package consent

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/veriscope/screening/internal/apierr"
)

// Claims carries the subset of consent-token fields the platform records.
type Claims struct {
	jwt.RegisteredClaims
	ConsentScope []string `json:"consent_scope,omitempty"`
}

// Decode parses a consent token's claims without verifying its signature and
// checks expiry. An empty token is ConsentMissing; an expired token is
// ConsentExpired.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, apierr.New(apierr.KindConsentMissing, "no consent token supplied")
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, apierr.New(apierr.KindValidation, "malformed consent token").Wrap(err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, apierr.New(apierr.KindConsentExpired, "consent token expired").
			WithDetail("expired_at", claims.ExpiresAt.Time)
	}

	return claims, nil
}
