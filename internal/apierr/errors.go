// Package apierr defines the error taxonomy shared across every layer of the
// screening platform (spec §7). Errors are typed, never stringly-compared,
// and every user-visible failure carries an error code, a message, a details
// map, and the correlation id of the request that produced it.
package apierr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind is one entry in the fixed taxonomy from spec §7.
type Kind string

const (
	KindContextMissing     Kind = "CONTEXT_MISSING"
	KindTenantNotFound     Kind = "TENANT_NOT_FOUND"
	KindTenantInactive     Kind = "TENANT_INACTIVE"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindComplianceBlocked  Kind = "COMPLIANCE_BLOCKED"
	KindConsentMissing     Kind = "CONSENT_MISSING"
	KindConsentExpired     Kind = "CONSENT_EXPIRED"
	KindBudgetExceeded     Kind = "BUDGET_EXCEEDED"
	KindCircuitOpen        Kind = "CIRCUIT_OPEN"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindProviderTimeout    Kind = "PROVIDER_TIMEOUT"
	KindProviderFailure    Kind = "PROVIDER_FAILURE"
	KindNoProviderAvailable Kind = "NO_PROVIDER_AVAILABLE"
	KindCancelled          Kind = "CANCELLED"
)

// Error is the concrete type for every taxonomy kind. Construct with New or
// one of the kind-specific helpers below; wrap underlying causes with Wrap so
// errors.Is/errors.As chains stay intact across layers.
type Error struct {
	Kind          Kind
	Message       string
	Details       map[string]any
	CorrelationID uuid.UUID
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// ErrorCode returns the stable machine-readable code for API responses.
func (e *Error) ErrorCode() string { return string(e.Kind) }

// New constructs a taxonomy error with no details and no correlation id set.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Details: map[string]any{}}
}

// Wrap attaches an underlying cause, preserved via errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// WithCorrelation stamps the error with the request's correlation id.
func (e *Error) WithCorrelation(id uuid.UUID) *Error {
	e.CorrelationID = id
	return e
}

// WithDetail adds one key to the details map, returning the same error for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// Is lets errors.Is(err, apierr.New(KindX, "")) match on Kind alone,
// ignoring Message/Details/cause — callers compare by taxonomy kind, never
// by message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the taxonomy kind from any error, returning ("", false) if
// err is not (or does not wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Surfacing describes how a kind propagates per spec §7.
type Surfacing int

const (
	SurfaceLocallyRecovered Surfacing = iota
	SurfacePartially
	SurfaceFully
)

// SurfacingOf reports how the named kind should propagate. Locally recovered
// kinds are handled by the router itself (retried or fallen back) and should
// never reach a caller; partially surfaced kinds abort the current unit of
// work but not sibling work; fully surfaced kinds always reach the caller.
func SurfacingOf(k Kind) Surfacing {
	switch k {
	case KindRateLimited, KindCircuitOpen, KindProviderTimeout, KindProviderFailure:
		return SurfaceLocallyRecovered
	case KindBudgetExceeded, KindNoProviderAvailable:
		return SurfacePartially
	default:
		return SurfaceFully
	}
}
