// Package reqctx propagates the per-request RequestContext (spec §4.1)
// through context.Context the way the teacher's pkg/auth package propagates
// an authenticated Principal: a private key type, a With helper that
// attaches, and a From helper that extracts and fails closed when absent.
package reqctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/veriscope/screening/internal/apierr"
)

// ActorType identifies who is driving the request.
type ActorType string

const (
	ActorHuman   ActorType = "HUMAN"
	ActorService ActorType = "SERVICE"
	ActorSystem  ActorType = "SYSTEM"
)

// CacheScope controls whether provider responses may be shared across
// tenants for this request (spec §4.4 two-scope cache).
type CacheScope string

const (
	CacheShared         CacheScope = "SHARED"
	CacheTenantIsolated CacheScope = "TENANT_ISOLATED"
)

// RequestContext is set once at request entry and implicitly propagated to
// every descendant operation the request's task spawns (spec §4.1, §5).
type RequestContext struct {
	TenantID        uuid.UUID
	ActorID         string
	ActorType       ActorType
	CorrelationID   uuid.UUID
	Locale          string
	CacheScope      CacheScope
	PermittedChecks map[string]struct{}
}

// PermitsCheck reports whether the named check type is in this request's
// permitted set. An empty set means no restriction has been computed yet
// (callers should treat that as "ask the compliance engine", not "allow
// everything").
func (rc *RequestContext) PermitsCheck(checkType string) bool {
	if rc == nil || len(rc.PermittedChecks) == 0 {
		return false
	}
	_, ok := rc.PermittedChecks[checkType]
	return ok
}

type contextKey struct{}

var key = contextKey{}

// With attaches rc to ctx for this task and any descendants it spawns.
func With(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, key, rc)
}

// From retrieves the RequestContext, returning a ContextMissing error if the
// caller invoked an operation outside of any request's task tree.
func From(ctx context.Context) (*RequestContext, error) {
	rc, ok := ctx.Value(key).(*RequestContext)
	if !ok || rc == nil {
		return nil, apierr.New(apierr.KindContextMissing, "no RequestContext on context")
	}
	return rc, nil
}

// MustFrom panics if rc is missing. Use only where a middleware layer
// guarantees presence (mirrors the teacher's auth.MustGetTenantID).
func MustFrom(ctx context.Context) *RequestContext {
	rc, err := From(ctx)
	if err != nil {
		panic(err)
	}
	return rc
}
