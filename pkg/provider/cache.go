package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"golang.org/x/sync/singleflight"

	"github.com/veriscope/screening/internal/crypto"
	"github.com/veriscope/screening/internal/reqctx"
	"github.com/veriscope/screening/pkg/domain"
)

// TTLTable maps check_type to (fresh, stale) durations (spec §4.4 step 3).
type TTLTable map[string]struct {
	Fresh time.Duration
	Stale time.Duration
}

// DefaultTTLTable is the overridable default freshness table from spec §4.4.
func DefaultTTLTable() TTLTable {
	day := 24 * time.Hour
	return TTLTable{
		"criminal":   {Fresh: 7 * day, Stale: 14 * day},
		"credit":     {Fresh: 30 * day, Stale: 30 * day},
		"employment": {Fresh: 30 * day, Stale: 60 * day},
		"education":  {Fresh: 90 * day, Stale: 180 * day},
		"identity":   {Fresh: 30 * day, Stale: 60 * day},
		"fallback":   {Fresh: 7 * day, Stale: 30 * day},
	}
}

func (t TTLTable) For(checkType string) (fresh, stale time.Duration) {
	if v, ok := t[checkType]; ok {
		return v.Fresh, v.Stale
	}
	v := t["fallback"]
	return v.Fresh, v.Stale
}

// Store is the persistence seam the cache writes through to.
type Store interface {
	GetCached(ctx context.Context, key string) (*domain.CachedResponse, error)
	PutCached(ctx context.Context, key string, resp domain.CachedResponse) error
}

// FetchFunc executes the underlying provider call on a cache miss.
type FetchFunc func(ctx context.Context) (*domain.CachedResponse, error)

// Cache implements the two-scope response cache from spec §4.4: keyed on
// (entity_id, provider_id, check_type), visibility gated by data_origin,
// concurrent misses for the same key collapsed via singleflight.
type Cache struct {
	store   Store
	vault   *crypto.Vault
	ttl     TTLTable
	sf      singleflight.Group
}

func NewCache(store Store, vault *crypto.Vault, ttl TTLTable) *Cache {
	return &Cache{store: store, vault: vault, ttl: ttl}
}

// Key canonicalizes (entity_id, provider_id, check_type) via JCS so the
// cache key is stable regardless of map key ordering upstream.
func Key(entityID uuid.UUID, providerID, checkType string) (string, error) {
	raw, err := json.Marshal(map[string]string{
		"entity_id":   entityID.String(),
		"provider_id": providerID,
		"check_type":  checkType,
	})
	if err != nil {
		return "", fmt.Errorf("provider: marshal cache key: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("provider: canonicalize cache key: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// GetOrFetchResult reports whether the cache served the request and, if so,
// whether the entry was fresh or only stale-allowed.
type GetOrFetchResult struct {
	Response *domain.CachedResponse
	CacheHit bool
	Stale    bool
}

// peek is the fresh-hit-only lookup the router uses per candidate provider
// before deciding whether to fall through to a live call (spec §4.4: "Cache
// lookup → if fresh-hit: return cached").
func (c *Cache) peek(ctx context.Context, entityID uuid.UUID, providerID, checkType string, tenantID uuid.UUID) (*domain.CachedResponse, error) {
	key, err := Key(entityID, providerID, checkType)
	if err != nil {
		return nil, err
	}
	cached, err := c.store.GetCached(ctx, key)
	if err != nil || cached == nil {
		return nil, err
	}
	if !c.visible(ctx, cached, &tenantID) {
		return nil, nil
	}
	if cached.FreshnessAt(time.Now()) != domain.FreshnessFresh {
		return nil, nil
	}
	return cached, nil
}

// Store seals and persists a freshly fetched response with TTLs computed
// from checkType, mirroring what GetOrFetch does on a miss. Used by the
// router, which drives its own provider fallback loop instead of going
// through GetOrFetch's single fetch closure.
func (c *Cache) Store(ctx context.Context, resp *domain.CachedResponse) error {
	key, err := Key(resp.EntityID, resp.ProviderID, resp.CheckType)
	if err != nil {
		return err
	}

	fresh, stale := c.ttl.For(resp.CheckType)
	now := time.Now()
	resp.FetchedAt = now
	resp.FreshUntil = now.Add(fresh)
	resp.StaleUntil = now.Add(fresh + stale)

	if c.vault != nil && resp.RawResponse != "" {
		sealed, serr := c.vault.SealString(resp.RawResponse)
		if serr != nil {
			return fmt.Errorf("provider: seal raw response: %w", serr)
		}
		resp.RawResponse = sealed
	}

	return c.store.PutCached(ctx, key, *resp)
}

// GetOrFetch implements the lookup/fetch/store sequence from spec §4.4 for
// callers (e.g. direct cache consumers, tests) that want the cache to drive
// a single fetch rather than a multi-provider fallback loop.
func (c *Cache) GetOrFetch(ctx context.Context, entityID uuid.UUID, providerID, checkType string, tenantID *uuid.UUID, fetch FetchFunc) (*GetOrFetchResult, error) {
	key, err := Key(entityID, providerID, checkType)
	if err != nil {
		return nil, err
	}

	cached, err := c.store.GetCached(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("provider: cache lookup: %w", err)
	}

	if cached != nil {
		if !c.visible(ctx, cached, tenantID) {
			cached = nil
		}
	}

	if cached != nil {
		switch cached.FreshnessAt(time.Now()) {
		case domain.FreshnessFresh:
			return &GetOrFetchResult{Response: cached, CacheHit: true}, nil
		case domain.FreshnessStale:
			return &GetOrFetchResult{Response: cached, CacheHit: true, Stale: true}, nil
		}
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		resp, ferr := fetch(ctx)
		if ferr != nil {
			return nil, ferr
		}

		fresh, stale := c.ttl.For(checkType)
		now := time.Now()
		resp.FetchedAt = now
		resp.FreshUntil = now.Add(fresh)
		resp.StaleUntil = now.Add(fresh + stale)

		if c.vault != nil && resp.RawResponse != "" {
			sealed, serr := c.vault.SealString(resp.RawResponse)
			if serr != nil {
				return nil, fmt.Errorf("provider: seal raw response: %w", serr)
			}
			resp.RawResponse = sealed
		}

		if perr := c.store.PutCached(ctx, key, *resp); perr != nil {
			return nil, fmt.Errorf("provider: store cache entry: %w", perr)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return &GetOrFetchResult{Response: v.(*domain.CachedResponse), CacheHit: false}, nil
}

// visible applies the spec §4.4 / §3 invariant: PAID_EXTERNAL is shared,
// CUSTOMER_PROVIDED is filtered to the requesting tenant.
func (c *Cache) visible(ctx context.Context, resp *domain.CachedResponse, tenantID *uuid.UUID) bool {
	if resp.DataOrigin == domain.DataOriginPaidExternal {
		return true
	}
	rc, err := reqctx.From(ctx)
	if err != nil {
		return false
	}
	if resp.TenantID == nil {
		return false
	}
	return *resp.TenantID == rc.TenantID
}
