/*
roles.go - Owner/manager role resolution with a bounded TTL cache

PURPOSE:
  Determines whether the acting user is OWNER or MANAGER of a request.
  The role is a tagged enumeration resolved once per operation and passed
  explicitly into the workflow; role logic never lives on the entities.

CACHING:
  Resolve caches results per (requestID, userID) with a bounded TTL as a
  read-through accelerator for hot read paths. Mutation paths must call
  ResolveFresh: management reassignment may have changed since the cache
  entry was written, and the cache is best-effort only.
*/
package absence

import (
	"context"
	"sync"
	"time"
)

type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
)

const (
	defaultRoleTTL = 5 * time.Minute
	maxCachedRoles = 1024
)

// RoleResolver resolves the acting user's role for a specific request.
type RoleResolver struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[roleKey]roleEntry
}

type roleKey struct {
	RequestID string
	UserID    string
}

type roleEntry struct {
	role    Role
	expires time.Time
}

func NewRoleResolver(store Store) *RoleResolver {
	return &RoleResolver{
		store: store,
		ttl:   defaultRoleTTL,
		cache: make(map[roleKey]roleEntry),
	}
}

// Resolve returns the acting user's role, serving from cache when a live
// entry exists. Read paths only.
func (r *RoleResolver) Resolve(ctx context.Context, requestID, userID string) (Role, error) {
	key := roleKey{RequestID: requestID, UserID: userID}

	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.role, nil
	}

	role, err := r.ResolveFresh(ctx, requestID, userID)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if len(r.cache) >= maxCachedRoles {
		r.evictLocked()
	}
	r.cache[key] = roleEntry{role: role, expires: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return role, nil
}

// ResolveFresh loads the request and the owner's profile and determines the
// role without consulting the cache. Mutation paths use this exclusively.
func (r *RoleResolver) ResolveFresh(ctx context.Context, requestID, userID string) (Role, error) {
	request, err := r.store.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}

	profile, err := r.store.GetProfile(ctx, request.EmployeeID)
	if err != nil {
		return "", err
	}

	// Manager check comes first: a manager editing their own report's
	// request acts as MANAGER even if ids collide in test fixtures.
	if profile.ManagerID != "" && profile.ManagerID == userID {
		return RoleManager, nil
	}
	if request.EmployeeID == userID {
		return RoleOwner, nil
	}

	return "", &AccessDeniedError{Reason: "you do not have permission to update this request"}
}

// evictLocked drops expired entries. When the cache is still full of
// live entries it evicts the one closest to expiry, so one hot insert
// never discards the whole working set. Caller holds r.mu.
func (r *RoleResolver) evictLocked() {
	now := time.Now()
	for k, v := range r.cache {
		if now.After(v.expires) {
			delete(r.cache, k)
		}
	}
	if len(r.cache) < maxCachedRoles {
		return
	}

	var victim roleKey
	var soonest time.Time
	for k, v := range r.cache {
		if soonest.IsZero() || v.expires.Before(soonest) {
			victim, soonest = k, v.expires
		}
	}
	delete(r.cache, victim)
}
