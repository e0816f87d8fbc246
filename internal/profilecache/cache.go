// Package profilecache is the process-wide profile cache of the console
// client. Reads are de-duplicated per key and mutations go to the source
// before invalidating.
package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"saaskit/internal/platform/cache"
	"saaskit/internal/profiles"
)

// Source is the primary store behind the cache.
type Source interface {
	GetProfile(ctx context.Context, id uuid.UUID) (profiles.Profile, error)
	ListProfiles(ctx context.Context) ([]profiles.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}

// User identifies whose profile to fetch.
type User struct {
	ID    uuid.UUID
	Email string
}

// Kind tells a stored row from a stand-in.
type Kind int

const (
	Persisted Kind = iota
	Placeholder
)

// Result is the outcome of a fetch.
type Result struct {
	Kind    Kind
	Profile profiles.Profile
}

// IsPlaceholder reports whether the row was missing and a stand-in was returned.
func (r *Result) IsPlaceholder() bool {
	return r != nil && r.Kind == Placeholder
}

// Cache fronts a Source.
type Cache struct {
	source Source
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
	fence  cache.Fence
}

// New builds a Cache. A nil store gets an in-memory one.
func New(source Source, store cache.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if store == nil {
		store = cache.NewMemory(ttl)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{source: source, store: store, ttl: ttl, logger: logger}
}

// Fetch resolves the profile of user. A nil user resolves to nil without any
// I/O. A missing row yields a placeholder, which is not cached so the next
// fetch looks again. Other errors propagate.
func (c *Cache) Fetch(ctx context.Context, user *User) (*Result, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, nil
	}

	key := profiles.Key(user.ID)
	if p, ok := c.read(ctx, key); ok {
		return &Result{Kind: Persisted, Profile: p}, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if p, ok := c.read(ctx, key); ok {
			return &Result{Kind: Persisted, Profile: p}, nil
		}
		stamp := c.fence.Stamp(key)
		p, err := c.source.GetProfile(ctx, user.ID)
		if errors.Is(err, profiles.ErrNotFound) {
			c.logger.Debug("profile row missing, using placeholder", zap.String("user_id", user.ID.String()))
			return &Result{Kind: Placeholder, Profile: profiles.NewPlaceholder(user.ID, user.Email)}, nil
		}
		if err != nil {
			return nil, err
		}
		c.fence.Commit(key, stamp, func() { c.write(ctx, key, p) })
		return &Result{Kind: Persisted, Profile: p}, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*Result)
	return &res, nil
}

// List returns the full collection, cached under the listing key.
func (c *Cache) List(ctx context.Context) ([]profiles.Profile, error) {
	if raw, err := c.store.Get(ctx, profiles.ListKey); err == nil {
		var list []profiles.Profile
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}

	v, err, _ := c.group.Do(profiles.ListKey, func() (interface{}, error) {
		stamp := c.fence.Stamp(profiles.ListKey)
		list, err := c.source.ListProfiles(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(list); err == nil {
			c.fence.Commit(profiles.ListKey, stamp, func() {
				if err := c.store.Set(ctx, profiles.ListKey, raw, c.ttl); err != nil {
					c.logger.Warn("cache listing failed", zap.Error(err))
				}
			})
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list := v.([]profiles.Profile)
	out := make([]profiles.Profile, len(list))
	copy(out, list)
	return out, nil
}

// Update writes through the source; on success both the entry and the
// listing are invalidated. On failure the cache is untouched.
func (c *Cache) Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error) {
	updated, err := c.source.UpdateProfile(ctx, id, patch)
	if err != nil {
		return profiles.Profile{}, err
	}
	c.Invalidate(ctx, id)
	return updated, nil
}

// Delete removes the row through the source, then invalidates.
func (c *Cache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.source.DeleteProfile(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

// Invalidate drops the entry for id and the collection listing. Loads already
// in flight for either key will not write back, and later callers start a
// fresh load instead of joining them.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	key := profiles.Key(id)
	c.fence.Bump(key, profiles.ListKey)
	c.group.Forget(key)
	c.group.Forget(profiles.ListKey)
	if err := c.store.Delete(ctx, key, profiles.ListKey); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("id", id.String()), zap.Error(err))
	}
}

// InvalidateList drops only the collection listing.
func (c *Cache) InvalidateList(ctx context.Context) {
	c.fence.Bump(profiles.ListKey)
	c.group.Forget(profiles.ListKey)
	if err := c.store.Delete(ctx, profiles.ListKey); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Clear drops every cached entry.
func (c *Cache) Clear(ctx context.Context) {
	c.fence.BumpAll()
	if err := c.store.Flush(ctx); err != nil {
		c.logger.Warn("cache clear failed", zap.Error(err))
	}
}

func (c *Cache) read(ctx context.Context, key string) (profiles.Profile, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return profiles.Profile{}, false
	}
	var p profiles.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return profiles.Profile{}, false
	}
	return p, true
}

func (c *Cache) write(ctx context.Context, key string, p profiles.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
