package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"saaskit/internal/platform/cache"
	"saaskit/internal/platform/metrics"
)

// ListKey is the cache key of the full profile listing.
const ListKey = "profiles"

// Key returns the cache key of a single profile.
func Key(id uuid.UUID) string {
	return "profile:" + id.String()
}

// Service orchestrates validation, caching and persistence for profiles.
type Service struct {
	repo    Repository
	cache   cache.Store
	ttl     time.Duration
	metrics metrics.Recorder
	logger  *zap.Logger
	group   singleflight.Group
	fence   cache.Fence
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching of profiles.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.ttl = ttl
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithLogger sets the logger used for cache failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		metrics: metrics.Nop{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a profile by ID, consulting the cache first. Concurrent misses
// for the same ID share one repository read.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	key := Key(id)
	var cached Profile
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		var again Profile
		if s.readCache(ctx, key, &again) {
			return again, nil
		}
		stamp := s.fence.Stamp(key)
		profile, err := s.repo.Get(ctx, id)
		if err != nil {
			return Profile{}, err
		}
		s.writeCache(ctx, key, stamp, profile)
		return profile, nil
	})
	if err != nil {
		return Profile{}, err
	}
	return result.(Profile), nil
}

// List returns every profile, newest first.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	var cached []Profile
	if s.readCache(ctx, ListKey, &cached) {
		return cached, nil
	}

	result, err, _ := s.group.Do(ListKey, func() (interface{}, error) {
		stamp := s.fence.Stamp(ListKey)
		list, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		s.writeCache(ctx, ListKey, stamp, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list := result.([]Profile)
	out := make([]Profile, len(list))
	copy(out, list)
	return out, nil
}

// Create provisions a profile row.
func (s *Service) Create(ctx context.Context, input CreateInput) (Profile, error) {
	if input.ID == uuid.Nil {
		return Profile{}, validationErr("id is required")
	}
	role := input.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Profile{}, validationErr("role must be one of: user, admin")
	}

	profile := Profile{
		ID:               input.ID,
		Email:            strings.ToLower(strings.TrimSpace(input.Email)),
		FullName:         nullableString(sanitizeName(input.FullName)),
		Role:             role,
		IsSubscriber:     input.IsSubscriber,
		HasAcceptedTerms: input.HasAcceptedTerms,
		CreatedAt:        input.CreatedAt,
	}
	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		return Profile{}, err
	}
	s.invalidate(ctx, created.ID)
	return created, nil
}

// Update validates and applies a partial update. Caches are invalidated only
// after the write succeeds.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (Profile, error) {
	normalized, err := patch.Normalize()
	if err != nil {
		return Profile{}, err
	}
	if normalized.Empty() {
		return s.Get(ctx, id)
	}

	updated, err := s.repo.Update(ctx, id, normalized)
	if err != nil {
		return Profile{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Touch records activity for the profile.
func (s *Service) Touch(ctx context.Context, id uuid.UUID, at time.Time) (Profile, error) {
	at = at.UTC()
	return s.Update(ctx, id, Patch{LastActiveAt: &at})
}

// Delete removes a profile.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// invalidate fences loads in flight for id and the listing before dropping
// their entries, so a read that started before the write cannot repopulate
// the cache with the old row.
func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := Key(id)
	s.fence.Bump(key, ListKey)
	s.group.Forget(key)
	s.group.Forget(ListKey)
	if err := s.cache.Delete(ctx, key, ListKey); err != nil {
		s.logger.Warn("profile cache invalidation failed", zap.String("id", id.String()), zap.Error(err))
	}
}

func (s *Service) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheMiss()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("profile cache entry corrupt", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheMiss()
		return false
	}
	s.metrics.RecordCacheHit()
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, stamp cache.Stamp, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("profile cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	committed := s.fence.Commit(key, stamp, func() {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
		}
	})
	if !committed {
		s.logger.Debug("profile cache write skipped after invalidation", zap.String("key", key))
	}
}

func validationErr(msg string) error {
	return &ValidationError{Message: msg}
}
