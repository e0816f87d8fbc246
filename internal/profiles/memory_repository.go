package profiles

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository stores profiles in an in-process map, ideal for local development or tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]Profile
	now  func() time.Time
}

// NewInMemoryRepository constructs a repository seeded with optional initial profiles.
func NewInMemoryRepository(initial []Profile) *InMemoryRepository {
	data := make(map[uuid.UUID]Profile, len(initial))
	for _, profile := range initial {
		data[profile.ID] = profile
	}
	return &InMemoryRepository{data: data, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new profile.
func (r *InMemoryRepository) Create(_ context.Context, profile Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[profile.ID]; exists {
		return Profile{}, &ValidationError{Message: "profile already exists"}
	}
	now := r.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}
	if profile.Role == "" {
		profile.Role = RoleUser
	}
	r.data[profile.ID] = profile
	return profile, nil
}

// Get returns a profile by ID.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.data[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

// List returns all stored profiles, newest first.
func (r *InMemoryRepository) List(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.data))
	for _, profile := range r.data {
		out = append(out, profile)
	}
	slices.SortFunc(out, compareByCreatedDesc)
	return out, nil
}

// Update applies a patch to an existing profile.
func (r *InMemoryRepository) Update(_ context.Context, id uuid.UUID, patch Patch) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.data[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	updated := patch.Apply(existing)
	updated.UpdatedAt = r.now()
	r.data[id] = updated
	return updated, nil
}

// Delete removes a profile by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func compareByCreatedDesc(a, b Profile) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return compareUUID(a.ID, b.ID)
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
