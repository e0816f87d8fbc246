package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a profile row does not exist.
var ErrNotFound = errors.New("profile not found")

// ErrValidation is returned when input validation fails.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the caller may not touch the requested profile or field.
var ErrForbidden = errors.New("forbidden")

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Role is the authorization role stored on a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Profile is the application-level record attached one-to-one to an
// identity-provider user.
type Profile struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	FullName         *string    `db:"full_name" json:"full_name"`
	AvatarURL        *string    `db:"avatar_url" json:"avatar_url"`
	Role             Role       `db:"role" json:"role"`
	IsSubscriber     bool       `db:"is_subscriber" json:"is_subscriber"`
	HasAcceptedTerms bool       `db:"has_accepted_terms" json:"has_accepted_terms"`
	LastActiveAt     *time.Time `db:"last_active_at" json:"last_active_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin is true only when the stored role is exactly admin.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// DisplayName returns the full name when present, otherwise the email.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// NewPlaceholder builds the stand-in profile used while the real row is
// missing: role user, not subscribed, terms not accepted.
func NewPlaceholder(id uuid.UUID, email string) Profile {
	return Profile{
		ID:    id,
		Email: email,
		Role:  RoleUser,
	}
}

// CreateInput describes a profile row provisioned outside the signup trigger.
type CreateInput struct {
	ID               uuid.UUID
	Email            string
	FullName         string
	Role             Role
	IsSubscriber     bool
	HasAcceptedTerms bool
	CreatedAt        time.Time
}

// Repository abstracts persistence so the service can switch between memory and Postgres.
type Repository interface {
	Create(ctx context.Context, profile Profile) (Profile, error)
	Get(ctx context.Context, id uuid.UUID) (Profile, error)
	// List returns every profile ordered by creation date, newest first.
	List(ctx context.Context) ([]Profile, error)
	// Update applies a normalized patch and refreshes updated_at.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
