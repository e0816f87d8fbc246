package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository persists profiles to a Postgres database.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `
    id,
    COALESCE(email, '') AS email,
    full_name,
    avatar_url,
    role,
    is_subscriber,
    has_accepted_terms,
    last_active_at,
    created_at,
    updated_at`

// Create inserts a new row and returns the stored representation.
func (r *PostgresRepository) Create(ctx context.Context, profile Profile) (Profile, error) {
	if profile.Role == "" {
		profile.Role = RoleUser
	}
	insert := `INSERT INTO profiles (id, email, full_name, avatar_url, role, is_subscriber, has_accepted_terms, last_active_at, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, COALESCE($9::timestamptz, NOW()), COALESCE($9::timestamptz, NOW()))
RETURNING` + profileColumns

	var stored Profile
	err := r.db.GetContext(ctx, &stored, insert,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.AvatarURL,
		profile.Role,
		profile.IsSubscriber,
		profile.HasAcceptedTerms,
		profile.LastActiveAt,
		sql.NullTime{Time: profile.CreatedAt, Valid: !profile.CreatedAt.IsZero()},
	)
	if err != nil {
		return Profile{}, translateError("insert profile", err)
	}
	return stored, nil
}

// Get retrieves a row by primary key.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	var profile Profile
	if err := r.db.GetContext(ctx, &profile, `SELECT`+profileColumns+` FROM profiles WHERE id = $1`, id); err != nil {
		return Profile{}, translateError("get profile", err)
	}
	return profile, nil
}

// List returns all rows, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Profile, error) {
	out := make([]Profile, 0)
	if err := r.db.SelectContext(ctx, &out, `SELECT`+profileColumns+` FROM profiles ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Update writes the non-nil patch fields. updated_at is maintained by the table trigger.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Profile, error) {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.FullName != nil {
		add("full_name", nullableString(*patch.FullName))
	}
	if patch.AvatarURL != nil {
		add("avatar_url", nullableString(*patch.AvatarURL))
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.IsSubscriber != nil {
		add("is_subscriber", *patch.IsSubscriber)
	}
	if patch.HasAcceptedTerms != nil {
		add("has_accepted_terms", *patch.HasAcceptedTerms)
	}
	if patch.LastActiveAt != nil {
		add("last_active_at", patch.LastActiveAt.UTC())
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d RETURNING`+profileColumns, strings.Join(sets, ", "), len(args))

	var profile Profile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		return Profile{}, translateError("update profile", err)
	}
	return profile, nil
}

// Delete removes a row by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// translateError maps driver errors onto the package sentinels.
func translateError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "check_violation":
			return &ValidationError{Message: "role must be one of: user, admin"}
		case "unique_violation":
			return &ValidationError{Message: "profile already exists"}
		case "foreign_key_violation":
			return &ValidationError{Message: "profile must reference an existing user"}
		case "invalid_text_representation":
			return &ValidationError{Message: "invalid value"}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
