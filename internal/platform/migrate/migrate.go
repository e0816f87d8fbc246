package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"saaskit/migrations"
)

// profilesVersion is the migration that creates public.profiles.
const profilesVersion int64 = 1

// Apply brings the profile schema up to date. A profiles table created by
// hand in the hosted SQL editor is adopted as the baseline instead of
// being recreated.
func Apply(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(migrations.Files)
	goose.SetLogger(gooseZapLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: set goose dialect: %w", err)
	}

	if err := adoptExistingProfiles(ctx, db.DB, logger); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("migrate: goose up: %w", err)
	}

	current, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("migrate: read version: %w", err)
	}
	bundled, err := bundledVersions(migrations.Files)
	if err != nil {
		return fmt.Errorf("migrate: list bundled migrations: %w", err)
	}
	logger.Info("profile schema ready", zap.Int64("version", current), zap.Int("bundled", len(bundled)))

	hosted, err := exists(ctx, db.DB, `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = 'auth')`)
	if err != nil {
		return fmt.Errorf("migrate: check auth schema: %w", err)
	}
	if !hosted {
		logger.Warn("auth schema missing; profile rows are not provisioned on signup")
	}
	return nil
}

func adoptExistingProfiles(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	found, err := exists(ctx, db, `SELECT to_regclass('public.profiles') IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("migrate: check profiles table: %w", err)
	}
	if !found {
		return nil
	}

	if _, err := goose.EnsureDBVersionContext(ctx, db); err != nil {
		return fmt.Errorf("migrate: ensure goose table: %w", err)
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: check goose version: %w", err)
	}
	if current != 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (version_id, is_applied) VALUES ($1, TRUE)`, goose.TableName())
	if _, err := db.ExecContext(ctx, query, profilesVersion); err != nil {
		return fmt.Errorf("migrate: adopt profiles table: %w", err)
	}
	logger.Info("existing profiles table adopted", zap.Int64("version", profilesVersion))
	return nil
}

func exists(ctx context.Context, db *sql.DB, query string) (bool, error) {
	var found bool
	if err := db.QueryRowContext(ctx, query).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// bundledVersions returns the numeric prefixes of the embedded migrations in
// ascending order.
func bundledVersions(fsys fs.FS) ([]int64, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		v, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
