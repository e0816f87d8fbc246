package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "HTTP_PORT", "DATA_STORE", "DATABASE_URL", "DATABASE_URL_FILE",
		"SUPABASE_URL", "SUPABASE_JWT_SECRET", "SUPABASE_JWT_SECRET_FILE",
		"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY_FILE", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWarnsWhenDatabaseURLMissing(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("DATA_STORE", "postgres")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if !cfg.UseInMemoryStore() {
		t.Fatalf("expected memory store fallback, got %q", cfg.DataStore)
	}
	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "DATABASE_URL") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DATABASE_URL warning, got %v", cfg.Warnings)
	}
}

func TestLoadSelectsPostgresWhenDatabaseURLPresent(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/saaskit")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.DataStore != "postgres" {
		t.Fatalf("expected postgres data store, got %q", cfg.DataStore)
	}
}

func TestLoadFallsBackToHTTPPort(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.HTTPAddress() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.HTTPAddress())
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadRequiresVerificationOutsideDevelopment(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when no token verification is configured")
	}
	if !strings.Contains(err.Error(), "SUPABASE_URL or SUPABASE_JWT_SECRET") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadReadsSecretsFromFile(t *testing.T) {
	clearServerEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "jwt")
	if err := os.WriteFile(path, []byte("  super-secret \n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("APP_ENV", "production")
	t.Setenv("SUPABASE_JWT_SECRET_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.SupabaseJWTSecret != "super-secret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.SupabaseJWTSecret)
	}
}

func TestLoadRejectsEmptySecretFile(t *testing.T) {
	clearServerEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("DATABASE_URL_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty secret file")
	}
}

func TestLoadClampsIdleConnections(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("DB_MAX_IDLE_CONNS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.DBMaxOpenConns != 4 || cfg.DBMaxIdleConns != 4 {
		t.Fatalf("expected pool 4/4, got %d/%d", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	}
}

func TestLoadRejectsEmptyPool(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero open connections")
	}
}

func TestLoadParsesAllowedOrigins(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadClientRequiresProject(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error without project settings")
	}
}

func TestLoadClientDefaultsSessionFile(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SAASKIT_SESSION_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() returned error: %v", err)
	}
	if cfg.SupabaseURL != "https://demo.supabase.co" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.SupabaseURL)
	}
	if filepath.Base(cfg.SessionFile) != "session.json" {
		t.Fatalf("unexpected session file %q", cfg.SessionFile)
	}
}
