package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"saaskit/internal/supabase"
)

// Persister keeps the session across process restarts.
type Persister interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

type storedSession struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	Expiry       time.Time     `json:"expiry"`
	User         supabase.User `json:"user"`
}

// FilePersister stores the session as JSON in a file readable only by its owner.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Load() (*Session, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read %s: %w", p.path, err)
	}

	var stored storedSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", p.path, err)
	}
	if stored.AccessToken == "" {
		return nil, nil
	}
	return &Session{
		Token: &oauth2.Token{
			AccessToken:  stored.AccessToken,
			RefreshToken: stored.RefreshToken,
			TokenType:    stored.TokenType,
			Expiry:       stored.Expiry,
		},
		User: stored.User,
	}, nil
}

func (p *FilePersister) Save(s *Session) error {
	if s == nil || s.Token == nil {
		return p.Clear()
	}
	raw, err := json.MarshalIndent(storedSession{
		AccessToken:  s.Token.AccessToken,
		RefreshToken: s.Token.RefreshToken,
		TokenType:    s.Token.TokenType,
		Expiry:       s.Token.Expiry,
		User:         s.User,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("session: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", p.path, err)
	}
	return nil
}

func (p *FilePersister) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", p.path, err)
	}
	return nil
}

// MemoryPersister keeps the session in process memory only.
type MemoryPersister struct {
	mu      sync.Mutex
	session *Session
}

func (p *MemoryPersister) Load() (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

func (p *MemoryPersister) Save(s *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
	return nil
}

func (p *MemoryPersister) Clear() error {
	return p.Save(nil)
}
