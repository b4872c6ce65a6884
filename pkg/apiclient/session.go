package apiclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"studio-api/internal/domain"
)

// SessionStore owns the persisted session: access token, refresh token and
// cached user. The three are always written and cleared together; a session
// never exists partially.
type SessionStore interface {
	// Load returns the stored session, or nil when none exists
	Load() (*domain.Session, error)

	// Save stores the session, replacing any previous one
	Save(session *domain.Session) error

	// Clear removes the stored session
	Clear() error
}

// MemoryStore is an in-process session store
type MemoryStore struct {
	mu      sync.RWMutex
	session *domain.Session
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored session, or nil when none exists
func (s *MemoryStore) Load() (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

// Save stores the session, replacing any previous one
func (s *MemoryStore) Save(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.session = &copied
	return nil
}

// Clear removes the stored session
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

// FileStore persists the session as a single JSON document, so token,
// refresh token and user move atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a session store backed by the given file path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored session, or nil when none exists
func (s *FileStore) Load() (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &session, nil
}

// Save stores the session, replacing any previous one. The write goes
// through a temp file and rename so a crash never leaves a partial session.
func (s *FileStore) Save(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create session temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close session temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear removes the stored session
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
