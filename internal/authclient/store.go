// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package authclient

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/xdg"
)

// SessionStore persists the current session between processes.
type SessionStore interface {
	// Load returns the stored session, or nil when none is stored.
	Load() (*backend.Session, error)
	Save(s *backend.Session) error
	Clear() error
}

// FileStore keeps the session as JSON in a single 0600 file.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store writes.
func (f *FileStore) Path() string { return f.path }

// Load reads the session file. A missing file is not an error.
func (f *FileStore) Load() (*backend.Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_STORE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	var s backend.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, oops.Code("SESSION_STORE_CORRUPT").With("path", f.path).Wrap(err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// Save writes the session atomically via a temp file and rename.
func (f *FileStore) Save(s *backend.Session) error {
	if s == nil {
		return f.Clear()
	}
	if err := xdg.EnsureDir(filepath.Dir(f.path)); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return oops.Code("SESSION_STORE_ENCODE_FAILED").Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

// Clear removes the session file.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("SESSION_STORE_CLEAR_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu sync.Mutex
	s  *backend.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns the stored session.
func (m *MemoryStore) Load() (*backend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSession(m.s), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(s *backend.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = cloneSession(s)
	return nil
}

// Clear forgets the stored session.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
