// Package storage is the dashboard's durable client-side storage: a
// key/value map per browser session, persisted to a single file that is
// age-encrypted when a passphrase is configured.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
)

// Keys written by the dashboard.
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
	KeyTheme = "theme"
)

const (
	ageHeader  = "age-encryption.org"
	workFactor = 15
)

// Storage is the per-session view, shaped after the browser's localStorage.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(keys ...string) error
}

// FileStore holds every session's items. An empty path keeps everything
// in memory.
type FileStore struct {
	path      string
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient

	mu    sync.RWMutex
	items map[string]map[string]string
}

// Open loads the store at path, creating it lazily on first write.
func Open(path, passphrase string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		items: make(map[string]map[string]string),
	}

	if passphrase != "" {
		identity, err := age.NewScryptIdentity(passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity: %w", err)
		}
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to create recipient: %w", err)
		}
		// Every write re-encrypts, so keep scrypt affordable.
		recipient.SetWorkFactor(workFactor)
		s.identity = identity
		s.recipient = recipient
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage: %w", err)
	}

	if bytes.HasPrefix(data, []byte(ageHeader)) {
		if s.identity == nil {
			return nil, fmt.Errorf("storage %s is encrypted but no passphrase is configured", path)
		}
		data, err = decryptData(data, s.identity)
		if err != nil {
			return nil, fmt.Errorf("incorrect storage passphrase")
		}
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			return nil, fmt.Errorf("decode storage: %w", err)
		}
	}

	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory() *FileStore {
	s, _ := Open("", "")
	return s
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) IsEncrypted() bool { return s.recipient != nil }

// Scope returns the Storage for one session.
func (s *FileStore) Scope(sessionID string) Storage {
	return &scope{store: s, id: sessionID}
}

// Sessions reports how many sessions have anything stored.
func (s *FileStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *FileStore) get(id, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id][key]
	return v, ok
}

func (s *FileStore) set(id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[id] == nil {
		s.items[id] = make(map[string]string)
	}
	s.items[id][key] = value
	return s.flushLocked()
}

func (s *FileStore) remove(id string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items[id], key)
	}
	if len(s.items[id]) == 0 {
		delete(s.items, id)
	}
	return s.flushLocked()
}

// Flush writes the current contents to disk.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}

	if s.recipient != nil {
		data, err = encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("encrypt storage: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	// Write to a sibling and rename so a crash never leaves half a file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return os.Rename(tmp, s.path)
}

type scope struct {
	store *FileStore
	id    string
}

func (sc *scope) GetItem(key string) (string, bool) {
	return sc.store.get(sc.id, key)
}

func (sc *scope) SetItem(key, value string) error {
	return sc.store.set(sc.id, key, value)
}

func (sc *scope) RemoveItem(keys ...string) error {
	return sc.store.remove(sc.id, keys...)
}
