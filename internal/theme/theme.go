// Package theme holds the light/dark preference of a browser session.
package theme

import (
	"sync"

	"sales-dashboard/internal/storage"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

func Valid(m string) bool {
	return m == string(Light) || m == string(Dark)
}

type State struct {
	store storage.Storage

	mu   sync.RWMutex
	mode Mode
}

// New reads the stored preference, falling back to def.
func New(store storage.Storage, def Mode) *State {
	mode := def
	if stored, ok := store.GetItem(storage.KeyTheme); ok && Valid(stored) {
		mode = Mode(stored)
	}
	if !Valid(string(mode)) {
		mode = Light
	}
	return &State{store: store, mode: mode}
}

func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *State) IsDark() bool { return s.Mode() == Dark }

// Toggle flips the mode and persists it.
func (s *State) Toggle() (Mode, error) {
	s.mu.Lock()
	if s.mode == Dark {
		s.mode = Light
	} else {
		s.mode = Dark
	}
	mode := s.mode
	s.mu.Unlock()

	return mode, s.store.SetItem(storage.KeyTheme, string(mode))
}
