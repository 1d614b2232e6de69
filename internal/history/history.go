package history

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Action identifies which operation produced an entry.
type Action string

const (
	ActionEnhance Action = "enhance"
	ActionEmotion Action = "emotion"
	ActionHealth  Action = "health"
	ActionLogin   Action = "login"
)

// Entry は完了した操作の記録です。
type Entry struct {
	ID        string    `yaml:"id"`
	Action    Action    `yaml:"action"`
	Style     string    `yaml:"style,omitempty"`
	Input     string    `yaml:"input,omitempty"`
	Output    string    `yaml:"output"`
	Failed    bool      `yaml:"failed,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// historyFile is the on-disk document.
type historyFile struct {
	Entries []Entry `yaml:"entries"`
}

// Store keeps entries oldest-first in memory and mirrors them to a YAML file.
// An empty path keeps everything in memory only.
type Store struct {
	mu         sync.RWMutex // protects entries
	entries    []Entry
	path       string
	maxEntries int
	now        func() time.Time
}

// Open loads the history at path. A missing file is an empty history.
// maxEntries <= 0 keeps every entry.
func Open(path string, maxEntries int) (*Store, error) {
	s := &Store{path: path, maxEntries: maxEntries, now: time.Now}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}

	var file historyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	s.entries = file.Entries
	s.trim()
	slog.Debug("[History] Loaded", slog.String("path", path), slog.Int("entries", len(s.entries)))
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Append records e, filling ID and CreatedAt when unset, and saves the file.
// The entry is kept in memory even if saving fails.
func (s *Store) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.trim()
	return e, s.saveLocked()
}

// Entries returns a copy of the history, newest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Get looks an entry up by ID.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every entry and saves the empty history.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.saveLocked()
}

func (s *Store) trim() {
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		drop := len(s.entries) - s.maxEntries
		s.entries = append([]Entry(nil), s.entries[drop:]...)
	}
}

// saveLocked writes the file through a temp file and rename. s.mu must be held.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(&historyFile{Entries: s.entries})
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
