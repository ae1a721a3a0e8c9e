// Package store owns the mutable runtime settings: the watch list, the
// subscriber list, the notification template and the render mode. All other
// components read snapshots; mutations go through Update, which serializes
// administrative edits and persists before committing to memory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/nvoronov/chanrelay/internal/models"
)

// Mutation outcomes callers branch on. Neither is a failure of the store.
var (
	ErrAlreadyPresent = errors.New("already present")
	ErrNotFound       = errors.New("not found")
	ErrMissingSigil   = errors.New("recipient must start with @")
)

// Settings is the persisted runtime configuration.
type Settings struct {
	Subscribers []string          `json:"subscribers"`
	Channels    []string          `json:"channels"`
	Template    string            `json:"template"`
	Mode        models.RenderMode `json:"render_mode"`
}

func (s Settings) clone() Settings {
	out := s
	out.Subscribers = append([]string(nil), s.Subscribers...)
	out.Channels = append([]string(nil), s.Channels...)
	return out
}

// Normalize canonicalizes an identifier for membership checks.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// AddChannel appends a source to the watch list, keeping it unique.
func (s *Settings) AddChannel(id string) error {
	id = Normalize(id)
	if contains(s.Channels, id) {
		return ErrAlreadyPresent
	}
	s.Channels = append(s.Channels, id)
	return nil
}

// RemoveChannels drops every listed source that is present and returns the
// ones actually removed. Absent sources are skipped.
func (s *Settings) RemoveChannels(ids []string) (removed []string) {
	s.Channels, removed = removeAll(s.Channels, ids)
	return removed
}

// ClearChannels empties the watch list and returns what it held.
func (s *Settings) ClearChannels() (removed []string) {
	removed = s.Channels
	s.Channels = nil
	return removed
}

// AddSubscriber appends a recipient, enforcing the @ sigil and uniqueness.
func (s *Settings) AddSubscriber(id string) error {
	id = Normalize(id)
	if !strings.HasPrefix(id, "@") || len(id) == 1 {
		return ErrMissingSigil
	}
	if contains(s.Subscribers, id) {
		return ErrAlreadyPresent
	}
	s.Subscribers = append(s.Subscribers, id)
	return nil
}

// RemoveSubscribers drops every listed recipient that is present and returns
// the ones actually removed.
func (s *Settings) RemoveSubscribers(ids []string) (removed []string) {
	s.Subscribers, removed = removeAll(s.Subscribers, ids)
	return removed
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeAll(list, ids []string) (kept, removed []string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[Normalize(id)] = struct{}{}
	}
	for _, v := range list {
		if _, ok := drop[v]; ok {
			removed = append(removed, v)
		} else {
			kept = append(kept, v)
		}
	}
	return kept, removed
}

// Store is the durable settings registry.
type Store struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// Open loads the settings file, falling back to defaults when it does not
// exist yet.
func Open(path string) (*Store, error) {
	st := &Store{path: path, settings: Settings{Mode: models.ModeLink}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := json.Unmarshal(data, &st.settings); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	if _, err := models.ParseRenderMode(string(st.settings.Mode)); err != nil {
		st.settings.Mode = models.ModeLink
	}
	return st, nil
}

// Snapshot returns a copy of the current settings, safe to read concurrently
// with mutations.
func (st *Store) Snapshot() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.settings.clone()
}

// Update applies fn to a copy of the settings, persists the result and only
// then commits it to memory. A failed persist leaves the in-memory settings
// untouched, so memory and disk never diverge silently.
func (st *Store) Update(fn func(*Settings) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := st.persist(next); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	st.settings = next
	return nil
}

// persist writes via a temp file and rename so a crash mid-write cannot
// truncate the settings file.
func (st *Store) persist(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}
