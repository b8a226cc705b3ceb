// Package settings persists viewer preferences. Nothing is written unless
// Save is called.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/hack-pad/hackpadfs"

	"github.com/kittclouds/lorecards/pkg/episode"
)

// Themes and view modes understood by the viewer.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	ViewGrid     = "grid"
	ViewList     = "list"
	ViewTimeline = "timeline"
)

// Settings is the persisted viewer state.
type Settings struct {
	Theme             string `json:"theme"`
	ViewMode          string `json:"viewMode"`
	SelectedCharacter string `json:"selectedCharacter,omitempty"`
	SelectedEpisode   string `json:"selectedEpisode"`
}

// Defaults returns the settings used before anything has been saved.
func Defaults() Settings {
	return Settings{
		Theme:           ThemeDark,
		ViewMode:        ViewGrid,
		SelectedEpisode: "s01e01",
	}
}

// Validate rejects unknown themes, view modes and malformed episode ids.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	switch s.ViewMode {
	case ViewGrid, ViewList, ViewTimeline:
	default:
		return fmt.Errorf("unknown view mode %q", s.ViewMode)
	}
	if s.SelectedEpisode != "" && !episode.Valid(s.SelectedEpisode) {
		return fmt.Errorf("selected episode: %w", episode.ErrInvalidID)
	}
	return nil
}

// Store reads and writes Settings as JSON at a fixed path.
type Store struct {
	mu   sync.Mutex
	fs   hackpadfs.FS
	path string
}

// NewStore creates a settings store. No I/O happens until Load or Save.
func NewStore(fs hackpadfs.FS, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Load returns the saved settings, or Defaults when nothing has been saved.
// Fields holding unknown values fall back to their defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := hackpadfs.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	loaded := Defaults()
	if err := json.Unmarshal(content, &loaded); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return sanitize(loaded), nil
}

// Save writes settings, creating the parent directory if needed.
func (s *Store) Save(v Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := path.Dir(s.path); dir != "." && dir != "/" {
		if err := hackpadfs.MkdirAll(s.fs, dir, 0755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := hackpadfs.WriteFullFile(s.fs, s.path, content, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func sanitize(v Settings) Settings {
	d := Defaults()
	switch v.Theme {
	case ThemeDark, ThemeLight:
	default:
		v.Theme = d.Theme
	}
	switch v.ViewMode {
	case ViewGrid, ViewList, ViewTimeline:
	default:
		v.ViewMode = d.ViewMode
	}
	if v.SelectedEpisode != "" && !episode.Valid(v.SelectedEpisode) {
		v.SelectedEpisode = d.SelectedEpisode
	}
	return v
}
