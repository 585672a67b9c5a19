package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/types"
)

// Settings is the persisted configuration document:
// the ordered group definitions plus dock/display preferences.
type Settings struct {
	WebsiteGroups []types.GroupDefinition `json:"websiteGroups"`
	DockSettings  types.DockSettings      `json:"dockSettings"`
}

// DefaultSettings returns the starter configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		WebsiteGroups: []types.GroupDefinition{
			{ID: "dev", Name: "Development", Icon: "💻", Patterns: []string{"github.com", "gitlab.com", "stackoverflow.com"}, Enabled: true, Order: 0},
			{ID: "docs", Name: "Docs", Icon: "📚", Patterns: []string{"go.dev", "developer.mozilla.org", "wikipedia.org"}, Enabled: true, Order: 1},
			{ID: "mail", Name: "Mail", Icon: "✉️", Patterns: []string{"mail.", "proton.me"}, Enabled: true, Order: 2},
			{ID: "video", Name: "Video", Icon: "🎬", Patterns: []string{"youtube.com", "vimeo.com"}, Enabled: true, Order: 3},
			{ID: "social", Name: "Social", Icon: "💬", Patterns: []string{"reddit.com", "mastodon", "bsky.app"}, Enabled: true, Order: 4},
			{ID: "others", Name: "Others", Icon: "🌐", Patterns: []string{"*"}, Enabled: true, Order: 5},
		},
		DockSettings: types.DockSettings{Enabled: false, Side: "right", Width: 400},
	}
}

// DefaultPath returns ~/.config/verlauf/settings.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "verlauf", "settings.json"), nil
}

// normalize clamps dock settings into their valid ranges and renumbers
// group orders to 0..n-1 in stored order. Disabled groups are kept.
func normalize(s *Settings) {
	if s.DockSettings.Side != "left" && s.DockSettings.Side != "right" {
		s.DockSettings.Side = "right"
	}
	if s.DockSettings.Width < types.DockMinWidth {
		s.DockSettings.Width = types.DockMinWidth
	}
	if s.DockSettings.Width > types.DockMaxWidth {
		s.DockSettings.Width = types.DockMaxWidth
	}
	for i := range s.WebsiteGroups {
		s.WebsiteGroups[i].Order = i
	}
}

// Store owns the settings file: load, save, and change notification.
// The loaded Settings value is passed to components explicitly; Store
// itself is never consulted ambiently.
type Store struct {
	path string

	mu       sync.Mutex
	current  Settings
	watcher  *fsnotify.Watcher
	subs     []chan Settings
	skipNext bool // set around our own Save to ignore the echo event
}

// Load reads the settings file at path, creating it with defaults if it
// does not exist. Malformed content is an error — the caller decides
// whether to fall back to defaults.
func Load(path string) (*Store, error) {
	st := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		st.current = DefaultSettings()
		if err := st.Save(st.current); err != nil {
			return nil, fmt.Errorf("write default settings: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	normalize(&s)
	st.current = s
	return st, nil
}

// Settings returns the current configuration value.
func (st *Store) Settings() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Save normalizes and writes the settings atomically (temp file +
// rename) and makes them current.
func (st *Store) Save(s Settings) error {
	normalize(&s)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}

	st.mu.Lock()
	st.current = s
	st.skipNext = st.watcher != nil
	st.mu.Unlock()
	return nil
}

// Subscribe returns a channel that receives the new Settings whenever
// the file changes externally. The channel is buffered; a slow consumer
// misses intermediate values, never blocks the watcher.
func (st *Store) Subscribe() <-chan Settings {
	ch := make(chan Settings, 1)
	st.mu.Lock()
	st.subs = append(st.subs, ch)
	st.mu.Unlock()
	return ch
}

// Watch starts the fsnotify watcher on the settings file. External edits
// reload and fan out to subscribers; our own saves are skipped. Call
// Close to stop.
func (st *Store) Watch() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace the file, which would drop a
	// watch placed on the file itself.
	if err := w.Add(filepath.Dir(st.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(st.path), err)
	}
	st.watcher = w

	go st.watchLoop(w)
	return nil
}

func (st *Store) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != st.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			st.handleChange()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			applog.Error("config.watch", err)
		}
	}
}

func (st *Store) handleChange() {
	st.mu.Lock()
	if st.skipNext {
		st.skipNext = false
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if err != nil {
		applog.Error("config.reload", err)
		return
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		// Keep the last good settings on a bad external edit.
		applog.Error("config.reload", err)
		return
	}
	normalize(&s)

	st.mu.Lock()
	st.current = s
	subs := make([]chan Settings, len(st.subs))
	copy(subs, st.subs)
	st.mu.Unlock()

	applog.Info("config.reload", "groups", len(s.WebsiteGroups))
	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close stops the watcher if running.
func (st *Store) Close() {
	st.mu.Lock()
	w := st.watcher
	st.watcher = nil
	st.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
