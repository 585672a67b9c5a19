package types

import (
	"fmt"
	"time"
)

// HistoryEntry is a single visited URL from a browser history snapshot.
// Entries are immutable once fetched; the organizer never mutates them.
type HistoryEntry struct {
	URL           string
	Title         string
	LastVisitTime time.Time
	VisitCount    int // 0 means unknown; treated as 1 when aggregating
}

// Visits returns the effective visit count for aggregation.
func (e HistoryEntry) Visits() int {
	if e.VisitCount < 1 {
		return 1
	}
	return e.VisitCount
}

// GroupDefinition is a user-configured bucket for history entries.
// Patterns are matched as case-insensitive substrings of the hostname,
// in declaration order across the enabled, order-sorted definition list.
type GroupDefinition struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Patterns []string `json:"patterns"`
	Enabled  bool     `json:"enabled"`
	Order    int      `json:"order"`
}

// IsCatchAll reports whether this definition matches every domain.
func (g GroupDefinition) IsCatchAll() bool {
	for _, p := range g.Patterns {
		if p == "*" {
			return true
		}
	}
	return false
}

// Group is one bucket of an organize result. Rebuilt fully each cycle.
type Group struct {
	ID          string
	Name        string
	Icon        string
	Items       []HistoryEntry
	TotalVisits int
	LastVisit   time.Time
}

// Tier classifies how often a URL is visited.
type Tier int

const (
	TierRare Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "rare"
	}
}

// SortMode controls entry ordering within a group.
type SortMode int

const (
	SortByFrequency SortMode = iota
	SortByTime
)

func (m SortMode) String() string {
	if m == SortByTime {
		return "time"
	}
	return "frequency"
}

// Profile is a Firefox profile discovered from profiles.ini.
type Profile struct {
	Name       string
	Path       string // absolute path to the profile directory
	IsDefault  bool
	IsRelative bool
}

// DockSettings configures the detachable side panel.
type DockSettings struct {
	Enabled bool   `json:"enabled"`
	Side    string `json:"side"` // "left" or "right"
	Width   int    `json:"width"`
}

// Dock width limits; values outside are clamped on load.
const (
	DockMinWidth = 350
	DockMaxWidth = 1800
)

// RelativeAge formats how long ago t was, compactly: "now", "5m", "3h",
// "2d". Renderers that want prose append their own suffix.
func RelativeAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Stats holds aggregate numbers for one organize result.
type Stats struct {
	TotalEntries int
	TotalGroups  int
	TotalVisits  int
	TopVisited   int
	Favorites    int
}
