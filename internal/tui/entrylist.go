package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/types"
)

// EntryList is the right panel: the entries of the selected group.
type EntryList struct {
	Entries    []types.HistoryEntry
	Freq       *frequency.Snapshot
	Thresholds frequency.Thresholds
	Favorites  map[string]storage.Favorite
	Cursor     int
	Offset     int
	Width      int
	Height     int
	Focused    bool
}

// SetEntries replaces the entry set and resets the cursor.
func (m *EntryList) SetEntries(entries []types.HistoryEntry) {
	m.Entries = entries
	m.Cursor = 0
	m.Offset = 0
}

// Selected returns the entry under the cursor, or nil.
func (m *EntryList) Selected() *types.HistoryEntry {
	if m.Cursor >= 0 && m.Cursor < len(m.Entries) {
		return &m.Entries[m.Cursor]
	}
	return nil
}

func (m *EntryList) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	m.clampScroll()
}

func (m *EntryList) MoveDown() {
	if m.Cursor < len(m.Entries)-1 {
		m.Cursor++
	}
	m.clampScroll()
}

func (m *EntryList) clampScroll() {
	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 1
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+visibleRows {
		m.Offset = m.Cursor - visibleRows + 1
	}
}

var tierColors = map[types.Tier]lipgloss.Color{
	types.TierHigh:   lipgloss.Color("196"), // red
	types.TierMedium: lipgloss.Color("214"), // orange
	types.TierLow:    lipgloss.Color("33"),  // blue
}

// View renders the entry list.
func (m EntryList) View() string {
	if len(m.Entries) == 0 {
		return "No entries."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	starStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	end := m.Offset + visibleRows
	if end > len(m.Entries) {
		end = len(m.Entries)
	}

	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]

		var markers []string
		if m.Freq != nil && m.Freq.ShowBadge(e.URL, m.Thresholds) {
			tier := m.Thresholds.Tier(m.Freq.Count(e.URL))
			color, ok := tierColors[tier]
			if !ok {
				color = lipgloss.Color("240")
			}
			markers = append(markers, lipgloss.NewStyle().Foreground(color).Render("●"))
		}
		fav, starred := m.Favorites[e.URL]
		if starred {
			markers = append(markers, starStyle.Render("★"))
		}
		marker := "  "
		if len(markers) > 0 {
			marker = strings.Join(markers, "") + " "
		}

		// A custom tag overrides the page title for display.
		title := e.Title
		if starred && fav.Tag != "" {
			title = fav.Tag
		}
		if title == "" {
			title = e.URL
		}

		meta := types.RelativeAge(e.LastVisitTime)
		if m.Freq != nil {
			if count := m.Freq.Count(e.URL); count > 1 {
				meta = fmt.Sprintf("%d · %s", count, meta)
			}
		}
		metaRendered := metaStyle.Render(" " + meta)

		maxTitle := m.Width - lipgloss.Width(marker) - lipgloss.Width(metaRendered) - 1
		if maxTitle < 8 {
			maxTitle = 8
		}
		if lipgloss.Width(title) > maxTitle {
			title = truncate(title, maxTitle)
		}

		line := marker + title + metaRendered
		if i == m.Cursor && m.Focused {
			for lipgloss.Width(line) < m.Width {
				line += " "
			}
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
