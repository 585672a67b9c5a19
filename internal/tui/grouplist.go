package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/verlauf/internal/types"
)

// GroupList is the left panel: one row per non-empty group.
type GroupList struct {
	Groups  []types.Group
	Cursor  int
	Offset  int
	Width   int
	Height  int
	Focused bool
}

func NewGroupList(groups []types.Group) GroupList {
	return GroupList{Groups: groups}
}

// SetGroups replaces the group set, keeping the cursor on the same group
// ID where possible.
func (m *GroupList) SetGroups(groups []types.Group) {
	var prevID string
	if g := m.Selected(); g != nil {
		prevID = g.ID
	}
	m.Groups = groups
	m.Cursor = 0
	m.Offset = 0
	for i, g := range groups {
		if g.ID == prevID {
			m.Cursor = i
			break
		}
	}
	m.clampScroll()
}

// Selected returns the group under the cursor, or nil.
func (m *GroupList) Selected() *types.Group {
	if m.Cursor >= 0 && m.Cursor < len(m.Groups) {
		return &m.Groups[m.Cursor]
	}
	return nil
}

func (m *GroupList) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	m.clampScroll()
}

func (m *GroupList) MoveDown() {
	if m.Cursor < len(m.Groups)-1 {
		m.Cursor++
	}
	m.clampScroll()
}

func (m *GroupList) clampScroll() {
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

// View renders the group list.
func (m GroupList) View() string {
	if len(m.Groups) == 0 {
		return "No history entries."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	dimCursorStyle := lipgloss.NewStyle().Bold(true)
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	end := m.Offset + visibleRows
	if end > len(m.Groups) {
		end = len(m.Groups)
	}

	for i := m.Offset; i < end; i++ {
		g := m.Groups[i]
		label := fmt.Sprintf("%s %s", g.Icon, g.Name)
		count := countStyle.Render(fmt.Sprintf(" %d", len(g.Items)))

		maxLabel := m.Width - lipgloss.Width(count) - 2
		if maxLabel < 6 {
			maxLabel = 6
		}
		if lipgloss.Width(label) > maxLabel {
			label = truncate(label, maxLabel)
		}

		line := label + count
		if i == m.Cursor {
			for lipgloss.Width(line) < m.Width {
				line += " "
			}
			if m.Focused {
				line = cursorStyle.Render(line)
			} else {
				line = dimCursorStyle.Render(line)
			}
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
