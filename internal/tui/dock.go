package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/types"
)

// dockCols maps a configured dock width in pixels to terminal columns,
// clamped so the dock never swallows the main panes.
func dockCols(settings types.DockSettings, termWidth int) int {
	cols := settings.Width / 40
	if cols < 18 {
		cols = 18
	}
	if max := termWidth / 3; cols > max {
		cols = max
	}
	return cols
}

// renderDock builds the dock side panel: the top-visited URLs with their
// counts, stars first.
func renderDock(freq *frequency.Snapshot, favorites map[string]storage.Favorite, width, height int) string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	starStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Top visited") + "\n")

	if freq == nil {
		b.WriteString("—")
		return b.String()
	}

	urls := freq.TopURLs()
	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	if len(urls) > rows {
		urls = urls[:rows]
	}

	for i, url := range urls {
		prefix := "  "
		if _, ok := favorites[url]; ok {
			prefix = starStyle.Render("★") + " "
		}
		count := countStyle.Render(strconv.Itoa(freq.Count(url)))

		maxURL := width - 2 - lipgloss.Width(count) - 1
		if maxURL < 8 {
			maxURL = 8
		}
		display := url
		if len(display) > maxURL {
			display = truncate(display, maxURL)
		}
		b.WriteString(prefix + display + " " + count)
		if i < len(urls)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
