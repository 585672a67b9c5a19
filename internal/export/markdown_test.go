package export

import (
	"strings"
	"testing"
	"time"

	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/types"
)

func testResult(t *testing.T, entries []types.HistoryEntry, defs []types.GroupDefinition) organize.Result {
	t.Helper()
	tracker := frequency.NewTracker(nil, frequency.DefaultThresholds(), frequency.DefaultLimits())
	return organize.New(tracker).Partition(entries, defs, types.SortByTime)
}

func TestMarkdown_GroupsAndEntries(t *testing.T) {
	now := time.Now()
	defs := []types.GroupDefinition{
		{ID: "dev", Name: "Development", Icon: "💻", Patterns: []string{"github", "go.dev"}, Enabled: true, Order: 0},
		{ID: "others", Name: "Others", Icon: "🌐", Patterns: []string{"*"}, Enabled: true, Order: 1},
	}
	entries := []types.HistoryEntry{
		{URL: "https://go.dev/doc", Title: "Go docs", LastVisitTime: now.Add(-3 * 24 * time.Hour), VisitCount: 4},
		{URL: "https://github.com/charmbracelet/bubbletea", Title: "Bubble Tea", LastVisitTime: now.Add(-24 * time.Hour), VisitCount: 1},
		{URL: "https://example.com", Title: "Example", LastVisitTime: now.Add(-5 * time.Hour), VisitCount: 1},
	}

	res := testResult(t, entries, defs)
	result := Markdown(&res, "default")

	if !strings.Contains(result, "# Browsing History — default") {
		t.Errorf("missing header, got:\n%s", result)
	}
	if !strings.Contains(result, "## 💻 Development (2 entries)") {
		t.Errorf("missing Development heading, got:\n%s", result)
	}
	if !strings.Contains(result, "## 🌐 Others (1 entry)") {
		t.Errorf("missing Others heading, got:\n%s", result)
	}
	if !strings.Contains(result, "[Go docs](https://go.dev/doc)") {
		t.Errorf("missing Go docs link, got:\n%s", result)
	}
	if !strings.Contains(result, "4 visits") {
		t.Errorf("missing visit count, got:\n%s", result)
	}
	if !strings.Contains(result, "[Example](https://example.com)") {
		t.Errorf("missing Example link, got:\n%s", result)
	}
}

func TestMarkdown_TitleFallbackToURL(t *testing.T) {
	entries := []types.HistoryEntry{
		{URL: "https://example.com/untitled", LastVisitTime: time.Now(), VisitCount: 1},
	}

	res := testResult(t, entries, nil)
	result := Markdown(&res, "default")

	if !strings.Contains(result, "[https://example.com/untitled](https://example.com/untitled)") {
		t.Errorf("expected URL as title fallback, got:\n%s", result)
	}
}

func TestMarkdown_Unavailable(t *testing.T) {
	res := organize.Result{Unavailable: true}
	result := Markdown(&res, "default")

	if !strings.Contains(result, "History source unavailable") {
		t.Errorf("missing unavailable notice, got:\n%s", result)
	}
}
