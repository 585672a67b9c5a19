package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/types"
)

// FormatVersion is written to every export and checked on import.
const FormatVersion = "1.0"

type groupsFile struct {
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Groups    []wireGroup `json:"groups"`
}

// wireGroup uses a pointer for enabled so an absent field can default
// to true instead of Go's zero value.
type wireGroup struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Patterns []string `json:"patterns"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Order    int      `json:"order"`
}

// Groups formats group definitions as a versioned JSON document.
func Groups(defs []types.GroupDefinition) (string, error) {
	out := groupsFile{
		Version:   FormatVersion,
		Timestamp: time.Now().UTC(),
		Groups:    make([]wireGroup, 0, len(defs)),
	}
	for _, d := range defs {
		enabled := d.Enabled
		out.Groups = append(out.Groups, wireGroup{
			ID:       d.ID,
			Name:     d.Name,
			Icon:     d.Icon,
			Patterns: d.Patterns,
			Enabled:  &enabled,
			Order:    d.Order,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// ImportGroups parses an exported groups file. Malformed JSON or an
// unsupported version rejects the whole file; individual groups missing
// an id, name, icon, or patterns are dropped silently, as is any group
// repeating an earlier group's id. Surviving groups are sorted by their
// declared order and renumbered from 0.
func ImportGroups(data []byte) ([]types.GroupDefinition, error) {
	var file groupsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse import: %w", err)
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %q", file.Version)
	}

	seen := make(map[string]bool, len(file.Groups))
	defs := make([]types.GroupDefinition, 0, len(file.Groups))
	for _, g := range file.Groups {
		if g.ID == "" || g.Name == "" || g.Icon == "" || len(g.Patterns) == 0 {
			continue
		}
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		enabled := true
		if g.Enabled != nil {
			enabled = *g.Enabled
		}
		defs = append(defs, types.GroupDefinition{
			ID:       g.ID,
			Name:     g.Name,
			Icon:     g.Icon,
			Patterns: g.Patterns,
			Enabled:  enabled,
			Order:    g.Order,
		})
	}

	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Order < defs[j].Order
	})
	for i := range defs {
		defs[i].Order = i
	}
	return defs, nil
}

type resultExport struct {
	Profile    string        `json:"profile"`
	ExportedAt time.Time     `json:"exported_at"`
	Entries    int           `json:"entries"`
	Groups     []resultGroup `json:"groups"`
}

type resultGroup struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Icon        string        `json:"icon"`
	TotalVisits int           `json:"total_visits"`
	Entries     []resultEntry `json:"entries"`
}

type resultEntry struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	LastVisit  time.Time `json:"last_visit"`
	VisitCount int       `json:"visit_count"`
	Tier       string    `json:"tier"`
	TopVisited bool      `json:"top_visited,omitempty"`
}

// ResultJSON formats an organize result as a JSON document.
func ResultJSON(res *organize.Result, profile string, th frequency.Thresholds) (string, error) {
	out := resultExport{
		Profile:    profile,
		ExportedAt: time.Now(),
		Entries:    res.Stats.TotalEntries,
		Groups:     make([]resultGroup, 0, len(res.Groups)),
	}

	for _, g := range res.Groups {
		group := resultGroup{
			ID:          g.ID,
			Name:        g.Name,
			Icon:        g.Icon,
			TotalVisits: g.TotalVisits,
			Entries:     make([]resultEntry, 0, len(g.Items)),
		}
		for _, e := range g.Items {
			count := e.Visits()
			top := false
			if res.Frequencies != nil {
				count = res.Frequencies.Count(e.URL)
				top = res.Frequencies.IsTop(e.URL)
			}
			group.Entries = append(group.Entries, resultEntry{
				URL:        e.URL,
				Title:      e.Title,
				LastVisit:  e.LastVisitTime,
				VisitCount: count,
				Tier:       th.Tier(count).String(),
				TopVisited: top,
			})
		}
		out.Groups = append(out.Groups, group)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
