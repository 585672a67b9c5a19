package match

import (
	"net/url"
	"sort"
	"strings"

	"github.com/lotas/verlauf/internal/types"
)

// CatchAllID is the id of the synthesized fallback group.
const CatchAllID = "others"

// Domain extracts the lower-cased hostname from an absolute URL.
// Unparseable URLs yield an empty string and land in the catch-all group.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Normalize returns the enabled definitions sorted by Order with Order
// renumbered to 0..n-1 and a catch-all definition forced last. Ids must
// be unique; on a duplicate the lower-ordered definition wins. If no
// catch-all exists one is synthesized. The input slice is not modified.
func Normalize(defs []types.GroupDefinition) []types.GroupDefinition {
	out := make([]types.GroupDefinition, 0, len(defs)+1)
	for _, d := range defs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		// Catch-all sorts last regardless of its declared order.
		if out[i].IsCatchAll() != out[j].IsCatchAll() {
			return !out[i].IsCatchAll()
		}
		return out[i].Order < out[j].Order
	})

	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, d := range out {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		deduped = append(deduped, d)
	}
	out = deduped

	hasCatchAll := false
	for _, d := range out {
		if d.IsCatchAll() {
			hasCatchAll = true
			break
		}
	}
	if !hasCatchAll {
		out = append(out, types.GroupDefinition{
			ID:       CatchAllID,
			Name:     "Others",
			Icon:     "🌐",
			Patterns: []string{"*"},
			Enabled:  true,
		})
	}

	for i := range out {
		out[i].Order = i
	}
	return out
}

// Classify returns the id of the first group whose patterns match the
// domain. A pattern matches if it is a case-insensitive substring of the
// domain; "*" matches everything. Matching is deliberately containment,
// not suffix matching, so pattern "google.com" also hits
// "mail.google.com.evil.com". groups must be Normalize output, which
// guarantees a catch-all exists, so Classify always returns an id.
func Classify(domain string, groups []types.GroupDefinition) string {
	domain = strings.ToLower(domain)
	for _, g := range groups {
		for _, p := range g.Patterns {
			if p == "*" {
				return g.ID
			}
			if p != "" && strings.Contains(domain, strings.ToLower(p)) {
				return g.ID
			}
		}
	}
	// Unreachable with normalized input; fall back anyway.
	return CatchAllID
}
