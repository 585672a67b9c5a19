package match

import (
	"testing"

	"github.com/lotas/verlauf/internal/types"
)

func defs() []types.GroupDefinition {
	return []types.GroupDefinition{
		{ID: "dev", Name: "Dev", Icon: "💻", Patterns: []string{"github.com", "stackoverflow.com"}, Enabled: true, Order: 0},
		{ID: "mail", Name: "Mail", Icon: "✉️", Patterns: []string{"mail.", "gmail"}, Enabled: true, Order: 1},
		{ID: "video", Name: "Video", Icon: "🎬", Patterns: []string{"youtube.com"}, Enabled: false, Order: 2},
	}
}

func TestDomain(t *testing.T) {
	cases := []struct {
		url, want string
	}{
		{"https://Mail.Google.com/inbox", "mail.google.com"},
		{"http://example.com:8080/x", "example.com"},
		{"not a url", ""},
		{"/relative/path", ""},
	}
	for _, c := range cases {
		if got := Domain(c.url); got != c.want {
			t.Errorf("Domain(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestNormalize_SynthesizesCatchAllLast(t *testing.T) {
	groups := Normalize(defs())

	if len(groups) != 3 {
		t.Fatalf("expected 2 enabled + catch-all, got %d groups", len(groups))
	}
	last := groups[len(groups)-1]
	if !last.IsCatchAll() {
		t.Errorf("expected catch-all last, got %q", last.ID)
	}
	for i, g := range groups {
		if g.Order != i {
			t.Errorf("group %q: order %d, want %d", g.ID, g.Order, i)
		}
	}
}

func TestNormalize_CatchAllForcedLast(t *testing.T) {
	in := []types.GroupDefinition{
		{ID: "all", Name: "All", Icon: "🌐", Patterns: []string{"*"}, Enabled: true, Order: 0},
		{ID: "dev", Name: "Dev", Icon: "💻", Patterns: []string{"github.com"}, Enabled: true, Order: 5},
	}
	groups := Normalize(in)
	if groups[len(groups)-1].ID != "all" {
		t.Errorf("declared catch-all should sort last, got order %v", []string{groups[0].ID, groups[1].ID})
	}
	if groups[0].ID != "dev" || groups[0].Order != 0 {
		t.Errorf("expected dev renumbered to 0, got %q order %d", groups[0].ID, groups[0].Order)
	}
}

func TestNormalize_DuplicateIDsCollapse(t *testing.T) {
	in := []types.GroupDefinition{
		{ID: "dev", Name: "Dev", Icon: "💻", Patterns: []string{"github.com"}, Enabled: true, Order: 0},
		{ID: "mail", Name: "Mail", Icon: "✉️", Patterns: []string{"gmail"}, Enabled: true, Order: 1},
		{ID: "dev", Name: "Dev again", Icon: "💻", Patterns: []string{"gitlab.com"}, Enabled: true, Order: 2},
	}
	groups := Normalize(in)

	seen := map[string]int{}
	for _, g := range groups {
		seen[g.ID]++
	}
	if seen["dev"] != 1 {
		t.Fatalf("duplicate id emitted %d times, want 1", seen["dev"])
	}
	// The lower-ordered definition wins; the duplicate's patterns are gone.
	if got := Classify("gitlab.com", groups); got != CatchAllID {
		t.Errorf("dropped duplicate still matching: got %q", got)
	}
	if got := Classify("github.com", groups); got != "dev" {
		t.Errorf("surviving definition should match, got %q", got)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "mail.github.com" matches both dev (github.com) and mail (mail.);
	// dev has the lower order and must win.
	groups := Normalize(defs())
	if got := Classify("mail.github.com", groups); got != "dev" {
		t.Errorf("expected dev (lower order), got %q", got)
	}
}

func TestClassify_SubstringContainment(t *testing.T) {
	groups := Normalize(defs())

	// Substring matching is intentional: a crafted domain containing a
	// pattern still matches.
	if got := Classify("github.com.evil.com", groups); got != "dev" {
		t.Errorf("containment match expected dev, got %q", got)
	}
	if got := Classify("GITHUB.COM", groups); got != "dev" {
		t.Errorf("matching must be case-insensitive, got %q", got)
	}
}

func TestClassify_DisabledAndCatchAll(t *testing.T) {
	groups := Normalize(defs())

	// video is disabled; youtube.com falls through to the catch-all.
	if got := Classify("youtube.com", groups); got != CatchAllID {
		t.Errorf("disabled group must not match, got %q", got)
	}
	if got := Classify("", groups); got != CatchAllID {
		t.Errorf("empty domain should hit catch-all, got %q", got)
	}
}
