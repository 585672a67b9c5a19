package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/types"
)

// Markdown formats an organize result as a markdown document.
func Markdown(res *organize.Result, profile string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Browsing History — %s\n", profile)
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))

	if res.Unavailable {
		b.WriteString("\nHistory source unavailable.\n")
		return b.String()
	}

	for _, g := range res.Groups {
		n := len(g.Items)
		noun := "entries"
		if n == 1 {
			noun = "entry"
		}
		fmt.Fprintf(&b, "\n## %s %s (%d %s)\n\n", g.Icon, g.Name, n, noun)

		for _, e := range g.Items {
			title := e.Title
			if title == "" {
				title = e.URL
			}
			fmt.Fprintf(&b, "- [%s](%s) — %s", title, e.URL, relativeTime(e.LastVisitTime))
			if res.Frequencies != nil {
				if count := res.Frequencies.Count(e.URL); count > 1 {
					fmt.Fprintf(&b, ", %d visits", count)
				}
				if res.Frequencies.IsTop(e.URL) {
					b.WriteString(" ★")
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func relativeTime(t time.Time) string {
	age := types.RelativeAge(t)
	if age == "now" {
		return "just now"
	}
	return age + " ago"
}
