package organize

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/match"
	"github.com/lotas/verlauf/internal/types"
)

// Source provides one immutable history snapshot per organize cycle.
type Source interface {
	// History returns entries for the trailing window, newest first.
	History(ctx context.Context) ([]types.HistoryEntry, error)
}

// Result is the output of one organize cycle. Cycle is a monotonically
// increasing sequence number; consumers must discard results whose Cycle
// is older than the last one they applied (a superseded in-flight cycle
// may complete late).
type Result struct {
	Cycle       uint64
	Groups      []types.Group // enabled group order, empty groups dropped
	Frequencies *frequency.Snapshot
	Stats       types.Stats
	Unavailable bool // history source failed; Groups is empty, not an error
}

// Organizer runs organize cycles: classify every entry into exactly one
// group, aggregate totals, and order items by the active sort mode.
type Organizer struct {
	tracker *frequency.Tracker
	cycle   atomic.Uint64
}

// New creates an Organizer using the given tracker for frequency data.
func New(tracker *frequency.Tracker) *Organizer {
	return &Organizer{tracker: tracker}
}

// Thresholds exposes the tracker's tier cutoffs for rendering.
func (o *Organizer) Thresholds() frequency.Thresholds {
	return o.tracker.Thresholds()
}

// Organize fetches a snapshot from the source and partitions it across
// the normalized group definitions. A failing source degrades to an
// empty result with Unavailable set; errors never escape this boundary.
// Frequency persistence is kicked off fire-and-forget: rendering the
// result does not wait on it.
func (o *Organizer) Organize(ctx context.Context, src Source, defs []types.GroupDefinition, mode types.SortMode) Result {
	return o.run(ctx, src, defs, mode, false)
}

// OrganizeAndWait is Organize with the frequency persistence completed
// before it returns, for short-lived callers whose process (and database
// handle) goes away right after the cycle.
func (o *Organizer) OrganizeAndWait(ctx context.Context, src Source, defs []types.GroupDefinition, mode types.SortMode) Result {
	return o.run(ctx, src, defs, mode, true)
}

func (o *Organizer) run(ctx context.Context, src Source, defs []types.GroupDefinition, mode types.SortMode, wait bool) Result {
	cycle := o.cycle.Add(1)
	applog.Info("cycle.start", "cycle", cycle, "mode", mode)

	history, err := src.History(ctx)
	if err != nil {
		applog.Error("cycle.source", err, "cycle", cycle)
		return Result{Cycle: cycle, Unavailable: true}
	}

	res := o.Partition(history, defs, mode)
	res.Cycle = cycle

	if wait {
		o.tracker.Persist()
	} else {
		go o.tracker.Persist()
	}

	applog.Info("cycle.done", "cycle", cycle, "groups", len(res.Groups), "entries", res.Stats.TotalEntries)
	return res
}

// Partition is the pure core of Organize: it takes an already-fetched
// snapshot and produces the grouped, sorted result.
func (o *Organizer) Partition(history []types.HistoryEntry, defs []types.GroupDefinition, mode types.SortMode) Result {
	groups := match.Normalize(defs)
	freq := o.tracker.Recompute(history)

	byID := make(map[string]*types.Group, len(groups))
	order := make([]string, 0, len(groups))
	for _, g := range groups {
		byID[g.ID] = &types.Group{ID: g.ID, Name: g.Name, Icon: g.Icon}
		order = append(order, g.ID)
	}

	for _, e := range history {
		id := match.Classify(match.Domain(e.URL), groups)
		g := byID[id]
		g.Items = append(g.Items, e)
		g.TotalVisits += e.Visits()
		if e.LastVisitTime.After(g.LastVisit) {
			g.LastVisit = e.LastVisitTime
		}
	}

	res := Result{Frequencies: freq}
	for _, id := range order {
		g := byID[id]
		if len(g.Items) == 0 {
			continue
		}
		sortItems(g.Items, mode, freq)
		res.Groups = append(res.Groups, *g)
		res.Stats.TotalVisits += g.TotalVisits
	}
	res.Stats.TotalEntries = len(history)
	res.Stats.TotalGroups = len(res.Groups)
	res.Stats.TopVisited = len(freq.TopURLs())
	return res
}

// sortItems orders entries in place. Time mode is recency only.
// Frequency mode is a stable composite: top-visited membership first,
// then raw count descending, then recency descending; equal keys keep
// their prior relative order.
func sortItems(items []types.HistoryEntry, mode types.SortMode, freq *frequency.Snapshot) {
	switch mode {
	case types.SortByTime:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].LastVisitTime.After(items[j].LastVisitTime)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			ti, tj := freq.IsTop(items[i].URL), freq.IsTop(items[j].URL)
			if ti != tj {
				return ti
			}
			ci, cj := freq.Count(items[i].URL), freq.Count(items[j].URL)
			if ci != cj {
				return ci > cj
			}
			return items[i].LastVisitTime.After(items[j].LastVisitTime)
		})
	}
}

// Filter returns a new Group holding only items whose title or URL
// contains term, case-insensitively. An empty term matches everything.
// The source group is not mutated.
func Filter(g types.Group, term string) types.Group {
	out := types.Group{ID: g.ID, Name: g.Name, Icon: g.Icon}
	term = strings.ToLower(strings.TrimSpace(term))

	for _, e := range g.Items {
		if term != "" &&
			!strings.Contains(strings.ToLower(e.Title), term) &&
			!strings.Contains(strings.ToLower(e.URL), term) {
			continue
		}
		out.Items = append(out.Items, e)
		out.TotalVisits += e.Visits()
		if e.LastVisitTime.After(out.LastVisit) {
			out.LastVisit = e.LastVisitTime
		}
	}
	return out
}

// Window is the default history query window and cap.
const (
	WindowDays = 30
	MaxEntries = 2000
)

// WindowStart returns the start of the trailing history window.
func WindowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -WindowDays)
}
