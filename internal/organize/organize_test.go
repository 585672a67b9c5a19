package organize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/types"
)

func newOrganizer() *Organizer {
	return New(frequency.NewTracker(nil, frequency.DefaultThresholds(), frequency.DefaultLimits()))
}

func testDefs() []types.GroupDefinition {
	return []types.GroupDefinition{
		{ID: "dev", Name: "Dev", Icon: "💻", Patterns: []string{"github.com"}, Enabled: true, Order: 0},
		{ID: "docs", Name: "Docs", Icon: "📚", Patterns: []string{"go.dev", "pkg.go.dev"}, Enabled: true, Order: 1},
	}
}

func at(minsAgo int) time.Time {
	return time.Now().Add(-time.Duration(minsAgo) * time.Minute)
}

func TestPartition_EveryEntryInExactlyOneGroup(t *testing.T) {
	o := newOrganizer()
	history := []types.HistoryEntry{
		{URL: "https://github.com/a/b", VisitCount: 2, LastVisitTime: at(1)},
		{URL: "https://go.dev/doc", VisitCount: 1, LastVisitTime: at(2)},
		{URL: "https://news.example.com", VisitCount: 4, LastVisitTime: at(3)},
		{URL: "not a url at all", VisitCount: 1, LastVisitTime: at(4)},
	}

	res := o.Partition(history, testDefs(), types.SortByTime)

	total := 0
	for _, g := range res.Groups {
		total += len(g.Items)
	}
	if total != len(history) {
		t.Errorf("partition lost entries: %d items across groups, %d in input", total, len(history))
	}
	if res.Stats.TotalEntries != len(history) {
		t.Errorf("stats entries = %d, want %d", res.Stats.TotalEntries, len(history))
	}

	// Unmatched and unparseable entries land in the catch-all.
	last := res.Groups[len(res.Groups)-1]
	if last.ID != "others" {
		t.Fatalf("expected catch-all last, got %q", last.ID)
	}
	if len(last.Items) != 2 {
		t.Errorf("expected 2 catch-all items, got %d", len(last.Items))
	}
}

func TestPartition_EmptyGroupsDropped(t *testing.T) {
	o := newOrganizer()
	history := []types.HistoryEntry{
		{URL: "https://github.com/a", VisitCount: 1, LastVisitTime: at(1)},
	}

	res := o.Partition(history, testDefs(), types.SortByTime)

	for _, g := range res.Groups {
		if g.ID == "docs" {
			t.Error("docs group has no items and should be dropped")
		}
		if len(g.Items) == 0 {
			t.Errorf("group %q returned empty", g.ID)
		}
	}
}

func TestPartition_GroupAggregates(t *testing.T) {
	o := newOrganizer()
	newest := at(1)
	history := []types.HistoryEntry{
		{URL: "https://github.com/a", VisitCount: 2, LastVisitTime: at(10)},
		{URL: "https://github.com/b", LastVisitTime: newest}, // no count: counts as 1
	}

	res := o.Partition(history, testDefs(), types.SortByTime)

	dev := res.Groups[0]
	if dev.ID != "dev" {
		t.Fatalf("expected dev first, got %q", dev.ID)
	}
	if dev.TotalVisits != 3 {
		t.Errorf("totalVisits = %d, want 3", dev.TotalVisits)
	}
	if !dev.LastVisit.Equal(newest) {
		t.Errorf("lastVisit = %v, want %v", dev.LastVisit, newest)
	}
}

func TestSort_TimeMode(t *testing.T) {
	o := newOrganizer()
	history := []types.HistoryEntry{
		{URL: "https://github.com/old", VisitCount: 9, LastVisitTime: at(60)},
		{URL: "https://github.com/new", VisitCount: 1, LastVisitTime: at(1)},
	}

	res := o.Partition(history, testDefs(), types.SortByTime)
	items := res.Groups[0].Items
	if items[0].URL != "https://github.com/new" {
		t.Errorf("time mode should put newest first, got %q", items[0].URL)
	}
}

func TestSort_FrequencyMode_CompositeKeys(t *testing.T) {
	o := newOrganizer()

	// Enough distinct URLs that the top set has real losers: 15 filler
	// URLs with high counts push the top-set boundary.
	var history []types.HistoryEntry
	for i := 0; i < 15; i++ {
		history = append(history, types.HistoryEntry{
			URL: fmt.Sprintf("https://f%d.example.com", i), VisitCount: 50, LastVisitTime: at(100),
		})
	}
	history = append(history,
		// Not top (count 2 of 18 distinct, top = max(10, 3) = 10 fillers + ...).
		types.HistoryEntry{URL: "https://github.com/cold-recent", VisitCount: 2, LastVisitTime: at(1)},
		types.HistoryEntry{URL: "https://github.com/warm", VisitCount: 5, LastVisitTime: at(30)},
		types.HistoryEntry{URL: "https://github.com/cold-old", VisitCount: 2, LastVisitTime: at(90)},
	)

	res := o.Partition(history, testDefs(), types.SortByFrequency)

	var dev types.Group
	for _, g := range res.Groups {
		if g.ID == "dev" {
			dev = g
		}
	}
	if len(dev.Items) != 3 {
		t.Fatalf("expected 3 dev items, got %d", len(dev.Items))
	}
	// warm (count 5) before the two cold entries; among equal counts,
	// recency decides.
	if dev.Items[0].URL != "https://github.com/warm" {
		t.Errorf("highest count first, got %q", dev.Items[0].URL)
	}
	if dev.Items[1].URL != "https://github.com/cold-recent" {
		t.Errorf("equal counts ordered by recency, got %q", dev.Items[1].URL)
	}
}

func TestSort_FrequencyMode_Stable(t *testing.T) {
	o := newOrganizer()

	// Two entries with identical count, identical timestamps and equal
	// top membership must keep their input order.
	when := at(5)
	history := []types.HistoryEntry{
		{URL: "https://github.com/first", VisitCount: 3, LastVisitTime: when},
		{URL: "https://github.com/second", VisitCount: 3, LastVisitTime: when},
	}

	res := o.Partition(history, testDefs(), types.SortByFrequency)
	items := res.Groups[0].Items
	if items[0].URL != "https://github.com/first" || items[1].URL != "https://github.com/second" {
		t.Errorf("equal-key entries must keep input order, got %q then %q", items[0].URL, items[1].URL)
	}
}

func TestFilter(t *testing.T) {
	g := types.Group{
		ID:   "dev",
		Name: "Dev",
		Items: []types.HistoryEntry{
			{URL: "https://github.com/verlauf", Title: "Verlauf Repo", VisitCount: 2, LastVisitTime: at(1)},
			{URL: "https://github.com/other", Title: "Something Else", VisitCount: 5, LastVisitTime: at(2)},
		},
	}

	out := Filter(g, "VERLAUF")
	if len(out.Items) != 1 || out.Items[0].Title != "Verlauf Repo" {
		t.Fatalf("title/url substring filter failed: %+v", out.Items)
	}
	if out.TotalVisits != 2 {
		t.Errorf("filtered totalVisits = %d, want 2", out.TotalVisits)
	}

	// Empty term matches everything and does not mutate the source.
	all := Filter(g, "  ")
	if len(all.Items) != 2 {
		t.Errorf("empty term should match all, got %d", len(all.Items))
	}
	if len(g.Items) != 2 {
		t.Error("Filter must not mutate its input")
	}

	none := Filter(g, "zzz-no-match")
	if len(none.Items) != 0 {
		t.Errorf("expected no matches, got %d", len(none.Items))
	}
}

type fakeSource struct {
	entries []types.HistoryEntry
	err     error
}

func (f fakeSource) History(ctx context.Context) ([]types.HistoryEntry, error) {
	return f.entries, f.err
}

func TestOrganize_SourceFailureDegrades(t *testing.T) {
	o := newOrganizer()
	res := o.Organize(context.Background(), fakeSource{err: errors.New("locked")}, testDefs(), types.SortByTime)

	if !res.Unavailable {
		t.Error("expected Unavailable on source failure")
	}
	if len(res.Groups) != 0 {
		t.Errorf("expected empty result, got %d groups", len(res.Groups))
	}
}

func TestOrganize_CycleNumbersIncrease(t *testing.T) {
	o := newOrganizer()
	src := fakeSource{entries: []types.HistoryEntry{{URL: "https://a.com", LastVisitTime: at(1)}}}

	r1 := o.Organize(context.Background(), src, testDefs(), types.SortByTime)
	r2 := o.Organize(context.Background(), src, testDefs(), types.SortByTime)
	if r2.Cycle <= r1.Cycle {
		t.Errorf("cycle numbers must increase: %d then %d", r1.Cycle, r2.Cycle)
	}
}

func TestOrganizeAndWait_PersistsBeforeReturn(t *testing.T) {
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "verlauf.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	o := New(frequency.NewTracker(db, frequency.DefaultThresholds(), frequency.DefaultLimits()))
	src := fakeSource{entries: []types.HistoryEntry{
		{URL: "https://github.com/hot", VisitCount: 5, LastVisitTime: at(1)},
	}}

	res := o.OrganizeAndWait(context.Background(), src, testDefs(), types.SortByFrequency)
	if res.Unavailable {
		t.Fatal("unexpected unavailable result")
	}

	// No goroutine to race: the data must be readable the moment the
	// call returns, even if the caller closes the DB right after.
	var persisted map[string]int
	if err := storage.GetJSON(db, storage.KeyVisitFrequency, &persisted); err != nil {
		t.Fatalf("frequency data not persisted: %v", err)
	}
	if persisted["https://github.com/hot"] != 5 {
		t.Errorf("persisted count = %d, want 5", persisted["https://github.com/hot"])
	}
}
