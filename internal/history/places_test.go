package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// seedPlaces builds a minimal places.sqlite in dir.
func seedPlaces(t *testing.T, dir string, rows [][4]any) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, "places.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE moz_places (
		id INTEGER PRIMARY KEY,
		url TEXT,
		title TEXT,
		visit_count INTEGER,
		last_visit_date INTEGER
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, r := range rows {
		if _, err := db.Exec(
			"INSERT INTO moz_places (url, title, visit_count, last_visit_date) VALUES (?, ?, ?, ?)",
			r[0], r[1], r[2], r[3],
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

func TestReadPlaces(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	recent := now.Add(-time.Hour).UnixMicro()
	older := now.Add(-48 * time.Hour).UnixMicro()
	ancient := now.AddDate(0, 0, -45).UnixMicro()

	seedPlaces(t, dir, [][4]any{
		{"https://a.example.com", "A", 5, recent},
		{"https://b.example.com", nil, 2, older},
		{"https://c.example.com", "C", 9, ancient},          // outside 30-day window
		{"https://d.example.com", "D", 1, nil},              // never visited
	})

	entries, err := ReadPlaces(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadPlaces: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries inside the window, got %d", len(entries))
	}
	// Newest first.
	if entries[0].URL != "https://a.example.com" {
		t.Errorf("expected newest first, got %q", entries[0].URL)
	}
	if entries[0].VisitCount != 5 {
		t.Errorf("visit count = %d, want 5", entries[0].VisitCount)
	}
	if entries[1].Title != "" {
		t.Errorf("NULL title should read as empty, got %q", entries[1].Title)
	}
	if entries[0].LastVisitTime.UnixMicro() != recent {
		t.Errorf("lastVisitTime mismatch: %v", entries[0].LastVisitTime)
	}
}

func TestReadPlaces_MissingFile(t *testing.T) {
	if _, err := ReadPlaces(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for missing places.sqlite")
	}
}
