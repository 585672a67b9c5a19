package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseHistory(t *testing.T) {
	raw := `[
  {"url": "https://a.com", "title": "A", "lastVisitTime": 1700000000000, "visitCount": 7},
  {"url": "", "title": "no url", "lastVisitTime": 1700000000000, "visitCount": 1},
  {"url": "https://b.com", "lastVisitTime": 1700000100000}
]`
	msg := IncomingMsg{Type: "history", Entries: json.RawMessage(raw)}

	entries, err := ParseHistory(msg)
	if err != nil {
		t.Fatalf("ParseHistory: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (blank URL dropped), got %d", len(entries))
	}
	if entries[0].URL != "https://a.com" || entries[0].VisitCount != 7 {
		t.Errorf("first entry mismatch: %+v", entries[0])
	}
	if !entries[0].LastVisitTime.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("time mismatch: %v", entries[0].LastVisitTime)
	}
	if entries[1].VisitCount != 0 {
		t.Errorf("missing visitCount should stay 0 (counts as 1 downstream), got %d", entries[1].VisitCount)
	}
}

func TestParseHistory_Malformed(t *testing.T) {
	msg := IncomingMsg{Type: "history", Entries: json.RawMessage(`{"not":"an array"}`)}
	if _, err := ParseHistory(msg); err == nil {
		t.Error("expected error for non-array entries")
	}
}
