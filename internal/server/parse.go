package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/verlauf/internal/types"
)

// wireEntry mirrors the browser history API's item shape.
type wireEntry struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	LastVisitTime int64  `json:"lastVisitTime"` // epoch milliseconds
	VisitCount    int    `json:"visitCount"`
}

// ParseHistory converts an IncomingMsg of type "history" into history
// entries. Entries without a URL are dropped.
func ParseHistory(msg IncomingMsg) ([]types.HistoryEntry, error) {
	var wire []wireEntry
	if err := json.Unmarshal(msg.Entries, &wire); err != nil {
		return nil, fmt.Errorf("parse entries: %w", err)
	}

	entries := make([]types.HistoryEntry, 0, len(wire))
	for _, w := range wire {
		if w.URL == "" {
			continue
		}
		entries = append(entries, types.HistoryEntry{
			URL:           w.URL,
			Title:         w.Title,
			LastVisitTime: time.UnixMilli(w.LastVisitTime),
			VisitCount:    w.VisitCount,
		})
	}
	return entries, nil
}
