package frequency

import (
	"database/sql"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/types"
)

// Thresholds are the visit counts at which a URL enters each tier.
// They are configuration, not constants: the cutoffs are empirical.
type Thresholds struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// DefaultThresholds returns the standard tier cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 10, Medium: 5, Low: 2}
}

// Tier classifies a visit count against the thresholds.
func (th Thresholds) Tier(count int) types.Tier {
	switch {
	case count >= th.High:
		return types.TierHigh
	case count >= th.Medium:
		return types.TierMedium
	case count >= th.Low:
		return types.TierLow
	default:
		return types.TierRare
	}
}

// Limits bound how much frequency data is kept in memory and persisted.
// The persisted store has a small quota, so records below PersistMinCount
// are dropped and the rest truncated before every write.
type Limits struct {
	TopPercent      float64       // share of distinct URLs considered "top"
	TopMinimum      int           // floor for the top set size
	PersistMinCount int           // records below this are never persisted
	PersistMax      int           // cap on persisted frequency records
	TopPersistMax   int           // cap on persisted top-visited URLs
	EmergencyMax    int           // record cap for the quota-failure retry
	EmergencyTopMax int           // top-visited cap for the quota-failure retry
	LiveMax         int           // in-memory record cap after a cleanup pass
	CleanupInterval time.Duration // minimum gap between periodic cleanups
	QuotaBytes      int           // serialized byte budget per kv key; 0 = unlimited
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		TopPercent:      0.2,
		TopMinimum:      10,
		PersistMinCount: 3,
		PersistMax:      50,
		TopPersistMax:   30,
		EmergencyMax:    15,
		EmergencyTopMax: 10,
		LiveMax:         30,
		CleanupInterval: 24 * time.Hour,
		QuotaBytes:      8 << 10,
	}
}

// Snapshot is the per-cycle frequency view the organizer consumes.
// It is immutable once built; a new organize cycle builds a new one.
type Snapshot struct {
	counts map[string]int
	order  []string // URLs in first-seen order, for stable tie-breaks
	top    map[string]bool
}

// Count returns the cumulative visit count for a URL (0 if unseen).
func (s *Snapshot) Count(url string) int {
	if s == nil {
		return 0
	}
	return s.counts[url]
}

// IsTop reports whether the URL is in the top-visited set.
func (s *Snapshot) IsTop(url string) bool {
	if s == nil {
		return false
	}
	return s.top[url]
}

// TopURLs returns the top-visited URLs, most visited first.
func (s *Snapshot) TopURLs() []string {
	if s == nil {
		return nil
	}
	urls := make([]string, 0, len(s.top))
	for _, u := range s.order {
		if s.top[u] {
			urls = append(urls, u)
		}
	}
	sort.SliceStable(urls, func(i, j int) bool {
		return s.counts[urls[i]] > s.counts[urls[j]]
	})
	return urls
}

// Distinct returns the number of distinct URLs in the snapshot.
func (s *Snapshot) Distinct() int {
	if s == nil {
		return 0
	}
	return len(s.counts)
}

// ShowBadge reports whether a frequency badge is rendered for the URL:
// any tier above rare, or membership in the top-visited set.
func (s *Snapshot) ShowBadge(url string, th Thresholds) bool {
	return th.Tier(s.Count(url)) != types.TierRare || s.IsTop(url)
}

// Tracker aggregates per-URL visit counts and manages their bounded,
// best-effort persistence. Persistence failures never propagate to the
// organize path; stale badges are an accepted degradation.
type Tracker struct {
	db         *sql.DB
	thresholds Thresholds
	limits     Limits

	last       atomic.Pointer[Snapshot]
	persisting atomic.Bool
}

// NewTracker creates a Tracker over the given store. db may be nil, in
// which case persistence is disabled and Recompute still works.
func NewTracker(db *sql.DB, th Thresholds, lim Limits) *Tracker {
	return &Tracker{db: db, thresholds: th, limits: lim}
}

// Thresholds returns the configured tier cutoffs.
func (t *Tracker) Thresholds() Thresholds { return t.thresholds }

// Recompute sums visit counts per URL across the history snapshot,
// merges them with persisted historical counts (taking the larger of the
// two per URL), and derives the top-visited set: the top
// max(TopMinimum, floor(TopPercent * distinct)) URLs by count, ties kept
// in first-seen order.
func (t *Tracker) Recompute(history []types.HistoryEntry) *Snapshot {
	s := &Snapshot{
		counts: make(map[string]int, len(history)),
		top:    make(map[string]bool),
	}

	for _, e := range history {
		if e.URL == "" {
			continue
		}
		if _, seen := s.counts[e.URL]; !seen {
			s.order = append(s.order, e.URL)
		}
		s.counts[e.URL] += e.Visits()
	}

	// Persisted counts from earlier sessions may exceed what the 30-day
	// snapshot shows; keep the larger value.
	for url, persisted := range t.loadPersisted() {
		if _, seen := s.counts[url]; !seen {
			continue // only rank URLs present in the current snapshot
		}
		if persisted > s.counts[url] {
			s.counts[url] = persisted
		}
	}

	n := int(t.limits.TopPercent * float64(len(s.counts)))
	if n < t.limits.TopMinimum {
		n = t.limits.TopMinimum
	}
	if n > len(s.counts) {
		n = len(s.counts)
	}

	ranked := make([]string, len(s.order))
	copy(ranked, s.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.counts[ranked[i]] > s.counts[ranked[j]]
	})
	for _, url := range ranked[:n] {
		s.top[url] = true
	}

	t.last.Store(s)
	return s
}

// Classify returns the frequency tier of a URL in the current snapshot.
func (t *Tracker) Classify(url string, s *Snapshot) types.Tier {
	return t.thresholds.Tier(s.Count(url))
}

// loadPersisted reads historical counts from the store, validating the
// document: empty URLs and non-positive counts are dropped. Any read
// failure degrades to an empty map.
func (t *Tracker) loadPersisted() map[string]int {
	if t.db == nil {
		return nil
	}
	var raw map[string]int
	if err := storage.GetJSON(t.db, storage.KeyVisitFrequency, &raw); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			applog.Warn("freq.load", "err", err)
		}
		return nil
	}
	for url, count := range raw {
		if url == "" || count <= 0 {
			delete(raw, url)
		}
	}
	return raw
}

// Persist writes the current snapshot's frequency data to the store,
// bounded per the limits. On a quota failure it falls back to an
// emergency minimal write; if that also fails the error is logged and
// swallowed. An in-flight persist suppresses overlapping calls.
func (t *Tracker) Persist() {
	if t.db == nil {
		return
	}
	if !t.persisting.CompareAndSwap(false, true) {
		return
	}
	defer t.persisting.Store(false)

	s := t.last.Load()
	if s == nil {
		return
	}

	records := t.boundedRecords(s, t.limits.PersistMax)
	tops := s.TopURLs()
	if len(tops) > t.limits.TopPersistMax {
		tops = tops[:t.limits.TopPersistMax]
	}

	err := t.write(records, tops)
	if errors.Is(err, storage.ErrQuotaExceeded) {
		applog.Warn("freq.quota", "records", len(records))
		records = t.boundedRecords(s, t.limits.EmergencyMax)
		if len(tops) > t.limits.EmergencyTopMax {
			tops = tops[:t.limits.EmergencyTopMax]
		}
		err = t.write(records, tops)
	}
	if err != nil {
		// Stale persisted stats are cosmetic; never fatal.
		applog.Error("freq.persist", err, "records", len(records))
		return
	}
	applog.Info("freq.persist", "records", len(records), "top", len(tops))
}

// boundedRecords drops records below PersistMinCount and truncates the
// remainder to the top max records by count.
func (t *Tracker) boundedRecords(s *Snapshot, max int) map[string]int {
	urls := make([]string, 0, len(s.order))
	for _, u := range s.order {
		if s.counts[u] >= t.limits.PersistMinCount {
			urls = append(urls, u)
		}
	}
	sort.SliceStable(urls, func(i, j int) bool {
		return s.counts[urls[i]] > s.counts[urls[j]]
	})
	if len(urls) > max {
		urls = urls[:max]
	}

	out := make(map[string]int, len(urls))
	for _, u := range urls {
		out[u] = s.counts[u]
	}
	return out
}

func (t *Tracker) write(records map[string]int, tops []string) error {
	if err := storage.PutJSON(t.db, storage.KeyVisitFrequency, records, t.limits.QuotaBytes); err != nil {
		return err
	}
	return storage.PutJSON(t.db, storage.KeyTopVisitedURLs, tops, t.limits.QuotaBytes)
}

// Cleanup purges low-count records from the persisted store and caps it
// to LiveMax entries. Unless force is set, it runs at most once per
// CleanupInterval, tracked via a persisted timestamp.
func (t *Tracker) Cleanup(force bool) {
	if t.db == nil {
		return
	}

	if !force {
		var lastMs int64
		err := storage.GetJSON(t.db, storage.KeyLastCleanupTime, &lastMs)
		if err == nil && time.Since(time.UnixMilli(lastMs)) < t.limits.CleanupInterval {
			return
		}
	}

	raw := t.loadPersisted()
	urls := make([]string, 0, len(raw))
	for u, c := range raw {
		if c >= t.limits.PersistMinCount {
			urls = append(urls, u)
		}
	}
	sort.Slice(urls, func(i, j int) bool {
		if raw[urls[i]] != raw[urls[j]] {
			return raw[urls[i]] > raw[urls[j]]
		}
		return urls[i] < urls[j]
	})
	if len(urls) > t.limits.LiveMax {
		urls = urls[:t.limits.LiveMax]
	}

	kept := make(map[string]int, len(urls))
	for _, u := range urls {
		kept[u] = raw[u]
	}

	if err := storage.PutJSON(t.db, storage.KeyVisitFrequency, kept, t.limits.QuotaBytes); err != nil {
		applog.Error("freq.cleanup", err)
		return
	}

	// Trim the persisted top list to URLs that survived the purge; a
	// stale oversized list would otherwise linger until the next persist.
	var tops []string
	if err := storage.GetJSON(t.db, storage.KeyTopVisitedURLs, &tops); err == nil {
		trimmed := tops[:0]
		for _, u := range tops {
			if _, ok := kept[u]; ok {
				trimmed = append(trimmed, u)
			}
		}
		if len(trimmed) > t.limits.TopPersistMax {
			trimmed = trimmed[:t.limits.TopPersistMax]
		}
		if err := storage.PutJSON(t.db, storage.KeyTopVisitedURLs, trimmed, t.limits.QuotaBytes); err != nil {
			applog.Error("freq.cleanup", err)
			return
		}
	}

	if err := storage.PutJSON(t.db, storage.KeyLastCleanupTime, time.Now().UnixMilli(), 0); err != nil {
		applog.Error("freq.cleanup", err)
		return
	}
	applog.Info("freq.cleanup", "kept", len(kept), "purged", len(raw)-len(kept))
}
