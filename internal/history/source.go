package history

import (
	"context"

	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/types"
)

// FirefoxSource reads a profile's history for the organizer. places.sqlite
// is the primary source; if it cannot be read (missing, corrupt, copy
// failure) the session-store file degrades gracefully to open tabs only.
type FirefoxSource struct {
	Profile types.Profile
}

// History implements organize.Source.
func (s FirefoxSource) History(ctx context.Context) ([]types.HistoryEntry, error) {
	entries, err := ReadPlaces(ctx, s.Profile.Path)
	if err == nil {
		return entries, nil
	}
	applog.Warn("source.fallback", "profile", s.Profile.Name, "err", err)

	return ReadSessionHistory(s.Profile.Path)
}

// StaticSource serves a fixed snapshot, used for live-mode data pushed
// by the extension.
type StaticSource []types.HistoryEntry

// History implements organize.Source.
func (s StaticSource) History(ctx context.Context) ([]types.HistoryEntry, error) {
	return s, nil
}
