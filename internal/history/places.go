package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/types"

	_ "modernc.org/sqlite"
)

// ReadPlaces reads recent history from a profile's places.sqlite:
// the trailing 30-day window, newest first, capped at 2000 entries.
// Firefox keeps the database locked while running, so it is copied to a
// temp file and the copy is opened read-only.
func ReadPlaces(ctx context.Context, profileDir string) ([]types.HistoryEntry, error) {
	src := filepath.Join(profileDir, "places.sqlite")
	tmp, err := copyToTemp(src)
	if err != nil {
		return nil, fmt.Errorf("copy places.sqlite: %w", err)
	}
	defer os.Remove(tmp)

	db, err := sql.Open("sqlite", "file:"+tmp+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open places copy: %w", err)
	}
	defer db.Close()

	// last_visit_date is epoch microseconds.
	cutoff := organize.WindowStart(time.Now()).UnixMicro()
	rows, err := db.QueryContext(ctx, `
SELECT url, IFNULL(title, ''), IFNULL(visit_count, 0), last_visit_date
FROM moz_places
WHERE last_visit_date IS NOT NULL AND last_visit_date >= ?
ORDER BY last_visit_date DESC
LIMIT ?`, cutoff, organize.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		var e types.HistoryEntry
		var lastVisitMicro int64
		if err := rows.Scan(&e.URL, &e.Title, &e.VisitCount, &lastVisitMicro); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		e.LastVisitTime = time.UnixMicro(lastVisitMicro)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return entries, nil
}

func copyToTemp(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "verlauf-places-*.sqlite")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
