package storage

import (
	"database/sql"
	"fmt"
)

// Favorite is a starred URL with an optional custom display tag.
// A tag implies favorite membership; the reverse does not hold.
type Favorite struct {
	URL string
	Tag string // empty = no custom tag
}

// AddFavorite stars a URL. Starring an already-starred URL is a no-op
// that preserves any existing tag.
func AddFavorite(db *sql.DB, url string) error {
	_, err := db.Exec("INSERT INTO favorites (url) VALUES (?) ON CONFLICT(url) DO NOTHING", url)
	if err != nil {
		return fmt.Errorf("add favorite %q: %w", url, err)
	}
	return nil
}

// RemoveFavorite unstars a URL, dropping its tag with it.
func RemoveFavorite(db *sql.DB, url string) error {
	if _, err := db.Exec("DELETE FROM favorites WHERE url = ?", url); err != nil {
		return fmt.Errorf("remove favorite %q: %w", url, err)
	}
	return nil
}

// SetTag assigns a custom tag to a URL, starring it if needed.
func SetTag(db *sql.DB, url, tag string) error {
	_, err := db.Exec(`
INSERT INTO favorites (url, tag) VALUES (?, ?)
ON CONFLICT(url) DO UPDATE SET tag = excluded.tag`,
		url, tag,
	)
	if err != nil {
		return fmt.Errorf("set tag for %q: %w", url, err)
	}
	return nil
}

// ClearTag removes the custom tag but keeps the URL starred.
func ClearTag(db *sql.DB, url string) error {
	if _, err := db.Exec("UPDATE favorites SET tag = NULL WHERE url = ?", url); err != nil {
		return fmt.Errorf("clear tag for %q: %w", url, err)
	}
	return nil
}

// ListFavorites returns all favorites keyed by URL.
func ListFavorites(db *sql.DB) (map[string]Favorite, error) {
	rows, err := db.Query("SELECT url, tag FROM favorites")
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Favorite)
	for rows.Next() {
		var f Favorite
		var tag sql.NullString
		if err := rows.Scan(&f.URL, &tag); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		if tag.Valid {
			f.Tag = tag.String
		}
		result[f.URL] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return result, nil
}
