package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/publicfarley/simple-weather/internal/models"
)

// SQLiteStore implements RecordStore on a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. The parent directory is created when missing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cached_location (
			slot INTEGER PRIMARY KEY CHECK (slot = 1),
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			captured_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS saved_places (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			is_current_location INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutCachedLocation replaces the single cached-location slot.
func (s *SQLiteStore) PutCachedLocation(ctx context.Context, rec models.CachedLocationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cached_location (slot, latitude, longitude, captured_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			captured_at = excluded.captured_at
	`, rec.Latitude, rec.Longitude, rec.CapturedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put cached location: %w", err)
	}
	return nil
}

// GetCachedLocation returns the slot contents, or ok=false when empty.
func (s *SQLiteStore) GetCachedLocation(ctx context.Context) (models.CachedLocationRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT latitude, longitude, captured_at FROM cached_location WHERE slot = 1`)

	var rec models.CachedLocationRecord
	var capturedAt string
	err := row.Scan(&rec.Latitude, &rec.Longitude, &capturedAt)
	if err == sql.ErrNoRows {
		return models.CachedLocationRecord{}, false, nil
	}
	if err != nil {
		return models.CachedLocationRecord{}, false, fmt.Errorf("get cached location: %w", err)
	}

	rec.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return models.CachedLocationRecord{}, false, fmt.Errorf("parse captured_at: %w", err)
	}
	return rec, true, nil
}

// DeleteCachedLocation empties the slot.
func (s *SQLiteStore) DeleteCachedLocation(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_location WHERE slot = 1`); err != nil {
		return fmt.Errorf("delete cached location: %w", err)
	}
	return nil
}

// SavePlace upserts a saved place. The current-location placeholder flag is
// written as false unconditionally; the in-memory placeholder never reaches
// durable storage.
func (s *SQLiteStore) SavePlace(ctx context.Context, p models.SavedPlace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_places (id, name, latitude, longitude, is_current_location, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			is_current_location = 0
	`, p.ID, p.Name, p.Coordinate.Latitude, p.Coordinate.Longitude, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save place %s: %w", p.ID, err)
	}
	return nil
}

// DeletePlace removes a saved place by id. Unknown ids are not an error.
func (s *SQLiteStore) DeletePlace(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_places WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete place %s: %w", id, err)
	}
	return nil
}

// ListPlaces returns all saved places ordered by creation time.
func (s *SQLiteStore) ListPlaces(ctx context.Context) ([]models.SavedPlace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, is_current_location
		FROM saved_places
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	var places []models.SavedPlace
	for rows.Next() {
		var p models.SavedPlace
		var isCurrent int
		if err := rows.Scan(&p.ID, &p.Name, &p.Coordinate.Latitude, &p.Coordinate.Longitude, &isCurrent); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		p.IsCurrentLocationPlaceholder = isCurrent != 0
		places = append(places, p)
	}
	return places, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
