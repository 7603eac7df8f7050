// Package store persists location history and training state in SQLite, and
// trained model artifacts as JSON files alongside the database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// ErrNotFound is returned when a location has no persisted records.
var ErrNotFound = errors.New("store: location not found")

const schema = `
CREATE TABLE IF NOT EXISTS location_records (
	location_key TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	records_json TEXT NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS trained_locations (
	location_key TEXT PRIMARY KEY,
	trained_at   TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database holding cached history per location key.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dir/records.db and applies
// the schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "records.db"))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection pool
	// beyond what SQLite itself serializes; a single connection avoids
	// SQLITE_BUSY churn under concurrent training runs.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecords upserts the full record set for a location along with the label
// of the source that produced it.
func (s *Store) SaveRecords(key, source string, records []models.ClimateRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("store: marshal records: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO location_records (location_key, source, records_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location_key) DO UPDATE SET
			source = excluded.source,
			records_json = excluded.records_json,
			updated_at = excluded.updated_at`,
		key, source, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save records for %s: %w", key, err)
	}
	return nil
}

// LoadRecords returns the persisted record set and source label for a
// location, or ErrNotFound.
func (s *Store) LoadRecords(key string) ([]models.ClimateRecord, string, error) {
	var source, recordsJSON string
	err := s.db.QueryRow(
		`SELECT source, records_json FROM location_records WHERE location_key = ?`, key).
		Scan(&source, &recordsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: load records for %s: %w", key, err)
	}
	var records []models.ClimateRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return nil, "", fmt.Errorf("store: decode records for %s: %w", key, err)
	}
	return records, source, nil
}

// LocationInfo summarizes one cached location.
type LocationInfo struct {
	Key         string    `json:"location_key"`
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	Trained     bool      `json:"model_trained"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListLocations returns a summary row per cached location, ordered by key.
func (s *Store) ListLocations() ([]LocationInfo, error) {
	rows, err := s.db.Query(`
		SELECT r.location_key, r.source, r.records_json, r.updated_at,
		       t.location_key IS NOT NULL
		FROM location_records r
		LEFT JOIN trained_locations t ON t.location_key = r.location_key
		ORDER BY r.location_key`)
	if err != nil {
		return nil, fmt.Errorf("store: list locations: %w", err)
	}
	defer rows.Close()

	var infos []LocationInfo
	for rows.Next() {
		var info LocationInfo
		var recordsJSON string
		if err := rows.Scan(&info.Key, &info.Source, &recordsJSON, &info.UpdatedAt, &info.Trained); err != nil {
			return nil, fmt.Errorf("store: scan location row: %w", err)
		}
		var records []json.RawMessage
		if err := json.Unmarshal([]byte(recordsJSON), &records); err == nil {
			info.RecordCount = len(records)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteRecords removes the record set and training flag for one location.
func (s *Store) DeleteRecords(key string) error {
	if _, err := s.db.Exec(`DELETE FROM location_records WHERE location_key = ?`, key); err != nil {
		return fmt.Errorf("store: delete records for %s: %w", key, err)
	}
	if _, err := s.db.Exec(`DELETE FROM trained_locations WHERE location_key = ?`, key); err != nil {
		return fmt.Errorf("store: clear trained flag for %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes every record set and training flag.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM location_records`); err != nil {
		return fmt.Errorf("store: delete all records: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM trained_locations`); err != nil {
		return fmt.Errorf("store: clear all trained flags: %w", err)
	}
	return nil
}

// MarkTrained records that models exist for a location.
func (s *Store) MarkTrained(key string) error {
	_, err := s.db.Exec(`
		INSERT INTO trained_locations (location_key, trained_at) VALUES (?, ?)
		ON CONFLICT(location_key) DO UPDATE SET trained_at = excluded.trained_at`,
		key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: mark trained %s: %w", key, err)
	}
	return nil
}

// IsTrained reports whether models have been trained for a location.
func (s *Store) IsTrained(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM trained_locations WHERE location_key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check trained %s: %w", key, err)
	}
	return n > 0, nil
}
