//go:build !(js && wasm)

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/similarity"
)

// SQLiteStore is the SQLite-backed data store.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface,
// with sqlite-vec loaded for vector distance functions.
// Thread-safe for concurrent callers.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines all tables.
const schema = `
-- Characters (base roster, JSON payload)
CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Evolution rules; seq preserves application order
CREATE TABLE IF NOT EXISTS rules (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Relationships (Graph)
-- Note: No foreign keys - referential integrity managed at application level
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    weight REAL DEFAULT 1.0,
    since TEXT,
    bidirectional INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

-- Computed states; vector is JSON text consumed by sqlite-vec
CREATE TABLE IF NOT EXISTS snapshots (
    character_id TEXT NOT NULL,
    episode_id TEXT NOT NULL,
    season INTEGER NOT NULL,
    episode INTEGER NOT NULL,
    payload TEXT NOT NULL,
    vector TEXT NOT NULL,
    norm REAL NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (character_id, episode_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_episode ON snapshots(episode_id);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// VecVersion reports the loaded sqlite-vec extension version.
func (s *SQLiteStore) VecVersion() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	if err := s.db.QueryRow(`SELECT vec_version()`).Scan(&v); err != nil {
		return "", fmt.Errorf("vec_version: %w", err)
	}
	return v, nil
}

// =============================================================================
// Characters
// =============================================================================

// UpsertCharacter inserts or replaces a roster record.
func (s *SQLiteStore) UpsertCharacter(c *evolution.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode character %s: %w", c.ID, err)
	}
	now := time.Now().UnixMilli()
	_, err = s.db.Exec(`
		INSERT INTO characters (id, name, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, string(payload), now, now)
	return err
}

// GetCharacter returns nil, nil when id is unknown.
func (s *SQLiteStore) GetCharacter(id string) (*evolution.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM characters WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCharacter(payload)
}

func (s *SQLiteStore) DeleteCharacter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM characters WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListCharacters() ([]*evolution.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT payload FROM characters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*evolution.Character
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		c, err := decodeCharacter(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) CountCharacters() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM characters`).Scan(&count)
	return count, err
}

func decodeCharacter(payload string) (*evolution.Character, error) {
	var c evolution.Character
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("decode character: %w", err)
	}
	return &c, nil
}

// =============================================================================
// Rules
// =============================================================================

// AppendRules adds rules after existing ones in a single transaction.
func (s *SQLiteStore) AppendRules(rules ...evolution.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for i, r := range rules {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %d: %w", i, err)
		}
		if _, err := tx.Exec(`INSERT INTO rules (payload, created_at) VALUES (?, ?)`, string(payload), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListRules() ([]evolution.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT payload FROM rules ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []evolution.Rule{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r evolution.Rule
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ClearRules() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM rules`)
	return err
}

// =============================================================================
// Relationships
// =============================================================================

// UpsertRelationship inserts or replaces an edge, assigning an id when empty.
func (s *SQLiteStore) UpsertRelationship(r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`
		INSERT INTO relationships (id, source_id, target_id, kind, weight, since, bidirectional, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			kind = excluded.kind,
			weight = excluded.weight,
			since = excluded.since,
			bidirectional = excluded.bidirectional
	`, r.ID, r.SourceID, r.TargetID, r.Kind, r.Weight, r.Since, boolToInt(r.Bidirectional), r.CreatedAt)
	return err
}

func (s *SQLiteStore) ListRelationships() ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRelationships(`
		SELECT id, source_id, target_id, kind, weight, since, bidirectional, created_at
		FROM relationships ORDER BY created_at, id
	`)
}

func (s *SQLiteStore) ListRelationshipsForCharacter(characterID string) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRelationships(`
		SELECT id, source_id, target_id, kind, weight, since, bidirectional, created_at
		FROM relationships WHERE source_id = ? OR target_id = ?
		ORDER BY created_at, id
	`, characterID, characterID)
}

func (s *SQLiteStore) queryRelationships(query string, args ...any) ([]*Relationship, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Relationship
	for rows.Next() {
		var r Relationship
		var bidirectional int
		var since sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Kind, &r.Weight, &since, &bidirectional, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Since = since.String
		r.Bidirectional = bidirectional != 0
		result = append(result, &r)
	}
	return result, rows.Err()
}

// =============================================================================
// Snapshots
// =============================================================================

// PutSnapshot inserts or replaces the snapshot for (character, episode).
func (s *SQLiteStore) PutSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	vec, err := json.Marshal(snap.Vector)
	if err != nil {
		return fmt.Errorf("encode snapshot vector: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO snapshots
			(character_id, episode_id, season, episode, payload, vector, norm, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.CharacterID, snap.EpisodeID, snap.Season, snap.Episode,
		string(payload), string(vec), similarity.Norm(snap.Vector), snap.CreatedAt)
	return err
}

// GetSnapshot returns nil, nil when no snapshot is stored.
func (s *SQLiteStore) GetSnapshot(characterID, episodeID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps, err := s.querySnapshots(`
		SELECT character_id, episode_id, season, episode, payload, vector, created_at
		FROM snapshots WHERE character_id = ? AND episode_id = ?
	`, characterID, episodeID)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return snaps[0], nil
}

func (s *SQLiteStore) ListSnapshots(characterID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySnapshots(`
		SELECT character_id, episode_id, season, episode, payload, vector, created_at
		FROM snapshots WHERE character_id = ?
		ORDER BY season, episode
	`, characterID)
}

func (s *SQLiteStore) DeleteSnapshots(characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM snapshots WHERE character_id = ?`, characterID)
	return err
}

// NearestSnapshots ranks snapshots at episodeID by sqlite-vec cosine distance.
// Zero vectors are skipped on both sides.
func (s *SQLiteStore) NearestSnapshots(episodeID string, vector []float32, k int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || similarity.Norm(vector) == 0 {
		return nil, nil
	}
	query, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode query vector: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT character_id, vec_distance_cosine(vector, ?) AS distance
		FROM snapshots
		WHERE episode_id = ? AND norm > 0
		ORDER BY distance, character_id
		LIMIT ?
	`, string(query), episodeID, k)
	if err != nil {
		return nil, fmt.Errorf("nearest snapshots: %w", err)
	}
	defer rows.Close()

	var result []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.CharacterID, &n.Distance); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) querySnapshots(query string, args ...any) ([]*Snapshot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Snapshot
	for rows.Next() {
		var snap Snapshot
		var payload, vec string
		if err := rows.Scan(&snap.CharacterID, &snap.EpisodeID, &snap.Season, &snap.Episode, &payload, &vec, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.State = &evolution.State{}
		if err := json.Unmarshal([]byte(payload), snap.State); err != nil {
			return nil, fmt.Errorf("decode snapshot state: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &snap.Vector); err != nil {
			return nil, fmt.Errorf("decode snapshot vector: %w", err)
		}
		result = append(result, &snap)
	}
	return result, rows.Err()
}

// =============================================================================
// Helpers
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
