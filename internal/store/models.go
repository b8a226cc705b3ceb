// Package store provides persistence for the lorecards roster, evolution rules,
// relationships and computed state snapshots.
package store

import "github.com/kittclouds/lorecards/pkg/evolution"

// Relationship is a directed edge between two characters.
type Relationship struct {
	ID            string  `json:"id"`
	SourceID      string  `json:"sourceId"`
	TargetID      string  `json:"targetId"`
	Kind          string  `json:"kind"` // "family" | "sire" | "bond" | "rival" | ...
	Weight        float64 `json:"weight"`
	Since         string  `json:"since,omitempty"` // episode id the relationship starts
	Bidirectional bool    `json:"bidirectional"`
	CreatedAt     int64   `json:"createdAt"`
}

// Snapshot is a persisted state for one (character, episode) pair.
type Snapshot struct {
	CharacterID string           `json:"characterId"`
	EpisodeID   string           `json:"episodeId"`
	Season      int              `json:"season"`
	Episode     int              `json:"episode"`
	State       *evolution.State `json:"state"`
	Vector      []float32        `json:"vector"`
	CreatedAt   int64            `json:"createdAt"`
}

// Neighbor is a snapshot ranked by cosine distance to a query vector.
type Neighbor struct {
	CharacterID string  `json:"characterId"`
	Distance    float64 `json:"distance"`
}

// Storer defines the interface for data persistence.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Characters
	UpsertCharacter(c *evolution.Character) error
	GetCharacter(id string) (*evolution.Character, error)
	DeleteCharacter(id string) error
	ListCharacters() ([]*evolution.Character, error)
	CountCharacters() (int, error)

	// Rules (ordered by insertion)
	AppendRules(rules ...evolution.Rule) error
	ListRules() ([]evolution.Rule, error)
	ClearRules() error

	// Relationships
	UpsertRelationship(r *Relationship) error
	ListRelationships() ([]*Relationship, error)
	ListRelationshipsForCharacter(characterID string) ([]*Relationship, error)

	// Snapshots
	PutSnapshot(s *Snapshot) error
	GetSnapshot(characterID, episodeID string) (*Snapshot, error)
	ListSnapshots(characterID string) ([]*Snapshot, error)
	DeleteSnapshots(characterID string) error
	NearestSnapshots(episodeID string, vector []float32, k int) ([]Neighbor, error)

	// Lifecycle
	Close() error
}

// NewSnapshot builds a Snapshot from a computed state.
func NewSnapshot(s *evolution.State) *Snapshot {
	return &Snapshot{
		CharacterID: s.CharacterID,
		EpisodeID:   s.EpisodeID,
		Season:      s.Season,
		Episode:     s.Episode,
		State:       s,
		Vector:      s.Vector(),
	}
}
