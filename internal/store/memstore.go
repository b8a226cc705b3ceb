// Package store provides persistence for lorecards.
// This file contains the in-memory implementation used in tests and the WASM build.
package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/similarity"
)

// MemStore is an in-memory implementation of Storer.
type MemStore struct {
	mu            sync.RWMutex
	characters    map[string]*evolution.Character
	rules         []evolution.Rule
	relationships map[string]*Relationship
	snapshots     map[string]*Snapshot // "characterID:episodeID"
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		characters:    make(map[string]*evolution.Character),
		relationships: make(map[string]*Relationship),
		snapshots:     make(map[string]*Snapshot),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Characters
// =============================================================================

func (s *MemStore) UpsertCharacter(c *evolution.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.characters[c.ID] = copyCharacter(c)
	return nil
}

func (s *MemStore) GetCharacter(id string) (*evolution.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.characters[id]; ok {
		return copyCharacter(c), nil
	}
	return nil, nil
}

func (s *MemStore) DeleteCharacter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.characters, id)
	return nil
}

func (s *MemStore) ListCharacters() ([]*evolution.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*evolution.Character, 0, len(s.characters))
	for _, c := range s.characters {
		result = append(result, copyCharacter(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemStore) CountCharacters() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.characters), nil
}

// copyCharacter deep copies slices so stored records cannot be mutated by callers.
func copyCharacter(c *evolution.Character) *evolution.Character {
	cp := *c
	cp.Appearances = slices.Clone(c.Appearances)
	cp.Traits = slices.Clone(c.Traits)
	cp.ArcTags = slices.Clone(c.ArcTags)
	cp.Canonical.Marks = slices.Clone(c.Canonical.Marks)
	cp.Canonical.Progeny = slices.Clone(c.Canonical.Progeny)
	return &cp
}

// =============================================================================
// Rules
// =============================================================================

func (s *MemStore) AppendRules(rules ...evolution.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rules {
		r.Effect.Values = slices.Clone(r.Effect.Values)
		s.rules = append(s.rules, r)
	}
	return nil
}

func (s *MemStore) ListRules() ([]evolution.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]evolution.Rule, len(s.rules))
	for i, r := range s.rules {
		r.Effect.Values = slices.Clone(r.Effect.Values)
		result[i] = r
	}
	return result, nil
}

func (s *MemStore) ClearRules() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = nil
	return nil
}

// =============================================================================
// Relationships
// =============================================================================

func (s *MemStore) UpsertRelationship(r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	cp := *r
	s.relationships[r.ID] = &cp
	return nil
}

func (s *MemStore) ListRelationships() ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterRelationships(func(*Relationship) bool { return true }), nil
}

func (s *MemStore) ListRelationshipsForCharacter(characterID string) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterRelationships(func(r *Relationship) bool {
		return r.SourceID == characterID || r.TargetID == characterID
	}), nil
}

func (s *MemStore) filterRelationships(keep func(*Relationship) bool) []*Relationship {
	var result []*Relationship
	for _, r := range s.relationships {
		if keep(r) {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// =============================================================================
// Snapshots
// =============================================================================

func (s *MemStore) PutSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixMilli()
	}
	s.snapshots[snap.CharacterID+":"+snap.EpisodeID] = copySnapshot(snap)
	return nil
}

func (s *MemStore) GetSnapshot(characterID, episodeID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if snap, ok := s.snapshots[characterID+":"+episodeID]; ok {
		return copySnapshot(snap), nil
	}
	return nil, nil
}

func (s *MemStore) ListSnapshots(characterID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Snapshot
	for _, snap := range s.snapshots {
		if snap.CharacterID == characterID {
			result = append(result, copySnapshot(snap))
		}
	}
	sortSnapshots(result)
	return result, nil
}

func (s *MemStore) DeleteSnapshots(characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, snap := range s.snapshots {
		if snap.CharacterID == characterID {
			delete(s.snapshots, key)
		}
	}
	return nil
}

func (s *MemStore) NearestSnapshots(episodeID string, vector []float32, k int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || similarity.Norm(vector) == 0 {
		return nil, nil
	}

	var result []Neighbor
	for _, snap := range s.snapshots {
		if snap.EpisodeID != episodeID || similarity.Norm(snap.Vector) == 0 {
			continue
		}
		result = append(result, Neighbor{
			CharacterID: snap.CharacterID,
			Distance:    similarity.CosineDistance(snap.Vector, vector),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].CharacterID < result[j].CharacterID
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

func copySnapshot(snap *Snapshot) *Snapshot {
	cp := *snap
	cp.Vector = slices.Clone(snap.Vector)
	if snap.State != nil {
		cp.State = snap.State.Clone()
	}
	return &cp
}

func sortSnapshots(snaps []*Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Season != snaps[j].Season {
			return snaps[i].Season < snaps[j].Season
		}
		return snaps[i].Episode < snaps[j].Episode
	})
}
