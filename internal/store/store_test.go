//go:build !(js && wasm)

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/lorecards/pkg/evolution"
)

// =============================================================================
// Store Factory for Testing Both Implementations
// =============================================================================

// storeFactory creates a store for testing.
// We test both MemStore and SQLiteStore with the same test suite.
type storeFactory func() (Storer, error)

func memStoreFactory() (Storer, error) {
	return NewMemStore(), nil
}

func sqliteStoreFactory() (Storer, error) {
	return NewSQLiteStore()
}

// runTestsForAllStores runs a test function against both store implementations.
func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, store Storer)) {
	factories := map[string]storeFactory{
		"MemStore":    memStoreFactory,
		"SQLiteStore": sqliteStoreFactory,
	}

	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			store, err := factory()
			require.NoError(t, err, "Failed to create store")
			defer store.Close()
			testFn(t, store)
		})
	}
}

func kiara() *evolution.Character {
	return &evolution.Character{
		ID:          "kiara",
		Name:        "Kiara Vale",
		Appearances: []string{"s01e01", "s01e02"},
		Traits:      []string{"curious"},
		ArcTags:     []string{"lead"},
		Canonical: evolution.Canonical{
			Sire:       "morrow",
			Purity:     40,
			Generation: 3,
			Marks:      []string{"crescent scar"},
		},
	}
}

// =============================================================================
// Character Tests
// =============================================================================

func TestCharacterUpsertAndGet(t *testing.T) {
	runTestsForAllStores(t, "UpsertAndGet", func(t *testing.T, store Storer) {
		c := kiara()
		require.NoError(t, store.UpsertCharacter(c))

		got, err := store.GetCharacter("kiara")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, c, got)

		// Update
		c.Name = "Kiara Morrow"
		require.NoError(t, store.UpsertCharacter(c))
		got, err = store.GetCharacter("kiara")
		require.NoError(t, err)
		assert.Equal(t, "Kiara Morrow", got.Name)

		count, err := store.CountCharacters()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestCharacterNotFound(t *testing.T) {
	runTestsForAllStores(t, "GetNotFound", func(t *testing.T, store Storer) {
		c, err := store.GetCharacter("nobody")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestCharacterListAndDelete(t *testing.T) {
	runTestsForAllStores(t, "ListAndDelete", func(t *testing.T, store Storer) {
		for _, id := range []string{"morrow", "dana", "kiara"} {
			require.NoError(t, store.UpsertCharacter(&evolution.Character{ID: id, Name: id}))
		}

		list, err := store.ListCharacters()
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "dana", list[0].ID)
		assert.Equal(t, "kiara", list[1].ID)
		assert.Equal(t, "morrow", list[2].ID)

		require.NoError(t, store.DeleteCharacter("kiara"))
		count, err := store.CountCharacters()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestCharacterIsolation(t *testing.T) {
	runTestsForAllStores(t, "Isolation", func(t *testing.T, store Storer) {
		c := kiara()
		require.NoError(t, store.UpsertCharacter(c))
		c.Traits[0] = "mutated"

		got, err := store.GetCharacter("kiara")
		require.NoError(t, err)
		assert.Equal(t, []string{"curious"}, got.Traits)
	})
}

// =============================================================================
// Rule Tests
// =============================================================================

func TestRulesPreserveOrder(t *testing.T) {
	runTestsForAllStores(t, "RuleOrder", func(t *testing.T, store Storer) {
		rules := []evolution.Rule{
			{ID: "r1", Trigger: evolution.Trigger{Type: evolution.TriggerEpisode, Condition: "s01e02"},
				Effect: evolution.Effect{Operation: evolution.OpAdd, Attribute: evolution.AttrBondStrength, Number: 10}},
			{ID: "r2", Trigger: evolution.Trigger{Type: evolution.TriggerCharacter, Condition: "kiara:s01e01"},
				Effect: evolution.Effect{Operation: evolution.OpUnlock, Attribute: evolution.AttrFeats, Text: "awakening", Label: "Awakening"}},
		}
		require.NoError(t, store.AppendRules(rules[0]))
		require.NoError(t, store.AppendRules(rules[1]))

		got, err := store.ListRules()
		require.NoError(t, err)
		assert.Equal(t, rules, got)

		require.NoError(t, store.ClearRules())
		got, err = store.ListRules()
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// =============================================================================
// Relationship Tests
// =============================================================================

func TestRelationships(t *testing.T) {
	runTestsForAllStores(t, "Relationships", func(t *testing.T, store Storer) {
		sire := &Relationship{SourceID: "morrow", TargetID: "kiara", Kind: "sire", Weight: 1, Since: "s01e02", CreatedAt: 1}
		friend := &Relationship{ID: "rel-friend", SourceID: "kiara", TargetID: "dana", Kind: "bond", Weight: 0.5, Bidirectional: true, CreatedAt: 2}
		other := &Relationship{ID: "rel-other", SourceID: "morrow", TargetID: "dana", Kind: "rival", CreatedAt: 3}

		require.NoError(t, store.UpsertRelationship(sire))
		require.NoError(t, store.UpsertRelationship(friend))
		require.NoError(t, store.UpsertRelationship(other))
		assert.NotEmpty(t, sire.ID, "an id is generated when empty")

		all, err := store.ListRelationships()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, sire.ID, all[0].ID)

		forKiara, err := store.ListRelationshipsForCharacter("kiara")
		require.NoError(t, err)
		require.Len(t, forKiara, 2)
		assert.Equal(t, "sire", forKiara[0].Kind)
		assert.Equal(t, "s01e02", forKiara[0].Since)
		assert.True(t, forKiara[1].Bidirectional)
		assert.Equal(t, 0.5, forKiara[1].Weight)

		// Upsert replaces by id.
		friend.Kind = "family"
		require.NoError(t, store.UpsertRelationship(friend))
		forKiara, err = store.ListRelationshipsForCharacter("kiara")
		require.NoError(t, err)
		assert.Equal(t, "family", forKiara[1].Kind)
	})
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func snapshotAt(t *testing.T, characterID, episodeID string, bond float64) *Snapshot {
	t.Helper()
	engine, err := evolution.NewEngine([]*evolution.Character{
		{ID: characterID, Name: characterID, Appearances: []string{"s01e01"}, Canonical: evolution.Canonical{BondStrength: bond, Intensity: 50, Purity: 30}},
	}, nil)
	require.NoError(t, err)
	s, err := engine.CalculateState(characterID, episodeID)
	require.NoError(t, err)
	return NewSnapshot(s)
}

func TestSnapshotPutGetList(t *testing.T) {
	runTestsForAllStores(t, "Snapshots", func(t *testing.T, store Storer) {
		require.NoError(t, store.PutSnapshot(snapshotAt(t, "kiara", "s02e01", 10)))
		require.NoError(t, store.PutSnapshot(snapshotAt(t, "kiara", "s01e03", 10)))
		require.NoError(t, store.PutSnapshot(snapshotAt(t, "dana", "s01e03", 10)))

		got, err := store.GetSnapshot("kiara", "s01e03")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "kiara", got.State.CharacterID)
		assert.Equal(t, float64(14), got.State.Metrics.Presence)
		assert.Equal(t, float64(10), got.State.Metrics.BondStrength)
		assert.Len(t, got.Vector, 5)

		missing, err := store.GetSnapshot("kiara", "s09e09")
		require.NoError(t, err)
		assert.Nil(t, missing)

		list, err := store.ListSnapshots("kiara")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "s01e03", list[0].EpisodeID)
		assert.Equal(t, "s02e01", list[1].EpisodeID)

		require.NoError(t, store.DeleteSnapshots("kiara"))
		list, err = store.ListSnapshots("kiara")
		require.NoError(t, err)
		assert.Empty(t, list)

		list, err = store.ListSnapshots("dana")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestNearestSnapshots(t *testing.T) {
	runTestsForAllStores(t, "Nearest", func(t *testing.T, store Storer) {
		near := snapshotAt(t, "near", "s01e01", 20)
		far := snapshotAt(t, "far", "s01e01", 95)
		elsewhere := snapshotAt(t, "elsewhere", "s01e02", 20)
		for _, s := range []*Snapshot{near, far, elsewhere} {
			require.NoError(t, store.PutSnapshot(s))
		}

		query := snapshotAt(t, "query", "s01e01", 21).Vector
		got, err := store.NearestSnapshots("s01e01", query, 5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "near", got[0].CharacterID)
		assert.Equal(t, "far", got[1].CharacterID)
		assert.Less(t, got[0].Distance, got[1].Distance)

		got, err = store.NearestSnapshots("s01e01", query, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = store.NearestSnapshots("s01e01", []float32{0, 0, 0, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
