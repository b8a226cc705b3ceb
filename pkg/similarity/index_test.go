package similarity

import (
	"errors"
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/lorecards/pkg/evolution"
)

func TestIndex_RoundTrip(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	// 1. Create and record
	{
		x := NewIndex(fs, "index.bin")
		require.NoError(t, x.Add("kiara", []float32{0.1, 0.2, 0.3, 0.05}))
		require.NoError(t, x.Add("morrow", []float32{0.9, 0.1, 0.0, 0.9}))
		require.NoError(t, x.Add("dana", []float32{0.1, 0.21, 0.31, 0.05}))
		require.NoError(t, x.Save())
	}

	// 2. Load and query
	{
		x, err := OpenIndex(fs, "index.bin")
		require.NoError(t, err)
		assert.Equal(t, 3, x.Len())
		assert.True(t, x.Contains("dana"))

		results, err := x.Search([]float32{0.1, 0.2, 0.3, 0.05}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "kiara", results[0].CharacterID)
		assert.InDelta(t, 0, results[0].Distance, 1e-6)
		assert.Equal(t, "dana", results[1].CharacterID)
	}
}

func TestIndex_Similar(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	x := NewIndex(fs, "index.bin")

	states := []*evolution.State{
		{CharacterID: "kiara", Metrics: evolution.Metrics{Presence: 40, AverageIntensity: 60, BondStrength: 30}, Bloodline: evolution.Bloodline{Purity: 40}},
		{CharacterID: "dana", Metrics: evolution.Metrics{Presence: 42, AverageIntensity: 58, BondStrength: 31}, Bloodline: evolution.Bloodline{Purity: 38}},
		{CharacterID: "morrow", Metrics: evolution.Metrics{Presence: 5, SocialStanding: 95}, Bloodline: evolution.Bloodline{Purity: 100}},
	}
	for _, st := range states {
		require.NoError(t, x.AddState(st))
	}

	similar, err := x.Similar("kiara", 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "dana", similar[0].CharacterID)

	_, err = x.Similar("nobody", 1)
	assert.Error(t, err)
}

func TestIndex_Errors(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	x := NewIndex(fs, "index.bin")

	got, err := x.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, x.Add("kiara", []float32{1, 0, 0}))
	err = x.Add("kiara", []float32{0, 1, 0})
	assert.True(t, errors.Is(err, ErrDuplicate))

	assert.Error(t, x.Add("dana", []float32{1, 0}))
	_, err = x.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestOpenIndex_Missing(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	x, err := OpenIndex(fs, "missing.bin")
	require.NoError(t, err)
	assert.Equal(t, 0, x.Len())
}

func TestIndex_OddDimensions(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	for _, dim := range []int{3, 5, 8} {
		x := NewIndex(fs, "index.bin")
		a := make([]float32, dim)
		b := make([]float32, dim)
		c := make([]float32, dim)
		a[0], b[0], c[dim-1] = 1, 0.9, 1
		b[1] = 0.1
		require.NoError(t, x.Add("a", a))
		require.NoError(t, x.Add("b", b))
		require.NoError(t, x.Add("c", c))

		got, err := x.Similar("a", 1)
		require.NoError(t, err, "dim %d", dim)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].CharacterID, "dim %d", dim)
	}
}

func TestIndex_ZeroVectors(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	x := NewIndex(fs, "index.bin")

	require.NoError(t, x.Add("a", []float32{0, 0, 0, 0}))
	require.NoError(t, x.Add("b", []float32{1, 0, 0, 0}))
	require.NoError(t, x.Add("c", []float32{0, 0, 0, 0}))
	require.NoError(t, x.Add("d", []float32{0.9, 0.1, 0, 0}))
	assert.Equal(t, 4, x.Len())
	assert.True(t, x.Contains("a"))

	got, err := x.Similar("b", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].CharacterID)

	got, err = x.Similar("a", 2)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = x.Search([]float32{0, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Zero entries survive a save/load cycle without entering the graph.
	require.NoError(t, x.Save())
	y, err := OpenIndex(fs, "index.bin")
	require.NoError(t, err)
	assert.Equal(t, 4, y.Len())
	got, err = y.Similar("b", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].CharacterID)
}

func TestIndex_OnlyZeroVectors(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	x := NewIndex(fs, "index.bin")
	require.NoError(t, x.Add("a", []float32{0, 0, 0}))

	got, err := x.Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, x.Save())
	y, err := OpenIndex(fs, "index.bin")
	require.NoError(t, err)
	assert.Equal(t, 1, y.Len())
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, float64(1), CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, float64(2), CosineDistance([]float32{1}, []float32{1, 0}))
	assert.InDelta(t, 5, Norm([]float32{3, 4}), 1e-9)
}
