// Package similarity finds characters whose state vectors are close to each
// other, using an HNSW index with a cosine surface.
package similarity

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	"github.com/hack-pad/hackpadfs"
	kvector "github.com/kshard/vector"

	"github.com/kittclouds/lorecards/pkg/evolution"
)

// ErrDuplicate is returned when a character is added to an index twice.
var ErrDuplicate = errors.New("character already indexed")

// Match is a search hit.
type Match struct {
	CharacterID string  `json:"characterId"`
	Distance    float64 `json:"distance"`
}

// Index is a nearest-neighbour index over character state vectors.
// Keys are assigned in insertion order and mapped back to character ids.
// Zero vectors are remembered but never enter the HNSW graph, since their
// cosine distance is undefined.
type Index struct {
	mu       sync.RWMutex
	hnsw     *hnsw.HNSW[vector.VF32]
	dim      int
	inserted int
	ids      []string
	keys     map[string]uint32
	vecs     map[uint32][]float32
	fs       hackpadfs.FS
	path     string
}

// persisted is the gob payload written by Save.
type persisted struct {
	Nodes hnsw.Nodes[vector.VF32]
	Dim   int
	IDs   []string
	Vecs  map[uint32][]float32
}

func newSurface() *hnsw.HNSW[vector.VF32] {
	return hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine()))
}

// NewIndex creates an empty index that persists to path on fs.
func NewIndex(fs hackpadfs.FS, path string) *Index {
	return &Index{
		hnsw: newSurface(),
		keys: make(map[string]uint32),
		vecs: make(map[uint32][]float32),
		fs:   fs,
		path: path,
	}
}

// Len returns the number of indexed characters.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Contains reports whether the character is indexed.
func (x *Index) Contains(characterID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.keys[characterID]
	return ok
}

// Vector returns a copy of the vector indexed for a character.
func (x *Index) Vector(characterID string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	key, ok := x.keys[characterID]
	if !ok {
		return nil, false
	}
	return slices.Clone(x.vecs[key][:x.dim]), true
}

// AddState indexes a state under its character id.
func (x *Index) AddState(st *evolution.State) error {
	return x.Add(st.CharacterID, st.Vector())
}

// Add inserts a vector for a character.
// Returns error if the vector dimension doesn't match existing entries.
func (x *Index) Add(characterID string, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.keys[characterID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, characterID)
	}
	if err := x.checkDim(vec); err != nil {
		return err
	}
	if len(x.ids) == 0 {
		x.dim = len(vec)
	}

	key := uint32(len(x.ids))
	v := pad(vec)
	if Norm(v) > 0 {
		x.hnsw.Insert(vector.VF32{Key: key, Vec: v})
		x.inserted++
	}
	x.ids = append(x.ids, characterID)
	x.keys[characterID] = key
	x.vecs[key] = v
	return nil
}

func (x *Index) checkDim(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	if len(x.ids) > 0 && len(vec) != x.dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", x.dim, len(vec))
	}
	return nil
}

// pad copies vec, zero-extended to a multiple of 4 as the cosine kernel requires.
func pad(vec []float32) []float32 {
	n := (len(vec) + 3) / 4 * 4
	out := make([]float32, n)
	copy(out, vec)
	return out
}

// Search returns up to k nearest characters, closest first.
// A zero query vector matches nothing.
func (x *Index) Search(vec []float32, k int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.ids) == 0 {
		return nil, nil
	}
	if err := x.checkDim(vec); err != nil {
		return nil, err
	}
	q := pad(vec)
	if x.inserted == 0 || Norm(q) == 0 {
		return nil, nil
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}

	results := x.hnsw.Search(vector.VF32{Vec: q}, k, ef)
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if int(r.Key) >= len(x.ids) {
			continue
		}
		matches = append(matches, Match{
			CharacterID: x.ids[r.Key],
			Distance:    CosineDistance(q, x.vecs[r.Key]),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].CharacterID < matches[j].CharacterID
	})
	return matches, nil
}

// Similar returns up to k characters nearest to an indexed character,
// excluding the character itself.
func (x *Index) Similar(characterID string, k int) ([]Match, error) {
	x.mu.RLock()
	key, ok := x.keys[characterID]
	var vec []float32
	if ok {
		vec = x.vecs[key][:x.dim]
	}
	x.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("character %q not indexed", characterID)
	}

	matches, err := x.Search(vec, k+1)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if m.CharacterID != characterID {
			out = append(out, m)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Save persists the index to its path.
func (x *Index) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	payload := persisted{
		Dim:  x.dim,
		IDs:  x.ids,
		Vecs: x.vecs,
	}
	if x.inserted > 0 {
		payload.Nodes = x.hnsw.Nodes()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := hackpadfs.WriteFullFile(x.fs, x.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory index with the one stored at its path.
func (x *Index) Load() error {
	content, err := hackpadfs.ReadFile(x.fs, x.path)
	if err != nil {
		return err
	}

	var payload persisted
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.ids = payload.IDs
	x.dim = payload.Dim
	x.vecs = payload.Vecs
	if x.vecs == nil {
		x.vecs = make(map[uint32][]float32)
	}
	x.keys = make(map[string]uint32, len(x.ids))
	x.inserted = 0
	for i, id := range x.ids {
		x.keys[id] = uint32(i)
		if Norm(x.vecs[uint32(i)]) > 0 {
			x.inserted++
		}
	}

	if x.inserted == 0 {
		x.hnsw = newSurface()
	} else {
		x.hnsw = hnsw.FromNodes[vector.VF32](vector.SurfaceVF32(kvector.Cosine()), payload.Nodes)
	}
	return nil
}

// OpenIndex loads the index at path, or returns an empty one if no file exists.
func OpenIndex(fs hackpadfs.FS, path string) (*Index, error) {
	x := NewIndex(fs, path)
	if err := x.Load(); err != nil {
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return x, nil
		}
		return nil, err
	}
	return x, nil
}
