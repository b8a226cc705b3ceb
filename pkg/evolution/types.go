// Package evolution derives per-episode character snapshots from a base roster
// and an ordered list of evolution rules.
//
// The Engine builds a baseline from a character's canonical record, applies every
// rule whose trigger has been reached by the queried episode, and caches the
// result under "characterID:episodeID" until ClearCache is called.
package evolution

import "slices"

// =============================================================================
// Base roster
// =============================================================================

// Character is an immutable base record supplied by the caller.
// The engine keeps a reference to it; callers must not mutate it afterwards.
type Character struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Canonical   Canonical `json:"canonical" yaml:"canonical"`
	Appearances []string  `json:"appearances" yaml:"appearances"`
	Traits      []string  `json:"traits,omitempty" yaml:"traits"`
	ArcTags     []string  `json:"arcTags,omitempty" yaml:"arcTags"`
}

// Canonical holds the story-bible facts a baseline state is derived from.
type Canonical struct {
	Species string `json:"species,omitempty" yaml:"species"`

	Rank   string `json:"rank,omitempty" yaml:"rank"`
	Year   string `json:"year,omitempty" yaml:"year"`
	Status string `json:"status,omitempty" yaml:"status"`

	Form      string   `json:"form,omitempty" yaml:"form"`
	Condition string   `json:"condition,omitempty" yaml:"condition"`
	Marks     []string `json:"marks,omitempty" yaml:"marks"`

	Purity     float64  `json:"purity,omitempty" yaml:"purity"`
	Generation int      `json:"generation,omitempty" yaml:"generation"`
	Sire       string   `json:"sire,omitempty" yaml:"sire"`
	Progeny    []string `json:"progeny,omitempty" yaml:"progeny"`

	// Baseline metrics before any rule fires.
	Intensity      float64 `json:"intensity,omitempty" yaml:"intensity"`
	BondStrength   float64 `json:"bondStrength,omitempty" yaml:"bondStrength"`
	SocialStanding float64 `json:"socialStanding,omitempty" yaml:"socialStanding"`

	Tier int `json:"tier,omitempty" yaml:"tier"`
}

// =============================================================================
// Derived state
// =============================================================================

// State is the derived snapshot of a character at one episode.
type State struct {
	EpisodeID   string `json:"episodeId"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	CharacterID string `json:"characterId"`
	Name        string `json:"name"`
	Species     string `json:"species"`

	Metrics        Metrics        `json:"metrics"`
	Classification Classification `json:"classification"`
	Physical       Physical       `json:"physical"`
	Bloodline      Bloodline      `json:"bloodline"`
	Feats          []Feat         `json:"feats"`
	Traits         []string       `json:"traits"`
	Visual         Visual         `json:"visual"`
}

// Metrics are the four numeric gauges shown on a character card.
type Metrics struct {
	Presence         float64 `json:"presence"` // 0-100
	AverageIntensity float64 `json:"averageIntensity"`
	BondStrength     float64 `json:"bondStrength"`
	SocialStanding   float64 `json:"socialStanding"`
}

type Classification struct {
	Role   string `json:"role"`
	Rank   string `json:"rank,omitempty"`
	Year   string `json:"year,omitempty"`
	Status string `json:"status,omitempty"`
}

type Physical struct {
	Form      string   `json:"form,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Marks     []string `json:"marks,omitempty"`
}

type Bloodline struct {
	Purity     float64  `json:"purity"` // 0-100
	Generation int      `json:"generation"`
	Sire       string   `json:"sire,omitempty"`
	Progeny    []string `json:"progeny,omitempty"`
}

// Feat is a narrative milestone, unlocked at most once per state.
type Feat struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	UnlockedAt string `json:"unlockedAt"`
}

type Visual struct {
	Tier int `json:"tier"`
	Wear int `json:"wear"`
}

// Key returns the cache key for the state.
func (s *State) Key() string {
	return cacheKey(s.CharacterID, s.EpisodeID)
}

// HasFeat reports whether a feat with id has been unlocked.
func (s *State) HasFeat(id string) bool {
	for _, f := range s.Feats {
		if f.ID == id {
			return true
		}
	}
	return false
}

// VectorDim is the length of a state embedding. The last three slots are
// zero padding so the vector stays a multiple of 4.
const VectorDim = 8

// Vector projects the numeric gauges onto a unit-scaled embedding used for
// similarity search.
func (s *State) Vector() []float32 {
	v := make([]float32, VectorDim)
	v[0] = float32(s.Metrics.Presence / 100)
	v[1] = float32(s.Metrics.AverageIntensity / 100)
	v[2] = float32(s.Metrics.BondStrength / 100)
	v[3] = float32(s.Metrics.SocialStanding / 100)
	v[4] = float32(s.Bloodline.Purity / 100)
	return v
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Physical.Marks = slices.Clone(s.Physical.Marks)
	c.Bloodline.Progeny = slices.Clone(s.Bloodline.Progeny)
	c.Feats = slices.Clone(s.Feats)
	c.Traits = slices.Clone(s.Traits)
	return &c
}

func cacheKey(characterID, episodeID string) string {
	return characterID + ":" + episodeID
}
