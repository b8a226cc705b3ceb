// Package analysis provides high-level metrics over a run of episodes.
package analysis

import (
	"sort"

	"github.com/kittclouds/lorecards/pkg/episode"
	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/graph"
)

// ContinuityResult holds the computed stats
type ContinuityResult struct {
	Episodes  []string          `json:"episodes"`
	CastSizes []int             `json:"castSizes"`
	FlowScore float64           `json:"flowScore"` // 0-100
	FlowTrend []int             `json:"flowTrend"` // Sparkline data, one per episode
	FirstSeen map[string]string `json:"firstSeen"` // character -> first episode in range
	Absent    []string          `json:"absent"`    // characters never seen in range
}

// Analyzer computes continuity between consecutive episodes, using the
// relationship graph to credit indirect links between casts.
type Analyzer struct {
	Graph *graph.Graph
}

// NewAnalyzer creates an analyzer with access to the relationship graph
func NewAnalyzer(g *graph.Graph) *Analyzer {
	if g == nil {
		g = graph.NewGraph()
	}
	return &Analyzer{Graph: g}
}

// Continuity scores how well each episode's cast carries over from the previous one.
func (a *Analyzer) Continuity(characters []*evolution.Character, episodes []episode.ID) ContinuityResult {
	casts := castsByEpisode(characters, episodes)

	result := ContinuityResult{
		Episodes:  episode.Strings(episodes),
		CastSizes: make([]int, len(episodes)),
		FirstSeen: make(map[string]string),
		Absent:    []string{},
	}
	for i, cast := range casts {
		result.CastSizes[i] = len(cast)
		for id := range cast {
			if _, ok := result.FirstSeen[id]; !ok {
				result.FirstSeen[id] = result.Episodes[i]
			}
		}
	}
	for _, c := range characters {
		if c == nil {
			continue
		}
		if _, ok := result.FirstSeen[c.ID]; !ok {
			result.Absent = append(result.Absent, c.ID)
		}
	}
	sort.Strings(result.Absent)

	flow, trend := a.computeFlow(casts)
	// Ensure bounds 0-100
	if flow > 100 {
		flow = 100
	}
	if flow < 0 {
		flow = 0
	}
	result.FlowScore = flow
	result.FlowTrend = trend
	return result
}

func castsByEpisode(characters []*evolution.Character, episodes []episode.ID) []map[string]bool {
	index := make(map[episode.ID]int, len(episodes))
	casts := make([]map[string]bool, len(episodes))
	for i, ep := range episodes {
		index[ep] = i
		casts[i] = make(map[string]bool)
	}

	for _, c := range characters {
		if c == nil {
			continue
		}
		for _, raw := range c.Appearances {
			id, err := episode.Parse(raw)
			if err != nil {
				continue
			}
			if i, ok := index[id]; ok {
				casts[i][c.ID] = true
			}
		}
	}
	return casts
}

// computeFlow scores transitions between consecutive casts
func (a *Analyzer) computeFlow(casts []map[string]bool) (float64, []int) {
	switch len(casts) {
	case 0:
		return 0, []int{}
	case 1:
		return 100.0, []int{100}
	}

	var scores []int
	totalScore := 0.0

	// Initial score
	scores = append(scores, 100)
	totalScore += 100

	for i := 1; i < len(casts); i++ {
		prevSet := casts[i-1]
		currSet := casts[i]

		// Base friction
		score := 70

		// A. Direct continuity (shared characters)
		overlap := 0
		for id := range currSet {
			if prevSet[id] {
				overlap++
			}
		}
		if overlap > 0 {
			score += 30
		}

		// B. Graph connectivity (indirect link)
		if overlap == 0 {
			if a.connected(currSet, prevSet) {
				score += 15
			} else if len(currSet) > 0 && len(prevSet) > 0 {
				// Disconnected jump
				score -= 20
			}
		}

		// Clamp
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}

		// Smoothing: 0.7 * calc + 0.3 * prev
		prevFinal := scores[len(scores)-1]
		smoothed := int(0.7*float64(score) + 0.3*float64(prevFinal))

		scores = append(scores, smoothed)
		totalScore += float64(smoothed)
	}

	return totalScore / float64(len(scores)), scores
}

func (a *Analyzer) connected(curr, prev map[string]bool) bool {
	for id := range curr {
		for _, n := range a.Graph.Neighbors(id) {
			if prev[n.ID] {
				return true
			}
		}
	}
	return false
}
