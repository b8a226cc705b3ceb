// Package lineage projects bloodline relations recorded on character states
// into the relationship graph.
package lineage

import (
	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/graph"
)

// Kind is the node kind used for characters created by lineage projection.
const Kind = "CHARACTER"

// AddLineageEdges adds a SIRED edge from each sire to its progeny, taken
// from both the Sire and Progeny fields of every state. Missing nodes are
// created with the id as label. Returns the number of new edges.
func AddLineageEdges(g *graph.Graph, states []*evolution.State) int {
	labels := make(map[string]string, len(states))
	for _, st := range states {
		if st != nil {
			labels[st.CharacterID] = st.Name
		}
	}

	ensure := func(id string) {
		label := labels[id]
		if label == "" {
			label = id
		}
		g.EnsureNode(id, label, Kind)
	}

	added := 0
	link := func(sire, child, since string) {
		if sire == "" || child == "" || sire == child {
			return
		}
		ensure(sire)
		ensure(child)
		if g.HasEdge(sire, child) {
			if existing := g.Outbound[sire][child]; existing.Relation == graph.RelSired {
				return
			}
		} else {
			added++
		}
		g.AddEdge(sire, child, &graph.Edge{Relation: graph.RelSired, Weight: 1.0, Since: since})
	}

	for _, st := range states {
		if st == nil {
			continue
		}
		ensure(st.CharacterID)
		link(st.Bloodline.Sire, st.CharacterID, st.EpisodeID)
		for _, child := range st.Bloodline.Progeny {
			link(st.CharacterID, child, st.EpisodeID)
		}
	}
	return added
}
