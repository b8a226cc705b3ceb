package universe

import (
	"context"

	"github.com/kittclouds/lorecards/pkg/episode"
	"github.com/kittclouds/lorecards/pkg/graph"
)

// Link is one outgoing relationship of a character.
type Link struct {
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
	Since    string  `json:"since,omitempty"`
}

// NodeReport describes a character's place in the relationship graph.
type NodeReport struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	In         int     `json:"in"`
	Out        int     `json:"out"`
	Centrality float64 `json:"centrality"`
	Links      []Link  `json:"links,omitempty"`
}

// GraphReport summarises the relationship graph as of an episode.
type GraphReport struct {
	Episode  string       `json:"episode"`
	Nodes    []NodeReport `json:"nodes"`
	Edges    int          `json:"edges"`
	Orphans  []string     `json:"orphans"`
	Families [][]string   `json:"families"`
}

// GraphReport builds the graph at episodeID and reports per-character degree
// and centrality, orphans and family clusters. Nodes are ordered by id.
func (s *Service) GraphReport(ctx context.Context, episodeID string) (GraphReport, error) {
	at, err := episode.Parse(episodeID)
	if err != nil {
		return GraphReport{}, err
	}
	g, err := s.Graph(ctx, at.String())
	if err != nil {
		return GraphReport{}, err
	}
	return buildReport(at.String(), g), nil
}

func buildReport(ep string, g *graph.Graph) GraphReport {
	centrality := g.DegreeCentrality()
	r := GraphReport{
		Episode:  ep,
		Nodes:    make([]NodeReport, 0, g.NodeCount()),
		Edges:    g.EdgeCount(),
		Orphans:  []string{},
		Families: g.Clusters(graph.FamilyRelations...),
	}
	for _, n := range g.AllNodes() {
		out := g.OutgoingEdges(n.ID)
		nr := NodeReport{
			ID:         n.ID,
			Label:      n.Label,
			In:         len(g.IncomingEdges(n.ID)),
			Out:        len(out),
			Centrality: centrality[n.ID],
		}
		for _, ref := range out {
			nr.Links = append(nr.Links, Link{
				Target:   ref.Node.ID,
				Relation: ref.Edge.Relation,
				Weight:   ref.Edge.Weight,
				Since:    ref.Edge.Since,
			})
		}
		r.Nodes = append(r.Nodes, nr)
	}
	for _, n := range g.OrphanNodes() {
		r.Orphans = append(r.Orphans, n.ID)
	}
	return r
}
