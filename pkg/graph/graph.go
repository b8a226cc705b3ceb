// Package graph provides a lightweight directed relationship graph between characters.
// One edge is kept per ordered pair; adding another edge for the same pair replaces it.
package graph

import (
	"sort"
	"strings"
)

// Relation labels. Relations are stored upper-cased.
const (
	RelFamily = "FAMILY"
	RelSired  = "SIRED"
	RelBond   = "BOND"
	RelRival  = "RIVAL"
)

// FamilyRelations are the relations that define a family cluster.
var FamilyRelations = []string{RelFamily, RelSired}

// Node represents a character in the graph
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Edge represents a relationship between characters
type Edge struct {
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
	Since    string  `json:"since,omitempty"` // episode id
}

// EdgeRef pairs an edge with the node on its other end.
type EdgeRef struct {
	Node *Node
	Edge *Edge
}

// Graph is a directed relationship graph
type Graph struct {
	// Node storage: ID -> Node
	Nodes map[string]*Node `json:"nodes"`

	// Adjacency lists: SourceID -> TargetID -> Edge
	Outbound map[string]map[string]*Edge `json:"outbound"`
	Inbound  map[string]map[string]*Edge `json:"inbound"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Outbound: make(map[string]map[string]*Edge),
		Inbound:  make(map[string]map[string]*Edge),
	}
}

// EnsureNode adds a node if it doesn't exist, returns existing node otherwise
func (g *Graph) EnsureNode(id, label, kind string) *Node {
	if existing, exists := g.Nodes[id]; exists {
		return existing
	}

	node := &Node{
		ID:    id,
		Label: label,
		Kind:  kind,
	}
	g.Nodes[id] = node
	return node
}

// AddEdge creates a directed edge from source to target
func (g *Graph) AddEdge(sourceID, targetID string, edge *Edge) {
	edge.Relation = strings.ToUpper(edge.Relation)

	if g.Outbound[sourceID] == nil {
		g.Outbound[sourceID] = make(map[string]*Edge)
	}
	g.Outbound[sourceID][targetID] = edge

	// Maintain reverse index
	if g.Inbound[targetID] == nil {
		g.Inbound[targetID] = make(map[string]*Edge)
	}
	g.Inbound[targetID][sourceID] = edge
}

// Connect ensures both nodes exist, then adds an edge
func (g *Graph) Connect(sourceID, targetID, relation string, weight float64) *Edge {
	g.EnsureNode(sourceID, sourceID, "CHARACTER")
	g.EnsureNode(targetID, targetID, "CHARACTER")

	edge := &Edge{Relation: relation, Weight: weight}
	g.AddEdge(sourceID, targetID, edge)
	return edge
}

// HasEdge reports whether a source->target edge exists
func (g *Graph) HasEdge(sourceID, targetID string) bool {
	_, ok := g.Outbound[sourceID][targetID]
	return ok
}

// GetNode retrieves a node by ID
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// OutgoingEdges returns all edges originating from a node, ordered by target id
func (g *Graph) OutgoingEdges(id string) []EdgeRef {
	return g.refs(g.Outbound[id])
}

// IncomingEdges returns all edges pointing to a node, ordered by source id
func (g *Graph) IncomingEdges(id string) []EdgeRef {
	return g.refs(g.Inbound[id])
}

func (g *Graph) refs(edges map[string]*Edge) []EdgeRef {
	if edges == nil {
		return nil
	}
	result := make([]EdgeRef, 0, len(edges))
	for otherID, edge := range edges {
		if other := g.Nodes[otherID]; other != nil {
			result = append(result, EdgeRef{Node: other, Edge: edge})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Node.ID < result[j].Node.ID })
	return result
}

// Neighbors returns all nodes connected to the given node (both directions), ordered by id
func (g *Graph) Neighbors(id string) []*Node {
	seen := make(map[string]bool)
	var result []*Node

	for _, adj := range []map[string]*Edge{g.Outbound[id], g.Inbound[id]} {
		for otherID := range adj {
			if seen[otherID] {
				continue
			}
			seen[otherID] = true
			if node := g.Nodes[otherID]; node != nil {
				result = append(result, node)
			}
		}
	}
	sortNodes(result)
	return result
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.Outbound {
		count += len(targets)
	}
	return count
}

// AllNodes returns all nodes ordered by id
func (g *Graph) AllNodes() []*Node {
	result := make([]*Node, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		result = append(result, node)
	}
	sortNodes(result)
	return result
}

// DegreeCentrality computes (in+out)/(2*(n-1)) for each node
func (g *Graph) DegreeCentrality() map[string]float64 {
	n := len(g.Nodes)
	if n <= 1 {
		result := make(map[string]float64)
		for id := range g.Nodes {
			result[id] = 0.0
		}
		return result
	}

	normalizer := 2.0 * float64(n-1)
	result := make(map[string]float64, n)

	for id := range g.Nodes {
		outDegree := len(g.Outbound[id])
		inDegree := len(g.Inbound[id])
		result[id] = float64(outDegree+inDegree) / normalizer
	}

	return result
}

// OrphanNodes returns nodes with no connections, ordered by id
func (g *Graph) OrphanNodes() []*Node {
	var orphans []*Node
	for id, node := range g.Nodes {
		if len(g.Outbound[id]) == 0 && len(g.Inbound[id]) == 0 {
			orphans = append(orphans, node)
		}
	}
	sortNodes(orphans)
	return orphans
}

// Clusters returns connected components over edges whose relation is in
// relations, ignoring direction. Nodes without such an edge are left out.
// Each cluster is sorted; clusters are ordered by size, then first id.
func (g *Graph) Clusters(relations ...string) [][]string {
	allowed := make(map[string]bool, len(relations))
	for _, r := range relations {
		allowed[strings.ToUpper(r)] = true
	}

	adj := make(map[string][]string)
	for src, targets := range g.Outbound {
		for tgt, edge := range targets {
			if len(allowed) > 0 && !allowed[edge.Relation] {
				continue
			}
			adj[src] = append(adj[src], tgt)
			adj[tgt] = append(adj[tgt], src)
		}
	}

	visited := make(map[string]bool)
	var clusters [][]string
	for start := range adj {
		if visited[start] {
			continue
		}
		var cluster []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cluster = append(cluster, cur)
			for _, next := range adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Strings(cluster)
		clusters = append(clusters, cluster)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}
