// Package cooccurrence turns batches of TPMS readings into a weighted undirected
// graph over sensor ids. Two sensors gain edge weight every time they are heard at
// the same location within a short time of each other.
package cooccurrence

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Edge is an undirected co-occurrence edge. A is always lexicographically before B.
type Edge struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Weight int    `json:"weight"`
}

// Graph is an immutable co-occurrence graph. Sensor ids are mapped onto gonum node
// ids in lexicographic order, so every listing it returns is deterministic.
type Graph struct {
	g     *simple.WeightedUndirectedGraph
	names []string         // gonum node id -> sensor id
	index map[string]int64 // sensor id -> gonum node id
}

// NewGraph builds a graph over the given sensors and edge weights. Edges naming a
// sensor that is not in the node list add that sensor. Non-positive weights and
// self pairs are ignored.
func NewGraph(sensors []string, edges []Edge) *Graph {
	seen := make(map[string]struct{}, len(sensors))
	for _, s := range sensors {
		seen[s] = struct{}{}
	}
	for _, e := range edges {
		seen[e.A] = struct{}{}
		seen[e.B] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for s := range seen {
		names = append(names, s)
	}
	sort.Strings(names)

	index := make(map[string]int64, len(names))
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i, s := range names {
		index[s] = int64(i)
		g.AddNode(simple.Node(i))
	}

	for _, e := range edges {
		if e.Weight <= 0 || e.A == e.B {
			continue
		}
		u, v := index[e.A], index[e.B]
		w := float64(e.Weight)
		if existing, ok := g.Weight(u, v); ok {
			w += existing
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(u), T: simple.Node(v), W: w})
	}

	return &Graph{g: g, names: names, index: index}
}

// NodeCount returns the number of sensors in the graph
func (c *Graph) NodeCount() int {
	return c.g.Nodes().Len()
}

// EdgeCount returns the number of distinct sensor pairs with positive weight
func (c *Graph) EdgeCount() int {
	return c.g.WeightedEdges().Len()
}

// HasNode reports whether the sensor is in the graph
func (c *Graph) HasNode(sensor string) bool {
	id, ok := c.index[sensor]
	return ok && c.g.Node(id) != nil
}

// Nodes returns every sensor id in lexicographic order
func (c *Graph) Nodes() []string {
	nodes := graph.NodesOf(c.g.Nodes())
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.names[n.ID()])
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge ordered by (A, B)
func (c *Graph) Edges() []Edge {
	var out []Edge
	it := c.g.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		a, b := c.names[e.From().ID()], c.names[e.To().ID()]
		if b < a {
			a, b = b, a
		}
		out = append(out, Edge{A: a, B: b, Weight: toInt(e.Weight())})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Weight returns the co-occurrence count between two sensors, 0 when there is no edge
func (c *Graph) Weight(a, b string) int {
	if a == b {
		return 0
	}
	u, ok := c.index[a]
	if !ok {
		return 0
	}
	v, ok := c.index[b]
	if !ok {
		return 0
	}
	if e := c.g.WeightedEdge(u, v); e != nil {
		return toInt(e.Weight())
	}
	return 0
}

// Neighbors returns the sensors sharing an edge with sensor, in lexicographic order
func (c *Graph) Neighbors(sensor string) []string {
	id, ok := c.index[sensor]
	if !ok || c.g.Node(id) == nil {
		return nil
	}
	nodes := graph.NodesOf(c.g.From(id))
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.names[n.ID()])
	}
	sort.Strings(out)
	return out
}

// SubgraphWeight sums the edge weights among the given sensors
func (c *Graph) SubgraphWeight(members []string) int {
	total := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += c.Weight(members[i], members[j])
		}
	}
	return total
}

// Prune returns a new graph without the edges lighter than threshold and
// without the nodes those removals leave isolated.
func (c *Graph) Prune(threshold int) *Graph {
	var kept []Edge
	for _, e := range c.Edges() {
		if e.Weight >= threshold {
			kept = append(kept, e)
		}
	}
	return NewGraph(nil, kept)
}

// Cliques enumerates the maximal cliques of the graph with Bron-Kerbosch. Members
// of each clique are sorted and cliques are ordered lexicographically.
func (c *Graph) Cliques() [][]string {
	raw := topo.BronKerbosch(c.g)
	out := make([][]string, 0, len(raw))
	for _, clique := range raw {
		members := make([]string, 0, len(clique))
		for _, n := range clique {
			members = append(members, c.names[n.ID()])
		}
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessMembers(out[i], out[j])
	})
	return out
}

// lessMembers orders two sorted member lists element by element, shorter first on a tie
func lessMembers(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func toInt(w float64) int {
	return int(math.Round(w))
}
