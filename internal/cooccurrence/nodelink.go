package cooccurrence

// NodeLink is the node-link document graph consumers expect: a flat node list and
// a list of weighted links between node ids.
type NodeLink struct {
	Directed   bool       `json:"directed"`
	Multigraph bool       `json:"multigraph"`
	Nodes      []NodeItem `json:"nodes"`
	Links      []LinkItem `json:"links"`
}

// NodeItem is one sensor in a NodeLink document
type NodeItem struct {
	ID string `json:"id"`
}

// LinkItem is one weighted edge in a NodeLink document
type LinkItem struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// NodeLink renders the graph as a node-link document
func (c *Graph) NodeLink() NodeLink {
	doc := NodeLink{
		Nodes: []NodeItem{},
		Links: []LinkItem{},
	}
	for _, n := range c.Nodes() {
		doc.Nodes = append(doc.Nodes, NodeItem{ID: n})
	}
	for _, e := range c.Edges() {
		doc.Links = append(doc.Links, LinkItem{Source: e.A, Target: e.B, Weight: e.Weight})
	}
	return doc
}
