package eventgraph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Export is the serialized form of a Graph
type Export struct {
	NextEventID int64      `json:"next_event_id"`
	Nodes       []Event    `json:"nodes"`
	Edges       [][2]int64 `json:"edges"`
}

// Export captures every event, edge and the id counter
func (g *Graph) Export() Export {
	exp := Export{
		NextEventID: g.nextID,
		Nodes:       g.All(),
		Edges:       [][2]int64{},
	}

	it := g.links.Edges()
	for it.Next() {
		e := it.Edge()
		exp.Edges = append(exp.Edges, [2]int64{e.From().ID(), e.To().ID()})
	}
	sort.Slice(exp.Edges, func(i, j int) bool {
		if exp.Edges[i][0] != exp.Edges[j][0] {
			return exp.Edges[i][0] < exp.Edges[j][0]
		}
		return exp.Edges[i][1] < exp.Edges[j][1]
	})
	return exp
}

// Import rebuilds a Graph from an Export. Event data is validated, and the
// sensor index is rebuilt from the events rather than trusted.
func Import(exp Export, opts Options) (*Graph, error) {
	g := New(opts)

	maxID := int64(-1)
	for i, node := range exp.Nodes {
		if node.ID < 0 {
			return nil, invalid("nodes", fmt.Sprintf("node %d has negative id %d", i, node.ID))
		}
		if _, dup := g.events[node.ID]; dup {
			return nil, invalid("nodes", fmt.Sprintf("duplicate id %d", node.ID))
		}
		in, err := validate(node.input())
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", node.ID, err)
		}

		ev := &Event{
			ID:             node.ID,
			Timestamp:      in.Timestamp,
			Location:       in.Location,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			Battery:        in.Battery,
			SignalStrength: in.SignalStrength,
			SensorIDs:      in.SensorIDs,
			Description:    in.Description,
		}
		g.insert(ev)
		if ev.ID > maxID {
			maxID = ev.ID
		}
	}

	if exp.NextEventID <= maxID || exp.NextEventID < 0 {
		return nil, invalid("next_event_id", fmt.Sprintf("%d is not above the highest id %d", exp.NextEventID, maxID))
	}
	g.nextID = exp.NextEventID

	for _, e := range exp.Edges {
		from, to := e[0], e[1]
		if _, ok := g.events[from]; !ok {
			return nil, invalid("edges", fmt.Sprintf("edge %d->%d starts at an unknown event", from, to))
		}
		if _, ok := g.events[to]; !ok {
			return nil, invalid("edges", fmt.Sprintf("edge %d->%d ends at an unknown event", from, to))
		}
		if from == to {
			return nil, invalid("edges", fmt.Sprintf("self edge on %d", from))
		}
		if _, ok := g.Predecessor(to); ok {
			return nil, invalid("edges", fmt.Sprintf("event %d has more than one predecessor", to))
		}
		g.links.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	if _, err := topo.Sort(g.links); err != nil {
		return nil, invalid("edges", "succession edges form a cycle")
	}

	return g, nil
}
