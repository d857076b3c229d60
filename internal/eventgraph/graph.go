// Package eventgraph links successive detections of the same vehicle into a
// directed graph. Each detection event points back to at most one earlier event
// that shares a sensor with it, which lets a vehicle's movement be replayed from
// any of its detections.
package eventgraph

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// DefaultMatchingWindow is how far back a new event looks for its predecessor
const DefaultMatchingWindow = time.Hour

// Options controls event matching
type Options struct {
	MatchingWindow time.Duration `json:"matching_window" yaml:"matching_window"`
}

// DefaultOptions returns the matching defaults
func DefaultOptions() Options {
	return Options{MatchingWindow: DefaultMatchingWindow}
}

// EventInput is what a caller supplies for a new detection
type EventInput struct {
	Timestamp      time.Time
	Location       string
	Latitude       float64
	Longitude      float64
	Battery        float64
	SignalStrength float64
	SensorIDs      []string
	Description    string
}

// Event is a stored detection
type Event struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Location       string    `json:"location"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Battery        float64   `json:"battery"`
	SignalStrength float64   `json:"signal_strength"`
	SensorIDs      []string  `json:"sensor_ids"`
	Description    string    `json:"description"`
}

func (e Event) clone() Event {
	e.SensorIDs = append([]string(nil), e.SensorIDs...)
	return e
}

func (e Event) input() EventInput {
	return EventInput{
		Timestamp:      e.Timestamp,
		Location:       e.Location,
		Latitude:       e.Latitude,
		Longitude:      e.Longitude,
		Battery:        e.Battery,
		SignalStrength: e.SignalStrength,
		SensorIDs:      e.SensorIDs,
		Description:    e.Description,
	}
}

// Graph holds detection events and their succession edges. A Graph is built by a
// single goroutine; once handed to readers it must not be modified again.
type Graph struct {
	opts   Options
	events map[int64]*Event
	links  *simple.DirectedGraph
	// sensor id -> event ids ordered by (timestamp, id)
	index  map[string][]int64
	nextID int64
}

// New returns an empty graph
func New(opts Options) *Graph {
	if opts.MatchingWindow <= 0 {
		opts.MatchingWindow = DefaultMatchingWindow
	}
	return &Graph{
		opts:   opts,
		events: make(map[int64]*Event),
		links:  simple.NewDirectedGraph(),
		index:  make(map[string][]int64),
	}
}

// Options returns the graph's matching options
func (g *Graph) Options() Options {
	return g.opts
}

// AddEvent validates and stores a detection, links it to its predecessor if one
// is found, and returns the new event's id.
func (g *Graph) AddEvent(in EventInput) (int64, error) {
	in, err := validate(in)
	if err != nil {
		return 0, err
	}

	ev := &Event{
		ID:             g.nextID,
		Timestamp:      in.Timestamp,
		Location:       in.Location,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Battery:        in.Battery,
		SignalStrength: in.SignalStrength,
		SensorIDs:      in.SensorIDs,
		Description:    in.Description,
	}
	g.nextID++

	pred, found := g.match(ev)
	g.insert(ev)
	if found {
		g.links.SetEdge(simple.Edge{F: simple.Node(pred), T: simple.Node(ev.ID)})
	}
	return ev.ID, nil
}

// match finds the most recent earlier event sharing a sensor with ev. Among events
// with the same timestamp the lowest id wins.
func (g *Graph) match(ev *Event) (int64, bool) {
	var (
		best  *Event
		found bool
	)
	for _, s := range ev.SensorIDs {
		ids := g.index[s]
		// first position whose timestamp is not before ev
		pos := sort.Search(len(ids), func(i int) bool {
			return !g.events[ids[i]].Timestamp.Before(ev.Timestamp)
		})
		if pos == 0 {
			continue
		}
		// walk back to the lowest id sharing the latest earlier timestamp
		cand := g.events[ids[pos-1]]
		for i := pos - 2; i >= 0 && g.events[ids[i]].Timestamp.Equal(cand.Timestamp); i-- {
			cand = g.events[ids[i]]
		}
		if !found || cand.Timestamp.After(best.Timestamp) ||
			(cand.Timestamp.Equal(best.Timestamp) && cand.ID < best.ID) {
			best = cand
			found = true
		}
	}
	if !found || ev.Timestamp.Sub(best.Timestamp) > g.opts.MatchingWindow {
		return 0, false
	}
	return best.ID, true
}

// insert stores ev and adds it to the sensor index
func (g *Graph) insert(ev *Event) {
	g.events[ev.ID] = ev
	g.links.AddNode(simple.Node(ev.ID))
	for _, s := range ev.SensorIDs {
		g.index[s] = insertSorted(g.index[s], ev, g.events)
	}
}

func insertSorted(ids []int64, ev *Event, events map[int64]*Event) []int64 {
	pos := sort.Search(len(ids), func(i int) bool {
		return !less(events[ids[i]], ev)
	})
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = ev.ID
	return ids
}

// less orders events chronologically, then by id
func less(a, b *Event) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Len returns the number of events
func (g *Graph) Len() int {
	return len(g.events)
}

// EdgeCount returns the number of succession edges
func (g *Graph) EdgeCount() int {
	return g.links.Edges().Len()
}

// NextID returns the id the next event will receive
func (g *Graph) NextID() int64 {
	return g.nextID
}

// Event returns a copy of one event
func (g *Graph) Event(id int64) (Event, error) {
	ev, ok := g.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return ev.clone(), nil
}

// Events returns copies of the given events in the order asked for
func (g *Graph) Events(ids []int64) ([]Event, error) {
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		ev, err := g.Event(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// All returns every event in id order
func (g *Graph) All() []Event {
	out := make([]Event, 0, len(g.events))
	for _, id := range g.sortedIDs() {
		out = append(out, g.events[id].clone())
	}
	return out
}

// Latest returns up to n events, newest first
func (g *Graph) Latest(n int) []Event {
	all := make([]*Event, 0, len(g.events))
	for _, ev := range g.events {
		all = append(all, ev)
	}
	sort.Slice(all, func(i, j int) bool {
		return less(all[j], all[i])
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	out := make([]Event, 0, len(all))
	for _, ev := range all {
		out = append(out, ev.clone())
	}
	return out
}

// Predecessor returns the event an event was matched to
func (g *Graph) Predecessor(id int64) (int64, bool) {
	if _, ok := g.events[id]; !ok {
		return 0, false
	}
	nodes := graph.NodesOf(g.links.To(id))
	if len(nodes) == 0 {
		return 0, false
	}
	return nodes[0].ID(), true
}

// Successors returns the ids of events matched to this one, in id order
func (g *Graph) Successors(id int64) ([]int64, error) {
	if _, ok := g.events[id]; !ok {
		return nil, ErrEventNotFound
	}
	nodes := graph.NodesOf(g.links.From(id))
	out := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (g *Graph) sortedIDs() []int64 {
	ids := make([]int64, 0, len(g.events))
	for id := range g.events {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func normalizeSensors(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i > 0 && s == out[n-1] {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}
