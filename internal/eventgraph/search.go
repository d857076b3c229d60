package eventgraph

import (
	"sort"
	"time"
)

// SearchBySensor returns the events containing a sensor, oldest first
func (g *Graph) SearchBySensor(sensor string) []int64 {
	return append([]int64{}, g.index[sensor]...)
}

// SearchByAny returns the events containing any of the sensors, oldest first and
// without duplicates.
func (g *Graph) SearchByAny(sensors []string) []int64 {
	seen := make(map[int64]struct{})
	var hits []*Event
	for _, s := range sensors {
		for _, id := range g.index[s] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			hits = append(hits, g.events[id])
		}
	}
	return g.chronological(hits)
}

// fieldMatcher reports whether an event matches a query value
type fieldMatcher func(e *Event, value string) bool

// queryFields lists the event fields Query can filter on. Values are parsed up
// front by Query so the matchers never fail.
var queryFields = map[string]fieldMatcher{
	"location": func(e *Event, v string) bool {
		return e.Location == v
	},
	"description": func(e *Event, v string) bool {
		return e.Description == v
	},
	"sensor_id": func(e *Event, v string) bool {
		i := sort.SearchStrings(e.SensorIDs, v)
		return i < len(e.SensorIDs) && e.SensorIDs[i] == v
	},
	"timestamp": func(e *Event, v string) bool {
		ts, err := time.Parse(time.RFC3339Nano, v)
		return err == nil && e.Timestamp.Equal(ts)
	},
}

// QueryFields returns the field names Query accepts, sorted
func QueryFields() []string {
	names := make([]string, 0, len(queryFields))
	for name := range queryFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query returns the events matching every criterion, oldest first. An empty
// criteria map matches every event.
func (g *Graph) Query(criteria map[string]string) ([]int64, error) {
	for field, value := range criteria {
		if _, ok := queryFields[field]; !ok {
			return nil, invalid(field, "unknown query field")
		}
		if field == "timestamp" {
			if _, err := time.Parse(time.RFC3339Nano, value); err != nil {
				return nil, invalid(field, "expected an RFC3339 timestamp")
			}
		}
	}

	var candidates []*Event
	if s, ok := criteria["sensor_id"]; ok {
		for _, id := range g.index[s] {
			candidates = append(candidates, g.events[id])
		}
	} else {
		for _, ev := range g.events {
			candidates = append(candidates, ev)
		}
	}

	var hits []*Event
	for _, ev := range candidates {
		ok := true
		for field, value := range criteria {
			if !queryFields[field](ev, value) {
				ok = false
				break
			}
		}
		if ok {
			hits = append(hits, ev)
		}
	}
	return g.chronological(hits), nil
}

func (g *Graph) chronological(events []*Event) []int64 {
	sort.Slice(events, func(i, j int) bool {
		return less(events[i], events[j])
	})
	out := make([]int64, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}
