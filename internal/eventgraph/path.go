package eventgraph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PathForEvent follows predecessors back from an event and returns the chain
// oldest first, ending with the event itself.
func (g *Graph) PathForEvent(id int64) ([]int64, error) {
	if _, ok := g.events[id]; !ok {
		return nil, ErrEventNotFound
	}

	path := []int64{id}
	for cur := id; ; {
		pred, ok := g.Predecessor(cur)
		if !ok {
			break
		}
		path = append(path, pred)
		cur = pred
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// PathBySensor returns the path ending at the most recent event that contains the
// sensor. Unknown sensors give an empty path.
func (g *Graph) PathBySensor(sensor string) []int64 {
	ids := g.index[sensor]
	if len(ids) == 0 {
		return []int64{}
	}
	path, err := g.PathForEvent(ids[len(ids)-1])
	if err != nil {
		return []int64{}
	}
	return path
}

// Coordinates returns the (longitude, latitude) track of a path
func (g *Graph) Coordinates(path []int64) orb.LineString {
	ls := make(orb.LineString, 0, len(path))
	for _, id := range path {
		if ev, ok := g.events[id]; ok {
			ls = append(ls, orb.Point{ev.Longitude, ev.Latitude})
		}
	}
	return ls
}

// PathFeature renders a path as a GeoJSON feature. A single-event path is a Point.
func (g *Graph) PathFeature(path []int64) (*geojson.Feature, error) {
	events, err := g.Events(path)
	if err != nil {
		return nil, err
	}

	var geom orb.Geometry = g.Coordinates(path)
	if len(events) == 1 {
		geom = orb.Point{events[0].Longitude, events[0].Latitude}
	}

	f := geojson.NewFeature(geom)
	ids := make([]int64, 0, len(events))
	locations := make([]string, 0, len(events))
	sensors := map[string]struct{}{}
	for _, ev := range events {
		ids = append(ids, ev.ID)
		locations = append(locations, ev.Location)
		for _, s := range ev.SensorIDs {
			sensors[s] = struct{}{}
		}
	}
	f.Properties["event_ids"] = ids
	f.Properties["locations"] = locations
	f.Properties["sensor_ids"] = normalizeSensors(keys(sensors))
	if len(events) > 0 {
		f.Properties["start"] = events[0].Timestamp
		f.Properties["end"] = events[len(events)-1].Timestamp
	}
	return f, nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
