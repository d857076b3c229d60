package restserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
)

// defaultLatest is how many detections /detection/latest returns without ?n=
const defaultLatest = 3

// DetectionResponse is one event of the published network with its links
type DetectionResponse struct {
	Event eventgraph.Event `json:"event"`
	// Predecessor is the earlier event this one was matched to, if any
	Predecessor *int64  `json:"predecessor"`
	Successors  []int64 `json:"successors"`
}

// SearchResponse lists the events a search matched, oldest first
type SearchResponse struct {
	EventIDs []int64            `json:"event_ids"`
	Events   []eventgraph.Event `json:"events"`
}

// PathResponse is a reconstructed vehicle path
type PathResponse struct {
	EventIDs    []int64            `json:"event_ids"`
	Events      []eventgraph.Event `json:"events"`
	Coordinates orb.LineString     `json:"coordinates"`
}

// GetDetections returns every event of the published network in id order
func (h *Handlers) GetDetections(w http.ResponseWriter, req *http.Request) {
	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.write(w, req, g.All())
}

// GetLatestDetections returns the n newest events, three by default
func (h *Handlers) GetLatestDetections(w http.ResponseWriter, req *http.Request) {
	n := defaultLatest
	if v := req.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, req, badRequest("invalid n %q", v))
			return
		}
		n = parsed
	}

	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.write(w, req, g.Latest(n))
}

// GetDetection returns one event with its predecessor and successors
func (h *Handlers) GetDetection(w http.ResponseWriter, req *http.Request) {
	id, err := eventID(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	g, ok := h.network(w, req)
	if !ok {
		return
	}

	ev, err := g.Event(id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	succ, err := g.Successors(id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	resp := DetectionResponse{Event: ev, Successors: succ}
	if pred, ok := g.Predecessor(id); ok {
		resp.Predecessor = &pred
	}
	h.write(w, req, resp)
}

// SearchSensor returns the events holding one sensor
func (h *Handlers) SearchSensor(w http.ResponseWriter, req *http.Request) {
	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.writeSearch(w, req, g, g.SearchBySensor(mux.Vars(req)["id"]))
}

// SearchSensors returns the events holding any of the ?id= sensors
func (h *Handlers) SearchSensors(w http.ResponseWriter, req *http.Request) {
	ids := sensorList(req.URL.Query(), "id")
	if len(ids) == 0 {
		h.writeError(w, req, badRequest("at least one id is required"))
		return
	}

	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.writeSearch(w, req, g, g.SearchByAny(ids))
}

// SearchQuery returns the events matching every field=value pair of the query
func (h *Handlers) SearchQuery(w http.ResponseWriter, req *http.Request) {
	criteria := make(map[string]string)
	for field, values := range req.URL.Query() {
		if field == "format" {
			continue
		}
		if len(values) > 1 {
			h.writeError(w, req, badRequest("%s given more than once", field))
			return
		}
		criteria[field] = values[0]
	}

	g, ok := h.network(w, req)
	if !ok {
		return
	}
	ids, err := g.Query(criteria)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeSearch(w, req, g, ids)
}

func (h *Handlers) writeSearch(w http.ResponseWriter, req *http.Request, g *eventgraph.Graph, ids []int64) {
	events, err := g.Events(ids)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, SearchResponse{EventIDs: ids, Events: events})
}

// GetSensorPath returns the path ending at the latest event of a sensor. An
// unknown sensor gives an empty path.
func (h *Handlers) GetSensorPath(w http.ResponseWriter, req *http.Request) {
	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.writePath(w, req, g, g.PathBySensor(mux.Vars(req)["id"]))
}

// GetEventPath returns the path ending at an event
func (h *Handlers) GetEventPath(w http.ResponseWriter, req *http.Request) {
	id, err := eventID(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	g, ok := h.network(w, req)
	if !ok {
		return
	}
	path, err := g.PathForEvent(id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writePath(w, req, g, path)
}

// writePath answers with a PathResponse, or with a GeoJSON Feature when ?geojson=true
func (h *Handlers) writePath(w http.ResponseWriter, req *http.Request, g *eventgraph.Graph, path []int64) {
	if req.URL.Query().Get("geojson") == "true" {
		if len(path) == 0 {
			h.writeError(w, req, eventgraph.ErrEventNotFound)
			return
		}
		feature, err := g.PathFeature(path)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		doc, err := json.Marshal(feature)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		h.formatter.WriteGeoJSON(w, req, doc)
		return
	}

	events, err := g.Events(path)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, PathResponse{
		EventIDs:    path,
		Events:      events,
		Coordinates: g.Coordinates(path),
	})
}

// ExportNetwork returns the serialized published network, importable with eventgraph.Import
func (h *Handlers) ExportNetwork(w http.ResponseWriter, req *http.Request) {
	g, ok := h.network(w, req)
	if !ok {
		return
	}
	h.write(w, req, g.Export())
}

func eventID(req *http.Request) (int64, error) {
	raw := mux.Vars(req)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid event id %q", raw)
	}
	return id, nil
}
