package restserver

import (
	"net/http"
	"time"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/controllers/networkcache"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/paulmach/orb"
)

// NetworkResponse is the result of a batch network request
type NetworkResponse struct {
	Events  int `json:"events"`
	Edges   int `json:"edges"`
	Skipped int `json:"skipped"`
	// MatchedIDs are the events holding any of the search_by_ids sensors
	MatchedIDs []int64 `json:"matched_ids,omitempty"`
	// ModelMatches are the events whose description equals search_by_model
	ModelMatches []int64 `json:"model_matches,omitempty"`
	// NodePath is the path ending at the latest event of the build_node_path sensor
	NodePath []int64 `json:"node_path,omitempty"`
	// PathCoordinates are the (longitude, latitude) points of NodePath
	PathCoordinates orb.LineString     `json:"path_coordinates,omitempty"`
	Network         *eventgraph.Export `json:"network,omitempty"`
}

// UploadResponse reports how many readings an upload accepted
type UploadResponse struct {
	Accepted int `json:"accepted"`
}

// VisualizeGraph runs the batch pipeline over an uploaded CSV
func (h *Handlers) VisualizeGraph(w http.ResponseWriter, req *http.Request) {
	params, err := analysisParams(h.svc.Params, req.URL.Query())
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	readings, err := h.readUpload(w, req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	report, err := analysis.Analyze(readings, params, h.logger)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, report)
}

// VisualizeNetwork builds a detection network from an uploaded CSV, one event per
// reading, and answers the searches named in the query. include_network=true adds
// the whole export to the response.
func (h *Handlers) VisualizeNetwork(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	readings, err := h.readUpload(w, req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	g, stats := networkcache.BuildNetwork(readings, h.svc.Params.Events, time.Time{})
	resp := NetworkResponse{
		Events:  stats.Events,
		Edges:   stats.Edges,
		Skipped: stats.Skipped,
	}

	if ids := sensorList(q, "search_by_ids"); len(ids) > 0 {
		resp.MatchedIDs = g.SearchByAny(ids)
	}

	if model := q.Get("search_by_model"); model != "" {
		resp.ModelMatches, err = g.Query(map[string]string{"description": model})
		if err != nil {
			h.writeError(w, req, err)
			return
		}
	}

	if sensor := q.Get("build_node_path"); sensor != "" {
		resp.NodePath = g.PathBySensor(sensor)
		if len(resp.NodePath) > 0 {
			resp.PathCoordinates = g.Coordinates(resp.NodePath)
		}
	}

	if q.Get("include_network") == "true" {
		exp := g.Export()
		resp.Network = &exp
	}

	h.write(w, req, resp)
}

// UploadCSV forwards the readings of an uploaded CSV to every storage engine
func (h *Handlers) UploadCSV(w http.ResponseWriter, req *http.Request) {
	if h.svc.Distributor == nil {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, nil)
		return
	}

	readings, err := h.readUpload(w, req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	accepted := 0
	for _, r := range readings {
		select {
		case h.svc.Distributor <- r:
			accepted++
		case <-req.Context().Done():
			h.writeError(w, req, req.Context().Err())
			return
		}
	}

	h.logger.Infof("accepted %d uploaded readings", accepted)
	h.formatter.WriteStatus(w, req, http.StatusAccepted, UploadResponse{Accepted: accepted}, nil)
}
