package restserver

import (
	"errors"
	"net/http"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/cooccurrence"
	"github.com/chrissnell/lantern/internal/feed"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
)

// HealthResponse summarizes the state of the service
type HealthResponse struct {
	Status           string                        `json:"status"`
	Components       map[string]storage.HealthData `json:"components"`
	NetworkPublished bool                          `json:"network_published"`
	NetworkVersion   uint64                        `json:"network_version"`
	NetworkEvents    int                           `json:"network_events"`
	BufferedReadings int                           `json:"buffered_readings"`
}

// GetLive returns the readings currently buffered, oldest first
func (h *Handlers) GetLive(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.liveReadings())
}

// GetLiveCSV returns the buffered readings as a CSV download
func (h *Handlers) GetLiveCSV(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="data.csv"`)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := feed.WriteCSV(w, h.liveReadings()); err != nil {
		h.logger.Errorf("error writing live CSV: %v", err)
	}
}

// GetLiveGroups runs the batch pipeline over the buffered readings. The query
// accepts the same overrides as /visualize/graph.
func (h *Handlers) GetLiveGroups(w http.ResponseWriter, req *http.Request) {
	params, err := analysisParams(h.svc.Params, req.URL.Query())
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	report, err := analysis.Analyze(h.liveReadings(), params, h.logger)
	if errors.Is(err, analysis.ErrNoReadings) {
		// An idle buffer is not the client's fault
		h.write(w, req, emptyReport())
		return
	}
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, report)
}

// GetHealth reports every registered component. The status is 503 while any
// component is unhealthy.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{
		Status:     storage.StatusHealthy,
		Components: h.svc.Health.GetAllHealth(),
	}
	for _, c := range resp.Components {
		if c.Status != storage.StatusHealthy {
			resp.Status = storage.StatusUnhealthy
		}
	}

	if g := h.svc.Network.Load(); g != nil {
		resp.NetworkPublished = true
		resp.NetworkEvents = g.Len()
	}
	resp.NetworkVersion = h.svc.Network.Version()
	if h.svc.Buffer != nil {
		resp.BufferedReadings = h.svc.Buffer.Len()
	}

	status := http.StatusOK
	if resp.Status != storage.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.formatter.WriteStatus(w, req, status, resp, nil)
}

func (h *Handlers) liveReadings() []types.Reading {
	if h.svc.Buffer == nil {
		return []types.Reading{}
	}
	return h.svc.Buffer.Records()
}

func emptyReport() *analysis.Report {
	return &analysis.Report{
		Graph: cooccurrence.NodeLink{
			Nodes: []cooccurrence.NodeItem{},
			Links: []cooccurrence.LinkItem{},
		},
		Vehicles: []analysis.Vehicle{},
		TooSmall: true,
	}
}
