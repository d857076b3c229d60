package restserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/feed"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/responseformat"
	"go.uber.org/zap"
)

// uploadField is the multipart field carrying an uploaded CSV
const uploadField = "file"

var errNoNetwork = errors.New("no detection network has been published yet")

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	svc       *controllers.Services
	formatter *responseformat.Formatter
	maxUpload int64
	logger    *zap.SugaredLogger
}

// NewHandlers creates a new handlers instance. maxUpload bounds request bodies in bytes.
func NewHandlers(svc *controllers.Services, maxUpload int64, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		svc:       svc,
		formatter: responseformat.NewFormatter(),
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// requestError marks an error caused by the client's request
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

// statusFor maps an error onto the HTTP status reported to the client
func statusFor(err error) int {
	var (
		reqErr  *requestError
		valErr  *eventgraph.ValidationError
		lineErr *feed.LineError
		maxErr  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, eventgraph.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoNetwork):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr), errors.As(err, &valErr), errors.As(err, &lineErr),
		errors.Is(err, analysis.ErrNoReadings):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the status it maps to
func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	h.formatter.WriteError(w, req, status, err)
}

// write sends data and logs an encoding failure
func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data, nil); err != nil {
		h.logger.Errorf("error writing response for %s: %v", req.URL.Path, err)
	}
}

// network returns the published detection graph, or reports 503 when none exists yet
func (h *Handlers) network(w http.ResponseWriter, req *http.Request) (*eventgraph.Graph, bool) {
	g := h.svc.Network.Load()
	if g == nil {
		h.writeError(w, req, errNoNetwork)
		return nil, false
	}
	return g, true
}

// readUpload parses the CSV of a request. Multipart requests carry it in the
// "file" field and must name a .csv file; any other request carries it as the body.
func (h *Handlers) readUpload(w http.ResponseWriter, req *http.Request) ([]types.Reading, error) {
	req.Body = http.MaxBytesReader(w, req.Body, h.maxUpload)

	var body io.Reader = req.Body
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := req.ParseMultipartForm(h.maxUpload); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("invalid multipart form: %v", err)
		}
		file, header, err := req.FormFile(uploadField)
		if err != nil {
			return nil, badRequest("missing %q upload: %v", uploadField, err)
		}
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			return nil, badRequest("only CSV files are accepted")
		}
		body = file
	}

	readings, err := feed.ReadCSV(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, &requestError{err: err}
	}
	if len(readings) == 0 {
		return nil, analysis.ErrNoReadings
	}
	return readings, nil
}
