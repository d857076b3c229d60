package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	svc        *controllers.Services
	restConfig config.RESTServerData
	Server     http.Server
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, svc *controllers.Services, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if err := svc.Validate("REST server"); err != nil {
		return nil, err
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	if rc.MaxUploadMB <= 0 {
		rc.MaxUploadMB = config.DefaultMaxUploadMB
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		svc:        svc,
		restConfig: rc,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(svc, int64(rc.MaxUploadMB)<<20, logger)

	ctrl.Server.Addr = controllers.ListenAddress(rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server controller on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// Router returns the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	return newRouter(c.handlers, c.logger)
}

func newRouter(h *Handlers, logger *zap.SugaredLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(logger))

	// Routes are registered on the top router with full paths. A PathPrefix
	// subrouter under a custom NotFoundHandler answers method mismatches with 404.
	// Batch endpoints work on an uploaded CSV and never touch the published network
	router.HandleFunc("/api/visualize/graph", h.VisualizeGraph).Methods(http.MethodPost)
	router.HandleFunc("/api/visualize/network", h.VisualizeNetwork).Methods(http.MethodPost)
	router.HandleFunc("/api/upload/csv", h.UploadCSV).Methods(http.MethodPost)

	router.HandleFunc("/api/detection/", h.GetDetections).Methods(http.MethodGet)
	router.HandleFunc("/api/detection/latest", h.GetLatestDetections).Methods(http.MethodGet)
	router.HandleFunc("/api/detection/{id:[0-9]+}", h.GetDetection).Methods(http.MethodGet)

	router.HandleFunc("/api/search/sensor/{id}", h.SearchSensor).Methods(http.MethodGet)
	router.HandleFunc("/api/search/sensors", h.SearchSensors).Methods(http.MethodGet)
	router.HandleFunc("/api/search/query", h.SearchQuery).Methods(http.MethodGet)

	router.HandleFunc("/api/path/sensor/{id}", h.GetSensorPath).Methods(http.MethodGet)
	router.HandleFunc("/api/path/event/{id:[0-9]+}", h.GetEventPath).Methods(http.MethodGet)

	router.HandleFunc("/api/network/export", h.ExportNetwork).Methods(http.MethodGet)

	router.HandleFunc("/api/live", h.GetLive).Methods(http.MethodGet)
	router.HandleFunc("/api/live/csv", h.GetLiveCSV).Methods(http.MethodGet)
	router.HandleFunc("/api/live/groups", h.GetLiveGroups).Methods(http.MethodGet)

	router.HandleFunc("/api/health", h.GetHealth).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.formatter.WriteError(w, req, http.StatusNotFound, fmt.Errorf("no route for %s", req.URL.Path))
	})

	return router
}
