package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/controllers/grpchealth"
	"github.com/chrissnell/lantern/internal/controllers/networkcache"
	"github.com/chrissnell/lantern/internal/controllers/restserver"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager. A networkcache controller
// is added when the configuration does not name one, since every other controller
// serves the network it publishes.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, svc *controllers.Services, controllerConfigs []config.ControllerData, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		svc:         svc,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	hasNetworkCache := false
	for _, con := range controllerConfigs {
		if con.Type == "networkcache" {
			hasNetworkCache = true
		}
	}
	if !hasNetworkCache {
		controllerConfigs = append([]config.ControllerData{{Type: "networkcache"}}, controllerConfigs...)
	}

	// Create controllers based on configuration
	for _, con := range controllerConfigs {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %w", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	svc         *controllers.Services
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		var rc config.RESTServerData
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		return restserver.NewController(cm.ctx, cm.wg, cm.svc, rc, cm.logger.Named("rest"))
	case "grpchealth":
		var gc config.GRPCHealthData
		if cc.GRPCHealth != nil {
			gc = *cc.GRPCHealth
		}
		return grpchealth.NewController(cm.ctx, cm.wg, cm.svc, gc, cm.logger.Named("grpchealth"))
	case "networkcache":
		return networkcache.NewController(cm.ctx, cm.wg, cm.svc, cm.logger.Named("networkcache"))
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
