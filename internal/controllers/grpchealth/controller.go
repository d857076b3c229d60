// Package grpchealth serves the standard gRPC health protocol for lantern. The
// overall status follows whether a detection network has ever been published;
// the network service follows the outcome of the latest rebuild.
package grpchealth

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NetworkService is the health service name of the detection network
const NetworkService = "lantern.network"

// pollInterval is how often the health registry is copied into the gRPC server
const pollInterval = 2 * time.Second

// Controller represents the gRPC health controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	svc      *controllers.Services
	Server   *grpc.Server
	health   *health.Server
	addr     string
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewController creates a new gRPC health controller
func NewController(ctx context.Context, wg *sync.WaitGroup, svc *controllers.Services, gc config.GRPCHealthData, logger *zap.SugaredLogger) (*Controller, error) {
	if err := svc.Validate("gRPC health"); err != nil {
		return nil, err
	}
	if gc.Port == 0 {
		gc.Port = config.DefaultGRPCHealthPort
	}

	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		svc:      svc,
		Server:   grpc.NewServer(),
		health:   health.NewServer(),
		addr:     controllers.ListenAddress(gc.ListenAddr, gc.Port),
		interval: pollInterval,
		logger:   logger,
	}

	healthpb.RegisterHealthServer(ctrl.Server, ctrl.health)
	reflection.Register(ctrl.Server)
	ctrl.Sync()

	return ctrl, nil
}

// StartController starts the gRPC server and the status poller
func (c *Controller) StartController() error {
	l, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("gRPC health controller could not create listener: %w", err)
	}
	return c.Serve(l)
}

// Serve runs the server on an existing listener until the context is cancelled
func (c *Controller) Serve(l net.Listener) error {
	log.Infof("gRPC health controller listening on %s", l.Addr())
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != nil {
			log.Errorf("gRPC health controller serve error: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				log.Info("Stopping gRPC health controller...")
				c.health.Shutdown()
				c.Server.GracefulStop()
				return
			case <-ticker.C:
				c.Sync()
			}
		}
	}()

	return nil
}

// Sync copies the health registry into the gRPC health server
func (c *Controller) Sync() {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if c.svc.Network.Version() > 0 {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	c.health.SetServingStatus("", overall)

	network := healthpb.HealthCheckResponse_NOT_SERVING
	if h, ok := c.svc.Health.GetHealth(controllers.NetworkComponent); ok && h.Status == storage.StatusHealthy {
		network = healthpb.HealthCheckResponse_SERVING
	}
	c.health.SetServingStatus(NetworkService, network)
}
