package grpchealth

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/snapshot"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newServices() *controllers.Services {
	return &controllers.Services{
		Network: snapshot.New[eventgraph.Graph](),
		Health:  storage.NewHealthManager(),
	}
}

func status(t *testing.T, c *Controller, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.Status
}

func TestSync(t *testing.T) {
	serving := healthpb.HealthCheckResponse_SERVING
	notServing := healthpb.HealthCheckResponse_NOT_SERVING

	tests := []struct {
		name        string
		publish     bool
		health      *storage.HealthData
		wantOverall healthpb.HealthCheckResponse_ServingStatus
		wantNetwork healthpb.HealthCheckResponse_ServingStatus
	}{
		{
			name:        "nothing published",
			wantOverall: notServing,
			wantNetwork: notServing,
		},
		{
			name:        "healthy rebuild",
			publish:     true,
			health:      storage.CreateHealthData(storage.StatusHealthy, "ok", nil),
			wantOverall: serving,
			wantNetwork: serving,
		},
		{
			name:        "failed rebuild keeps the old graph",
			publish:     true,
			health:      storage.CreateHealthData(storage.StatusUnhealthy, "rebuild failed", errors.New("store down")),
			wantOverall: serving,
			wantNetwork: notServing,
		},
		{
			name:        "first rebuild failed",
			health:      storage.CreateHealthData(storage.StatusUnhealthy, "rebuild failed", errors.New("store down")),
			wantOverall: notServing,
			wantNetwork: notServing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newServices()
			c, err := NewController(context.Background(), &sync.WaitGroup{}, svc, config.GRPCHealthData{}, zap.NewNop().Sugar())
			if err != nil {
				t.Fatalf("NewController: %v", err)
			}
			if tt.publish {
				svc.Network.Store(eventgraph.New(eventgraph.DefaultOptions()))
			}
			svc.Health.UpdateHealth(controllers.NetworkComponent, tt.health)
			c.Sync()

			if got := status(t, c, ""); got != tt.wantOverall {
				t.Errorf("overall = %v, want %v", got, tt.wantOverall)
			}
			if got := status(t, c, NetworkService); got != tt.wantNetwork {
				t.Errorf("network = %v, want %v", got, tt.wantNetwork)
			}
		})
	}
}

func TestNewControllerRequiresServices(t *testing.T) {
	if _, err := NewController(context.Background(), &sync.WaitGroup{}, &controllers.Services{}, config.GRPCHealthData{}, zap.NewNop().Sugar()); err == nil {
		t.Fatal("expected an error without a network cell")
	}
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	svc := newServices()
	c, err := NewController(ctx, &wg, svc, config.GRPCHealthData{}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	c.interval = 10 * time.Millisecond

	lis := bufconn.Listen(1 << 20)
	if err := c.Serve(lis); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: NetworkService})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.Status
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before rebuild: %v", got)
	}

	svc.Network.Store(eventgraph.New(eventgraph.DefaultOptions()))
	svc.Health.UpdateHealth(controllers.NetworkComponent, storage.CreateHealthData(storage.StatusHealthy, "ok", nil))

	deadline := time.Now().Add(5 * time.Second)
	for check() != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("network service never became SERVING")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
