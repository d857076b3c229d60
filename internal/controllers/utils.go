// Package controllers holds what the lantern controllers share: the published
// detection network, the record store and the health registry.
package controllers

import (
	"fmt"
	"net"
	"strconv"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/buffer"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/snapshot"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
)

// NetworkComponent is the health registry key of the network rebuild loop
const NetworkComponent = "network"

// Services are the long-lived objects controllers read from and write to
type Services struct {
	// Network is the published detection graph, replaced wholesale on every rebuild
	Network *snapshot.Cell[eventgraph.Graph]
	// Store is the record store the network is rebuilt from
	Store storage.RecordStore
	// Buffer holds the recent readings served by the live endpoints
	Buffer *buffer.Buffer
	// Distributor accepts readings for every storage engine
	Distributor chan<- types.Reading
	Health      *storage.HealthManager
	Config      *config.ConfigData
	// Params are the configured batch pipeline defaults
	Params analysis.Params
}

// Validate checks that the services a controller depends on are present
func (s *Services) Validate(controllerName string) error {
	if s == nil {
		return fmt.Errorf("%s controller: no services", controllerName)
	}
	if s.Network == nil {
		return fmt.Errorf("%s controller: no network cell", controllerName)
	}
	if s.Health == nil {
		return fmt.Errorf("%s controller: no health manager", controllerName)
	}
	return nil
}

// ListenAddress joins a configured address and port
func ListenAddress(addr string, port int) string {
	return net.JoinHostPort(addr, strconv.Itoa(port))
}
