package managers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/internal/readers"
	"github.com/chrissnell/lantern/internal/readers/mqtt"
	"github.com/chrissnell/lantern/internal/readers/natsreader"
	"github.com/chrissnell/lantern/internal/readers/simulator"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// ReaderManager starts, stops and reloads the configured reading sources
type ReaderManager interface {
	StartReaders() error
	AddReader(name string) error
	RemoveReader(name string) error
	ReloadReadersConfig() error
	GetReader(name string) readers.Reader
	ReaderNames() []string
}

// NewReaderManager creates a ReaderManager object, populated with all configured readers
func NewReaderManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor chan<- types.Reading, logger *zap.SugaredLogger) (ReaderManager, error) {
	readerConfigs, err := configProvider.GetReaders()
	if err != nil {
		return nil, fmt.Errorf("error loading reader configuration: %w", err)
	}

	rm := &readerManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		distributor:    distributor,
		logger:         logger,
		readers:        make(map[string]readers.Reader),
	}

	for _, rc := range readerConfigs {
		if !rc.IsEnabled() {
			logger.Infof("Skipping disabled reader [%s]", rc.Name)
			continue
		}
		reader, err := createReaderFromConfig(ctx, wg, rc, distributor, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating reader [%s]: %w", rc.Name, err)
		}
		rm.readers[rc.Name] = reader
	}

	return rm, nil
}

type readerManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	distributor    chan<- types.Reading
	logger         *zap.SugaredLogger
	readers        map[string]readers.Reader
	mu             sync.RWMutex
}

func (m *readerManager) StartReaders() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.sortedNames() {
		m.logger.Infof("Starting reader [%v]...", name)
		if err := m.readers[name].StartReader(); err != nil {
			return fmt.Errorf("failed to start reader [%s]: %w", name, err)
		}
	}
	return nil
}

// AddReader creates and starts a reader from the current configuration
func (m *readerManager) AddReader(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(name)
}

func (m *readerManager) addLocked(name string) error {
	if _, exists := m.readers[name]; exists {
		return fmt.Errorf("reader %s already exists", name)
	}

	rc, err := m.readerConfig(name)
	if err != nil {
		return err
	}
	if !rc.IsEnabled() {
		return fmt.Errorf("cannot add disabled reader %s", name)
	}

	reader, err := createReaderFromConfig(m.ctx, m.wg, rc, m.distributor, m.logger)
	if err != nil {
		return fmt.Errorf("error creating reader [%s]: %w", name, err)
	}

	m.readers[name] = reader
	if err := reader.StartReader(); err != nil {
		delete(m.readers, name)
		return fmt.Errorf("failed to start reader [%s]: %w", name, err)
	}

	m.logger.Infof("Added and started reader: %s", name)
	return nil
}

// RemoveReader stops a reader and forgets it
func (m *readerManager) RemoveReader(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(name)
}

func (m *readerManager) removeLocked(name string) error {
	reader, exists := m.readers[name]
	if !exists {
		return fmt.Errorf("reader %s not found", name)
	}

	if err := reader.StopReader(); err != nil {
		// Continue with removal even if stop failed
		m.logger.Errorf("Error stopping reader %s: %v", name, err)
	}
	delete(m.readers, name)

	m.logger.Infof("Removed and stopped reader: %s", name)
	return nil
}

// ReloadReadersConfig stops readers that are gone or disabled and starts the new ones
func (m *readerManager) ReloadReadersConfig() error {
	readerConfigs, err := m.configProvider.GetReaders()
	if err != nil {
		return fmt.Errorf("could not load reader configuration: %w", err)
	}

	shouldBeActive := make(map[string]bool)
	for _, rc := range readerConfigs {
		if rc.IsEnabled() {
			shouldBeActive[rc.Name] = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.sortedNames() {
		if !shouldBeActive[name] {
			if err := m.removeLocked(name); err != nil {
				m.logger.Errorf("Failed to remove reader %s: %v", name, err)
			}
		}
	}

	for name := range shouldBeActive {
		if _, exists := m.readers[name]; !exists {
			if err := m.addLocked(name); err != nil {
				m.logger.Errorf("Failed to add reader %s: %v", name, err)
			}
		}
	}

	return nil
}

// GetReader retrieves a reader by name. Returns nil if the reader does not exist.
func (m *readerManager) GetReader(name string) readers.Reader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readers[name]
}

// ReaderNames lists the running readers in name order
func (m *readerManager) ReaderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedNames()
}

func (m *readerManager) sortedNames() []string {
	names := make([]string, 0, len(m.readers))
	for name := range m.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *readerManager) readerConfig(name string) (config.ReaderData, error) {
	readerConfigs, err := m.configProvider.GetReaders()
	if err != nil {
		return config.ReaderData{}, fmt.Errorf("failed to get reader %s: %w", name, err)
	}
	for _, rc := range readerConfigs {
		if rc.Name == name {
			return rc, nil
		}
	}
	return config.ReaderData{}, fmt.Errorf("reader [%s] not found in configuration", name)
}

// createReaderFromConfig creates the appropriate reader based on its type
func createReaderFromConfig(ctx context.Context, wg *sync.WaitGroup, rc config.ReaderData, distributor chan<- types.Reading, logger *zap.SugaredLogger) (readers.Reader, error) {
	switch rc.Type {
	case "mqtt":
		log.Infof("Initializing MQTT reader [%v]", rc.Name)
		return mqtt.New(ctx, rc.Name, rc.MQTT, distributor, logger.Named(rc.Name))
	case "nats":
		log.Infof("Initializing NATS reader [%v]", rc.Name)
		return natsreader.New(ctx, rc.Name, rc.NATS, distributor, logger.Named(rc.Name))
	case "simulator":
		log.Infof("Initializing simulator reader [%v]", rc.Name)
		return simulator.New(ctx, wg, rc.Name, rc.Simulator, distributor, logger.Named(rc.Name))
	default:
		return nil, fmt.Errorf("unknown reader type: %s", rc.Type)
	}
}
