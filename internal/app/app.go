package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/buffer"
	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/internal/managers"
	"github.com/chrissnell/lantern/internal/snapshot"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown. SIGHUP reloads the reader configuration.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	params, err := analysis.ParamsFromConfig(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("invalid analysis configuration: %w", err)
	}

	var retention time.Duration
	if cfg.Storage.Buffer != nil {
		if retention, err = config.Duration(cfg.Storage.Buffer.Retention, 0); err != nil {
			return fmt.Errorf("invalid buffer retention: %w", err)
		}
	}
	buf := buffer.New(retention)
	health := storage.NewHealthManager()
	network := snapshot.New[eventgraph.Graph]()

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, &cfg.Storage, buf, health, a.logger.Named("storage"))
	if err != nil {
		a.stop(cancel, &wg, storageManager, network)
		return err
	}

	rm, err := a.start(ctx, &wg, cfg, storageManager, &controllers.Services{
		Network:     network,
		Store:       storageManager.RecordStore(),
		Buffer:      buf,
		Distributor: storageManager.ReadingDistributor,
		Health:      health,
		Config:      cfg,
		Params:      params,
	})
	if err != nil {
		a.stop(cancel, &wg, storageManager, network)
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
wait:
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				log.Info("SIGHUP received, reloading reader configuration...")
				if err := rm.ReloadReadersConfig(); err != nil {
					log.Errorf("reader reload failed: %v", err)
				}
				continue
			}
			log.Info("shutdown signal received, initiating graceful shutdown...")
			break wait
		case <-ctx.Done():
			log.Info("context cancelled, shutting down...")
			break wait
		}
	}

	a.stop(cancel, &wg, storageManager, network)
	log.Info("shutdown complete")

	return nil
}

// start brings up the readers and controllers that feed and serve the network
func (a *App) start(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, sm *managers.StorageManager, svc *controllers.Services) (managers.ReaderManager, error) {
	// Initialize the reader manager
	rm, err := managers.NewReaderManager(ctx, wg, a.configProvider, sm.ReadingDistributor, a.logger.Named("readers"))
	if err != nil {
		return nil, err
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, wg, svc, cfg.Controllers, a.logger)
	if err != nil {
		return nil, err
	}
	if err := cm.StartControllers(); err != nil {
		return nil, err
	}

	if err := rm.StartReaders(); err != nil {
		return nil, err
	}
	return rm, nil
}

// stop cancels every worker, waits for them and releases storage. It is used on
// shutdown and when startup fails part way.
func (a *App) stop(cancel context.CancelFunc, wg *sync.WaitGroup, sm *managers.StorageManager, network *snapshot.Cell[eventgraph.Graph]) {
	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()

	network.Close()
	if sm == nil {
		return
	}
	if err := sm.Close(); err != nil {
		log.Warnf("error closing storage: %v", err)
	}
}
