package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Reader streams simulated readings into the distributor at a fixed rate
type Reader struct {
	ctx         context.Context
	cancel      context.CancelFunc
	wg          *sync.WaitGroup
	name        string
	gen         *Generator
	limiter     *rate.Limiter
	distributor chan<- types.Reading
	logger      *zap.SugaredLogger
}

// New creates a simulator reader. Readings are paced to cfg.ReadingsPerSecond.
func New(ctx context.Context, wg *sync.WaitGroup, name string, cfg *config.SimulatorData, distributor chan<- types.Reading, logger *zap.SugaredLogger) (*Reader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reader %s: no simulator configuration", name)
	}
	if cfg.ReadingsPerSecond <= 0 {
		return nil, fmt.Errorf("reader %s: readings_per_second must be positive", name)
	}
	gen, err := NewGenerator(*cfg)
	if err != nil {
		return nil, fmt.Errorf("reader %s: %w", name, err)
	}

	burst := cfg.SensorsPerVehicle
	if burst <= 0 {
		burst = 4
	}

	rctx, cancel := context.WithCancel(ctx)
	return &Reader{
		ctx:         rctx,
		cancel:      cancel,
		wg:          wg,
		name:        name,
		gen:         gen,
		limiter:     rate.NewLimiter(rate.Limit(cfg.ReadingsPerSecond), burst),
		distributor: distributor,
		logger:      logger,
	}, nil
}

func (r *Reader) ReaderName() string {
	return r.name
}

// StartReader launches the generation loop
func (r *Reader) StartReader() error {
	r.logger.Infof("starting simulator [%s] with %d vehicles", r.name, len(r.gen.Vehicles()))
	r.wg.Add(1)
	go r.run()
	return nil
}

// StopReader stops the generation loop
func (r *Reader) StopReader() error {
	r.cancel()
	return nil
}

func (r *Reader) run() {
	defer r.wg.Done()

	for {
		for _, reading := range r.gen.Pass() {
			if err := r.limiter.Wait(r.ctx); err != nil {
				r.logger.Infof("stopping simulator [%s]", r.name)
				return
			}
			select {
			case r.distributor <- reading:
			case <-r.ctx.Done():
				return
			}
		}
	}
}
