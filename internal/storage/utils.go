package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/types"
	"go.uber.org/zap"
)

// StartHealthMonitor runs checker immediately and then every interval, recording the
// result in hm until ctx is cancelled
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, hm *HealthManager, component string, checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		updateHealth := func() {
			health := checker.CheckHealth(ctx)
			hm.UpdateHealth(component, health)
			logger.Debugf("updated %s health status: %s", component, health.Status)
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", component)
				return
			}
		}
	}()
}

// ProcessReadings feeds every reading from readingChan to processor until ctx is
// cancelled. Callers add to wg before starting it.
func ProcessReadings(ctx context.Context, wg *sync.WaitGroup, readingChan <-chan types.Reading, processor func(types.Reading) error, name string, logger *zap.SugaredLogger) {
	defer wg.Done()

	for {
		select {
		case r := <-readingChan:
			if err := processor(r); err != nil {
				logger.Errorf("%s reading processor error: %v", name, err)
			}
		case <-ctx.Done():
			logger.Infof("cancellation request received. Cancelling %s readings processor", name)
			return
		}
	}
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) *HealthData {
	health := &HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
