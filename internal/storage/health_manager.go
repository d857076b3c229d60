package storage

import (
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the last known state of one component
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager keeps component health in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]HealthData),
	}
}

// UpdateHealth records the health of a component
func (hm *HealthManager) UpdateHealth(component string, health *HealthData) {
	if health == nil {
		return
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[component] = *health
}

// GetHealth retrieves the health status for a specific component
func (hm *HealthManager) GetHealth(component string) (HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	health, exists := hm.health[component]
	return health, exists
}

// GetAllHealth returns a copy of every recorded status
func (hm *HealthManager) GetAllHealth() map[string]HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]HealthData, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// Components lists the components with a recorded status, sorted
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.health))
	for k := range hm.health {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsHealthy reports whether a component is healthy and was checked within maxAge.
// A maxAge of zero skips the staleness check.
func (hm *HealthManager) IsHealthy(component string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(component)
	if !exists {
		return false
	}
	if maxAge > 0 && time.Since(health.LastCheck) > maxAge {
		return false
	}
	return health.Status == StatusHealthy
}
