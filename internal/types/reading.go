package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Unknown is recorded for sensor and vehicle models that a reader could not decode
const Unknown = "unknown"

// Reading is a single TPMS broadcast heard by a roadside reader.  Readers log the
// sensor id together with where and when it was heard; everything else is optional.
type Reading struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"column:time;index" json:"timestamp"`
	SensorID       string    `gorm:"column:sensor_id;index" json:"sensor_id"`
	SensorModel    string    `gorm:"column:sensor_model" json:"sensor_model"`
	VehicleModel   string    `gorm:"column:vehicle_model" json:"vehicle_model"`
	Location       string    `gorm:"column:location" json:"location"`
	Latitude       float64   `gorm:"column:latitude" json:"latitude"`
	Longitude      float64   `gorm:"column:longitude" json:"longitude"`
	SignalStrength float64   `gorm:"column:signal_strength" json:"signal_strength"`
	Battery        float64   `gorm:"column:battery" json:"battery"`
}

// TableName tells gorm where readings live
func (Reading) TableName() string {
	return "detections"
}

// ApplyDefaults fills in the values a feed is allowed to omit
func (r *Reading) ApplyDefaults() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SensorModel == "" {
		r.SensorModel = Unknown
	}
	if r.VehicleModel == "" {
		r.VehicleModel = Unknown
	}
}

// Validate checks the fields every reading must carry
func (r Reading) Validate() error {
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading has no timestamp")
	}
	if r.SensorID == "" {
		return fmt.Errorf("reading has no sensor id")
	}
	if r.Location == "" {
		return fmt.Errorf("reading for sensor %s has no location", r.SensorID)
	}
	if !finite(r.Latitude) || !finite(r.Longitude) {
		return fmt.Errorf("reading for sensor %s has non-numeric coordinates", r.SensorID)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
