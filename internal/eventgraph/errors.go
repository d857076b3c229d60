package eventgraph

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEventNotFound is returned when an event id is not in the graph
var ErrEventNotFound = errors.New("event not found")

// ValidationError reports a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// validate checks an input and returns it with its sensor ids deduplicated and
// sorted and its timestamp in UTC.
func validate(in EventInput) (EventInput, error) {
	if in.Timestamp.IsZero() {
		return in, invalid("timestamp", "missing")
	}
	if len(in.SensorIDs) == 0 {
		return in, invalid("sensor_ids", "at least one sensor id is required")
	}
	for _, s := range in.SensorIDs {
		if s == "" {
			return in, invalid("sensor_ids", "empty sensor id")
		}
	}

	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"latitude", in.Latitude, -90, 90},
		{"longitude", in.Longitude, -180, 180},
		{"battery", in.Battery, math.Inf(-1), math.Inf(1)},
		{"signal_strength", in.SignalStrength, math.Inf(-1), math.Inf(1)},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return in, invalid(c.field, "not a finite number")
		}
		if c.value < c.min || c.value > c.max {
			return in, invalid(c.field, fmt.Sprintf("%v outside [%v, %v]", c.value, c.min, c.max))
		}
	}

	in.Timestamp = in.Timestamp.In(time.UTC)
	in.SensorIDs = normalizeSensors(in.SensorIDs)
	return in, nil
}
