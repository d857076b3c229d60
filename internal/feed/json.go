package feed

import (
	"encoding/json"
	"fmt"

	"github.com/chrissnell/lantern/internal/types"
)

// payload is the JSON readers publish. Legacy field names are accepted too.
type payload struct {
	types.Reading
	TPMSID    string `json:"tpms_id"`
	TPMSModel string `json:"tpms_model"`
	CarModel  string `json:"car_model"`
	Time      string `json:"timestamp"`
}

// DecodeReading parses one JSON reading, fills in defaults and validates it
func DecodeReading(data []byte) (types.Reading, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Reading{}, fmt.Errorf("decoding reading: %w", err)
	}

	r := p.Reading
	ts, err := ParseTime(p.Time)
	if err != nil {
		return types.Reading{}, err
	}
	r.Timestamp = ts
	if r.SensorID == "" {
		r.SensorID = p.TPMSID
	}
	if r.SensorModel == "" {
		r.SensorModel = p.TPMSModel
	}
	if r.VehicleModel == "" {
		r.VehicleModel = p.CarModel
	}

	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return types.Reading{}, err
	}
	return r, nil
}

// EncodeReading renders a reading in the payload format DecodeReading accepts
func EncodeReading(r types.Reading) ([]byte, error) {
	return json.Marshal(r)
}
