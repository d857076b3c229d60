// Package feed reads and writes TPMS reading feeds: the tabular CSV exports that
// readers upload and the JSON payloads they publish over the network.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/lantern/internal/types"
)

// Header is the column order WriteCSV produces
var Header = []string{
	"id", "timestamp", "sensor_id", "sensor_model", "vehicle_model",
	"location", "latitude", "longitude", "signal_strength", "battery",
}

// column aliases accepted on input, mapped to their canonical names
var aliases = map[string]string{
	"tpms_id":    "sensor_id",
	"tpms_model": "sensor_model",
	"car_model":  "vehicle_model",
	"uuid":       "id",
}

var requiredColumns = []string{"timestamp", "sensor_id", "location", "latitude", "longitude"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing required column")

// LineError names the line of a feed that could not be parsed
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ReadCSV parses a header-led CSV feed. Columns are matched by name, so their
// order does not matter and unknown columns are ignored.
func ReadCSV(r io.Reader) ([]types.Reading, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty feed: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var readings []types.Reading
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &LineError{Line: perr.Line, Err: perr.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}

		r, err := parseRecord(record, cols)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func parseRecord(record []string, cols map[string]int) (types.Reading, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		r   types.Reading
		err error
	)

	if r.Timestamp, err = ParseTime(field("timestamp")); err != nil {
		return r, err
	}
	r.SensorID = field("sensor_id")
	r.SensorModel = field("sensor_model")
	r.VehicleModel = field("vehicle_model")
	r.Location = field("location")

	numbers := []struct {
		name     string
		dst      *float64
		optional bool
	}{
		{"latitude", &r.Latitude, false},
		{"longitude", &r.Longitude, false},
		{"signal_strength", &r.SignalStrength, true},
		{"battery", &r.Battery, true},
	}
	for _, n := range numbers {
		v := field(n.name)
		if v == "" && n.optional {
			continue
		}
		if *n.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return r, fmt.Errorf("%s %q is not a number", n.name, v)
		}
	}

	if id := field("id"); id != "" {
		if r.ID, err = uuid.Parse(id); err != nil {
			return r, fmt.Errorf("id %q is not a uuid", id)
		}
	}

	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// ParseTime accepts RFC3339 and the naive layouts readers write. Naive times are UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// WriteCSV writes readings with the canonical header
func WriteCSV(w io.Writer, readings []types.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	float := func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	for _, r := range readings {
		record := []string{
			r.ID.String(),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.SensorID,
			r.SensorModel,
			r.VehicleModel,
			r.Location,
			float(r.Latitude),
			float(r.Longitude),
			float(r.SignalStrength),
			float(r.Battery),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
