package cooccurrence

import (
	"sort"
	"time"

	"github.com/chrissnell/lantern/internal/types"
)

const (
	// DefaultTimeThreshold is how close two readings must be to count as heard together
	DefaultTimeThreshold = 5 * time.Second
	// DefaultWindow is the width of the windows a batch is split into
	DefaultWindow = 30 * time.Minute
)

// BuildOptions controls how readings are paired
type BuildOptions struct {
	TimeThreshold time.Duration
	Window        time.Duration
}

// DefaultBuildOptions returns the options used when nothing is configured
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		TimeThreshold: DefaultTimeThreshold,
		Window:        DefaultWindow,
	}
}

type pair struct {
	a, b string
}

// Build counts co-occurrences across a batch of readings. The batch span is cut
// into consecutive windows starting at the earliest reading; inside each window,
// readings at the same location no more than TimeThreshold apart add one to the
// weight of the edge between their sensors. Pairs that straddle a window
// boundary are not counted. A non-positive Window puts the whole batch in one window.
//
// Every reading falls in exactly one window: a reading at start+k*Window opens
// window k. Two consequences differ from a loop that stops at the batch end
// (while current < end): a batch whose readings all share one instant still
// forms one window and is counted, and a reading at exactly the last instant is
// counted even when the span is a whole number of windows.
func Build(readings []types.Reading, opts BuildOptions) *Graph {
	if len(readings) == 0 {
		return NewGraph(nil, nil)
	}
	if opts.TimeThreshold < 0 {
		opts.TimeThreshold = 0
	}

	sorted := make([]types.Reading, len(readings))
	copy(sorted, readings)
	sortReadings(sorted)

	sensors := make([]string, 0, len(sorted))
	for _, r := range sorted {
		sensors = append(sensors, r.SensorID)
	}

	counts := make(map[pair]int)
	start := sorted[0].Timestamp

	for lo := 0; lo < len(sorted); {
		hi := lo + 1
		if opts.Window > 0 {
			w := windowIndex(start, sorted[lo].Timestamp, opts.Window)
			for hi < len(sorted) && windowIndex(start, sorted[hi].Timestamp, opts.Window) == w {
				hi++
			}
		} else {
			hi = len(sorted)
		}
		countWindow(sorted[lo:hi], opts.TimeThreshold, counts)
		lo = hi
	}

	edges := make([]Edge, 0, len(counts))
	for p, n := range counts {
		edges = append(edges, Edge{A: p.a, B: p.b, Weight: n})
	}
	return NewGraph(sensors, edges)
}

func windowIndex(start, ts time.Time, window time.Duration) int64 {
	return int64(ts.Sub(start) / window)
}

// countWindow pairs up readings inside one window, location by location
func countWindow(window []types.Reading, threshold time.Duration, counts map[pair]int) {
	byLocation := make(map[string][]types.Reading)
	for _, r := range window {
		byLocation[r.Location] = append(byLocation[r.Location], r)
	}

	for _, group := range byLocation {
		// window is already ordered by (timestamp, sensor id) and grouping keeps that order
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[j].Timestamp.Sub(group[i].Timestamp) > threshold {
					break
				}
				a, b := group[i].SensorID, group[j].SensorID
				if a == b {
					continue
				}
				if b < a {
					a, b = b, a
				}
				counts[pair{a, b}]++
			}
		}
	}
}

// sortReadings orders readings by timestamp, then sensor id
func sortReadings(readings []types.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		if !readings[i].Timestamp.Equal(readings[j].Timestamp) {
			return readings[i].Timestamp.Before(readings[j].Timestamp)
		}
		return readings[i].SensorID < readings[j].SensorID
	})
}
