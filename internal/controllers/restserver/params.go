package restserver

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/lantern/internal/analysis"
)

// maxWindowMinutes keeps window_minutes well inside time.Duration's range
const maxWindowMinutes = 366 * 24 * 60

// analysisParams applies the query overrides of a batch request to the configured
// defaults. time_threshold takes a duration ("5s") or plain seconds.
func analysisParams(base analysis.Params, q url.Values) (analysis.Params, error) {
	p := base

	if v := q.Get("time_threshold"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d < 0 {
			return p, badRequest("invalid time_threshold %q", v)
		}
		p.Build.TimeThreshold = d
	}

	if v := q.Get("window_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxWindowMinutes {
			return p, badRequest("invalid window_minutes %q", v)
		}
		p.Build.Window = time.Duration(n) * time.Minute
	}

	ints := []struct {
		name string
		min  int
		dst  *int
	}{
		{"weight_threshold", 0, &p.Grouping.WeightThreshold},
		{"group_size", 2, &p.Grouping.ExpectedGroupSize},
		{"max_groups", 0, &p.Grouping.MaxGroups},
	}
	for _, f := range ints {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < f.min {
			return p, badRequest("invalid %s %q", f.name, v)
		}
		*f.dst = n
	}

	if v := q.Get("strict_disjoint"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, badRequest("invalid strict_disjoint %q", v)
		}
		p.Grouping.StrictDisjoint = b
	}

	return p, nil
}

func parseSeconds(v string) (time.Duration, error) {
	if strings.IndexFunc(v, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0 {
		return time.ParseDuration(v)
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(secs) || math.Abs(secs) > float64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("%s seconds is out of range", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// sensorList collects repeated and comma separated values of a query parameter
func sensorList(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
