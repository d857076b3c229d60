package analysis

import (
	"fmt"

	"github.com/chrissnell/lantern/internal/cooccurrence"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/pkg/config"
)

// ParamsFromConfig converts the configured analysis defaults into pipeline
// parameters. Unset values keep the package defaults.
func ParamsFromConfig(a config.AnalysisData) (Params, error) {
	p := DefaultParams()

	var err error
	if p.Build.TimeThreshold, err = config.Duration(a.TimeThreshold, cooccurrence.DefaultTimeThreshold); err != nil {
		return p, fmt.Errorf("time_threshold: %w", err)
	}
	if p.Build.Window, err = config.Duration(a.Window, cooccurrence.DefaultWindow); err != nil {
		return p, fmt.Errorf("window: %w", err)
	}
	if p.Events.MatchingWindow, err = config.Duration(a.MatchingWindow, eventgraph.DefaultMatchingWindow); err != nil {
		return p, fmt.Errorf("matching_window: %w", err)
	}

	if a.WeightThreshold > 0 {
		p.Grouping.WeightThreshold = a.WeightThreshold
	}
	if a.GroupSize > 0 {
		p.Grouping.ExpectedGroupSize = a.GroupSize
	}
	if a.MaxCliqueCandidates > 0 {
		p.Grouping.MaxCliqueCandidates = a.MaxCliqueCandidates
	}
	p.Grouping.MaxGroups = a.MaxGroups
	p.Grouping.StrictDisjoint = a.StrictDisjoint
	if p.Grouping.ExpectedGroupSize < 2 {
		return p, fmt.Errorf("group_size must be at least 2")
	}

	return p, nil
}
