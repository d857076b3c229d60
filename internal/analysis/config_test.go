package analysis

import (
	"testing"
	"time"

	"github.com/chrissnell/lantern/pkg/config"
	"github.com/google/go-cmp/cmp"
)

func TestParamsFromConfig(t *testing.T) {
	got, err := ParamsFromConfig(config.AnalysisData{
		TimeThreshold:  "3s",
		Window:         "10m",
		GroupSize:      6,
		MaxGroups:      2,
		StrictDisjoint: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultParams()
	want.Build.TimeThreshold = 3 * time.Second
	want.Build.Window = 10 * time.Minute
	want.Grouping.ExpectedGroupSize = 6
	want.Grouping.MaxGroups = 2
	want.Grouping.StrictDisjoint = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	if p, err := ParamsFromConfig(config.AnalysisData{}); err != nil || !cmp.Equal(p, DefaultParams()) {
		t.Errorf("empty config = %+v, %v; want defaults", p, err)
	}
	if _, err := ParamsFromConfig(config.AnalysisData{Window: "later"}); err == nil {
		t.Error("expected an error for a bad window")
	}
}
