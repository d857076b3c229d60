// tpms-analyze runs the batch pipeline over a CSV of TPMS readings and prints
// the vehicles it finds
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/lantern/internal/analysis"
	"github.com/chrissnell/lantern/internal/feed"
	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/pkg/config"
	"github.com/vmihailenco/msgpack/v5"
)

func main() {
	var (
		input       = flag.String("input", "", "CSV file of readings (default stdin)")
		cfgFile     = flag.String("config", "", "Optional lantern YAML config whose analysis section supplies the defaults")
		threshold   = flag.String("time-threshold", "", "Co-occurrence time threshold, e.g. 5s")
		window      = flag.String("window", "", "Co-occurrence window, e.g. 60m")
		matching    = flag.String("matching-window", "", "Detection matching window, e.g. 1h")
		weight      = flag.Int("weight-threshold", 0, "Minimum edge weight kept when grouping")
		groupSize   = flag.Int("group-size", 0, "Expected sensors per vehicle")
		maxGroups   = flag.Int("max-groups", 0, "Maximum number of vehicles reported (0 for no limit)")
		strict      = flag.Bool("strict-disjoint", false, "Reject groups that share any sensor with an accepted group")
		output      = flag.String("output", "", "Write the JSON report here instead of stdout")
		export      = flag.String("export", "", "Write the detection graph here (.json or .msgpack)")
		summaryOnly = flag.Bool("summary", false, "Print only the summary")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var ac config.AnalysisData
	if *cfgFile != "" {
		cfg, err := config.NewYAMLProvider(*cfgFile).LoadConfig()
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}
		ac = cfg.Analysis
	}
	overrideString(&ac.TimeThreshold, *threshold)
	overrideString(&ac.Window, *window)
	overrideString(&ac.MatchingWindow, *matching)
	if *weight > 0 {
		ac.WeightThreshold = *weight
	}
	if *groupSize > 0 {
		ac.GroupSize = *groupSize
	}
	if *maxGroups > 0 {
		ac.MaxGroups = *maxGroups
	}
	if *strict {
		ac.StrictDisjoint = true
	}

	params, err := analysis.ParamsFromConfig(ac)
	if err != nil {
		log.Fatalf("invalid analysis parameters: %v", err)
	}

	var in io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("error opening input: %v", err)
		}
		defer f.Close()
		in = f
	}

	readings, err := feed.ReadCSV(in)
	if err != nil {
		log.Fatalf("error reading CSV: %v", err)
	}

	report, err := analysis.Analyze(readings, params, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("error creating output: %v", err)
		}
		defer f.Close()
		out = f
	}

	var doc any = report
	if *summaryOnly {
		doc = report.Summary
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		log.Fatalf("error writing report: %v", err)
	}

	if *export != "" {
		if err := writeExport(*export, report); err != nil {
			log.Fatalf("error exporting detection graph: %v", err)
		}
	}

	printSummary(report)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func writeExport(path string, report *analysis.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	exp := report.Events.Export()
	if strings.EqualFold(filepath.Ext(path), ".msgpack") {
		enc := msgpack.NewEncoder(f)
		enc.SetCustomStructTag("json")
		return enc.Encode(exp)
	}
	return json.NewEncoder(f).Encode(exp)
}

func printSummary(report *analysis.Report) {
	s := report.Summary
	fmt.Fprintf(os.Stderr, "\nAnalyzed %d readings (%d skipped) from %d sensors at %d locations\n", s.Readings, s.Skipped, s.Sensors, s.Locations)
	fmt.Fprintf(os.Stderr, "Co-occurrence graph: %d nodes, %d edges\n", s.Nodes, s.Edges)
	if report.TooSmall {
		fmt.Fprintln(os.Stderr, "Graph too small to group")
		return
	}
	fmt.Fprintf(os.Stderr, "Vehicles found: %d (mean confidence %.2f)\n", s.Vehicles, s.MeanConfidence)
	for _, v := range report.Vehicles {
		fmt.Fprintf(os.Stderr, "  #%d confidence %.2f weight %d detections %d sensors %v\n", v.Rank, v.Confidence, v.Weight, v.DetectionCount, v.Sensors)
	}
}
