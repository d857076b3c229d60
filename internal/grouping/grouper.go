// Package grouping clusters co-occurring TPMS sensors into candidate vehicles and
// scores how well each candidate stands apart from the rest of the graph.
package grouping

import (
	"sort"

	"go.uber.org/zap"

	"github.com/chrissnell/lantern/internal/cooccurrence"
)

const (
	DefaultWeightThreshold     = 2
	DefaultExpectedGroupSize   = 4
	DefaultMaxCliqueCandidates = 50000

	// pools above this size use seeded growth instead of trying every combination
	exhaustivePoolLimit = 20
	// number of heaviest edges tried as seeds for seeded growth
	maxSeeds = 100
)

// Options controls grouping
type Options struct {
	// WeightThreshold is the minimum edge weight that survives pruning
	WeightThreshold int `json:"weight_threshold" yaml:"weight_threshold"`
	// ExpectedGroupSize is the number of sensors per vehicle
	ExpectedGroupSize int `json:"expected_group_size" yaml:"expected_group_size"`
	// MaxGroups stops grouping after this many groups. 0 means no limit.
	MaxGroups int `json:"max_groups" yaml:"max_groups"`
	// MaxCliqueCandidates bounds the clique pass. Past it, only the greedy pass runs.
	MaxCliqueCandidates int `json:"max_clique_candidates" yaml:"max_clique_candidates"`
	// StrictDisjoint accepts a clique candidate only when none of its members
	// already belong to a group. By default a candidate is accepted when any
	// member is still unassigned, so a sensor may appear in more than one group.
	StrictDisjoint bool `json:"strict_disjoint" yaml:"strict_disjoint"`
}

// DefaultOptions returns the grouping defaults
func DefaultOptions() Options {
	return Options{
		WeightThreshold:     DefaultWeightThreshold,
		ExpectedGroupSize:   DefaultExpectedGroupSize,
		MaxCliqueCandidates: DefaultMaxCliqueCandidates,
	}
}

// Group is a candidate vehicle: a sorted set of sensor ids and the sum of the
// pruned edge weights among them.
type Group struct {
	Members []string `json:"members"`
	Weight  int      `json:"weight"`
}

// Result is the outcome of one grouping run
type Result struct {
	Groups []Group
	// TooSmall is set when pruning left fewer sensors than one group needs
	TooSmall bool
	// CliquePassSkipped is set when clique enumeration was abandoned
	CliquePassSkipped bool
	PrunedNodes       int
	PrunedEdges       int
}

// Grouper finds vehicle groups in a co-occurrence graph
type Grouper struct {
	opts   Options
	logger *zap.SugaredLogger
}

// NewGrouper returns a Grouper. Unset options fall back to their defaults.
func NewGrouper(opts Options, logger *zap.SugaredLogger) *Grouper {
	if opts.ExpectedGroupSize < 2 {
		opts.ExpectedGroupSize = DefaultExpectedGroupSize
	}
	if opts.MaxCliqueCandidates <= 0 {
		opts.MaxCliqueCandidates = DefaultMaxCliqueCandidates
	}
	if opts.MaxGroups < 0 {
		opts.MaxGroups = 0
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Grouper{opts: opts, logger: logger}
}

// Options returns the effective options
func (g *Grouper) Options() Options {
	return g.opts
}

// FindGroups prunes the graph, accepts the best cliques of the expected size and
// then fills in with a greedy pass over whatever sensors remain unassigned.
func (g *Grouper) FindGroups(graph *cooccurrence.Graph) Result {
	k := g.opts.ExpectedGroupSize
	pruned := graph.Prune(g.opts.WeightThreshold)

	result := Result{
		Groups:      []Group{},
		PrunedNodes: pruned.NodeCount(),
		PrunedEdges: pruned.EdgeCount(),
	}

	if pruned.NodeCount() < k {
		g.logger.Warnw("graph too small to form a group after pruning",
			"nodes", pruned.NodeCount(),
			"group_size", k,
			"weight_threshold", g.opts.WeightThreshold)
		result.TooSmall = true
		return result
	}

	pool := make(map[string]struct{}, pruned.NodeCount())
	for _, n := range pruned.Nodes() {
		pool[n] = struct{}{}
	}

	candidates, err := g.cliqueCandidates(pruned, k)
	if err != nil {
		g.logger.Warnw("clique pass abandoned, falling back to greedy grouping", "error", err)
		result.CliquePassSkipped = true
	} else {
		result.Groups = g.acceptCandidates(candidates, pool, result.Groups)
	}

	result.Groups = g.greedy(pruned, k, pool, result.Groups)
	sortGroups(result.Groups)

	g.logger.Debugw("grouping finished",
		"groups", len(result.Groups),
		"pruned_nodes", result.PrunedNodes,
		"pruned_edges", result.PrunedEdges,
		"clique_pass_skipped", result.CliquePassSkipped)

	return result
}

func (g *Grouper) quotaReached(groups []Group) bool {
	return g.opts.MaxGroups > 0 && len(groups) >= g.opts.MaxGroups
}

// acceptCandidates walks the ranked clique candidates and claims members from the pool
func (g *Grouper) acceptCandidates(candidates []Group, pool map[string]struct{}, groups []Group) []Group {
	for _, c := range candidates {
		if g.quotaReached(groups) {
			break
		}

		free := 0
		for _, m := range c.Members {
			if _, ok := pool[m]; ok {
				free++
			}
		}
		if free == 0 || (g.opts.StrictDisjoint && free != len(c.Members)) {
			continue
		}

		groups = append(groups, c)
		for _, m := range c.Members {
			delete(pool, m)
		}
	}
	return groups
}

// sortGroups orders groups by weight, heaviest first, then by member ids
func sortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Weight != groups[j].Weight {
			return groups[i].Weight > groups[j].Weight
		}
		return lessMembers(groups[i].Members, groups[j].Members)
	})
}

func lessMembers(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
