package grouping

import (
	"github.com/chrissnell/lantern/internal/cooccurrence"
)

// ScoredGroup is a Group with its confidence in [0, 1]
type ScoredGroup struct {
	Group
	Confidence float64 `json:"confidence"`
}

// Score rates each group by how much of its members' co-occurrence weight stays
// inside the group. It must be given the unpruned graph: weak edges leading out
// of a group are exactly what lowers its confidence.
func Score(original *cooccurrence.Graph, groups []Group) []ScoredGroup {
	scored := make([]ScoredGroup, 0, len(groups))
	for _, grp := range groups {
		scored = append(scored, ScoredGroup{
			Group:      grp,
			Confidence: Confidence(original, grp.Members),
		})
	}
	return scored
}

// Confidence is internal / (internal + external) weight for one member set, 0 when
// the members have no edges at all.
func Confidence(original *cooccurrence.Graph, members []string) float64 {
	inside := make(map[string]struct{}, len(members))
	for _, m := range members {
		inside[m] = struct{}{}
	}

	internal := original.SubgraphWeight(members)
	external := 0
	for _, m := range members {
		for _, n := range original.Neighbors(m) {
			if _, ok := inside[n]; !ok {
				external += original.Weight(m, n)
			}
		}
	}

	total := internal + external
	if total == 0 {
		return 0
	}
	return float64(internal) / float64(total)
}
