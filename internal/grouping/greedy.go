package grouping

import (
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/chrissnell/lantern/internal/cooccurrence"
)

// greedy keeps forming the best available group from the unassigned sensors until
// the pool is too small, the quota is met, or nothing left scores above zero.
func (g *Grouper) greedy(pruned *cooccurrence.Graph, k int, pool map[string]struct{}, groups []Group) []Group {
	for len(pool) >= k && !g.quotaReached(groups) {
		var (
			best  Group
			found bool
		)
		if len(pool) > exhaustivePoolLimit {
			best, found = seededBest(pruned, k, pool)
		} else {
			best, found = exhaustiveBest(pruned, k, pool)
		}
		if !found || best.Weight <= 0 {
			break
		}

		groups = append(groups, best)
		for _, m := range best.Members {
			delete(pool, m)
		}
	}
	return groups
}

// seededBest grows a group from each of the heaviest edges inside the pool by
// adding the pool sensors most strongly tied to both seed ends.
func seededBest(pruned *cooccurrence.Graph, k int, pool map[string]struct{}) (Group, bool) {
	var seeds []cooccurrence.Edge
	for _, e := range pruned.Edges() {
		if inPool(pool, e.A) && inPool(pool, e.B) {
			seeds = append(seeds, e)
		}
	}
	// Edges() is already ordered by endpoints
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].Weight > seeds[j].Weight
	})
	if len(seeds) > maxSeeds {
		seeds = seeds[:maxSeeds]
	}

	var (
		best  Group
		found bool
	)
	for _, seed := range seeds {
		u, v := seed.A, seed.B

		ties := make(map[string]int)
		for _, end := range []string{u, v} {
			for _, n := range pruned.Neighbors(end) {
				if n == u || n == v || !inPool(pool, n) {
					continue
				}
				ties[n] = pruned.Weight(n, u) + pruned.Weight(n, v)
			}
		}
		if len(ties)+2 < k {
			continue
		}

		ranked := make([]string, 0, len(ties))
		for n := range ties {
			ranked = append(ranked, n)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ties[ranked[i]] != ties[ranked[j]] {
				return ties[ranked[i]] > ties[ranked[j]]
			}
			return ranked[i] < ranked[j]
		})

		members := append([]string{u, v}, ranked[:k-2]...)
		sort.Strings(members)
		score := pruned.SubgraphWeight(members)
		if !found || score > best.Weight {
			best = Group{Members: members, Weight: score}
			found = true
		}
	}
	return best, found
}

// exhaustiveBest scores every k-sized combination of the pool. Combinations are
// visited in lexicographic order and the first best one wins.
func exhaustiveBest(pruned *cooccurrence.Graph, k int, pool map[string]struct{}) (Group, bool) {
	sensors := make([]string, 0, len(pool))
	for s := range pool {
		sensors = append(sensors, s)
	}
	sort.Strings(sensors)
	if len(sensors) < k {
		return Group{}, false
	}

	var (
		best  Group
		found bool
	)
	gen := combin.NewCombinationGenerator(len(sensors), k)
	idx := make([]int, k)
	members := make([]string, k)
	for gen.Next() {
		gen.Combination(idx)
		for i, j := range idx {
			members[i] = sensors[j]
		}
		score := pruned.SubgraphWeight(members)
		if !found || score > best.Weight {
			best = Group{Members: append([]string(nil), members...), Weight: score}
			found = true
		}
	}
	return best, found
}

func inPool(pool map[string]struct{}, s string) bool {
	_, ok := pool[s]
	return ok
}
