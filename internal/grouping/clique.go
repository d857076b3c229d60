package grouping

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/chrissnell/lantern/internal/cooccurrence"
)

var errCliqueBudget = errors.New("clique candidate budget exceeded")

// cliqueCandidates lists every k-sized subset of a maximal clique, scored by its
// pruned internal weight and ranked best first. Enumeration that runs past the
// candidate budget or panics returns an error and no candidates.
func (g *Grouper) cliqueCandidates(pruned *cooccurrence.Graph, k int) (candidates []Group, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("clique enumeration failed: %v", r)
		}
	}()

	seen := make(map[string]struct{})
	add := func(members []string) error {
		key := strings.Join(members, "\x00")
		if _, ok := seen[key]; ok {
			return nil
		}
		if len(candidates) >= g.opts.MaxCliqueCandidates {
			return fmt.Errorf("%w: limit %d", errCliqueBudget, g.opts.MaxCliqueCandidates)
		}
		seen[key] = struct{}{}
		candidates = append(candidates, Group{
			Members: members,
			Weight:  pruned.SubgraphWeight(members),
		})
		return nil
	}

	for _, clique := range pruned.Cliques() {
		switch {
		case len(clique) < k:
			continue
		case len(clique) == k:
			if err := add(clique); err != nil {
				return nil, err
			}
		default:
			if combin.Binomial(len(clique), k) > g.opts.MaxCliqueCandidates-len(candidates) {
				return nil, fmt.Errorf("%w: clique of %d sensors", errCliqueBudget, len(clique))
			}
			gen := combin.NewCombinationGenerator(len(clique), k)
			idx := make([]int, k)
			for gen.Next() {
				gen.Combination(idx)
				members := make([]string, k)
				for i, j := range idx {
					members[i] = clique[j]
				}
				if err := add(members); err != nil {
					return nil, err
				}
			}
		}
	}

	sortGroups(candidates)
	return candidates, nil
}
