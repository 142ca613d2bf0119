package segments

import (
	"fmt"
	"sort"

	"github.com/forPelevin/pinpoint/internal/types"
)

// RefineOrder decides which ranked candidates get refinement capacity first.
type RefineOrder string

const (
	RefineByConfidence RefineOrder = "confidence"
	RefineBySearchRank RefineOrder = "search"
	RefineByShortest   RefineOrder = "shortest"
)

func ParseRefineOrder(s string) (RefineOrder, error) {
	switch o := RefineOrder(s); o {
	case "":
		return RefineByConfidence, nil
	case RefineByConfidence, RefineBySearchRank, RefineByShortest:
		return o, nil
	default:
		return "", fmt.Errorf("unknown refine order %q (want confidence, search or shortest)", s)
	}
}

// OrderForRefinement returns the indexes of cands in refinement order.
// cands is expected to be the output of Rank.
func OrderForRefinement(cands []types.Candidate, order RefineOrder) []int {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	switch order {
	case RefineBySearchRank:
		sort.SliceStable(idx, func(a, b int) bool {
			return cands[idx[a]].SearchRank < cands[idx[b]].SearchRank
		})
	case RefineByShortest:
		sort.SliceStable(idx, func(a, b int) bool {
			return cands[idx[a]].Range.Duration() < cands[idx[b]].Range.Duration()
		})
	}
	return idx
}
