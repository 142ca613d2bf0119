package usecase

import (
	"context"
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

// expandQuery always keeps the user's query verbatim as Original. A failed
// rewrite degrades to searching with the original query alone.
func (u Usecase) expandQuery(ctx context.Context, in Input) types.QueryVariants {
	only := types.QueryVariants{Original: in.Query, Optimized: in.Query, Simplified: in.Query}
	if u.d.Text == nil {
		return only
	}

	cctx, cancel := withTimeout(ctx, in.ReasoningTimeout)
	defer cancel()
	v, err := u.d.Text.ExpandQuery(cctx, in.Query)
	if err != nil {
		in.logf("query expansion failed, using the original query only: %v", err)
		return only
	}

	v.Original = in.Query
	if strings.TrimSpace(v.Optimized) == "" {
		v.Optimized = in.Query
	}
	if strings.TrimSpace(v.Simplified) == "" {
		v.Simplified = in.Query
	}
	in.logf("query variants: original=%q optimized=%q simplified=%q", v.Original, v.Optimized, v.Simplified)
	return v
}
