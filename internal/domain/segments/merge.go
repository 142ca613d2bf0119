package segments

import (
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

// Merge folds segments of the same video whose ranges overlap or are at
// most gapSec apart. The merged segment keeps the highest confidence and
// the position of its best-ranked member. Input order is otherwise kept.
// Passes repeat until stable, since a grown union can reach a segment that
// was kept apart earlier.
func Merge(segs []types.RefinedSegment, gapSec float64) []types.RefinedSegment {
	out := mergePass(segs, gapSec)
	for len(out) > 1 {
		next := mergePass(out, gapSec)
		if len(next) == len(out) {
			break
		}
		out = next
	}
	return out
}

func mergePass(segs []types.RefinedSegment, gapSec float64) []types.RefinedSegment {
	out := make([]types.RefinedSegment, 0, len(segs))
	for _, s := range segs {
		merged := false
		for i := range out {
			o := &out[i]
			if o.Video.VideoID != s.Video.VideoID || o.Range.Gap(s.Range) > gapSec {
				continue
			}
			o.Range = o.Range.Union(s.Range)
			if s.Confidence > o.Confidence {
				o.Confidence = s.Confidence
			}
			o.Summary = joinSummaries(o.Summary, s.Summary)
			o.Degraded = o.Degraded && s.Degraded
			o.Refined = o.Refined || s.Refined
			merged = true
			break
		}
		if !merged {
			out = append(out, s)
		}
	}
	return out
}

func joinSummaries(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case b == "" || a == b:
		return a
	case a == "":
		return b
	default:
		return a + " / " + b
	}
}
