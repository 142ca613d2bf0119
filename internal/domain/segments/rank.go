package segments

import (
	"math"
	"sort"

	"github.com/forPelevin/pinpoint/internal/types"
)

// Rank drops candidates below floor (and those with a NaN confidence), orders the rest by confidence
// descending and keeps at most limit (limit <= 0 keeps all).
// Ties are broken by earlier publish date, video id, then range, so the
// output does not depend on input order.
func Rank(cands []types.Candidate, floor float64, limit int) []types.Candidate {
	out := make([]types.Candidate, 0, len(cands))
	for _, c := range cands {
		if math.IsNaN(c.Confidence) || c.Confidence < floor {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return candidateLess(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func candidateLess(a, b types.Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.Video.PublishedAt.Equal(b.Video.PublishedAt) {
		return a.Video.PublishedAt.Before(b.Video.PublishedAt)
	}
	if a.Video.VideoID != b.Video.VideoID {
		return a.Video.VideoID < b.Video.VideoID
	}
	if a.Range.StartSec() != b.Range.StartSec() {
		return a.Range.StartSec() < b.Range.StartSec()
	}
	if a.Range.EndSec() != b.Range.EndSec() {
		return a.Range.EndSec() < b.Range.EndSec()
	}
	return a.Summary < b.Summary
}

// SortSegments orders final segments by confidence with the same
// deterministic tie-breaks as Rank.
func SortSegments(segs []types.RefinedSegment) {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		return candidateLess(
			types.Candidate{Video: a.Video, Range: a.Range, Confidence: a.Confidence, Summary: a.Summary},
			types.Candidate{Video: b.Video, Range: b.Range, Confidence: b.Confidence, Summary: b.Summary},
		)
	})
}

// TopPerVideo keeps the n most confident localizations.
func TopPerVideo(locs []types.Localization, n int) []types.Localization {
	out := append([]types.Localization(nil), locs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Range.StartSec() < out[j].Range.StartSec()
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
