package segments

import "github.com/forPelevin/pinpoint/internal/types"

// DedupeVideos concatenates batches keeping the first occurrence of each
// video id. Later duplicates are discarded, not merged.
func DedupeVideos(batches ...[]types.VideoMetadata) []types.VideoMetadata {
	seen := make(map[string]struct{})
	var out []types.VideoMetadata
	for _, batch := range batches {
		for _, v := range batch {
			if v.VideoID == "" {
				continue
			}
			if _, ok := seen[v.VideoID]; ok {
				continue
			}
			seen[v.VideoID] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// FilterDuration keeps videos with minSec <= duration <= maxSec.
// A bound <= 0 is ignored.
func FilterDuration(videos []types.VideoMetadata, minSec, maxSec int) []types.VideoMetadata {
	out := make([]types.VideoMetadata, 0, len(videos))
	for _, v := range videos {
		if minSec > 0 && v.DurationSec < minSec {
			continue
		}
		if maxSec > 0 && v.DurationSec > maxSec {
			continue
		}
		out = append(out, v)
	}
	return out
}
