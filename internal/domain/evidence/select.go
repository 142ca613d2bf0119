package evidence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

// contextRadius is how many neighbouring chunks travel with a matching chunk.
const contextRadius = 3

// FormatChunk renders one chunk the way the localizer prompt cites it.
func FormatChunk(c types.TranscriptChunk) string {
	return fmt.Sprintf("[%.1fs - %.1fs] %s", c.StartSec, c.EndSec, strings.TrimSpace(c.Text))
}

// Format renders chunks one per line.
func Format(chunks []types.TranscriptChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatChunk(c))
	}
	return b.String()
}

// Select bounds a transcript to roughly maxChars of formatted evidence.
// Short transcripts are returned whole. Otherwise chunks that mention the
// query win, each with a few neighbours for context; with no matches at all
// the transcript is sampled evenly so late parts still get coverage.
// The result is in timeline order.
func Select(chunks []types.TranscriptChunk, query string, maxChars int) []types.TranscriptChunk {
	if maxChars <= 0 || formattedLen(chunks) <= maxChars {
		return chunks
	}

	terms := Terms(query)
	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0, len(chunks))
	for i, c := range chunks {
		if s := Score(c.Text, terms); s > 0 {
			hits = append(hits, scored{idx: i, score: s})
		}
	}
	if len(hits) == 0 {
		return sample(chunks, maxChars)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	picked := make(map[int]struct{})
	used := 0
	for _, h := range hits {
		lo := max(0, h.idx-contextRadius)
		hi := min(len(chunks)-1, h.idx+contextRadius)
		cost := 0
		for k := lo; k <= hi; k++ {
			if _, ok := picked[k]; !ok {
				cost += len(FormatChunk(chunks[k])) + 1
			}
		}
		if used+cost > maxChars {
			if used == 0 {
				picked[h.idx] = struct{}{}
				used += len(FormatChunk(chunks[h.idx])) + 1
			}
			continue
		}
		for k := lo; k <= hi; k++ {
			picked[k] = struct{}{}
		}
		used += cost
	}

	idx := make([]int, 0, len(picked))
	for k := range picked {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	out := make([]types.TranscriptChunk, 0, len(idx))
	for _, k := range idx {
		out = append(out, chunks[k])
	}
	return out
}

func sample(chunks []types.TranscriptChunk, maxChars int) []types.TranscriptChunk {
	total := formattedLen(chunks)
	stride := (total + maxChars - 1) / maxChars
	if stride < 1 {
		stride = 1
	}
	var out []types.TranscriptChunk
	for i := 0; i < len(chunks); i += stride {
		out = append(out, chunks[i])
	}
	return out
}

func formattedLen(chunks []types.TranscriptChunk) int {
	n := 0
	for _, c := range chunks {
		n += len(FormatChunk(c)) + 1
	}
	return n
}
