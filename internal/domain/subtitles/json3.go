package subtitles

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/pinpoint/internal/types"
)

// ParseJSON3 converts a YouTube json3 caption payload into ordered chunks.
// Events without text (window/style events, bare newlines) are skipped.
func ParseJSON3(b []byte) ([]types.TranscriptChunk, error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("json3: invalid JSON")
	}
	events := gjson.GetBytes(b, "events")
	if !events.IsArray() {
		return nil, errors.New("json3: missing events array")
	}

	var out []types.TranscriptChunk
	events.ForEach(func(_, ev gjson.Result) bool {
		segs := ev.Get("segs")
		if !segs.Exists() {
			return true
		}
		var sb strings.Builder
		segs.ForEach(func(_, s gjson.Result) bool {
			sb.WriteString(s.Get("utf8").String())
			return true
		})
		text := normalizeText(sb.String())
		if text == "" {
			return true
		}
		start := ev.Get("tStartMs").Float() / 1000
		dur := ev.Get("dDurationMs").Float() / 1000
		out = append(out, types.TranscriptChunk{StartSec: start, EndSec: start + dur, Text: text})
		return true
	})
	return clipOverlaps(out), nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clipOverlaps trims each chunk's end to the next chunk's start. Auto-generated
// tracks overlap their display windows; downstream assumes they do not.
func clipOverlaps(chunks []types.TranscriptChunk) []types.TranscriptChunk {
	for i := 0; i+1 < len(chunks); i++ {
		if next := chunks[i+1].StartSec; chunks[i].EndSec > next && next > chunks[i].StartSec {
			chunks[i].EndSec = next
		}
	}
	return chunks
}
