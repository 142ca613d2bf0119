package subtitles

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

var (
	reCue = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}[.,]\d{3})\s*-->\s*((?:\d+:)?\d{2}:\d{2}[.,]\d{3})`)
	reTag = regexp.MustCompile(`<[^>]*>`)
)

// ParseVTT converts WebVTT (or SRT, which differs only in separators) into
// ordered chunks. Consecutive cues repeating the previous text, as rolling
// auto-captions do, are folded into one chunk.
func ParseVTT(b []byte) ([]types.TranscriptChunk, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		out     []types.TranscriptChunk
		cur     *types.TranscriptChunk
		lines   []string
		lineNum int
	)
	flush := func() {
		if cur == nil {
			return
		}
		text := normalizeText(reTag.ReplaceAllString(strings.Join(lines, " "), ""))
		if text != "" {
			if n := len(out); n > 0 && out[n-1].Text == text {
				out[n-1].EndSec = cur.EndSec
			} else {
				cur.Text = text
				out = append(out, *cur)
			}
		}
		cur, lines = nil, nil
	}

	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\xef\xbb\xbf"))
		if m := reCue.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseClock(m[1])
			if err != nil {
				return nil, fmt.Errorf("vtt line %d: %w", lineNum, err)
			}
			end, err := parseClock(m[2])
			if err != nil {
				return nil, fmt.Errorf("vtt line %d: %w", lineNum, err)
			}
			cur = &types.TranscriptChunk{StartSec: start, EndSec: end}
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if cur != nil {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return clipOverlaps(out), nil
}

func parseClock(s string) (float64, error) {
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		total = total*60 + v
	}
	return total, nil
}
