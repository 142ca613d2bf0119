package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeRange is an immutable [Start, End) interval in seconds.
// The zero value is not a valid range; build one with NewTimeRange.
type TimeRange struct {
	start float64
	end   float64
}

func NewTimeRange(startSec, endSec float64) (TimeRange, error) {
	if !finite(startSec) || !finite(endSec) {
		return TimeRange{}, fmt.Errorf("%w: bounds %v-%v must be finite", ErrInvalidTimeRange, startSec, endSec)
	}
	if startSec < 0 {
		return TimeRange{}, fmt.Errorf("%w: start %.3f is negative", ErrInvalidTimeRange, startSec)
	}
	if endSec <= startSec {
		return TimeRange{}, fmt.Errorf("%w: end %.3f must be greater than start %.3f", ErrInvalidTimeRange, endSec, startSec)
	}
	return TimeRange{start: startSec, end: endSec}, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// MustTimeRange panics on invalid input. Meant for tests and constants.
func MustTimeRange(startSec, endSec float64) TimeRange {
	tr, err := NewTimeRange(startSec, endSec)
	if err != nil {
		panic(err)
	}
	return tr
}

func (t TimeRange) StartSec() float64 { return t.start }
func (t TimeRange) EndSec() float64   { return t.end }
func (t TimeRange) Duration() float64 { return t.end - t.start }

// WithBuffer pads both sides by Duration()*ratio. The start is clamped at 0;
// the end is never shortened to compensate.
func (t TimeRange) WithBuffer(ratio float64) TimeRange {
	pad := t.Duration() * ratio
	start := t.start - pad
	if start < 0 {
		start = 0
	}
	return TimeRange{start: start, end: t.end + pad}
}

// Contains reports whether sec falls in [Start, End).
func (t TimeRange) Contains(sec float64) bool {
	return sec >= t.start && sec < t.end
}

func (t TimeRange) Overlaps(o TimeRange) bool {
	return t.start < o.end && o.start < t.end
}

// Gap returns the distance between two non-overlapping ranges, 0 if they overlap.
func (t TimeRange) Gap(o TimeRange) float64 {
	switch {
	case t.Overlaps(o):
		return 0
	case t.end <= o.start:
		return o.start - t.end
	default:
		return t.start - o.end
	}
}

// Union spans both ranges.
func (t TimeRange) Union(o TimeRange) TimeRange {
	return TimeRange{start: min(t.start, o.start), end: max(t.end, o.end)}
}

// FFmpegSS formats the start for ffmpeg -ss (HH:MM:SS.cc).
func (t TimeRange) FFmpegSS() string { return clockString(t.start) }

// FFmpegT formats the duration for ffmpeg -t (HH:MM:SS.cc).
func (t TimeRange) FFmpegT() string { return clockString(t.Duration()) }

// EmbedParams returns whole-second start/end for player embed URLs.
func (t TimeRange) EmbedParams() (start, end int) {
	return int(t.start), int(t.end)
}

func (t TimeRange) String() string {
	return fmt.Sprintf("%.1fs-%.1fs", t.start, t.end)
}

type timeRangeJSON struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

func (t TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeRangeJSON{StartSec: t.start, EndSec: t.end})
}

func (t *TimeRange) UnmarshalJSON(b []byte) error {
	var raw timeRangeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	tr, err := NewTimeRange(raw.StartSec, raw.EndSec)
	if err != nil {
		return err
	}
	*t = tr
	return nil
}

func clockString(sec float64) string {
	whole := int(sec)
	centis := int((sec - float64(whole)) * 100)
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, centis)
}

type TranscriptChunk struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Text     string  `json:"text"`
}

type Transcript struct {
	VideoID         string            `json:"video_id"`
	Language        string            `json:"language"`
	Chunks          []TranscriptChunk `json:"chunks"`
	IsAutoGenerated bool              `json:"is_auto_generated"`
}

// FullText joins chunk texts with a single space.
func (t Transcript) FullText() string {
	parts := make([]string, 0, len(t.Chunks))
	for _, c := range t.Chunks {
		if s := strings.TrimSpace(c.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ChunksIn returns the chunks fully contained in tr.
func (t Transcript) ChunksIn(tr TimeRange) []TranscriptChunk {
	var out []TranscriptChunk
	for _, c := range t.Chunks {
		if c.StartSec >= tr.StartSec() && c.EndSec <= tr.EndSec() {
			out = append(out, c)
		}
	}
	return out
}

func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.FullText()) == ""
}

type VideoMetadata struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	ChannelName  string    `json:"channel_name"`
	DurationSec  int       `json:"duration_sec"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

func (v VideoMetadata) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// URLAt links to the watch page starting at tr.
func (v VideoMetadata) URLAt(tr TimeRange) string {
	start, _ := tr.EmbedParams()
	return fmt.Sprintf("%s&t=%d", v.URL(), start)
}

func (v VideoMetadata) EmbedURL(tr TimeRange) string {
	start, end := tr.EmbedParams()
	return fmt.Sprintf("https://www.youtube.com/embed/%s?start=%d&end=%d", v.VideoID, start, end)
}

// Localization is one (range, confidence, summary) tuple returned by a
// reasoning service.
type Localization struct {
	Range      TimeRange
	Confidence float64
	Summary    string
}

// ClipAnalysis is the raw, clip-relative answer of the vision reasoning
// service. Values are not validated.
type ClipAnalysis struct {
	StartSec   float64
	EndSec     float64
	Confidence float64
	Summary    string
}

type CandidateSource string

const (
	SourceTranscript CandidateSource = "transcript"
	SourceReference  CandidateSource = "reference"
)

type Candidate struct {
	Video      VideoMetadata
	Range      TimeRange
	Confidence float64
	Summary    string
	Source     CandidateSource
	// SearchRank is the video's position in the merged search list.
	SearchRank int
}

type RefinedSegment struct {
	Video      VideoMetadata `json:"video"`
	Range      TimeRange     `json:"time_range"`
	Confidence float64       `json:"confidence"`
	Summary    string        `json:"summary"`
	// Degraded is set when refinement failed and Range is the coarse estimate.
	Degraded bool `json:"degraded,omitempty"`
	Refined  bool `json:"refined,omitempty"`
}

type SearchResult struct {
	Query             string           `json:"query"`
	Segments          []RefinedSegment `json:"segments"`
	ProcessingTimeSec float64          `json:"processing_time_sec"`
	Summary           string           `json:"summary,omitempty"`
	ReelPath          string           `json:"reel_path,omitempty"`
	// SearchStats counts videos returned per search strategy, before dedup.
	SearchStats map[string]int `json:"search_stats,omitempty"`
}

type QueryVariants struct {
	Original   string `json:"original"`
	Optimized  string `json:"optimized"`
	Simplified string `json:"simplified"`
}

// Unique returns the non-empty variants in order, without duplicates.
func (q QueryVariants) Unique() []string {
	seen := make(map[string]struct{}, 3)
	out := make([]string, 0, 3)
	for _, s := range []string{q.Original, q.Optimized, q.Simplified} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

type SearchOrder string

const (
	OrderRelevance SearchOrder = "relevance"
	OrderDate      SearchOrder = "date"
)

// SearchRequest is one platform lookup.
type SearchRequest struct {
	Query           string
	Order           SearchOrder
	MaxResults      int
	PublishedAfter  time.Time
	PublishedBefore time.Time
	// RelevanceLanguage is an ISO 639-1 hint; empty means none.
	RelevanceLanguage string
}

// Stage is a state of one pipeline run.
type Stage string

const (
	StageQueryExpansion Stage = "query_expansion"
	StageSearching      Stage = "searching"
	StageLocalizing     Stage = "localizing"
	StageRanking        Stage = "ranking"
	StageRefining       Stage = "refining"
	StageAggregating    Stage = "aggregating"
	StageDone           Stage = "done"
	StageErrored        Stage = "errored"
)

// MediaStreams are direct media locations. Audio is empty when Video is a
// muxed stream.
type MediaStreams struct {
	Video string
	Audio string
}
