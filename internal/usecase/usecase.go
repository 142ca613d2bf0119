package usecase

import (
	"context"
	"math"
	"time"

	"github.com/forPelevin/pinpoint/internal/domain/segments"
	"github.com/forPelevin/pinpoint/internal/ports"
	"github.com/forPelevin/pinpoint/internal/types"
)

type Deps struct {
	Search      ports.VideoSearcher
	Transcripts ports.TranscriptSource
	Text        ports.TextReasoner
	// Video, Streams and Media may be nil; refinement, fallback localization
	// and the highlight reel are then skipped.
	Video   ports.VideoReasoner
	Streams ports.StreamResolver
	Media   ports.MediaTool

	Now func() time.Time
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Now == nil {
		d.Now = time.Now
	}
	return Usecase{d: d}
}

// DegradedSummary marks a segment whose range is the unrefined estimate.
const DegradedSummary = "(precise analysis failed)"

type Input struct {
	Query string

	MaxSearchResults      int
	MaxFinalResults       int
	MaxCandidatesPerVideo int
	MinConfidence         float64
	Workers               int

	DurationMinSec  int
	DurationMaxSec  int
	PublishedAfter  time.Time
	PublishedBefore time.Time
	RecentWindow    time.Duration
	Languages       []string
	// RelevanceLanguage is passed to the searcher as a ranking hint.
	RelevanceLanguage string

	EnableFallback         bool
	FallbackMaxDurationSec int

	EnableRefinement bool
	BufferRatio      float64
	RefineOrder      segments.RefineOrder
	// RefineBudget caps how many candidates are refined; 0 refines all.
	RefineBudget   int
	RefineAttempts int
	RetryBackoff   time.Duration
	// DegradedFactor scales the confidence of segments whose refinement failed.
	DegradedFactor float64

	MergeOverlaps bool
	MergeGapSec   float64

	Summarize bool
	ReelPath  string
	TempDir   string

	ReasoningTimeout  time.Duration
	SearchTimeout     time.Duration
	TranscriptTimeout time.Duration
	LocalizeTimeout   time.Duration
	ExtractTimeout    time.Duration
	AnalyzeTimeout    time.Duration

	Logf    func(format string, args ...any)
	OnStage func(types.Stage)
}

func (in Input) logf(format string, args ...any) {
	if in.Logf != nil {
		in.Logf(format, args...)
	}
}

func (in Input) stage(s types.Stage) {
	in.logf("stage: %s", s)
	if in.OnStage != nil {
		in.OnStage(s)
	}
}

func (in Input) workers() int {
	if in.Workers <= 0 {
		return 1
	}
	return in.Workers
}

// Run executes one query end to end. Per-item failures are logged and
// excluded; the only error returned is total search failure.
func (u Usecase) Run(ctx context.Context, in Input) (types.SearchResult, error) {
	started := time.Now()
	res := types.SearchResult{Query: in.Query, Segments: []types.RefinedSegment{}}
	done := func() (types.SearchResult, error) {
		res.ProcessingTimeSec = time.Since(started).Seconds()
		in.stage(types.StageDone)
		in.logf("done: %d segments in %.2fs", len(res.Segments), res.ProcessingTimeSec)
		return res, nil
	}

	in.stage(types.StageQueryExpansion)
	variants := u.expandQuery(ctx, in)

	in.stage(types.StageSearching)
	videos, stats, err := u.searchVideos(ctx, in, variants.Unique())
	if err != nil {
		in.stage(types.StageErrored)
		return types.SearchResult{}, err
	}
	res.SearchStats = stats
	if len(videos) == 0 {
		in.logf("no videos found")
		return done()
	}

	in.stage(types.StageLocalizing)
	cands := u.localizeVideos(ctx, in, videos)

	in.stage(types.StageRanking)
	ranked := segments.Rank(cands, in.MinConfidence, in.MaxFinalResults)
	in.logf("ranked: %d of %d candidates kept (floor %.2f, limit %d)", len(ranked), len(cands), in.MinConfidence, in.MaxFinalResults)
	if len(ranked) == 0 {
		return done()
	}

	var segs []types.RefinedSegment
	if in.EnableRefinement && u.canRefine() {
		in.stage(types.StageRefining)
		segs = u.refineCandidates(ctx, in, ranked)
		segments.SortSegments(segs)
	} else {
		segs = make([]types.RefinedSegment, 0, len(ranked))
		for _, c := range ranked {
			segs = append(segs, coarseSegment(c))
		}
	}
	if in.MergeOverlaps {
		segs = segments.Merge(segs, in.MergeGapSec)
	}
	res.Segments = segs

	if in.Summarize || in.ReelPath != "" {
		in.stage(types.StageAggregating)
		u.aggregate(ctx, in, &res)
	}
	return done()
}

func (u Usecase) canRefine() bool {
	return u.d.Video != nil && u.canExtract()
}

func (u Usecase) canExtract() bool {
	return u.d.Streams != nil && u.d.Media != nil
}

func coarseSegment(c types.Candidate) types.RefinedSegment {
	return types.RefinedSegment{
		Video:      c.Video,
		Range:      c.Range,
		Confidence: c.Confidence,
		Summary:    c.Summary,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
