package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/pinpoint/internal/types"
)

func testInput(t *testing.T, query string) Input {
	t.Helper()
	return Input{
		Query:                  query,
		MaxSearchResults:       30,
		MaxFinalResults:        5,
		MaxCandidatesPerVideo:  3,
		MinConfidence:          0.3,
		Workers:                4,
		DurationMinSec:         60,
		DurationMaxSec:         7200,
		Languages:              []string{"ja", "en"},
		EnableFallback:         true,
		FallbackMaxDurationSec: 1200,
		BufferRatio:            0.2,
		RefineAttempts:         2,
		RetryBackoff:           time.Millisecond,
		DegradedFactor:         0.6,
		TempDir:                t.TempDir(),
		Logf:                   t.Logf,
	}
}

func testVideo(id string, durationSec int) types.VideoMetadata {
	return types.VideoMetadata{
		VideoID:     id,
		Title:       "video " + id,
		ChannelName: "channel",
		DurationSec: durationSec,
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testTranscript(id string) types.Transcript {
	return types.Transcript{
		VideoID:  id,
		Language: "en",
		Chunks: []types.TranscriptChunk{
			{StartSec: 0, EndSec: 40, Text: "intro"},
			{StartSec: 40, EndSec: 70, Text: "now the install steps"},
		},
	}
}

type fakeSearch struct {
	mu     sync.Mutex
	videos []types.VideoMetadata
	err    error
	reqs   []types.SearchRequest
}

func (f *fakeSearch) Search(_ context.Context, req types.SearchRequest) ([]types.VideoMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.VideoMetadata(nil), f.videos...), nil
}

func (f *fakeSearch) requests() []types.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.SearchRequest(nil), f.reqs...)
}

type fakeTranscripts struct {
	byID map[string]types.Transcript
	err  error
}

func (f fakeTranscripts) Fetch(_ context.Context, videoID string, _ []string) (types.Transcript, error) {
	if f.err != nil {
		return types.Transcript{}, f.err
	}
	tr, ok := f.byID[videoID]
	if !ok {
		return types.Transcript{}, types.ErrTranscriptUnavailable
	}
	return tr, nil
}

type fakeText struct {
	variants     types.QueryVariants
	expandErr    error
	locs         map[string][]types.Localization
	localizeErr  map[string]error
	summary      string
	summarizeErr error
}

func (f fakeText) ExpandQuery(_ context.Context, query string) (types.QueryVariants, error) {
	if f.expandErr != nil {
		return types.QueryVariants{}, f.expandErr
	}
	if f.variants == (types.QueryVariants{}) {
		return types.QueryVariants{Original: query, Optimized: query, Simplified: query}, nil
	}
	return f.variants, nil
}

func (f fakeText) LocalizeTranscript(_ context.Context, tr types.Transcript, _ string) ([]types.Localization, error) {
	if err := f.localizeErr[tr.VideoID]; err != nil {
		return nil, err
	}
	return f.locs[tr.VideoID], nil
}

func (f fakeText) Summarize(_ context.Context, _ string, _ []types.RefinedSegment) (string, error) {
	return f.summary, f.summarizeErr
}

type fakeVideo struct {
	mu sync.Mutex
	// answers are consumed in order; the last one repeats.
	answers    []analysisAnswer
	analyzed   []string
	clipExists []bool
	refs       map[string][]types.Localization
	refCalls   []string
}

type analysisAnswer struct {
	a   types.ClipAnalysis
	err error
}

func (f *fakeVideo) LocalizeReference(_ context.Context, videoURL, _ string) ([]types.Localization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refCalls = append(f.refCalls, videoURL)
	return f.refs[videoURL], nil
}

func (f *fakeVideo) AnalyzeClip(_ context.Context, clipPath, _ string) (types.ClipAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, statErr := os.Stat(clipPath)
	f.clipExists = append(f.clipExists, statErr == nil)
	f.analyzed = append(f.analyzed, clipPath)
	if len(f.answers) == 0 {
		return types.ClipAnalysis{}, errors.New("no answer")
	}
	ans := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return ans.a, ans.err
}

type fakeStreams struct{ err error }

func (f fakeStreams) StreamURLs(_ context.Context, videoURL string) (types.MediaStreams, error) {
	if f.err != nil {
		return types.MediaStreams{}, f.err
	}
	return types.MediaStreams{Video: videoURL + "#v", Audio: videoURL + "#a"}, nil
}

type fakeMedia struct {
	mu       sync.Mutex
	err      error
	empty    bool
	ranges   []types.TimeRange
	written  []string
	concatIn []string
	concatTo string
}

func (f *fakeMedia) ExtractRange(_ context.Context, _ types.MediaStreams, tr types.TimeRange, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, tr)
	if f.err != nil {
		return f.err
	}
	body := []byte("mp4")
	if f.empty {
		body = nil
	}
	f.written = append(f.written, outPath)
	return os.WriteFile(outPath, body, 0o644)
}

func (f *fakeMedia) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return 0, errors.New("not probed")
}

func (f *fakeMedia) Concat(_ context.Context, clips []string, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concatIn = append([]string(nil), clips...)
	f.concatTo = outPath
	return os.WriteFile(outPath, []byte("reel"), 0o644)
}

func assertNoFiles(t *testing.T, paths []string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed, stat err=%v", p, err)
		}
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, got %d entries", dir, len(entries))
	}
}
