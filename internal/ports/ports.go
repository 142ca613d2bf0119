package ports

import (
	"context"

	"github.com/forPelevin/pinpoint/internal/types"
)

// VideoSearcher runs one lookup against the video platform.
type VideoSearcher interface {
	Search(ctx context.Context, req types.SearchRequest) ([]types.VideoMetadata, error)
}

// TranscriptSource returns types.ErrTranscriptUnavailable when the video has
// no captions in any of the preferred languages.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string, languages []string) (types.Transcript, error)
}

// TextReasoner is the text-only reasoning service.
type TextReasoner interface {
	ExpandQuery(ctx context.Context, query string) (types.QueryVariants, error)
	// LocalizeTranscript returns an empty slice when nothing relevant exists.
	LocalizeTranscript(ctx context.Context, tr types.Transcript, query string) ([]types.Localization, error)
	Summarize(ctx context.Context, query string, segs []types.RefinedSegment) (string, error)
}

// VideoReasoner analyzes media directly.
type VideoReasoner interface {
	// LocalizeReference analyzes a remote video by URL, without downloading it.
	LocalizeReference(ctx context.Context, videoURL, query string) ([]types.Localization, error)
	// AnalyzeClip answers in clip-relative seconds.
	AnalyzeClip(ctx context.Context, clipPath, query string) (types.ClipAnalysis, error)
}

// StreamResolver resolves short-lived direct media URLs for a video page.
type StreamResolver interface {
	StreamURLs(ctx context.Context, videoURL string) (types.MediaStreams, error)
}

// MediaTool fetches and muxes media locally.
type MediaTool interface {
	// ExtractRange fetches only tr from the streams into a playable outPath.
	ExtractRange(ctx context.Context, streams types.MediaStreams, tr types.TimeRange, outPath string) error
	Concat(ctx context.Context, clips []string, outPath string) error
	// ProbeDuration reports the playable length of a local file in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// AudioExtractor writes 16 kHz mono WAV audio for speech recognition.
type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string, maxSec float64) error
}
