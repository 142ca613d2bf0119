package usecase

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/pinpoint/internal/domain/segments"
	"github.com/forPelevin/pinpoint/internal/types"
)

// localizeVideos fans out over videos with a bounded worker pool. A video
// that fails or times out contributes no candidates.
func (u Usecase) localizeVideos(ctx context.Context, in Input, videos []types.VideoMetadata) []types.Candidate {
	perVideo := make([][]types.Candidate, len(videos))

	var g errgroup.Group
	g.SetLimit(in.workers())
	for i, v := range videos {
		g.Go(func() error {
			cctx, cancel := withTimeout(ctx, in.LocalizeTimeout)
			defer cancel()
			cands, err := u.localizeVideo(cctx, in, v, i)
			if err != nil {
				in.logf("localize %s: %v", v.VideoID, err)
				return nil
			}
			perVideo[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	var out []types.Candidate
	withHits := 0
	for _, cs := range perVideo {
		if len(cs) > 0 {
			withHits++
		}
		out = append(out, cs...)
	}
	in.logf("localized: %d candidates from %d of %d videos", len(out), withHits, len(videos))
	return out
}

func (u Usecase) localizeVideo(ctx context.Context, in Input, v types.VideoMetadata, rank int) ([]types.Candidate, error) {
	locs, source, err := u.localizations(ctx, in, v)
	if err != nil {
		return nil, err
	}

	kept := make([]types.Localization, 0, len(locs))
	for _, l := range locs {
		if v.DurationSec > 0 && l.Range.StartSec() >= float64(v.DurationSec) {
			continue
		}
		l.Confidence = clamp01(l.Confidence)
		kept = append(kept, l)
	}
	kept = segments.TopPerVideo(kept, in.MaxCandidatesPerVideo)

	out := make([]types.Candidate, 0, len(kept))
	for _, l := range kept {
		out = append(out, types.Candidate{
			Video:      v,
			Range:      l.Range,
			Confidence: l.Confidence,
			Summary:    l.Summary,
			Source:     source,
			SearchRank: rank,
		})
	}
	return out, nil
}

// localizations prefers the transcript path and falls back to reference
// analysis when no usable transcript exists and the video is short enough.
func (u Usecase) localizations(ctx context.Context, in Input, v types.VideoMetadata) ([]types.Localization, types.CandidateSource, error) {
	tctx, cancel := withTimeout(ctx, in.TranscriptTimeout)
	tr, err := u.d.Transcripts.Fetch(tctx, v.VideoID, in.Languages)
	cancel()
	if err == nil && !tr.Empty() {
		locs, err := u.d.Text.LocalizeTranscript(ctx, tr, in.Query)
		if err != nil {
			return nil, "", err
		}
		return locs, types.SourceTranscript, nil
	}
	if err == nil {
		err = types.ErrTranscriptUnavailable
	}

	if reason := u.fallbackBlocked(in, v); reason != "" {
		return nil, "", fmt.Errorf("no transcript (%w), fallback skipped: %s", err, reason)
	}
	if !errors.Is(err, types.ErrTranscriptUnavailable) {
		in.logf("%s: transcript fetch failed: %v", v.VideoID, err)
	}
	in.logf("%s: analyzing by reference (%ds)", v.VideoID, v.DurationSec)
	locs, err := u.d.Video.LocalizeReference(ctx, v.URL(), in.Query)
	if err != nil {
		return nil, "", err
	}
	return locs, types.SourceReference, nil
}

func (u Usecase) fallbackBlocked(in Input, v types.VideoMetadata) string {
	switch {
	case !in.EnableFallback:
		return "disabled"
	case u.d.Video == nil:
		return "no video reasoner"
	case v.DurationSec <= 0:
		return "unknown duration"
	case in.FallbackMaxDurationSec > 0 && v.DurationSec > in.FallbackMaxDurationSec:
		return fmt.Sprintf("duration %ds exceeds %ds", v.DurationSec, in.FallbackMaxDurationSec)
	}
	return ""
}
