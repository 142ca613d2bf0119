package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/pinpoint/internal/domain/segments"
	"github.com/forPelevin/pinpoint/internal/types"
)

const (
	defaultRefineAttempts = 3
	defaultRetryBackoff   = 2 * time.Second
	maxRetryBackoff       = 10 * time.Second
)

// refineCandidates returns one segment per ranked candidate, index-aligned.
// Candidates beyond the budget keep their coarse range; failed ones degrade.
func (u Usecase) refineCandidates(ctx context.Context, in Input, ranked []types.Candidate) []types.RefinedSegment {
	out := make([]types.RefinedSegment, len(ranked))
	for i, c := range ranked {
		out[i] = coarseSegment(c)
	}

	order := segments.OrderForRefinement(ranked, in.RefineOrder)
	if in.RefineBudget > 0 && len(order) > in.RefineBudget {
		in.logf("refine budget %d: %d candidates keep their coarse range", in.RefineBudget, len(order)-in.RefineBudget)
		order = order[:in.RefineBudget]
	}

	dir, err := os.MkdirTemp(in.TempDir, "pinpoint-"+uuid.NewString()[:8]+"-")
	if err != nil {
		in.logf("refine: temp dir: %v", err)
		for _, i := range order {
			out[i] = degradedSegment(ranked[i], in.DegradedFactor)
		}
		return out
	}
	defer os.RemoveAll(dir)

	var g errgroup.Group
	g.SetLimit(in.workers())
	for _, i := range order {
		g.Go(func() error {
			out[i] = u.refineOne(ctx, in, dir, ranked[i])
			return nil
		})
	}
	_ = g.Wait()

	refined := 0
	for _, s := range out {
		if s.Refined {
			refined++
		}
	}
	in.logf("refined: %d of %d candidates", refined, len(order))
	return out
}

func (u Usecase) refineOne(ctx context.Context, in Input, dir string, c types.Candidate) types.RefinedSegment {
	seg, err := u.refine(ctx, in, dir, c)
	if err != nil {
		in.logf("refine %s %s failed, keeping coarse range: %v", c.Video.VideoID, c.Range, err)
		return degradedSegment(c, in.DegradedFactor)
	}
	return seg
}

func (u Usecase) refine(ctx context.Context, in Input, dir string, c types.Candidate) (types.RefinedSegment, error) {
	clipRange := c.Range.WithBuffer(in.BufferRatio)
	clipPath := filepath.Join(dir, uuid.NewString()+".mp4")
	defer removeClip(in, clipPath)

	if err := u.extractClip(ctx, in, c.Video, clipRange, clipPath); err != nil {
		return types.RefinedSegment{}, err
	}

	clipDur := clipRange.Duration()
	if d, err := u.d.Media.ProbeDuration(ctx, clipPath); err == nil && d > 0 && d < clipDur {
		clipDur = d
	}
	rel, a, err := u.analyzeWithRetry(ctx, in, clipPath, clipDur)
	if err != nil {
		return types.RefinedSegment{}, err
	}
	abs, err := segments.ToAbsolute(clipRange.StartSec(), rel)
	if err != nil {
		return types.RefinedSegment{}, err
	}

	summary := a.Summary
	if summary == "" {
		summary = c.Summary
	}
	return types.RefinedSegment{
		Video:      c.Video,
		Range:      abs,
		Confidence: clamp01(a.Confidence),
		Summary:    summary,
		Refined:    true,
	}, nil
}

func removeClip(in Input, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		in.logf("remove clip %s: %v", path, err)
	}
}

// analyzeWithRetry asks for the precise range, retrying transport errors and
// malformed answers with exponential backoff.
func (u Usecase) analyzeWithRetry(ctx context.Context, in Input, clipPath string, clipDur float64) (types.TimeRange, types.ClipAnalysis, error) {
	var (
		rel     types.TimeRange
		got     types.ClipAnalysis
		attempt int
	)
	op := func() error {
		attempt++
		actx, cancel := withTimeout(ctx, in.AnalyzeTimeout)
		defer cancel()
		a, err := u.d.Video.AnalyzeClip(actx, clipPath, in.Query)
		if err != nil {
			return err
		}
		r, err := clipRelativeRange(a, clipDur)
		if err != nil {
			return &types.ReasoningError{Op: "analyze clip", Err: err}
		}
		rel, got = r, a
		return nil
	}
	notify := func(err error, wait time.Duration) {
		in.logf("clip analysis attempt %d failed, retrying in %s: %v", attempt, wait.Round(time.Millisecond), err)
	}

	if err := backoff.RetryNotify(op, retryPolicy(ctx, in), notify); err != nil {
		return types.TimeRange{}, types.ClipAnalysis{}, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return rel, got, nil
}

func retryPolicy(ctx context.Context, in Input) backoff.BackOff {
	attempts := in.RefineAttempts
	if attempts <= 0 {
		attempts = defaultRefineAttempts
	}
	initial := in.RetryBackoff
	if initial <= 0 {
		initial = defaultRetryBackoff
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max(initial, maxRetryBackoff)
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// clipRelativeRange validates a clip analysis. A non-positive confidence with
// no usable range means the topic is absent: the whole clip is reported at
// confidence 0. The end is clamped to the clip length.
func clipRelativeRange(a types.ClipAnalysis, clipDur float64) (types.TimeRange, error) {
	start, end := max(a.StartSec, 0), a.EndSec
	if clipDur > 0 && end > clipDur {
		end = clipDur
	}
	tr, err := types.NewTimeRange(start, end)
	if err == nil {
		return tr, nil
	}
	if a.Confidence <= 0 && clipDur > 0 {
		return types.NewTimeRange(0, clipDur)
	}
	return types.TimeRange{}, err
}

// degradedSegment keeps the coarse range and scales confidence by factor,
// which lowers it strictly for any positive confidence. A zero confidence
// stays zero.
func degradedSegment(c types.Candidate, factor float64) types.RefinedSegment {
	if factor <= 0 || factor >= 1 {
		factor = 0.6
	}
	summary := DegradedSummary
	if c.Summary != "" {
		summary += " " + c.Summary
	}
	return types.RefinedSegment{
		Video:      c.Video,
		Range:      c.Range,
		Confidence: c.Confidence * factor,
		Summary:    summary,
		Degraded:   true,
	}
}
