package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

// aggregate adds the optional integrated summary and highlight reel.
// Failures here never fail the run.
func (u Usecase) aggregate(ctx context.Context, in Input, res *types.SearchResult) {
	if len(res.Segments) == 0 {
		return
	}
	if in.Summarize {
		res.Summary = u.summarize(ctx, in, res.Segments)
	}
	if in.ReelPath != "" {
		path, err := u.buildReel(ctx, in, res.Segments)
		if err != nil {
			in.logf("reel: %v", err)
			return
		}
		res.ReelPath = path
	}
}

func (u Usecase) summarize(ctx context.Context, in Input, segs []types.RefinedSegment) string {
	if u.d.Text != nil {
		cctx, cancel := withTimeout(ctx, in.ReasoningTimeout)
		defer cancel()
		s, err := u.d.Text.Summarize(cctx, in.Query, segs)
		if err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		if err != nil {
			in.logf("summary failed, listing segments instead: %v", err)
		}
	}
	return bulletSummary(segs)
}

func bulletSummary(segs []types.RefinedSegment) string {
	var b strings.Builder
	for _, s := range segs {
		summary := s.Summary
		if summary == "" {
			summary = s.Video.Title
		}
		fmt.Fprintf(&b, "• %s (%s %s)\n", summary, s.Video.Title, s.Range)
	}
	return strings.TrimSpace(b.String())
}

func (u Usecase) buildReel(ctx context.Context, in Input, segs []types.RefinedSegment) (string, error) {
	if !u.canExtract() {
		return "", errors.New("media tools are not configured")
	}
	dir, err := os.MkdirTemp(in.TempDir, "pinpoint-reel-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	parts := make([]string, 0, len(segs))
	for i, s := range segs {
		p := filepath.Join(dir, fmt.Sprintf("%03d.mp4", i+1))
		if err := u.extractClip(ctx, in, s.Video, s.Range, p); err != nil {
			in.logf("reel: skipping segment %d: %v", i+1, err)
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return "", errors.New("no segment could be extracted")
	}
	if err := u.d.Media.Concat(ctx, parts, in.ReelPath); err != nil {
		return "", fmt.Errorf("concat %d clips: %w", len(parts), err)
	}
	in.logf("reel: %d clips written to %s", len(parts), in.ReelPath)
	return in.ReelPath, nil
}
