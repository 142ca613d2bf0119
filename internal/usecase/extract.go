package usecase

import (
	"context"
	"errors"
	"os"

	"github.com/forPelevin/pinpoint/internal/types"
)

var errEmptyClip = errors.New("clip file is empty")

// extractClip writes only tr of the video to outPath. Every failure is a
// *types.ClipExtractionError naming the phase that failed.
func (u Usecase) extractClip(ctx context.Context, in Input, v types.VideoMetadata, tr types.TimeRange, outPath string) error {
	cctx, cancel := withTimeout(ctx, in.ExtractTimeout)
	defer cancel()

	fail := func(stage string, err error) error {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			stage = "timeout"
		}
		return &types.ClipExtractionError{VideoID: v.VideoID, Range: tr, Stage: stage, Err: err}
	}

	streams, err := u.d.Streams.StreamURLs(cctx, v.URL())
	if err != nil {
		return fail("resolve", err)
	}
	if err := u.d.Media.ExtractRange(cctx, streams, tr, outPath); err != nil {
		return fail("transcode", err)
	}
	fi, err := os.Stat(outPath)
	if err != nil {
		return fail("validate", err)
	}
	if fi.Size() == 0 {
		return fail("validate", errEmptyClip)
	}
	return nil
}
