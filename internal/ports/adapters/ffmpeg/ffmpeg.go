package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/pinpoint/internal/types"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	run     runFunc
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, run: combinedOutput}
}

// ExtractRange seeks each input before opening it, so only the requested
// range is fetched from the remote streams.
func (a *Adapter) ExtractRange(ctx context.Context, streams types.MediaStreams, tr types.TimeRange, outPath string) error {
	if streams.Video == "" {
		return errors.New("ffmpeg extract range: no video stream")
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-ss", tr.FFmpegSS(), "-i", streams.Video,
	}
	if streams.Audio != "" && streams.Audio != streams.Video {
		args = append(args,
			"-ss", tr.FFmpegSS(), "-i", streams.Audio,
			"-map", "0:v:0", "-map", "1:a:0",
		)
	}
	args = append(args,
		"-t", tr.FFmpegT(),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	)
	if b, err := a.run(ctx, a.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg extract range %s: %w\n%s", tr, err, tail(b))
	}
	return nil
}

// Concat joins clips encoded with identical settings without re-encoding.
func (a *Adapter) Concat(ctx context.Context, clips []string, outPath string) error {
	if len(clips) == 0 {
		return errors.New("ffmpeg concat: no clips")
	}
	list, err := os.CreateTemp("", "pinpoint-concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())
	if _, err := list.WriteString(concatList(clips)); err != nil {
		list.Close()
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}

	b, err := a.run(ctx, a.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		"-movflags", "+faststart",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w\n%s", err, tail(b))
	}
	return nil
}

// ExtractAudioMono16k writes at most maxSec seconds of audio (0 means all).
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string, maxSec float64) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", in}
	if maxSec > 0 {
		args = append(args, "-t", strconv.FormatFloat(maxSec, 'f', 3, 64))
	}
	args = append(args,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if b, err := a.run(ctx, a.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	b, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, tail(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func concatList(clips []string) string {
	var b strings.Builder
	for _, c := range clips {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(c, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func tail(b []byte) string {
	const n = 2000
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
