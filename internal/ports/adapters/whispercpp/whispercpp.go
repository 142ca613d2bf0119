// Package whispercpp transcribes a video's audio locally when the platform
// has no captions for it.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/pinpoint/internal/ports"
	"github.com/forPelevin/pinpoint/internal/types"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Config struct {
	BinPath   string
	ModelPath string
	// MaxAudioSec bounds how much audio is transcribed from the start.
	MaxAudioSec float64
	TempDir     string
}

type Adapter struct {
	cfg     Config
	streams ports.StreamResolver
	audio   ports.AudioExtractor
	run     runFunc
}

func New(cfg Config, streams ports.StreamResolver, audio ports.AudioExtractor) *Adapter {
	if cfg.BinPath == "" {
		cfg.BinPath = "whisper-cli"
	}
	return &Adapter{cfg: cfg, streams: streams, audio: audio, run: combinedOutput}
}

func (a *Adapter) Fetch(ctx context.Context, videoID string, _ []string) (types.Transcript, error) {
	streams, err := a.streams.StreamURLs(ctx, types.VideoMetadata{VideoID: videoID}.URL())
	if err != nil {
		return types.Transcript{}, err
	}
	src := streams.Audio
	if src == "" {
		src = streams.Video
	}

	dir, err := os.MkdirTemp(a.cfg.TempDir, "pinpoint-asr-")
	if err != nil {
		return types.Transcript{}, err
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, src, wav, a.cfg.MaxAudioSec); err != nil {
		return types.Transcript{}, err
	}

	outPrefix := filepath.Join(dir, "whisper")
	args := []string{
		"-m", a.cfg.ModelPath,
		"-f", wav,
		"-l", "auto",
		"-oj",
		"-of", outPrefix,
	}
	if b, err := a.run(ctx, a.cfg.BinPath, args...); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	tr, err := parseOutput(jb)
	if err != nil {
		return types.Transcript{}, err
	}
	if tr.Empty() {
		return types.Transcript{}, fmt.Errorf("%w: no speech recognized", types.ErrTranscriptUnavailable)
	}
	tr.VideoID = videoID
	return tr, nil
}

// parseOutput reads whisper.cpp -oj output; offsets are in milliseconds.
func parseOutput(b []byte) (types.Transcript, error) {
	if !gjson.ValidBytes(b) {
		return types.Transcript{}, errors.New("whisper.cpp: invalid JSON output")
	}
	tr := types.Transcript{
		Language:        gjson.GetBytes(b, "result.language").String(),
		IsAutoGenerated: true,
	}
	for _, seg := range gjson.GetBytes(b, "transcription").Array() {
		text := strings.TrimSpace(seg.Get("text").String())
		from := seg.Get("offsets.from").Float() / 1000
		to := seg.Get("offsets.to").Float() / 1000
		if text == "" || to <= from {
			continue
		}
		tr.Chunks = append(tr.Chunks, types.TranscriptChunk{StartSec: from, EndSec: to, Text: text})
	}
	return tr, nil
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
