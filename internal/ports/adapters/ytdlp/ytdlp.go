// Package ytdlp reads caption tracks and direct media URLs through yt-dlp.
package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/pinpoint/internal/domain/subtitles"
	"github.com/forPelevin/pinpoint/internal/types"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

const (
	// Capped so refinement clips stay small enough to send inline.
	defaultFormat = "bv*[height<=720]+ba/b[height<=720]/b"
	maxTrackBytes = 16 << 20
)

type Adapter struct {
	bin    string
	format string
	client *http.Client
	run    runFunc
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{
		bin:    binPath,
		format: defaultFormat,
		client: &http.Client{Timeout: 30 * time.Second},
		run:    stdout,
	}
}

type track struct {
	lang string
	ext  string
	url  string
	auto bool
}

// Fetch prefers uploaded captions over automatic ones, then the order of
// languages.
func (a *Adapter) Fetch(ctx context.Context, videoID string, languages []string) (types.Transcript, error) {
	info, err := a.run(ctx, a.bin,
		"-J",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		types.VideoMetadata{VideoID: videoID}.URL(),
	)
	if err != nil {
		return types.Transcript{}, err
	}
	if !gjson.ValidBytes(info) {
		return types.Transcript{}, fmt.Errorf("yt-dlp: invalid info JSON for %s", videoID)
	}

	t, ok := pickTrack(info, languages)
	if !ok {
		return types.Transcript{}, fmt.Errorf("%w: %s has no captions in %v", types.ErrTranscriptUnavailable, videoID, languages)
	}

	body, err := a.download(ctx, t.url)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("download %s captions: %w", t.lang, err)
	}

	var chunks []types.TranscriptChunk
	switch t.ext {
	case "json3":
		chunks, err = subtitles.ParseJSON3(body)
	default:
		chunks, err = subtitles.ParseVTT(body)
	}
	if err != nil {
		return types.Transcript{}, fmt.Errorf("parse %s captions: %w", t.ext, err)
	}
	if len(chunks) == 0 {
		return types.Transcript{}, fmt.Errorf("%w: %s captions are empty", types.ErrTranscriptUnavailable, t.lang)
	}
	return types.Transcript{
		VideoID:         videoID,
		Language:        t.lang,
		Chunks:          chunks,
		IsAutoGenerated: t.auto,
	}, nil
}

func pickTrack(info []byte, languages []string) (track, bool) {
	for _, group := range []struct {
		key  string
		auto bool
	}{{"subtitles", false}, {"automatic_captions", true}} {
		tracks := gjson.GetBytes(info, group.key)
		for _, lang := range languages {
			var found track
			tracks.ForEach(func(key, formats gjson.Result) bool {
				if !matchesLang(key.String(), lang) {
					return true
				}
				if t, ok := bestFormat(formats); ok {
					t.lang, t.auto = key.String(), group.auto
					found = t
					return false
				}
				return true
			})
			if found.url != "" {
				return found, true
			}
		}
	}
	return track{}, false
}

// matchesLang accepts exact keys and regional or script variants ("en"
// matches "en-US", "zh" matches "zh-Hans"). Translated automatic tracks
// ("en-ja") are skipped.
func matchesLang(key, lang string) bool {
	if key == lang {
		return true
	}
	sub, ok := strings.CutPrefix(key, lang+"-")
	return ok && sub != "" && strings.ToLower(sub) != sub
}

func bestFormat(formats gjson.Result) (track, bool) {
	var vtt track
	for _, f := range formats.Array() {
		ext, url := f.Get("ext").String(), f.Get("url").String()
		if url == "" {
			continue
		}
		switch ext {
		case "json3":
			return track{ext: ext, url: url}, true
		case "vtt", "srt":
			if vtt.url == "" {
				vtt = track{ext: ext, url: url}
			}
		}
	}
	return vtt, vtt.url != ""
}

func (a *Adapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
}

// StreamURLs returns separate video and audio URLs, or a single muxed URL in
// Video when the format has no split streams.
func (a *Adapter) StreamURLs(ctx context.Context, videoURL string) (types.MediaStreams, error) {
	out, err := a.run(ctx, a.bin, "-g", "-f", a.format, "--no-warnings", "--no-playlist", videoURL)
	if err != nil {
		return types.MediaStreams{}, err
	}
	var urls []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	switch len(urls) {
	case 0:
		return types.MediaStreams{}, fmt.Errorf("yt-dlp: no stream URLs for %s", videoURL)
	case 1:
		return types.MediaStreams{Video: urls[0]}, nil
	default:
		return types.MediaStreams{Video: urls[0], Audio: urls[1]}, nil
	}
}

func stdout(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w\n%s", name, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
