package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/pinpoint/internal/types"
)

func fakeEnv(vals map[string]string) *envReader {
	return &envReader{lookup: func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}}
}

func TestLoadConfig_Defaults(t *testing.T) {
	env := fakeEnv(map[string]string{"YOUTUBE_API_KEY": "yt", "DEFAULT_MODEL": "base-model"})
	cfg := loadConfig(env)
	if env.err != nil {
		t.Fatalf("unexpected error: %v", env.err)
	}
	if cfg.MaxSearchResults != 30 || cfg.MaxFinalResults != 5 || cfg.MinConfidence != 0.3 || cfg.BufferRatio != 0.2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FallbackMaxDurationSec != 1200 || cfg.ExtractTimeout != 120*time.Second || cfg.TranscriptTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.QueryModel != "base-model" || cfg.LocalizeModel != "base-model" {
		t.Fatalf("expected DEFAULT_MODEL fallback, got %q %q", cfg.QueryModel, cfg.LocalizeModel)
	}
	if strings.Join(cfg.Languages, ",") != "ja,en" {
		t.Fatalf("unexpected languages %v", cfg.Languages)
	}
}

func TestLoadConfig_ParsesValues(t *testing.T) {
	env := fakeEnv(map[string]string{
		"MAX_FINAL_RESULTS":      "8",
		"MIN_CONFIDENCE":         "0.55",
		"ENABLE_VLM_REFINEMENT":  "false",
		"CLIP_EXTRACT_TIMEOUT":   "90.5",
		"TRANSCRIPT_LANGUAGES":   " en , de ,",
		"PUBLISHED_AFTER":        "2025-01-01T00:00:00Z",
		"WHISPER_MODEL":          "/models/base.bin",
		"SUBTITLE_FETCH_TIMEOUT": "",
	})
	cfg := loadConfig(env)
	if env.err != nil {
		t.Fatalf("unexpected error: %v", env.err)
	}
	if cfg.MaxFinalResults != 8 || cfg.MinConfidence != 0.55 || cfg.EnableRefinement {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.ExtractTimeout != 90500*time.Millisecond {
		t.Fatalf("unexpected extract timeout %v", cfg.ExtractTimeout)
	}
	if strings.Join(cfg.Languages, ",") != "en,de" {
		t.Fatalf("unexpected languages %v", cfg.Languages)
	}
	if cfg.PublishedAfter.Year() != 2025 {
		t.Fatalf("unexpected published after %v", cfg.PublishedAfter)
	}
	if cfg.TranscriptTimeout != 5*time.Minute {
		t.Fatalf("expected a longer transcript budget with speech recognition, got %v", cfg.TranscriptTimeout)
	}
}

func TestLoadConfig_ReportsFirstBadValue(t *testing.T) {
	env := fakeEnv(map[string]string{"WORKERS": "many", "BUFFER_RATIO": "wide"})
	loadConfig(env)
	if env.err == nil || !strings.Contains(env.err.Error(), "WORKERS") {
		t.Fatalf("expected WORKERS error, got %v", env.err)
	}
}

func TestLoadConfig_RejectsNonFiniteNumbers(t *testing.T) {
	for _, kv := range [][2]string{
		{"MIN_CONFIDENCE", "NaN"},
		{"BUFFER_RATIO", "Inf"},
		{"DEGRADED_FACTOR", "-Inf"},
		{"CLIP_EXTRACT_TIMEOUT", "NaN"},
	} {
		env := fakeEnv(map[string]string{kv[0]: kv[1]})
		loadConfig(env)
		if env.err == nil || !strings.Contains(env.err.Error(), kv[0]) {
			t.Fatalf("%s=%s: expected config error, got %v", kv[0], kv[1], env.err)
		}
	}
}

func TestRootCmd_FlagsOverrideEnv(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--final", "2", "--no-refine", "--reel", "out/", "--refine-order", "shortest"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := loadConfig(fakeEnv(nil))
	if err := applyFlags(cmd, &cfg); err != nil {
		t.Fatalf("apply flags: %v", err)
	}
	if cfg.MaxFinalResults != 2 || cfg.EnableRefinement || cfg.ReelPath != "out/" || cfg.RefineOrder != "shortest" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.MinConfidence != 0.3 {
		t.Fatalf("unset flag must keep env value, got %v", cfg.MinConfidence)
	}
}

func testResult() types.SearchResult {
	return types.SearchResult{
		Query: "install steps",
		Segments: []types.RefinedSegment{{
			Video:      types.VideoMetadata{VideoID: "abc", Title: "Install guide", ChannelName: "chan"},
			Range:      types.MustTimeRange(40, 70),
			Confidence: 0.8,
			Summary:    "runs the installer",
		}},
		ProcessingTimeSec: 12.3,
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, testResult()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got jsonResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %+v", got)
	}
	s := got.Segments[0]
	if s.StartSec != 40 || s.EndSec != 70 || !strings.Contains(s.URL, "t=40") || !strings.Contains(s.EmbedURL, "start=40") {
		t.Fatalf("unexpected segment: %+v", s)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	writeText(&buf, testResult())
	out := buf.String()
	for _, want := range []string{"1 segments", "Install guide (chan)", "0:40-1:10", "runs the installer"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	writeText(&buf, types.SearchResult{Query: "nothing"})
	if !strings.Contains(buf.String(), "No matching segments") {
		t.Fatalf("unexpected empty output: %s", buf.String())
	}
}
