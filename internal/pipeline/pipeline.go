package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/pinpoint/internal/domain/segments"
	"github.com/forPelevin/pinpoint/internal/ports"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/openai"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/openrouter"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/rediscache"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/youtube"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/pinpoint/internal/types"
	"github.com/forPelevin/pinpoint/internal/usecase"
)

var ErrEmptyQuery = errors.New("query is empty")

type Config struct {
	Logf    func(format string, args ...any)
	OnStage func(types.Stage)

	YouTubeAPIKey string
	// YouTubeQPS throttles Data API calls across all workers.
	YouTubeQPS float64

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIAllowedHosts []string
	QueryModel         string
	LocalizeModel      string
	SummaryModel       string
	MaxTranscriptChars int

	OpenRouterAPIKey       string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string
	VideoModel             string

	MaxSearchResults      int
	MaxFinalResults       int
	MaxCandidatesPerVideo int
	MinConfidence         float64
	Workers               int

	DurationMinSec    int
	DurationMaxSec    int
	PublishedAfter    time.Time
	PublishedBefore   time.Time
	RelevanceLanguage string
	Languages         []string

	EnableFallback         bool
	FallbackMaxDurationSec int

	EnableRefinement bool
	BufferRatio      float64
	RefineOrder      string
	RefineBudget     int
	RefineAttempts   int
	RetryBackoff     time.Duration
	DegradedFactor   float64

	MergeOverlaps bool
	MergeGapSec   float64
	Summarize     bool
	// ReelPath is a file, or an existing directory in which a name is derived
	// from the query. Empty disables the reel.
	ReelPath string

	// TempDir holds per-run scratch directories. Empty means os.TempDir().
	TempDir string

	ReasoningTimeout  time.Duration
	SearchTimeout     time.Duration
	TranscriptTimeout time.Duration
	LocalizeTimeout   time.Duration
	ExtractTimeout    time.Duration
	AnalyzeTimeout    time.Duration

	FFmpegPath  string
	FFprobePath string
	YtDLPPath   string

	// WhisperModel enables local speech recognition for videos without captions.
	WhisperBin         string
	WhisperModel       string
	WhisperMaxAudioSec float64

	RedisURL           string
	TranscriptCacheTTL time.Duration
	MissingCacheTTL    time.Duration
}

// Defaults mirrors the settings of the hosted service.
func Defaults() Config {
	return Config{
		YouTubeQPS:             5,
		MaxSearchResults:       30,
		MaxFinalResults:        5,
		MaxCandidatesPerVideo:  3,
		MinConfidence:          0.3,
		Workers:                5,
		DurationMinSec:         60,
		DurationMaxSec:         7200,
		Languages:              []string{"ja", "en"},
		EnableFallback:         true,
		FallbackMaxDurationSec: 1200,
		EnableRefinement:       true,
		BufferRatio:            0.2,
		RefineOrder:            string(segments.RefineByConfidence),
		RefineAttempts:         3,
		RetryBackoff:           2 * time.Second,
		DegradedFactor:         0.6,
		MergeGapSec:            2,
		ReasoningTimeout:       30 * time.Second,
		SearchTimeout:          10 * time.Second,
		TranscriptTimeout:      10 * time.Second,
		LocalizeTimeout:        30 * time.Second,
		ExtractTimeout:         120 * time.Second,
		AnalyzeTimeout:         60 * time.Second,
		FFmpegPath:             "ffmpeg",
		FFprobePath:            "ffprobe",
		YtDLPPath:              "yt-dlp",
		WhisperMaxAudioSec:     1200,
		TranscriptCacheTTL:     7 * 24 * time.Hour,
		MissingCacheTTL:        6 * time.Hour,
	}
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"min confidence":    c.MinConfidence,
		"buffer ratio":      c.BufferRatio,
		"degraded factor":   c.DegradedFactor,
		"merge gap":         c.MergeGapSec,
		"youtube qps":       c.YouTubeQPS,
		"whisper max audio": c.WhisperMaxAudioSec,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", name, v)
		}
	}
	switch {
	case c.YouTubeAPIKey == "":
		return errors.New("YOUTUBE_API_KEY is required")
	case c.OpenAIAPIKey == "":
		return errors.New("OPENAI_API_KEY is required")
	case c.OpenRouterAPIKey == "" && (c.EnableRefinement || c.EnableFallback):
		return errors.New("OPENROUTER_API_KEY is required when refinement or fallback is enabled")
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("min confidence must be within [0, 1], got %v", c.MinConfidence)
	case c.MaxFinalResults <= 0:
		return errors.New("final results must be > 0")
	case c.MaxSearchResults <= 0:
		return errors.New("search results must be > 0")
	case c.MaxCandidatesPerVideo <= 0:
		return errors.New("candidates per video must be > 0")
	case c.Workers <= 0:
		return errors.New("workers must be > 0")
	case c.BufferRatio < 0:
		return fmt.Errorf("buffer ratio must be >= 0, got %v", c.BufferRatio)
	case c.DegradedFactor <= 0 || c.DegradedFactor >= 1:
		return fmt.Errorf("degraded factor must be within (0, 1), got %v", c.DegradedFactor)
	case c.DurationMinSec > 0 && c.DurationMaxSec > 0 && c.DurationMinSec > c.DurationMaxSec:
		return errors.New("min duration must be <= max duration")
	case !c.PublishedAfter.IsZero() && !c.PublishedBefore.IsZero() && !c.PublishedAfter.Before(c.PublishedBefore):
		return errors.New("published-after must be before published-before")
	case c.RefineAttempts < 1:
		return errors.New("refine attempts must be >= 1")
	case c.RefineBudget < 0:
		return errors.New("refine budget must be >= 0")
	case c.MergeGapSec < 0:
		return errors.New("merge gap must be >= 0")
	case len(c.Languages) == 0:
		return errors.New("at least one transcript language is required")
	}
	if _, err := segments.ParseRefineOrder(c.RefineOrder); err != nil {
		return err
	}
	if err := withAllowed(openai.URLPolicy, c.OpenAIAllowedHosts).Validate(normalizedOpenAIURL(c.OpenAIBaseURL)); err != nil {
		return err
	}
	if c.OpenRouterAPIKey != "" {
		if err := withAllowed(openrouter.URLPolicy, c.OpenRouterAllowedHosts).Validate(normalizedOpenRouterURL(c.OpenRouterBaseURL)); err != nil {
			return err
		}
	}
	return nil
}

func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// Run wires the adapters and executes one query.
func Run(ctx context.Context, cfg Config, query string) (types.SearchResult, error) {
	if err := ValidateQuery(query); err != nil {
		return types.SearchResult{}, err
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	runID := uuid.NewString()
	logf("run %s: %q", runID[:8], query)

	// adapters
	search, err := youtube.New(ctx, cfg.YouTubeAPIKey, cfg.YouTubeQPS)
	if err != nil {
		return types.SearchResult{}, err
	}
	dl := ytdlp.New(cfg.YtDLPPath)
	media := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)

	var transcripts ports.TranscriptSource = dl
	if cfg.WhisperModel != "" {
		asr := whispercpp.New(whispercpp.Config{
			BinPath:     cfg.WhisperBin,
			ModelPath:   cfg.WhisperModel,
			MaxAudioSec: cfg.WhisperMaxAudioSec,
			TempDir:     cfg.TempDir,
		}, dl, media)
		transcripts = transcriptChain{dl, asr}
		logf("speech recognition enabled for videos without captions")
	}
	if cfg.RedisURL != "" {
		rdb, err := rediscache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logf("transcript cache disabled: %v", err)
		} else {
			defer rdb.Close()
			transcripts = rediscache.NewTranscripts(transcripts, rdb, cfg.TranscriptCacheTTL, cfg.MissingCacheTTL, logf)
			logf("transcript cache: %s", redactURL(cfg.RedisURL))
		}
	}

	deps := usecase.Deps{
		Search:      search,
		Transcripts: transcripts,
		Text: openai.New(openai.Config{
			APIKey:             cfg.OpenAIAPIKey,
			BaseURL:            cfg.OpenAIBaseURL,
			QueryModel:         cfg.QueryModel,
			LocalizeModel:      cfg.LocalizeModel,
			SummaryModel:       cfg.SummaryModel,
			MaxTranscriptChars: cfg.MaxTranscriptChars,
		}),
		Streams: dl,
		Media:   media,
	}
	if cfg.OpenRouterAPIKey != "" {
		deps.Video = openrouter.New(cfg.OpenRouterAPIKey, cfg.VideoModel, cfg.OpenRouterBaseURL)
	}

	reelPath, err := resolveReelPath(cfg.ReelPath, query, time.Now())
	if err != nil {
		return types.SearchResult{}, err
	}
	order, _ := segments.ParseRefineOrder(cfg.RefineOrder)

	return usecase.New(deps).Run(ctx, usecase.Input{
		Query:                  query,
		MaxSearchResults:       cfg.MaxSearchResults,
		MaxFinalResults:        cfg.MaxFinalResults,
		MaxCandidatesPerVideo:  cfg.MaxCandidatesPerVideo,
		MinConfidence:          cfg.MinConfidence,
		Workers:                cfg.Workers,
		DurationMinSec:         cfg.DurationMinSec,
		DurationMaxSec:         cfg.DurationMaxSec,
		PublishedAfter:         cfg.PublishedAfter,
		PublishedBefore:        cfg.PublishedBefore,
		RelevanceLanguage:      cfg.RelevanceLanguage,
		Languages:              cfg.Languages,
		EnableFallback:         cfg.EnableFallback,
		FallbackMaxDurationSec: cfg.FallbackMaxDurationSec,
		EnableRefinement:       cfg.EnableRefinement,
		BufferRatio:            cfg.BufferRatio,
		RefineOrder:            order,
		RefineBudget:           cfg.RefineBudget,
		RefineAttempts:         cfg.RefineAttempts,
		RetryBackoff:           cfg.RetryBackoff,
		DegradedFactor:         cfg.DegradedFactor,
		MergeOverlaps:          cfg.MergeOverlaps,
		MergeGapSec:            cfg.MergeGapSec,
		Summarize:              cfg.Summarize,
		ReelPath:               reelPath,
		TempDir:                cfg.TempDir,
		ReasoningTimeout:       cfg.ReasoningTimeout,
		SearchTimeout:          cfg.SearchTimeout,
		TranscriptTimeout:      cfg.TranscriptTimeout,
		LocalizeTimeout:        cfg.LocalizeTimeout,
		ExtractTimeout:         cfg.ExtractTimeout,
		AnalyzeTimeout:         cfg.AnalyzeTimeout,
		Logf:                   logf,
		OnStage:                cfg.OnStage,
	})
}

// resolveReelPath names the reel after the query when path is a directory.
func resolveReelPath(path, query string, now time.Time) (string, error) {
	if path == "" {
		return "", nil
	}
	fi, err := os.Stat(path)
	if err == nil && fi.IsDir() {
		return buildReelName(path, query, now), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func buildReelName(dir, query string, now time.Time) string {
	name := normalizePathSegment(query)
	if r := []rune(name); len(r) > 48 {
		name = strings.Trim(string(r[:48]), "-")
	}
	if name == "" {
		name = "reel"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", query, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.mp4", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoSearcher = (*youtube.Adapter)(nil)
var _ ports.TranscriptSource = (*ytdlp.Adapter)(nil)
var _ ports.TranscriptSource = (*whispercpp.Adapter)(nil)
var _ ports.TranscriptSource = (*rediscache.Transcripts)(nil)
var _ ports.StreamResolver = (*ytdlp.Adapter)(nil)
var _ ports.MediaTool = (*ffmpeg.Adapter)(nil)
var _ ports.AudioExtractor = (*ffmpeg.Adapter)(nil)
var _ ports.TextReasoner = (*openai.Adapter)(nil)
var _ ports.VideoReasoner = (*openrouter.Adapter)(nil)
