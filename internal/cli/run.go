package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/pinpoint/internal/pipeline"
	"github.com/forPelevin/pinpoint/internal/types"
)

const runTimeout = 30 * time.Minute

func run(cmd *cobra.Command, query string) error {
	env := newEnvReader()
	cfg := loadConfig(env)
	if env.err != nil {
		return fmt.Errorf("config: %w", env.err)
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := pipeline.ValidateQuery(query); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		logger := log.New(cmd.ErrOrStderr(), "[pinpoint] ", log.Ltime)
		cfg.Logf = logger.Printf
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg, query)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	writeText(cmd.OutOrStdout(), res)
	return nil
}

func loadConfig(env *envReader) pipeline.Config {
	d := pipeline.Defaults()
	defaultModel := env.String("DEFAULT_MODEL", "")

	cfg := pipeline.Config{
		YouTubeAPIKey: env.String("YOUTUBE_API_KEY", ""),
		YouTubeQPS:    env.Float("YOUTUBE_QPS", d.YouTubeQPS),

		OpenAIAPIKey:       env.String("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      env.String("OPENAI_BASE_URL", ""),
		OpenAIAllowedHosts: env.List("OPENAI_ALLOWED_HOSTS", nil),
		QueryModel:         env.String("QUERY_CONVERT_MODEL", defaultModel),
		LocalizeModel:      env.String("SUBTITLE_ANALYSIS_MODEL", defaultModel),
		SummaryModel:       env.String("SUMMARY_MODEL", defaultModel),
		MaxTranscriptChars: env.Int("MAX_TRANSCRIPT_CHARS", 0),

		OpenRouterAPIKey:       env.String("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:      env.String("OPENROUTER_BASE_URL", ""),
		OpenRouterAllowedHosts: env.List("OPENROUTER_ALLOWED_HOSTS", nil),
		VideoModel:             env.String("VIDEO_ANALYSIS_MODEL", ""),

		MaxSearchResults:      env.Int("MAX_SEARCH_RESULTS", d.MaxSearchResults),
		MaxFinalResults:       env.Int("MAX_FINAL_RESULTS", d.MaxFinalResults),
		MaxCandidatesPerVideo: env.Int("MAX_CANDIDATES_PER_VIDEO", d.MaxCandidatesPerVideo),
		MinConfidence:         env.Float("MIN_CONFIDENCE", d.MinConfidence),
		Workers:               env.Int("WORKERS", d.Workers),

		DurationMinSec:    env.Int("DURATION_MIN_SEC", d.DurationMinSec),
		DurationMaxSec:    env.Int("DURATION_MAX_SEC", d.DurationMaxSec),
		PublishedAfter:    env.Time("PUBLISHED_AFTER"),
		PublishedBefore:   env.Time("PUBLISHED_BEFORE"),
		RelevanceLanguage: env.String("SEARCH_RELEVANCE_LANGUAGE", ""),
		Languages:         env.List("TRANSCRIPT_LANGUAGES", d.Languages),

		EnableFallback:         env.Bool("ENABLE_YOUTUBE_URL_FALLBACK", d.EnableFallback),
		FallbackMaxDurationSec: env.Int("YOUTUBE_URL_FALLBACK_MAX_DURATION", d.FallbackMaxDurationSec),

		EnableRefinement: env.Bool("ENABLE_VLM_REFINEMENT", d.EnableRefinement),
		BufferRatio:      env.Float("BUFFER_RATIO", d.BufferRatio),
		RefineOrder:      env.String("REFINE_ORDER", d.RefineOrder),
		RefineBudget:     env.Int("REFINE_BUDGET", d.RefineBudget),
		RefineAttempts:   env.Int("REFINE_ATTEMPTS", d.RefineAttempts),
		RetryBackoff:     env.Seconds("RETRY_BACKOFF", d.RetryBackoff),
		DegradedFactor:   env.Float("DEGRADED_FACTOR", d.DegradedFactor),

		MergeOverlaps: env.Bool("MERGE_OVERLAPS", d.MergeOverlaps),
		MergeGapSec:   env.Float("MERGE_GAP_SEC", d.MergeGapSec),
		Summarize:     env.Bool("INTEGRATED_SUMMARY", d.Summarize),
		ReelPath:      env.String("REEL_PATH", ""),
		TempDir:       env.String("TEMP_DIR", ""),

		ReasoningTimeout: env.Seconds("REASONING_TIMEOUT", d.ReasoningTimeout),
		SearchTimeout:    env.Seconds("YOUTUBE_SEARCH_TIMEOUT", d.SearchTimeout),
		ExtractTimeout:   env.Seconds("CLIP_EXTRACT_TIMEOUT", d.ExtractTimeout),
		AnalyzeTimeout:   env.Seconds("VLM_ANALYSIS_TIMEOUT", d.AnalyzeTimeout),

		FFmpegPath:  env.String("FFMPEG_PATH", d.FFmpegPath),
		FFprobePath: env.String("FFPROBE_PATH", d.FFprobePath),
		YtDLPPath:   env.String("YTDLP_PATH", d.YtDLPPath),

		WhisperBin:         env.String("WHISPER_BIN", ""),
		WhisperModel:       env.String("WHISPER_MODEL", ""),
		WhisperMaxAudioSec: env.Float("WHISPER_MAX_AUDIO_SEC", d.WhisperMaxAudioSec),

		RedisURL:           env.String("REDIS_URL", ""),
		TranscriptCacheTTL: env.Seconds("TRANSCRIPT_CACHE_TTL", d.TranscriptCacheTTL),
		MissingCacheTTL:    env.Seconds("MISSING_TRANSCRIPT_CACHE_TTL", d.MissingCacheTTL),
	}

	// Speech recognition runs inside the transcript and localize budgets.
	transcriptTimeout, localizeTimeout := d.TranscriptTimeout, d.LocalizeTimeout
	if cfg.WhisperModel != "" {
		transcriptTimeout, localizeTimeout = 5*time.Minute, 6*time.Minute
	}
	cfg.TranscriptTimeout = env.Seconds("SUBTITLE_FETCH_TIMEOUT", transcriptTimeout)
	cfg.LocalizeTimeout = env.Seconds("LOCALIZE_TIMEOUT", localizeTimeout)
	return cfg
}

func applyFlags(cmd *cobra.Command, cfg *pipeline.Config) error {
	f := cmd.Flags()
	if f.Changed("final") {
		cfg.MaxFinalResults, _ = f.GetInt("final")
	}
	if f.Changed("min-confidence") {
		cfg.MinConfidence, _ = f.GetFloat64("min-confidence")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if v, _ := f.GetBool("no-refine"); v {
		cfg.EnableRefinement = false
	}
	if v, _ := f.GetBool("no-fallback"); v {
		cfg.EnableFallback = false
	}
	if v, _ := f.GetBool("summary"); v {
		cfg.Summarize = true
	}
	if v, _ := f.GetBool("merge"); v {
		cfg.MergeOverlaps = true
	}
	if f.Changed("reel") {
		cfg.ReelPath, _ = f.GetString("reel")
	}
	if f.Changed("refine-order") {
		cfg.RefineOrder, _ = f.GetString("refine-order")
	}
	if f.Changed("refine-budget") {
		cfg.RefineBudget, _ = f.GetInt("refine-budget")
	}
	if f.Changed("published-after") {
		v, _ := f.GetString("published-after")
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("--published-after: %w", err)
		}
		cfg.PublishedAfter = t
	}
	return nil
}

type jsonSegment struct {
	VideoID    string  `json:"video_id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	URL        string  `json:"url"`
	EmbedURL   string  `json:"embed_url"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
	Degraded   bool    `json:"degraded,omitempty"`
	Refined    bool    `json:"refined,omitempty"`
}

type jsonResult struct {
	Query             string         `json:"query"`
	Segments          []jsonSegment  `json:"segments"`
	ProcessingTimeSec float64        `json:"processing_time_sec"`
	Summary           string         `json:"summary,omitempty"`
	ReelPath          string         `json:"reel_path,omitempty"`
	SearchStats       map[string]int `json:"search_stats,omitempty"`
}

func writeJSON(w io.Writer, res types.SearchResult) error {
	out := jsonResult{
		Query:             res.Query,
		Segments:          make([]jsonSegment, 0, len(res.Segments)),
		ProcessingTimeSec: res.ProcessingTimeSec,
		Summary:           res.Summary,
		ReelPath:          res.ReelPath,
		SearchStats:       res.SearchStats,
	}
	for _, s := range res.Segments {
		out.Segments = append(out.Segments, jsonSegment{
			VideoID:    s.Video.VideoID,
			Title:      s.Video.Title,
			Channel:    s.Video.ChannelName,
			URL:        s.Video.URLAt(s.Range),
			EmbedURL:   s.Video.EmbedURL(s.Range),
			StartSec:   s.Range.StartSec(),
			EndSec:     s.Range.EndSec(),
			Confidence: s.Confidence,
			Summary:    s.Summary,
			Degraded:   s.Degraded,
			Refined:    s.Refined,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, res types.SearchResult) {
	if len(res.Segments) == 0 {
		fmt.Fprintf(w, "No matching segments for %q (%.1fs).\n", res.Query, res.ProcessingTimeSec)
		return
	}
	fmt.Fprintf(w, "%d segments for %q (%.1fs)\n\n", len(res.Segments), res.Query, res.ProcessingTimeSec)
	for i, s := range res.Segments {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, s.Video.Title, s.Video.ChannelName)
		fmt.Fprintf(w, "   %s-%s  confidence %.2f\n", clock(s.Range.StartSec()), clock(s.Range.EndSec()), s.Confidence)
		fmt.Fprintf(w, "   %s\n", s.Video.URLAt(s.Range))
		if s.Summary != "" {
			fmt.Fprintf(w, "   %s\n", s.Summary)
		}
		fmt.Fprintln(w)
	}
	if res.Summary != "" {
		fmt.Fprintf(w, "Summary:\n%s\n\n", strings.TrimSpace(res.Summary))
	}
	if res.ReelPath != "" {
		fmt.Fprintf(w, "Reel: %s\n", res.ReelPath)
	}
}

func clock(sec float64) string {
	s := int(sec)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
