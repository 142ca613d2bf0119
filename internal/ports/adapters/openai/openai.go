// Package openai is the text reasoner, backed by any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forPelevin/pinpoint/internal/domain/evidence"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/endpoint"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/reply"
	"github.com/forPelevin/pinpoint/internal/types"
)

const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	defaultModel              = "gpt-4o-mini"
	defaultMaxTranscriptChars = 24000
	maxSegments               = 3
)

// URLPolicy lists the hosts OPENAI_BASE_URL may point at by default.
var URLPolicy = endpoint.Policy{
	Setting:      "OPENAI_BASE_URL",
	DefaultHosts: []string{"api.openai.com", "openrouter.ai", "generativelanguage.googleapis.com"},
}

type Config struct {
	APIKey  string
	BaseURL string
	// Per-purpose models; empty falls back to the default model.
	QueryModel    string
	LocalizeModel string
	SummaryModel  string
	// MaxTranscriptChars bounds the transcript evidence sent per video.
	MaxTranscriptChars int
}

type Adapter struct {
	cli      *openai.Client
	key      string
	cfg      Config
	maxChars int
}

func New(cfg Config) *Adapter {
	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = endpoint.Normalize(cfg.BaseURL, DefaultBaseURL)
	for _, m := range []*string{&cfg.QueryModel, &cfg.LocalizeModel, &cfg.SummaryModel} {
		if *m == "" {
			*m = defaultModel
		}
	}
	maxChars := cfg.MaxTranscriptChars
	if maxChars <= 0 {
		maxChars = defaultMaxTranscriptChars
	}
	return &Adapter{cli: openai.NewClientWithConfig(cc), key: cfg.APIKey, cfg: cfg, maxChars: maxChars}
}

func (a *Adapter) ExpandQuery(ctx context.Context, query string) (types.QueryVariants, error) {
	content, err := a.chat(ctx, a.cfg.QueryModel, expandPrompt(query), true)
	if err != nil {
		return types.QueryVariants{}, err
	}
	v, err := reply.QueryVariants(content)
	if err != nil {
		return types.QueryVariants{}, &types.ReasoningError{Op: "expand query", Err: err}
	}
	v.Original = query
	return v, nil
}

func (a *Adapter) LocalizeTranscript(ctx context.Context, tr types.Transcript, query string) ([]types.Localization, error) {
	chunks := evidence.Select(tr.Chunks, query, a.maxChars)
	if len(chunks) == 0 {
		return nil, nil
	}
	content, err := a.chat(ctx, a.cfg.LocalizeModel, localizePrompt(query, evidence.Format(chunks)), true)
	if err != nil {
		return nil, err
	}
	locs, err := reply.Localizations(content, maxSegments)
	if err != nil {
		return nil, &types.ReasoningError{Op: "localize transcript", Err: err}
	}
	return locs, nil
}

func (a *Adapter) Summarize(ctx context.Context, query string, segs []types.RefinedSegment) (string, error) {
	if len(segs) == 0 {
		return "", nil
	}
	return a.chat(ctx, a.cfg.SummaryModel, summaryPrompt(query, segs), false)
}

func (a *Adapter) chat(ctx context.Context, model, prompt string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := a.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (model=%s): %s", model, reply.RedactSecrets(err.Error(), a.key))
	}
	if len(resp.Choices) == 0 {
		return "", &types.ReasoningError{Op: "chat completion", Err: errors.New("no choices")}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &types.ReasoningError{Op: "chat completion", Err: errors.New("empty content")}
	}
	return content, nil
}

func expandPrompt(query string) string {
	return "You optimize YouTube search queries.\n\n" +
		"Rewrite the user's question into two search queries.\n\n" +
		"Question: " + query + "\n\n" +
		"Reply with JSON only:\n" +
		`{"optimized": "<5-7 words, include English keywords and modifiers like tutorial, how to, explained>", ` +
		`"simplified": "<2-4 core keywords: proper nouns and technical terms>"}` + "\n\n" +
		"Examples of simplified: \"Claude Code 2.1.2 main changes\" -> \"Claude Code 2.1.2\", " +
		"\"how to read a file in Python\" -> \"Python read file\"."
}

func localizePrompt(query, transcript string) string {
	return "You analyze video content.\n\n" +
		"Find the parts of this transcript relevant to the question.\n\n" +
		"Question: " + query + "\n\n" +
		"Transcript:\n" + transcript + "\n\n" +
		"Reply with JSON only:\n" +
		`{"segments": [{"start_sec": <start>, "end_sec": <end>, "confidence": <0.0-1.0>, "summary": "<what is said there>"}]}` + "\n\n" +
		fmt.Sprintf("Rules:\n- Return at most %d segments.\n", maxSegments) +
		"- Return an empty array if nothing is relevant.\n" +
		"- Base confidence on how directly the part answers the question.\n" +
		"- Keep each summary under 50 characters, in the language of the question."
}

func summaryPrompt(query string, segs []types.RefinedSegment) string {
	var b strings.Builder
	for _, s := range segs {
		fmt.Fprintf(&b, "- %q (%s): %s\n", reply.Truncate(s.Video.Title, 50), s.Range, s.Summary)
	}
	return "You organize information.\n\n" +
		"Combine what these video segments say into one answer to the question.\n\n" +
		"Question: " + query + "\n\n" +
		"Segments:\n" + b.String() + "\n" +
		"Rules:\n" +
		"- Merge duplicate information.\n" +
		"- Do not mention video titles or time ranges.\n" +
		"- Use short bullet points, 200-400 characters, in the language of the question.\n" +
		"- No preamble; content only."
}
