package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/forPelevin/pinpoint/internal/ports/adapters/endpoint"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/reply"
	"github.com/forPelevin/pinpoint/internal/types"
)

// Adapter is the video reasoner: it sends clips inline and remote videos by
// URL to a multimodal chat model.
type Adapter struct {
	key          string
	model        string
	baseURL      string
	client       *http.Client
	maxClipBytes int64
}

const (
	requestTimeout      = 90 * time.Second
	defaultMaxClipBytes = 20 << 20
	maxSegments         = 3

	DefaultBaseURL = "https://openrouter.ai"
)

// URLPolicy lists the hosts OPENROUTER_BASE_URL may point at by default.
var URLPolicy = endpoint.Policy{
	Setting:      "OPENROUTER_BASE_URL",
	DefaultHosts: []string{"openrouter.ai", "api.openrouter.ai"},
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "google/gemini-2.5-flash"
	}
	return &Adapter{
		key:          apiKey,
		model:        model,
		baseURL:      endpoint.Normalize(baseURL, DefaultBaseURL),
		client:       &http.Client{Timeout: 5 * time.Minute},
		maxClipBytes: defaultMaxClipBytes,
	}
}

func (a *Adapter) AnalyzeClip(ctx context.Context, clipPath, query string) (types.ClipAnalysis, error) {
	fi, err := os.Stat(clipPath)
	if err != nil {
		return types.ClipAnalysis{}, err
	}
	if fi.Size() > a.maxClipBytes {
		return types.ClipAnalysis{}, fmt.Errorf("clip %s is %d bytes, limit %d", clipPath, fi.Size(), a.maxClipBytes)
	}
	b, err := os.ReadFile(clipPath)
	if err != nil {
		return types.ClipAnalysis{}, err
	}

	content, err := a.complete(ctx, []map[string]any{
		{"type": "text", "text": clipPrompt(query)},
		{"type": "video_url", "video_url": map[string]any{"url": "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(b)}},
	}, "pinpoint_clip", clipSchema)
	if err != nil {
		return types.ClipAnalysis{}, err
	}
	out, err := reply.ClipAnalysis(content)
	if err != nil {
		return types.ClipAnalysis{}, &types.ReasoningError{Op: "analyze clip", Err: err}
	}
	return out, nil
}

func (a *Adapter) LocalizeReference(ctx context.Context, videoURL, query string) ([]types.Localization, error) {
	content, err := a.complete(ctx, []map[string]any{
		{"type": "text", "text": referencePrompt(query)},
		{"type": "video_url", "video_url": map[string]any{"url": videoURL}},
	}, "pinpoint_segments", segmentsSchema)
	if err != nil {
		return nil, err
	}
	out, err := reply.Localizations(content, maxSegments)
	if err != nil {
		return nil, &types.ReasoningError{Op: "localize reference", Err: err}
	}
	return out, nil
}

func (a *Adapter) complete(ctx context.Context, parts []map[string]any, schemaName string, schema map[string]any) (string, error) {
	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": parts},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", errors.New(reply.RedactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, reply.Truncate(reply.RedactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", &types.ReasoningError{Op: schemaName, Err: errors.New("no choices")}
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", &types.ReasoningError{Op: schemaName, Err: err}
	}
	return content, nil
}

func clipPrompt(query string) string {
	return "You analyze video content. Find the part of this clip that answers the question, " +
		"using both picture and audio.\n\n" +
		"Question: " + query + "\n\n" +
		"Reply with JSON only:\n" +
		`{"start_sec": <start within this clip>, "end_sec": <end within this clip>, "confidence": <0.0-1.0>, "summary": "<what is said there>"}` + "\n\n" +
		"Rules:\n" +
		"- start_sec and end_sec are relative to this clip, which starts at 0.\n" +
		"- If nothing in the clip is relevant, set confidence to 0.0.\n" +
		"- Keep the summary under 100 characters, in the language of the question."
}

func referencePrompt(query string) string {
	return "You analyze video content. Find the parts of this video relevant to the question, " +
		"using both picture and audio.\n\n" +
		"Question: " + query + "\n\n" +
		"Reply with JSON only:\n" +
		`{"segments": [{"start_sec": <start>, "end_sec": <end>, "confidence": <0.0-1.0>, "summary": "<what is said there>"}]}` + "\n\n" +
		fmt.Sprintf("Rules:\n- Return at most %d segments.\n", maxSegments) +
		"- Return an empty array if nothing is relevant.\n" +
		"- Keep each summary under 50 characters, in the language of the question."
}

var segmentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"start_sec":  map[string]any{"type": "number"},
		"end_sec":    map[string]any{"type": "number"},
		"confidence": map[string]any{"type": "number"},
		"summary":    map[string]any{"type": "string"},
	},
	"required": []string{"start_sec", "end_sec", "confidence", "summary"},
}

var clipSchema = segmentSchema

var segmentsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"segments": map[string]any{"type": "array", "items": segmentSchema},
	},
	"required": []string{"segments"},
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}
