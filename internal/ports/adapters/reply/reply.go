// Package reply parses the JSON answers of reasoning models. Models are
// lenient about output shape: answers may be fenced, prefixed with prose, or
// carry numbers as strings, so parsing is lenient too.
package reply

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/forPelevin/pinpoint/internal/types"
)

// JSONObject extracts the outermost JSON object from a model answer.
func JSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start && gjson.Valid(t[start:end+1]) {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("could not locate JSON object in: %q", Truncate(t, 200))
}

// Localizations parses {"segments":[{start_sec,end_sec,confidence,summary}]}.
// Entries with an invalid range are skipped; an unparseable answer is an error.
func Localizations(answer string, limit int) ([]types.Localization, error) {
	obj, err := JSONObject(answer)
	if err != nil {
		return nil, err
	}
	segs := gjson.Get(obj, "segments")
	if segs.Exists() && !segs.IsArray() {
		return nil, fmt.Errorf("segments is %s, not an array", segs.Type)
	}

	out := make([]types.Localization, 0, 3)
	for _, s := range segs.Array() {
		tr, err := types.NewTimeRange(number(s.Get("start_sec")), number(s.Get("end_sec")))
		if err != nil {
			continue
		}
		out = append(out, types.Localization{
			Range:      tr,
			Confidence: clamp01(number(s.Get("confidence"))),
			Summary:    strings.TrimSpace(s.Get("summary").String()),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ClipAnalysis parses {start_sec,end_sec,confidence,summary}. Range validity
// is left to the caller; missing fields are an error.
func ClipAnalysis(answer string) (types.ClipAnalysis, error) {
	obj, err := JSONObject(answer)
	if err != nil {
		return types.ClipAnalysis{}, err
	}
	for _, k := range []string{"start_sec", "end_sec", "confidence"} {
		if !gjson.Get(obj, k).Exists() {
			return types.ClipAnalysis{}, fmt.Errorf("missing %q in %s", k, Truncate(obj, 200))
		}
	}
	return types.ClipAnalysis{
		StartSec:   number(gjson.Get(obj, "start_sec")),
		EndSec:     number(gjson.Get(obj, "end_sec")),
		Confidence: number(gjson.Get(obj, "confidence")),
		Summary:    strings.TrimSpace(gjson.Get(obj, "summary").String()),
	}, nil
}

// QueryVariants parses {"optimized","simplified"}; Original is left empty.
func QueryVariants(answer string) (types.QueryVariants, error) {
	obj, err := JSONObject(answer)
	if err != nil {
		return types.QueryVariants{}, err
	}
	return types.QueryVariants{
		Optimized:  strings.TrimSpace(gjson.Get(obj, "optimized").String()),
		Simplified: strings.TrimSpace(gjson.Get(obj, "simplified").String()),
	}, nil
}

func number(r gjson.Result) float64 {
	if !r.Exists() || r.Type == gjson.Null {
		return -1
	}
	if r.Type == gjson.Number {
		return r.Num
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(strings.TrimSuffix(r.String(), "s")))
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	return f
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

// RedactSecrets scrubs credentials from text headed for logs or errors.
func RedactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
