package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/pinpoint/internal/types"
)

func chatServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"bad key sk-test"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeClip(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(p, []byte("fake-mp4"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return p
}

func TestAnalyzeClip_SendsInlineVideo(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, http.StatusOK, "```json\n{\"start_sec\": 3, \"end_sec\": 9.5, \"confidence\": 0.85, \"summary\": \"runs the installer\"}\n```", &seen)

	a := New("sk-test", "", srv.URL)
	got, err := a.AnalyzeClip(context.Background(), writeClip(t), "how to install")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	want := types.ClipAnalysis{StartSec: 3, EndSec: 9.5, Confidence: 0.85, Summary: "runs the installer"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	b, _ := json.Marshal(seen)
	if !strings.Contains(string(b), "data:video/mp4;base64,") {
		t.Fatalf("expected inline data URL in request, got %s", b)
	}
	if !strings.Contains(string(b), "how to install") {
		t.Fatalf("expected query in prompt")
	}
}

func TestAnalyzeClip_RejectsOversizedClip(t *testing.T) {
	a := New("sk-test", "", "https://openrouter.ai")
	a.maxClipBytes = 4
	if _, err := a.AnalyzeClip(context.Background(), writeClip(t), "q"); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestAnalyzeClip_UnparseableIsReasoningError(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "I am not sure", nil)
	_, err := New("sk-test", "", srv.URL).AnalyzeClip(context.Background(), writeClip(t), "q")
	var re *types.ReasoningError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReasoningError, got %v", err)
	}
}

func TestLocalizeReference(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, http.StatusOK, `{"segments":[{"start_sec":10,"end_sec":25,"confidence":0.6,"summary":"demo"}]}`, &seen)

	got, err := New("sk-test", "", srv.URL).LocalizeReference(context.Background(), "https://www.youtube.com/watch?v=abc", "q")
	if err != nil {
		t.Fatalf("localize: %v", err)
	}
	if len(got) != 1 || got[0].Range != types.MustTimeRange(10, 25) {
		t.Fatalf("unexpected localizations: %+v", got)
	}
	b, _ := json.Marshal(seen)
	if !strings.Contains(string(b), "watch?v=abc") {
		t.Fatalf("expected video URL in request, got %s", b)
	}
}

func TestComplete_ErrorStatusIsRedacted(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "", nil)
	_, err := New("sk-test", "", srv.URL).LocalizeReference(context.Background(), "u", "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), "sk-test") || !strings.Contains(err.Error(), "401") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMessageContentToString(t *testing.T) {
	got, err := messageContentToString([]any{
		map[string]any{"type": "text", "text": `{"a":`},
		map[string]any{"type": "text", "text": `1}`},
	})
	if err != nil || got != `{"a":1}` {
		t.Fatalf("got %q (err=%v)", got, err)
	}
	if _, err := messageContentToString(42); err == nil {
		t.Fatalf("expected error for non-text content")
	}
}
