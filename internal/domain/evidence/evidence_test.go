package evidence

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/forPelevin/pinpoint/internal/types"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"latin", "Install steps, please!", []string{"install", "steps", "please"}},
		{"drops single letters", "a b docker", []string{"docker"}},
		{"cjk bigrams", "設定方法", []string{"設定", "定方", "方法"}},
		{"dedup", "go go Go", []string{"go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Terms(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Terms(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestScore_Table(t *testing.T) {
	terms := Terms("install docker")
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"no match", "we talk about cooking today", false},
		{"match", "first, install Docker from the website", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.text, terms)
			if tt.want && got <= 0 {
				t.Fatalf("expected score > 0, got %v", got)
			}
			if !tt.want && got != 0 {
				t.Fatalf("expected score 0, got %v", got)
			}
		})
	}
}

func longTranscript(n int, hitAt int) []types.TranscriptChunk {
	out := make([]types.TranscriptChunk, 0, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("filler sentence number %d about nothing", i)
		if i == hitAt {
			text = "now we install the package"
		}
		out = append(out, types.TranscriptChunk{StartSec: float64(i * 5), EndSec: float64(i*5 + 5), Text: text})
	}
	return out
}

func TestSelect_ShortTranscriptUnchanged(t *testing.T) {
	chunks := longTranscript(5, 2)
	if got := Select(chunks, "install", 100000); len(got) != 5 {
		t.Fatalf("expected whole transcript, got %d chunks", len(got))
	}
}

func TestSelect_KeepsMatchWithContextInOrder(t *testing.T) {
	chunks := longTranscript(400, 250)
	got := Select(chunks, "install", 600)
	if len(got) == 0 || len(got) >= len(chunks) {
		t.Fatalf("expected a bounded selection, got %d", len(got))
	}
	found := false
	for i, c := range got {
		if c.StartSec == 1250 {
			found = true
		}
		if i > 0 && got[i-1].StartSec >= c.StartSec {
			t.Fatalf("selection not in timeline order")
		}
	}
	if !found {
		t.Fatalf("expected matching chunk to be selected")
	}
}

func TestSelect_OversizedWindowsStayWithinBudget(t *testing.T) {
	chunks := make([]types.TranscriptChunk, 20)
	for i := range chunks {
		chunks[i] = types.TranscriptChunk{
			StartSec: float64(i * 10),
			EndSec:   float64(i*10 + 10),
			Text:     fmt.Sprintf("step %d: run the install script and wait for it", i),
		}
	}
	budget := len(FormatChunk(chunks[0])) + 10

	got := Select(chunks, "install", budget)
	if len(got) != 1 {
		t.Fatalf("expected a single chunk when every window overflows, got %d", len(got))
	}
	if n := len(Format(got)); n > budget {
		t.Fatalf("selection of %d chars exceeds budget %d", n, budget)
	}
}

func TestSelect_SamplesWithoutMatches(t *testing.T) {
	chunks := longTranscript(400, -1)
	got := Select(chunks, "kubernetes", 2000)
	if len(got) == 0 || len(got) >= len(chunks) {
		t.Fatalf("expected evenly sampled subset, got %d", len(got))
	}
	if got[len(got)-1].StartSec < 1500 {
		t.Fatalf("expected sampling to reach late parts, last=%v", got[len(got)-1].StartSec)
	}
}
