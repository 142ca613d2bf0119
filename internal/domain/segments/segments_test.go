package segments

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/pinpoint/internal/types"
)

func video(id string, published time.Time) types.VideoMetadata {
	return types.VideoMetadata{VideoID: id, Title: id, DurationSec: 600, PublishedAt: published}
}

func testCandidates() []types.Candidate {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []types.Candidate{
		{Video: video("B", t0.AddDate(0, 1, 0)), Range: types.MustTimeRange(10, 20), Confidence: 0.7},
		{Video: video("A", t0), Range: types.MustTimeRange(30, 40), Confidence: 0.9},
		{Video: video("C", t0), Range: types.MustTimeRange(5, 15), Confidence: 0.2},
		{Video: video("D", t0), Range: types.MustTimeRange(50, 60), Confidence: 0.7},
		{Video: video("A", t0), Range: types.MustTimeRange(1, 2), Confidence: 0.3},
	}
}

func TestRank_FloorSortAndTruncate(t *testing.T) {
	got := Rank(testCandidates(), 0.3, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	ids := []string{got[0].Video.VideoID, got[1].Video.VideoID, got[2].Video.VideoID}
	// D is older than B at equal confidence.
	if want := []string{"A", "D", "B"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected order %v, want %v", ids, want)
	}
}

func TestRank_FloorIsStrict(t *testing.T) {
	for _, c := range Rank(testCandidates(), 0.3, 0) {
		if c.Confidence < 0.3 {
			t.Fatalf("candidate below floor leaked: %+v", c)
		}
	}
	got := Rank(testCandidates(), 0.3, 0)
	if len(got) != 4 {
		t.Fatalf("expected candidate at exactly the floor to survive, got %d", len(got))
	}
}

func TestRank_DropsNaNConfidence(t *testing.T) {
	cands := append(testCandidates(), types.Candidate{
		Video:      types.VideoMetadata{VideoID: "nan"},
		Range:      types.MustTimeRange(0, 10),
		Confidence: math.NaN(),
	})
	for _, floor := range []float64{0, 0.3} {
		for _, c := range Rank(cands, floor, 0) {
			if math.IsNaN(c.Confidence) {
				t.Fatalf("NaN candidate survived floor %v", floor)
			}
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	a := testCandidates()
	b := testCandidates()
	// reverse b
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	if !reflect.DeepEqual(Rank(a, 0, 0), Rank(b, 0, 0)) {
		t.Fatalf("ranking depends on input order")
	}
	if !reflect.DeepEqual(Rank(a, 0, 0), Rank(a, 0, 0)) {
		t.Fatalf("ranking not repeatable")
	}
}

func TestToAbsolute(t *testing.T) {
	got, err := ToAbsolute(864, types.MustTimeRange(36, 225))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StartSec() != 900 || got.EndSec() != 1089 {
		t.Fatalf("unexpected mapped range %s", got)
	}

	got, err = ToAbsolute(0, types.MustTimeRange(10, 50))
	if err != nil || got.StartSec() != 10 || got.EndSec() != 50 {
		t.Fatalf("unexpected zero-offset mapping %s (%v)", got, err)
	}
}

func TestToAbsolute_RejectsNegativeOffset(t *testing.T) {
	_, err := ToAbsolute(-20, types.MustTimeRange(5, 10))
	if !errors.Is(err, types.ErrInvalidTimeRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestDedupeVideos_FirstOccurrenceWins(t *testing.T) {
	relevance := []types.VideoMetadata{{VideoID: "V1", Title: "first"}, {VideoID: "V2"}}
	recent := []types.VideoMetadata{{VideoID: "V1", Title: "second"}, {VideoID: "V3"}}
	got := DedupeVideos(relevance, recent)
	if len(got) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(got))
	}
	count := 0
	for _, v := range got {
		if v.VideoID == "V1" {
			count++
			if v.Title != "first" {
				t.Fatalf("expected first occurrence to win, got %q", v.Title)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected V1 exactly once, got %d", count)
	}
}

func TestFilterDuration(t *testing.T) {
	in := []types.VideoMetadata{{VideoID: "a", DurationSec: 30}, {VideoID: "b", DurationSec: 300}, {VideoID: "c", DurationSec: 9000}}
	got := FilterDuration(in, 60, 7200)
	if len(got) != 1 || got[0].VideoID != "b" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}

func TestMerge_OverlappingSameVideo(t *testing.T) {
	v := types.VideoMetadata{VideoID: "A"}
	segs := []types.RefinedSegment{
		{Video: v, Range: types.MustTimeRange(10, 30), Confidence: 0.9, Summary: "x", Refined: true},
		{Video: types.VideoMetadata{VideoID: "B"}, Range: types.MustTimeRange(10, 30), Confidence: 0.8},
		{Video: v, Range: types.MustTimeRange(32, 40), Confidence: 0.6, Summary: "y"},
		{Video: v, Range: types.MustTimeRange(100, 120), Confidence: 0.5},
	}
	got := Merge(segs, 5)
	if len(got) != 3 {
		t.Fatalf("expected 3 segments after merge, got %d", len(got))
	}
	if got[0].Range.StartSec() != 10 || got[0].Range.EndSec() != 40 {
		t.Fatalf("unexpected merged range %s", got[0].Range)
	}
	if got[0].Confidence != 0.9 || got[0].Summary != "x / y" {
		t.Fatalf("unexpected merged fields %+v", got[0])
	}
}

func TestMerge_IsTransitive(t *testing.T) {
	v := types.VideoMetadata{VideoID: "A"}
	segs := []types.RefinedSegment{
		{Video: v, Range: types.MustTimeRange(0, 10), Confidence: 0.9, Summary: "a"},
		{Video: v, Range: types.MustTimeRange(20, 30), Confidence: 0.8, Summary: "b"},
		{Video: v, Range: types.MustTimeRange(9, 21), Confidence: 0.7, Summary: "c"},
	}
	got := Merge(segs, 0)
	if len(got) != 1 {
		t.Fatalf("expected a single merged segment, got %d: %+v", len(got), got)
	}
	if got[0].Range != types.MustTimeRange(0, 30) || got[0].Confidence != 0.9 {
		t.Fatalf("unexpected merged segment %+v", got[0])
	}
	for _, want := range []string{"a", "b", "c"} {
		if !strings.Contains(got[0].Summary, want) {
			t.Fatalf("summary %q lost %q", got[0].Summary, want)
		}
	}
}

func TestOrderForRefinement(t *testing.T) {
	cands := []types.Candidate{
		{Range: types.MustTimeRange(0, 100), SearchRank: 2},
		{Range: types.MustTimeRange(0, 10), SearchRank: 0},
		{Range: types.MustTimeRange(0, 50), SearchRank: 1},
	}
	if got := OrderForRefinement(cands, RefineByConfidence); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("confidence order = %v", got)
	}
	if got := OrderForRefinement(cands, RefineBySearchRank); !reflect.DeepEqual(got, []int{1, 2, 0}) {
		t.Fatalf("search order = %v", got)
	}
	if got := OrderForRefinement(cands, RefineByShortest); !reflect.DeepEqual(got, []int{1, 2, 0}) {
		t.Fatalf("shortest order = %v", got)
	}
	if _, err := ParseRefineOrder("random"); err == nil {
		t.Fatalf("expected error for unknown order")
	}
}

func TestTopPerVideo(t *testing.T) {
	locs := []types.Localization{
		{Range: types.MustTimeRange(0, 1), Confidence: 0.1},
		{Range: types.MustTimeRange(1, 2), Confidence: 0.9},
		{Range: types.MustTimeRange(2, 3), Confidence: 0.5},
		{Range: types.MustTimeRange(3, 4), Confidence: 0.7},
	}
	got := TopPerVideo(locs, 3)
	if len(got) != 3 || got[0].Confidence != 0.9 || got[2].Confidence != 0.5 {
		t.Fatalf("unexpected top localizations %+v", got)
	}
}
