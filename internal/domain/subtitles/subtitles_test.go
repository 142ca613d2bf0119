package subtitles

import "testing"

func TestParseJSON3(t *testing.T) {
	payload := `{"events":[
		{"tStartMs":0,"dDurationMs":2000,"id":1,"wpWinPosId":1},
		{"tStartMs":500,"dDurationMs":3000,"segs":[{"utf8":"first "},{"utf8":"install"}]},
		{"tStartMs":2500,"dDurationMs":10,"segs":[{"utf8":"\n"}]},
		{"tStartMs":3000,"dDurationMs":2000,"segs":[{"utf8":"then  configure"}]}
	]}`
	got, err := ParseJSON3([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(got), got)
	}
	if got[0].Text != "first install" || got[0].StartSec != 0.5 {
		t.Fatalf("unexpected first chunk %+v", got[0])
	}
	if got[0].EndSec != 3 {
		t.Fatalf("expected overlap clipped to next start, got end %v", got[0].EndSec)
	}
	if got[1].Text != "then configure" || got[1].EndSec != 5 {
		t.Fatalf("unexpected second chunk %+v", got[1])
	}
}

func TestParseJSON3_Invalid(t *testing.T) {
	if _, err := ParseJSON3([]byte(`{"nope":1}`)); err == nil {
		t.Fatalf("expected error for payload without events")
	}
	if _, err := ParseJSON3([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestParseVTT(t *testing.T) {
	payload := "WEBVTT\nKind: captions\n\n" +
		"00:00:01.000 --> 00:00:03.500 align:start\n<c>hello</c> world\n\n" +
		"00:00:03.500 --> 00:00:04.000\nhello world\n\n" +
		"01:00:05.250 --> 01:00:07.000\nlate line\n"
	got, err := ParseVTT([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(got), got)
	}
	if got[0].Text != "hello world" || got[0].StartSec != 1 || got[0].EndSec != 4 {
		t.Fatalf("unexpected folded chunk %+v", got[0])
	}
	if got[1].StartSec != 3605.25 {
		t.Fatalf("unexpected hour timestamp %v", got[1].StartSec)
	}
}

func TestParseVTT_SRTSeparators(t *testing.T) {
	payload := "1\n00:00:01,000 --> 00:00:02,000\nline one\n\n2\n00:00:02,000 --> 00:00:03,000\nline two\n"
	got, err := ParseVTT([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[1].Text != "line two" {
		t.Fatalf("unexpected chunks %+v", got)
	}
}
