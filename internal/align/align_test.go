package align_test

import (
	"encoding/json"
	"errors"
	"testing"

	"lecturenote/internal/align"
	"lecturenote/internal/services"
	"lecturenote/internal/transcript"
)

func TestAlignPaddedWindow(t *testing.T) {
	intervals := []align.Interval{{SlideNumber: 1, StartSec: 10, EndSec: 20}}
	spans := []transcript.Span{
		{Start: 14, End: 16, Text: "inside"},
		{Start: 25, End: 26, Text: "touching"},
		{Start: 24.9, End: 26, Text: "overlapping"},
	}

	segments, err := align.Align(intervals, []string{"slide"}, spans, nil, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if got := segments[0].SpokenText; got != "inside overlapping" {
		t.Fatalf("unexpected spoken text %q", got)
	}
	if segments[0].SlideContent != "slide" || segments[0].StartSec != 10 || segments[0].EndSec != 20 {
		t.Fatalf("unexpected segment %+v", segments[0])
	}
}

func TestAlignSpanEndingAtWindowStartIsExcluded(t *testing.T) {
	intervals := []align.Interval{{SlideNumber: 1, StartSec: 10, EndSec: 20}}
	spans := []transcript.Span{
		{Start: 1, End: 5, Text: "before"},
		{Start: 1, End: 5.01, Text: "barely"},
	}
	segments, err := align.Align(intervals, []string{""}, spans, nil, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if segments[0].SpokenText != "barely" {
		t.Fatalf("expected only the overlapping span, got %q", segments[0].SpokenText)
	}
}

func TestAlignClampsLowerBound(t *testing.T) {
	intervals := []align.Interval{{SlideNumber: 1, StartSec: 0, EndSec: 2}}
	spans := []transcript.Span{{Start: 0, End: 1, Text: "hello"}}
	opts := align.DefaultOptions()
	start, end := opts.Window(intervals[0])
	if start != 0 || end != 7 {
		t.Fatalf("expected window [0,7], got [%v,%v]", start, end)
	}
	segments, err := align.Align(intervals, []string{"x"}, spans, []float64{-1}, opts)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if segments[0].SpokenText != "hello" {
		t.Fatalf("unexpected spoken text %q", segments[0].SpokenText)
	}
	if segments[0].EscalationRequested {
		t.Fatal("help timestamp below the clamped window must not escalate")
	}
}

func TestAlignLengthMismatch(t *testing.T) {
	intervals := []align.Interval{{SlideNumber: 1, StartSec: 0, EndSec: 1}, {SlideNumber: 2, StartSec: 1, EndSec: 2}}
	_, err := align.Align(intervals, []string{"only one"}, nil, nil, align.DefaultOptions())
	if err == nil {
		t.Fatal("expected contract violation")
	}
	if !errors.Is(err, align.ErrLengthMismatch) || !errors.Is(err, services.ErrContract) {
		t.Fatalf("expected length mismatch contract error, got %v", err)
	}
}

func TestAlignEscalationInclusiveBounds(t *testing.T) {
	intervals := []align.Interval{
		{SlideNumber: 1, StartSec: 0, EndSec: 10},
		{SlideNumber: 2, StartSec: 10, EndSec: 30},
		{SlideNumber: 3, StartSec: 30, EndSec: 60},
	}
	texts := []string{"a", "b", "c"}
	// 25 sits exactly on the padded start of slide 3 and inside slide 2.
	segments, err := align.Align(intervals, texts, nil, []float64{25}, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if segments[0].EscalationRequested {
		t.Fatal("slide 1 window [0,15] must not include 25")
	}
	if !segments[1].EscalationRequested || !segments[2].EscalationRequested {
		t.Fatalf("expected slides 2 and 3 escalated: %+v", segments)
	}

	segments, err = align.Align(intervals, texts, nil, []float64{15}, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if !segments[0].EscalationRequested {
		t.Fatal("help timestamp on the padded end must escalate")
	}
}

func TestAlignPreservesTranscriptOrder(t *testing.T) {
	intervals := []align.Interval{{SlideNumber: 1, StartSec: 0, EndSec: 100}}
	spans := []transcript.Span{
		{Start: 50, End: 51, Text: "second"},
		{Start: 10, End: 11, Text: "first"},
		{Start: 20, End: 21, Text: "third"},
	}
	segments, err := align.Align(intervals, []string{""}, spans, nil, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if segments[0].SpokenText != "second first third" {
		t.Fatalf("expected spans joined in input order, got %q", segments[0].SpokenText)
	}
}

func TestAlignIsDeterministic(t *testing.T) {
	intervals := []align.Interval{
		{SlideNumber: 1, StartSec: 0, EndSec: 12},
		{SlideNumber: 2, StartSec: 12, EndSec: 40},
	}
	spans := []transcript.Span{
		{Start: 0, End: 6, Text: "intro"},
		{Start: 6, End: 14, Text: "moving on"},
		{Start: 14, End: 39, Text: "details"},
	}
	help := []float64{13}

	first, err := align.Align(intervals, []string{"one", "two"}, spans, help, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	second, err := align.Align(intervals, []string{"one", "two"}, spans, help, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("expected identical output\n%s\n%s", a, b)
	}
}

func TestAlignRejectsNegativePadding(t *testing.T) {
	_, err := align.Align(nil, nil, nil, nil, align.Options{PaddingSec: -1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAlignEmptyInputs(t *testing.T) {
	segments, err := align.Align(nil, nil, nil, nil, align.DefaultOptions())
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(segments))
	}
}
