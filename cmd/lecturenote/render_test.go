package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"lecturenote/internal/deps"
	"lecturenote/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("LectureNote", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "LectureNote:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("LectureNote", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: `binary "ffmpeg" not found`},
		{Name: "uvx", Available: true, Command: "uvx"},
		{Name: "yt-dlp", Available: false, Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] 1 required missing") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], `[ERROR] binary "ffmpeg" not found`) {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: uvx)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not available") {
		t.Fatalf("expected warn detail in fourth line, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "FFmpeg, yt-dlp") {
		t.Fatalf("expected missing dependencies summary, got %q", lines[4])
	}
}

func TestDependencyLinesAllPresent(t *testing.T) {
	lines := dependencyLines([]deps.Status{{Name: "FFmpeg", Available: true}}, false)
	if len(lines) != 2 || !strings.Contains(lines[0], "All dependencies available") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Storage directory", Passed: true, Detail: "/tmp (read/write ok)"},
		{Name: "Note LLM", Detail: "API key missing"},
	}, false)
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR] API key missing") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"95.5":     95.5,
		"1:30":     90,
		"01:02:03": 3723,
		" 0 ":      0,
	}
	for in, want := range cases {
		got, err := parseTimestamp(in)
		if err != nil {
			t.Fatalf("parseTimestamp(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "abc", "1:60", "-5", "1:2:3:4"} {
		if _, err := parseTimestamp(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTruncateAndTimestampFormatting(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := formatTimestamp(3661); got != "1:01:01" {
		t.Fatalf("formatTimestamp = %q", got)
	}
	if got := formatTimestamp(59.9); got != "00:59" {
		t.Fatalf("formatTimestamp = %q", got)
	}
}
