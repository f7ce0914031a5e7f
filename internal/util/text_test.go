package util

import (
	"strings"
	"testing"
)

func TestTruncateTranscriptPreservesPrefix(t *testing.T) {
	in := strings.Repeat("abcde ", 100)
	out := TruncateTranscript(in, 30)
	if len([]rune(out)) != 30 {
		t.Fatalf("got %d runes, want 30", len([]rune(out)))
	}
	if !strings.HasPrefix(in, out) {
		t.Fatal("truncation did not preserve prefix")
	}
}

func TestTruncateTranscriptIsStable(t *testing.T) {
	in := strings.Repeat("x", 500)
	if TruncateTranscript(in, 100) != TruncateTranscript(in, 100) {
		t.Fatal("same input and budget produced different output")
	}
}

func TestTruncateTranscriptShortInputUntouched(t *testing.T) {
	if got := TruncateTranscript("short", 100); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateTranscript("unbounded", 0); got != "unbounded" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateTranscriptRuneSafe(t *testing.T) {
	in := strings.Repeat("ありがとう", 10)
	out := TruncateTranscript(in, 7)
	if len([]rune(out)) != 7 {
		t.Fatalf("got %d runes, want 7", len([]rune(out)))
	}
}

func TestSanitizeTextStripsControls(t *testing.T) {
	if got := SanitizeText("a\x00b\x01c\nd"); got != "abc\nd" {
		t.Fatalf("got %q", got)
	}
}
