package chunking

import (
	"strings"
	"testing"
)

func TestSplitOverlapsWindows(t *testing.T) {
	s := NewSplitter(10, 3)
	chunks := s.Split("  abcdefghijklmnopqrstu  ")

	want := []string{"abcdefghij", "hijklmnopq", "opqrstu"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplitCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("校", 650)
	chunks := NewSplitter(0, DefaultOverlap).Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if n := len([]rune(chunks[0])); n != DefaultChunkSize {
		t.Fatalf("expected %d runes, got %d", DefaultChunkSize, n)
	}
}

func TestSplitEmptyAndInvalidOverlap(t *testing.T) {
	if chunks := NewSplitter(10, 2).Split(" \n\t "); chunks != nil {
		t.Fatalf("expected nil for blank text, got %q", chunks)
	}
	s := NewSplitter(8, 8)
	if s.Overlap != 2 {
		t.Fatalf("expected overlap clamped to 2, got %d", s.Overlap)
	}
}
