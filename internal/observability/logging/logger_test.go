package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewWritesServiceTaggedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "api", "warn")

	logger.Info("search_retrieval", "query", "dropped below warn")
	logger.Warn("judge_fallback", "reason", "timeout")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "judge_fallback" || entry["service"] != "api" || entry["reason"] != "timeout" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestQueryAttributeIsFlattenedAndBounded(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "api", "info")

	logger.Info("search_retrieval", "query", "  library\n  opening\thours ")
	logger.Info("search_retrieval", "query", strings.Repeat("é", maxQueryRunes+10))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if first["query"] != "library opening hours" {
		t.Fatalf("unexpected flattened query %q", first["query"])
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if n := utf8.RuneCountInString(second["query"].(string)); n != maxQueryRunes+1 {
		t.Fatalf("expected %d runes including ellipsis, got %d", maxQueryRunes+1, n)
	}
}
