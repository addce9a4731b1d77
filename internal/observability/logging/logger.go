package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// maxQueryRunes bounds the user query echoed into search and ask events.
const maxQueryRunes = 256

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New writes JSON logs to w. The MCP server logs to stderr because stdout
// carries the protocol.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: boundQuery,
	})
	return slog.New(handler).With("service", service)
}

// boundQuery flattens and truncates "query" attributes so one request stays
// one log line of bounded size.
func boundQuery(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != "query" || a.Value.Kind() != slog.KindString {
		return a
	}
	q := strings.Join(strings.Fields(a.Value.String()), " ")
	if r := []rune(q); len(r) > maxQueryRunes {
		q = string(r[:maxQueryRunes]) + "…"
	}
	return slog.String(a.Key, q)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
