package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const corpusLine = `{"id":"doc1","url":"site.com","contents":"Library hours"}` + "\n"

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readAll(t *testing.T, s *Storage, name string) string {
	t.Helper()
	rc, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestOpenDecodesCompressedCorpora(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(corpusLine))
	_ = gw.Close()

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	_, _ = zw.Write([]byte(corpusLine))
	_ = zw.Close()

	writeFile(t, dir, "corpus.jsonl", []byte(corpusLine))
	writeFile(t, dir, "corpus.jsonl.gz", gz.Bytes())
	// Content sniffing wins over the extension.
	writeFile(t, dir, "corpus.bin", zs.Bytes())

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, name := range []string{"corpus.jsonl", "corpus.jsonl.gz", "corpus.bin"} {
		if got := readAll(t, s, name); got != corpusLine {
			t.Fatalf("Open(%s) = %q", name, got)
		}
	}
}

func TestOpenHandlesTinyAndMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", []byte("x"))
	writeFile(t, dir, "empty.jsonl", nil)

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := readAll(t, s, "one.txt"); got != "x" {
		t.Fatalf("unexpected content %q", got)
	}
	if got := readAll(t, s, "empty.jsonl"); got != "" {
		t.Fatalf("unexpected content %q", got)
	}
	if _, err := s.Open(context.Background(), "missing.jsonl"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewRejectsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f", []byte("x"))
	if _, err := New(filepath.Join(dir, "f")); err == nil {
		t.Fatalf("expected error for non-directory base path")
	}
}

func TestKind(t *testing.T) {
	cases := map[string]string{"a.jsonl.gz": "gzip", "a.ZST": "zstd", "a.jsonl": "plain"}
	for name, want := range cases {
		if got := Kind(name); got != want {
			t.Fatalf("Kind(%s) = %s, want %s", name, got, want)
		}
	}
}
