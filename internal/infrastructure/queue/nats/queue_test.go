package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

func TestEncodeDecodeJob(t *testing.T) {
	payload, err := encodeJob("doc42", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}
	id, queuedAt, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if id != "doc42" || queuedAt.Day() != 15 {
		t.Fatalf("unexpected job %q %v", id, queuedAt)
	}
}

func TestDecodeJobAcceptsBareID(t *testing.T) {
	id, queuedAt, err := decodeJob([]byte(" doc7\n"))
	if err != nil || id != "doc7" || !queuedAt.IsZero() {
		t.Fatalf("decodeJob() = %q, %v", id, err)
	}
}

func TestDecodeJobRejectsInvalidPayloads(t *testing.T) {
	for _, raw := range []string{"", "{broken", `{"doc_id":""}`, "doc_chunk1"} {
		if _, _, err := decodeJob([]byte(raw)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("decodeJob(%q) expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestEncodeJobRejectsChunkLikeID(t *testing.T) {
	if _, err := encodeJob("doc_chunk3", time.Now()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDispatchSkipsInvalidAndCallsHandler(t *testing.T) {
	var lags int
	q := &Queue{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		onLag:  func(time.Duration) { lags++ },
	}
	var got []domain.DocumentID
	handler := func(_ context.Context, id domain.DocumentID) error {
		got = append(got, id)
		return errors.New("handler failures are logged")
	}

	q.dispatch(context.Background(), []byte(`{"doc_id":"doc1","queued_at":"2026-10-15T00:00:00Z"}`), handler)
	q.dispatch(context.Background(), []byte(`{oops`), handler)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	q.dispatch(cancelled, []byte(`doc2`), handler)

	if len(got) != 1 || got[0] != "doc1" {
		t.Fatalf("unexpected handled ids %v", got)
	}
	if lags != 1 {
		t.Fatalf("expected one lag observation, got %d", lags)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if !classifyPublishError(nats.ErrTimeout).Retryable {
		t.Fatalf("timeouts must be retryable")
	}
	if classifyPublishError(context.Canceled).RecordFailure {
		t.Fatalf("cancellation must not count as a breaker failure")
	}
	if class := classifyPublishError(nats.ErrMaxPayload); class.Retryable || class.RecordFailure {
		t.Fatalf("oversized payload must neither retry nor trip the breaker: %+v", class)
	}
	if class := classifyPublishError(errors.New("boom")); class.Retryable || !class.RecordFailure {
		t.Fatalf("unknown errors count as failures without retry: %+v", class)
	}
	err := wrapPublishError(nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if wrapPublishError(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}
