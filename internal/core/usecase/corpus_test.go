package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

type queueFake struct {
	published []domain.DocumentID
	err       error
}

func (f *queueFake) PublishIndexJob(_ context.Context, id domain.DocumentID) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeIndexJobs(context.Context, func(context.Context, domain.DocumentID) error) error {
	return nil
}

const corpusFixture = `{"id":"doc1","url":"https://campus.edu/","contents":"home"}

{"id":"doc2","url":"http://campus.edu/index.html","contents":"home mirror"}
not json
{"id":"bad_chunk1","url":"x.edu","contents":"x"}
{"id":"doc3","url":"https://campus.edu/news","contents":""}
{"id":"doc4","url":"https://campus.edu/jobs","contents":"jobs"}
`

func TestCorpusLoaderLoadsAndPublishes(t *testing.T) {
	store := newStoreFake()
	queue := &queueFake{}
	loader := NewCorpusLoader(store, queue, discardLogger())

	var progress int
	report, err := loader.Load(context.Background(), strings.NewReader(corpusFixture), LoadOptions{
		DedupeURLs: true,
		Publish:    true,
		OnRecord:   func(LoadReport) { progress++ },
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := LoadReport{Lines: 6, Stored: 3, Published: 2, Malformed: 1, InvalidIDs: 1, Duplicates: 1, Empty: 1}
	if report != want {
		t.Fatalf("unexpected report %+v, want %+v", report, want)
	}
	if progress != 6 {
		t.Fatalf("expected 6 progress callbacks, got %d", progress)
	}
	if len(queue.published) != 2 || queue.published[0] != "doc1" || queue.published[1] != "doc4" {
		t.Fatalf("unexpected published ids %v", queue.published)
	}
	if _, ok := store.docs["doc3"]; !ok {
		t.Fatalf("empty-content document must still be stored")
	}
}

func TestCorpusLoaderWithoutDedupeKeepsMirrors(t *testing.T) {
	store := newStoreFake()
	report, err := NewCorpusLoader(store, nil, discardLogger()).Load(context.Background(), strings.NewReader(corpusFixture), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Stored != 4 || report.Published != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCorpusLoaderStopsOnPublishError(t *testing.T) {
	queue := &queueFake{err: errors.New("nats closed")}
	_, err := NewCorpusLoader(newStoreFake(), queue, discardLogger()).Load(
		context.Background(),
		strings.NewReader(corpusFixture),
		LoadOptions{Publish: true},
	)
	if err == nil || !strings.Contains(err.Error(), "publish index job doc1") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
