//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

func TestLexicalRetrieverAgainstPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(
		ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("campus"),
		tcpostgres.WithUsername("campus"),
		tcpostgres.WithPassword("campus"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewDocumentRepository(db, "english")
	require.NoError(t, err)
	require.NoError(t, repo.EnsureSchema(ctx))

	docs := []domain.Document{
		{ID: "doc1", URL: "https://campus.edu/library", Contents: "The library opens at eight. Library cards are issued at the desk."},
		{ID: "doc2", URL: "https://campus.edu/sports", Contents: "The sports hall opens at nine."},
		{ID: "doc3", URL: "https://campus.edu/news", Contents: "New library wing announced."},
	}
	for i := range docs {
		require.NoError(t, repo.Upsert(ctx, &docs[i]))
	}

	retriever, err := NewLexicalRetriever(db, "english")
	require.NoError(t, err)

	hits, err := retriever.Search(ctx, "library", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "doc1", hits[0].ID)
	require.Equal(t, "https://campus.edu/library", hits[0].URL)
	require.Equal(t, 1, hits[1].Rank)

	got, err := repo.GetByID(ctx, "doc2")
	require.NoError(t, err)
	require.Equal(t, "The sports hall opens at nine.", got.Contents)

	ids, err := repo.ListIDs(ctx, "", 10)
	require.NoError(t, err)
	require.Equal(t, []domain.DocumentID{"doc1", "doc2", "doc3"}, ids)
}
