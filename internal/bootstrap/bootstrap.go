package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/campus-search/internal/config"
	"github.com/kirillkom/campus-search/internal/core/ports"
	"github.com/kirillkom/campus-search/internal/core/usecase"
	"github.com/kirillkom/campus-search/internal/infrastructure/chunking"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm/judge"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/campus-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/campus-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
	"github.com/kirillkom/campus-search/internal/infrastructure/vector/qdrant"
)

// Options tunes what a process wires beyond the search pipeline.
type Options struct {
	Logger        *slog.Logger
	StateListener resilience.StateListener
	// WithQueue connects to NATS; only the worker and indexer need it.
	WithQueue bool
	OnJobLag  func(time.Duration)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo    *postgres.DocumentRepository
	Queue   *nats.Queue
	Search  *usecase.SearchUseCase
	Ask     *usecase.AskUseCase
	Indexer *usecase.IndexDocumentUseCase
	Loader  *usecase.CorpusLoader

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })

	repo, err := postgres.NewDocumentRepository(db, cfg.LexicalTSConfig)
	if err != nil {
		return nil, fmt.Errorf("init document repository: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.Repo = repo

	execOpts := []resilience.Option{resilience.WithLogger(logger)}
	if opts.StateListener != nil {
		execOpts = append(execOpts, resilience.WithStateListener(opts.StateListener))
	}
	exec := resilience.NewExecutor(resilienceConfig(cfg), execOpts...)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(exec))
	embedder := ollama.NewEmbedder(ollamaClient)
	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(exec))

	if err := app.wireSearch(db, repo, embedder, vectorDB, ollamaClient, exec); err != nil {
		return nil, err
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	app.Indexer = usecase.NewIndexDocumentUseCase(repo, chunker, embedder, vectorDB, cfg.EmbedBatchSize)

	if opts.WithQueue {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: exec,
			Logger:             logger,
			OnJobLag:           opts.OnJobLag,
		})
		if err != nil {
			return nil, fmt.Errorf("init index queue: %w", err)
		}
		app.Queue = queue
		app.onClose(queue.Close)
		app.Loader = usecase.NewCorpusLoader(repo, queue, logger)
	} else {
		app.Loader = usecase.NewCorpusLoader(repo, nil, logger)
	}

	ok = true
	return app, nil
}

func (a *App) wireSearch(
	db *sql.DB,
	repo *postgres.DocumentRepository,
	embedder *ollama.Embedder,
	vectorDB *qdrant.Client,
	ollamaClient *ollama.Client,
	exec *resilience.Executor,
) error {
	cfg := a.Config

	lexical, err := postgres.NewLexicalRetriever(db, cfg.LexicalTSConfig)
	if err != nil {
		return fmt.Errorf("init lexical retriever: %w", err)
	}
	semantic := qdrant.NewSemanticRetriever(embedder, vectorDB)

	resolver, err := usecase.NewContentResolver(repo, cfg.DocLookupConcurrency, a.Logger)
	if err != nil {
		return fmt.Errorf("init content resolver: %w", err)
	}
	a.onClose(resolver.Close)

	completer, err := newCompleter(cfg, ollamaClient, exec)
	if err != nil {
		return err
	}

	fuser := usecase.NewFuser(lexical, semantic, resolver, usecase.FuserConfig{
		RRFK:             cfg.SearchRRFK,
		RetrieverTimeout: cfg.RetrieverTimeout(),
	}, a.Logger)

	var (
		blender   *usecase.Blender
		generator ports.AnswerGenerator
	)
	if completer != nil {
		blender = usecase.NewBlender(judge.New(completer, cfg.RerankMaxScore), resolver, usecase.BlendConfig{
			Weight:       cfg.RerankWeight,
			ExcerptChars: cfg.RerankExcerptChars,
			JudgeTimeout: cfg.JudgeTimeout(),
		}, a.Logger)
		generator = llm.NewAnswerGenerator(completer)
	} else {
		a.Logger.Warn("llm_disabled", "provider", cfg.LLMProvider)
	}

	a.Search = usecase.NewSearchUseCase(fuser, blender, resolver, usecase.SearchConfig{
		DefaultTopK:         cfg.SearchDefaultTopK,
		MaxTopK:             cfg.SearchMaxTopK,
		CandidateMultiplier: cfg.SearchCandidateMultiplier,
		RerankCandidates:    cfg.RerankCandidates,
		Dedupe:              usecase.DedupeOptions{ContentFingerprint: cfg.DedupeContentFingerprint},
	}, a.Logger)
	a.Ask = usecase.NewAskUseCase(a.Search, generator, usecase.AskConfig{
		TopK:         cfg.AskTopK,
		ContextChars: cfg.AskContextChars,
	}, a.Logger)
	return nil
}

// newCompleter returns nil when LLM features are switched off.
func newCompleter(cfg config.Config, ollamaClient *ollama.Client, exec *resilience.Executor) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case "", "openai":
		client, err := openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openaicompat.WithExecutor(exec))
		if err != nil {
			return nil, fmt.Errorf("init openai-compatible llm: %w", err)
		}
		return client, nil
	case "ollama":
		return ollamaClient, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:      cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond,
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
