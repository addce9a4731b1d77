package config

import (
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	for _, key := range []string{"SEARCH_RRF_K", "SEARCH_CANDIDATE_MULTIPLIER", "RERANK_CANDIDATES", "RERANK_WEIGHT", "JUDGE_TIMEOUT_SECONDS", "CHUNK_SIZE", "CHUNK_OVERLAP", "LLM_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.SearchRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.SearchRRFK)
	}
	if cfg.SearchCandidateMultiplier != 5 {
		t.Fatalf("expected default candidate multiplier 5, got %d", cfg.SearchCandidateMultiplier)
	}
	if cfg.RerankCandidates != 20 {
		t.Fatalf("expected default rerank candidates 20, got %d", cfg.RerankCandidates)
	}
	if cfg.RerankWeight != 0.1 {
		t.Fatalf("expected default rerank weight 0.1, got %v", cfg.RerankWeight)
	}
	if cfg.JudgeTimeout() != 20*time.Second {
		t.Fatalf("expected default judge timeout 20s, got %v", cfg.JudgeTimeout())
	}
	if cfg.ChunkSize != 300 || cfg.ChunkOverlap != 50 {
		t.Fatalf("expected chunk windows 300/50, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected default provider openai, got %q", cfg.LLMProvider)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SEARCH_RRF_K", "75")
	t.Setenv("RERANK_WEIGHT", "0.25")
	t.Setenv("DEDUPE_CONTENT_FINGERPRINT", "true")
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("API_BACKPRESSURE_WAIT_MS", "50")

	cfg := Load()
	if cfg.SearchRRFK != 75 {
		t.Fatalf("expected rrf k override, got %d", cfg.SearchRRFK)
	}
	if cfg.RerankWeight != 0.25 {
		t.Fatalf("expected rerank weight override, got %v", cfg.RerankWeight)
	}
	if !cfg.DedupeContentFingerprint {
		t.Fatalf("expected content fingerprint enabled")
	}
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected provider normalized to lowercase, got %q", cfg.LLMProvider)
	}
	if cfg.BackpressureWait() != 50*time.Millisecond {
		t.Fatalf("unexpected backpressure wait %v", cfg.BackpressureWait())
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("SEARCH_MAX_TOP_K", "many")
	t.Setenv("RERANK_MAX_SCORE", "high")

	cfg := Load()
	if cfg.SearchMaxTopK != 50 || cfg.RerankMaxScore != 5 {
		t.Fatalf("expected defaults for unparsable values, got %d %v", cfg.SearchMaxTopK, cfg.RerankMaxScore)
	}
}

func TestLoadUsesDeepSeekKeyAsFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")

	if got := Load().OpenAIAPIKey; got != "sk-deepseek" {
		t.Fatalf("expected DEEPSEEK_API_KEY fallback, got %q", got)
	}
}
