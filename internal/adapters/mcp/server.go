// Package mcpadapter exposes search and ask as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

type Server struct {
	search ports.SearchService
	ask    ports.AskService
	docs   ports.DocumentStore
	mcp    *server.MCPServer
}

// NewServer registers the tools. ask and docs may be nil, which leaves the
// matching tool out.
func NewServer(version string, search ports.SearchService, ask ports.AskService, docs ports.DocumentStore) *Server {
	mcpServer := server.NewMCPServer(
		"campus-search",
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)
	s := &Server{search: search, ask: ask, docs: docs, mcp: mcpServer}
	s.registerTools()
	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Hybrid keyword and semantic search over the campus corpus. Returns a JSON list of {docid, url, score, title, preview}."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query")),
		mcp.WithNumber("top_k", mcp.DefaultNumber(10), mcp.Description("Max number of results")),
		mcp.WithBoolean("use_judge", mcp.DefaultBool(true), mcp.Description("Rerank candidates with the LLM relevance judge")),
	), s.handleSearch)

	if s.ask != nil {
		s.mcp.AddTool(mcp.NewTool("ask",
			mcp.WithDescription("Answer a question about the campus using retrieved references."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The question")),
		), s.handleAsk)
	}

	if s.docs != nil {
		s.mcp.AddTool(mcp.NewTool("get_document",
			mcp.WithDescription("Retrieve the full content of a document by docid."),
			mcp.WithString("docid", mcp.Required(), mcp.Description("Document id as returned by search")),
		), s.handleGetDocument)
	}
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", 10)
	useJudge := request.GetBool("use_judge", true)

	resp, err := s.search.Search(ctx, query, topK, useJudge)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	hits := resp.Hits
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return jsonResult(hits)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.ask.Ask(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Ask failed: %v", err)), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("docid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.GetByID(ctx, domain.DocumentID(id))
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Document %q not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON marshal failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
