// Package mcp exposes the embedding adapter as an MCP stdio server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/logger"
	"github.com/memvra/embedkit/internal/store"
)

// Index is the part of the store the search tool needs.
type Index interface {
	Search(query []float32, topK int) ([]store.Match, error)
}

// Server serves embedding tools over MCP.
type Server struct {
	embedder adapter.Embedding
	index    Index // nil disables the search tool
	version  string
}

// NewServer creates a Server. index may be nil.
func NewServer(embedder adapter.Embedding, index Index, version string) *Server {
	return &Server{embedder: embedder, index: index, version: version}
}

// MCPServer builds the underlying mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("embedkit", s.version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("embed_text",
		mcp.WithDescription("Embed a single text and return its vector as JSON."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to embed")),
	), s.handleEmbedText)

	srv.AddTool(mcp.NewTool("embed_batch",
		mcp.WithDescription("Embed several texts in one provider call. Vectors are returned in input order."),
		mcp.WithArray("texts", mcp.Required(), mcp.Description("Texts to embed"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.handleEmbedBatch)

	srv.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List supported embedding models and their dimensions."),
		mcp.WithString("provider", mcp.Description("openai, ollama or gemini (default: the active provider)")),
	), s.handleListModels)

	if s.index != nil {
		srv.AddTool(mcp.NewTool("search",
			mcp.WithDescription("Semantic search over the indexed files."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
			mcp.WithNumber("top_k", mcp.Description("Number of results (default 5)")),
		), s.handleSearch)
	}

	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	logger.Info("mcp server starting", "provider", s.embedder.Provider())
	return server.ServeStdio(s.MCPServer())
}

type embedResult struct {
	Provider  string    `json:"provider"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
}

func (s *Server) handleEmbedText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embed failed: %v", err)), nil
	}
	return jsonResult(embedResult{Provider: s.embedder.Provider(), Dimension: v.Dimension, Vector: v.Values})
}

func (s *Server) handleEmbedBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	texts := req.GetStringSlice("texts", nil)
	if len(texts) == 0 {
		return mcp.NewToolResultError("missing required parameter: texts"), nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embed batch failed: %v", err)), nil
	}

	out := make([]embedResult, len(vecs))
	for i, v := range vecs {
		out[i] = embedResult{Provider: s.embedder.Provider(), Dimension: v.Dimension, Vector: v.Values}
	}
	return jsonResult(out)
}

func (s *Server) handleListModels(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider := req.GetString("provider", "")
	if provider == "" {
		provider = strings.ToLower(s.embedder.Provider())
	}

	models, err := adapter.SupportedModels(provider)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	for _, name := range adapter.ModelNames(models) {
		spec := models[name]
		fmt.Fprintf(&sb, "%s (%d): %s\n", name, spec.Dimension, spec.Description)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	topK := req.GetInt("top_k", 5)
	if topK <= 0 {
		topK = 5
	}

	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embed query failed: %v", err)), nil
	}
	matches, err := s.index.Search(v.Values, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "### %s (lines %d-%d, score %.3f)\n```\n%s\n```\n\n",
			m.Path, m.StartLine, m.EndLine, m.Similarity(), m.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
