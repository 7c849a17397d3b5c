// Package mcp exposes the retrieval pipeline over the Model Context
// Protocol so AI clients can pull multimodal context out of a library
// with tool calls. Two tools are served: "search" runs the full
// pipeline and returns a citation-annotated bundle, "library_status"
// reports index composition and embedder state.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mosaicsearch/mosaic/internal/config"
	"github.com/mosaicsearch/mosaic/internal/embed"
	"github.com/mosaicsearch/mosaic/internal/search"
	"github.com/mosaicsearch/mosaic/internal/store"
	"github.com/mosaicsearch/mosaic/pkg/version"
)

// Server bridges MCP clients with the search pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline *search.Pipeline
	content  store.ContentStore
	embedder embed.Embedder
	config   *config.Config
	logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools. The
// pipeline and content store are required; the embedder may be nil, in
// which case library_status reports it as unavailable.
func NewServer(pipeline *search.Pipeline, content store.ContentStore, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("search pipeline is required")
	}
	if content == nil {
		return nil, errors.New("content store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		pipeline: pipeline,
		content:  content,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "Mosaic",
		Version: version.Short(),
	}, nil)
	s.registerTools()
	return s, nil
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search",
		Description: "Search the media library. Retrieves text passages, image captions, " +
			"and video transcript segments relevant to a natural-language query and " +
			"returns them as a single citation-annotated context block. Use this " +
			"whenever you need grounded material from the library.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "library_status",
		Description: "Report index status: how many items of each content type are " +
			"indexed, the current index generation, and which embedding model is " +
			"active. Use before searching to verify the library is ingested.",
	}, s.handleStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 2))
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.Options{Limit: input.Limit}
	for _, raw := range input.Modalities {
		m, err := store.ParseModality(raw)
		if err != nil {
			return nil, SearchOutput{}, NewInvalidParamsError(err.Error())
		}
		opts.Modalities = append(opts.Modalities, m)
	}
	if input.Strategy != "" {
		strategy, err := search.ParseStrategy(input.Strategy)
		if err != nil {
			return nil, SearchOutput{}, NewInvalidParamsError(err.Error())
		}
		opts.Strategy = strategy
	}

	b, err := s.pipeline.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	return nil, ToSearchOutput(b), nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	counts, err := s.content.CountByType(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	gen, err := s.content.Generation(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	out := StatusOutput{
		Library: LibraryInfo{
			Root:    s.config.Library.Root,
			DataDir: s.config.DataDir(s.config.Library.Root),
		},
		Generation: gen,
		Counts:     make(map[string]int, len(counts)),
	}
	for ct, n := range counts {
		out.Counts[string(ct)] = n
		out.TotalRecords += n
	}
	out.Ready = out.TotalRecords > 0

	out.Embeddings = EmbeddingInfo{
		Provider: s.config.Embeddings.Provider,
		Model:    s.config.Embeddings.Model,
		Status:   "unavailable",
	}
	if s.embedder != nil {
		out.Embeddings.Status = "ready"
		out.Embeddings.ActiveModel = s.embedder.ModelName()
		out.Embeddings.Dimensions = s.embedder.Dimensions()
	}
	if model, err := s.content.GetState(ctx, store.StateKeyIndexModel); err == nil && model != "" {
		out.Embeddings.IndexedModel = model
		if s.embedder != nil && model != s.embedder.ModelName() {
			out.Embeddings.Status = "mismatch"
		}
	}
	if dim, err := s.content.GetState(ctx, store.StateKeyIndexDimension); err == nil && dim != "" {
		out.Embeddings.IndexedDimensions, _ = strconv.Atoi(dim)
	}

	return nil, out, nil
}

// Serve runs the server until ctx is canceled. Only the stdio
// transport is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
