package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/search"
	"github.com/Aman-CERP/snipsearch/internal/telemetry"
	"github.com/Aman-CERP/snipsearch/pkg/version"
)

// serverName is reported to MCP clients.
const serverName = "snipsearch"

// defaultUserID attributes ratings made without an explicit user.
const defaultUserID = "mcp-client"

// Result limits for search_snippets.
const (
	defaultLimit = 20
	maxLimit     = 100
)

// Rater records snippet ratings. *snippets.Service satisfies it.
type Rater interface {
	Rate(ctx context.Context, snippetID, userID string, value float64) error
}

// IndexRunner re-crawls one index synchronously. *index.Trigger satisfies it.
type IndexRunner interface {
	Run(ctx context.Context, kind index.Kind) error
}

// Server is the MCP server for snipsearch.
// It exposes snippet search and rating to AI clients.
type Server struct {
	mcp     *mcp.Server
	engine  search.Searcher
	rater   Rater
	runner  IndexRunner
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger

	defaultLimit int
	tools        []ToolInfo
}

// Option configures a Server.
type Option func(*Server)

// WithRater enables the rate_snippet tool.
func WithRater(r Rater) Option {
	return func(s *Server) {
		s.rater = r
	}
}

// WithIndexRunner enables the refresh_index tool.
func WithIndexRunner(r IndexRunner) Option {
	return func(s *Server) {
		s.runner = r
	}
}

// WithMetrics registers the search_metrics resource.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDefaultLimit sets the result cap used when a call gives none.
func WithDefaultLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server around engine.
func NewServer(engine search.Searcher, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine:       engine,
		logger:       slog.Default(),
		defaultLimit: defaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	if s.metrics != nil {
		s.registerMetricsResource()
	}
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns the registered tools in registration order.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Server) registerTools() {
	s.addTool(ToolSearchSnippets, func(desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchSnippets, Description: desc}, s.mcpSearchHandler)
	})
	if s.rater != nil {
		s.addTool(ToolRateSnippet, func(desc string) {
			mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRateSnippet, Description: desc}, s.mcpRateHandler)
		})
	}
	if s.runner != nil {
		s.addTool(ToolRefreshIndex, func(desc string) {
			mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRefreshIndex, Description: desc}, s.mcpRefreshHandler)
		})
	}
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(s.tools)))
}

func (s *Server) addTool(name string, register func(desc string)) {
	desc := toolDescriptions[name]
	register(desc)
	s.tools = append(s.tools, ToolInfo{Name: name, Description: desc})
}

// CallTool invokes a registered tool by name, decoding args into its input type.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if !s.hasTool(name) {
		return nil, NewMethodNotFoundError(name)
	}

	switch name {
	case ToolSearchSnippets:
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		_, out, err := s.mcpSearchHandler(ctx, nil, in)
		return out, err
	case ToolRateSnippet:
		var in RateInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		_, out, err := s.mcpRateHandler(ctx, nil, in)
		return out, err
	case ToolRefreshIndex:
		var in RefreshInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		_, out, err := s.mcpRefreshHandler(ctx, nil, in)
		return out, err
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) hasTool(name string) bool {
	for _, t := range s.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func decodeArgs(args map[string]any, into any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// mcpSearchHandler is the MCP SDK handler for the search_snippets tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	term := strings.TrimSpace(input.Term)
	if term == "" {
		return nil, SearchOutput{}, NewInvalidParamsError(
			fmt.Sprintf("term is required; use %q to list every snippet", index.MatchAllTerm))
	}

	requestID := generateRequestID()
	limit := clampLimit(input.Limit, s.defaultLimit, 1, maxLimit)
	start := time.Now()

	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("term", term),
		slog.Int("limit", limit))

	entries, err := s.engine.Search(ctx, term, search.SearchOptions{
		Limit:       limit,
		SkipRatings: input.SkipRatings,
	})
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}
	if entries == nil {
		entries = []*search.ResultEntry{}
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(entries)))

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(term, entries)}},
	}
	return result, SearchOutput{Term: term, Count: len(entries), Results: entries}, nil
}

// mcpRateHandler is the MCP SDK handler for the rate_snippet tool.
func (s *Server) mcpRateHandler(ctx context.Context, _ *mcp.CallToolRequest, input RateInput) (
	*mcp.CallToolResult,
	RateOutput,
	error,
) {
	if s.rater == nil {
		return nil, RateOutput{}, MapError(fmt.Errorf("ratings: %w", ErrNotConfigured))
	}
	if strings.TrimSpace(input.SnippetID) == "" {
		return nil, RateOutput{}, NewInvalidParamsError("snippet_id is required")
	}
	user := input.UserID
	if user == "" {
		user = defaultUserID
	}

	if err := s.rater.Rate(ctx, input.SnippetID, user, input.Value); err != nil {
		s.logger.Warn("mcp_rate_failed",
			slog.String("snippet_id", input.SnippetID),
			slog.String("error", err.Error()))
		return nil, RateOutput{}, MapError(err)
	}
	return nil, RateOutput{SnippetID: input.SnippetID, Value: input.Value, Status: "recorded"}, nil
}

// mcpRefreshHandler is the MCP SDK handler for the refresh_index tool.
func (s *Server) mcpRefreshHandler(ctx context.Context, _ *mcp.CallToolRequest, input RefreshInput) (
	*mcp.CallToolResult,
	RefreshOutput,
	error,
) {
	if s.runner == nil {
		return nil, RefreshOutput{}, MapError(fmt.Errorf("index refresh: %w", ErrNotConfigured))
	}
	kind, err := index.ParseKind(input.Index)
	if err != nil {
		return nil, RefreshOutput{}, NewInvalidParamsError(err.Error())
	}
	if err := s.runner.Run(ctx, kind); err != nil {
		return nil, RefreshOutput{}, MapError(err)
	}
	return nil, RefreshOutput{Index: string(kind), Status: "refreshed"}, nil
}

// Serve runs the server on the given transport until ctx is canceled.
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

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
