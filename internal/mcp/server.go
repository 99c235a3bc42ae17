package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
	"github.com/Aman-CERP/chatsearch/pkg/version"
)

// Service is the query surface the tools call. *search.Engine implements it.
type Service interface {
	Search(ctx context.Context, query string, limit int) *search.SearchResponse
	Conversation(ctx context.Context, sessionID string) *search.ConversationResponse
	Status(ctx context.Context) *search.StatusResponse
	TriggerReindex() *search.ReindexResponse
	Telemetry() *telemetry.QueryMetricsSnapshot
}

// Server bridges MCP clients to the conversation index.
type Server struct {
	mcp     *mcp.Server
	service Service
	logger  *slog.Logger
}

// NewServer creates an MCP server with every tool and resource registered.
func NewServer(service Service) (*Server, error) {
	if service == nil {
		return nil, errors.New("search service is required")
	}

	s := &Server{
		service: service,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "chatsearch", Version: version.Version},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server on stdin/stdout until ctx ends or the client hangs up.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolSearch,
		Description: "Full-text search over past AI-assistant conversations. Every word must " +
			"match (as a prefix), punctuation is ignored. Returns highlighted snippets and the " +
			"session_id to read with get_conversation.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolConversation,
		Description: "Read every message of one conversation, in order. Use a session_id from search_conversations.",
	}, s.handleConversation)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolStatus,
		Description: "Check whether the conversation index exists, how many messages it holds, and whether a rebuild is running.",
	}, s.handleStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolReindex,
		Description: "Start a full background rebuild of the conversation index. Poll index_status for progress.",
	}, s.handleReindex)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 4))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultToolLimit
	}

	start := time.Now()
	requestID := generateRequestID()
	resp := s.service.Search(ctx, input.Query, limit)

	if resp.Error != "" {
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.String("query", input.Query),
			slog.String("error", resp.Error))
		return nil, SearchOutput{}, &MCPError{Code: ErrCodeInvalidQuery, Message: resp.Error}
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", resp.Count))

	output := SearchOutput{
		Query:   resp.Query,
		Count:   resp.Count,
		Results: make([]HitOutput, 0, len(resp.Results)),
	}
	for _, h := range resp.Results {
		output.Results = append(output.Results, toHitOutput(h))
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(resp.Query, resp.Results)}},
	}
	return result, output, nil
}

func (s *Server) handleConversation(ctx context.Context, _ *mcp.CallToolRequest, input ConversationInput) (
	*mcp.CallToolResult,
	ConversationOutput,
	error,
) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, ConversationOutput{}, NewInvalidParamsError("session_id is required")
	}

	resp := s.service.Conversation(ctx, sessionID)

	output := ConversationOutput{
		SessionID: resp.SessionID,
		Count:     len(resp.Messages),
		Messages:  make([]MessageOutput, 0, len(resp.Messages)),
	}
	for _, m := range resp.Messages {
		output.Messages = append(output.Messages, MessageOutput{
			Timestamp: m.Timestamp,
			Role:      m.Role,
			Content:   m.Content,
			Project:   m.Project,
		})
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatConversation(resp.SessionID, resp.Messages)}},
	}
	return result, output, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	st := s.service.Status(ctx)

	output := &IndexStatusOutput{
		Indexed:      st.Indexed,
		MessageCount: st.MessageCount,
		Job: JobOutput{
			Running:  st.IndexingJob.Running,
			Progress: st.IndexingJob.Progress,
			Total:    st.IndexingJob.Total,
			Messages: st.IndexingJob.Messages,
		},
	}
	if st.LastIndexed != nil {
		output.LastIndexed = *st.LastIndexed
	}
	if st.IndexingJob.Error != nil {
		output.Job.Error = *st.IndexingJob.Error
	}
	return nil, output, nil
}

func (s *Server) handleReindex(_ context.Context, _ *mcp.CallToolRequest, _ ReindexInput) (
	*mcp.CallToolResult,
	ReindexOutput,
	error,
) {
	resp := s.service.TriggerReindex()
	s.logger.Info("mcp_reindex_requested", slog.String("status", string(resp.Status)))
	return nil, ReindexOutput{Status: string(resp.Status)}, nil
}

func toHitOutput(h *store.Hit) HitOutput {
	return HitOutput{
		SessionID: h.SessionID,
		Timestamp: h.Timestamp,
		Role:      h.Role,
		Project:   h.Project,
		Snippet:   h.Snippet,
		Score:     h.Score,
	}
}

// generateRequestID returns a short random ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)
	}
	return hex.EncodeToString(b)
}
