package mcp

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	conversationScheme = "conversation://"
	queryMetricsURI    = "chatsearch://query_metrics"
)

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: conversationScheme + "{session_id}",
		Name:        "conversation",
		Description: "A whole conversation as markdown",
		MIMEType:    "text/markdown",
	}, s.handleConversationResource)

	s.mcp.AddResource(&mcp.Resource{
		URI:         queryMetricsURI,
		Name:        "query_metrics",
		Description: "Search telemetry for this server session",
		MIMEType:    "application/json",
	}, s.handleQueryMetricsResource)
}

func (s *Server) handleConversationResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	resp := s.service.Conversation(ctx, sessionID)
	if len(resp.Messages) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     FormatConversation(sessionID, resp.Messages),
		}},
	}, nil
}

// QueryMetricsOutput is the JSON structure of the query_metrics resource.
type QueryMetricsOutput struct {
	TotalQueries        int64            `json:"total_queries"`
	FailedQueries       int64            `json:"failed_queries"`
	CachedQueries       int64            `json:"cached_queries"`
	ZeroResultPct       float64          `json:"zero_result_pct"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	TopTerms            []QueryTermCount `json:"top_terms"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// QueryTermCount is a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) handleQueryMetricsResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	snapshot := s.service.Telemetry()
	if snapshot == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}

	output := QueryMetricsOutput{
		TotalQueries:        snapshot.TotalQueries,
		FailedQueries:       snapshot.FailedQueries,
		CachedQueries:       snapshot.CachedQueries,
		ZeroResultPct:       snapshot.ZeroResultPercentage(),
		ZeroResultQueries:   snapshot.ZeroResultQueries,
		TopTerms:            make([]QueryTermCount, 0, len(snapshot.TopTerms)),
		LatencyDistribution: make(map[string]int64, len(snapshot.LatencyDistribution)),
	}
	for _, tc := range snapshot.TopTerms {
		output.TopTerms = append(output.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, count := range snapshot.LatencyDistribution {
		output.LatencyDistribution[string(bucket)] = count
	}

	content, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      queryMetricsURI,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}

// extractSessionID returns the session id from conversation://{session_id}.
func extractSessionID(uri string) string {
	if !strings.HasPrefix(uri, conversationScheme) {
		return ""
	}
	id := strings.TrimPrefix(uri, conversationScheme)
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	if strings.Contains(id, "/") {
		return ""
	}
	return strings.TrimSpace(id)
}
