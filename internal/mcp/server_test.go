package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
)

// fakeRebuilder reports a fixed job state.
type fakeRebuilder struct {
	state  async.JobState
	starts int
}

func (f *fakeRebuilder) Start() async.StartStatus {
	f.starts++
	if f.state.Running {
		return async.StatusAlreadyRunning
	}
	f.state.Running = true
	return async.StatusStarted
}

func (f *fakeRebuilder) State() async.JobState { return f.state }

// newTestServer builds a server over a real engine and an in-memory index.
func newTestServer(t *testing.T) (*Server, *fakeRebuilder) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open("", string(store.BackendSQLite), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Insert(ctx, []*store.Message{
		{SessionID: "S1", Timestamp: "2025-06-01T10:00:00Z", Role: "user", Content: "how do I enable sqlite WAL mode", Project: "myproj"},
		{SessionID: "S1", Timestamp: "2025-06-01T10:00:05Z", Role: "assistant", Content: "run PRAGMA journal_mode=WAL", Project: "myproj"},
		{SessionID: "S2", Timestamp: "2025-06-02T09:00:00Z", Role: "user", Content: "bubbletea spinner example", Project: "tui"},
	}))
	require.NoError(t, st.SetMetadata(ctx, map[string]string{
		store.MetaLastIndexed:  "2025-06-02T12:00:00Z",
		store.MetaMessageCount: "3",
	}))

	rebuilder := &fakeRebuilder{}
	engine, err := search.NewEngine(st, rebuilder, search.DefaultEngineConfig(),
		search.WithMetrics(telemetry.NewQueryMetrics(telemetry.DefaultQueryMetricsConfig(), nil)))
	require.NoError(t, err)

	srv, err := NewServer(engine)
	require.NoError(t, err)
	return srv, rebuilder
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestNewServer_ExposesMCPServer(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleSearch_ReturnsHits(t *testing.T) {
	// Given: an index with a WAL discussion
	srv, _ := newTestServer(t)

	// When: searching by prefix
	result, out, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "sqlit wal"})

	// Then: the matching user message is returned with highlights and markdown text
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "S1", out.Results[0].SessionID)
	assert.Equal(t, "user", out.Results[0].Role)
	assert.Contains(t, out.Results[0].Snippet, "<mark>")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text := result.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, "Session: `S1`")
	assert.Contains(t, text, "**")
}

func TestHandleSearch_EmptyQueryRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "   "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearch_NoMatches(t *testing.T) {
	srv, _ := newTestServer(t)

	result, out, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "kubernetes"})

	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotNil(t, out.Results)
	assert.Contains(t, result.Content[0].(*mcp.TextContent).Text, "No conversations found")
}

func TestHandleConversation(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleConversation(context.Background(), nil, ConversationInput{SessionID: "S1"})

	require.NoError(t, err)
	assert.Equal(t, "S1", out.SessionID)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "user", out.Messages[0].Role)
	assert.Equal(t, "assistant", out.Messages[1].Role)
}

func TestHandleConversation_UnknownAndMissing(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleConversation(context.Background(), nil, ConversationInput{SessionID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Messages)

	_, _, err = srv.handleConversation(context.Background(), nil, ConversationInput{})
	assert.Error(t, err)
}

func TestHandleStatus(t *testing.T) {
	srv, rebuilder := newTestServer(t)
	rebuilder.state = async.JobState{Running: true, Progress: 3, Total: 10, Messages: 40}

	_, out, err := srv.handleStatus(context.Background(), nil, IndexStatusInput{})

	require.NoError(t, err)
	assert.True(t, out.Indexed)
	assert.Equal(t, "2025-06-02T12:00:00Z", out.LastIndexed)
	assert.Equal(t, 3, out.MessageCount)
	assert.True(t, out.Job.Running)
	assert.Equal(t, 3, out.Job.Progress)
	assert.Equal(t, 10, out.Job.Total)
}

func TestHandleStatus_JobError(t *testing.T) {
	srv, rebuilder := newTestServer(t)
	rebuilder.state = async.JobState{Error: "projects directory not found"}

	_, out, err := srv.handleStatus(context.Background(), nil, IndexStatusInput{})

	require.NoError(t, err)
	assert.Equal(t, "projects directory not found", out.Job.Error)
}

func TestHandleReindex(t *testing.T) {
	srv, rebuilder := newTestServer(t)

	_, first, err := srv.handleReindex(context.Background(), nil, ReindexInput{})
	require.NoError(t, err)
	_, second, err := srv.handleReindex(context.Background(), nil, ReindexInput{})
	require.NoError(t, err)

	assert.Equal(t, "started", first.Status)
	assert.Equal(t, "already_running", second.Status)
	assert.Equal(t, 2, rebuilder.starts)
}

func TestConversationResource(t *testing.T) {
	srv, _ := newTestServer(t)
	req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "conversation://S1"}}

	res, err := srv.handleConversationResource(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "text/markdown", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, "# Conversation S1")
	assert.Contains(t, res.Contents[0].Text, "PRAGMA journal_mode=WAL")
}

func TestConversationResource_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, uri := range []string{"conversation://missing", "conversation://", "file://S1"} {
		req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
		_, err := srv.handleConversationResource(context.Background(), req)
		assert.Error(t, err, uri)
	}
}

func TestQueryMetricsResource(t *testing.T) {
	// Given: a couple of searches have run
	srv, _ := newTestServer(t)
	_, _, _ = srv.handleSearch(context.Background(), nil, SearchInput{Query: "sqlite"})
	_, _, _ = srv.handleSearch(context.Background(), nil, SearchInput{Query: "kubernetes"})

	// When: reading the metrics resource
	req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: queryMetricsURI}}
	res, err := srv.handleQueryMetricsResource(context.Background(), req)
	require.NoError(t, err)

	// Then: it reports both queries and the zero-result one
	var out QueryMetricsOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &out))
	assert.Equal(t, int64(2), out.TotalQueries)
	assert.Contains(t, out.ZeroResultQueries, "kubernetes")
	assert.InDelta(t, 50.0, out.ZeroResultPct, 0.01)
}

func TestExtractSessionID(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"conversation://abc-123", "abc-123"},
		{"conversation://a%20b", "a b"},
		{"conversation://a/b", ""},
		{"conversation://", ""},
		{"chatsearch://query_metrics", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSessionID(tt.uri))
		})
	}
}
