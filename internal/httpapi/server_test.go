package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRebuilder reports a fixed job state.
type fakeRebuilder struct {
	state async.JobState
}

func (f *fakeRebuilder) Start() async.StartStatus {
	if f.state.Running {
		return async.StatusAlreadyRunning
	}
	f.state.Running = true
	return async.StatusStarted
}

func (f *fakeRebuilder) State() async.JobState { return f.state }

// newTestServer builds a server over a real engine and an in-memory index.
func newTestServer(t *testing.T, metrics *telemetry.Metrics) *Server {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open("", string(store.BackendSQLite), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Insert(ctx, []*store.Message{
		{SessionID: "S1", Timestamp: "2025-06-01T10:00:00Z", Role: "user", Content: "how do I enable sqlite WAL mode", Project: "myproj"},
		{SessionID: "S1", Timestamp: "2025-06-01T10:00:05Z", Role: "assistant", Content: "run PRAGMA journal_mode=WAL on sqlite", Project: "myproj"},
		{SessionID: "S2", Timestamp: "2025-06-02T09:00:00Z", Role: "user", Content: "bubbletea spinner example", Project: "tui"},
	}))
	require.NoError(t, st.SetMetadata(ctx, map[string]string{
		store.MetaLastIndexed:  "2025-06-02T12:00:00Z",
		store.MetaMessageCount: "3",
	}))

	engine, err := search.NewEngine(st, &fakeRebuilder{}, search.DefaultEngineConfig(),
		search.WithMetrics(telemetry.NewQueryMetrics(telemetry.DefaultQueryMetricsConfig(), metrics)))
	require.NoError(t, err)

	srv, err := NewServer(Config{}, engine, metrics)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestNewServer_DefaultAddr(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, DefaultAddr, srv.Addr())
}

func TestSearch_ReturnsHitsOnBothPrefixes(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, prefix := range []string{"", "/api/v1"} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			// When: searching by word prefix
			rec := doRequest(t, srv, http.MethodGet, prefix+"/search?q=sqli")

			// Then: both S1 messages match with highlighted snippets
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[search.SearchResponse](t, rec)
			assert.Equal(t, "sqli", resp.Query)
			assert.Equal(t, 2, resp.Count)
			require.Len(t, resp.Results, 2)
			assert.Equal(t, "S1", resp.Results[0].SessionID)
			assert.Contains(t, resp.Results[0].Snippet, "<mark>")
		})
	}
}

func TestSearch_BlankQueryReturnsEmptyList(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/search?q=%20%20")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearch_LimitIsApplied(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/search?q=sqlite&limit=1")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[search.SearchResponse](t, rec)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_InvalidLimitIsBadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/search?q=sqlite&limit=ten")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "invalid_limit", body.Code)
}

func TestSearch_PunctuationOnlyQueryIsHarmless(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, `/search?q=%22%28%29*%3A`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[search.SearchResponse](t, rec)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Error)
}

func TestConversation_ReturnsMessagesInOrder(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/conversation/S1")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[search.ConversationResponse](t, rec)
	assert.Equal(t, "S1", resp.SessionID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "assistant", resp.Messages[1].Role)
}

func TestConversation_UnknownSessionIsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/conversation/nope")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
}

func TestStatus_ReportsIndex(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[search.StatusResponse](t, rec)
	assert.True(t, resp.Indexed)
	require.NotNil(t, resp.LastIndexed)
	assert.Equal(t, "2025-06-02T12:00:00Z", *resp.LastIndexed)
	assert.Equal(t, 3, resp.MessageCount)
	assert.False(t, resp.IndexingJob.Running)
}

func TestReindex_StartsOnceThenReportsRunning(t *testing.T) {
	srv := newTestServer(t, nil)

	first := decode[search.ReindexResponse](t, doRequest(t, srv, http.MethodPost, "/reindex"))
	second := decode[search.ReindexResponse](t, doRequest(t, srv, http.MethodPost, "/api/v1/reindex"))

	assert.Equal(t, async.StatusStarted, first.Status)
	assert.Equal(t, async.StatusAlreadyRunning, second.Status)
}

func TestReindex_GetIsNotRouted(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/reindex")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats_ReturnsQueryMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	doRequest(t, srv, http.MethodGet, "/search?q=sqlite")
	doRequest(t, srv, http.MethodGet, "/search?q=nomatchword")

	rec := doRequest(t, srv, http.MethodGet, "/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[telemetry.QueryMetricsSnapshot](t, rec)
	assert.EqualValues(t, 2, snap.TotalQueries)
	assert.EqualValues(t, 1, snap.ZeroResultCount)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestMetrics_ExposedWhenEnabled(t *testing.T) {
	// Given: a server with a metrics registry that has seen a search
	srv := newTestServer(t, telemetry.NewMetrics())
	doRequest(t, srv, http.MethodGet, "/search?q=sqlite")

	// When: scraping
	rec := doRequest(t, srv, http.MethodGet, "/metrics")

	// Then: the request and search series are present
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `chatsearch_http_requests_total{code="200",method="GET",route="/search"} 1`)
	assert.Contains(t, body, "chatsearch_searches_total")
}

func TestMetrics_AbsentWhenDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Code)
}

func TestRecoveryMiddleware_ReturnsJSON500(t *testing.T) {
	router := gin.New()
	router.Use(recoveryMiddleware(newDiscardLogger()))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	// Given: a server on an ephemeral port
	srv := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// When: a real client calls it
	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `"ok"`))

	// Then: cancelling shuts down cleanly
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
