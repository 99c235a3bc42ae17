package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
)

// testSocketPath returns a socket path short enough for the unix limit.
func testSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(os.TempDir(), fmt.Sprintf("chatsearch-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	return socketPath
}

// fakeHandler records calls and returns canned responses.
type fakeHandler struct {
	lastQuery string
	lastLimit int
	reindexes atomic.Int32
}

func (h *fakeHandler) Search(_ context.Context, query string, limit int) *search.SearchResponse {
	h.lastQuery, h.lastLimit = query, limit
	if query == "bad" {
		return &search.SearchResponse{Results: []*store.Hit{}, Query: query, Error: "fts5: syntax error"}
	}
	return &search.SearchResponse{
		Results: []*store.Hit{{SessionID: "S1", Role: "user", Snippet: "<mark>sqlite</mark> tips", Score: 1.5}},
		Query:   query,
		Count:   1,
	}
}

func (h *fakeHandler) Conversation(_ context.Context, sessionID string) *search.ConversationResponse {
	msgs := []*store.Message{}
	if sessionID == "S1" {
		msgs = append(msgs, &store.Message{SessionID: "S1", Role: "user", Content: "hello"})
	}
	return &search.ConversationResponse{SessionID: sessionID, Messages: msgs}
}

func (h *fakeHandler) Status(context.Context) *search.StatusResponse {
	last := "2025-06-01T12:00:00Z"
	return &search.StatusResponse{Indexed: true, LastIndexed: &last, MessageCount: 42}
}

func (h *fakeHandler) TriggerReindex() *search.ReindexResponse {
	if h.reindexes.Add(1) > 1 {
		return &search.ReindexResponse{Status: async.StatusAlreadyRunning}
	}
	return &search.ReindexResponse{Status: async.StatusStarted}
}

// startServer runs a server on a fresh socket until the test ends.
func startServer(t *testing.T, h Handler) (*Client, string) {
	t.Helper()
	socketPath := testSocketPath(t)

	srv, err := NewServer(socketPath, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	client := NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
	return client, socketPath
}
