package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresHandler(t *testing.T) {
	_, err := NewServer(testSocketPath(t), nil)
	assert.Error(t, err)
}

func TestServer_ListenAndServe_RemovesSocketOnShutdown(t *testing.T) {
	// Given: a stale socket file from a crashed server
	socketPath := testSocketPath(t)
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o644))

	srv, err := NewServer(socketPath, &fakeHandler{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// When: the server comes up and is then cancelled
	client := NewClient(Config{SocketPath: socketPath})
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
	cancel()

	// Then: it stops with the context error and cleans up the socket
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}

// rawCall writes one raw line to the socket and decodes the reply.
func rawCall(t *testing.T, socketPath, line string) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(bufio.NewReader(conn)).Decode(&resp))
	return resp
}

func TestServer_ProtocolErrors(t *testing.T) {
	_, socketPath := startServer(t, &fakeHandler{})

	tests := []struct {
		name string
		line string
		code int
	}{
		{"malformed json", `{not json`, ErrCodeParseError},
		{"unknown method", `{"jsonrpc":"2.0","method":"explode","id":"1"}`, ErrCodeMethodNotFound},
		{"wrong version", `{"jsonrpc":"1.0","method":"ping","id":"1"}`, ErrCodeInvalidRequest},
		{"bad params", `{"jsonrpc":"2.0","method":"search","params":"nope","id":"1"}`, ErrCodeInvalidParams},
		{"missing session", `{"jsonrpc":"2.0","method":"conversation","params":{},"id":"1"}`, ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rawCall(t, socketPath, tt.line)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServer_EchoesRequestID(t *testing.T) {
	_, socketPath := startServer(t, &fakeHandler{})

	resp := rawCall(t, socketPath, `{"jsonrpc":"2.0","method":"ping","id":"abc-7"}`)

	assert.Nil(t, resp.Error)
	assert.Equal(t, "abc-7", resp.ID)
	assert.Equal(t, "2.0", resp.JSONRPC)
}
