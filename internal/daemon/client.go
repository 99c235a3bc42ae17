package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/search"
)

// Client talks to a running server over its unix socket.
type Client struct {
	socketPath  string
	timeout     time.Duration
	dialTimeout time.Duration
	requestID   atomic.Uint64
}

// NewClient creates a client for cfg.SocketPath.
func NewClient(cfg Config) *Client {
	c := &Client{
		socketPath:  cfg.SocketPath,
		timeout:     cfg.Timeout,
		dialTimeout: cfg.DialTimeout,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = 500 * time.Millisecond
	}
	return c
}

// Connect dials the socket. Failures are retryable ServerErrors.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return nil, errors.ServerError("chatsearch server is not running", err).
			WithDetail("socket", c.socketPath).
			WithSuggestion("Start it with: chatsearch serve")
	}
	return conn, nil
}

// IsRunning reports whether something accepts connections on the socket.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks that the server answers and returns its PID.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var out PingResult
	if err := c.call(ctx, MethodPing, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitReady pings until the server answers or retries run out. Used right
// after spawning a server.
func (c *Client) WaitReady(ctx context.Context, cfg errors.RetryConfig) error {
	cfg.RetryIf = errors.IsRetryable
	return errors.Retry(ctx, cfg, func() error {
		_, err := c.Ping(ctx)
		return err
	})
}

// Search runs a query on the server.
func (c *Client) Search(ctx context.Context, params SearchParams) (*search.SearchResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.ValidationError("invalid search params", err)
	}
	var out search.SearchResponse
	if err := c.call(ctx, MethodSearch, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversation fetches one session.
func (c *Client) Conversation(ctx context.Context, sessionID string) (*search.ConversationResponse, error) {
	params := ConversationParams{SessionID: sessionID}
	if err := params.Validate(); err != nil {
		return nil, errors.ValidationError("invalid conversation params", err)
	}
	var out search.ConversationResponse
	if err := c.call(ctx, MethodConversation, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server's index and job status.
func (c *Client) Status(ctx context.Context) (*search.StatusResponse, error) {
	var out search.StatusResponse
	if err := c.call(ctx, MethodStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reindex asks the server to start a rebuild.
func (c *Client) Reindex(ctx context.Context) (*search.ReindexResponse, error) {
	var out search.ReindexResponse
	if err := c.call(ctx, MethodReindex, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one request/response exchange on a fresh connection.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return errors.ServerError("failed to send request", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return errors.New(errors.ErrCodeServerTimeout, "failed to receive response", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed: %w", method, resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
