package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/chatsearch/internal/search"
)

// Handler answers socket requests. *search.Engine implements it.
type Handler interface {
	Search(ctx context.Context, query string, limit int) *search.SearchResponse
	Conversation(ctx context.Context, sessionID string) *search.ConversationResponse
	Status(ctx context.Context) *search.StatusResponse
	TriggerReindex() *search.ReindexResponse
}

// Server listens on a unix socket and serves one request per connection.
type Server struct {
	socketPath string
	handler    Handler
	timeout    time.Duration

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for handler on socketPath.
func NewServer(socketPath string, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		timeout:    30 * time.Second,
	}, nil
}

// ListenAndServe serves until ctx is cancelled, then waits for in-flight
// requests and removes the socket.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// a stale socket from a crashed server blocks Listen
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("socket_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing() {
				break
			}
			slog.Error("socket_accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		slog.Warn("socket_deadline_failed", slog.String("error", err.Error()))
	}

	encoder := json.NewEncoder(conn)

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	slog.Debug("socket_request",
		slog.String("method", req.Method),
		slog.String("id", req.ID),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("error", resp.Error != nil))

	_ = encoder.Encode(resp)
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true, PID: os.Getpid()})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.handler.Status(ctx))

	case MethodReindex:
		return NewSuccessResponse(req.ID, s.handler.TriggerReindex())

	case MethodSearch:
		var params SearchParams
		if errResp := decodeParams(req, &params); errResp != nil {
			return *errResp
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		return NewSuccessResponse(req.ID, s.handler.Search(ctx, params.Query, params.Limit))

	case MethodConversation:
		var params ConversationParams
		if errResp := decodeParams(req, &params); errResp != nil {
			return *errResp
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		return NewSuccessResponse(req.ID, s.handler.Conversation(ctx, params.SessionID))

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func decodeParams(req Request, dst any) *Response {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, dst); err != nil {
		resp := NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
		return &resp
	}
	return nil
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
