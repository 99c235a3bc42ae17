package daemon

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSON-RPC 2.0 method names.
const (
	MethodSearch       = "search"
	MethodConversation = "conversation"
	MethodStatus       = "status"
	MethodReindex      = "reindex"
	MethodPing         = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse encodes result into a response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{JSONRPC: "2.0", Result: data, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	Query string `json:"query"`
	// Limit <= 0 selects the server default.
	Limit int `json:"limit,omitempty"`
}

// Validate checks that required fields are present. A blank query is valid
// and yields no results.
func (p *SearchParams) Validate() error {
	if p.Limit < 0 {
		p.Limit = 0
	}
	return nil
}

// ConversationParams are the parameters for the conversation method.
type ConversationParams struct {
	SessionID string `json:"session_id"`
}

// Validate checks that required fields are present.
func (p *ConversationParams) Validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}
