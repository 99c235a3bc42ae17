package mcp

// Tool names.
const (
	ToolSearch       = "search_conversations"
	ToolConversation = "get_conversation"
	ToolStatus       = "index_status"
	ToolReindex      = "reindex"
)

// DefaultToolLimit keeps tool responses small enough for a model's context.
const DefaultToolLimit = 10

// SearchInput defines the input schema for search_conversations.
type SearchInput struct {
	Query string `json:"query" jsonschema:"words to search for; every word must match, as a prefix"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 200"`
}

// SearchOutput defines the output schema for search_conversations.
type SearchOutput struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Results []HitOutput `json:"results" jsonschema:"matching messages, best first"`
}

// HitOutput is one matching message.
type HitOutput struct {
	SessionID string  `json:"session_id" jsonschema:"pass to get_conversation to read the whole session"`
	Timestamp string  `json:"timestamp"`
	Role      string  `json:"role" jsonschema:"user or assistant"`
	Project   string  `json:"project"`
	Snippet   string  `json:"snippet" jsonschema:"excerpt with matched words wrapped in <mark> tags"`
	Score     float64 `json:"score" jsonschema:"relevance, higher is better"`
}

// ConversationInput defines the input schema for get_conversation.
type ConversationInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from a search result"`
}

// ConversationOutput defines the output schema for get_conversation.
type ConversationOutput struct {
	SessionID string          `json:"session_id"`
	Count     int             `json:"count"`
	Messages  []MessageOutput `json:"messages" jsonschema:"messages in timestamp order"`
}

// MessageOutput is one message of a conversation.
type MessageOutput struct {
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Project   string `json:"project"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for index_status.
type IndexStatusOutput struct {
	Indexed      bool      `json:"indexed" jsonschema:"false until the first rebuild completes"`
	LastIndexed  string    `json:"last_indexed,omitempty"`
	MessageCount int       `json:"message_count"`
	Job          JobOutput `json:"job"`
}

// JobOutput describes the rebuild job.
type JobOutput struct {
	Running  bool   `json:"running"`
	Progress int    `json:"progress" jsonschema:"files processed"`
	Total    int    `json:"total" jsonschema:"files to process"`
	Messages int    `json:"messages" jsonschema:"messages indexed so far"`
	Error    string `json:"error,omitempty"`
}

// ReindexInput takes no parameters.
type ReindexInput struct{}

// ReindexOutput defines the output schema for reindex.
type ReindexOutput struct {
	Status string `json:"status" jsonschema:"started or already_running"`
}
