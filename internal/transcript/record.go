// Package transcript decodes conversation transcript records (one JSON
// object per line) into indexable messages.
package transcript

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/chatsearch/internal/store"
)

// Record types that produce messages.
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
)

// Record is the subset of a transcript line that is indexed.
type Record struct {
	Type      string         `json:"type"`
	SessionID Text           `json:"sessionId"`
	Timestamp Text           `json:"timestamp"`
	Message   *RecordMessage `json:"message"`
}

// RecordMessage is the nested message payload.
type RecordMessage struct {
	Role    Text            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text is a string field that tolerates other JSON values. Non-string values
// keep their compact JSON form; null decodes as empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	if string(bytes.TrimSpace(data)) == "null" {
		*t = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// Source identifies the file a record came from.
type Source struct {
	FilePath string
	Project  string
}

// SessionFallback is the session id used when a record has none: the file
// name without its .jsonl extension.
func (s Source) SessionFallback() string {
	base := filepath.Base(s.FilePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ToMessage converts a decoded record. It returns false for record types
// other than user and assistant, and for blank content.
func (r *Record) ToMessage(src Source) (*store.Message, bool) {
	if r.Type != TypeUser && r.Type != TypeAssistant {
		return nil, false
	}

	role := r.Type
	var content string
	if r.Message != nil {
		if r.Message.Role != "" {
			role = string(r.Message.Role)
		}
		content = DecodeContent(r.Message.Content).Extract()
	}
	if strings.TrimSpace(content) == "" {
		return nil, false
	}

	session := string(r.SessionID)
	if session == "" {
		session = src.SessionFallback()
	}

	return &store.Message{
		SessionID: session,
		Timestamp: string(r.Timestamp),
		Role:      role,
		Content:   content,
		Project:   src.Project,
		FilePath:  src.FilePath,
	}, true
}

// ParseLine decodes one transcript line. Malformed JSON is a skip, not an
// error.
func ParseLine(line []byte, src Source) (*store.Message, bool) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, false
	}
	return r.ToMessage(src)
}
