package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BlockKind tags a content block variant.
type BlockKind int

const (
	// PlainText is a bare string, either the whole content or a list element.
	PlainText BlockKind = iota
	// TextBlock is {"type":"text","text":...}.
	TextBlock
	// DocumentBlock is {"type":"document","source":{"type":"text","data":...}}.
	DocumentBlock
	// OtherBlock is any block that contributes no text (tool_use, image, ...).
	OtherBlock
)

// String returns the variant name.
func (k BlockKind) String() string {
	switch k {
	case PlainText:
		return "plain_text"
	case TextBlock:
		return "text"
	case DocumentBlock:
		return "document"
	default:
		return "other"
	}
}

// Block is one decoded content element. Text is empty for OtherBlock.
type Block struct {
	Kind BlockKind
	Text string
}

// Content is the decoded message.content field.
type Content []Block

// rawBlock covers the fields read from structured blocks.
type rawBlock struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Source *struct {
		Type string `json:"type"`
		Data string `json:"data"`
	} `json:"source"`
}

// DecodeContent classifies raw message content. A string becomes a single
// PlainText block, a list is decoded element by element, and any other shape
// yields no blocks.
func DecodeContent(raw json.RawMessage) Content {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return Content{{Kind: PlainText, Text: s}}

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil
		}
		blocks := make(Content, 0, len(elems))
		for _, e := range elems {
			blocks = append(blocks, decodeBlock(e))
		}
		return blocks
	}
	return nil
}

func decodeBlock(raw json.RawMessage) Block {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Block{Kind: OtherBlock}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return Block{Kind: PlainText, Text: s}
		}
	case '{':
		var b rawBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return Block{Kind: OtherBlock}
		}
		switch {
		case b.Type == "text":
			return Block{Kind: TextBlock, Text: b.Text}
		case b.Type == "document" && b.Source != nil && b.Source.Type == "text":
			return Block{Kind: DocumentBlock, Text: b.Source.Data}
		}
	}
	return Block{Kind: OtherBlock}
}

// Extract joins the text of every contributing block with newlines, in order.
func (c Content) Extract() string {
	parts := make([]string, 0, len(c))
	for _, b := range c {
		if b.Kind == OtherBlock {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}
