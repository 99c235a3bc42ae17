package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"two words", "hello world", "hello* world*"},
		{"punctuation splits words", "foo.bar(baz)", "foo* bar* baz*"},
		{"fts operators are neutralised", `"quoted" -neg col:x`, "quoted* neg* col* x*"},
		{"underscore and digits kept", "snake_case v2", "snake_case* v2*"},
		{"unicode letters kept", "café naïve", "café* naïve*"},
		{"extra whitespace", "  a \t b\n", "a* b*"},
		{"blank", "   ", ""},
		{"only punctuation", "!?*()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.query))
		})
	}
}
