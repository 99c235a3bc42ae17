package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	// Given: options with only the poll interval set
	opts := Options{PollInterval: time.Second}.WithDefaults()

	// Then: zero fields take defaults and set fields are kept
	assert.Equal(t, time.Second, opts.PollInterval)
	assert.Equal(t, DefaultOptions().DebounceWindow, opts.DebounceWindow)
	assert.Equal(t, DefaultOptions().EventBufferSize, opts.EventBufferSize)
}

func TestFilter(t *testing.T) {
	f := filter{exclude: []string{"archive/**", "agent-*"}}

	assert.True(t, f.keepFile("proj/s1.jsonl"))
	assert.True(t, f.keepFile("proj/S1.JSONL"))
	assert.False(t, f.keepFile("proj/notes.txt"))
	assert.False(t, f.keepFile("archive/old/s.jsonl"))
	assert.False(t, f.keepFile("proj/agent-1.jsonl"))

	assert.False(t, f.skipDir("."))
	assert.False(t, f.skipDir("proj"))
	assert.True(t, f.skipDir("archive"))
}
