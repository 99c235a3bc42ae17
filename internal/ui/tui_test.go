package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestIndexingModel_ShowsStagesAndProgress(t *testing.T) {
	// Given: a model midway through indexing
	tracker := NewProgressTracker()
	tracker.SetStage(StageIndexing, 100)
	tracker.Update(50, "-home-me-code-app/s1.jsonl")
	model := newIndexingModel(tracker, "/home/me/.claude/projects")
	model.styles = NoColorStyles()

	// When: rendering
	view := model.View()

	// Then: stages, counts, and current file are shown
	assert.Contains(t, view, "Scanning")
	assert.Contains(t, view, "Indexing")
	assert.Contains(t, view, "50 / 100 files")
	assert.Contains(t, view, "s1.jsonl")
	assert.Contains(t, view, ".claude/projects")
}

func TestIndexingModel_CompleteQuits(t *testing.T) {
	model := newIndexingModel(NewProgressTracker(), "")
	model.styles = NoColorStyles()

	_, cmd := model.Update(completeMsg(CompletionStats{Messages: 7, Files: 2, Duration: time.Second}))

	assert.NotNil(t, cmd)
	assert.Contains(t, model.View(), "Messages: 7")
}

func TestIndexingModel_QuitKey(t *testing.T) {
	model := newIndexingModel(NewProgressTracker(), "")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "1m 5s", formatDuration(65*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}

func TestTruncateFilePath(t *testing.T) {
	assert.Equal(t, "a/b.jsonl", truncateFilePath("a/b.jsonl", 20))
	assert.Equal(t, "...b.jsonl", truncateFilePath("aaaaaaaa/b.jsonl", 10))
	assert.Equal(t, "...", truncateFilePath("abcdef", 3))
}
