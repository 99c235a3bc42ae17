package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Stats(t *testing.T) {
	// Given: a tracker in the indexing stage
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 4)

	// When: half the files are done
	p.Update(2, "b.jsonl")
	p.AddError(ErrorEvent{IsWarn: true})
	p.AddError(ErrorEvent{})

	// Then: snapshot reflects it
	s := p.Stats()
	assert.Equal(t, StageIndexing, s.Stage)
	assert.InDelta(t, 0.5, s.Progress, 0.0001)
	assert.Equal(t, "b.jsonl", s.CurrentFile)
	assert.Equal(t, 1, s.WarnCount)
	assert.Equal(t, 1, s.ErrorCount)
}

func TestProgressTracker_ProgressCapsAtOne(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 2)
	p.Update(5, "")

	assert.Equal(t, 1.0, p.Stats().Progress)
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageScanning, 10)
	p.Update(3, "x")

	p.SetStage(StageIndexing, 20)

	s := p.Stats()
	assert.Zero(t, s.Current)
	assert.Equal(t, 20, s.Total)
	assert.Empty(t, s.CurrentFile)
}

func TestProgressTracker_ETAIsPositiveMidway(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 10)
	time.Sleep(5 * time.Millisecond)
	p.Update(5, "")

	assert.Greater(t, p.Stats().ETA, time.Duration(0))
}
