package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, ch <-chan []FileEvent) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name        string
		first, next Operation
		want        Operation
		wantOK      bool
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate, true},
		{"create then delete cancels", OpCreate, OpDelete, 0, false},
		{"create then rename cancels", OpCreate, OpRename, 0, false},
		{"delete then create is modify", OpDelete, OpCreate, OpModify, true},
		{"rename then create is modify", OpRename, OpCreate, OpModify, true},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete, true},
		{"modify then modify", OpModify, OpModify, OpModify, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := merge(tt.first, tt.next)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDebouncer_CoalescesBurstIntoOneSortedBatch(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: a burst of writes arrives for two files
	d.Add(FileEvent{Path: "p/b.jsonl", Operation: OpCreate})
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "p/b.jsonl", Operation: OpModify})
		d.Add(FileEvent{Path: "p/a.jsonl", Operation: OpModify})
	}

	// Then: one batch is emitted with the net change per path
	batch := receiveBatch(t, d.Output())
	require.Len(t, batch, 2)
	assert.Equal(t, "p/a.jsonl", batch[0].Path)
	assert.Equal(t, OpModify, batch[0].Operation)
	assert.Equal(t, "p/b.jsonl", batch[1].Path)
	assert.Equal(t, OpCreate, batch[1].Operation)
	assert.Zero(t, d.Pending())
}

func TestDebouncer_CancelledEventsEmitNothing(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.jsonl", Operation: OpCreate})
	d.Add(FileEvent{Path: "tmp.jsonl", Operation: OpDelete})

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_WindowRestartsOnEachEvent(t *testing.T) {
	d := NewDebouncer(60 * time.Millisecond)
	defer d.Stop()

	start := time.Now()
	for i := 0; i < 4; i++ {
		d.Add(FileEvent{Path: "a.jsonl", Operation: OpModify})
		time.Sleep(30 * time.Millisecond)
	}

	receiveBatch(t, d.Output())
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDebouncer_StopClosesOutputAndIgnoresAdds(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "a.jsonl", Operation: OpModify})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "b.jsonl", Operation: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
