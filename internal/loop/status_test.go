package loop

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readStatus(t *testing.T, path string) Status {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var s Status
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestStatusWriter_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	w := NewStatusWriter(path)
	clock := newFakeClock()
	w.now = clock.Now
	assert.Equal(t, path, w.Path())

	w.OnLoopStart("Refactor", Limits{MaxRuns: 4})
	s := readStatus(t, path)
	assert.Equal(t, "running", s.State)
	assert.Equal(t, "Refactor", s.Task)
	assert.Equal(t, 4, s.MaxRuns)

	w.OnIterationStart(1)
	w.OnPhase(1, PhaseAgent, "continuous/iteration-1/x")
	s = readStatus(t, path)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, "agent", s.Phase)
	assert.Equal(t, "continuous/iteration-1/x", s.Branch)

	w.OnIterationEnd(IterationResult{Ordinal: 1, Outcome: OutcomeMerged, Cost: 0.5, PullRequest: 7, Phase: PhaseDone})
	w.OnIterationStart(2)
	w.OnIterationEnd(IterationResult{Ordinal: 2, Outcome: OutcomeFailed, Cost: 0.25, Phase: PhasePoll, Err: errors.New("checks failed")})
	s = readStatus(t, path)
	assert.Equal(t, 1, s.Tallies.Merged)
	assert.Equal(t, 1, s.Tallies.Failed)
	assert.InDelta(t, 0.75, s.TotalCost, 1e-9)
	assert.Equal(t, "checks failed", s.LastError)
	assert.Equal(t, "poll", s.Phase)

	clock.Advance(time.Minute)
	w.OnLoopEnd(&Summary{TotalCost: 0.75, StopReason: StopMaxRuns})
	s = readStatus(t, path)
	assert.Equal(t, "completed", s.State)
	assert.Equal(t, "max-runs-reached", s.StopReason)
	assert.True(t, clock.Now().Equal(s.UpdatedAt))
	assert.NoError(t, w.Err())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStatusWriter_RecordsWriteErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := NewStatusWriter(filepath.Join(blocker, "status.json"))
	w.OnLoopStart("task", Limits{})
	assert.Error(t, w.Err())
}

func TestStatusWriter_AsLoopObserver(t *testing.T) {
	h := newHarness()
	path := filepath.Join(t.TempDir(), "status.json")
	cfg := h.config()
	cfg.Limits.MaxRuns = 1
	cfg.Observer = NewMultiObserver(NewStatusWriter(path))

	_, err := h.runner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	s := readStatus(t, path)
	assert.Equal(t, "completed", s.State)
	assert.Equal(t, 1, s.Tallies.Merged)
	assert.Equal(t, 1, s.PullRequest)
	assert.Equal(t, firstBranch, s.Branch)
}
