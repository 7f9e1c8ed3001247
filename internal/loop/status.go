package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the JSON snapshot written to the status file so other tools can
// follow a running loop.
type Status struct {
	// State is "running" or "completed".
	State string `json:"state"`

	Task        string    `json:"task"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Iteration   int       `json:"iteration"`
	MaxRuns     int       `json:"max_runs,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Branch      string    `json:"branch,omitempty"`
	PullRequest int       `json:"pull_request,omitempty"`
	TotalCost   float64   `json:"total_cost_usd"`

	Tallies struct {
		Merged int `json:"merged"`
		Failed int `json:"failed"`
	} `json:"tallies"`

	// LastError is the most recent iteration failure.
	LastError string `json:"last_error,omitempty"`

	// StopReason is set once State is "completed".
	StopReason string `json:"stop_reason,omitempty"`
}

// StatusWriter is an Observer that rewrites a JSON status file on every
// event.
type StatusWriter struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	status Status
	err    error
}

var _ Observer = (*StatusWriter)(nil)

// NewStatusWriter creates a StatusWriter for path.
func NewStatusWriter(path string) *StatusWriter {
	return &StatusWriter{path: path, now: time.Now}
}

// Path returns the status file location.
func (w *StatusWriter) Path() string {
	return w.path
}

// Err returns the last write error, if any.
func (w *StatusWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write replaces the status file atomically.
func (w *StatusWriter) Write(status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create status dir: %w", err)
		}
	}
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (w *StatusWriter) update(fn func(s *Status)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.status)
	w.status.UpdatedAt = w.now()
	if err := w.Write(w.status); err != nil {
		w.err = err
	}
}

// OnLoopStart implements Observer.
func (w *StatusWriter) OnLoopStart(task string, limits Limits) {
	w.update(func(s *Status) {
		*s = Status{State: "running", Task: task, StartedAt: w.now(), MaxRuns: limits.MaxRuns}
	})
}

// OnIterationStart implements Observer.
func (w *StatusWriter) OnIterationStart(ordinal int) {
	w.update(func(s *Status) {
		s.Iteration = ordinal
		s.Phase = ""
		s.Branch = ""
		s.PullRequest = 0
	})
}

// OnPhase implements Observer.
func (w *StatusWriter) OnPhase(ordinal int, phase Phase, detail string) {
	w.update(func(s *Status) {
		s.Phase = phase.String()
		if phase == PhaseAgent && detail != "" {
			s.Branch = detail
		}
	})
}

// OnIterationEnd implements Observer.
func (w *StatusWriter) OnIterationEnd(result IterationResult) {
	w.update(func(s *Status) {
		s.Phase = result.Phase.String()
		s.Branch = result.Branch
		s.PullRequest = result.PullRequest
		s.TotalCost += result.Cost
		if result.Outcome == OutcomeMerged {
			s.Tallies.Merged++
		} else {
			s.Tallies.Failed++
			if result.Err != nil {
				s.LastError = result.Err.Error()
			}
		}
	})
}

// OnLoopEnd implements Observer.
func (w *StatusWriter) OnLoopEnd(summary *Summary) {
	w.update(func(s *Status) {
		s.State = "completed"
		s.Phase = ""
		s.TotalCost = summary.TotalCost
		s.StopReason = summary.StopReason.String()
	})
}
