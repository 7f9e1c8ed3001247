package loop

import (
	"math"
	"strings"
	"time"
)

// Limits are the session's stopping caps. A zero or negative value leaves
// that dimension unlimited.
type Limits struct {
	MaxRuns             int
	MaxCost             float64
	MaxDuration         time.Duration
	CompletionThreshold int
}

// Session is the mutable state of one loop run. It is owned by the Runner
// and passed by pointer to the iteration controller.
type Session struct {
	Limits Limits

	StartedAt           time.Time
	Attempts            int
	Succeeded           int
	Failed              int
	ConsecutiveFailures int
	TotalCost           float64
	CompletionStreak    int
}

// NewSession starts a session at now.
func NewSession(limits Limits, now time.Time) *Session {
	return &Session{Limits: limits, StartedAt: now}
}

// AddCost accrues spend. Negative and non-finite amounts are ignored so the
// total never decreases.
func (s *Session) AddCost(c float64) {
	if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return
	}
	s.TotalCost += c
}

// ObserveSummary updates the completion streak from one agent summary and
// reports whether the phrase was present. An empty phrase never matches.
func (s *Session) ObserveSummary(summary, phrase string) bool {
	if phrase != "" && strings.Contains(summary, phrase) {
		s.CompletionStreak++
		return true
	}
	s.CompletionStreak = 0
	return false
}

// RecordSuccess counts a merged iteration.
func (s *Session) RecordSuccess() {
	s.Succeeded++
	s.ConsecutiveFailures = 0
}

// RecordFailure counts a failed iteration.
func (s *Session) RecordFailure() {
	s.Failed++
	s.ConsecutiveFailures++
}

// Elapsed returns wall-clock time since the session started.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}
