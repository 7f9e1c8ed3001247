package loop

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"continuous/internal/github"
	"continuous/internal/notes"
)

// Outcome is the terminal result of one iteration.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeMerged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMerged:
		return "merged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// IterationResult records one pass through the iteration state machine.
type IterationResult struct {
	Ordinal        int
	Branch         string
	Base           string
	Summary        string
	Cost           float64
	CompletionSeen bool
	PullRequest    int
	Outcome        Outcome
	Phase          Phase // Phase reached; the failing phase when Outcome is OutcomeFailed.
	Err            error
	Duration       time.Duration
}

// Summary holds aggregate results across all iterations.
type Summary struct {
	Attempts   int
	Succeeded  int
	Failed     int
	TotalCost  float64
	StopReason StopReason
	Duration   time.Duration
}

// Defaults used when Config leaves a field zero.
const (
	DefaultConsecutiveFailureLimit = 3
	DefaultPollInterval            = 10 * time.Second
	DefaultPollTimeout             = 30 * time.Minute
	DefaultPause                   = time.Second
	DefaultBaseBranch              = "main"
	DefaultPendingLogEvery         = 6
)

// Config configures the loop.
type Config struct {
	Task             string
	Limits           Limits
	CompletionSignal string
	NotesPath        string
	MergeMode        github.MergeMode
	BranchPrefix     string

	// DefaultBase is returned to when the current branch cannot be read.
	DefaultBase string

	PollInterval time.Duration
	PollTimeout  time.Duration

	// Pause between iterations. Negative disables it; zero uses DefaultPause.
	Pause time.Duration

	// ConsecutiveFailureLimit stops the loop after N back-to-back failures.
	// Zero means DefaultConsecutiveFailureLimit.
	ConsecutiveFailureLimit int

	Verbose  bool
	Output   io.Writer // defaults to io.Discard
	Observer Observer

	// Test hooks; nil means time.Now and NewBranchToken.
	Now      func() time.Time
	NewToken func() string
}

func (c Config) withDefaults() Config {
	if c.CompletionSignal == "" {
		c.CompletionSignal = DefaultCompletionSignal
	}
	if c.NotesPath == "" {
		c.NotesPath = notes.DefaultFile
	}
	if c.MergeMode == "" {
		c.MergeMode = github.MergeSquash
	}
	if c.BranchPrefix == "" {
		c.BranchPrefix = DefaultBranchPrefix
	}
	if c.DefaultBase == "" {
		c.DefaultBase = DefaultBaseBranch
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.Pause == 0 {
		c.Pause = DefaultPause
	}
	if c.ConsecutiveFailureLimit <= 0 {
		c.ConsecutiveFailureLimit = DefaultConsecutiveFailureLimit
	}
	if c.Observer == nil {
		c.Observer = NoopObserver{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewToken == nil {
		c.NewToken = NewBranchToken
	}
	return c
}

func (d Deps) validate() error {
	switch {
	case d.VCS == nil:
		return fmt.Errorf("loop: version control is required")
	case d.Host == nil:
		return fmt.Errorf("loop: code host is required")
	case d.Agent == nil:
		return fmt.Errorf("loop: agent is required")
	case d.Notes == nil:
		return fmt.Errorf("loop: notes store is required")
	}
	return nil
}
