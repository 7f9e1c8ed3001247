// Package agent invokes the claude CLI and decodes its JSON result.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"continuous/internal/shell"
)

// DefaultTimeout is the default per-invocation agent timeout.
const DefaultTimeout = 10 * time.Minute

// DefaultBinary is the agent executable looked up on PATH.
const DefaultBinary = "claude"

// Mode selects the agent's permission set.
type Mode int

const (
	// ModeWork grants full tool access for the iteration's task.
	ModeWork Mode = iota
	// ModeCommit restricts the agent to git so it can only stage and commit.
	ModeCommit
)

func (m Mode) String() string {
	switch m {
	case ModeWork:
		return "work"
	case ModeCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// commitTools is the only tool allowance granted in ModeCommit.
const commitTools = "Bash(git:*)"

// Result holds the outcome of a single agent invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// OK reports a clean exit.
func (r *Result) OK() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// Claude runs the claude CLI in a working directory.
type Claude struct {
	run    *shell.Exec
	binary string
	model  string
}

// Option configures Claude.
type Option func(*Claude)

// WithBinary overrides the executable name or path.
func WithBinary(path string) Option {
	return func(c *Claude) { c.binary = path }
}

// WithModel passes --model to every invocation.
func WithModel(model string) Option {
	return func(c *Claude) { c.model = model }
}

// New returns a Claude runner for dir. Shell options configure the process
// (timeout, command factory, live stdout); the timeout defaults to
// DefaultTimeout rather than the shorter shell default.
func New(dir string, opts []Option, shellOpts ...shell.Option) *Claude {
	shellOpts = append([]shell.Option{shell.WithTimeout(DefaultTimeout)}, shellOpts...)
	c := &Claude{run: shell.New(dir, shellOpts...), binary: DefaultBinary}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Args builds the command line for prompt in mode.
func (c *Claude) Args(prompt string, mode Mode) []string {
	args := []string{"-p", prompt, "--output-format", "json"}
	switch mode {
	case ModeCommit:
		args = append(args, "--allowedTools", commitTools)
	default:
		args = append(args, "--dangerously-skip-permissions")
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	return args
}

// Invoke runs the agent. A non-zero exit or timeout is reported in Result,
// not as an error; the error is reserved for failures to start the process.
func (c *Claude) Invoke(ctx context.Context, prompt string, mode Mode) (*Result, error) {
	res, err := c.run.Run(ctx, c.binary, c.Args(prompt, mode)...)
	out := &Result{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}
	if err == nil {
		return out, nil
	}

	var exitErr *shell.ExitError
	switch {
	case errors.Is(err, shell.ErrTimeout):
		out.TimedOut = true
		return out, nil
	case errors.As(err, &exitErr):
		return out, nil
	default:
		return nil, fmt.Errorf("failed to run agent: %w", err)
	}
}
