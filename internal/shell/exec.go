// Package shell runs external commands (git, gh, claude) with a per-call
// timeout and captured output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git or gh invocation.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a command is killed because its per-call
// timeout elapsed.
var ErrTimeout = errors.New("command timed out")

// CommandFactory builds an *exec.Cmd for the given context, working directory,
// binary name and arguments. Tests inject a factory that re-executes the test
// binary as a helper process.
type CommandFactory func(ctx context.Context, dir, name string, args ...string) *exec.Cmd

func defaultCommandFactory(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd
}

// Result holds the outcome of one command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Name   string
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("%s: %s", e.command(), msg)
}

func (e *ExitError) command() string {
	if len(e.Args) == 0 {
		return e.Name
	}
	return e.Name + " " + e.Args[0]
}

// Exec runs commands in a fixed directory.
type Exec struct {
	Dir     string
	Timeout time.Duration

	// Log receives one line per command when Verbose is set.
	Log     io.Writer
	Verbose bool

	// Stdout, if set, receives a live copy of the command's stdout.
	Stdout io.Writer

	factory CommandFactory
}

// Option configures an Exec.
type Option func(*Exec)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Exec) { e.Timeout = d }
}

// WithCommandFactory injects a custom command factory (used in tests).
func WithCommandFactory(f CommandFactory) Option {
	return func(e *Exec) { e.factory = f }
}

// WithLog echoes every command line to w when verbose is true.
func WithLog(w io.Writer, verbose bool) Option {
	return func(e *Exec) {
		e.Log = w
		e.Verbose = verbose
	}
}

// WithStdout tees live stdout to w.
func WithStdout(w io.Writer) Option {
	return func(e *Exec) { e.Stdout = w }
}

// New creates an Exec rooted at dir.
func New(dir string, opts ...Option) *Exec {
	e := &Exec{
		Dir:     dir,
		Timeout: DefaultTimeout,
		factory: defaultCommandFactory,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes name with args. A non-zero exit yields *ExitError, an expired
// per-call timeout yields an error wrapping ErrTimeout, and a launch failure
// is returned wrapped. The Result is populated in every case where the
// process started.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if e.Verbose && e.Log != nil {
		_, _ = fmt.Fprintf(e.Log, "  $ %s %s\n", name, strings.Join(quoteArgs(args), " "))
	}

	factory := e.factory
	if factory == nil {
		factory = defaultCommandFactory
	}
	cmd := factory(ctx, e.Dir, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	if e.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, e.Stdout)
	} else {
		cmd.Stdout = &stdoutBuf
	}
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("%s %s: %w after %s", name, firstArg(args), ErrTimeout, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Name: name, Args: args, Code: res.ExitCode, Stderr: res.Stderr}
		}
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}

// Output runs the command and returns trimmed stdout.
func (e *Exec) Output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := e.Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// quoteArgs makes multi-word arguments readable in verbose logs.
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if r := []rune(a); len(r) > 80 {
			a = string(r[:77]) + "..."
		}
		if strings.ContainsAny(a, " \t\n") {
			a = fmt.Sprintf("%q", a)
		}
		out[i] = a
	}
	return out
}
