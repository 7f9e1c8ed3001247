// Command continuous runs a code-generation agent in a loop, landing each
// iteration's work through a pull request that must pass CI before merge.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"continuous/internal/config"

	"github.com/spf13/cobra"
)

// options holds raw flag values. Only flags the user set are copied into the
// loaded config, so files and environment still apply underneath.
type options struct {
	configPath string

	prompt              string
	maxRuns             int
	maxCost             float64
	maxDuration         string
	owner               string
	repo                string
	mergeStrategy       string
	notesFile           string
	completionSignal    string
	completionThreshold int
	statusFile          string
	dryRun              bool
	verbose             bool
	tui                 bool

	agentCommand   string
	model          string
	agentTimeout   string
	commandTimeout string
	pollTimeout    string
	pollInterval   string
}

// exitError carries a process exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// runFunc executes the loop for a loaded, validated config.
type runFunc func(ctx context.Context, cfg *config.Config) error

func newRootCmd(stdout, stderr io.Writer, runLoop runFunc) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "continuous",
		Short: "Run an agent in a loop, merging each iteration through a checked pull request",
		Long: `continuous drives the claude CLI through repeated work cycles.

Each iteration creates a branch, runs the agent with the task prompt, has the
agent commit its changes, opens a pull request with gh, waits for checks and
merges on success. Failed iterations close the pull request and remove the
branch.

The loop stops when a cap is reached (--max-runs, --max-cost,
--max-duration), when the agent reports the completion signal
--completion-threshold times in a row, or after 3 consecutive failures.

Configuration is read from ~/.config/continuous/config.yaml, then
.continuous.yaml (or --config / CONTINUOUS_CONFIG), then CONTINUOUS_*
environment variables, then flags.`,
		Example: `  continuous -p "Increase test coverage" -m 5
  continuous -p "Fix lint warnings" --max-cost 10 --merge-strategy rebase
  continuous -p "Port the CLI to cobra" --max-duration 2h --tui
  continuous -p "Refactor" --dry-run -m 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, func(c *config.Config) {
				opts.apply(cmd, c)
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if err := cfg.Validate(); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("invalid configuration:\n%w", err)}
			}
			return runLoop(cmd.Context(), cfg)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a project config file")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "task for the agent (required)")
	f.IntVarP(&opts.maxRuns, "max-runs", "m", 0, "stop after N merged iterations (0 = unlimited)")
	f.Float64Var(&opts.maxCost, "max-cost", 0, "stop once cumulative agent cost reaches this many USD (0 = unlimited)")
	f.StringVar(&opts.maxDuration, "max-duration", "", "stop after this much wall-clock time, e.g. 2h, 30m, 90s")
	f.StringVar(&opts.owner, "owner", "", "GitHub repository owner (detected from origin when unset)")
	f.StringVar(&opts.repo, "repo", "", "GitHub repository name (detected from origin when unset)")
	f.StringVar(&opts.mergeStrategy, "merge-strategy", config.DefaultMergeStrategy, "pull request merge strategy: squash, merge or rebase")
	f.StringVar(&opts.notesFile, "notes-file", config.DefaultNotesFile, "shared notes file carried between iterations")
	f.StringVar(&opts.completionSignal, "completion-signal", config.DefaultCompletionSignal, "phrase the agent prints when the whole project is done")
	f.IntVar(&opts.completionThreshold, "completion-threshold", config.DefaultCompletionThreshold, "consecutive completion signals needed to stop (0 = ignore)")
	f.StringVar(&opts.statusFile, "status-file", "", "write a JSON status snapshot to this path on every event")
	f.BoolVar(&opts.dryRun, "dry-run", false, "log intended actions without running git, gh or the agent (1 iteration unless capped)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "echo every external command")
	f.BoolVar(&opts.tui, "tui", false, "show a live terminal view")
	f.StringVar(&opts.agentCommand, "agent-command", config.DefaultAgentCommand, "agent executable")
	f.StringVar(&opts.model, "model", "", "model passed to the agent")
	f.StringVar(&opts.agentTimeout, "agent-timeout", "10m", "per-invocation agent timeout")
	f.StringVar(&opts.commandTimeout, "command-timeout", "30s", "timeout for each git and gh command")
	f.StringVar(&opts.pollTimeout, "poll-timeout", "30m", "how long to wait for pull request checks")
	f.StringVar(&opts.pollInterval, "poll-interval", "10s", "delay between pull request check queries")

	return cmd
}

// apply copies flags the user set onto cfg.
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	setStr := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}

	setStr("prompt", &cfg.Prompt, o.prompt)
	if changed("max-runs") {
		cfg.MaxRuns = o.maxRuns
	}
	if changed("max-cost") {
		cfg.MaxCost = o.maxCost
	}
	setStr("max-duration", &cfg.MaxDuration, o.maxDuration)
	setStr("owner", &cfg.Owner, o.owner)
	setStr("repo", &cfg.Repo, o.repo)
	setStr("merge-strategy", &cfg.MergeStrategy, o.mergeStrategy)
	setStr("notes-file", &cfg.NotesFile, o.notesFile)
	setStr("completion-signal", &cfg.CompletionSignal, o.completionSignal)
	if changed("completion-threshold") {
		cfg.CompletionThreshold = o.completionThreshold
	}
	setStr("status-file", &cfg.StatusFile, o.statusFile)
	if changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if changed("tui") {
		cfg.TUI = o.tui
	}
	setStr("agent-command", &cfg.Agent.Command, o.agentCommand)
	setStr("model", &cfg.Agent.Model, o.model)
	setStr("agent-timeout", &cfg.Timeouts.Agent, o.agentTimeout)
	setStr("command-timeout", &cfg.Timeouts.Command, o.commandTimeout)
	setStr("poll-timeout", &cfg.Timeouts.Poll, o.pollTimeout)
	setStr("poll-interval", &cfg.Timeouts.PollInterval, o.pollInterval)
}

// execute runs the root command with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer, runLoop runFunc) int {
	cmd := newRootCmd(stdout, stderr, runLoop)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "continuous: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "continuous: %v\n", err)
	return 1
}

func main() {
	env := newEnvironment(os.Stdout, os.Stderr)
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context, cfg *config.Config) error {
		return run(ctx, cfg, env)
	}))
}
