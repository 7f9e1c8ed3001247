package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"continuous/internal/agent"
	"continuous/internal/config"
	"continuous/internal/git"
	"continuous/internal/github"
	"continuous/internal/loop"
	"continuous/internal/notes"
	"continuous/internal/shell"
	"continuous/internal/simulate"
	"continuous/internal/trace"
	"continuous/internal/tui"
)

// environment is the process surface run depends on; tests replace parts of
// it.
type environment struct {
	stdout io.Writer
	stderr io.Writer

	getwd    func() (string, error)
	lookPath func(string) (string, error)
	// checkAuth verifies the gh login. Nil skips the check.
	checkAuth func(ctx context.Context, gh *github.Client) error
	// runTUI runs fn behind the live view.
	runTUI func(ctx context.Context, fn tui.LoopFunc) (*loop.Summary, error)
}

func newEnvironment(stdout, stderr io.Writer) *environment {
	return &environment{
		stdout:   stdout,
		stderr:   stderr,
		getwd:    os.Getwd,
		lookPath: exec.LookPath,
		checkAuth: func(ctx context.Context, gh *github.Client) error {
			return gh.CheckAuth(ctx)
		},
		runTUI: func(ctx context.Context, fn tui.LoopFunc) (*loop.Summary, error) {
			return tui.Run(ctx, fn)
		},
	}
}

// preflight verifies the external binaries are installed.
func preflight(env *environment, cfg *config.Config) error {
	var missing []error
	for _, bin := range []string{"git", "gh", cfg.Agent.Command} {
		if _, err := env.lookPath(bin); err != nil {
			missing = append(missing, fmt.Errorf("%s not found on PATH", bin))
		}
	}
	return errors.Join(missing...)
}

// resolveRepository returns the configured repository, or parses the origin
// remote when none is set.
func resolveRepository(ctx context.Context, cfg *config.Config, repo *git.Repo) (github.Repository, error) {
	if cfg.Owner != "" && cfg.Repo != "" {
		return github.Repository{Owner: cfg.Owner, Name: cfg.Repo}, nil
	}
	url, err := repo.RemoteURL(ctx)
	if err != nil {
		return github.Repository{}, fmt.Errorf("detect repository: %w (set --owner and --repo)", err)
	}
	r, err := github.ParseRemote(url)
	if err != nil {
		return github.Repository{}, fmt.Errorf("detect repository: %w (set --owner and --repo)", err)
	}
	return r, nil
}

// buildDeps wires the loop's collaborators. Verbose command echo and
// dry-run actions go to out.
func buildDeps(ctx context.Context, cfg *config.Config, d config.Durations, dir string, repo github.Repository, out io.Writer) loop.Deps {
	cmdOpts := []shell.Option{shell.WithTimeout(d.Command), shell.WithLog(out, cfg.Verbose)}
	agentOpts := []agent.Option{agent.WithBinary(cfg.Agent.Command)}
	if cfg.Agent.Model != "" {
		agentOpts = append(agentOpts, agent.WithModel(cfg.Agent.Model))
	}
	claude := agent.New(dir, agentOpts, shell.WithTimeout(d.Agent), shell.WithLog(out, cfg.Verbose))
	store := notes.NewStore(dir)

	if cfg.DryRun {
		rec := simulate.NewRecorder(out)
		base := loop.DefaultBaseBranch
		if b, err := git.New(dir, cmdOpts...).CurrentBranch(ctx); err == nil && b != "" {
			base = b
		}
		return loop.Deps{
			VCS:   simulate.NewVCS(rec, base),
			Host:  simulate.NewHost(rec, repo),
			Agent: simulate.NewAgent(rec, claude),
			Notes: store,
		}
	}

	return loop.Deps{
		VCS:   git.New(dir, cmdOpts...),
		Host:  github.NewClient(repo, dir, cmdOpts...),
		Agent: claude,
		Notes: store,
	}
}

func loopConfig(cfg *config.Config, d config.Durations) loop.Config {
	return loop.Config{
		Task: cfg.Prompt,
		Limits: loop.Limits{
			MaxRuns:             cfg.MaxRuns,
			MaxCost:             cfg.MaxCost,
			MaxDuration:         d.Max,
			CompletionThreshold: cfg.CompletionThreshold,
		},
		CompletionSignal: cfg.CompletionSignal,
		NotesPath:        cfg.NotesFile,
		MergeMode:        github.ParseMergeMode(cfg.MergeStrategy),
		PollInterval:     d.PollInterval,
		PollTimeout:      d.Poll,
		Verbose:          cfg.Verbose,
	}
}

// run executes the loop for a validated cfg.
func run(ctx context.Context, cfg *config.Config, env *environment) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	durations, err := cfg.ParseDurations()
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	dir, err := env.getwd()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("working directory: %w", err)}
	}
	dir, _ = filepath.Abs(dir)

	// The simulated agent never reports completion and costs nothing, so an
	// uncapped dry run would only stop on Ctrl-C.
	if cfg.DryRun && cfg.MaxRuns == 0 && durations.Max == 0 {
		fmt.Fprintf(env.stderr, "%s dry run without --max-runs or --max-duration; running 1 iteration\n", loop.IconWarning)
		capped := *cfg
		capped.MaxRuns = 1
		cfg = &capped
	}

	if !cfg.DryRun {
		if err := preflight(env, cfg); err != nil {
			return &exitError{code: 1, err: fmt.Errorf("preflight:\n%w", err)}
		}
	}

	cmdOpts := []shell.Option{shell.WithTimeout(durations.Command)}
	repo, err := resolveRepository(ctx, cfg, git.New(dir, cmdOpts...))
	if cfg.DryRun {
		if err != nil {
			fmt.Fprintf(env.stderr, "%s %v; using a placeholder repository\n", loop.IconWarning, err)
			repo = github.Repository{Owner: "dry-run", Name: filepath.Base(dir)}
		}
	} else {
		if err != nil {
			return &exitError{code: 1, err: err}
		}
		if env.checkAuth != nil {
			if err := env.checkAuth(ctx, github.NewClient(repo, dir, cmdOpts...)); err != nil {
				return &exitError{code: 1, err: err}
			}
		}
	}

	var observers []loop.Observer
	if cfg.StatusFile != "" {
		observers = append(observers, loop.NewStatusWriter(cfg.StatusFile))
	}
	tracing, err := trace.NewProvider(ctx)
	if err != nil {
		fmt.Fprintf(env.stderr, "%s tracing disabled: %v\n", loop.IconWarning, err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = tracing.Shutdown(shutdownCtx)
		}()
		if tracing.Enabled() {
			observers = append(observers, trace.NewObserver(tracing))
		}
	}

	runLoop := func(ctx context.Context, obs loop.Observer, out io.Writer) (*loop.Summary, error) {
		lc := loopConfig(cfg, durations)
		lc.Output = out
		lc.Observer = loop.NewMultiObserver(append(observers, obs)...)
		runner, err := loop.New(lc, buildDeps(ctx, cfg, durations, dir, repo, out))
		if err != nil {
			return nil, err
		}
		return runner.Run(ctx)
	}

	fmt.Fprintf(env.stderr, "continuous: %s in %s\n", repo, dir)

	var (
		summary *loop.Summary
		loopErr error
	)
	if cfg.TUI {
		summary, loopErr = env.runTUI(ctx, runLoop)
		if summary != nil {
			fmt.Fprintln(env.stderr, summary.String())
		}
	} else {
		summary, loopErr = runLoop(ctx, nil, env.stderr)
	}

	if summary == nil {
		return &exitError{code: 1, err: loopErr}
	}
	if code := summary.StopReason.ExitCode(); code != 0 {
		return &exitError{code: code, err: loopErr}
	}
	return nil
}
