package loop

import (
	"context"
	"fmt"
	"strings"

	"continuous/internal/agent"
	"continuous/internal/notes"
)

// Controller runs one iteration: branch, agent, parse, commit, submit, with
// cleanup on any failure.
type Controller struct {
	cfg  Config
	deps Deps
	prs  *PRManager
	log  logger

	// base is resolved by the first iteration and reused by every later one.
	base string
}

// NewController wires a Controller. cfg is completed with defaults.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	log := newLogger(cfg.Output, cfg.Verbose)
	poller := newPoller(deps.Host, cfg.PollInterval, cfg.PollTimeout, log)
	return &Controller{
		cfg:  cfg,
		deps: deps,
		prs:  newPRManager(deps.VCS, deps.Host, poller, cfg.MergeMode, log),
		log:  log,
	}, nil
}

// iteration is the per-run scratch state.
type iteration struct {
	res IterationResult
}

func (c *Controller) enter(it *iteration, phase Phase, detail string) {
	it.res.Phase = phase
	c.cfg.Observer.OnPhase(it.res.Ordinal, phase, detail)
}

// Run executes iteration ordinal against s. Every exit updates the session's
// success or failure counters; failures always pass through cleanup.
func (c *Controller) Run(ctx context.Context, s *Session, ordinal int) IterationResult {
	start := c.cfg.Now()
	it := &iteration{res: IterationResult{Ordinal: ordinal}}
	c.cfg.Observer.OnIterationStart(ordinal)

	err := c.run(ctx, s, it)
	if err != nil {
		it.res.Outcome = OutcomeFailed
		it.res.Err = err
		c.log.fail("Iteration %d failed during %s: %v", ordinal, it.res.Phase, err)
		c.cleanup(ctx, it)
		s.RecordFailure()
	} else {
		it.res.Outcome = OutcomeMerged
		it.res.Phase = PhaseDone
		s.RecordSuccess()
	}

	it.res.Duration = c.cfg.Now().Sub(start)
	c.cfg.Observer.OnIterationEnd(it.res)
	return it.res
}

func (c *Controller) run(ctx context.Context, s *Session, it *iteration) error {
	// BRANCH_CREATE
	c.enter(it, PhaseBranch, "")
	base := c.baseBranch(ctx)
	it.res.Base = base
	branch := BranchName(c.cfg.BranchPrefix, it.res.Ordinal, c.cfg.Now(), c.cfg.NewToken())
	// Set before creating: a failed or killed create may still leave the ref.
	it.res.Branch = branch
	c.log.step("Creating branch %s from %s", c.log.styles.Branch.Render(branch), base)
	if err := c.deps.VCS.CreateBranch(ctx, branch); err != nil {
		return err
	}

	// AGENT_INVOKE
	c.enter(it, PhaseAgent, branch)
	prompt, err := c.composePrompt()
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}
	c.log.step("Running agent")
	result, err := c.deps.Agent.Invoke(ctx, prompt, agent.ModeWork)
	if err != nil {
		return err
	}
	if !result.OK() {
		return agentFailure(result)
	}

	// RESULT_PARSE
	c.enter(it, PhaseParse, "")
	report, err := agent.Decode(result.Stdout)
	if err != nil {
		return fmt.Errorf("parse agent output: %w", err)
	}
	it.res.Summary = report.Summary
	it.res.Cost = report.Cost
	s.AddCost(report.Cost)
	c.log.ok("Agent finished in %s: %s", FormatDuration(result.Duration), excerpt(report.Summary, 200))
	c.log.step("Cost %s (total %s)", c.log.styles.Cost.Render(FormatCost(report.Cost)), FormatCost(s.TotalCost))
	if report.IsError {
		c.log.warn("Agent reported an error result")
	}
	if s.ObserveSummary(report.Summary, c.cfg.CompletionSignal) {
		it.res.CompletionSeen = true
		c.log.ok("Completion signal detected (%s)", c.completionProgress(s))
	} else if s.Limits.CompletionThreshold > 0 {
		c.log.debug("completion signal not present; streak reset")
	}

	// COMMIT
	c.enter(it, PhaseCommit, "")
	c.log.step("Committing changes")
	commit, err := c.deps.Agent.Invoke(ctx, commitPrompt, agent.ModeCommit)
	if err != nil {
		return err
	}
	if !commit.OK() {
		return agentFailure(commit)
	}
	if rep, err := agent.Decode(commit.Stdout); err == nil {
		it.res.Cost += rep.Cost
		s.AddCost(rep.Cost)
	}
	status, err := c.deps.VCS.Status(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(status) != "" {
		c.log.debug("residual changes:\n%s", status)
		return ErrResidualChanges
	}

	// PR_SUBMIT
	number, err := c.prs.Submit(ctx, branch, base, func(p Phase, detail string) {
		c.enter(it, p, detail)
	})
	it.res.PullRequest = number
	return err
}

// baseBranch returns the branch iterations start from and merge into. It is
// read once from the working copy; later iterations reuse it even if a
// previous cleanup left another branch checked out.
func (c *Controller) baseBranch(ctx context.Context) string {
	if c.base != "" {
		return c.base
	}
	base, err := c.deps.VCS.CurrentBranch(ctx)
	if err != nil {
		c.log.warn("Could not read current branch, assuming %s: %v", c.cfg.DefaultBase, err)
		base = c.cfg.DefaultBase
	}
	c.base = base
	return base
}

func (c *Controller) composePrompt() (string, error) {
	data := PromptData{
		Task:             c.cfg.Task,
		CompletionSignal: c.cfg.CompletionSignal,
		NotesPath:        c.cfg.NotesPath,
	}
	if c.deps.Notes.Exists(c.cfg.NotesPath) {
		content, err := c.deps.Notes.Read(c.cfg.NotesPath)
		if err != nil {
			c.log.warn("Could not read %s, treating as absent: %v", c.cfg.NotesPath, err)
		} else {
			data.HasNotes = true
			data.Notes = content
			c.log.debug("notes: %s", notes.Summary(content))
		}
	}
	return RenderPrompt(data)
}

func (c *Controller) completionProgress(s *Session) string {
	if s.Limits.CompletionThreshold > 0 {
		return fmt.Sprintf("%d/%d", s.CompletionStreak, s.Limits.CompletionThreshold)
	}
	return fmt.Sprintf("%d", s.CompletionStreak)
}

// cleanup discards uncommitted work, returns to the base branch and
// force-deletes the iteration branch whether or not it was created. Every
// step is best effort.
func (c *Controller) cleanup(ctx context.Context, it *iteration) {
	failed := it.res.Phase
	c.cfg.Observer.OnPhase(it.res.Ordinal, PhaseCleanup, it.res.Branch)
	base := it.res.Base
	if base == "" {
		base = c.cfg.DefaultBase
	}
	if err := c.deps.VCS.DiscardChanges(ctx); err != nil {
		c.log.warn("Cleanup: could not discard uncommitted changes: %v", err)
	}
	if err := c.deps.VCS.Checkout(ctx, base); err != nil {
		c.log.warn("Cleanup: could not switch to %s: %v", base, err)
	}
	if it.res.Branch != "" {
		if err := c.deps.VCS.DeleteBranch(ctx, it.res.Branch, true); err != nil {
			c.log.warn("Cleanup: could not delete %s: %v", it.res.Branch, err)
		} else {
			c.log.step("Deleted branch %s", it.res.Branch)
		}
	}
	it.res.Phase = failed
}

func agentFailure(r *agent.Result) error {
	if r.TimedOut {
		return fmt.Errorf("%w: timed out after %s", ErrAgentFailed, FormatDuration(r.Duration))
	}
	msg := excerpt(r.Stderr, 200)
	if msg == "" {
		msg = excerpt(r.Stdout, 200)
	}
	if msg == "" {
		return fmt.Errorf("%w: exit code %d", ErrAgentFailed, r.ExitCode)
	}
	return fmt.Errorf("%w: exit code %d: %s", ErrAgentFailed, r.ExitCode, msg)
}
