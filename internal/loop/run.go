package loop

import (
	"context"
	"fmt"
	"time"
)

// Runner drives iterations until a cap is reached, the failure breaker trips
// or ctx is cancelled.
type Runner struct {
	cfg  Config
	ctrl *Controller
	log  logger
}

// New wires a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if cfg.Task == "" {
		return nil, fmt.Errorf("loop: task prompt is required")
	}
	ctrl, err := NewController(cfg, deps)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: ctrl.cfg, ctrl: ctrl, log: ctrl.log}, nil
}

// Run executes the loop. Cancellation is honoured only between iterations: a
// started iteration always runs to merge or cleanup. The returned error is
// non-nil only when the consecutive failure limit trips.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	now := r.cfg.Now
	session := NewSession(r.cfg.Limits, now())
	r.cfg.Observer.OnLoopStart(r.cfg.Task, r.cfg.Limits)
	r.logStart()

	var (
		reason StopReason
		runErr error
	)
	for {
		if ctx.Err() != nil {
			reason = StopContextCancelled
			break
		}
		if d := Evaluate(*session, now()); d.Stop {
			reason = d.Reason
			break
		}
		if session.Attempts > 0 && !r.pause(ctx) {
			reason = StopContextCancelled
			break
		}

		session.Attempts++
		ordinal := session.Attempts
		r.log.header("Iteration %s", formatIteration(ordinal, r.cfg.Limits.MaxRuns))

		res := r.ctrl.Run(context.WithoutCancel(ctx), session, ordinal)
		if res.Outcome == OutcomeMerged {
			r.log.ok("Iteration %d merged PR #%d in %s", ordinal, res.PullRequest, FormatDuration(res.Duration))
			continue
		}
		if session.ConsecutiveFailures >= r.cfg.ConsecutiveFailureLimit {
			reason = StopConsecutiveFailures
			runErr = fmt.Errorf("%w: %d in a row, last: %v", ErrTooManyFailures, session.ConsecutiveFailures, res.Err)
			r.log.fail("%d consecutive failures, stopping", session.ConsecutiveFailures)
			break
		}
	}

	summary := &Summary{
		Attempts:   session.Attempts,
		Succeeded:  session.Succeeded,
		Failed:     session.Failed,
		TotalCost:  session.TotalCost,
		StopReason: reason,
		Duration:   session.Elapsed(now()),
	}
	writef(r.log.out, "\n%s\n", formatSummary(summary))
	r.cfg.Observer.OnLoopEnd(summary)
	return summary, runErr
}

// pause waits between iterations and reports false if ctx ended first.
func (r *Runner) pause(ctx context.Context) bool {
	if r.cfg.Pause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(r.cfg.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) logStart() {
	l := r.cfg.Limits
	r.log.header("Starting continuous loop")
	r.log.step("Task: %s", excerpt(r.cfg.Task, 120))
	if l.MaxRuns > 0 {
		r.log.step("Max runs: %d", l.MaxRuns)
	}
	if l.MaxCost > 0 {
		r.log.step("Max cost: %s", FormatCost(l.MaxCost))
	}
	if l.MaxDuration > 0 {
		r.log.step("Max duration: %s", FormatDuration(l.MaxDuration))
	}
	if l.CompletionThreshold > 0 {
		r.log.step("Completion: %q seen %d time(s) in a row", r.cfg.CompletionSignal, l.CompletionThreshold)
	}
	r.log.step("Merge strategy: %s", r.cfg.MergeMode)
}
