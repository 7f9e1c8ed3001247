package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"continuous/internal/github"
	"continuous/internal/poll"
)

// CheckStatus is the poller's reading of one pull request snapshot.
type CheckStatus int

const (
	ChecksPending CheckStatus = iota
	ChecksPassed
	ChecksFailed
	ChecksChangesRequested
	ChecksClosed
)

func (s CheckStatus) String() string {
	switch s {
	case ChecksPending:
		return "pending"
	case ChecksPassed:
		return "passed"
	case ChecksFailed:
		return "failed"
	case ChecksChangesRequested:
		return "changes-requested"
	case ChecksClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Status  CheckStatus
	State   string
	Pending []string
	Failed  []string
}

// Classify maps a pull request snapshot to a poll decision. Order matters: a
// non-open state wins, then pending checks, then failed checks, then the
// review decision.
func Classify(pr *github.PullRequest) Classification {
	c := Classification{State: pr.State}
	if !pr.IsOpen() {
		c.Status = ChecksClosed
		return c
	}
	for _, check := range pr.Checks {
		switch {
		case check.IsPending():
			c.Pending = append(c.Pending, check.DisplayName())
		case check.IsFailed():
			c.Failed = append(c.Failed, check.DisplayName())
		}
	}
	switch {
	case len(c.Pending) > 0:
		c.Status = ChecksPending
	case len(c.Failed) > 0:
		c.Status = ChecksFailed
	case pr.ChangesRequested():
		c.Status = ChecksChangesRequested
	default:
		c.Status = ChecksPassed
	}
	return c
}

// Poller waits for a pull request's checks to settle.
type Poller struct {
	host     CodeHost
	interval time.Duration
	timeout  time.Duration
	logEvery int
	log      logger
}

// newPoller returns a Poller; zero durations take the package defaults.
func newPoller(host CodeHost, interval, timeout time.Duration, log logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		host:     host,
		interval: interval,
		timeout:  timeout,
		logEvery: DefaultPendingLogEvery,
		log:      log,
	}
}

// Wait polls pull request number until checks pass (nil), a terminal failure
// is seen (ErrChecksFailed, ErrChangesRequested, ErrChangeRequestClosed) or
// the timeout elapses (ErrPollTimeout). Query errors are retried.
func (p *Poller) Wait(ctx context.Context, number int) error {
	cfg := poll.ForTimeout(p.timeout, p.interval)
	p.log.step("Waiting for checks on PR #%d (every %s, up to %s)", number, p.interval, FormatDuration(p.timeout))

	// Checks register asynchronously after the pull request opens.
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-time.After(p.interval):
	}

	var last Classification
	fetch := func(ctx context.Context) (*github.PullRequest, error) {
		return p.host.ViewPullRequest(ctx, number)
	}
	classify := func(attempt int, pr *github.PullRequest, err error) poll.Verdict {
		if err != nil {
			p.log.warn("Could not read PR #%d (attempt %d/%d): %v", number, attempt, cfg.MaxAttempts, err)
			return poll.Continue
		}
		last = Classify(pr)
		switch last.Status {
		case ChecksPending:
			if attempt%p.logEvery == 0 {
				p.log.step("Still waiting on %d check(s): %s", len(last.Pending), strings.Join(last.Pending, ", "))
			}
			return poll.Continue
		case ChecksPassed:
			return poll.Succeed
		default:
			return poll.Fail
		}
	}

	_, err := poll.Until(ctx, cfg, fetch, classify)
	switch {
	case err == nil:
		p.log.ok("All checks passed on PR #%d", number)
		return nil
	case errors.Is(err, poll.ErrExhausted):
		p.log.timeout("Timed out after %s waiting for checks on PR #%d", FormatDuration(p.timeout), number)
		if len(last.Pending) > 0 {
			return fmt.Errorf("%w on PR #%d: still pending: %s", ErrPollTimeout, number, strings.Join(last.Pending, ", "))
		}
		return fmt.Errorf("%w on PR #%d", ErrPollTimeout, number)
	case errors.Is(err, poll.ErrRejected):
		return p.rejection(number, last)
	default:
		return err
	}
}

func (p *Poller) rejection(number int, c Classification) error {
	switch c.Status {
	case ChecksClosed:
		p.log.fail("PR #%d is %s", number, strings.ToLower(c.State))
		return fmt.Errorf("%w: PR #%d is %s", ErrChangeRequestClosed, number, c.State)
	case ChecksChangesRequested:
		p.log.fail("Changes requested on PR #%d", number)
		return fmt.Errorf("%w on PR #%d", ErrChangesRequested, number)
	default:
		p.log.fail("Checks failed on PR #%d: %s", number, strings.Join(c.Failed, ", "))
		return fmt.Errorf("%w on PR #%d: %s", ErrChecksFailed, number, strings.Join(c.Failed, ", "))
	}
}
