package loop

import (
	"context"
	"fmt"

	"continuous/internal/github"
)

// PRManager moves an iteration branch through push, pull request, checks and
// merge, or abandons the pull request when validation fails.
type PRManager struct {
	vcs    VersionControl
	host   CodeHost
	poller *Poller
	mode   github.MergeMode
	log    logger
}

// newPRManager wires a PRManager.
func newPRManager(vcs VersionControl, host CodeHost, poller *Poller, mode github.MergeMode, log logger) *PRManager {
	return &PRManager{vcs: vcs, host: host, poller: poller, mode: github.ParseMergeMode(string(mode)), log: log}
}

// Submit publishes branch and drives its pull request into base. It returns
// the pull request number when one was opened.
//
// On success the local branch is gone and base is checked out. A poll
// failure closes the pull request and deletes the remote branch in one call;
// a merge failure leaves the pull request open. In both cases the local
// branch is left for the caller to clean up. enter, if non-nil, is told about
// each phase as it starts.
func (m *PRManager) Submit(ctx context.Context, branch, base string, enter func(Phase, string)) (int, error) {
	if enter == nil {
		enter = func(Phase, string) {}
	}

	enter(PhasePush, branch)
	msg, err := m.vcs.LastCommitMessage(ctx)
	if err != nil {
		return 0, err
	}
	title, body := SplitCommitMessage(msg)
	if title == "" {
		title = branch
	}

	m.log.step("Pushing %s", m.log.styles.Branch.Render(branch))
	if err := m.vcs.Push(ctx, branch); err != nil {
		m.log.fail("Push failed: %v", err)
		return 0, err
	}

	enter(PhaseOpen, title)
	m.log.step("Opening pull request: %s", title)
	out, err := m.host.CreatePullRequest(ctx, branch, base, title, body)
	if err != nil {
		m.log.fail("Could not open pull request: %v", err)
		m.abandonRemoteBranch(ctx, branch)
		return 0, err
	}
	number, err := github.ParseNumber(out)
	if err != nil {
		m.log.fail("Could not read pull request number: %v", err)
		m.abandonRemoteBranch(ctx, branch)
		return 0, err
	}
	m.log.ok("Opened PR #%d", number)

	enter(PhasePoll, fmt.Sprintf("#%d", number))
	if err := m.poller.Wait(ctx, number); err != nil {
		m.abandon(ctx, number)
		return number, err
	}

	enter(PhaseMerge, fmt.Sprintf("#%d", number))
	m.log.step("Merging PR #%d (%s)", number, m.mode)
	if err := m.host.MergePullRequest(ctx, number, m.mode); err != nil {
		m.log.fail("Merge failed; PR #%d left open for manual intervention: %v", number, err)
		return number, err
	}
	m.log.ok("Merged PR #%d", number)

	m.syncBase(ctx, branch, base)
	return number, nil
}

// abandon closes the pull request and deletes its remote branch.
func (m *PRManager) abandon(ctx context.Context, number int) {
	if err := m.host.ClosePullRequest(ctx, number, true); err != nil {
		m.log.warn("Could not close PR #%d: %v", number, err)
		return
	}
	m.log.step("Closed PR #%d and deleted its remote branch", number)
}

// abandonRemoteBranch removes a pushed branch that never got a pull request.
func (m *PRManager) abandonRemoteBranch(ctx context.Context, branch string) {
	if err := m.vcs.DeleteRemoteBranch(ctx, branch); err != nil {
		m.log.warn("Could not delete remote branch %s: %v", branch, err)
	}
}

// syncBase returns to base after a merge and drops the merged branch. A
// refused checkout is retried once after discarding uncommitted changes.
func (m *PRManager) syncBase(ctx context.Context, branch, base string) {
	if err := m.vcs.Checkout(ctx, base); err != nil {
		m.log.warn("Could not switch back to %s, discarding local changes: %v", base, err)
		if err := m.vcs.DiscardChanges(ctx); err != nil {
			m.log.warn("Could not discard local changes: %v", err)
		}
		if err := m.vcs.Checkout(ctx, base); err != nil {
			m.log.warn("Could not switch back to %s: %v", base, err)
		}
	}
	if err := m.vcs.Pull(ctx, base); err != nil {
		m.log.warn("Could not pull %s: %v", base, err)
	}
	if err := m.vcs.DeleteBranch(ctx, branch, true); err != nil {
		m.log.warn("Could not delete local branch %s: %v", branch, err)
	}
}
