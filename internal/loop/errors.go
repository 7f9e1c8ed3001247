package loop

import "errors"

var (
	// ErrAgentFailed means the agent exited non-zero or timed out.
	ErrAgentFailed = errors.New("agent failed")
	// ErrResidualChanges means uncommitted changes remained after the commit
	// step.
	ErrResidualChanges = errors.New("uncommitted changes remain after commit")
	// ErrChecksFailed means at least one check on the pull request failed.
	ErrChecksFailed = errors.New("checks failed")
	// ErrChangesRequested means a reviewer requested changes.
	ErrChangesRequested = errors.New("changes requested")
	// ErrChangeRequestClosed means the pull request left the OPEN state while
	// being polled.
	ErrChangeRequestClosed = errors.New("pull request is no longer open")
	// ErrPollTimeout means checks were still pending when the poll budget ran
	// out.
	ErrPollTimeout = errors.New("timed out waiting for checks")
	// ErrTooManyFailures is returned by Run when the consecutive failure limit
	// trips.
	ErrTooManyFailures = errors.New("too many consecutive iteration failures")
)
