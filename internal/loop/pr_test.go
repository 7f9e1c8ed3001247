package loop

import (
	"bytes"
	"context"
	"testing"
	"time"

	"continuous/internal/github"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPRManager(h *harness, mode github.MergeMode) *PRManager {
	log := newLogger(h.out, false)
	poller := newPoller(h.host, time.Millisecond, 30*time.Millisecond, log)
	return newPRManager(h.vcs, h.host, poller, mode, log)
}

func TestPRManager_Submit(t *testing.T) {
	h := newHarness()
	h.vcs.current = "feature"
	h.vcs.branches["feature"] = true
	m := newTestPRManager(h, github.MergeRebase)

	var phases []Phase
	n, err := m.Submit(context.Background(), "feature", "main", func(p Phase, _ string) {
		phases = append(phases, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []Phase{PhasePush, PhaseOpen, PhasePoll, PhaseMerge}, phases)
	assert.Equal(t, []string{
		`create feature->main "Add feature"`,
		"view 1",
		"merge 1 rebase",
	}, h.host.Calls())
	assert.Equal(t, "main", h.vcs.current)
	assert.Empty(t, h.vcs.Branches())
}

func TestPRManager_SyncBaseDiscardsBlockingChanges(t *testing.T) {
	h := newHarness()
	h.vcs.current = "feature"
	h.vcs.branches["feature"] = true
	h.vcs.status = " M a.txt"
	h.vcs.dirtyBlocksCheckout = true
	m := newTestPRManager(h, "")

	_, err := m.Submit(context.Background(), "feature", "main", nil)
	require.NoError(t, err)
	calls := h.vcs.Calls()
	assert.Equal(t, []string{
		"checkout main",
		"discard",
		"checkout main",
		"pull main",
		"delete feature force=true",
	}, calls[len(calls)-5:])
	assert.Equal(t, "main", h.vcs.current)
	assert.Empty(t, h.vcs.Branches())
	assert.Contains(t, h.out.String(), "discarding local changes")
}

func TestPRManager_EmptyTitleUsesBranch(t *testing.T) {
	h := newHarness()
	h.vcs.commitMsg = ""
	m := newTestPRManager(h, "")

	_, err := m.Submit(context.Background(), "feature", "main", nil)
	require.NoError(t, err)
	assert.Equal(t, `create feature->main "feature"`, h.host.Calls()[0])
	assert.Equal(t, "merge 1 squash", h.host.Calls()[2])
}

func TestPRManager_PushFailure(t *testing.T) {
	h := newHarness()
	h.vcs.pushErr = errBoom
	m := newTestPRManager(h, "")

	n, err := m.Submit(context.Background(), "feature", "main", nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, n)
	assert.Empty(t, h.host.Calls())
	assert.NotContains(t, h.vcs.Calls(), "delete-remote feature")
}

func TestPRManager_OpenFailureDeletesRemoteBranch(t *testing.T) {
	h := newHarness()
	h.host.createErr = errBoom
	m := newTestPRManager(h, "")

	n, err := m.Submit(context.Background(), "feature", "main", nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, n)
	assert.Contains(t, h.vcs.Calls(), "delete-remote feature")
}

func TestPRManager_MissingNumber(t *testing.T) {
	h := newHarness()
	h.host.createOut = "Warning: 1 uncommitted change"
	m := newTestPRManager(h, "")

	_, err := m.Submit(context.Background(), "feature", "main", nil)
	assert.ErrorIs(t, err, github.ErrNoNumber)
	assert.Contains(t, h.vcs.Calls(), "delete-remote feature")
	assert.Len(t, h.host.Calls(), 1, "no view, merge or close without a number")
}

func TestPRManager_HashNumber(t *testing.T) {
	h := newHarness()
	h.host.createOut = "Created pull request #42"
	m := newTestPRManager(h, "")

	n, err := m.Submit(context.Background(), "feature", "main", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Contains(t, h.host.Calls(), "merge 42 squash")
}

func TestPRManager_RejectedChecksClosePR(t *testing.T) {
	tests := []struct {
		name    string
		pr      *github.PullRequest
		wantErr error
	}{
		{"failed check", failedChecksPR(), ErrChecksFailed},
		{"changes requested", openPR(nil, github.ReviewChangesRequested), ErrChangesRequested},
		{"closed externally", &github.PullRequest{State: github.StateClosed}, ErrChangeRequestClosed},
		{"still pending", openPR([]github.Check{{Name: "build", Status: "IN_PROGRESS"}}, ""), ErrPollTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.host.views = []viewResult{{pr: tt.pr}}
			m := newTestPRManager(h, "")

			n, err := m.Submit(context.Background(), "feature", "main", nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, n)

			calls := h.host.Calls()
			assert.Contains(t, calls, "close 1 delete=true")
			assert.NotContains(t, calls, "merge 1 squash")
			assert.NotContains(t, h.vcs.Calls(), "checkout main", "local cleanup belongs to the caller")
		})
	}
}

func TestPRManager_MergeFailureLeavesPROpen(t *testing.T) {
	h := newHarness()
	h.host.mergeErr = errBoom
	m := newTestPRManager(h, "")

	n, err := m.Submit(context.Background(), "feature", "main", nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, n)
	for _, c := range h.host.Calls() {
		assert.NotContains(t, c, "close")
	}
	assert.Contains(t, h.out.String(), "left open for manual intervention")
}

func TestPRManager_CloseFailureIsLogged(t *testing.T) {
	h := newHarness()
	h.host.views = []viewResult{{pr: failedChecksPR()}}
	h.host.closeErr = errBoom
	m := newTestPRManager(h, "")

	_, err := m.Submit(context.Background(), "feature", "main", nil)
	assert.ErrorIs(t, err, ErrChecksFailed)
	assert.Contains(t, h.out.String(), "Could not close PR #1")
}

func TestPRManager_BodyFromCommitMessage(t *testing.T) {
	h := newHarness()
	var gotBody string
	host := &bodyCapturingHost{fakeHost: h.host, body: &gotBody}
	log := newLogger(&bytes.Buffer{}, false)
	m := newPRManager(h.vcs, host, newPoller(host, time.Millisecond, 10*time.Millisecond, log), "", log)

	_, err := m.Submit(context.Background(), "feature", "main", nil)
	require.NoError(t, err)
	assert.Equal(t, "Detailed description.", gotBody)
}

type bodyCapturingHost struct {
	*fakeHost
	body *string
}

func (b *bodyCapturingHost) CreatePullRequest(ctx context.Context, head, base, title, body string) (string, error) {
	*b.body = body
	return b.fakeHost.CreatePullRequest(ctx, head, base, title, body)
}
