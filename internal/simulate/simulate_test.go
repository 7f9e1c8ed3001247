package simulate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"continuous/internal/agent"
	"continuous/internal/github"
	"continuous/internal/loop"
	"continuous/internal/notes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ loop.VersionControl = (*VCS)(nil)
	_ loop.CodeHost       = (*Host)(nil)
	_ loop.Agent          = (*Agent)(nil)
)

func TestAgent_ReportsZeroCostSuccess(t *testing.T) {
	rec := NewRecorder(nil)
	a := NewAgent(rec, agent.New(t.TempDir(), nil))

	res, err := a.Invoke(context.Background(), "do things\nacross lines", agent.ModeCommit)
	require.NoError(t, err)
	require.True(t, res.OK())

	report, err := agent.Decode(res.Stdout)
	require.NoError(t, err)
	assert.Equal(t, Summary, report.Summary)
	assert.Zero(t, report.Cost)

	assert.Equal(t, []string{
		"claude -p <prompt: 22 bytes> --output-format json --allowedTools Bash(git:*)",
	}, rec.Actions())
}

func TestAgent_WithoutRealArgs(t *testing.T) {
	rec := NewRecorder(nil)
	_, err := NewAgent(rec, nil).Invoke(context.Background(), "x", agent.ModeWork)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude (work mode)"}, rec.Actions())
}

func TestDescribeArgs(t *testing.T) {
	assert.Equal(t, `--model "big model" -p <prompt: 3 bytes>`, describeArgs([]string{"--model", "big model", "-p", "abc"}))
}

func TestHost_NumbersPullRequests(t *testing.T) {
	rec := NewRecorder(nil)
	h := NewHost(rec, github.Repository{Owner: "acme", Name: "widgets"})

	out, err := h.CreatePullRequest(context.Background(), "feature", "main", "Title", "Body")
	require.NoError(t, err)
	n, err := github.ParseNumber(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, _ = h.CreatePullRequest(context.Background(), "feature-2", "main", "Title", "Body")
	assert.Equal(t, "https://github.com/acme/widgets/pull/2", out)

	pr, err := h.ViewPullRequest(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, loop.ChecksPassed, loop.Classify(pr).Status)

	require.NoError(t, h.MergePullRequest(context.Background(), 2, github.MergeRebase))
	require.NoError(t, h.ClosePullRequest(context.Background(), 1, true))
	assert.Equal(t, []string{
		`gh pr create --head feature --base main --title "Title"`,
		`gh pr create --head feature-2 --base main --title "Title"`,
		"gh pr merge 2 --rebase",
		"gh pr close 1 --delete-branch",
	}, rec.Actions())
}

func TestVCS_TracksCurrentBranch(t *testing.T) {
	ctx := context.Background()
	v := NewVCS(NewRecorder(nil), "main")

	require.NoError(t, v.CreateBranch(ctx, "work"))
	cur, _ := v.CurrentBranch(ctx)
	assert.Equal(t, "work", cur)

	require.NoError(t, v.Checkout(ctx, "main"))
	cur, _ = v.CurrentBranch(ctx)
	assert.Equal(t, "main", cur)

	status, _ := v.Status(ctx)
	assert.Empty(t, status)
}

func TestVCS_DiscardChangesIsRecorded(t *testing.T) {
	rec := NewRecorder(nil)
	v := NewVCS(rec, "main")

	require.NoError(t, v.DiscardChanges(context.Background()))
	assert.Equal(t, []string{"git reset --hard HEAD", "git clean -fd"}, rec.Actions())
}

func TestDryRunLoop(t *testing.T) {
	var out bytes.Buffer
	rec := NewRecorder(&out)
	deps := loop.Deps{
		VCS:   NewVCS(rec, "main"),
		Host:  NewHost(rec, github.Repository{Owner: "acme", Name: "widgets"}),
		Agent: NewAgent(rec, nil),
		Notes: notes.NewStore(t.TempDir()),
	}
	r, err := loop.New(loop.Config{
		Task:         "Write docs",
		Limits:       loop.Limits{MaxRuns: 2},
		PollInterval: time.Millisecond,
		PollTimeout:  10 * time.Millisecond,
		Pause:        -1,
		Output:       &out,
	}, deps)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loop.StopMaxRuns, summary.StopReason)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.TotalCost)

	assert.Contains(t, out.String(), "[dry-run] gh pr merge 2 --squash")
	assert.Contains(t, rec.Actions(), "git pull --ff-only origin main")
}
