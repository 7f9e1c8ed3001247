// Package simulate provides stand-ins for git, gh and the agent that print
// what would have run instead of running it. The loop uses them for
// --dry-run.
package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"continuous/internal/agent"
	"continuous/internal/github"
)

// Summary is the result text every simulated agent run reports.
const Summary = "Dry run: no changes were made."

// CommitMessage is what the simulated repository reports as the last commit.
const CommitMessage = "Dry-run iteration\n\n\nNo commands were executed; this pull request is simulated."

// Recorder collects simulated actions and echoes each one to out.
type Recorder struct {
	out io.Writer

	mu      sync.Mutex
	actions []string
}

// NewRecorder returns a Recorder writing to out (nil discards).
func NewRecorder(out io.Writer) *Recorder {
	if out == nil {
		out = io.Discard
	}
	return &Recorder{out: out}
}

func (r *Recorder) record(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, line)
	_, _ = fmt.Fprintf(r.out, "  [dry-run] %s\n", line)
}

// Actions returns every recorded action in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

// VCS simulates a git working copy.
type VCS struct {
	rec *Recorder

	mu      sync.Mutex
	current string
}

// NewVCS returns a VCS checked out on base.
func NewVCS(rec *Recorder, base string) *VCS {
	return &VCS{rec: rec, current: base}
}

func (v *VCS) CurrentBranch(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, nil
}

func (v *VCS) CreateBranch(ctx context.Context, name string) error {
	v.rec.record("git checkout -b %s", name)
	v.mu.Lock()
	v.current = name
	v.mu.Unlock()
	return nil
}

func (v *VCS) Checkout(ctx context.Context, branch string) error {
	v.rec.record("git checkout %s", branch)
	v.mu.Lock()
	v.current = branch
	v.mu.Unlock()
	return nil
}

func (v *VCS) DiscardChanges(ctx context.Context) error {
	v.rec.record("git reset --hard HEAD")
	v.rec.record("git clean -fd")
	return nil
}

func (v *VCS) Push(ctx context.Context, branch string) error {
	v.rec.record("git push -u origin %s", branch)
	return nil
}

func (v *VCS) Pull(ctx context.Context, branch string) error {
	v.rec.record("git pull --ff-only origin %s", branch)
	return nil
}

func (v *VCS) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	v.rec.record("git branch %s %s", flag, name)
	return nil
}

func (v *VCS) DeleteRemoteBranch(ctx context.Context, branch string) error {
	v.rec.record("git push origin --delete %s", branch)
	return nil
}

// Status always reports a clean tree.
func (v *VCS) Status(ctx context.Context) (string, error) {
	return "", nil
}

func (v *VCS) LastCommitMessage(ctx context.Context) (string, error) {
	return CommitMessage, nil
}

// Host simulates GitHub. Pull requests open with no checks, so they pass on
// the first poll.
type Host struct {
	rec  *Recorder
	repo github.Repository

	mu   sync.Mutex
	next int
}

// NewHost returns a Host for repo.
func NewHost(rec *Recorder, repo github.Repository) *Host {
	return &Host{rec: rec, repo: repo}
}

func (h *Host) CreatePullRequest(ctx context.Context, head, base, title, body string) (string, error) {
	h.mu.Lock()
	h.next++
	n := h.next
	h.mu.Unlock()
	h.rec.record("gh pr create --head %s --base %s --title %q", head, base, title)
	return fmt.Sprintf("https://github.com/%s/pull/%d", h.repo, n), nil
}

func (h *Host) ViewPullRequest(ctx context.Context, number int) (*github.PullRequest, error) {
	return &github.PullRequest{Number: number, State: github.StateOpen}, nil
}

func (h *Host) MergePullRequest(ctx context.Context, number int, mode github.MergeMode) error {
	h.rec.record("gh pr merge %d %s", number, mode.Flag())
	return nil
}

func (h *Host) ClosePullRequest(ctx context.Context, number int, deleteBranch bool) error {
	if deleteBranch {
		h.rec.record("gh pr close %d --delete-branch", number)
	} else {
		h.rec.record("gh pr close %d", number)
	}
	return nil
}

// Agent simulates the claude CLI with a zero-cost success result.
type Agent struct {
	rec  *Recorder
	args func(prompt string, mode agent.Mode) []string
}

// NewAgent returns an Agent. When real is non-nil its command line is shown
// for each invocation.
func NewAgent(rec *Recorder, real *agent.Claude) *Agent {
	a := &Agent{rec: rec}
	if real != nil {
		a.args = real.Args
	}
	return a
}

func (a *Agent) Invoke(ctx context.Context, prompt string, mode agent.Mode) (*agent.Result, error) {
	if a.args != nil {
		a.rec.record("%s %s", agent.DefaultBinary, describeArgs(a.args(prompt, mode)))
	} else {
		a.rec.record("%s (%s mode)", agent.DefaultBinary, mode)
	}
	out, err := json.Marshal(agent.Message{
		Type:      "result",
		Subtype:   "success",
		Result:    Summary,
		TotalCost: json.RawMessage("0"),
	})
	if err != nil {
		return nil, err
	}
	return &agent.Result{Stdout: string(out), Duration: time.Millisecond}, nil
}

// describeArgs elides the prompt, which is usually several hundred lines.
func describeArgs(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch {
		case i > 0 && args[i-1] == "-p":
			parts[i] = fmt.Sprintf("<prompt: %d bytes>", len(a))
		case strings.ContainsAny(a, " \t\n"):
			parts[i] = fmt.Sprintf("%q", a)
		default:
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
