package loop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"continuous/internal/agent"
	"continuous/internal/github"
)

// --- Version control ---

type fakeVCS struct {
	mu       sync.Mutex
	current  string
	branches map[string]bool
	calls    []string

	currentErr  error
	createErr   error
	pushErr     error
	checkoutErr error
	discardErr  error
	deleteErr   error
	status      string
	statusErr   error
	commitMsg   string

	// dirtyBlocksCheckout makes Checkout fail while status is non-empty.
	dirtyBlocksCheckout bool
	// createLeavesRef makes a failing CreateBranch still create the ref, as
	// a killed `git checkout -b` can.
	createLeavesRef bool
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		current:   "main",
		branches:  map[string]bool{"main": true},
		commitMsg: "Add feature\n\n\nDetailed description.",
	}
}

func (f *fakeVCS) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeVCS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeVCS) CurrentBranch(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("current")
	if f.currentErr != nil {
		return "", f.currentErr
	}
	return f.current, nil
}

func (f *fakeVCS) CreateBranch(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create %s", name)
	if f.createErr != nil {
		if f.createLeavesRef {
			f.branches[name] = true
		}
		return f.createErr
	}
	f.branches[name] = true
	f.current = name
	return nil
}

func (f *fakeVCS) Checkout(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("checkout %s", branch)
	if f.checkoutErr != nil {
		return f.checkoutErr
	}
	if f.dirtyBlocksCheckout && f.status != "" {
		return errors.New("local changes would be overwritten by checkout")
	}
	f.current = branch
	return nil
}

func (f *fakeVCS) DiscardChanges(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("discard")
	if f.discardErr != nil {
		return f.discardErr
	}
	f.status = ""
	return nil
}

func (f *fakeVCS) Push(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("push %s", branch)
	return f.pushErr
}

func (f *fakeVCS) Pull(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull %s", branch)
	return nil
}

func (f *fakeVCS) DeleteBranch(ctx context.Context, name string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete %s force=%t", name, force)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.branches, name)
	return nil
}

func (f *fakeVCS) DeleteRemoteBranch(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-remote %s", branch)
	return nil
}

func (f *fakeVCS) Status(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("status")
	return f.status, f.statusErr
}

func (f *fakeVCS) LastCommitMessage(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("log")
	return f.commitMsg, nil
}

// Branches returns local branches other than main.
func (f *fakeVCS) Branches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for b := range f.branches {
		if b != "main" {
			out = append(out, b)
		}
	}
	return out
}

// --- Code host ---

type viewResult struct {
	pr  *github.PullRequest
	err error
}

type fakeHost struct {
	mu     sync.Mutex
	calls  []string
	number int

	createOut string
	createErr error
	views     []viewResult // consumed in order; the last one repeats
	viewCount int
	mergeErr  error
	closeErr  error
}

func newFakeHost() *fakeHost {
	return &fakeHost{views: []viewResult{{pr: openPR(nil, "")}}}
}

func openPR(checks []github.Check, review string) *github.PullRequest {
	return &github.PullRequest{State: github.StateOpen, Checks: checks, ReviewDecision: review}
}

func (f *fakeHost) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeHost) CreatePullRequest(ctx context.Context, head, base, title, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("create %s->%s %q", head, base, title))
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.createOut != "" {
		return f.createOut, nil
	}
	f.number++
	return fmt.Sprintf("https://github.com/acme/widgets/pull/%d", f.number), nil
}

func (f *fakeHost) ViewPullRequest(ctx context.Context, number int) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("view %d", number))
	i := f.viewCount
	if i >= len(f.views) {
		i = len(f.views) - 1
	}
	f.viewCount++
	v := f.views[i]
	if v.pr != nil {
		pr := *v.pr
		pr.Number = number
		return &pr, v.err
	}
	return nil, v.err
}

func (f *fakeHost) MergePullRequest(ctx context.Context, number int, mode github.MergeMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("merge %d %s", number, mode))
	return f.mergeErr
}

func (f *fakeHost) ClosePullRequest(ctx context.Context, number int, deleteBranch bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("close %d delete=%t", number, deleteBranch))
	return f.closeErr
}

// --- Agent ---

type agentReply struct {
	res *agent.Result
	err error
	// before runs when the reply is served, e.g. to advance a clock.
	before func(ctx context.Context)
}

func resultJSON(summary string, cost interface{}) string {
	m := map[string]interface{}{"type": "result", "result": summary}
	if cost != nil {
		m["total_cost_usd"] = cost
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func okReply(summary string, cost float64) agentReply {
	return agentReply{res: &agent.Result{Stdout: resultJSON(summary, cost), Duration: time.Second}}
}

type fakeAgent struct {
	mu      sync.Mutex
	work    []agentReply // consumed in order; the last one repeats
	commit  agentReply
	prompts []string
	modes   []agent.Mode
	workN   int
}

func newFakeAgent(work ...agentReply) *fakeAgent {
	if len(work) == 0 {
		work = []agentReply{okReply("Made progress.", 0.1)}
	}
	return &fakeAgent{work: work, commit: agentReply{res: &agent.Result{Stdout: "committed"}}}
}

func (f *fakeAgent) Invoke(ctx context.Context, prompt string, mode agent.Mode) (*agent.Result, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.modes = append(f.modes, mode)
	var r agentReply
	if mode == agent.ModeCommit {
		r = f.commit
	} else {
		i := f.workN
		if i >= len(f.work) {
			i = len(f.work) - 1
		}
		f.workN++
		r = f.work[i]
	}
	f.mu.Unlock()

	if r.before != nil {
		r.before(ctx)
	}
	return r.res, r.err
}

func (f *fakeAgent) WorkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workN
}

// --- Notes ---

type fakeNotes struct {
	files   map[string]string
	readErr error
}

func (f *fakeNotes) Exists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeNotes) Read(path string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	c, ok := f.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return c, nil
}

// --- Clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Harness ---

type harness struct {
	vcs   *fakeVCS
	host  *fakeHost
	agent *fakeAgent
	notes *fakeNotes
	clock *fakeClock
	out   *bytes.Buffer
}

func newHarness() *harness {
	return &harness{
		vcs:   newFakeVCS(),
		host:  newFakeHost(),
		agent: newFakeAgent(),
		notes: &fakeNotes{files: map[string]string{}},
		clock: newFakeClock(),
		out:   &bytes.Buffer{},
	}
}

func (h *harness) deps() Deps {
	return Deps{VCS: h.vcs, Host: h.host, Agent: h.agent, Notes: h.notes}
}

// config returns a Config with fast polling, no pause and a fixed clock.
func (h *harness) config() Config {
	tokens := 0
	return Config{
		Task:         "Improve test coverage",
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
		Pause:        -1,
		Output:       h.out,
		Now:          h.clock.Now,
		NewToken: func() string {
			tokens++
			return fmt.Sprintf("%08x", tokens)
		},
	}
}

func (h *harness) controller(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg, h.deps())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func (h *harness) runner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := New(cfg, h.deps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

var errBoom = errors.New("boom")
