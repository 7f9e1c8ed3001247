// Package git drives the local repository through the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"continuous/internal/shell"
)

// DefaultRemote is the remote iteration branches are pushed to.
const DefaultRemote = "origin"

// Repo is a working copy addressed through the git binary.
type Repo struct {
	run    *shell.Exec
	remote string
}

// New returns a Repo that runs git in dir.
func New(dir string, opts ...shell.Option) *Repo {
	return &Repo{run: shell.New(dir, opts...), remote: DefaultRemote}
}

// Dir returns the working directory.
func (r *Repo) Dir() string {
	return r.run.Dir
}

func (r *Repo) git(ctx context.Context, op string, args ...string) (string, error) {
	out, err := r.run.Output(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "current branch", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if out == "" || out == "HEAD" {
		return "", fmt.Errorf("current branch: detached HEAD")
	}
	return out, nil
}

// CreateBranch creates name from the current HEAD and switches to it.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	_, err := r.git(ctx, "create branch "+name, "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "checkout "+branch, "checkout", branch)
	return err
}

// DiscardChanges resets tracked files to HEAD and removes untracked files
// and directories. Ignored files are kept.
func (r *Repo) DiscardChanges(ctx context.Context) error {
	if _, err := r.git(ctx, "discard changes", "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	_, err := r.git(ctx, "discard changes", "clean", "-fd")
	return err
}

// Push publishes branch to the remote and sets its upstream.
func (r *Repo) Push(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "push "+branch, "push", "-u", r.remote, branch)
	return err
}

// Pull fast-forwards branch from the remote.
func (r *Repo) Pull(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "pull "+branch, "pull", "--ff-only", r.remote, branch)
	return err
}

// DeleteBranch removes a local branch. force uses -D so unmerged work is
// discarded, and a branch that does not exist counts as deleted.
func (r *Repo) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.git(ctx, "delete branch "+name, "branch", flag, name)
	if err != nil && force && branchNotFound(err) {
		return nil
	}
	return err
}

func branchNotFound(err error) bool {
	var ee *shell.ExitError
	return errors.As(err, &ee) && strings.Contains(ee.Stderr, "not found")
}

// DeleteRemoteBranch removes branch from the remote.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "delete remote branch "+branch, "push", r.remote, "--delete", branch)
	return err
}

// Status returns `git status --porcelain`; empty means a clean tree.
func (r *Repo) Status(ctx context.Context) (string, error) {
	return r.git(ctx, "status", "status", "--porcelain")
}

// LastCommitMessage returns the full message of HEAD.
func (r *Repo) LastCommitMessage(ctx context.Context) (string, error) {
	res, err := r.run.Run(ctx, "git", "log", "-1", "--format=%B")
	if err != nil {
		return "", fmt.Errorf("last commit message: %w", err)
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// RemoteURL returns the fetch URL of the configured remote.
func (r *Repo) RemoteURL(ctx context.Context) (string, error) {
	return r.git(ctx, "remote url", "remote", "get-url", r.remote)
}
