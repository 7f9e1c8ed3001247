package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"continuous/internal/jsonutil"
	"continuous/internal/shell"
)

// Client runs gh pull request commands against one repository.
type Client struct {
	repo Repository
	run  *shell.Exec
}

// NewClient returns a Client for repo that runs gh in dir.
func NewClient(repo Repository, dir string, opts ...shell.Option) *Client {
	return &Client{repo: repo, run: shell.New(dir, opts...)}
}

// Repository returns the repository the client targets.
func (c *Client) Repository() Repository {
	return c.repo
}

func (c *Client) gh(ctx context.Context, args ...string) (string, error) {
	args = append(args, "--repo", c.repo.String())
	return c.run.Output(ctx, "gh", args...)
}

// CreatePullRequest opens a pull request from head into base and returns gh's
// confirmation output.
func (c *Client) CreatePullRequest(ctx context.Context, head, base, title, body string) (string, error) {
	args := []string{"pr", "create", "--head", head, "--title", title, "--body", body}
	if base != "" {
		args = append(args, "--base", base)
	}
	out, err := c.gh(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("create pull request for %s: %w", head, err)
	}
	return out, nil
}

// ViewPullRequest fetches state, review decision and checks.
func (c *Client) ViewPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	out, err := c.gh(ctx, "pr", "view", strconv.Itoa(number), "--json", viewFields)
	if err != nil {
		return nil, fmt.Errorf("view pull request #%d: %w", number, err)
	}
	return DecodePullRequest([]byte(out))
}

// DecodePullRequest parses `gh pr view --json` output.
func DecodePullRequest(data []byte) (*PullRequest, error) {
	var pr PullRequest
	if err := jsonutil.UnmarshalWithContext(data, &pr, "decode pull request"); err != nil {
		return nil, err
	}
	return &pr, nil
}

// MergePullRequest merges the pull request with the given mode.
func (c *Client) MergePullRequest(ctx context.Context, number int, mode MergeMode) error {
	if _, err := c.gh(ctx, "pr", "merge", strconv.Itoa(number), mode.Flag()); err != nil {
		return fmt.Errorf("merge pull request #%d: %w", number, err)
	}
	return nil
}

// ClosePullRequest closes the pull request, removing its remote branch in the
// same call when deleteBranch is set.
func (c *Client) ClosePullRequest(ctx context.Context, number int, deleteBranch bool) error {
	args := []string{"pr", "close", strconv.Itoa(number)}
	if deleteBranch {
		args = append(args, "--delete-branch")
	}
	if _, err := c.gh(ctx, args...); err != nil {
		return fmt.Errorf("close pull request #%d: %w", number, err)
	}
	return nil
}

// CheckAuth verifies gh is logged in.
func (c *Client) CheckAuth(ctx context.Context) error {
	if _, err := c.run.Output(ctx, "gh", "auth", "status"); err != nil {
		msg := err.Error()
		if i := strings.Index(msg, "\n"); i > 0 {
			msg = msg[:i]
		}
		return fmt.Errorf("gh auth: %s", msg)
	}
	return nil
}
