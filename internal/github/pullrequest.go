// Package github talks to GitHub through the gh CLI and models the pull
// request fields the loop needs to decide merge or close.
package github

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pull request states as reported by gh.
const (
	StateOpen   = "OPEN"
	StateClosed = "CLOSED"
	StateMerged = "MERGED"
)

// Review decisions as reported by gh.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewRequired         = "REVIEW_REQUIRED"
)

// viewFields are the JSON fields requested from `gh pr view`.
const viewFields = "number,state,headRefName,title,reviewDecision,statusCheckRollup"

// PullRequest is the subset of `gh pr view --json` the loop consumes.
type PullRequest struct {
	Number         int     `json:"number"`
	State          string  `json:"state"`
	HeadRefName    string  `json:"headRefName"`
	Title          string  `json:"title"`
	ReviewDecision string  `json:"reviewDecision"`
	Checks         []Check `json:"statusCheckRollup"`
}

// IsOpen reports whether the pull request can still be merged.
func (p *PullRequest) IsOpen() bool {
	return strings.EqualFold(p.State, StateOpen)
}

// ChangesRequested reports whether a reviewer blocked the pull request.
func (p *PullRequest) ChangesRequested() bool {
	return normalize(p.ReviewDecision) == "changes_requested"
}

// Check is one entry of statusCheckRollup. GitHub returns two shapes: a
// CheckRun (name, status, conclusion) and a StatusContext (context, state).
type Check struct {
	TypeName   string `json:"__typename"`
	Name       string `json:"name"`
	Context    string `json:"context"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	State      string `json:"state"`
}

// DisplayName returns the check's human-readable name.
func (c Check) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Context != "" {
		return c.Context
	}
	return "(unnamed check)"
}

var pendingStatuses = map[string]bool{
	"pending":     true,
	"queued":      true,
	"in_progress": true,
	"waiting":     true,
	"requested":   true,
	"expected":    true,
}

var failedConclusions = map[string]bool{
	"failure":         true,
	"timed_out":       true,
	"cancelled":       true,
	"error":           true,
	"startup_failure": true,
	"action_required": true,
}

// IsPending reports whether the check has not produced a result yet.
func (c Check) IsPending() bool {
	if c.Status != "" {
		return pendingStatuses[normalize(c.Status)]
	}
	return pendingStatuses[normalize(c.State)]
}

// IsFailed reports whether the check finished unsuccessfully.
func (c Check) IsFailed() bool {
	if c.Conclusion != "" {
		return failedConclusions[normalize(c.Conclusion)]
	}
	return failedConclusions[normalize(c.State)]
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// MergeMode selects how a pull request is merged.
type MergeMode string

const (
	MergeSquash MergeMode = "squash"
	MergeCommit MergeMode = "merge"
	MergeRebase MergeMode = "rebase"
)

// ParseMergeMode maps a user-supplied strategy to a MergeMode. Unknown values
// fall back to squash.
func ParseMergeMode(s string) MergeMode {
	switch MergeMode(strings.ToLower(strings.TrimSpace(s))) {
	case MergeCommit:
		return MergeCommit
	case MergeRebase:
		return MergeRebase
	default:
		return MergeSquash
	}
}

// Flag returns the gh pr merge flag for the mode.
func (m MergeMode) Flag() string {
	return "--" + string(ParseMergeMode(string(m)))
}

// ErrNoNumber is returned when gh's confirmation output carries no pull
// request number.
var ErrNoNumber = errors.New("no pull request number in output")

var (
	hashNumberRE = regexp.MustCompile(`#(\d+)`)
	pullURLRE    = regexp.MustCompile(`/pull/(\d+)`)
)

// ParseNumber extracts the pull request number from `gh pr create` output,
// accepting both "#123" and ".../pull/123".
func ParseNumber(out string) (int, error) {
	for _, re := range []*regexp.Regexp{hashNumberRE, pullURLRE} {
		if m := re.FindStringSubmatch(out); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNoNumber, strings.TrimSpace(out))
}
