package loop

import (
	"context"

	"continuous/internal/agent"
	"continuous/internal/github"
)

// VersionControl is the local repository the loop branches, commits and
// cleans up in.
type VersionControl interface {
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name string) error
	Checkout(ctx context.Context, branch string) error
	DiscardChanges(ctx context.Context) error
	Push(ctx context.Context, branch string) error
	Pull(ctx context.Context, branch string) error
	DeleteBranch(ctx context.Context, name string, force bool) error
	DeleteRemoteBranch(ctx context.Context, branch string) error
	Status(ctx context.Context) (string, error)
	LastCommitMessage(ctx context.Context) (string, error)
}

// CodeHost hosts the pull requests that gate each iteration's merge.
type CodeHost interface {
	CreatePullRequest(ctx context.Context, head, base, title, body string) (string, error)
	ViewPullRequest(ctx context.Context, number int) (*github.PullRequest, error)
	MergePullRequest(ctx context.Context, number int, mode github.MergeMode) error
	ClosePullRequest(ctx context.Context, number int, deleteBranch bool) error
}

// Agent runs the code-generation agent.
type Agent interface {
	Invoke(ctx context.Context, prompt string, mode agent.Mode) (*agent.Result, error)
}

// NotesStore reads the shared notes file.
type NotesStore interface {
	Exists(path string) bool
	Read(path string) (string, error)
}

// Deps are the external collaborators the loop drives.
type Deps struct {
	VCS   VersionControl
	Host  CodeHost
	Agent Agent
	Notes NotesStore
}
