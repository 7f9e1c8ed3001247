// Package loop runs a code-generation agent in bounded, PR-gated cycles.
//
// Each iteration creates a branch, lets the agent work, has it commit, then
// pushes the branch and opens a pull request. The pull request is merged once
// its checks pass, or closed (and its remote branch deleted) when they fail.
// Any failure returns the repository to the base branch and deletes the
// iteration branch.
//
// # Basic Usage
//
//	r, err := loop.New(loop.Config{
//	    Task:   "Add tests for the parser package",
//	    Limits: loop.Limits{MaxRuns: 5, MaxCost: 10},
//	    Output: os.Stderr,
//	}, loop.Deps{VCS: repo, Host: gh, Agent: claude, Notes: store})
//	summary, err := r.Run(ctx)
//
// # Stopping
//
// Evaluate is checked before every iteration: successful runs, cumulative
// cost, wall-clock duration and a completion phrase reported by the agent in
// consecutive iterations. Separately, DefaultConsecutiveFailureLimit failed
// iterations in a row end the run with ErrTooManyFailures.
//
// # Progress Observation
//
// Implement Observer (or embed NoopObserver) and set Config.Observer.
// StatusWriter is an Observer that keeps a JSON status file current.
package loop
