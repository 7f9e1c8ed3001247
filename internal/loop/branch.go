package loop

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBranchPrefix namespaces iteration branches.
const DefaultBranchPrefix = "continuous"

// NewBranchToken returns a short random token that keeps branch names unique
// when iterations share an ordinal and date across runs.
func NewBranchToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// BranchName builds "<prefix>/iteration-<n>/<YYYY-MM-DD>-<token>".
func BranchName(prefix string, ordinal int, now time.Time, token string) string {
	if prefix == "" {
		prefix = DefaultBranchPrefix
	}
	return fmt.Sprintf("%s/iteration-%d/%s-%s", strings.TrimSuffix(prefix, "/"), ordinal, now.Format("2006-01-02"), token)
}

// SplitCommitMessage derives a pull request title and body from a commit
// message: the title is the first line and the body is everything after the
// first three lines (summary plus two blank separator lines).
func SplitCommitMessage(msg string) (title, body string) {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	lines := strings.Split(msg, "\n")
	title = strings.TrimSpace(lines[0])
	if len(lines) > 3 {
		body = strings.TrimSpace(strings.Join(lines[3:], "\n"))
	}
	return title, body
}
