package github

import (
	"fmt"
	"regexp"
	"strings"
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// String returns "owner/name", the form gh's --repo flag takes.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the repository is unset.
func (r Repository) IsZero() bool {
	return r.Owner == "" || r.Name == ""
}

// Matches https://github.com/o/r(.git), ssh://git@github.com/o/r(.git) and
// git@github.com:o/r(.git).
var remoteRE = regexp.MustCompile(`github\.com[:/]([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// ParseRemote extracts owner and name from a GitHub remote URL.
func ParseRemote(url string) (Repository, error) {
	m := remoteRE.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return Repository{}, fmt.Errorf("not a GitHub remote: %q", url)
	}
	return Repository{Owner: m[1], Name: m[2]}, nil
}
