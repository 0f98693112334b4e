// Package revision holds the value types identifying a commit in a
// repository and its metadata.
package revision

import (
	"fmt"
	"strings"
)

// Revision identifies a single commit. Identity is the (RepositoryName, RevID) pair.
type Revision struct {
	RevID          string `json:"revId"`
	RepositoryName string `json:"repositoryName"`
}

// New creates a Revision.
func New(revID, repositoryName string) Revision {
	return Revision{RevID: revID, RepositoryName: repositoryName}
}

// String renders the revision as repo{revId}.
func (r Revision) String() string {
	return r.RepositoryName + "{" + r.RevID + "}"
}

// IsZero reports whether r is the zero Revision.
func (r Revision) IsZero() bool {
	return r.RevID == "" && r.RepositoryName == ""
}

// Parse parses a revision in the repo{revId} form produced by String.
func Parse(s string) (Revision, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '{')
	if open <= 0 || !strings.HasSuffix(s, "}") {
		return Revision{}, fmt.Errorf("revision %q: want repository{revId}", s)
	}
	revID := s[open+1 : len(s)-1]
	if revID == "" || strings.ContainsAny(revID, "{}") {
		return Revision{}, fmt.Errorf("revision %q: empty or malformed revision id", s)
	}
	return New(revID, s[:open]), nil
}
