// Package database stores equivalences: facts that a revision in one
// repository holds the same content as a revision in another.
package database

import (
	"context"
	"fmt"

	"moe/internal/repository"
	"moe/internal/revision"
)

// Equivalence is an unordered pair of revisions from two repositories.
type Equivalence struct {
	Rev1 revision.Revision `json:"rev1"`
	Rev2 revision.Revision `json:"rev2"`
}

// NewEquivalence creates an Equivalence.
func NewEquivalence(rev1, rev2 revision.Revision) Equivalence {
	return Equivalence{Rev1: rev1, Rev2: rev2}
}

// Equal compares as an unordered pair.
func (e Equivalence) Equal(o Equivalence) bool {
	return (e.Rev1 == o.Rev1 && e.Rev2 == o.Rev2) || (e.Rev1 == o.Rev2 && e.Rev2 == o.Rev1)
}

// Involves reports whether either side belongs to repo.
func (e Equivalence) Involves(repo string) bool {
	return e.Rev1.RepositoryName == repo || e.Rev2.RepositoryName == repo
}

// In returns the side belonging to repo.
func (e Equivalence) In(repo string) (revision.Revision, bool) {
	switch repo {
	case e.Rev1.RepositoryName:
		return e.Rev1, true
	case e.Rev2.RepositoryName:
		return e.Rev2, true
	}
	return revision.Revision{}, false
}

// Oriented returns e with the side from repo first.
func (e Equivalence) Oriented(repo string) Equivalence {
	if e.Rev2.RepositoryName == repo && e.Rev1.RepositoryName != repo {
		return Equivalence{Rev1: e.Rev2, Rev2: e.Rev1}
	}
	return e
}

// canonical orders the sides by repository name.
func (e Equivalence) canonical() Equivalence {
	if e.Rev2.RepositoryName < e.Rev1.RepositoryName {
		return Equivalence{Rev1: e.Rev2, Rev2: e.Rev1}
	}
	return e
}

func (e Equivalence) String() string {
	return fmt.Sprintf("%s == %s", e.Rev1, e.Rev2)
}

func (e Equivalence) validate() error {
	for _, r := range []revision.Revision{e.Rev1, e.Rev2} {
		if r.RevID == "" || r.RepositoryName == "" {
			return fmt.Errorf("equivalence %s has an empty revision", e)
		}
	}
	if e.Rev1.RepositoryName == e.Rev2.RepositoryName {
		return fmt.Errorf("equivalence %s relates a repository to itself", e)
	}
	return nil
}

// Orderer compares revisions of one repository by ancestry. Every
// repository.Repository is an Orderer.
type Orderer interface {
	Compare(ctx context.Context, a, b revision.Revision) (repository.Order, error)
}

// DB is an equivalence store.
type DB interface {
	// NoteEquivalence records e and reports whether it was new.
	NoteEquivalence(ctx context.Context, e Equivalence) (bool, error)
	// Equivalences lists the facts relating repoA and repoB in insertion
	// order, each oriented with the repoA side first.
	Equivalences(ctx context.Context, repoA, repoB string) ([]Equivalence, error)
	// FindLatestEquivalence returns the fact whose repoA side is newest by
	// order. Ties and unordered revisions go to the fact inserted last.
	FindLatestEquivalence(ctx context.Context, repoA, repoB string, order Orderer) (Equivalence, bool, error)
	Count(ctx context.Context) (int, error)
	// Save makes recorded facts durable.
	Save(ctx context.Context) error
	Close() error
}

// latest picks from facts, which are oriented and in insertion order.
func latest(ctx context.Context, facts []Equivalence, order Orderer) (Equivalence, bool, error) {
	if len(facts) == 0 {
		return Equivalence{}, false, nil
	}
	best := facts[0]
	for _, f := range facts[1:] {
		o, err := order.Compare(ctx, f.Rev1, best.Rev1)
		if err != nil {
			return Equivalence{}, false, err
		}
		if o != repository.Before {
			best = f
		}
	}
	return best, true, nil
}
