// Package migration decides which revisions of one repository still need
// to be carried over to another, using the equivalence database as the
// merge base.
package migration

import (
	"context"
	"fmt"
	"log/slog"

	"moe/internal/database"
	"moe/internal/errors"
	"moe/internal/expression"
	"moe/internal/project"
	"moe/internal/repository"
	"moe/internal/revision"
	"moe/internal/slogutil"
)

// Matcher relates the history of From to the history of To.
type Matcher struct {
	DB     database.DB
	From   repository.Repository
	To     repository.Repository
	logger *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(db database.DB, from, to repository.Repository, logger *slog.Logger) *Matcher {
	return &Matcher{
		DB:     db,
		From:   from,
		To:     to,
		logger: slogutil.OrDiscard(logger).With("from", from.Name(), "to", to.Name()),
	}
}

// LatestEquivalence returns the newest known equivalence, From side first.
func (m *Matcher) LatestEquivalence(ctx context.Context) (database.Equivalence, bool, error) {
	return m.DB.FindLatestEquivalence(ctx, m.From.Name(), m.To.Name(), m.From)
}

// Migration is a unit of work: the From revisions to carry over, oldest
// first, and the metadata of the commit that carries them.
type Migration struct {
	FromRepository string
	ToRepository   string
	Revisions      []revision.Revision
	Metadata       revision.Metadata
	// Base is the equivalence the migration builds on, if any.
	Base *database.Equivalence
}

// Source is the newest revision carried by m.
func (m Migration) Source() revision.Revision {
	return m.Revisions[len(m.Revisions)-1]
}

// BaselineExpression is the To codebase the migration applies on top of,
// or nil when there is no base.
func (m Migration) BaselineExpression() expression.Expression {
	if m.Base == nil {
		return nil
	}
	return expression.WithOption(expression.NewRepository(m.ToRepository), expression.OptionRevision, m.Base.Rev2.RevID)
}

// FromExpression is the migrated content translated into toSpace. With a
// base it carries the baseline as the reference target codebase.
func (m Migration) FromExpression(toSpace string) expression.Expression {
	from := expression.WithOption(expression.NewRepository(m.FromRepository), expression.OptionRevision, m.Source().RevID)
	t := from.TranslateTo(toSpace)
	if base := m.BaselineExpression(); base != nil {
		t = expression.WithReferenceTargetCodebase(t, base)
	}
	return t
}

func (m Migration) String() string {
	return fmt.Sprintf("%s -> %s: %d revision(s) up to %s", m.FromRepository, m.ToRepository, len(m.Revisions), m.Source())
}

// Plan is the result of planning one configured migration.
type Plan struct {
	Config     project.MigrationConfig
	Base       *database.Equivalence
	Migrations []Migration
}

// Plan lists the From revisions strictly after the merge base that are not
// already marked as migrated in To, grouped per cfg.SeparateRevisions.
func (m *Matcher) Plan(ctx context.Context, cfg project.MigrationConfig) (*Plan, error) {
	plan := &Plan{Config: cfg}
	eq, ok, err := m.LatestEquivalence(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		plan.Base = &eq
		m.logger.Info("Found merge base", "equivalence", eq.String())
	} else {
		m.logger.Info("No equivalence found; considering all history")
	}

	candidates, err := m.candidates(ctx, plan.Base)
	if err != nil {
		return nil, err
	}
	candidates, err = m.dropMigrated(ctx, plan.Base, candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		m.logger.Info("Nothing to migrate")
		return plan, nil
	}

	metas := make([]revision.Metadata, len(candidates))
	for i, rev := range candidates {
		if metas[i], err = m.From.Metadata(ctx, rev); err != nil {
			return nil, err
		}
	}

	if cfg.SeparateRevisions {
		for i, rev := range candidates {
			rev := rev
			md, err := revision.Concatenate(metas[i:i+1], &rev)
			if err != nil {
				return nil, err
			}
			plan.Migrations = append(plan.Migrations, m.migration([]revision.Revision{rev}, md, plan.Base))
		}
		return plan, nil
	}
	newest := candidates[len(candidates)-1]
	md, err := revision.Concatenate(metas, &newest)
	if err != nil {
		return nil, err
	}
	plan.Migrations = append(plan.Migrations, m.migration(candidates, md, plan.Base))
	return plan, nil
}

func (m *Matcher) migration(revs []revision.Revision, md revision.Metadata, base *database.Equivalence) Migration {
	return Migration{
		FromRepository: m.From.Name(),
		ToRepository:   m.To.Name(),
		Revisions:      revs,
		Metadata:       md,
		Base:           base,
	}
}

// candidates walks From history from head and returns, oldest first, the
// revisions that descend from the base. History is in time order, so on
// merged lines a revision from a branch that forked before the base can sit
// between descendants; those are skipped, not treated as the end of the walk.
func (m *Matcher) candidates(ctx context.Context, base *database.Equivalence) ([]revision.Revision, error) {
	head, err := m.From.Head(ctx)
	if err != nil {
		return nil, err
	}
	history, err := m.From.History(ctx, head, 0)
	if err != nil {
		return nil, err
	}
	var out []revision.Revision
	for _, rev := range history {
		if base != nil {
			if rev == base.Rev1 {
				continue
			}
			order, err := m.From.Compare(ctx, rev, base.Rev1)
			if err != nil {
				return nil, err
			}
			if order != repository.After {
				continue
			}
		}
		out = append(out, rev)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// dropMigrated removes candidates at or before the newest From revision
// named by a MOE_MIGRATED_REVID marker in To history newer than the base.
func (m *Matcher) dropMigrated(ctx context.Context, base *database.Equivalence, candidates []revision.Revision) ([]revision.Revision, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	marked, ok, err := m.newestMarker(ctx, base)
	if err != nil || !ok {
		return candidates, err
	}
	if _, err := m.From.Metadata(ctx, marked); err != nil {
		m.logger.Warn("Ignoring migration marker for unknown revision", "revision", marked.String(), "error", err.Error())
		return candidates, nil
	}

	var keep []revision.Revision
	for _, c := range candidates {
		order, err := m.From.Compare(ctx, c, marked)
		if err != nil {
			return nil, err
		}
		if order == repository.After || order == repository.Unordered {
			keep = append(keep, c)
		}
	}
	m.logger.Info("Skipping revisions already migrated", "marker", marked.String(), "skipped", len(candidates)-len(keep))
	return keep, nil
}

func (m *Matcher) newestMarker(ctx context.Context, base *database.Equivalence) (revision.Revision, bool, error) {
	head, err := m.To.Head(ctx)
	if err != nil {
		return revision.Revision{}, false, err
	}
	history, err := m.To.History(ctx, head, 0)
	if err != nil {
		return revision.Revision{}, false, err
	}
	for _, rev := range history {
		if base != nil && rev == base.Rev2 {
			break
		}
		md, err := m.To.Metadata(ctx, rev)
		if err != nil {
			return revision.Revision{}, false, err
		}
		if id, ok := revision.MigratedRevID(md.Description); ok {
			return revision.New(id, m.From.Name()), true, nil
		}
	}
	return revision.Revision{}, false, nil
}

// RecordMigration notes that from and to hold the same content and saves
// the database.
func (m *Matcher) RecordMigration(ctx context.Context, from, to revision.Revision) (bool, error) {
	if from.RepositoryName != m.From.Name() || to.RepositoryName != m.To.Name() {
		return false, errors.Newf(errors.InternalError, "cannot record %s == %s for migration %s -> %s",
			from, to, m.From.Name(), m.To.Name())
	}
	added, err := m.DB.NoteEquivalence(ctx, database.NewEquivalence(from, to))
	if err != nil {
		return false, err
	}
	if err := m.DB.Save(ctx); err != nil {
		return false, err
	}
	m.logger.Info("Recorded migration", "from", from.String(), "to", to.String(), "new", added)
	return added, nil
}
