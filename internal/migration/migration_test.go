package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moe/internal/database"
	"moe/internal/project"
	"moe/internal/repository"
	"moe/internal/revision"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func internalRepo(n int) *repository.Dummy {
	d := repository.NewDummy("internal", repository.Config{ProjectSpace: "internal"}, repository.Deps{Fs: afero.NewMemMapFs()})
	for i := 1; i <= n; i++ {
		d.Commit(repository.DummyCommit{
			Author:      fmt.Sprintf("dev%d", i),
			Date:        base.Add(time.Duration(i) * time.Hour),
			Description: fmt.Sprintf("change %d", i),
		})
	}
	return d
}

func publicRepo(descriptions ...string) *repository.Dummy {
	d := repository.NewDummy("public", repository.Config{}, repository.Deps{Fs: afero.NewMemMapFs()})
	for i, desc := range descriptions {
		d.Commit(repository.DummyCommit{ID: string(rune('a' + i)), Author: "bot", Date: base, Description: desc})
	}
	return d
}

func revs(repo string, ids ...string) []revision.Revision {
	out := make([]revision.Revision, len(ids))
	for i, id := range ids {
		out[i] = revision.New(id, repo)
	}
	return out
}

var exportConfig = project.MigrationConfig{Name: "export", FromRepository: "internal", ToRepository: "public"}

func TestPlanWithoutEquivalence(t *testing.T) {
	m := NewMatcher(database.NewMemoryDB(), internalRepo(3), publicRepo("initial"), nil)
	plan, err := m.Plan(context.Background(), exportConfig)
	require.NoError(t, err)
	assert.Nil(t, plan.Base)
	require.Len(t, plan.Migrations, 1)

	mig := plan.Migrations[0]
	assert.Equal(t, revs("internal", "1", "2", "3"), mig.Revisions)
	assert.Equal(t, "1, 2, 3", mig.Metadata.ID)
	assert.Equal(t, "dev1, dev2, dev3", mig.Metadata.Author)
	assert.True(t, mig.Metadata.Date.Equal(base.Add(3*time.Hour)))
	assert.True(t, strings.HasSuffix(mig.Metadata.Description, "\nMOE_MIGRATED_REVID=3"))
	assert.Nil(t, mig.BaselineExpression())
	assert.Equal(t, "internal(revision=3)>public", mig.FromExpression("public").String())
}

func TestPlanFromEquivalence(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	_, err := db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("2", "internal"), revision.New("a", "public")))
	require.NoError(t, err)
	_, err = db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("1", "internal"), revision.New("a", "public")))
	require.NoError(t, err)

	m := NewMatcher(db, internalRepo(5), publicRepo("initial"), nil)
	plan, err := m.Plan(ctx, exportConfig)
	require.NoError(t, err)
	require.NotNil(t, plan.Base)
	assert.Equal(t, revision.New("2", "internal"), plan.Base.Rev1)

	require.Len(t, plan.Migrations, 1)
	mig := plan.Migrations[0]
	assert.Equal(t, revs("internal", "3", "4", "5"), mig.Revisions)
	assert.Equal(t, revision.New("5", "internal"), mig.Source())
	assert.Equal(t, "change 3"+revision.Separator+"change 4"+revision.Separator+"change 5"+
		revision.Separator+revision.Attribution+"MOE_MIGRATED_REVID=5", mig.Metadata.Description)

	assert.Equal(t, "public(revision=a)", mig.BaselineExpression().String())
	assert.Contains(t, mig.FromExpression("public").String(), "internal(revision=5)>public(referenceTargetCodebase=")
}

func TestPlanSeparateRevisions(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	_, err := db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("1", "internal"), revision.New("a", "public")))
	require.NoError(t, err)

	cfg := exportConfig
	cfg.SeparateRevisions = true
	plan, err := NewMatcher(db, internalRepo(3), publicRepo("initial"), nil).Plan(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Migrations, 2)
	for i, id := range []string{"2", "3"} {
		mig := plan.Migrations[i]
		assert.Equal(t, revs("internal", id), mig.Revisions)
		assert.Equal(t, id, mig.Metadata.ID)
		assert.Equal(t, "change "+id+revision.Separator+revision.Attribution+"MOE_MIGRATED_REVID="+id, mig.Metadata.Description)
	}
}

func TestPlanHonoursMigrationMarkers(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	_, err := db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("1", "internal"), revision.New("a", "public")))
	require.NoError(t, err)

	to := publicRepo(
		"initial",
		"change 2"+revision.Separator+"change 3"+revision.Separator+revision.Attribution+"MOE_MIGRATED_REVID=3",
		"unrelated fix",
	)
	plan, err := NewMatcher(db, internalRepo(5), to, nil).Plan(ctx, exportConfig)
	require.NoError(t, err)
	require.Len(t, plan.Migrations, 1)
	assert.Equal(t, revs("internal", "4", "5"), plan.Migrations[0].Revisions)
}

func TestPlanIgnoresMarkersBeforeBase(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	to := publicRepo(revision.Attribution+"MOE_MIGRATED_REVID=3", "later")
	_, err := db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("1", "internal"), revision.New("b", "public")))
	require.NoError(t, err)

	plan, err := NewMatcher(db, internalRepo(3), to, nil).Plan(ctx, exportConfig)
	require.NoError(t, err)
	require.Len(t, plan.Migrations, 1)
	assert.Equal(t, revs("internal", "2", "3"), plan.Migrations[0].Revisions)
}

func TestPlanIgnoresMarkerForUnknownRevision(t *testing.T) {
	to := publicRepo("initial", revision.Attribution+"MOE_MIGRATED_REVID=nope")
	plan, err := NewMatcher(database.NewMemoryDB(), internalRepo(2), to, nil).Plan(context.Background(), exportConfig)
	require.NoError(t, err)
	require.Len(t, plan.Migrations, 1)
	assert.Equal(t, revs("internal", "1", "2"), plan.Migrations[0].Revisions)
}

func TestPlanUpToDate(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	_, err := db.NoteEquivalence(ctx, database.NewEquivalence(revision.New("3", "internal"), revision.New("a", "public")))
	require.NoError(t, err)

	plan, err := NewMatcher(db, internalRepo(3), publicRepo("initial"), nil).Plan(ctx, exportConfig)
	require.NoError(t, err)
	assert.Empty(t, plan.Migrations)
}

func TestRecordMigration(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	m := NewMatcher(db, internalRepo(3), publicRepo("initial", "second"), nil)

	added, err := m.RecordMigration(ctx, revision.New("2", "internal"), revision.New("b", "public"))
	require.NoError(t, err)
	assert.True(t, added)
	added, err = m.RecordMigration(ctx, revision.New("2", "internal"), revision.New("b", "public"))
	require.NoError(t, err)
	assert.False(t, added)

	eq, ok, err := m.LatestEquivalence(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, revision.New("2", "internal"), eq.Rev1)

	_, err = m.RecordMigration(ctx, revision.New("b", "public"), revision.New("2", "internal"))
	assert.Error(t, err)
}

// gitCommit writes name into the worktree and commits it on top of parents.
func gitCommit(t *testing.T, wt *git.Worktree, root, name, msg string, when time.Time, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(msg+"\n"), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	h, err := wt.Commit(msg+"\n", &git.CommitOptions{
		Author:  &object.Signature{Name: "Alice", Email: "alice@example.com", When: when},
		Parents: parents,
	})
	require.NoError(t, err)
	return h
}

func TestPlanKeepsDescendantsAcrossMerges(t *testing.T) {
	root := t.TempDir()
	gr, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := gr.Worktree()
	require.NoError(t, err)

	initial := gitCommit(t, wt, root, "a.txt", "initial", base)
	merged := gitCommit(t, wt, root, "b.txt", "merged", base.Add(1*time.Hour), initial)
	afterBase := gitCommit(t, wt, root, "c.txt", "after base", base.Add(2*time.Hour), merged)
	side := gitCommit(t, wt, root, "d.txt", "side branch", base.Add(3*time.Hour), initial)
	merge := gitCommit(t, wt, root, "e.txt", "merge", base.Add(4*time.Hour), afterBase, side)

	from, err := repository.New("internal", repository.Config{Type: "git", URL: root, ProjectSpace: "internal"}, repository.Deps{})
	require.NoError(t, err)

	ctx := context.Background()
	db := database.NewMemoryDB()
	_, err = db.NoteEquivalence(ctx, database.NewEquivalence(revision.New(merged.String(), "internal"), revision.New("a", "public")))
	require.NoError(t, err)

	plan, err := NewMatcher(db, from, publicRepo("initial"), nil).Plan(ctx, exportConfig)
	require.NoError(t, err)
	require.NotNil(t, plan.Base)
	require.Len(t, plan.Migrations, 1)

	mig := plan.Migrations[0]
	assert.Equal(t, revs("internal", afterBase.String(), merge.String()), mig.Revisions)
	assert.Equal(t, afterBase.String()+", "+merge.String(), mig.Metadata.ID)
	assert.True(t, strings.HasPrefix(mig.Metadata.Description, "after base\n"))
	assert.True(t, strings.HasSuffix(mig.Metadata.Description, "MOE_MIGRATED_REVID="+merge.String()))
}
