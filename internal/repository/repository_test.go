package repository

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moe/internal/errors"
	"moe/internal/revision"
)

func readAll(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestNewUnknownType(t *testing.T) {
	_, err := New("internal", Config{Type: "svn"}, Deps{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidProject))
	assert.Contains(t, err.Error(), "dummy, file, git, hg")
}

func TestConfigSpace(t *testing.T) {
	assert.Equal(t, DefaultProjectSpace, Config{}.Space())
	assert.Equal(t, "internal", Config{ProjectSpace: "internal"}.Space())
	assert.Equal(t, "b", Config{Branch: "a"}.WithBranch("b").Branch)
}

func TestWantPath(t *testing.T) {
	assert.True(t, wantPath(nil, "a/b.go"))
	assert.True(t, wantPath([]string{"a"}, "a/b.go"))
	assert.True(t, wantPath([]string{"a/"}, "a/b.go"))
	assert.False(t, wantPath([]string{"a"}, "ab/c.go"))
	assert.True(t, wantPath([]string{"a/b.go"}, "a/b.go"))
}

func newTestDummy(fs afero.Fs) *Dummy {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewDummy("internal", Config{ProjectSpace: "internal"}, Deps{Fs: fs},
		DummyCommit{Author: "alice", Date: base, Description: "first", Files: map[string]string{"a.txt": "one\n"}},
		DummyCommit{Author: "bob", Date: base.Add(time.Hour), Description: "second", Files: map[string]string{"a.txt": "two\n", "lib/b.txt": "b\n"}},
	)
}

func TestDummyHistory(t *testing.T) {
	ctx := context.Background()
	d := newTestDummy(afero.NewMemMapFs())

	head, err := d.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, revision.New("2", "internal"), head)

	third := d.Commit(DummyCommit{ID: "abc", Description: "third"})
	head, err = d.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, head)

	hist, err := d.History(ctx, head, 0)
	require.NoError(t, err)
	assert.Equal(t, []revision.Revision{
		revision.New("abc", "internal"),
		revision.New("2", "internal"),
		revision.New("1", "internal"),
	}, hist)

	hist, err = d.History(ctx, head, 2)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	md, err := d.Metadata(ctx, revision.New("2", "internal"))
	require.NoError(t, err)
	assert.Equal(t, "bob", md.Author)
	assert.Equal(t, []revision.Revision{revision.New("1", "internal")}, md.Parents)

	_, err = d.Metadata(ctx, revision.New("2", "public"))
	assert.Error(t, err)
	_, err = d.Metadata(ctx, revision.New("99", "internal"))
	assert.True(t, errors.HasCode(err, errors.RepositoryUnavailable))
}

func TestDummyCompare(t *testing.T) {
	ctx := context.Background()
	d := newTestDummy(afero.NewMemMapFs())
	one, two := revision.New("1", "internal"), revision.New("2", "internal")

	order, err := d.Compare(ctx, one, two)
	require.NoError(t, err)
	assert.Equal(t, Before, order)
	order, err = d.Compare(ctx, two, one)
	require.NoError(t, err)
	assert.Equal(t, After, order)
	order, err = d.Compare(ctx, two, two)
	require.NoError(t, err)
	assert.Equal(t, Same, order)
}

func TestDummyExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := newTestDummy(fs)

	md, err := d.Export(context.Background(), "", "/out")
	require.NoError(t, err)
	assert.Equal(t, "2", md.ID)
	assert.Equal(t, map[string]string{"a.txt": "two\n", "lib/b.txt": "b\n"}, readAll(t, fs, "/out"))

	_, err = d.Export(context.Background(), "1", "/old")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "one\n"}, readAll(t, fs, "/old"))
}

func TestDummyExportPathsAndExecutables(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := NewDummy("internal", Config{Paths: []string{"bin"}, ExecutableFileRes: []string{`\.sh$`}}, Deps{Fs: fs},
		DummyCommit{Files: map[string]string{"bin/run.sh": "#!/bin/sh\n", "bin/data": "x", "README": "r"}})

	_, err := d.Export(context.Background(), "", "/out")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bin/run.sh": "#!/bin/sh\n", "bin/data": "x"}, readAll(t, fs, "/out"))

	info, err := fs.Stat("/out/bin/run.sh")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	info, err = fs.Stat("/out/bin/data")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestDummyFromConfig(t *testing.T) {
	r, err := New("d", Config{Type: "dummy"}, Deps{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	head, err := r.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", head.RevID)
	assert.Equal(t, DefaultProjectSpace, r.ProjectSpace())
}

func TestFileRepository(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/keep/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/skip/b.txt", []byte("b"), 0o644))

	r, err := New("local", Config{Type: "file", URL: "/src", Paths: []string{"keep"}}, Deps{Fs: fs})
	require.NoError(t, err)

	ctx := context.Background()
	head, err := r.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, revision.New("1", "local"), head)

	_, err = r.Export(ctx, "", "/out")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep/a.txt": "a"}, readAll(t, fs, "/out"))

	_, err = r.Export(ctx, "2", "/out2")
	assert.True(t, errors.HasCode(err, errors.RepositoryUnavailable))

	_, err = New("local", Config{Type: "file"}, Deps{Fs: fs})
	assert.True(t, errors.HasCode(err, errors.InvalidProject))
}

func commitFiles(t *testing.T, wt *git.Worktree, root string, files map[string]string, msg string, when time.Time) string {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Alice", Email: "alice@example.com", When: when},
	})
	require.NoError(t, err)
	return h.String()
}

func TestGitRepository(t *testing.T) {
	root := t.TempDir()
	gr, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := gr.Worktree()
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := commitFiles(t, wt, root, map[string]string{"src/a.go": "package a\n"}, "first\n", base)
	second := commitFiles(t, wt, root, map[string]string{"src/a.go": "package a // v2\n", "doc/x.md": "x\n"}, "second\n", base.Add(time.Hour))

	r, err := New("public", Config{Type: "git", URL: root, Paths: []string{"src"}}, Deps{})
	require.NoError(t, err)
	ctx := context.Background()

	head, err := r.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, revision.New(second, "public"), head)

	dest := filepath.Join(t.TempDir(), "export")
	md, err := r.Export(ctx, first, dest)
	require.NoError(t, err)
	assert.Equal(t, first, md.ID)
	assert.Equal(t, "Alice <alice@example.com>", md.Author)
	assert.Equal(t, "first\n", md.Description)
	assert.Empty(t, md.Parents)
	assert.Equal(t, map[string]string{"src/a.go": "package a\n"}, readAll(t, afero.NewOsFs(), dest))

	md, err = r.Metadata(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, []revision.Revision{revision.New(first, "public")}, md.Parents)

	hist, err := r.History(ctx, head, 0)
	require.NoError(t, err)
	assert.Equal(t, []revision.Revision{revision.New(second, "public"), revision.New(first, "public")}, hist)

	order, err := r.Compare(ctx, revision.New(first, "public"), head)
	require.NoError(t, err)
	assert.Equal(t, Before, order)
	order, err = r.Compare(ctx, head, revision.New(first, "public"))
	require.NoError(t, err)
	assert.Equal(t, After, order)

	_, err = r.Export(ctx, "deadbeef", filepath.Join(t.TempDir(), "x"))
	assert.True(t, errors.HasCode(err, errors.RepositoryUnavailable))
}

func TestParseHgMetadata(t *testing.T) {
	out := "abc|Alice <a@example.com>|2024-03-01T12:00:00+00:00|def 0000000000000000000000000000000000000000\nfix | things\n\nbody"
	md, err := parseHgMetadata("hgrepo", out)
	require.NoError(t, err)
	assert.Equal(t, "abc", md.ID)
	assert.Equal(t, "Alice <a@example.com>", md.Author)
	assert.True(t, md.Date.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "fix | things\n\nbody", md.Description)
	assert.Equal(t, []revision.Revision{revision.New("def", "hgrepo")}, md.Parents)

	_, err = parseHgMetadata("hgrepo", "garbage")
	assert.Error(t, err)
}

func TestHgRepository(t *testing.T) {
	if _, err := exec.LookPath("hg"); err != nil {
		t.Skip("hg not installed")
	}
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("hg", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "HGPLAIN=1", "HGUSER=Alice <alice@example.com>")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\n"), 0o644))
	run("commit", "-A", "-m", "first")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("two\n"), 0o644))
	run("commit", "-m", "second")

	r, err := New("hgrepo", Config{Type: "hg", URL: root}, Deps{})
	require.NoError(t, err)
	ctx := context.Background()

	head, err := r.Head(ctx)
	require.NoError(t, err)
	hist, err := r.History(ctx, head, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, head, hist[0])

	order, err := r.Compare(ctx, hist[1], hist[0])
	require.NoError(t, err)
	assert.Equal(t, Before, order)

	dest := filepath.Join(t.TempDir(), "out")
	md, err := r.Export(ctx, hist[1].RevID, dest)
	require.NoError(t, err)
	assert.Equal(t, "first", md.Description)
	assert.Equal(t, map[string]string{"a.txt": "one\n"}, readAll(t, afero.NewOsFs(), dest))
}
