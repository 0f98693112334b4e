package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/spf13/afero"

	"moe/internal/errors"
	"moe/internal/paths"
	"moe/internal/revision"
)

// gitRepo reads a git repository through go-git. A url naming a local
// directory is opened in place; anything else is cloned on first use.
type gitRepo struct {
	name string
	cfg  Config
	deps Deps

	mu   sync.Mutex
	repo *git.Repository
}

func newGit(name string, cfg Config, deps Deps) (Repository, error) {
	if err := cfg.CheckType("git"); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.Newf(errors.InvalidProject, "git repository %q needs a url", name)
	}
	return &gitRepo{name: name, cfg: cfg, deps: deps}, nil
}

func (g *gitRepo) Name() string         { return g.name }
func (g *gitRepo) ProjectSpace() string { return g.cfg.Space() }
func (g *gitRepo) Config() Config       { return g.cfg }

func (g *gitRepo) open(ctx context.Context) (*git.Repository, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.repo != nil {
		return g.repo, nil
	}

	url := paths.ExpandHome(g.cfg.URL)
	if info, err := os.Stat(url); err == nil && info.IsDir() {
		r, err := git.PlainOpenWithOptions(url, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return nil, unavailable(err, "cannot open git repository %s", url)
		}
		g.repo = r
		return r, nil
	}

	if g.deps.Temp == nil {
		return nil, errors.Newf(errors.RepositoryUnavailable, "git repository %q is remote and no temp directory is configured", g.name)
	}
	dir, err := g.deps.Temp.TempDir(context.Background(), "git_clone_"+g.name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.deps.CommandTimeout)
	defer cancel()
	opts := &git.CloneOptions{URL: url}
	if g.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.cfg.Branch)
	}
	g.deps.Logger.Info("Cloning repository", "url", url, "dir", dir)
	r, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewMoeError(errors.Timeout, "clone of "+url+" timed out", err, nil)
		}
		return nil, unavailable(err, "cannot clone %s", url)
	}
	g.repo = r
	return r, nil
}

func (g *gitRepo) headHash(r *git.Repository) (plumbing.Hash, error) {
	if g.cfg.Branch != "" {
		for _, name := range []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(g.cfg.Branch),
			plumbing.NewRemoteReferenceName("origin", g.cfg.Branch),
		} {
			if ref, err := r.Reference(name, true); err == nil {
				return ref.Hash(), nil
			}
		}
		return plumbing.ZeroHash, unknownRevision(g.name, g.cfg.Branch)
	}
	ref, err := r.Head()
	if err != nil {
		return plumbing.ZeroHash, unavailable(err, "cannot resolve HEAD of %s", g.name)
	}
	return ref.Hash(), nil
}

func (g *gitRepo) resolve(ctx context.Context, spec string) (*git.Repository, *object.Commit, error) {
	r, err := g.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	var h plumbing.Hash
	if spec == "" {
		h, err = g.headHash(r)
		if err != nil {
			return nil, nil, err
		}
	} else {
		resolved, err := r.ResolveRevision(plumbing.Revision(spec))
		if err != nil {
			return nil, nil, unknownRevision(g.name, spec)
		}
		h = *resolved
	}
	c, err := r.CommitObject(h)
	if err != nil {
		return nil, nil, unknownRevision(g.name, spec)
	}
	return r, c, nil
}

func (g *gitRepo) Head(ctx context.Context) (revision.Revision, error) {
	_, c, err := g.resolve(ctx, "")
	if err != nil {
		return revision.Revision{}, err
	}
	return revision.New(c.Hash.String(), g.name), nil
}

func (g *gitRepo) Export(ctx context.Context, revSpec, dest string) (revision.Metadata, error) {
	_, c, err := g.resolve(ctx, revSpec)
	if err != nil {
		return revision.Metadata{}, err
	}
	tree, err := c.Tree()
	if err != nil {
		return revision.Metadata{}, unavailable(err, "cannot read tree of %s", c.Hash)
	}
	if err := g.deps.Fs.MkdirAll(dest, 0o755); err != nil {
		return revision.Metadata{}, err
	}
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !wantPath(g.cfg.Paths, f.Name) {
			return nil
		}
		return g.writeFile(f, filepath.Join(dest, filepath.FromSlash(f.Name)))
	})
	if err != nil {
		return revision.Metadata{}, err
	}
	if err := finishExport(g.deps.Fs, dest, g.cfg); err != nil {
		return revision.Metadata{}, err
	}
	return g.metadataOf(c), nil
}

func (g *gitRepo) writeFile(f *object.File, path string) error {
	if err := g.deps.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if f.Mode == filemode.Symlink {
		target, err := f.Contents()
		if err != nil {
			return err
		}
		if l, ok := g.deps.Fs.(afero.Linker); ok {
			return l.SymlinkIfPossible(target, path)
		}
		return afero.WriteFile(g.deps.Fs, path, []byte(target), 0o644)
	}

	var perm os.FileMode = 0o644
	if f.Mode == filemode.Executable {
		perm = 0o755
	}
	rd, err := f.Reader()
	if err != nil {
		return err
	}
	defer rd.Close()
	out, err := g.deps.Fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rd); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return g.deps.Fs.Chmod(path, perm)
}

func (g *gitRepo) metadataOf(c *object.Commit) revision.Metadata {
	m := revision.Metadata{
		ID:          c.Hash.String(),
		Author:      fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Date:        c.Author.When,
		Description: c.Message,
	}
	for _, p := range c.ParentHashes {
		m.Parents = append(m.Parents, revision.New(p.String(), g.name))
	}
	return m
}

func (g *gitRepo) Metadata(ctx context.Context, rev revision.Revision) (revision.Metadata, error) {
	if err := checkRepo(g.name, rev); err != nil {
		return revision.Metadata{}, err
	}
	_, c, err := g.resolve(ctx, rev.RevID)
	if err != nil {
		return revision.Metadata{}, err
	}
	return g.metadataOf(c), nil
}

func (g *gitRepo) History(ctx context.Context, from revision.Revision, limit int) ([]revision.Revision, error) {
	if err := checkRepo(g.name, from); err != nil {
		return nil, err
	}
	r, c, err := g.resolve(ctx, from.RevID)
	if err != nil {
		return nil, err
	}
	iter, err := r.Log(&git.LogOptions{From: c.Hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, unavailable(err, "cannot read history of %s", g.name)
	}
	defer iter.Close()

	var revs []revision.Revision
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(revs) >= limit {
			return storer.ErrStop
		}
		revs = append(revs, revision.New(c.Hash.String(), g.name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revs, nil
}

func (g *gitRepo) Compare(ctx context.Context, a, b revision.Revision) (Order, error) {
	if err := checkRepo(g.name, a); err != nil {
		return Unordered, err
	}
	if err := checkRepo(g.name, b); err != nil {
		return Unordered, err
	}
	_, ca, err := g.resolve(ctx, a.RevID)
	if err != nil {
		return Unordered, err
	}
	_, cb, err := g.resolve(ctx, b.RevID)
	if err != nil {
		return Unordered, err
	}
	if ca.Hash == cb.Hash {
		return Same, nil
	}
	if ok, err := ca.IsAncestor(cb); err != nil {
		return Unordered, err
	} else if ok {
		return Before, nil
	}
	if ok, err := cb.IsAncestor(ca); err != nil {
		return Unordered, err
	} else if ok {
		return After, nil
	}
	return Unordered, nil
}
