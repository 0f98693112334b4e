package repository

import (
	"context"
	"os"
	"path/filepath"

	"moe/internal/errors"
	"moe/internal/paths"
	"moe/internal/revision"
	"moe/internal/tempfs"
)

// fileHeadID is the only revision of a file repository.
const fileHeadID = "1"

// fileRepo serves a plain directory as a repository with one revision.
type fileRepo struct {
	name string
	cfg  Config
	deps Deps
	root string
}

func newFile(name string, cfg Config, deps Deps) (Repository, error) {
	if err := cfg.CheckType("file"); err != nil {
		return nil, err
	}
	root := paths.ExpandHome(cfg.URL)
	if root == "" {
		return nil, errors.Newf(errors.InvalidProject, "file repository %q needs a url naming a directory", name)
	}
	return &fileRepo{name: name, cfg: cfg, deps: deps, root: root}, nil
}

func (f *fileRepo) Name() string         { return f.name }
func (f *fileRepo) ProjectSpace() string { return f.cfg.Space() }
func (f *fileRepo) Config() Config       { return f.cfg }

func (f *fileRepo) Head(context.Context) (revision.Revision, error) {
	return revision.New(fileHeadID, f.name), nil
}

func (f *fileRepo) check(spec string) error {
	if spec != "" && spec != fileHeadID {
		return unknownRevision(f.name, spec)
	}
	return nil
}

func (f *fileRepo) Export(ctx context.Context, revSpec, dest string) (revision.Metadata, error) {
	if err := f.check(revSpec); err != nil {
		return revision.Metadata{}, err
	}
	info, err := f.deps.Fs.Stat(f.root)
	if err != nil {
		return revision.Metadata{}, unavailable(err, "cannot read directory %s", f.root)
	}
	if len(f.cfg.Paths) == 0 {
		if err := tempfs.CopyTree(f.deps.Fs, f.root, dest); err != nil {
			return revision.Metadata{}, err
		}
	} else {
		if err := f.deps.Fs.MkdirAll(dest, 0o755); err != nil {
			return revision.Metadata{}, err
		}
		for _, p := range f.cfg.Paths {
			src := paths.JoinRelPath(f.root, p)
			if _, err := f.deps.Fs.Stat(src); os.IsNotExist(err) {
				continue
			}
			if err := tempfs.CopyTree(f.deps.Fs, src, filepath.Join(dest, filepath.FromSlash(p))); err != nil {
				return revision.Metadata{}, err
			}
		}
	}
	if err := finishExport(f.deps.Fs, dest, f.cfg); err != nil {
		return revision.Metadata{}, err
	}
	return revision.Metadata{ID: fileHeadID, Date: info.ModTime(), Description: "directory " + f.root}, nil
}

func (f *fileRepo) Metadata(_ context.Context, rev revision.Revision) (revision.Metadata, error) {
	if err := checkRepo(f.name, rev); err != nil {
		return revision.Metadata{}, err
	}
	if err := f.check(rev.RevID); err != nil {
		return revision.Metadata{}, err
	}
	info, err := f.deps.Fs.Stat(f.root)
	if err != nil {
		return revision.Metadata{}, unavailable(err, "cannot read directory %s", f.root)
	}
	return revision.Metadata{ID: fileHeadID, Date: info.ModTime(), Description: "directory " + f.root}, nil
}

func (f *fileRepo) History(_ context.Context, from revision.Revision, _ int) ([]revision.Revision, error) {
	if err := checkRepo(f.name, from); err != nil {
		return nil, err
	}
	if err := f.check(from.RevID); err != nil {
		return nil, err
	}
	return []revision.Revision{revision.New(fileHeadID, f.name)}, nil
}

func (f *fileRepo) Compare(_ context.Context, a, b revision.Revision) (Order, error) {
	if a == b {
		return Same, nil
	}
	return Unordered, nil
}
