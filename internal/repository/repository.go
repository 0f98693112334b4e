// Package repository adapts version control systems to the operations moe
// needs: materialize a revision as a file tree, read metadata, list history
// and order revisions.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"moe/internal/codebase"
	"moe/internal/errors"
	"moe/internal/revision"
	"moe/internal/slogutil"
	"moe/internal/tempfs"
)

// DefaultProjectSpace is the project space of a repository that names none.
const DefaultProjectSpace = "public"

// Order is the result of comparing two revisions of one repository.
type Order int

const (
	// Unordered revisions are on diverged lines of history.
	Unordered Order = iota
	// Before means the first revision is an ancestor of the second.
	Before
	// After means the first revision descends from the second.
	After
	// Same means both name the same revision.
	Same
)

func (o Order) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Same:
		return "same"
	default:
		return "unordered"
	}
}

// Repository is a version-controlled source of codebases.
type Repository interface {
	Name() string
	ProjectSpace() string
	Config() Config

	// Head returns the newest revision (of the configured branch, if any).
	Head(ctx context.Context) (revision.Revision, error)
	// Export writes the tree at revSpec ("" for head) into dest and
	// returns the revision's metadata.
	Export(ctx context.Context, revSpec, dest string) (revision.Metadata, error)
	Metadata(ctx context.Context, rev revision.Revision) (revision.Metadata, error)
	// History lists rev and its ancestors, newest first. limit <= 0 means
	// no limit.
	History(ctx context.Context, from revision.Revision, limit int) ([]revision.Revision, error)
	// Compare orders a relative to b by ancestry.
	Compare(ctx context.Context, a, b revision.Revision) (Order, error)
}

// Config configures one repository.
type Config struct {
	Type                     string   `json:"type" yaml:"type" toml:"type" mapstructure:"type"`
	URL                      string   `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" mapstructure:"url"`
	ProjectSpace             string   `json:"project_space,omitempty" yaml:"project_space,omitempty" toml:"project_space,omitempty" mapstructure:"project_space"`
	BuildTarget              string   `json:"build_target,omitempty" yaml:"build_target,omitempty" toml:"build_target,omitempty" mapstructure:"build_target"`
	Package                  string   `json:"package,omitempty" yaml:"package,omitempty" toml:"package,omitempty" mapstructure:"package"`
	PreserveAuthors          bool     `json:"preserve_authors,omitempty" yaml:"preserve_authors,omitempty" toml:"preserve_authors,omitempty" mapstructure:"preserve_authors"`
	Paths                    []string `json:"paths,omitempty" yaml:"paths,omitempty" toml:"paths,omitempty" mapstructure:"paths"`
	IgnoreFileRes            []string `json:"ignore_file_res,omitempty" yaml:"ignore_file_res,omitempty" toml:"ignore_file_res,omitempty" mapstructure:"ignore_file_res"`
	ExecutableFileRes        []string `json:"executable_file_res,omitempty" yaml:"executable_file_res,omitempty" toml:"executable_file_res,omitempty" mapstructure:"executable_file_res"`
	IgnoreIncomingChangesRes []string `json:"ignore_incoming_changes_res,omitempty" yaml:"ignore_incoming_changes_res,omitempty" toml:"ignore_incoming_changes_res,omitempty" mapstructure:"ignore_incoming_changes_res"`
	Branch                   string   `json:"branch,omitempty" yaml:"branch,omitempty" toml:"branch,omitempty" mapstructure:"branch"`
}

// Space returns the configured project space, or DefaultProjectSpace.
func (c Config) Space() string {
	if c.ProjectSpace == "" {
		return DefaultProjectSpace
	}
	return c.ProjectSpace
}

// CheckType fails with INVALID_PROJECT unless c is of type want.
func (c Config) CheckType(want string) error {
	if c.Type != want {
		return errors.Newf(errors.InvalidProject, "invalid repository type %q for %s repository", c.Type, want)
	}
	return nil
}

// WithBranch returns a copy of c on branch.
func (c Config) WithBranch(branch string) Config {
	c.Branch = branch
	return c
}

// WithURL returns a copy of c reading from url.
func (c Config) WithURL(url string) Config {
	c.URL = url
	return c
}

// Deps are the collaborators adapters use.
type Deps struct {
	// Fs receives exported trees. Adapters that shell out require it to be
	// backed by the OS.
	Fs             afero.Fs
	Temp           *tempfs.Manager
	Logger         *slog.Logger
	CommandTimeout time.Duration
}

type factory func(name string, cfg Config, deps Deps) (Repository, error)

var factories = map[string]factory{
	"git":   newGit,
	"hg":    newHg,
	"file":  newFile,
	"dummy": newDummyFromConfig,
}

// Types lists the supported repository types.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the repository called name.
func New(name string, cfg Config, deps Deps) (Repository, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, errors.Newf(errors.InvalidProject,
			"repository %q has invalid type %q; valid types: %s", name, cfg.Type, strings.Join(Types(), ", "))
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.CommandTimeout <= 0 {
		deps.CommandTimeout = 5 * time.Minute
	}
	deps.Logger = slogutil.OrDiscard(deps.Logger).With("repository", name)
	return f(name, cfg, deps)
}

// wantPath reports whether rel is inside one of paths. An empty list
// admits everything.
func wantPath(paths []string, rel string) bool {
	if len(paths) == 0 {
		return true
	}
	for _, p := range paths {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p == "" || rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// finishExport applies ExecutableFileRes: when configured, matching files
// become executable and all others lose the executable bit.
func finishExport(fs afero.Fs, dest string, cfg Config) error {
	if len(cfg.ExecutableFileRes) == 0 {
		return nil
	}
	res, err := codebase.CompileRes(cfg.ExecutableFileRes)
	if err != nil {
		return err
	}
	files, err := codebase.Files(fs, codebase.New(dest, "", nil))
	if err != nil {
		return err
	}
	for _, f := range files {
		var mode os.FileMode = 0o644
		for _, re := range res {
			if re.MatchString(f) {
				mode = 0o755
				break
			}
		}
		if err := fs.Chmod(filepath.Join(dest, filepath.FromSlash(f)), mode); err != nil {
			return err
		}
	}
	return nil
}

func unavailable(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, errors.RepositoryUnavailable, format, args...)
}

func unknownRevision(repo string, spec string) error {
	return errors.Newf(errors.RepositoryUnavailable, "repository %q has no revision %q", repo, spec)
}

func checkRepo(name string, rev revision.Revision) error {
	if rev.RepositoryName != name {
		return fmt.Errorf("revision %s does not belong to repository %q", rev, name)
	}
	return nil
}
