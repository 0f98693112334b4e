// Package editors provides the configurable steps translators and edit
// expressions are built from.
package editors

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"moe/internal/codebase"
	"moe/internal/errors"
	"moe/internal/slogutil"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

// Config configures one editor. Which fields apply depends on Type.
type Config struct {
	Type string `json:"type" yaml:"type" toml:"type" mapstructure:"type"`

	// renamer, inverse_renamer
	Mappings map[string]string `json:"mappings,omitempty" yaml:"mappings,omitempty" toml:"mappings,omitempty" mapstructure:"mappings"`
	UseRegex bool              `json:"use_regex,omitempty" yaml:"use_regex,omitempty" toml:"use_regex,omitempty" mapstructure:"use_regex"`

	// scrubber
	CommentRes []string `json:"comment_res,omitempty" yaml:"comment_res,omitempty" toml:"comment_res,omitempty" mapstructure:"comment_res"`

	// patcher
	File string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty" mapstructure:"file"`

	// shell
	Command string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty" mapstructure:"command"`
}

// Deps are the collaborators every editor may use.
type Deps struct {
	Temp           *tempfs.Manager
	Logger         *slog.Logger
	CommandTimeout time.Duration
}

type factory func(name string, cfg Config, deps Deps) (translation.Step, error)

var factories = map[string]factory{
	"identity":        newIdentity,
	"renamer":         newRenamer,
	"inverse_renamer": newInverseRenamer,
	"scrubber":        newScrubber,
	"patcher":         newPatcher,
	"shell":           newShell,
}

// Types lists the supported editor types.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the editor called name from cfg.
func New(name string, cfg Config, deps Deps) (translation.Step, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, errors.Newf(errors.InvalidProject,
			"editor %q has invalid type %q; valid types: %s", name, cfg.Type, strings.Join(Types(), ", "))
	}
	if deps.Temp == nil {
		return nil, errors.Newf(errors.InternalError, "editor %q: no temp manager", name)
	}
	deps.Logger = slogutil.OrDiscard(deps.Logger).With("editor", name)
	if deps.CommandTimeout <= 0 {
		deps.CommandTimeout = 5 * time.Minute
	}
	return f(name, cfg, deps)
}

// rewrite copies in into a fresh task directory, passing every file through
// fn. fn returns the new relative path and content; an empty path drops the
// file.
func rewrite(ctx context.Context, deps Deps, name string, in codebase.Codebase, fn func(rel string, data []byte) (string, []byte, error)) (codebase.Codebase, error) {
	fs := deps.Temp.Fs()
	files, err := codebase.Files(fs, in)
	if err != nil {
		return codebase.Codebase{}, err
	}
	dest, err := deps.Temp.TempDir(ctx, "edit-"+name)
	if err != nil {
		return codebase.Codebase{}, err
	}
	for _, rel := range files {
		src := joinRel(in.Path, rel)
		info, err := fs.Stat(src)
		if err != nil {
			return codebase.Codebase{}, err
		}
		data, err := readFile(fs, src)
		if err != nil {
			return codebase.Codebase{}, err
		}
		newRel, newData, err := fn(rel, data)
		if err != nil {
			return codebase.Codebase{}, err
		}
		if newRel == "" {
			continue
		}
		if err := writeFile(fs, joinRel(dest, newRel), newData, info.Mode().Perm()); err != nil {
			return codebase.Codebase{}, err
		}
	}
	return codebase.New(dest, in.ProjectSpace, in.Expression), nil
}
