package editors

import (
	"context"

	"moe/internal/codebase"
	"moe/internal/command"
	"moe/internal/errors"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

// shell runs a command inside a copy of the codebase. The copy, as the
// command leaves it, is the result. The command runs on the host
// filesystem, so the temp manager must be backed by the OS.
type shell struct {
	name    string
	command string
	deps    Deps
}

func newShell(name string, cfg Config, deps Deps) (translation.Step, error) {
	if cfg.Command == "" {
		return nil, errors.Newf(errors.InvalidProject, "editor %q: shell editor needs a command", name)
	}
	return &shell{name: name, command: cfg.Command, deps: deps}, nil
}

func (s *shell) Name() string { return s.name }

func (s *shell) AcceptedOptions() []string { return nil }

func (s *shell) Apply(ctx context.Context, in translation.StepInput) (codebase.Codebase, error) {
	dest, err := s.deps.Temp.TempDir(ctx, "edit-"+s.name)
	if err != nil {
		return codebase.Codebase{}, err
	}
	if err := tempfs.CopyTree(s.deps.Temp.Fs(), in.Codebase.Path, dest); err != nil {
		return codebase.Codebase{}, err
	}
	runner := command.Runner{Timeout: s.deps.CommandTimeout, Logger: s.deps.Logger}
	if _, err := runner.RunShell(ctx, dest, s.command); err != nil {
		return codebase.Codebase{}, err
	}
	return codebase.New(dest, in.Codebase.ProjectSpace, in.Codebase.Expression), nil
}
