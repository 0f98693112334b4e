package editors

import (
	"context"

	"moe/internal/codebase"
	"moe/internal/translation"
)

type identity struct{ name string }

func newIdentity(name string, _ Config, _ Deps) (translation.Step, error) {
	return identity{name: name}, nil
}

func (e identity) Name() string { return e.name }

func (identity) AcceptedOptions() []string { return nil }

func (identity) Apply(_ context.Context, in translation.StepInput) (codebase.Codebase, error) {
	return in.Codebase, nil
}
