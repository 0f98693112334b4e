// Package project holds a moe project: its repositories, editors,
// translators and migrations, loaded from a json, yaml or toml file.
package project

import (
	"fmt"
	"sort"
	"strings"

	"moe/internal/editors"
	"moe/internal/errors"
	"moe/internal/expression"
	"moe/internal/repository"
)

// RepositoryConfig configures one repository.
type RepositoryConfig = repository.Config

// EditorConfig configures one editor.
type EditorConfig = editors.Config

// Config is a moe project file.
type Config struct {
	Name         string                      `json:"name" yaml:"name" toml:"name"`
	DatabaseURI  string                      `json:"database_uri,omitempty" yaml:"database_uri,omitempty" toml:"database_uri,omitempty"`
	Repositories map[string]RepositoryConfig `json:"repositories" yaml:"repositories" toml:"repositories"`
	Editors      map[string]EditorConfig     `json:"editors,omitempty" yaml:"editors,omitempty" toml:"editors,omitempty"`
	Translators  []TranslatorConfig          `json:"translators,omitempty" yaml:"translators,omitempty" toml:"translators,omitempty"`
	Migrations   []MigrationConfig           `json:"migrations,omitempty" yaml:"migrations,omitempty" toml:"migrations,omitempty"`
}

// TranslatorConfig registers a pipeline between two project spaces. An
// inverse translator with no steps of its own undoes the translator in the
// opposite direction.
type TranslatorConfig struct {
	FromProjectSpace string       `json:"from_project_space" yaml:"from_project_space" toml:"from_project_space"`
	ToProjectSpace   string       `json:"to_project_space" yaml:"to_project_space" toml:"to_project_space"`
	Inverse          bool         `json:"inverse,omitempty" yaml:"inverse,omitempty" toml:"inverse,omitempty"`
	Steps            []StepConfig `json:"steps,omitempty" yaml:"steps,omitempty" toml:"steps,omitempty"`
}

// StepConfig is one named step of a translator.
type StepConfig struct {
	Name   string       `json:"name" yaml:"name" toml:"name"`
	Editor EditorConfig `json:"editor" yaml:"editor" toml:"editor"`
}

// MigrationConfig names a one-way flow of revisions between repositories.
type MigrationConfig struct {
	Name              string `json:"name" yaml:"name" toml:"name"`
	FromRepository    string `json:"from_repository" yaml:"from_repository" toml:"from_repository"`
	ToRepository      string `json:"to_repository" yaml:"to_repository" toml:"to_repository"`
	SeparateRevisions bool   `json:"separate_revisions,omitempty" yaml:"separate_revisions,omitempty" toml:"separate_revisions,omitempty"`
}

// invertible maps editor types to the type that undoes them.
var invertible = map[string]string{
	"identity":        "identity",
	"renamer":         "inverse_renamer",
	"inverse_renamer": "renamer",
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.InvalidProject, format, args...)
}

// Validate checks names, types and cross references.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("project has no name")
	}
	if len(c.Repositories) == 0 {
		return invalid("project %q has no repositories", c.Name)
	}
	for _, name := range sortedKeys(c.Repositories) {
		if !expression.IsIdentifier(name) {
			return invalid("repository name %q is not a valid identifier", name)
		}
		if !contains(repository.Types(), c.Repositories[name].Type) {
			return invalid("repository %q has invalid type %q; valid types: %s",
				name, c.Repositories[name].Type, strings.Join(repository.Types(), ", "))
		}
	}
	for _, name := range sortedKeys(c.Editors) {
		if !expression.IsIdentifier(name) {
			return invalid("editor name %q is not a valid identifier", name)
		}
		if err := checkEditorType(name, c.Editors[name].Type); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for i, t := range c.Translators {
		if t.FromProjectSpace == "" || t.ToProjectSpace == "" {
			return invalid("translator %d needs from_project_space and to_project_space", i)
		}
		key := t.FromProjectSpace + ">" + t.ToProjectSpace
		if seen[key] {
			return invalid("duplicate translator %s", key)
		}
		seen[key] = true
		if len(t.Steps) == 0 && !t.Inverse {
			return invalid("translator %s has no steps", key)
		}
		for _, s := range t.Steps {
			if s.Name == "" {
				return invalid("translator %s has a step with no name", key)
			}
			if err := checkEditorType(s.Name, s.Editor.Type); err != nil {
				return err
			}
		}
	}
	for _, t := range c.Translators {
		if t.Inverse && len(t.Steps) == 0 {
			if _, err := c.inverseSteps(t); err != nil {
				return err
			}
		}
	}

	names := make(map[string]bool)
	for _, m := range c.Migrations {
		if m.Name == "" {
			return invalid("migration with no name")
		}
		if names[m.Name] {
			return invalid("duplicate migration %q", m.Name)
		}
		names[m.Name] = true
		for _, r := range []string{m.FromRepository, m.ToRepository} {
			if _, ok := c.Repositories[r]; !ok {
				return errors.Newf(errors.UnknownRepository, "migration %q names unknown repository %q; valid repositories: %s",
					m.Name, r, strings.Join(sortedKeys(c.Repositories), ", "))
			}
		}
		if m.FromRepository == m.ToRepository {
			return invalid("migration %q migrates %q into itself", m.Name, m.FromRepository)
		}
	}
	return nil
}

func checkEditorType(name, typ string) error {
	if !contains(editors.Types(), typ) {
		return invalid("editor %q has invalid type %q; valid types: %s", name, typ, strings.Join(editors.Types(), ", "))
	}
	return nil
}

// inverseSteps derives the steps of an inverse translator from the forward
// translator: the same steps, reversed, each replaced by its inverse.
func (c *Config) inverseSteps(t TranslatorConfig) ([]StepConfig, error) {
	for _, fwd := range c.Translators {
		if fwd.FromProjectSpace != t.ToProjectSpace || fwd.ToProjectSpace != t.FromProjectSpace || fwd.Inverse {
			continue
		}
		steps := make([]StepConfig, 0, len(fwd.Steps))
		for i := len(fwd.Steps) - 1; i >= 0; i-- {
			s := fwd.Steps[i]
			inv, ok := invertible[s.Editor.Type]
			if !ok {
				return nil, invalid("step %q of translator %s>%s has type %q, which cannot be inverted",
					s.Name, fwd.FromProjectSpace, fwd.ToProjectSpace, s.Editor.Type)
			}
			s.Name = "inverse_" + s.Name
			s.Editor.Type = inv
			steps = append(steps, s)
		}
		return steps, nil
	}
	return nil, invalid("inverse translator %s>%s has no forward translator %s>%s",
		t.FromProjectSpace, t.ToProjectSpace, t.ToProjectSpace, t.FromProjectSpace)
}

// Migration returns the migration called name.
func (c *Config) Migration(name string) (MigrationConfig, error) {
	var names []string
	for _, m := range c.Migrations {
		if m.Name == name {
			return m, nil
		}
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return MigrationConfig{}, invalid("no migration %q; valid migrations: %s", name, strings.Join(names, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// String summarizes the project for logs.
func (c *Config) String() string {
	return fmt.Sprintf("project %s (%d repositories, %d translators)", c.Name, len(c.Repositories), len(c.Translators))
}
