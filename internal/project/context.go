package project

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"moe/internal/editors"
	"moe/internal/errors"
	"moe/internal/repository"
	"moe/internal/slogutil"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

// Deps are shared by everything a Context builds.
type Deps struct {
	Fs             afero.Fs
	Temp           *tempfs.Manager
	Logger         *slog.Logger
	CommandTimeout time.Duration
}

// Context is a loaded project with its repositories, editors and
// translators constructed.
type Context struct {
	Config      *Config
	Translators *translation.Registry

	mu           sync.RWMutex
	repositories map[string]repository.Repository
	editors      map[string]translation.Step
}

// NewContext builds every repository, editor and translator cfg declares.
func NewContext(cfg *Config, deps Deps) (*Context, error) {
	logger := slogutil.OrDiscard(deps.Logger)
	c := &Context{
		Config:       cfg,
		Translators:  translation.NewRegistry(),
		repositories: make(map[string]repository.Repository),
		editors:      make(map[string]translation.Step),
	}
	repoDeps := repository.Deps{Fs: deps.Fs, Temp: deps.Temp, Logger: logger, CommandTimeout: deps.CommandTimeout}
	editorDeps := editors.Deps{Temp: deps.Temp, Logger: logger, CommandTimeout: deps.CommandTimeout}

	for _, name := range sortedKeys(cfg.Repositories) {
		r, err := repository.New(name, cfg.Repositories[name], repoDeps)
		if err != nil {
			return nil, err
		}
		c.repositories[name] = r
	}
	for _, name := range sortedKeys(cfg.Editors) {
		e, err := editors.New(name, cfg.Editors[name], editorDeps)
		if err != nil {
			return nil, err
		}
		c.editors[name] = e
	}
	for _, t := range cfg.Translators {
		stepConfigs := t.Steps
		if t.Inverse && len(stepConfigs) == 0 {
			var err error
			if stepConfigs, err = cfg.inverseSteps(t); err != nil {
				return nil, err
			}
		}
		steps := make([]translation.Step, 0, len(stepConfigs))
		for _, s := range stepConfigs {
			step, err := editors.New(s.Name, s.Editor, editorDeps)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
		path := translation.Path{From: t.FromProjectSpace, To: t.ToProjectSpace}
		if err := c.Translators.Register(translation.NewPipeline(path, steps, logger)); err != nil {
			return nil, err
		}
	}
	logger.Debug("Project loaded", "project", cfg.Name,
		"repositories", len(c.repositories), "editors", len(c.editors), "translators", len(cfg.Translators))
	return c, nil
}

// Repository returns the repository called name.
func (c *Context) Repository(name string) (repository.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.repositories[name]; ok {
		return r, nil
	}
	return nil, errors.Newf(errors.UnknownRepository, "no repository %q; valid repositories: %s",
		name, strings.Join(sortedKeys(c.repositories), ", "))
}

// Editor returns the editor called name.
func (c *Context) Editor(name string) (translation.Step, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.editors[name]; ok {
		return e, nil
	}
	return nil, errors.Newf(errors.UnknownEditor, "no editor %q; valid editors: %s",
		name, strings.Join(sortedKeys(c.editors), ", "))
}

// AddRepository registers r under its own name, replacing any repository
// of that name.
func (c *Context) AddRepository(r repository.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repositories[r.Name()] = r
}

// AddEditor registers step as the editor called name.
func (c *Context) AddEditor(name string, step translation.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editors[name] = step
}
