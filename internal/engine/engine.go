// Package engine evaluates codebase expressions into materialized file
// trees.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"moe/internal/codebase"
	"moe/internal/expression"
	"moe/internal/project"
	"moe/internal/slogutil"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

// Engine evaluates expressions against one project. Results are memoized
// by rendered expression for the life of the Engine, so two evaluations
// of the same expression return the same *codebase.Codebase. Failures are
// not memoized.
type Engine struct {
	project *project.Context
	temp    *tempfs.Manager
	fs      afero.Fs
	logger  *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]*codebase.Codebase
}

var _ translation.Evaluator = (*Engine)(nil)

// New creates an engine.
func New(pctx *project.Context, temp *tempfs.Manager, logger *slog.Logger) *Engine {
	return &Engine{
		project: pctx,
		temp:    temp,
		fs:      temp.Fs(),
		logger:  slogutil.OrDiscard(logger),
		memo:    make(map[string]*codebase.Codebase),
	}
}

// Parse parses s and evaluates it.
func (e *Engine) Parse(ctx context.Context, s string) (*codebase.Codebase, error) {
	x, err := expression.Parse(s)
	if err != nil {
		return nil, err
	}
	return e.CreateCodebase(ctx, x)
}

// CreateCodebase evaluates x. Concurrent callers asking for the same
// expression share one evaluation. The shared evaluation does not inherit
// the first caller's cancellation; a cancelled caller stops waiting and
// returns ctx.Err() while the others still get the result.
func (e *Engine) CreateCodebase(ctx context.Context, x expression.Expression) (*codebase.Codebase, error) {
	key := x.String()
	if cb, ok := e.cached(key); ok {
		e.logger.Debug("Codebase cache hit", "expression", key)
		return cb, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		if cb, ok := e.cached(key); ok {
			return cb, nil
		}
		start := time.Now()
		cb, err := e.create(detached, x)
		if err != nil {
			return nil, codebase.CreationError(x, err)
		}
		stored := &cb
		e.mu.Lock()
		e.memo[key] = stored
		e.mu.Unlock()
		e.logger.Info("Created codebase", "expression", key, "path", cb.Path,
			"project_space", cb.ProjectSpace, "duration", time.Since(start).String())
		return stored, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*codebase.Codebase), nil
	}
}

func (e *Engine) cached(key string) (*codebase.Codebase, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cb, ok := e.memo[key]
	return cb, ok
}

// CreateAll evaluates independent expressions concurrently. Results are in
// argument order.
func (e *Engine) CreateAll(ctx context.Context, xs ...expression.Expression) ([]*codebase.Codebase, error) {
	out := make([]*codebase.Codebase, len(xs))
	g, gctx := errgroup.WithContext(ctx)
	for i, x := range xs {
		i, x := i, x
		g.Go(func() error {
			cb, err := e.CreateCodebase(gctx, x)
			if err != nil {
				return err
			}
			out[i] = cb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) create(ctx context.Context, x expression.Expression) (codebase.Codebase, error) {
	switch x := x.(type) {
	case *expression.Repository:
		return e.createRepository(ctx, x)
	case *expression.Translate:
		return e.createTranslate(ctx, x)
	case *expression.Edit:
		return e.createEdit(ctx, x)
	default:
		return codebase.Codebase{}, fmt.Errorf("unsupported expression %T", x)
	}
}

func (e *Engine) createRepository(ctx context.Context, x *expression.Repository) (codebase.Codebase, error) {
	repo, err := e.project.Repository(x.Name)
	if err != nil {
		return codebase.Codebase{}, err
	}
	revSpec, _ := x.Options.Get(expression.OptionRevision)

	tctx, task := e.temp.BeginTask(ctx, "create_codebase_"+x.Name)
	dir, err := e.temp.TempDir(tctx, "repo_"+x.Name)
	if err != nil {
		_ = task.Done()
		return codebase.Codebase{}, err
	}
	md, err := repo.Export(tctx, revSpec, dir)
	if err != nil {
		_ = task.Done()
		return codebase.Codebase{}, err
	}
	cb := codebase.New(dir, repo.ProjectSpace(), x)
	removed, err := codebase.Filter(e.fs, cb, repo.Config().IgnoreFileRes)
	if err != nil {
		_ = task.Done()
		return codebase.Codebase{}, err
	}
	if err := task.DoneAndPersist(dir); err != nil {
		return codebase.Codebase{}, err
	}
	e.logger.Debug("Exported repository", "repository", x.Name, "revision", md.ID, "ignored_files", len(removed))
	return cb, nil
}

func (e *Engine) createTranslate(ctx context.Context, x *expression.Translate) (codebase.Codebase, error) {
	in, err := e.CreateCodebase(ctx, x.Inner)
	if err != nil {
		return codebase.Codebase{}, err
	}
	path := translation.Path{From: in.ProjectSpace, To: x.ToProjectSpace}
	pipeline, err := e.project.Translators.Require(path)
	if err != nil {
		return codebase.Codebase{}, err
	}

	tctx, task := e.temp.BeginTask(ctx, "translate_"+path.From+"_"+path.To)
	out, changed, err := pipeline.Translate(tctx, *in, x.Options, e)
	if err := e.finish(task, out, changed, err); err != nil {
		return codebase.Codebase{}, err
	}
	return out.WithExpression(x).WithProjectSpace(x.ToProjectSpace), nil
}

func (e *Engine) createEdit(ctx context.Context, x *expression.Edit) (codebase.Codebase, error) {
	in, err := e.CreateCodebase(ctx, x.Inner)
	if err != nil {
		return codebase.Codebase{}, err
	}
	step, err := e.project.Editor(x.Editor)
	if err != nil {
		return codebase.Codebase{}, err
	}
	pipeline := translation.NewPipeline(translation.Path{From: in.ProjectSpace, To: in.ProjectSpace},
		[]translation.Step{step}, e.logger)

	tctx, task := e.temp.BeginTask(ctx, "edit_"+x.Editor)
	out, changed, err := pipeline.Translate(tctx, *in, x.Options, e)
	if err := e.finish(task, out, changed, err); err != nil {
		return codebase.Codebase{}, err
	}
	return out.WithExpression(x), nil
}

// finish ends a translation task. Only a result written to a new location
// outlives the task.
func (e *Engine) finish(task *tempfs.Task, out codebase.Codebase, changed bool, err error) error {
	if err != nil {
		_ = task.Done()
		return err
	}
	if !changed {
		e.logger.Debug("Codebase unmodified", "task", task.Name(), "path", out.Path)
		return task.Done()
	}
	return task.DoneAndPersist(out.Path)
}
