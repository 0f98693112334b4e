// Package translation runs ordered editing steps that carry a codebase from
// one project space to another.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"moe/internal/codebase"
	"moe/internal/errors"
	"moe/internal/expression"
	"moe/internal/slogutil"
)

// Path is a (from, to) pair of project spaces.
type Path struct {
	From string
	To   string
}

func (p Path) String() string { return p.From + ">" + p.To }

// Evaluator materializes codebases from expressions. Steps use it to fetch
// reference codebases named in their options.
type Evaluator interface {
	CreateCodebase(ctx context.Context, x expression.Expression) (*codebase.Codebase, error)
}

// StepInput is what a step receives.
type StepInput struct {
	Codebase  codebase.Codebase
	Options   expression.Options
	Evaluator Evaluator
}

// Step transforms a codebase. A step that changes nothing returns its input
// unchanged; otherwise it writes a new tree and returns a codebase at the
// new path. Same input and options must yield the same content.
type Step interface {
	Name() string
	// AcceptedOptions lists the option keys the step reads. Other options
	// are not passed to it.
	AcceptedOptions() []string
	Apply(ctx context.Context, in StepInput) (codebase.Codebase, error)
}

// Pipeline is the ordered list of steps registered for a Path.
type Pipeline struct {
	Path   Path
	Steps  []Step
	logger *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(path Path, steps []Step, logger *slog.Logger) *Pipeline {
	return &Pipeline{Path: path, Steps: steps, logger: slogutil.OrDiscard(logger)}
}

// Translate applies every step in order. It returns the final codebase and
// whether it differs from the input.
func (p *Pipeline) Translate(ctx context.Context, input codebase.Codebase, opts expression.Options, eval Evaluator) (codebase.Codebase, bool, error) {
	current := input
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return codebase.Codebase{}, false, err
		}
		p.logger.Debug("Applying translation step",
			"path", p.Path.String(), "step", step.Name(), "index", i)

		out, err := step.Apply(ctx, StepInput{
			Codebase:  current,
			Options:   opts.Filter(step.AcceptedOptions()),
			Evaluator: eval,
		})
		if err != nil {
			return codebase.Codebase{}, false, fmt.Errorf("step %s of %s: %w", step.Name(), p.Path, err)
		}
		current = out
	}
	return current, !current.Equal(input), nil
}

// StepNames lists the step names in order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name()
	}
	return names
}

// Registry maps translation paths to pipelines.
type Registry struct {
	pipelines map[Path]*Pipeline
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[Path]*Pipeline)}
}

// Register adds p. Registering a path twice is an INVALID_PROJECT error.
func (r *Registry) Register(p *Pipeline) error {
	if _, dup := r.pipelines[p.Path]; dup {
		return errors.Newf(errors.InvalidProject, "duplicate translator for %s", p.Path)
	}
	r.pipelines[p.Path] = p
	return nil
}

// Lookup returns the pipeline registered for path.
func (r *Registry) Lookup(path Path) (*Pipeline, bool) {
	p, ok := r.pipelines[path]
	return p, ok
}

// Require returns the pipeline for path, or a NO_TRANSLATOR error naming
// the spaces reachable from path.From and every registered path.
func (r *Registry) Require(path Path) (*Pipeline, error) {
	if p, ok := r.pipelines[path]; ok {
		return p, nil
	}
	targets := r.Targets(path.From)
	all := r.Paths()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.String()
	}
	return nil, errors.Newf(errors.NoTranslator,
		"no translator from %q to %q; available targets from %q: [%s]; registered translators: [%s]",
		path.From, path.To, path.From, strings.Join(targets, ", "), strings.Join(names, ", ")).
		WithDetails(map[string]interface{}{"path": path.String(), "availableTargets": targets})
}

// Targets returns the sorted spaces reachable from space in one translation.
func (r *Registry) Targets(space string) []string {
	targets := []string{}
	for p := range r.pipelines {
		if p.From == space {
			targets = append(targets, p.To)
		}
	}
	sort.Strings(targets)
	return targets
}

// Paths returns every registered path, sorted.
func (r *Registry) Paths() []Path {
	paths := make([]Path, 0, len(r.pipelines))
	for p := range r.pipelines {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].From != paths[j].From {
			return paths[i].From < paths[j].From
		}
		return paths[i].To < paths[j].To
	})
	return paths
}
