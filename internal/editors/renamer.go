package editors

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"moe/internal/codebase"
	"moe/internal/errors"
	"moe/internal/expression"
	"moe/internal/translation"
)

type mapping struct {
	from string
	to   string
	re   *regexp.Regexp
}

// apply returns the renamed path and whether the mapping matched.
func (m mapping) apply(path string) (string, bool) {
	if m.re != nil {
		if !m.re.MatchString(path) {
			return "", false
		}
		return m.re.ReplaceAllString(path, m.to), true
	}
	switch {
	case m.from == "":
		return joinPrefix(m.to, path), true
	case path == m.from:
		return m.to, true
	case strings.HasPrefix(path, m.from+"/"):
		return joinPrefix(m.to, path[len(m.from)+1:]), true
	}
	return "", false
}

func joinPrefix(prefix, rest string) string {
	if prefix == "" {
		return rest
	}
	return prefix + "/" + rest
}

// buildMappings orders mappings longest source first so the most specific
// prefix wins.
func buildMappings(name string, m map[string]string, useRegex bool) ([]mapping, error) {
	if len(m) == 0 {
		return nil, errors.Newf(errors.InvalidProject, "editor %q: no mappings", name)
	}
	out := make([]mapping, 0, len(m))
	for from, to := range m {
		mp := mapping{from: strings.Trim(from, "/"), to: strings.Trim(to, "/")}
		if useRegex {
			re, err := regexp.Compile(from)
			if err != nil {
				return nil, errors.Wrapf(err, errors.InvalidProject, "editor %q: bad mapping %q", name, from)
			}
			mp = mapping{from: from, to: to, re: re}
		}
		out = append(out, mp)
	}
	sortMappings(out)
	return out, nil
}

func sortMappings(ms []mapping) {
	sort.Slice(ms, func(i, j int) bool {
		if len(ms[i].from) != len(ms[j].from) {
			return len(ms[i].from) > len(ms[j].from)
		}
		if ms[i].from != ms[j].from {
			return ms[i].from < ms[j].from
		}
		return ms[i].to < ms[j].to
	})
}

// renamer moves files according to prefix (or regex) mappings. A file no
// mapping matches is an error.
type renamer struct {
	name     string
	mappings []mapping
	deps     Deps
}

func newRenamer(name string, cfg Config, deps Deps) (translation.Step, error) {
	ms, err := buildMappings(name, cfg.Mappings, cfg.UseRegex)
	if err != nil {
		return nil, err
	}
	return &renamer{name: name, mappings: ms, deps: deps}, nil
}

func (r *renamer) Name() string { return r.name }

func (r *renamer) AcceptedOptions() []string { return nil }

func (r *renamer) Apply(ctx context.Context, in translation.StepInput) (codebase.Codebase, error) {
	return rewrite(ctx, r.deps, r.name, in.Codebase, func(rel string, data []byte) (string, []byte, error) {
		for _, m := range r.mappings {
			if renamed, ok := m.apply(rel); ok {
				return renamed, data, nil
			}
		}
		return "", nil, fmt.Errorf("cannot find a rename mapping that covers file %s", rel)
	})
}

// inverseRenamer undoes a renamer configured with the same mappings. When
// several sources map onto one target, the referenceFromCodebase option
// picks the candidate that already exists there.
type inverseRenamer struct {
	name     string
	mappings []mapping
	deps     Deps
}

func newInverseRenamer(name string, cfg Config, deps Deps) (translation.Step, error) {
	if cfg.UseRegex {
		return nil, errors.Newf(errors.InvalidProject, "editor %q: regex mappings cannot be inverted", name)
	}
	if len(cfg.Mappings) == 0 {
		return nil, errors.Newf(errors.InvalidProject, "editor %q: no mappings", name)
	}
	ms := make([]mapping, 0, len(cfg.Mappings))
	for from, to := range cfg.Mappings {
		ms = append(ms, mapping{from: strings.Trim(to, "/"), to: strings.Trim(from, "/")})
	}
	sortMappings(ms)
	return &inverseRenamer{name: name, mappings: ms, deps: deps}, nil
}

func (r *inverseRenamer) Name() string { return r.name }

func (r *inverseRenamer) AcceptedOptions() []string {
	return []string{expression.OptionReferenceFromCodebase}
}

func (r *inverseRenamer) Apply(ctx context.Context, in translation.StepInput) (codebase.Codebase, error) {
	reference, err := r.referenceFiles(ctx, in)
	if err != nil {
		return codebase.Codebase{}, err
	}
	return rewrite(ctx, r.deps, r.name, in.Codebase, func(rel string, data []byte) (string, []byte, error) {
		var candidates []string
		for _, m := range r.mappings {
			if renamed, ok := m.apply(rel); ok {
				candidates = append(candidates, renamed)
			}
		}
		if len(candidates) == 0 {
			return "", nil, fmt.Errorf("cannot find an inverse rename mapping that covers file %s", rel)
		}
		for _, c := range candidates {
			if reference[c] {
				return c, data, nil
			}
		}
		return candidates[0], data, nil
	})
}

func (r *inverseRenamer) referenceFiles(ctx context.Context, in translation.StepInput) (map[string]bool, error) {
	refExpr, ok := in.Options.Get(expression.OptionReferenceFromCodebase)
	if !ok || in.Evaluator == nil {
		return nil, nil
	}
	x, err := expression.Parse(refExpr)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ParseError, "editor %q: bad %s", r.name, expression.OptionReferenceFromCodebase)
	}
	ref, err := in.Evaluator.CreateCodebase(ctx, x)
	if err != nil {
		return nil, err
	}
	files, err := codebase.Files(r.deps.Temp.Fs(), *ref)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	r.deps.Logger.Debug("Loaded reference codebase", "expression", refExpr, "files", len(files))
	return set, nil
}
