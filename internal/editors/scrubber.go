package editors

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"moe/internal/codebase"
	"moe/internal/translation"
)

const (
	markerBeginStrip = "MOE:begin_strip"
	markerEndStrip   = "MOE:end_strip"
	markerStripLine  = "MOE:strip_line"
	markerInsert     = "MOE:insert"
)

// scrubber removes content marked as private:
//
//	// MOE:begin_strip
//	internalOnly()
//	// MOE:end_strip
//	secret := true // MOE:strip_line
//	// MOE:insert publicOnly()
//
// and, for languages with a known grammar, comments matching comment_res.
type scrubber struct {
	name       string
	commentRes []*regexp.Regexp
	deps       Deps
}

func newScrubber(name string, cfg Config, deps Deps) (translation.Step, error) {
	res, err := codebase.CompileRes(cfg.CommentRes)
	if err != nil {
		return nil, err
	}
	return &scrubber{name: name, commentRes: res, deps: deps}, nil
}

func (s *scrubber) Name() string { return s.name }

func (s *scrubber) AcceptedOptions() []string { return nil }

func (s *scrubber) Apply(ctx context.Context, in translation.StepInput) (codebase.Codebase, error) {
	scrubbed := 0
	out, err := rewrite(ctx, s.deps, s.name, in.Codebase, func(rel string, data []byte) (string, []byte, error) {
		cleaned, err := scrubMarkers(data)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", rel, err)
		}
		if lang := languageForFile(rel); lang != nil && len(s.commentRes) > 0 {
			cleaned, err = stripComments(ctx, lang, cleaned, s.commentRes)
			if err != nil {
				return "", nil, fmt.Errorf("%s: %w", rel, err)
			}
		}
		if !bytes.Equal(cleaned, data) {
			scrubbed++
		}
		return rel, cleaned, nil
	})
	if err != nil {
		return codebase.Codebase{}, err
	}
	s.deps.Logger.Debug("Scrubbed codebase", "files", scrubbed, "path", out.Path)
	return out, nil
}

func scrubMarkers(data []byte) ([]byte, error) {
	if !bytes.Contains(data, []byte("MOE:")) {
		return data, nil
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	out := make([]byte, 0, len(data))
	stripping := false
	for i, line := range lines {
		switch {
		case bytes.Contains(line, []byte(markerBeginStrip)):
			if stripping {
				return nil, fmt.Errorf("line %d: nested %s", i+1, markerBeginStrip)
			}
			stripping = true
		case bytes.Contains(line, []byte(markerEndStrip)):
			if !stripping {
				return nil, fmt.Errorf("line %d: %s without %s", i+1, markerEndStrip, markerBeginStrip)
			}
			stripping = false
		case stripping, bytes.Contains(line, []byte(markerStripLine)):
		case bytes.Contains(line, []byte(markerInsert)):
			out = append(out, insertLine(line)...)
		default:
			out = append(out, line...)
		}
	}
	if stripping {
		return nil, fmt.Errorf("unterminated %s", markerBeginStrip)
	}
	return out, nil
}

// insertLine turns "  // MOE:insert foo()" into "  foo()".
func insertLine(line []byte) []byte {
	idx := bytes.Index(line, []byte(markerInsert))
	indent := line[:len(line)-len(bytes.TrimLeft(line, " \t"))]
	rest := bytes.TrimPrefix(line[idx+len(markerInsert):], []byte(" "))
	out := make([]byte, 0, len(indent)+len(rest))
	out = append(out, indent...)
	return append(out, rest...)
}
