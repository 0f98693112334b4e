package editors

import (
	"context"
	"fmt"
	"os"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"moe/internal/codebase"
	"moe/internal/errors"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

// patcher applies a unified diff to the codebase. The patch is read from
// the "file" option, or from the configured file when the option is absent.
type patcher struct {
	name string
	file string
	deps Deps
}

func newPatcher(name string, cfg Config, deps Deps) (translation.Step, error) {
	return &patcher{name: name, file: cfg.File, deps: deps}, nil
}

func (p *patcher) Name() string { return p.name }

func (p *patcher) AcceptedOptions() []string { return []string{"file"} }

func (p *patcher) Apply(ctx context.Context, in translation.StepInput) (codebase.Codebase, error) {
	file := p.file
	if v, ok := in.Options.Get("file"); ok {
		file = v
	}
	if file == "" {
		return in.Codebase, nil
	}

	fs := p.deps.Temp.Fs()
	patch, err := readFile(fs, file)
	if err != nil {
		return codebase.Codebase{}, fmt.Errorf("read patch: %w", err)
	}
	fileDiffs, err := godiff.ParseMultiFileDiff(patch)
	if err != nil {
		return codebase.Codebase{}, errors.Wrapf(err, errors.ParseError, "failed to parse patch %s", file)
	}
	if len(fileDiffs) == 0 {
		return in.Codebase, nil
	}

	dest, err := p.deps.Temp.TempDir(ctx, "edit-"+p.name)
	if err != nil {
		return codebase.Codebase{}, err
	}
	if err := tempfs.CopyTree(fs, in.Codebase.Path, dest); err != nil {
		return codebase.Codebase{}, err
	}

	for _, fd := range fileDiffs {
		if err := p.applyFile(dest, fd); err != nil {
			return codebase.Codebase{}, err
		}
	}
	p.deps.Logger.Debug("Applied patch", "file", file, "files", len(fileDiffs))
	return codebase.New(dest, in.Codebase.ProjectSpace, in.Codebase.Expression), nil
}

func (p *patcher) applyFile(root string, fd *godiff.FileDiff) error {
	fs := p.deps.Temp.Fs()
	origName, newName := cleanPath(fd.OrigName), cleanPath(fd.NewName)

	var original string
	perm := defaultPerm
	if origName != "" {
		path := joinRel(root, origName)
		data, err := readFile(fs, path)
		if err != nil {
			return fmt.Errorf("patch %s: %w", origName, err)
		}
		if info, err := fs.Stat(path); err == nil {
			perm = info.Mode().Perm()
		}
		original = string(data)
	}

	patched, err := applyHunks(original, fd.Hunks)
	if err != nil {
		return fmt.Errorf("patch %s: %w", firstNonEmpty(origName, newName), err)
	}

	if origName != "" && origName != newName {
		if err := fs.Remove(joinRel(root, origName)); err != nil {
			return err
		}
	}
	if newName == "" {
		return nil
	}
	return writeFile(fs, joinRel(root, newName), []byte(patched), perm)
}

const defaultPerm os.FileMode = 0o644

// applyHunks applies hunks in order, requiring context and removed lines to
// match the original exactly.
func applyHunks(original string, hunks []*godiff.Hunk) (string, error) {
	lines, trailingNewline := splitLines(original)
	offset := 0
	for i, h := range hunks {
		var oldPart, newPart []string
		// go-diff drops the newline of a new-side line marked
		// "\ No newline at end of file".
		newEndsWithoutNewline := !strings.HasSuffix(string(h.Body), "\n")
		body := strings.TrimSuffix(string(h.Body), "\n")
		if body == "" {
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			if line == "" {
				line = " "
			}
			switch line[0] {
			case ' ':
				oldPart = append(oldPart, line[1:])
				newPart = append(newPart, line[1:])
			case '-':
				oldPart = append(oldPart, line[1:])
			case '+':
				newPart = append(newPart, line[1:])
			default:
				return "", fmt.Errorf("hunk %d: malformed line %q", i+1, line)
			}
		}

		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			start = int(h.OrigStartLine)
		}
		start += offset
		if start < 0 || start+len(oldPart) > len(lines) {
			return "", fmt.Errorf("hunk %d does not apply: out of range", i+1)
		}
		for j, want := range oldPart {
			if lines[start+j] != want {
				return "", fmt.Errorf("hunk %d does not apply at line %d: expected %q, found %q",
					i+1, start+j+1, want, lines[start+j])
			}
		}

		merged := make([]string, 0, len(lines)-len(oldPart)+len(newPart))
		merged = append(merged, lines[:start]...)
		merged = append(merged, newPart...)
		merged = append(merged, lines[start+len(oldPart):]...)
		lines = merged
		offset += len(newPart) - len(oldPart)
		if start+len(newPart) == len(lines) {
			trailingNewline = !newEndsWithoutNewline
		}
	}

	if len(lines) == 0 {
		return "", nil
	}
	out := strings.Join(lines, "\n")
	if trailingNewline {
		out += "\n"
	}
	return out, nil
}

func splitLines(s string) ([]string, bool) {
	if s == "" {
		return nil, true
	}
	trailing := strings.HasSuffix(s, "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n"), trailing
}

// cleanPath removes the a/ or b/ prefix from git diff paths and maps
// /dev/null to "".
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
