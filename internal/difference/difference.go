// Package difference compares two codebases file by file.
package difference

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"
	godiff "github.com/sourcegraph/go-diff/diff"

	"moe/internal/codebase"
	"moe/internal/paths"
)

// Kind classifies a file difference.
type Kind string

const (
	Added    Kind = "added"
	Removed  Kind = "removed"
	Modified Kind = "modified"
)

// contextLines is the unified diff context.
const contextLines = 3

// FileDifference is how one path differs between two codebases.
type FileDifference struct {
	Path           string `json:"path"`
	Kind           Kind   `json:"kind"`
	ContentChanged bool   `json:"contentChanged"`
	// Executable bits on each side; false for a missing side.
	Executable1 bool `json:"executable1"`
	Executable2 bool `json:"executable2"`
	Binary      bool `json:"binary,omitempty"`
	Added       int  `json:"linesAdded"`
	Deleted     int  `json:"linesDeleted"`

	// Diff is nil for binary files and for pure mode changes.
	Diff *godiff.FileDiff `json:"-"`
}

// ExecutableChanged reports a changed executable bit on a path present on
// both sides.
func (f FileDifference) ExecutableChanged() bool {
	return f.Kind == Modified && f.Executable1 != f.Executable2
}

// CodebaseDifference lists the files that differ, sorted by path.
type CodebaseDifference struct {
	Codebase1 codebase.Codebase `json:"-"`
	Codebase2 codebase.Codebase `json:"-"`
	Files     []FileDifference  `json:"files"`
}

// Empty reports whether the codebases have identical trees.
func (d *CodebaseDifference) Empty() bool { return len(d.Files) == 0 }

// Stat sums the line statistics of every file.
func (d *CodebaseDifference) Stat() godiff.Stat {
	var total godiff.Stat
	for _, f := range d.Files {
		if f.Diff == nil {
			continue
		}
		s := f.Diff.Stat()
		total.Added += s.Added
		total.Changed += s.Changed
		total.Deleted += s.Deleted
	}
	return total
}

type fileInfo struct {
	data       []byte
	executable bool
}

func readSide(fs afero.Fs, cb codebase.Codebase) (map[string]fileInfo, error) {
	files, err := codebase.Files(fs, cb)
	if err != nil {
		return nil, err
	}
	out := make(map[string]fileInfo, len(files))
	for _, rel := range files {
		p := paths.JoinRelPath(cb.Path, rel)
		info, err := fs.Stat(p)
		if err != nil {
			return nil, err
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return nil, err
		}
		out[rel] = fileInfo{data: data, executable: info.Mode().Perm()&0o111 != 0}
	}
	return out, nil
}

// Compare diffs a against b.
func Compare(fs afero.Fs, a, b codebase.Codebase) (*CodebaseDifference, error) {
	left, err := readSide(fs, a)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a, err)
	}
	right, err := readSide(fs, b)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b, err)
	}

	names := make(map[string]bool, len(left)+len(right))
	for n := range left {
		names[n] = true
	}
	for n := range right {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	d := &CodebaseDifference{Codebase1: a, Codebase2: b}
	for _, name := range sorted {
		l, inLeft := left[name]
		r, inRight := right[name]
		fd := FileDifference{Path: name, Executable1: l.executable, Executable2: r.executable}
		switch {
		case !inRight:
			fd.Kind = Removed
		case !inLeft:
			fd.Kind = Added
		default:
			fd.Kind = Modified
		}
		fd.ContentChanged = !inLeft || !inRight || !bytes.Equal(l.data, r.data)
		if !fd.ContentChanged && !fd.ExecutableChanged() {
			continue
		}
		if fd.ContentChanged {
			if err := fillDiff(&fd, l.data, inLeft, r.data, inRight); err != nil {
				return nil, err
			}
		}
		d.Files = append(d.Files, fd)
	}
	return d, nil
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

// splitLines splits on newlines keeping terminators. A missing final
// newline is supplied, so such files diff like terminated ones.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "\n") {
		lines[len(lines)-1] = last + "\n"
	}
	return lines
}

func fillDiff(fd *FileDifference, a []byte, inA bool, b []byte, inB bool) error {
	if isBinary(a) || isBinary(b) {
		fd.Binary = true
		return nil
	}
	from, to := "a/"+fd.Path, "b/"+fd.Path
	if !inA {
		from = "/dev/null"
	}
	if !inB {
		to = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: from,
		ToFile:   to,
		Context:  contextLines,
	})
	if err != nil {
		return err
	}
	if text == "" {
		// Differs only in the final newline.
		return nil
	}
	parsed, err := godiff.ParseFileDiff([]byte(text))
	if err != nil {
		return fmt.Errorf("parse diff of %s: %w", fd.Path, err)
	}
	stat := parsed.Stat()
	fd.Added = int(stat.Added + stat.Changed)
	fd.Deleted = int(stat.Deleted + stat.Changed)
	fd.Diff = parsed
	return nil
}

// Render prints the difference as a multi-file unified diff. Mode changes
// and binary files are reported as git-style extended header lines.
func (d *CodebaseDifference) Render() (string, error) {
	var diffs []*godiff.FileDiff
	for _, f := range d.Files {
		var ext []string
		switch {
		case f.Kind == Added:
			ext = append(ext, "new file mode "+modeString(f.Executable2))
		case f.Kind == Removed:
			ext = append(ext, "deleted file mode "+modeString(f.Executable1))
		case f.ExecutableChanged():
			ext = append(ext, "old mode "+modeString(f.Executable1), "new mode "+modeString(f.Executable2))
		}
		if f.Binary {
			ext = append(ext, fmt.Sprintf("Binary files a/%s and b/%s differ", f.Path, f.Path))
		}
		fd := &godiff.FileDiff{
			OrigName: "a/" + f.Path,
			NewName:  "b/" + f.Path,
			Extended: append([]string{fmt.Sprintf("diff --git a/%s b/%s", f.Path, f.Path)}, ext...),
		}
		if f.Diff != nil {
			fd.OrigName = f.Diff.OrigName
			fd.NewName = f.Diff.NewName
			fd.Hunks = f.Diff.Hunks
		}
		diffs = append(diffs, fd)
	}
	out, err := godiff.PrintMultiFileDiff(diffs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func modeString(executable bool) string {
	if executable {
		return "100755"
	}
	return "100644"
}
