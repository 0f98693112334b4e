package codebase

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/spf13/afero"

	"moe/internal/errors"
)

// Files lists the regular files under cb.Path as sorted, slash separated
// relative paths.
func Files(fs afero.Fs, cb Codebase) ([]string, error) {
	var files []string
	err := afero.Walk(fs, cb.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(cb.Path, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CompileRes compiles a list of regular expressions, reporting the first bad
// one as an INVALID_PROJECT error.
func CompileRes(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, errors.InvalidProject, "invalid regular expression %q", p)
		}
		res = append(res, re)
	}
	return res, nil
}

// Filter removes every file of cb whose relative path matches one of
// ignoreRes. It returns the removed paths.
func Filter(fs afero.Fs, cb Codebase, ignoreRes []string) ([]string, error) {
	if len(ignoreRes) == 0 {
		return nil, nil
	}
	res, err := CompileRes(ignoreRes)
	if err != nil {
		return nil, err
	}
	files, err := Files(fs, cb)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, f := range files {
		if !matchesAny(res, f) {
			continue
		}
		if err := fs.Remove(filepath.Join(cb.Path, filepath.FromSlash(f))); err != nil {
			return removed, err
		}
		removed = append(removed, f)
	}
	return removed, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
