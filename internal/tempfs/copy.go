package tempfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyTree copies the regular files under src into dst, preserving relative
// paths and permission bits. dst is created if needed.
func CopyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return CopyFile(fs, path, target, info.Mode().Perm())
	})
}

// CopyFile copies a single file, creating parent directories of dst.
func CopyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return fs.Chmod(dst, perm)
}
