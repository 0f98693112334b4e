package editors

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"moe/internal/paths"
)

func joinRel(root, rel string) string { return paths.JoinRelPath(root, rel) }

func readFile(fs afero.Fs, path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

func writeFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, data, perm); err != nil {
		return err
	}
	return fs.Chmod(path, perm)
}
