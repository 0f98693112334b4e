// Package paths resolves the well-known locations moe reads and writes.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// MoeHomeEnvVar overrides the moe home directory.
	MoeHomeEnvVar = "MOE_HOME"
	// DefaultMoeHome is the home directory name under the user's home.
	DefaultMoeHome = ".moe"
	// DefaultDatabaseFile is the file name of the default equivalence database.
	DefaultDatabaseFile = "db.json"
)

// GetMoeHome returns the moe home directory: $MOE_HOME, or ~/.moe.
func GetMoeHome() (string, error) {
	if home := os.Getenv(MoeHomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, DefaultMoeHome), nil
}

// DefaultDatabasePath returns the path of the default file database.
func DefaultDatabasePath() (string, error) {
	home, err := GetMoeHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDatabaseFile), nil
}

// EnsureMoeHome creates the moe home directory if needed.
func EnsureMoeHome() (string, error) {
	home, err := GetMoeHome()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", err
	}
	return home, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(userHome, strings.TrimPrefix(path, "~"))
}

// JoinRelPath joins root with a slash separated relative path.
func JoinRelPath(root, rel string) string {
	normalized := strings.ReplaceAll(rel, "\\", "/")
	parts := strings.Split(normalized, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
