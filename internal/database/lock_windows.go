//go:build windows

package database

import (
	"os"
)

// Windows file locking stub; writers still replace the file atomically.
func lockFile(f *os.File) error {
	return nil
}

func unlockFile(f *os.File) error {
	return nil
}
