package database

import (
	"log/slog"
	"strings"

	"moe/internal/paths"
)

const sqliteScheme = "sqlite:"

// Open opens the database named by uri: "sqlite:<path>" for SQLite, a path
// (optionally "file:<path>") for a JSON file, "memory" for a throwaway
// store, or "" for the default file in the moe home directory.
func Open(uri string, logger *slog.Logger) (DB, error) {
	switch {
	case uri == "memory":
		return NewMemoryDB(), nil
	case strings.HasPrefix(uri, sqliteScheme):
		return OpenSQLite(paths.ExpandHome(strings.TrimPrefix(uri, sqliteScheme)), logger)
	case uri == "":
		p, err := paths.DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		return OpenFileDB(p, logger)
	default:
		return OpenFileDB(paths.ExpandHome(strings.TrimPrefix(uri, "file:")), logger)
	}
}
