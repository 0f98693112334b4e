package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"moe/internal/errors"
	"moe/internal/slogutil"
)

const currentFileVersion = 1

// fileFormat is the on-disk layout: records grouped under "repoA,repoB"
// keys with the repository names sorted.
type fileFormat struct {
	Version      int                      `json:"version"`
	Equivalences map[string][]Equivalence `json:"equivalences"`
}

// FileDB keeps equivalences in memory and persists them to a JSON file.
// Save merges with what is on disk under an exclusive lock and replaces
// the file atomically. A FileDB with no path is memory only.
type FileDB struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	facts []Equivalence
	dirty bool
}

// NewMemoryDB returns a FileDB that is never written.
func NewMemoryDB() *FileDB {
	return &FileDB{logger: slogutil.NewDiscardLogger()}
}

// OpenFileDB loads path, which may not exist yet.
func OpenFileDB(path string, logger *slog.Logger) (*FileDB, error) {
	db := &FileDB{path: path, logger: slogutil.OrDiscard(logger)}
	facts, err := readFile(path)
	if err != nil {
		return nil, err
	}
	db.facts = facts
	db.logger.Debug("Loaded equivalence database", "path", path, "equivalences", len(facts))
	return db, nil
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "," + b
}

func corrupt(path string, format string, args ...interface{}) error {
	return errors.Newf(errors.DatabaseCorrupt, "database %s: %s", path, fmt.Sprintf(format, args...))
}

// readFile returns the facts in path in file order. A missing file is an
// empty database; anything malformed is DATABASE_CORRUPT.
func readFile(path string) ([]Equivalence, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseCorrupt, "cannot read database %s", path)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseCorrupt, "cannot parse database %s", path)
	}
	if f.Version != currentFileVersion {
		return nil, corrupt(path, "unsupported version %d (want %d)", f.Version, currentFileVersion)
	}

	keys := make([]string, 0, len(f.Equivalences))
	for k := range f.Equivalences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var facts []Equivalence
	for _, k := range keys {
		for i, e := range f.Equivalences[k] {
			if err := e.validate(); err != nil {
				return nil, corrupt(path, "record %d under %q: %v", i, k, err)
			}
			if got := pairKey(e.Rev1.RepositoryName, e.Rev2.RepositoryName); got != k {
				return nil, corrupt(path, "record %d under %q relates %s", i, k, got)
			}
			facts = appendNew(facts, e.canonical())
		}
	}
	return facts, nil
}

func appendNew(facts []Equivalence, e Equivalence) []Equivalence {
	for _, f := range facts {
		if f.Equal(e) {
			return facts
		}
	}
	return append(facts, e)
}

func (db *FileDB) NoteEquivalence(_ context.Context, e Equivalence) (bool, error) {
	if err := e.validate(); err != nil {
		return false, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	n := len(db.facts)
	db.facts = appendNew(db.facts, e.canonical())
	if len(db.facts) == n {
		return false, nil
	}
	db.dirty = true
	db.logger.Debug("Noted equivalence", "equivalence", e.String())
	return true, nil
}

func (db *FileDB) Equivalences(_ context.Context, repoA, repoB string) ([]Equivalence, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return between(db.facts, repoA, repoB), nil
}

func between(facts []Equivalence, repoA, repoB string) []Equivalence {
	var out []Equivalence
	for _, f := range facts {
		if f.Involves(repoA) && f.Involves(repoB) && repoA != repoB {
			out = append(out, f.Oriented(repoA))
		}
	}
	return out
}

func (db *FileDB) FindLatestEquivalence(ctx context.Context, repoA, repoB string, order Orderer) (Equivalence, bool, error) {
	facts, err := db.Equivalences(ctx, repoA, repoB)
	if err != nil {
		return Equivalence{}, false, err
	}
	return latest(ctx, facts, order)
}

func (db *FileDB) Count(context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.facts), nil
}

// Save writes the database if anything changed since it was loaded.
func (db *FileDB) Save(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.path == "" || !db.dirty {
		return nil
	}

	dir := filepath.Dir(db.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	lock, err := os.OpenFile(db.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lock.Close()
	if err := lockFile(lock); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = unlockFile(lock) }()

	// Another run may have saved since we loaded.
	onDisk, err := readFile(db.path)
	if err != nil {
		return err
	}
	merged := onDisk
	for _, f := range db.facts {
		merged = appendNew(merged, f)
	}

	out := fileFormat{Version: currentFileVersion, Equivalences: make(map[string][]Equivalence)}
	for _, f := range merged {
		k := pairKey(f.Rev1.RepositoryName, f.Rev2.RepositoryName)
		out.Equivalences[k] = append(out.Equivalences[k], f)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal database: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(db.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write database: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write database: %w", err)
	}
	if err := os.Rename(tmpPath, db.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename database: %w", err)
	}

	db.facts = merged
	db.dirty = false
	db.logger.Info("Saved equivalence database", "path", db.path, "equivalences", len(merged))
	return nil
}

func (db *FileDB) Close() error { return nil }

// Path returns the backing file, or "" for a memory database.
func (db *FileDB) Path() string { return db.path }
