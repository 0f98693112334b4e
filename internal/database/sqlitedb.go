package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"moe/internal/errors"
	"moe/internal/revision"
	"moe/internal/slogutil"
)

const currentSchemaVersion = 1

// ErrClosed is returned by operations on a closed SQLiteDB.
var ErrClosed = stderrors.New("database is closed")

// SQLiteDB stores equivalences in SQLite. Writes are committed as they
// happen, so Save has nothing to do.
type SQLiteDB struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(30 * time.Minute)

	db := &SQLiteDB{conn: conn, path: path, logger: slogutil.OrDiscard(logger)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *SQLiteDB) migrate() error {
	return retryOp(context.Background(), defaultRetryConfig, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmts := []string{
			`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
			`CREATE TABLE IF NOT EXISTS equivalences (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				repo1      TEXT NOT NULL,
				rev1       TEXT NOT NULL,
				repo2      TEXT NOT NULL,
				rev2       TEXT NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE (repo1, rev1, repo2, rev2)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_equivalences_repos ON equivalences (repo1, repo2)`,
		}
		for _, s := range stmts {
			if _, err := tx.Exec(s); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}

		var version int
		err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
				return fmt.Errorf("failed to set schema version: %w", err)
			}
			db.logger.Info("Database schema initialized", "path", db.path, "version", currentSchemaVersion)
		case err != nil:
			return fmt.Errorf("failed to read schema version: %w", err)
		case version != currentSchemaVersion:
			return errors.Newf(errors.DatabaseCorrupt, "database %s has schema version %d (want %d)", db.path, version, currentSchemaVersion)
		}
		return tx.Commit()
	})
}

func (db *SQLiteDB) NoteEquivalence(ctx context.Context, e Equivalence) (bool, error) {
	if err := e.validate(); err != nil {
		return false, err
	}
	conn, err := db.handle()
	if err != nil {
		return false, err
	}
	c := e.canonical()
	var added bool
	err = retryOp(ctx, defaultRetryConfig, func() error {
		res, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO equivalences (repo1, rev1, repo2, rev2, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.Rev1.RepositoryName, c.Rev1.RevID, c.Rev2.RepositoryName, c.Rev2.RevID, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		added = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to note equivalence %s: %w", e, err)
	}
	if added {
		db.logger.Debug("Noted equivalence", "equivalence", e.String())
	}
	return added, nil
}

func (db *SQLiteDB) Equivalences(ctx context.Context, repoA, repoB string) ([]Equivalence, error) {
	if repoA == repoB {
		return nil, nil
	}
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	key := Equivalence{Rev1: revision.New("", repoA), Rev2: revision.New("", repoB)}.canonical()
	var out []Equivalence
	err = retryOp(ctx, defaultRetryConfig, func() error {
		out = out[:0]
		rows, err := conn.QueryContext(ctx,
			`SELECT id, repo1, rev1, repo2, rev2 FROM equivalences WHERE repo1 = ? AND repo2 = ? ORDER BY id`,
			key.Rev1.RepositoryName, key.Rev2.RepositoryName)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var e Equivalence
			if err := rows.Scan(&id, &e.Rev1.RepositoryName, &e.Rev1.RevID, &e.Rev2.RepositoryName, &e.Rev2.RevID); err != nil {
				return err
			}
			if err := e.validate(); err != nil {
				return errors.Newf(errors.DatabaseCorrupt, "database %s: row %d: %v", db.path, id, err)
			}
			out = append(out, e.Oriented(repoA))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (db *SQLiteDB) FindLatestEquivalence(ctx context.Context, repoA, repoB string, order Orderer) (Equivalence, bool, error) {
	facts, err := db.Equivalences(ctx, repoA, repoB)
	if err != nil {
		return Equivalence{}, false, err
	}
	return latest(ctx, facts, order)
}

func (db *SQLiteDB) Count(ctx context.Context) (int, error) {
	conn, err := db.handle()
	if err != nil {
		return 0, err
	}
	var n int
	err = retryOp(ctx, defaultRetryConfig, func() error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM equivalences`).Scan(&n)
	})
	return n, err
}

func (db *SQLiteDB) handle() (*sql.DB, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil, ErrClosed
	}
	return db.conn, nil
}

func (db *SQLiteDB) Save(context.Context) error { return nil }

// Close closes the database connection.
func (db *SQLiteDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
