// Package tempfs manages the temporary directories codebases live in.
//
// Every directory has a lifetime. Task directories are removed when the
// task that created them finishes, run directories when the Manager is
// cleaned up, and kept directories are never removed. The current task
// travels in the context.Context.
package tempfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"moe/internal/slogutil"
)

// Lifetime says when a managed directory is removed.
type Lifetime int

const (
	// LifetimeTask directories are removed when their task is done.
	LifetimeTask Lifetime = iota
	// LifetimeRun directories are removed by Cleanup.
	LifetimeRun
	// LifetimeKept directories are never removed.
	LifetimeKept
)

func (l Lifetime) String() string {
	switch l {
	case LifetimeTask:
		return "task"
	case LifetimeRun:
		return "run"
	case LifetimeKept:
		return "kept"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

type entry struct {
	lifetime Lifetime
	task     *Task
}

// Manager owns the temporary directories of one run.
type Manager struct {
	fs     afero.Fs
	root   string
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	dirs    map[string]*entry
	order   []string
	cleaned bool
}

// NewManager creates a manager placing directories under root (the system
// temp directory when empty). Each run gets its own subdirectory.
func NewManager(fs afero.Fs, root string, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		root = os.TempDir()
	}
	runID := uuid.NewString()
	runRoot := filepath.Join(root, "moe-"+runID)
	if err := fs.MkdirAll(runRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &Manager{
		fs:     fs,
		root:   runRoot,
		runID:  runID,
		logger: slogutil.OrDiscard(logger).With("run", runID[:8]),
		dirs:   make(map[string]*entry),
	}, nil
}

// Fs returns the filesystem directories are created on.
func (m *Manager) Fs() afero.Fs { return m.fs }

// Root returns the run's directory.
func (m *Manager) Root() string { return m.root }

// RunID identifies the run.
func (m *Manager) RunID() string { return m.runID }

// TempDir creates a new directory owned by the task carried in ctx, or by
// the run when ctx carries no task.
func (m *Manager) TempDir(ctx context.Context, prefix string) (string, error) {
	task := TaskFrom(ctx)
	if task != nil && task.m != m {
		task = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cleaned {
		return "", fmt.Errorf("temp manager already cleaned up")
	}

	dir := filepath.Join(m.root, prefix+"-"+uuid.NewString())
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	e := &entry{lifetime: LifetimeRun}
	if task != nil {
		e.lifetime = LifetimeTask
		e.task = task
		task.dirs = append(task.dirs, dir)
	}
	m.dirs[dir] = e
	m.order = append(m.order, dir)
	return dir, nil
}

// Keep marks path to survive Cleanup. Unmanaged paths are ignored.
func (m *Manager) Keep(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.dirs[path]; ok {
		e.lifetime = LifetimeKept
		e.task = nil
		m.logger.Debug("Keeping directory", "path", path)
	}
}

// Lifetime reports the lifetime of a managed path.
func (m *Manager) Lifetime(path string) (Lifetime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.dirs[path]
	if !ok {
		return 0, false
	}
	return e.lifetime, true
}

// Cleanup removes every directory that is not kept, then the run
// directory if it is empty. It is safe to call more than once.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	kept := 0
	for _, dir := range m.order {
		e, ok := m.dirs[dir]
		if !ok {
			continue
		}
		if e.lifetime == LifetimeKept {
			kept++
			continue
		}
		if err := m.fs.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.dirs, dir)
	}
	m.order = m.order[:0]
	for dir := range m.dirs {
		m.order = append(m.order, dir)
	}
	if kept == 0 {
		if err := m.fs.RemoveAll(m.root); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.cleaned = true
	m.logger.Debug("Cleaned up temporary directories", "kept", kept)
	return firstErr
}

func (m *Manager) finishTask(t *Task, persist map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, dir := range t.dirs {
		e, ok := m.dirs[dir]
		if !ok || e.task != t || e.lifetime != LifetimeTask {
			continue
		}
		if persist[dir] {
			e.lifetime = LifetimeRun
			e.task = nil
			continue
		}
		if err := m.fs.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.dirs, dir)
	}
	t.dirs = nil
	return firstErr
}

// Task scopes directories to a unit of work.
type Task struct {
	m       *Manager
	name    string
	started time.Time
	dirs    []string
	once    sync.Once
}

type taskKey struct{}

// BeginTask starts a task and returns a context carrying it.
func (m *Manager) BeginTask(ctx context.Context, name string) (context.Context, *Task) {
	t := &Task{m: m, name: name, started: time.Now()}
	m.logger.Debug("Task started", "task", name)
	return context.WithValue(ctx, taskKey{}, t), t
}

// TaskFrom returns the task carried by ctx, or nil.
func TaskFrom(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Done finishes the task and removes its directories.
func (t *Task) Done() error {
	return t.DoneAndPersist()
}

// DoneAndPersist finishes the task, promoting the given paths to run
// lifetime and removing the task's other directories. Only the first call
// to Done or DoneAndPersist has any effect.
func (t *Task) DoneAndPersist(paths ...string) error {
	var err error
	t.once.Do(func() {
		persist := make(map[string]bool, len(paths))
		for _, p := range paths {
			persist[p] = true
		}
		err = t.m.finishTask(t, persist)
		t.m.logger.Debug("Task finished", "task", t.name,
			"persisted", len(paths), "duration", time.Since(t.started).Round(time.Millisecond))
	})
	return err
}
