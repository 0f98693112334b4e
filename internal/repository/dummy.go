package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"moe/internal/revision"
)

// DummyCommit is one revision of a Dummy repository.
type DummyCommit struct {
	ID          string
	Author      string
	Date        time.Time
	Description string
	Files       map[string]string
}

// Dummy is an in-memory repository with linear history. It backs tests and
// dry runs.
type Dummy struct {
	name string
	cfg  Config
	deps Deps

	mu      sync.RWMutex
	commits []DummyCommit
	index   map[string]int
}

// NewDummy creates a dummy repository with the given history, oldest first.
// Commits without an ID are numbered by position.
func NewDummy(name string, cfg Config, deps Deps, commits ...DummyCommit) *Dummy {
	if cfg.Type == "" {
		cfg.Type = "dummy"
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	d := &Dummy{name: name, cfg: cfg, deps: deps, index: make(map[string]int)}
	for _, c := range commits {
		d.Commit(c)
	}
	return d
}

func newDummyFromConfig(name string, cfg Config, deps Deps) (Repository, error) {
	if err := cfg.CheckType("dummy"); err != nil {
		return nil, err
	}
	return NewDummy(name, cfg, deps, DummyCommit{ID: "1", Author: "moe", Description: "dummy revision"}), nil
}

// Commit appends c to the history and returns its revision.
func (d *Dummy) Commit(c DummyCommit) revision.Revision {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == "" {
		c.ID = strconv.Itoa(len(d.commits) + 1)
	}
	d.index[c.ID] = len(d.commits)
	d.commits = append(d.commits, c)
	return revision.New(c.ID, d.name)
}

func (d *Dummy) Name() string         { return d.name }
func (d *Dummy) ProjectSpace() string { return d.cfg.Space() }
func (d *Dummy) Config() Config       { return d.cfg }

func (d *Dummy) Head(context.Context) (revision.Revision, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.commits) == 0 {
		return revision.Revision{}, unknownRevision(d.name, "head")
	}
	return revision.New(d.commits[len(d.commits)-1].ID, d.name), nil
}

func (d *Dummy) lookup(spec string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if spec == "" {
		if len(d.commits) == 0 {
			return 0, unknownRevision(d.name, "head")
		}
		return len(d.commits) - 1, nil
	}
	i, ok := d.index[spec]
	if !ok {
		return 0, unknownRevision(d.name, spec)
	}
	return i, nil
}

func (d *Dummy) Export(_ context.Context, revSpec, dest string) (revision.Metadata, error) {
	i, err := d.lookup(revSpec)
	if err != nil {
		return revision.Metadata{}, err
	}
	d.mu.RLock()
	c := d.commits[i]
	d.mu.RUnlock()

	names := make([]string, 0, len(c.Files))
	for n := range c.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	if err := d.deps.Fs.MkdirAll(dest, 0o755); err != nil {
		return revision.Metadata{}, err
	}
	for _, n := range names {
		if !wantPath(d.cfg.Paths, n) {
			continue
		}
		p := filepath.Join(dest, filepath.FromSlash(n))
		if err := d.deps.Fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return revision.Metadata{}, err
		}
		if err := afero.WriteFile(d.deps.Fs, p, []byte(c.Files[n]), 0o644); err != nil {
			return revision.Metadata{}, err
		}
	}
	if err := finishExport(d.deps.Fs, dest, d.cfg); err != nil {
		return revision.Metadata{}, err
	}
	return d.metadataAt(i), nil
}

func (d *Dummy) metadataAt(i int) revision.Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := d.commits[i]
	m := revision.Metadata{ID: c.ID, Author: c.Author, Date: c.Date, Description: c.Description}
	if i > 0 {
		m.Parents = []revision.Revision{revision.New(d.commits[i-1].ID, d.name)}
	}
	return m
}

func (d *Dummy) Metadata(_ context.Context, rev revision.Revision) (revision.Metadata, error) {
	if err := checkRepo(d.name, rev); err != nil {
		return revision.Metadata{}, err
	}
	i, err := d.lookup(rev.RevID)
	if err != nil {
		return revision.Metadata{}, err
	}
	return d.metadataAt(i), nil
}

func (d *Dummy) History(_ context.Context, from revision.Revision, limit int) ([]revision.Revision, error) {
	if err := checkRepo(d.name, from); err != nil {
		return nil, err
	}
	i, err := d.lookup(from.RevID)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var revs []revision.Revision
	for ; i >= 0; i-- {
		if limit > 0 && len(revs) >= limit {
			break
		}
		revs = append(revs, revision.New(d.commits[i].ID, d.name))
	}
	return revs, nil
}

func (d *Dummy) Compare(_ context.Context, a, b revision.Revision) (Order, error) {
	if err := checkRepo(d.name, a); err != nil {
		return Unordered, err
	}
	if err := checkRepo(d.name, b); err != nil {
		return Unordered, err
	}
	ia, err := d.lookup(a.RevID)
	if err != nil {
		return Unordered, err
	}
	ib, err := d.lookup(b.RevID)
	if err != nil {
		return Unordered, err
	}
	switch {
	case ia < ib:
		return Before, nil
	case ia > ib:
		return After, nil
	default:
		return Same, nil
	}
}

// String identifies the repository in logs.
func (d *Dummy) String() string {
	return fmt.Sprintf("dummy:%s", d.name)
}
