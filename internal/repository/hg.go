package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"moe/internal/command"
	"moe/internal/errors"
	"moe/internal/paths"
	"moe/internal/revision"
)

const (
	hgNullID = "0000000000000000000000000000000000000000"
	// first line: node|author|date|parents; remaining lines: description
	hgMetadataTemplate = "{node}|{author}|{date|rfc3339date}|{p1node} {p2node}\n{desc}"
)

// hgRepo drives the hg binary. Exports write straight to the OS
// filesystem, so deps.Fs must be OS-backed.
type hgRepo struct {
	name   string
	cfg    Config
	deps   Deps
	runner command.Runner

	mu  sync.Mutex
	dir string
}

func newHg(name string, cfg Config, deps Deps) (Repository, error) {
	if err := cfg.CheckType("hg"); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.Newf(errors.InvalidProject, "hg repository %q needs a url", name)
	}
	return &hgRepo{
		name:   name,
		cfg:    cfg,
		deps:   deps,
		runner: command.Runner{Timeout: deps.CommandTimeout, Logger: deps.Logger, Env: []string{"HGPLAIN=1"}},
	}, nil
}

func (h *hgRepo) Name() string         { return h.name }
func (h *hgRepo) ProjectSpace() string { return h.cfg.Space() }
func (h *hgRepo) Config() Config       { return h.cfg }

// checkout returns a local clone, cloning without a working copy on first
// use when the url is not a local directory.
func (h *hgRepo) checkout(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dir != "" {
		return h.dir, nil
	}
	url := paths.ExpandHome(h.cfg.URL)
	if info, err := os.Stat(url); err == nil && info.IsDir() {
		h.dir = url
		return url, nil
	}
	if h.deps.Temp == nil {
		return "", errors.Newf(errors.RepositoryUnavailable, "hg repository %q is remote and no temp directory is configured", h.name)
	}
	dir, err := h.deps.Temp.TempDir(context.Background(), "hg_clone_"+h.name)
	if err != nil {
		return "", err
	}
	args := []string{"clone", "--noupdate"}
	if h.cfg.Branch != "" {
		args = append(args, "--branch", h.cfg.Branch)
	}
	args = append(args, url, dir)
	if _, err := h.runner.Run(ctx, "", "hg", args...); err != nil {
		return "", h.fail(err, "cannot clone %s", url)
	}
	h.dir = dir
	return dir, nil
}

// fail keeps timeouts as they are and reports everything else as an
// unavailable repository.
func (h *hgRepo) fail(err error, format string, args ...interface{}) error {
	if errors.HasCode(err, errors.Timeout) {
		return err
	}
	return unavailable(err, format, args...)
}

func (h *hgRepo) hg(ctx context.Context, args ...string) (string, error) {
	dir, err := h.checkout(ctx)
	if err != nil {
		return "", err
	}
	return h.runner.Run(ctx, dir, "hg", args...)
}

func (h *hgRepo) revset(spec string) string {
	if spec != "" {
		return spec
	}
	if h.cfg.Branch != "" {
		return fmt.Sprintf("max(branch(%s))", strconv.Quote(h.cfg.Branch))
	}
	return "tip"
}

func (h *hgRepo) node(ctx context.Context, spec string) (string, error) {
	out, err := h.hg(ctx, "log", "--rev", h.revset(spec), "--limit", "1", "--template", "{node}")
	if err != nil {
		if errors.HasCode(err, errors.Timeout) {
			return "", err
		}
		return "", unknownRevision(h.name, spec)
	}
	node := strings.TrimSpace(out)
	if node == "" {
		return "", unknownRevision(h.name, spec)
	}
	return node, nil
}

func (h *hgRepo) Head(ctx context.Context) (revision.Revision, error) {
	node, err := h.node(ctx, "")
	if err != nil {
		return revision.Revision{}, err
	}
	return revision.New(node, h.name), nil
}

func (h *hgRepo) Export(ctx context.Context, revSpec, dest string) (revision.Metadata, error) {
	node, err := h.node(ctx, revSpec)
	if err != nil {
		return revision.Metadata{}, err
	}
	args := []string{"archive", "--rev", node, "--type", "files"}
	for _, p := range h.cfg.Paths {
		args = append(args, "--include", "path:"+strings.Trim(filepath.ToSlash(p), "/"))
	}
	args = append(args, dest)
	if _, err := h.hg(ctx, args...); err != nil {
		return revision.Metadata{}, h.fail(err, "cannot archive %s at %s", h.name, node)
	}
	if err := h.deps.Fs.Remove(filepath.Join(dest, ".hg_archival.txt")); err != nil && !os.IsNotExist(err) {
		return revision.Metadata{}, err
	}
	if err := finishExport(h.deps.Fs, dest, h.cfg); err != nil {
		return revision.Metadata{}, err
	}
	return h.metadata(ctx, node)
}

func (h *hgRepo) metadata(ctx context.Context, node string) (revision.Metadata, error) {
	out, err := h.hg(ctx, "log", "--rev", node, "--template", hgMetadataTemplate)
	if err != nil {
		return revision.Metadata{}, h.fail(err, "cannot read metadata of %s", node)
	}
	return parseHgMetadata(h.name, out)
}

func parseHgMetadata(repo, out string) (revision.Metadata, error) {
	header, desc, _ := strings.Cut(out, "\n")
	fields := strings.SplitN(header, "|", 4)
	if len(fields) != 4 {
		return revision.Metadata{}, errors.Newf(errors.RepositoryUnavailable, "unexpected hg log output %q", header)
	}
	date, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return revision.Metadata{}, errors.Wrapf(err, errors.RepositoryUnavailable, "unexpected hg date %q", fields[2])
	}
	m := revision.Metadata{ID: fields[0], Author: fields[1], Date: date, Description: desc}
	for _, p := range strings.Fields(fields[3]) {
		if p != hgNullID {
			m.Parents = append(m.Parents, revision.New(p, repo))
		}
	}
	return m, nil
}

func (h *hgRepo) Metadata(ctx context.Context, rev revision.Revision) (revision.Metadata, error) {
	if err := checkRepo(h.name, rev); err != nil {
		return revision.Metadata{}, err
	}
	node, err := h.node(ctx, rev.RevID)
	if err != nil {
		return revision.Metadata{}, err
	}
	return h.metadata(ctx, node)
}

func (h *hgRepo) History(ctx context.Context, from revision.Revision, limit int) ([]revision.Revision, error) {
	if err := checkRepo(h.name, from); err != nil {
		return nil, err
	}
	node, err := h.node(ctx, from.RevID)
	if err != nil {
		return nil, err
	}
	args := []string{"log", "--rev", fmt.Sprintf("reverse(ancestors(%s))", node), "--template", "{node}\n"}
	if limit > 0 {
		args = append(args, "--limit", strconv.Itoa(limit))
	}
	out, err := h.hg(ctx, args...)
	if err != nil {
		return nil, h.fail(err, "cannot read history of %s", h.name)
	}
	var revs []revision.Revision
	for _, line := range command.Lines(out) {
		revs = append(revs, revision.New(line, h.name))
	}
	return revs, nil
}

func (h *hgRepo) Compare(ctx context.Context, a, b revision.Revision) (Order, error) {
	if err := checkRepo(h.name, a); err != nil {
		return Unordered, err
	}
	if err := checkRepo(h.name, b); err != nil {
		return Unordered, err
	}
	na, err := h.node(ctx, a.RevID)
	if err != nil {
		return Unordered, err
	}
	nb, err := h.node(ctx, b.RevID)
	if err != nil {
		return Unordered, err
	}
	if na == nb {
		return Same, nil
	}
	ok, err := h.isAncestor(ctx, na, nb)
	if err != nil {
		return Unordered, err
	}
	if ok {
		return Before, nil
	}
	if ok, err = h.isAncestor(ctx, nb, na); err != nil {
		return Unordered, err
	} else if ok {
		return After, nil
	}
	return Unordered, nil
}

func (h *hgRepo) isAncestor(ctx context.Context, a, b string) (bool, error) {
	out, err := h.hg(ctx, "log", "--rev", fmt.Sprintf("%s and ancestors(%s)", a, b), "--template", "{node}")
	if err != nil {
		return false, h.fail(err, "cannot compare %s and %s", a, b)
	}
	return strings.TrimSpace(out) != "", nil
}
