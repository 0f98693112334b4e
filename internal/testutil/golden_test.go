package testutil

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestCompareGolden_Match(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.golden")
	UpdateGolden(t, path, []byte("one\ntwo\n"))
	CompareGolden(t, path, []byte("one\ntwo\n"))
}

func TestUnifiedDiff(t *testing.T) {
	got := unifiedDiff("one\ntwo\n", "one\n2\n", "x.golden")
	for _, want := range []string{"--- x.golden (expected)", "+++ x.golden (got)", "-two", "+2"} {
		if !strings.Contains(got, want) {
			t.Errorf("unifiedDiff() = %q, want it to contain %q", got, want)
		}
	}
}

func TestWriteAndReadTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{"a.txt": "a", "dir/sub/b.txt": "b"}
	WriteTree(t, fs, "/root", files)

	got := ReadTree(t, fs, "/root")
	if len(got) != len(files) {
		t.Fatalf("ReadTree() returned %d files, want %d", len(got), len(files))
	}
	for name, content := range files {
		if got[name] != content {
			t.Errorf("ReadTree()[%q] = %q, want %q", name, got[name], content)
		}
	}
}
