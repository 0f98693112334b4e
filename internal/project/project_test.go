package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moe/internal/errors"
	"moe/internal/tempfs"
	"moe/internal/translation"
)

const sampleJSON = `{
  "name": "foo",
  "repositories": {
    "internal": {"type": "dummy", "project_space": "internal"},
    "public": {"type": "dummy"}
  },
  "editors": {
    "scrub": {"type": "scrubber"}
  },
  "translators": [
    {
      "from_project_space": "internal",
      "to_project_space": "public",
      "steps": [
        {"name": "rename", "editor": {"type": "renamer", "mappings": {"java/com/google/Foo": "src/Foo"}}}
      ]
    },
    {"from_project_space": "public", "to_project_space": "internal", "inverse": true}
  ],
  "migrations": [
    {"name": "export", "from_repository": "internal", "to_repository": "public"}
  ]
}`

const sampleYAML = `name: foo
repositories:
  internal:
    type: dummy
    project_space: internal
  public:
    type: dummy
migrations:
  - name: export
    from_repository: internal
    to_repository: public
`

const sampleTOML = `name = "foo"

[repositories.internal]
type = "dummy"
project_space = "internal"

[repositories.public]
type = "dummy"

[[migrations]]
name = "export"
from_repository = "internal"
to_repository = "public"
`

func writeProject(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFormats(t *testing.T) {
	for name, content := range map[string]string{
		"moe.json": sampleJSON,
		"moe.yaml": sampleYAML,
		"moe.toml": sampleTOML,
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeProject(t, name, content))
			require.NoError(t, err)
			assert.Equal(t, "foo", cfg.Name)
			assert.Equal(t, "internal", cfg.Repositories["internal"].Space())
			assert.Equal(t, "public", cfg.Repositories["public"].Space())

			m, err := cfg.Migration("export")
			require.NoError(t, err)
			assert.Equal(t, "internal", m.FromRepository)
		})
	}
}

func TestLoadKeepsKeyCase(t *testing.T) {
	cfg, err := Load(writeProject(t, "moe.json", sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"java/com/google/Foo": "src/Foo"}, cfg.Translators[0].Steps[0].Editor.Mappings)
}

func TestLoadStrict(t *testing.T) {
	tests := map[string]string{
		"moe.json": `{"name": "foo", "bogus": 1, "repositories": {"r": {"type": "dummy"}}}`,
		"moe.yaml": "name: foo\nbogus: 1\nrepositories:\n  r:\n    type: dummy\n",
		"moe.toml": "name = \"foo\"\nbogus = 1\n[repositories.r]\ntype = \"dummy\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			p := writeProject(t, name, content)
			_, err := Load(p)
			require.NoError(t, err)
			_, err = LoadStrict(p)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.InvalidProject))
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Name: "p",
			Repositories: map[string]RepositoryConfig{
				"a": {Type: "dummy"},
				"b": {Type: "dummy", ProjectSpace: "internal"},
			},
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		code   errors.ErrorCode
	}{
		{"no name", func(c *Config) { c.Name = "" }, errors.InvalidProject},
		{"bad repository type", func(c *Config) { c.Repositories["c"] = RepositoryConfig{Type: "cvs"} }, errors.InvalidProject},
		{"bad repository name", func(c *Config) { c.Repositories["a b"] = RepositoryConfig{Type: "dummy"} }, errors.InvalidProject},
		{"bad editor type", func(c *Config) { c.Editors = map[string]EditorConfig{"e": {Type: "sed"}} }, errors.InvalidProject},
		{"duplicate translator", func(c *Config) {
			step := []StepConfig{{Name: "s", Editor: EditorConfig{Type: "identity"}}}
			c.Translators = []TranslatorConfig{
				{FromProjectSpace: "x", ToProjectSpace: "y", Steps: step},
				{FromProjectSpace: "x", ToProjectSpace: "y", Steps: step},
			}
		}, errors.InvalidProject},
		{"inverse without forward", func(c *Config) {
			c.Translators = []TranslatorConfig{{FromProjectSpace: "x", ToProjectSpace: "y", Inverse: true}}
		}, errors.InvalidProject},
		{"inverse of scrubber", func(c *Config) {
			c.Translators = []TranslatorConfig{
				{FromProjectSpace: "x", ToProjectSpace: "y", Steps: []StepConfig{{Name: "s", Editor: EditorConfig{Type: "scrubber"}}}},
				{FromProjectSpace: "y", ToProjectSpace: "x", Inverse: true},
			}
		}, errors.InvalidProject},
		{"migration to unknown repository", func(c *Config) {
			c.Migrations = []MigrationConfig{{Name: "m", FromRepository: "a", ToRepository: "zzz"}}
		}, errors.UnknownRepository},
		{"migration into itself", func(c *Config) {
			c.Migrations = []MigrationConfig{{Name: "m", FromRepository: "a", ToRepository: "a"}}
		}, errors.InvalidProject},
	}
	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	cfg, err := Decode([]byte(sampleJSON), FormatJSON, true)
	require.NoError(t, err)
	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			out, err := Export(cfg, format)
			require.NoError(t, err)
			back, err := Decode(out, format, true)
			require.NoError(t, err)
			assert.Equal(t, cfg, back)
		})
	}
	_, err = Export(cfg, "xml")
	assert.Error(t, err)
}

func newTemp(t *testing.T) *tempfs.Manager {
	t.Helper()
	m, err := tempfs.NewManager(afero.NewMemMapFs(), "/tmp", nil)
	require.NoError(t, err)
	return m
}

func TestNewContext(t *testing.T) {
	cfg, err := Decode([]byte(sampleJSON), FormatJSON, false)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	pctx, err := NewContext(cfg, Deps{Fs: afero.NewMemMapFs(), Temp: newTemp(t)})
	require.NoError(t, err)

	r, err := pctx.Repository("internal")
	require.NoError(t, err)
	assert.Equal(t, "internal", r.ProjectSpace())

	_, err = pctx.Repository("nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.UnknownRepository))
	assert.Contains(t, err.Error(), "internal, public")

	_, err = pctx.Editor("scrub")
	require.NoError(t, err)
	_, err = pctx.Editor("nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.UnknownEditor))
	assert.Contains(t, err.Error(), "scrub")

	fwd, ok := pctx.Translators.Lookup(translation.Path{From: "internal", To: "public"})
	require.True(t, ok)
	assert.Equal(t, []string{"rename"}, fwd.StepNames())
	inv, ok := pctx.Translators.Lookup(translation.Path{From: "public", To: "internal"})
	require.True(t, ok)
	assert.Equal(t, []string{"inverse_rename"}, inv.StepNames())
}
