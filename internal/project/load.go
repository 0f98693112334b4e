package project

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"moe/internal/errors"
	"moe/internal/paths"
)

// Format is a project file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat parses a format name: json, yaml (or yml) or toml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", invalid("unknown project format %q; use json, yaml or toml", s)
}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return "", invalid("cannot tell the format of project file %s; use .json, .yaml or .toml", path)
	}
	return f, nil
}

// Load reads and validates a project file. Keys the project schema does not
// know are ignored; use LoadStrict to reject them.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadStrict is Load, failing on unknown keys.
func LoadStrict(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, strict bool) (*Config, error) {
	path = paths.ExpandHome(path)
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InvalidProject, "cannot read project file %s", path)
	}
	cfg, err := Decode(data, format, strict)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InvalidProject, "cannot parse project file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses project data without validating it.
func Decode(data []byte, format Format, strict bool) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); strict && len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, invalid("unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		return nil, invalid("unknown project format %q", format)
	}
	return cfg, nil
}

// Export encodes cfg in format.
func Export(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTOML:
		return gotoml.Marshal(cfg)
	}
	return nil, invalid("unknown export format %q; use json, yaml or toml", format)
}
