// Package config loads the optional repository-level xtask configuration.
//
// The file lives at the repository root and may be written in YAML
// (xtask.yaml, xtask.yml) or JSON with comments (xtask.jsonc, xtask.json).
// Every key is optional; missing keys keep their defaults.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// FileNames lists the configuration files looked up in the repository
// root, in priority order.
var FileNames = []string{"xtask.yaml", "xtask.yml", "xtask.jsonc", "xtask.json"}

// Config is the repository configuration.
type Config struct {
	// BuildTool is the build tool executable.
	BuildTool string `yaml:"build_tool" json:"build_tool"`

	// ExamplesDir holds example members. Every other member is a crate.
	ExamplesDir string `yaml:"examples_dir" json:"examples_dir"`

	// EnvDir is where .env files are looked up, relative to the root.
	EnvDir string `yaml:"env_dir" json:"env_dir"`

	// NoStdTarget is the target triple build uses under --context no-std.
	NoStdTarget string `yaml:"no_std_target" json:"no_std_target"`

	Coverage Coverage `yaml:"coverage" json:"coverage"`
	Docker   Docker   `yaml:"docker" json:"docker"`

	// Tools pins the version installed for cargo plugins, keyed by crate.
	Tools map[string]string `yaml:"tools" json:"tools"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-" json:"-"`
}

// Coverage configures coverage report generation.
type Coverage struct {
	Ignore []string `yaml:"ignore" json:"ignore"`
}

// Docker configures the docker command.
type Docker struct {
	Project      string   `yaml:"project" json:"project"`
	ComposeFiles []string `yaml:"compose_files" json:"compose_files"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BuildTool == "" {
		c.BuildTool = "cargo"
	}
	if c.ExamplesDir == "" {
		c.ExamplesDir = "examples"
	}
	if c.EnvDir == "" {
		c.EnvDir = "."
	}
	if c.Docker.Project == "" {
		c.Docker.Project = "xtask"
	}
	if len(c.Docker.ComposeFiles) == 0 {
		c.Docker.ComposeFiles = []string{"docker-compose.yml"}
	}
	if c.Tools == nil {
		c.Tools = map[string]string{}
	}
}

// Format identifies the syntax of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatJSONC
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// LoadConfig decodes a configuration from r and applies defaults.
func LoadConfig(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	cfg := &Config{}
	switch format {
	case FormatJSONC:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config")
			}
		}
	default:
		// An empty document decodes to io.EOF, which just means defaults.
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfigFile reads the configuration at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config file %s", path)
	}
	defer func() { _ = f.Close() }()

	cfg, err := LoadConfig(f, FormatFor(path))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	cfg.Path = path
	return cfg, nil
}

// Discover loads the configuration for the repository at root. An explicit
// path wins over the well-known file names; when nothing is found the
// defaults are returned. Any read or parse failure is a usage error.
func Discover(root, explicit string) (*Config, error) {
	if explicit != "" {
		cfg, err := LoadConfigFile(explicit)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitUsageError, "invalid configuration", err)
		}
		return cfg, nil
	}

	for _, name := range FileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitUsageError, "invalid configuration", err)
		}
		return cfg, nil
	}

	return Default(), nil
}

// ToolVersion returns the pinned version for a cargo plugin, if any.
func (c *Config) ToolVersion(crate string) string {
	return c.Tools[crate]
}

// EnvPath returns the directory holding environment files, resolved
// against the repository root.
func (c *Config) EnvPath(root string) string {
	if filepath.IsAbs(c.EnvDir) {
		return c.EnvDir
	}
	return filepath.Join(root, c.EnvDir)
}
