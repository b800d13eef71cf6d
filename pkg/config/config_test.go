package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

func TestLoadConfig_YAML(t *testing.T) {
	input := `
build_tool: cross
examples_dir: demos
no_std_target: thumbv7m-none-eabi
coverage:
  ignore: ["xtask/*", "examples/*"]
docker:
  project: burn
tools:
  cargo-deny: "0.16.1"
`
	cfg, err := LoadConfig(strings.NewReader(input), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "cross", cfg.BuildTool)
	assert.Equal(t, ".", cfg.EnvDir, "unset keys keep defaults")
	assert.Equal(t, "demos", cfg.ExamplesDir)
	assert.Equal(t, "thumbv7m-none-eabi", cfg.NoStdTarget)
	assert.Equal(t, []string{"xtask/*", "examples/*"}, cfg.Coverage.Ignore)
	assert.Equal(t, "burn", cfg.Docker.Project)
	assert.Equal(t, []string{"docker-compose.yml"}, cfg.Docker.ComposeFiles)
	assert.Equal(t, "0.16.1", cfg.ToolVersion("cargo-deny"))
	assert.Empty(t, cfg.ToolVersion("cargo-machete"))
}

func TestLoadConfig_JSONC(t *testing.T) {
	input := `{
  // comments and trailing commas are allowed
  "examples_dir": "samples",
  "docker": {"compose_files": ["compose.yaml", "compose.ci.yaml",]},
}`
	cfg, err := LoadConfig(strings.NewReader(input), FormatJSONC)
	require.NoError(t, err)

	assert.Equal(t, "samples", cfg.ExamplesDir)
	assert.Equal(t, "cargo", cfg.BuildTool)
	assert.Equal(t, []string{"compose.yaml", "compose.ci.yaml"}, cfg.Docker.ComposeFiles)
}

func TestLoadConfig_Empty(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSONC} {
		cfg, err := LoadConfig(strings.NewReader(""), format)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("docker: [unclosed"), FormatYAML)
	assert.Error(t, err)

	_, err = LoadConfig(strings.NewReader(`{"examples_dir": 3}`), FormatJSONC)
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("xtask.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("xtask.yml"))
	assert.Equal(t, FormatJSONC, FormatFor("xtask.jsonc"))
	assert.Equal(t, FormatJSONC, FormatFor("XTASK.JSON"))
}

func TestDiscover(t *testing.T) {
	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := Discover(t.TempDir(), "")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("yaml wins over jsonc", func(t *testing.T) {
		dir := fs.NewDir(t, "repo",
			fs.WithFile("xtask.yaml", "build_tool: from-yaml\n"),
			fs.WithFile("xtask.jsonc", `{"build_tool": "from-jsonc"}`),
		)
		cfg, err := Discover(dir.Path(), "")
		require.NoError(t, err)
		assert.Equal(t, "from-yaml", cfg.BuildTool)
		assert.Equal(t, filepath.Join(dir.Path(), "xtask.yaml"), cfg.Path)
	})

	t.Run("explicit path", func(t *testing.T) {
		dir := fs.NewDir(t, "repo", fs.WithFile("custom.json", `{"env_dir": "env"}`))
		cfg, err := Discover(t.TempDir(), dir.Join("custom.json"))
		require.NoError(t, err)
		assert.Equal(t, "env", cfg.EnvDir)
	})

	t.Run("malformed file is a usage error", func(t *testing.T) {
		dir := fs.NewDir(t, "repo", fs.WithFile("xtask.yml", "tools: [1, 2\n"))
		_, err := Discover(dir.Path(), "")
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitUsageError, cliErr.Code)
	})

	t.Run("missing explicit path is a usage error", func(t *testing.T) {
		_, err := Discover(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitUsageError, cliErr.Code)
	})
}

func TestConfig_EnvPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/repo", "."), cfg.EnvPath("/repo"))

	cfg.EnvDir = "env"
	assert.Equal(t, filepath.Join("/repo", "env"), cfg.EnvPath("/repo"))

	cfg.EnvDir = "/etc/xtask"
	assert.Equal(t, "/etc/xtask", cfg.EnvPath("/repo"))
}
