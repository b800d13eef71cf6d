package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"

	"github.com/mmr-tortoise/xtask/pkg/config"
	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/process/processtest"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// installed is `cargo install --list` output listing every plugin the base
// commands use, so handlers never try to install one.
const installed = `cargo-audit v0.21.0:
    cargo-audit
cargo-careful v0.4.3:
    cargo-careful
cargo-deny v0.16.1:
    cargo-deny
cargo-edit v0.12.3:
    cargo-set-version
cargo-machete v0.7.0:
    cargo-machete
grcov v0.8.19:
    grcov
typos-cli v1.23.2:
    typos
`

func newRuntime(t *testing.T, root string, rec *processtest.Recorder) *xtask.Runtime {
	t.Helper()
	if root == "" {
		root = t.TempDir()
	}
	return &xtask.Runtime{
		Environment: model.DefaultEnvironment(),
		Context:     model.ContextStd,
		Root:        root,
		Config:      config.Default(),
		Runner:      rec,
		Log:         logging.Discard(),
		Stdin:       strings.NewReader(""),
		Stdout:      &bytes.Buffer{},
		Stderr:      &bytes.Buffer{},
	}
}

// newWorkspace lays out crates a, b, c and no examples.
func newWorkspace(t *testing.T) string {
	t.Helper()
	crate := func(name string) fs.PathOp {
		return fs.WithDir(name, fs.WithFile("Cargo.toml", "[package]\nname = \""+name+"\"\nversion = \"0.1.0\"\n"))
	}
	dir := fs.NewDir(t, "ws",
		fs.WithFile("Cargo.toml", "[workspace]\nmembers = [\"crates/*\", \"examples/*\"]\n"),
		fs.WithDir("crates", crate("a"), crate("b"), crate("c")),
	)
	return dir.Path()
}

func exitFailure(line string, code int) error {
	return &process.ExitError{Line: line, Code: code}
}

func TestDefaults(t *testing.T) {
	reg, err := xtask.NewRegistry(Defaults()...)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"build", "compile", "clean", "check", "fix", "test", "doc", "publish",
		"coverage", "bump", "dependencies", "vulnerabilities", "docker", "validate",
	}, reg.Names())
}

func TestSelect(t *testing.T) {
	cmds, err := Select("test", "build")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "test", cmds[0].Name)
	assert.Equal(t, "build", cmds[1].Name)

	_, err = Select("build", "deploy")
	assert.Error(t, err)
}

func TestFeatureArgs(t *testing.T) {
	assert.Empty(t, FeatureArgs{}.Args())
	assert.Equal(t,
		[]string{"--no-default-features", "--features", "std,serde"},
		FeatureArgs{Features: []string{"std, serde"}, NoDefaultFeatures: true}.Args())
}

func TestRunBestEffort(t *testing.T) {
	rt := newRuntime(t, "", processtest.NewRecorder())
	var ran []string
	first := exitFailure("cargo audit", 3)

	err := runBestEffort(context.Background(), rt, []step{
		{name: "audit", run: func(context.Context) error { ran = append(ran, "audit"); return first }},
		{name: "format", run: func(context.Context) error { ran = append(ran, "format"); return nil }},
		{name: "lint", run: func(context.Context) error { ran = append(ran, "lint"); return errors.New("boom") }},
	})

	assert.Equal(t, []string{"audit", "format", "lint"}, ran)
	var summary *model.FailureSummary
	require.True(t, errors.As(err, &summary))
	assert.Len(t, summary.Failures, 2)
	assert.Equal(t, model.ExitCode(3), process.ExitCodeOf(err))
}

func TestRunSequence_StopsAtFirstFailure(t *testing.T) {
	var ran []string
	err := runSequence(context.Background(), []step{
		{name: "a", run: func(context.Context) error { ran = append(ran, "a"); return errors.New("a failed") }},
		{name: "b", run: func(context.Context) error { ran = append(ran, "b"); return nil }},
	})

	assert.EqualError(t, err, "a failed")
	assert.Equal(t, []string{"a"}, ran)
}
