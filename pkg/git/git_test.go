package git

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// setupTestRepo creates a repository with one commit so HEAD resolves.
// The local identity keeps git commit working on CI machines without a
// global configuration.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[workspace]\n"), 0o644))
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

// sameDir compares paths after resolving symlinks, since temp directories
// live behind a symlink on macOS.
func sameDir(t *testing.T, want, got string) {
	t.Helper()
	w, err := filepath.EvalSymlinks(want)
	require.NoError(t, err)
	g, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, w, g)
}

func TestRepoRoot(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo, "crates", "core")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := RepoRoot(sub)
	require.NoError(t, err)
	sameDir(t, repo, root)
}

func TestRepoRoot_OutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()

	_, err := RepoRoot(dir)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGitError, cliErr.Code)

	assert.Equal(t, dir, RepoRootOr(dir))
}

func TestCurrentCommit(t *testing.T) {
	repo := setupTestRepo(t)

	commit, err := CurrentCommit(repo)
	require.NoError(t, err)
	assert.Len(t, commit, 40)
	assert.Equal(t, commit+"\n", runTestGit(t, repo, "rev-parse", "HEAD"))
}

func TestIsDirty(t *testing.T) {
	repo := setupTestRepo(t)

	dirty, err := IsDirty(repo)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "new.rs"), []byte("fn main() {}\n"), 0o644))
	dirty, err = IsDirty(repo)
	require.NoError(t, err)
	assert.True(t, dirty)
}
