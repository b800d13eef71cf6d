// Package git queries the repository xtask runs in.
//
// Every query shells out to the git CLI with -C, so callers never need to
// change the process working directory. Failures are reported as
// model.CLIError with ExitGitError.
package git

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// RepoRoot returns the top-level directory of the working tree containing dir.
func RepoRoot(dir string) (string, error) {
	out, err := runGit(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RepoRootOr returns the repository root of dir, or dir itself when dir is
// not inside a git repository or git is unavailable.
func RepoRootOr(dir string) string {
	root, err := RepoRoot(dir)
	if err != nil || root == "" {
		return dir
	}
	return root
}

// CurrentCommit returns the full hash of HEAD.
func CurrentCommit(dir string) (string, error) {
	out, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsDirty reports whether the working tree has staged, unstaged or
// untracked changes.
func IsDirty(dir string) (bool, error) {
	out, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// runGit runs git -C dir args... and returns stdout. stderr is folded into
// the error message on failure.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- arguments are fixed by this package
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
