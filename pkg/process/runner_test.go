package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
)

// newTestExec returns an Exec whose output goes to buffers, skipping the
// test when no POSIX shell is available.
func newTestExec(t *testing.T) (*Exec, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var stdout, stderr bytes.Buffer
	return &Exec{Stdout: &stdout, Stderr: &stderr, Log: logging.Discard()}, &stdout, &stderr
}

func TestExec_RunSuccessStreamsOutput(t *testing.T) {
	e, stdout, stderr := newTestExec(t)

	err := e.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestExec_RunPropagatesExitCode(t *testing.T) {
	e, _, _ := newTestExec(t)

	err := e.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "exit 7"}})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 7, exitErr.Code)
	assert.Equal(t, "sh -c exit 7", exitErr.Line)
	assert.Equal(t, model.ExitCode(7), ExitCodeOf(err))
}

func TestExec_LaunchFailureIsDistinct(t *testing.T) {
	e, _, _ := newTestExec(t)

	err := e.Run(context.Background(), Cmd{Name: "xtask-definitely-not-installed"})
	require.Error(t, err)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, "xtask-definitely-not-installed", launchErr.Command)
	assert.Equal(t, model.ExitLaunchError, ExitCodeOf(err))
}

func TestExec_MissingWorkingDirectoryIsLaunchFailure(t *testing.T) {
	e, _, _ := newTestExec(t)

	err := e.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "true"}, Dir: filepath.Join(t.TempDir(), "missing")})
	var launchErr *LaunchError
	assert.True(t, errors.As(err, &launchErr))
}

func TestExec_OutputCapturesStdout(t *testing.T) {
	e, stdout, stderr := newTestExec(t)

	out, err := e.Output(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo captured; echo shown >&2"}})
	require.NoError(t, err)
	assert.Equal(t, "captured\n", out)
	assert.Empty(t, stdout.String())
	assert.Equal(t, "shown\n", stderr.String())
}

func TestExec_ExtraEnvironment(t *testing.T) {
	e, _, _ := newTestExec(t)

	out, err := e.Output(context.Background(), Cmd{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$XTASK_PROBE\""},
		Env:  map[string]string{"XTASK_PROBE": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestExec_Tolerance(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr bool
	}{
		{name: "matching stderr is tolerated", script: "echo 'error: no library targets found in package `bin`' >&2; exit 101"},
		{name: "coloured stderr is tolerated", script: "printf '\\033[31merror\\033[0m: no library targets found\\n' >&2; exit 101"},
		{name: "unterminated last line is scanned", script: "printf 'no library targets found' >&2; exit 101"},
		{name: "other failures still fail", script: "echo 'error: could not compile' >&2; exit 101", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestExec(t)
			err := e.Run(context.Background(), Cmd{
				Name:     "sh",
				Args:     []string{"-c", tt.script},
				Tolerate: []Tolerance{{Pattern: "no library targets found", Warning: "no library targets"}},
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExec_CancelledContext(t *testing.T) {
	e, _, _ := newTestExec(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, Cmd{Name: "sh", Args: []string{"-c", "true"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCmdLine_Redacts(t *testing.T) {
	cmd := Cmd{Name: "cargo", Args: []string{"publish", "--token", "s3cr3t"}, Redact: []string{"s3cr3t"}}
	assert.Equal(t, "cargo publish --token ***", cmd.Line())
}

func TestMergeEnv(t *testing.T) {
	merged := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, merged)

	base := []string{"A=1"}
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, model.ExitSuccess, ExitCodeOf(nil))
	assert.Equal(t, model.ExitGeneralError, ExitCodeOf(errors.New("boom")))
	assert.Equal(t, model.ExitUsageError, ExitCodeOf(model.UsageErrorf("bad")))
	assert.Equal(t, model.ExitGeneralError, ExitCodeOf(&ExitError{Code: -1, Signal: "killed"}))
	assert.Equal(t, model.ExitInterrupted, ExitCodeOf(&ExitError{Code: -1, Interrupted: true}))
}
