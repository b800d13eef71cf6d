package process

import (
	"errors"
	"fmt"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// LaunchError means the executable could not be started: it is missing,
// not executable, or the working directory does not exist. It is an
// environment problem rather than a tool failure.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v (is it installed and on PATH?)", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError means the tool ran and exited unsuccessfully.
type ExitError struct {
	// Line is the command line, with secrets masked.
	Line string

	// Code is the exit code, or -1 when the process died from a signal.
	Code int

	// Signal names the terminating signal, if any.
	Signal string

	// Interrupted is set when xtask itself was interrupted.
	Interrupted bool
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("command %q terminated by signal %s", e.Line, e.Signal)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Line, e.Code)
}

// ExitCodeOf maps err to the exit code xtask should end with. A tool's own
// exit code is propagated; everything else falls back to model codes.
func ExitCodeOf(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		switch {
		case exitErr.Interrupted:
			return model.ExitInterrupted
		case exitErr.Code > 0:
			return model.ExitCode(exitErr.Code)
		default:
			return model.ExitGeneralError
		}
	}

	var launchErr *LaunchError
	if errors.As(err, &launchErr) {
		return model.ExitLaunchError
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	return model.ExitGeneralError
}
