package model

import (
	"fmt"
	"strings"
)

// ExitCode is the process exit status xtask returns. Scripts and CI systems
// can use it to tell usage mistakes from tool failures and missing tools.
//
// A failing external tool is not listed here: its own exit code is
// propagated as-is.
type ExitCode int

const (
	// ExitSuccess indicates every attempted step succeeded.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an internal or otherwise unclassified failure.
	ExitGeneralError ExitCode = 1

	// ExitUsageError covers invalid flags, conflicting target filters,
	// unknown member names and malformed configuration or environment files.
	// Usage errors are always reported before any external process starts.
	ExitUsageError ExitCode = 2

	// ExitLaunchError indicates an external tool could not be started at all,
	// typically because it is not installed or not on PATH.
	ExitLaunchError ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not reachable.
	ExitDockerNotRunning ExitCode = 4

	// ExitGitError indicates a git query failed.
	ExitGitError ExitCode = 5

	// ExitInterrupted is returned after an interrupt signal stopped the run.
	ExitInterrupted ExitCode = 130
)

// CLIError is an error carrying the exit code the process should end with.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// UsageErrorf is shorthand for a formatted ExitUsageError.
func UsageErrorf(format string, args ...any) *CLIError {
	return NewCLIError(ExitUsageError, fmt.Sprintf(format, args...))
}

// StepFailure records one failed step of a best-effort batch.
type StepFailure struct {
	Step string
	Err  error
}

// FailureSummary is returned by best-effort batches (fix all) that keep going
// past individual failures. Its exit code is the exit code of the first
// failure, resolved by the caller through Cause.
type FailureSummary struct {
	Failures []StepFailure
}

func (s *FailureSummary) Error() string {
	steps := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		steps = append(steps, fmt.Sprintf("%s (%v)", f.Step, f.Err))
	}
	return fmt.Sprintf("%d step(s) failed: %s", len(s.Failures), strings.Join(steps, "; "))
}

// Unwrap exposes the first failure so errors.As finds its exit code.
func (s *FailureSummary) Unwrap() error {
	if len(s.Failures) == 0 {
		return nil
	}
	return s.Failures[0].Err
}

// Add appends a failure for step.
func (s *FailureSummary) Add(step string, err error) {
	s.Failures = append(s.Failures, StepFailure{Step: step, Err: err})
}

// ErrOrNil returns s when at least one failure was recorded.
func (s *FailureSummary) ErrOrNil() error {
	if s == nil || len(s.Failures) == 0 {
		return nil
	}
	return s
}
