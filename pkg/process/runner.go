// Package process runs external tools for xtask commands.
//
// Tools inherit the terminal: their stdout and stderr stream live while
// the caller blocks until they exit. A tool that cannot be started at all
// yields a *LaunchError, and a tool that exits non-zero yields an
// *ExitError carrying the command line and exit code.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mmr-tortoise/xtask/pkg/logging"
)

// interruptGrace is how long a child gets to exit after being interrupted
// before it is killed.
const interruptGrace = 10 * time.Second

// Cmd describes one external invocation.
type Cmd struct {
	// Name is the executable, looked up on PATH.
	Name string

	// Args are passed verbatim, without shell interpretation.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra variables layered over the inherited environment.
	Env map[string]string

	// Tolerate lists stderr patterns that turn a failure into a warning.
	Tolerate []Tolerance

	// Redact lists argument values masked in the logged command line.
	Redact []string
}

// Tolerance downgrades a failed invocation whose stderr contains Pattern to
// a logged Warning. cargo uses it for "no library targets found" style
// outcomes that are not real failures for a batch run.
type Tolerance struct {
	Pattern string
	Warning string
}

// Line renders the command as it would be typed in a shell, with redacted
// arguments masked.
func (c Cmd) Line() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, arg := range c.Args {
		for _, secret := range c.Redact {
			if secret != "" && strings.Contains(arg, secret) {
				arg = strings.ReplaceAll(arg, secret, "***")
			}
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Runner executes commands. Handlers depend on this interface so tests can
// record invocations instead of spawning processes.
type Runner interface {
	// Run streams the command's output and waits for it to exit.
	Run(ctx context.Context, cmd Cmd) error

	// Output captures stdout and returns it. stderr still streams.
	Output(ctx context.Context, cmd Cmd) (string, error)
}

// Exec is the Runner that spawns real processes.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    *logging.Logger
}

// NewExec creates an Exec bound to the process's own stdout and stderr.
func NewExec(log *logging.Logger) *Exec {
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr, Log: log}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, cmd Cmd) error {
	return e.run(ctx, cmd, e.Stdout)
}

// Output implements Runner.
func (e *Exec) Output(ctx context.Context, cmd Cmd) (string, error) {
	var stdout strings.Builder
	err := e.run(ctx, cmd, &stdout)
	return stdout.String(), err
}

func (e *Exec) run(ctx context.Context, cmd Cmd, stdout io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Log.Info("running", "command", cmd.Line(), "dir", cmd.Dir)

	// #nosec G204 -- commands are assembled by xtask handlers
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = os.Stdin
	c.Stdout = stdout
	c.Env = mergeEnv(os.Environ(), cmd.Env)

	matcher := newPatternMatcher(cmd.Tolerate)
	if matcher != nil {
		c.Stderr = io.MultiWriter(e.Stderr, matcher)
	} else {
		c.Stderr = e.Stderr
	}

	// Interrupt the child first so it can clean up, then kill it.
	c.Cancel = func() error {
		return c.Process.Signal(os.Interrupt)
	}
	c.WaitDelay = interruptGrace

	if err := c.Start(); err != nil {
		return &LaunchError{Command: cmd.Name, Err: err}
	}

	err := c.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &LaunchError{Command: cmd.Name, Err: err}
	}

	if matcher != nil {
		if tolerance, ok := matcher.matched(); ok {
			e.Log.Warn(tolerance.Warning, "command", cmd.Line())
			return nil
		}
	}

	result := &ExitError{Line: cmd.Line(), Code: exitErr.ExitCode()}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		result.Signal = status.Signal().String()
	}
	if ctx.Err() != nil {
		result.Interrupted = true
	}
	return result
}

// mergeEnv overlays extra onto base. Keys in extra replace matching keys in
// base; new keys are appended in sorted order.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, override := extra[key]; override {
			continue
		}
		merged = append(merged, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+extra[k])
	}
	return merged
}

// patternMatcher scans a stream for tolerance patterns, line by line.
type patternMatcher struct {
	tolerances []Tolerance
	partial    []byte
	hit        int
}

func newPatternMatcher(tolerances []Tolerance) *patternMatcher {
	if len(tolerances) == 0 {
		return nil
	}
	return &patternMatcher{tolerances: tolerances, hit: -1}
}

func (m *patternMatcher) Write(p []byte) (int, error) {
	m.partial = append(m.partial, p...)
	for {
		idx := bytes.IndexByte(m.partial, '\n')
		if idx < 0 {
			break
		}
		m.scan(m.partial[:idx])
		m.partial = m.partial[idx+1:]
	}
	return len(p), nil
}

func (m *patternMatcher) scan(line []byte) {
	if m.hit >= 0 {
		return
	}
	text := StripANSI(string(line))
	for i, t := range m.tolerances {
		if strings.Contains(text, t.Pattern) {
			m.hit = i
			return
		}
	}
}

func (m *patternMatcher) matched() (Tolerance, bool) {
	if len(m.partial) > 0 {
		m.scan(m.partial)
		m.partial = nil
	}
	if m.hit < 0 {
		return Tolerance{}, false
	}
	return m.tolerances[m.hit], true
}
