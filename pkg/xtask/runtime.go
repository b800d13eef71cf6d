package xtask

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mmr-tortoise/xtask/pkg/config"
	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/workspace"
)

// Runtime is the ambient state every handler receives: the global flag
// values, the repository configuration and the process runner.
type Runtime struct {
	Environment model.Environment
	Context     model.ExecContext
	Coverage    bool

	// Root is the repository root every tool runs in.
	Root string

	Config *config.Config
	Runner process.Runner
	Log    *logging.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive reports whether Stdin is a terminal. Commands asking for
	// confirmation refuse to run unattended when it is false.
	Interactive bool

	membersOnce sync.Once
	members     *workspace.Workspace
	membersErr  error

	cleanups []func()
}

// Members loads the workspace layout on first use and caches it.
func (rt *Runtime) Members() (*workspace.Workspace, error) {
	rt.membersOnce.Do(func() {
		ws, err := workspace.Load(rt.Root, rt.Config.ExamplesDir)
		if err != nil {
			rt.membersErr = model.WrapCLIError(model.ExitUsageError, "failed to read the workspace layout", err)
			return
		}
		rt.members = ws
	})
	return rt.members, rt.membersErr
}

// Resolve expands sel into the members to act on. The workspace manifest is
// only read for targets that enumerate members.
func (rt *Runtime) Resolve(sel target.Selection) ([]target.Member, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if sel.IgnoresFilters() {
		rt.Log.Warn(target.WarnIgnoredFilters)
	}

	var src target.Source
	if sel.Target != "" && sel.Target != model.TargetWorkspace {
		ws, err := rt.Members()
		if err != nil {
			return nil, err
		}
		src = ws
	}
	return target.Resolve(src, sel)
}

// Tool returns a build tool invocation rooted at the repository, carrying
// the coverage environment when coverage is enabled.
func (rt *Runtime) Tool(args ...string) process.Cmd {
	return process.Cmd{
		Name: rt.Config.BuildTool,
		Args: args,
		Dir:  rt.Root,
		Env:  rt.ToolEnv(),
	}
}

// ToolEnv is the extra environment passed to the build tool.
func (rt *Runtime) ToolEnv() map[string]string {
	if !rt.Coverage {
		return nil
	}
	return CoverageEnv(rt.Root)
}

// CoverageEnv returns the variables instrumenting a build for source-based
// coverage. Existing RUSTFLAGS are kept.
func CoverageEnv(root string) map[string]string {
	flags := strings.TrimSpace(os.Getenv("RUSTFLAGS") + " -Cinstrument-coverage")
	return map[string]string{
		"RUSTFLAGS":         flags,
		"LLVM_PROFILE_FILE": filepath.Join(root, "target", "coverage", "%p-%m.profraw"),
	}
}

// Step runs cmd inside a log group titled title.
func (rt *Runtime) Step(ctx context.Context, title string, cmd process.Cmd) error {
	defer rt.Log.Group(title)()
	return rt.Runner.Run(ctx, cmd)
}

// ForEach runs the command built for each member in order and stops at the
// first failure. An empty member list is reported and treated as success.
func (rt *Runtime) ForEach(ctx context.Context, title string, members []target.Member, build func(target.Member) process.Cmd) error {
	if len(members) == 0 {
		rt.Log.Info("nothing to do", "step", title)
		return nil
	}
	for _, m := range members {
		if err := rt.Step(ctx, title+" "+m.Label(), build(m)); err != nil {
			return err
		}
	}
	return nil
}

// OnExit registers fn to run once the command has finished, whether it
// succeeded, failed or was interrupted.
func (rt *Runtime) OnExit(fn func()) {
	rt.cleanups = append(rt.cleanups, fn)
}

func (rt *Runtime) runCleanups() {
	for i := len(rt.cleanups) - 1; i >= 0; i-- {
		rt.cleanups[i]()
	}
	rt.cleanups = nil
}
