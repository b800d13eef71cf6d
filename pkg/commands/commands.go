// Package commands implements the base xtask commands. Each command lives
// in its own file and exposes three things: an argument struct, a HandleX
// function an embedding repository can call directly after adjusting the
// arguments, and an X constructor returning the xtask.Command to register.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// Sub-operation names shared by several commands.
const (
	OpAll         = "all"
	OpAudit       = "audit"
	OpFormat      = "format"
	OpLint        = "lint"
	OpTypos       = "typos"
	OpUnit        = "unit"
	OpIntegration = "integration"
)

// Defaults returns every base command in help order.
func Defaults() []xtask.Command {
	return []xtask.Command{
		Build(),
		Compile(),
		Clean(),
		Check(),
		Fix(),
		Test(),
		Doc(),
		Publish(),
		Coverage(),
		Bump(),
		Dependencies(),
		Vulnerabilities(),
		Docker(),
		Validate(),
	}
}

// Select returns the named base commands in the order given.
func Select(names ...string) ([]xtask.Command, error) {
	byName := make(map[string]xtask.Command)
	for _, c := range Defaults() {
		byName[c.Name] = c
	}

	selected := make([]xtask.Command, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown base command %q", name)
		}
		selected = append(selected, c)
	}
	return selected, nil
}

// FeatureArgs are the cargo feature flags shared by lint, doc and test.
type FeatureArgs struct {
	Features          []string
	NoDefaultFeatures bool
}

// BindFlags declares --features and --no-default-features on fs.
func (f *FeatureArgs) BindFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.Features, "features", nil, "Comma-separated list of features to enable")
	fs.BoolVar(&f.NoDefaultFeatures, "no-default-features", false, "Do not activate the default features")
}

// Args returns the cargo arguments for the selected features.
func (f FeatureArgs) Args() []string {
	var args []string
	if f.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if features := process.SplitList(f.Features); len(features) > 0 {
		args = append(args, "--features", strings.Join(features, ","))
	}
	return args
}

// step is one named sub-operation of a command.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSequence runs steps in order and returns the first failure.
func runSequence(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runBestEffort runs every step and summarizes the failures at the end.
func runBestEffort(ctx context.Context, rt *xtask.Runtime, steps []step) error {
	summary := &model.FailureSummary{}
	for _, s := range steps {
		if ctx.Err() != nil {
			summary.Add(s.name, ctx.Err())
			break
		}
		if err := s.run(ctx); err != nil {
			rt.Log.Error("step failed, continuing", "step", s.name, "error", err)
			summary.Add(s.name, err)
		}
	}
	for _, f := range summary.Failures {
		rt.Log.Failure(f.Step + " failed")
	}
	return summary.ErrOrNil()
}

// ensurePlugin installs a cargo plugin unless it is already present. The
// version pinned in the configuration wins over p.Version.
func ensurePlugin(ctx context.Context, rt *xtask.Runtime, p cargo.Plugin) error {
	if v := rt.Config.ToolVersion(p.Crate); v != "" {
		p.Version = v
	}
	return cargo.EnsureInstalled(ctx, rt.Runner, rt.Config.BuildTool, p, rt.Log)
}

// ensurePluginOutsideCI is ensurePlugin, skipped on CI where the tool is
// provisioned by the workflow.
func ensurePluginOutsideCI(ctx context.Context, rt *xtask.Runtime, p cargo.Plugin) error {
	if os.Getenv("CI") != "" {
		rt.Log.Debug("skipping plugin installation on CI", "crate", p.Crate)
		return nil
	}
	return ensurePlugin(ctx, rt, p)
}

// tolerate turns err into a warning when ignore is set.
func tolerate(rt *xtask.Runtime, ignore bool, flag string, err error) error {
	if err != nil && ignore {
		rt.Log.Warn("ignoring failure because of "+flag, "error", err)
		return nil
	}
	return err
}

// external returns an invocation of a tool other than the build tool,
// rooted at the repository.
func external(rt *xtask.Runtime, name string, args ...string) process.Cmd {
	return process.Cmd{Name: name, Args: args, Dir: rt.Root}
}

func unknownOperation(command, op string) error {
	return model.UsageErrorf("unknown %s sub-command %q", command, op)
}
