package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// BuildArgs are the arguments of the build command.
type BuildArgs struct {
	target.Selection

	Release bool
}

// Build returns the build command.
func Build() xtask.Command {
	return xtask.Command{
		Name:  "build",
		Short: "Build the selected packages",
		Example: `  xtask build
  xtask build --target crates --exclude demo-bench --release`,
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args BuildArgs
			args.BindFlags(fs)
			fs.BoolVar(&args.Release, "release", false, "Build with the release profile")
			return func(ctx context.Context, rt *xtask.Runtime, _ []string) error {
				return HandleBuild(ctx, rt, args)
			}
		},
	}
}

// HandleBuild runs cargo build for every selected member, once per build
// pass of the execution context.
func HandleBuild(ctx context.Context, rt *xtask.Runtime, args BuildArgs) error {
	members, err := rt.Resolve(args.Selection)
	if err != nil {
		return err
	}

	for _, pass := range contextPasses(rt) {
		err := rt.ForEach(ctx, "Build", members, func(m target.Member) process.Cmd {
			cmdArgs := append([]string{"build"}, m.PackageArgs()...)
			cmdArgs = append(cmdArgs, "--color", "always")
			if args.Release {
				cmdArgs = append(cmdArgs, "--release")
			}
			return rt.Tool(append(cmdArgs, pass...)...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// contextPasses returns the extra arguments of each pass the execution
// context asks for. A no-std pass cross-compiles to the configured
// no_std_target.
func contextPasses(rt *xtask.Runtime) [][]string {
	noStd := rt.Config.NoStdTarget

	switch rt.Context {
	case model.ContextNoStd:
		if noStd == "" {
			rt.Log.Warn("no-std context requested but no_std_target is not configured, building for the host")
			return [][]string{nil}
		}
		return [][]string{{"--target", noStd}}
	case model.ContextAll:
		if noStd == "" {
			return [][]string{nil}
		}
		return [][]string{nil, {"--target", noStd}}
	default:
		return [][]string{nil}
	}
}
