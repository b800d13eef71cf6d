package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// Sub-operations of the doc command.
const (
	OpDocBuild = "build"
	OpDocTests = "tests"
)

// DocArgs are the arguments of the doc command.
type DocArgs struct {
	target.Selection
	FeatureArgs
}

// Doc returns the doc command.
func Doc() xtask.Command {
	valid := []string{OpDocBuild, OpDocTests}
	return xtask.Command{
		Name:      "doc",
		Short:     "Build documentation or run documentation tests",
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args DocArgs
			args.Selection.BindFlags(fs)
			args.FeatureArgs.BindFlags(fs)
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleDoc(ctx, rt, xtask.Subcommand(pos, OpDocBuild), args)
			}
		},
	}
}

// HandleDoc builds the documentation or runs the doc tests of the selected
// members.
func HandleDoc(ctx context.Context, rt *xtask.Runtime, op string, args DocArgs) error {
	if op != OpDocBuild && op != OpDocTests {
		return unknownOperation("doc", op)
	}

	members, err := rt.Resolve(args.Selection)
	if err != nil {
		return err
	}

	if op == OpDocBuild {
		return rt.ForEach(ctx, "Doc Build", members, func(m target.Member) process.Cmd {
			cmdArgs := append([]string{"doc"}, m.PackageArgs()...)
			cmdArgs = append(cmdArgs, "--no-deps", "--color=always")
			return rt.Tool(append(cmdArgs, args.FeatureArgs.Args()...)...)
		})
	}

	return rt.ForEach(ctx, "Doc Tests", members, func(m target.Member) process.Cmd {
		cmdArgs := append([]string{"test"}, m.PackageArgs()...)
		cmdArgs = append(cmdArgs, "--doc", "--color", "always")
		cmd := rt.Tool(append(cmdArgs, args.FeatureArgs.Args()...)...)
		cmd.Tolerate = []process.Tolerance{{
			Pattern: "no library targets found",
			Warning: "No library found to test documentation for in " + m.Label() + ".",
		}}
		return cmd
	})
}
