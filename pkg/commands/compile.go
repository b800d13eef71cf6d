package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// CompileArgs are the arguments of the compile command.
type CompileArgs struct {
	target.Selection
}

// Compile returns the compile command.
func Compile() xtask.Command {
	return xtask.Command{
		Name:  "compile",
		Short: "Type-check the selected packages without producing binaries",
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args CompileArgs
			args.BindFlags(fs)
			return func(ctx context.Context, rt *xtask.Runtime, _ []string) error {
				return HandleCompile(ctx, rt, args)
			}
		},
	}
}

// HandleCompile runs cargo check for every selected member.
func HandleCompile(ctx context.Context, rt *xtask.Runtime, args CompileArgs) error {
	members, err := rt.Resolve(args.Selection)
	if err != nil {
		return err
	}

	for _, pass := range contextPasses(rt) {
		err := rt.ForEach(ctx, "Compile", members, func(m target.Member) process.Cmd {
			cmdArgs := append([]string{"check"}, m.PackageArgs()...)
			cmdArgs = append(cmdArgs, "--color", "always")
			return rt.Tool(append(cmdArgs, pass...)...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
