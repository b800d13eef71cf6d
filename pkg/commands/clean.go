package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// CleanArgs are the arguments of the clean command.
type CleanArgs struct {
	target.Selection
}

// Clean returns the clean command.
func Clean() xtask.Command {
	return xtask.Command{
		Name:  "clean",
		Short: "Remove build artifacts of the selected packages",
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args CleanArgs
			args.BindFlags(fs)
			return func(ctx context.Context, rt *xtask.Runtime, _ []string) error {
				return HandleClean(ctx, rt, args)
			}
		},
	}
}

// HandleClean runs cargo clean for every selected member.
func HandleClean(ctx context.Context, rt *xtask.Runtime, args CleanArgs) error {
	members, err := rt.Resolve(args.Selection)
	if err != nil {
		return err
	}

	return rt.ForEach(ctx, "Clean", members, func(m target.Member) process.Cmd {
		cmdArgs := []string{"clean"}
		// cargo clean has no workspace flag; without -p it cleans everything.
		if !m.Workspace {
			cmdArgs = append(cmdArgs, m.PackageArgs()...)
		}
		return rt.Tool(append(cmdArgs, "--color", "always")...)
	})
}
