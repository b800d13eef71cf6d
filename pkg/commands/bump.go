package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

var bumpLevels = []string{"major", "minor", "patch"}

// Bump returns the bump command.
func Bump() xtask.Command {
	return xtask.Command{
		Name:      "bump",
		Short:     "Bump the version of every workspace crate",
		ValidArgs: bumpLevels,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), xtask.SubcommandArgs(bumpLevels...)),
		Bind: func(*pflag.FlagSet) xtask.Handler {
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleBump(ctx, rt, pos[0])
			}
		},
	}
}

// HandleBump bumps the workspace version with cargo set-version.
func HandleBump(ctx context.Context, rt *xtask.Runtime, level string) error {
	if !contains(bumpLevels, level) {
		return unknownOperation("bump", level)
	}
	if err := ensurePlugin(ctx, rt, cargo.Plugin{Crate: "cargo-edit"}); err != nil {
		return err
	}
	return rt.Step(ctx, "Bump version: "+level, rt.Tool("set-version", "--bump", level))
}
