package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// Sub-operations of the dependencies command.
const (
	OpDeny   = "deny"
	OpUnused = "unused"
)

// Dependencies returns the dependencies command.
func Dependencies() xtask.Command {
	valid := []string{OpAll, OpDeny, OpUnused}
	return xtask.Command{
		Name:      "dependencies",
		Short:     "Check dependency policies and look for unused dependencies",
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(*pflag.FlagSet) xtask.Handler {
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleDependencies(ctx, rt, xtask.Subcommand(pos, OpAll))
			}
		},
	}
}

// HandleDependencies runs cargo-deny, cargo-machete, or both in that order.
func HandleDependencies(ctx context.Context, rt *xtask.Runtime, op string) error {
	deny := step{name: OpDeny, run: func(ctx context.Context) error {
		if err := ensurePlugin(ctx, rt, cargo.Plugin{Crate: "cargo-deny"}); err != nil {
			return err
		}
		return rt.Step(ctx, "Cargo: run deny checks", rt.Tool("deny", "check"))
	}}
	unused := step{name: OpUnused, run: func(ctx context.Context) error {
		if err := ensurePlugin(ctx, rt, cargo.Plugin{Crate: "cargo-machete"}); err != nil {
			return err
		}
		return rt.Step(ctx, "Cargo: run unused dependencies checks", rt.Tool("machete"))
	}}

	switch op {
	case OpAll:
		return runSequence(ctx, []step{deny, unused})
	case OpDeny:
		return deny.run(ctx)
	case OpUnused:
		return unused.run(ctx)
	default:
		return unknownOperation("dependencies", op)
	}
}
